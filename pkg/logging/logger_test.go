package logging

import (
	"testing"

	logrustest "github.com/sirupsen/logrus/hooks/test"
)

func TestNewLoggerWithServiceStampsService(t *testing.T) {
	l := NewLoggerWithService("daino")
	hook := logrustest.NewLocal(l)
	l.SetOutput(NewDiscardLogger().Out)

	l.WithField("k", "v").Info("hello")

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected a log entry")
	}
	if entry.Data["service"] != "daino" {
		t.Fatalf("expected service field, got %v", entry.Data["service"])
	}
	if entry.Data["k"] != "v" {
		t.Fatalf("expected caller field to survive, got %v", entry.Data["k"])
	}
}
