package chat

import (
	"errors"
	"testing"
)

func TestToErrorEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr string
	}{
		{name: "system", err: &SystemError{Message: "quota exceeded"}, wantErr: "quota exceeded"},
		{name: "configuration", err: &ConfigurationError{Message: "Missing API Key"}, wantErr: "Configuration Error: Missing API Key"},
		{name: "wrapped configuration", err: &SystemError{Message: "x", Err: &ConfigurationError{Message: "x"}}, wantErr: "Configuration Error: x"},
		{name: "blank", err: errors.New(" "), wantErr: "System Malfunction"},
		{name: "nil", err: nil, wantErr: "System Malfunction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := ToErrorEnvelope(tt.err)
			if env.Error != tt.wantErr {
				t.Fatalf("error = %q, want %q", env.Error, tt.wantErr)
			}
			if env.Content != "ERROR: "+tt.wantErr {
				t.Fatalf("content = %q", env.Content)
			}
			if env.Role != RoleModel || !env.Degraded {
				t.Fatalf("envelope must render as a degraded model turn: %+v", env)
			}
		})
	}
}

func TestToReply(t *testing.T) {
	if got := ToReply("hi"); got != (Reply{Role: RoleModel, Content: "hi"}) {
		t.Fatalf("unexpected reply %+v", got)
	}
}
