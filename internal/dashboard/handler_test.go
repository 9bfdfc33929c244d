package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dainotech/beespace-demo/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSource struct {
	sites    []string
	readings []telemetry.SensorReading
	err      error
	siteID   int64
	from, to time.Time
}

func (s *stubSource) Sites(context.Context) ([]string, error) {
	return s.sites, s.err
}

func (s *stubSource) Readings(_ context.Context, siteID int64, from, to time.Time) ([]telemetry.SensorReading, error) {
	s.siteID, s.from, s.to = siteID, from, to
	return s.readings, s.err
}

func serve(t *testing.T, src Source, now time.Time, target string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(src, nil)
	h.now = func() time.Time { return now }
	router := gin.New()
	RegisterRoutes(router, h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHandleSites(t *testing.T) {
	w := serve(t, &stubSource{sites: []string{"7"}}, time.Now(), "/api/sites")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Sites []string `json:"sites"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sites) != 1 || body.Sites[0] != "7" {
		t.Fatalf("unexpected sites %v", body.Sites)
	}
}

func TestHandleSites_WarehouseError(t *testing.T) {
	w := serve(t, &stubSource{err: &telemetry.QueryError{Message: "boom"}}, time.Now(), "/api/sites")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestHandleSites_ConfigurationError(t *testing.T) {
	w := serve(t, &stubSource{err: &telemetry.ConfigurationError{Message: "Google credentials not found"}}, time.Now(), "/api/sites")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestHandleReadings_DefaultRange(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 20, 0, 0, time.UTC)
	src := &stubSource{readings: []telemetry.SensorReading{{Timestamp: "2026-10-18T11:00:00Z", ClientSiteID: "7", DevEUI: "UNKNOWN", Battery: 3.6}}}

	w := serve(t, src, now, "/api/sites/7/readings")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	end := time.Date(2026, 10, 18, 13, 0, 0, 0, time.UTC)
	if src.siteID != 7 || !src.to.Equal(end) || !src.from.Equal(end.Add(-DefaultRange)) {
		t.Fatalf("unexpected query args: %d %s %s", src.siteID, src.from, src.to)
	}
	var body struct {
		Readings []telemetry.SensorReading `json:"readings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Readings) != 1 || body.Readings[0].Battery != 3.6 {
		t.Fatalf("unexpected readings %+v", body.Readings)
	}
}

func TestHandleReadings_DefaultWindowStableWithinHour(t *testing.T) {
	first, second := &stubSource{}, &stubSource{}
	serve(t, first, time.Date(2026, 10, 18, 12, 1, 0, 0, time.UTC), "/api/sites/7/readings")
	serve(t, second, time.Date(2026, 10, 18, 12, 59, 0, 0, time.UTC), "/api/sites/7/readings")
	if !first.from.Equal(second.from) || !first.to.Equal(second.to) {
		t.Fatalf("default windows differ: %s-%s vs %s-%s", first.from, first.to, second.from, second.to)
	}
}

func TestHandleReadings_ExplicitRange(t *testing.T) {
	src := &stubSource{}
	w := serve(t, src, time.Now(), "/api/sites/3/readings?from=2026-10-01T00:00:00Z&to=2026-10-02T00:00:00Z")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if src.from.Format(time.RFC3339) != "2026-10-01T00:00:00Z" || src.to.Format(time.RFC3339) != "2026-10-02T00:00:00Z" {
		t.Fatalf("range not forwarded: %s %s", src.from, src.to)
	}
}

func TestHandleReadings_BadInput(t *testing.T) {
	cases := []string{
		"/api/sites/abc/readings",
		"/api/sites/-1/readings",
		"/api/sites/7/readings?from=yesterday",
		"/api/sites/7/readings?to=2026-13-01",
		"/api/sites/7/readings?from=2026-10-02T00:00:00Z&to=2026-10-01T00:00:00Z",
	}
	for _, target := range cases {
		src := &stubSource{err: errors.New("should not be called")}
		w := serve(t, src, time.Now(), target)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, w.Code)
		}
	}
}
