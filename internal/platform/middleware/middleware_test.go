package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequestID_GeneratesNew(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/")
	mw := RequestID()

	if err := mw(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id header")
	}
	if rid, _ := c.Get("request_id").(string); rid == "" {
		t.Error("expected request id in context")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := RequestID()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected existing id to be preserved, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRecovery_ConvertsPanicToError(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/")
	logger := zerolog.New(os.Stderr)

	panicking := func(echo.Context) error { panic("boom") }

	err := Recovery(logger)(panicking)(c)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 HTTPError, got %v", err)
	}
}

func TestRateLimit_ExhaustsBurst(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2})

	var last error
	var lastRec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		c, rec := newTestContext(http.MethodGet, "/")
		last = mw(okHandler)(c)
		lastRec = rec
	}

	he, ok := last.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 on third request, got %v", last)
	}
	if lastRec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After hint on the limited response")
	}
}

func TestLogger_AgendaFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	c, _ := newTestContext(http.MethodGet, "/api/v1/availability?practitioner_id=doc-1&date=2025-06-02")
	if err := Logger(logger)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := buf.String()
	for _, field := range []string{`"practitioner_id":"doc-1"`, `"date":"2025-06-02"`} {
		if !strings.Contains(line, field) {
			t.Errorf("log line missing %s: %s", field, line)
		}
	}
}

func TestLogger_PassesThroughError(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/")
	logger := zerolog.New(os.Stderr)

	failing := func(echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad")
	}

	err := Logger(logger)(failing)(c)
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}
}
