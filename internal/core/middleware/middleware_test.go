package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mylog "github.com/mohammed-shakir/bmlt-go/internal/logger"
)

func TestRequestID_PropagatesOrMints(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = mylog.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/meetings", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "abc" || rr.Header().Get(RequestIDHeader) != "abc" {
		t.Fatalf("ctx id=%q header=%q want abc", seen, rr.Header().Get(RequestIDHeader))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/meetings", nil))
	if seen == "" || rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("minted id=%q header=%q", seen, rr.Header().Get(RequestIDHeader))
	}
}

func TestRecover_Returns500(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recover(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
}

func TestLogging_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/formats", nil))
	out := buf.String()
	if !strings.Contains(out, "status=418") || !strings.Contains(out, "path=/formats") {
		t.Fatalf("log line missing fields: %q", out)
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/meetings", nil))
	if rr.Code != http.StatusNoContent || called {
		t.Fatalf("preflight status=%d called=%v", rr.Code, called)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing allow origin")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/meetings", nil))
	if !called {
		t.Fatalf("GET not passed through")
	}
}
