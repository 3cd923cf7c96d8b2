package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/bmlt-go/internal/core/config"
	"github.com/mohammed-shakir/bmlt-go/internal/core/model"
	"github.com/mohammed-shakir/bmlt-go/internal/metrics"
	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

type stubHandler struct{}

func (stubHandler) Search(_ context.Context, req model.SearchRequest) (model.SearchResult, error) {
	return model.SearchResult{
		Meetings: []bmlt.Meeting{{ID: 1, Name: "Hope Group"}},
		Cache:    model.CacheMiss,
	}, nil
}

func (stubHandler) Formats(context.Context) ([]bmlt.Format, error) {
	return []bmlt.Format{{ID: 4, KeyString: "O"}}, nil
}

func (stubHandler) ServiceBodies(context.Context) ([]bmlt.ServiceBody, error) { return nil, nil }

func (stubHandler) ServerInfo(context.Context) (bmlt.ServerInfo, error) {
	return bmlt.ServerInfo{Version: "3.0.0"}, nil
}

func newTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRouter(cfg, log, stubHandler{}, Options{Metrics: metrics.Init(metrics.Config{}).Handler()})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestRoutes(t *testing.T) {
	cfg := config.Config{Metrics: config.MetricsCfg{Enabled: true, Path: "/metrics"}}
	srv := newTestServer(t, cfg)

	resp, body := get(t, srv.URL+"/meetings?lat=40.7&long=-74")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/meetings status=%d body=%s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Cache") != model.CacheMiss || resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("headers=%v", resp.Header)
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil || out.Count != 1 {
		t.Fatalf("body=%s err=%v", body, err)
	}

	for _, p := range []string{"/formats", "/service-bodies", "/server-info", "/healthz", "/readyz"} {
		if resp, body := get(t, srv.URL+p); resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", p, resp.StatusCode, body)
		}
	}

	resp, body = get(t, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "app_build_info") {
		t.Fatalf("/metrics status=%d", resp.StatusCode)
	}
}

func TestMetricsNotMountedWhenDisabled(t *testing.T) {
	srv := newTestServer(t, config.Config{Metrics: config.MetricsCfg{Enabled: false, Path: "/metrics"}})
	if resp, _ := get(t, srv.URL+"/metrics"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("/metrics status=%d want 404", resp.StatusCode)
	}
}

func TestBadSearchIs400(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	resp, body := get(t, srv.URL+"/meetings?lat=91&long=0")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
}
