package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/bmlt-go/internal/cache/cellindex"
	"github.com/mohammed-shakir/bmlt-go/internal/cache/lrustore"
	"github.com/mohammed-shakir/bmlt-go/internal/cache/redisstore"
	"github.com/mohammed-shakir/bmlt-go/internal/core/config"
	"github.com/mohammed-shakir/bmlt-go/internal/core/model"
	"github.com/mohammed-shakir/bmlt-go/internal/hotness/expdecay"
	h3mapper "github.com/mohammed-shakir/bmlt-go/internal/mapper/h3"
	"github.com/mohammed-shakir/bmlt-go/internal/scenarios"
	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

const meetingsJSON = `[
	{"id_bigint":"1","meeting_name":"Harbor Light","weekday_tinyint":"2","start_time":"19:00:00","latitude":"40.7130","longitude":"-74.0055","venue_type":"1"},
	{"id_bigint":"2","meeting_name":"Uptown Serenity","weekday_tinyint":"4","start_time":"12:00:00","latitude":"40.7900","longitude":"-73.9500","venue_type":"1"}
]`

type upstream struct {
	searches atomic.Int32
	formats  atomic.Int32
	status   atomic.Int32
	lastLat  atomic.Value
}

func newUpstream(t *testing.T) (*upstream, *bmlt.Client) {
	t.Helper()
	u := &upstream{}
	u.status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := int(u.status.Load()); code != http.StatusOK {
			http.Error(w, "down", code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("switcher") {
		case "GetSearchResults":
			u.searches.Add(1)
			u.lastLat.Store(r.URL.Query().Get("lat_val"))
			_, _ = io.WriteString(w, meetingsJSON)
		case "GetFormats":
			u.formats.Add(1)
			_, _ = io.WriteString(w, `[{"id":"1","key_string":"O","name_string":"Open"}]`)
		case "GetServerInfo":
			_, _ = io.WriteString(w, `[{"version":"3.0.0"}]`)
		case "GetServiceBodies":
			_, _ = io.WriteString(w, `[{"id":"1","name":"Region","type":"RS"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := bmlt.NewClient(bmlt.Config{RootServerURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return u, c
}

func testConfig() config.Config {
	return config.Config{
		H3Res:        7,
		HotThreshold: 5,
		HotHalfLife:  time.Minute,
		Cache: config.CacheCfg{
			TTLDefault: time.Minute,
			TTLHot:     time.Hour,
			OpTimeout:  time.Second,
		},
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newEngine(t *testing.T, cfg config.Config, deps scenarios.Deps) *Engine {
	t.Helper()
	h, err := newCache(cfg, discard(), deps)
	if err != nil {
		t.Fatalf("newCache: %v", err)
	}
	return h.(*Engine)
}

func memDeps(t *testing.T, c *bmlt.Client) scenarios.Deps {
	t.Helper()
	st, err := lrustore.New(128)
	if err != nil {
		t.Fatalf("lrustore.New: %v", err)
	}
	return scenarios.Deps{
		Client: c,
		Store:  st,
		Index:  cellindex.New(st),
		Mapper: h3mapper.New(),
		Hot:    expdecay.New(time.Minute),
	}
}

func pf(v float64) *float64 { return &v }

func TestSearch_MissThenHit(t *testing.T) {
	up, c := newUpstream(t)
	e := newEngine(t, testConfig(), memDeps(t, c))
	ctx := context.Background()
	req := model.SearchRequest{Latitude: pf(40.7128), Longitude: pf(-74.0060), Weekdays: []bmlt.Weekday{bmlt.Monday}}

	first, err := e.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if first.Cache != model.CacheMiss || len(first.Meetings) != 2 || first.Cell == "" {
		t.Fatalf("first=%+v", first)
	}

	second, err := e.Search(ctx, req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if second.Cache != model.CacheHit || len(second.Meetings) != 2 || second.Meetings[0].Name != "Harbor Light" {
		t.Fatalf("second=%+v", second)
	}
	if n := up.searches.Load(); n != 1 {
		t.Fatalf("upstream searches=%d want 1", n)
	}
}

func TestSearch_SnapsToCellCentre(t *testing.T) {
	up, c := newUpstream(t)
	deps := memDeps(t, c)
	e := newEngine(t, testConfig(), deps)
	ctx := context.Background()

	cell, _ := deps.Mapper.Cell(40.7128, -74.0060, 7)
	lat, lng, _ := deps.Mapper.Center(cell)

	if _, err := e.Search(ctx, model.SearchRequest{Latitude: pf(lat), Longitude: pf(lng)}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := up.lastLat.Load().(string); got != strconv.FormatFloat(lat, 'f', -1, 64) {
		t.Fatalf("upstream lat_val=%s want centre %v", got, lat)
	}

	res, err := e.Search(ctx, model.SearchRequest{Latitude: pf(lat + 0.0001), Longitude: pf(lng - 0.0001)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Cache != model.CacheHit || res.Cell != cell {
		t.Fatalf("nearby search should share the entry: %+v", res)
	}
	if n := up.searches.Load(); n != 1 {
		t.Fatalf("upstream searches=%d want 1", n)
	}
}

func TestSearch_IndexesSearchAndMeetingCells(t *testing.T) {
	_, c := newUpstream(t)
	deps := memDeps(t, c)
	e := newEngine(t, testConfig(), deps)
	ctx := context.Background()

	res, err := e.Search(ctx, model.SearchRequest{Latitude: pf(40.7128), Longitude: pf(-74.0060)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	uptown, _ := deps.Mapper.Cell(40.7900, -73.9500, 7)
	for _, cell := range []string{res.Cell, uptown} {
		ks, err := deps.Index.Keys(ctx, 7, cell)
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		if len(ks) != 1 {
			t.Fatalf("cell %s keys=%v want 1", cell, ks)
		}
	}

	n, err := deps.Index.Drop(ctx, 7, uptown)
	if err != nil || n != 1 {
		t.Fatalf("Drop n=%d err=%v", n, err)
	}
	again, _ := e.Search(ctx, model.SearchRequest{Latitude: pf(40.7128), Longitude: pf(-74.0060)})
	if again.Cache != model.CacheMiss {
		t.Fatalf("dropping a meeting cell should invalidate the search, got %s", again.Cache)
	}
}

func TestSearch_HotKeyGetsHotTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	_, c := newUpstream(t)
	cfg := testConfig()
	cfg.HotThreshold = 0.5
	deps := scenarios.Deps{Client: c, Store: rc, Index: cellindex.New(rc), Mapper: h3mapper.New(), Hot: expdecay.New(time.Hour)}
	e := newEngine(t, cfg, deps)

	res, err := e.Search(context.Background(), model.SearchRequest{Latitude: pf(40.7128), Longitude: pf(-74.0060)})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	ks, _ := deps.Index.Keys(context.Background(), 7, res.Cell)
	if len(ks) != 1 {
		t.Fatalf("index keys=%v", ks)
	}
	if ttl := mr.TTL(ks[0]); ttl != time.Hour {
		t.Fatalf("ttl=%v want hot ttl 1h", ttl)
	}
}

func TestSearch_UpstreamErrorNotCached(t *testing.T) {
	up, c := newUpstream(t)
	e := newEngine(t, testConfig(), memDeps(t, c))
	ctx := context.Background()

	up.status.Store(http.StatusInternalServerError)
	_, err := e.Search(ctx, model.SearchRequest{Text: "hope"})
	if bmlt.TypeOf(err) != bmlt.ResponseError {
		t.Fatalf("err=%v", err)
	}

	up.status.Store(http.StatusOK)
	res, err := e.Search(ctx, model.SearchRequest{Text: "hope"})
	if err != nil || res.Cache != model.CacheMiss || res.Cell != "" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestSearch_AddressNeedsGeocoding(t *testing.T) {
	_, c := newUpstream(t)
	e := newEngine(t, testConfig(), memDeps(t, c))
	_, err := e.Search(context.Background(), model.SearchRequest{Address: "1 Main St"})
	if !errors.Is(err, bmlt.ErrValidation) {
		t.Fatalf("err=%v", err)
	}
}

func TestFormatsAndServerInfo_Cached(t *testing.T) {
	up, c := newUpstream(t)
	e := newEngine(t, testConfig(), memDeps(t, c))
	ctx := context.Background()

	for range 3 {
		fs, err := e.Formats(ctx)
		if err != nil || len(fs) != 1 || fs[0].KeyString != "O" {
			t.Fatalf("Formats=%v err=%v", fs, err)
		}
	}
	if n := up.formats.Load(); n != 1 {
		t.Fatalf("upstream formats=%d want 1", n)
	}
	info, err := e.ServerInfo(ctx)
	if err != nil || info.Version != "3.0.0" {
		t.Fatalf("info=%+v err=%v", info, err)
	}
	sbs, err := e.ServiceBodies(ctx)
	if err != nil || len(sbs) != 1 {
		t.Fatalf("service bodies=%v err=%v", sbs, err)
	}
}

func TestNewCache_RequiresStoreAndMapper(t *testing.T) {
	_, c := newUpstream(t)
	if _, err := newCache(testConfig(), discard(), scenarios.Deps{Client: c}); err == nil {
		t.Fatalf("expected error without store")
	}
}
