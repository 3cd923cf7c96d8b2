// Package cache serves proxy requests cache-aside. Proximity searches are
// snapped to the centre of their H3 cell so nearby searches share an entry,
// and every stored search is recorded in the cell index for invalidation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cacheiface "github.com/mohammed-shakir/bmlt-go/internal/cache"
	"github.com/mohammed-shakir/bmlt-go/internal/cache/cellindex"
	"github.com/mohammed-shakir/bmlt-go/internal/cache/keys"
	"github.com/mohammed-shakir/bmlt-go/internal/core/config"
	"github.com/mohammed-shakir/bmlt-go/internal/core/model"
	"github.com/mohammed-shakir/bmlt-go/internal/core/observability"
	"github.com/mohammed-shakir/bmlt-go/internal/core/router"
	"github.com/mohammed-shakir/bmlt-go/internal/hotness"
	mylog "github.com/mohammed-shakir/bmlt-go/internal/logger"
	"github.com/mohammed-shakir/bmlt-go/internal/mapper"
	"github.com/mohammed-shakir/bmlt-go/internal/scenarios"
	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

const scenarioName = "cache"

type Engine struct {
	logger *slog.Logger
	client *bmlt.Client

	res   int
	mapr  mapper.Interface
	store cacheiface.Interface
	index *cellindex.Index
	hot   hotness.Interface

	ttlDefault   time.Duration
	ttlHot       time.Duration
	hotThreshold float64
}

var _ router.Handler = (*Engine)(nil)

func init() {
	scenarios.Register(scenarioName, newCache)
}

func newCache(cfg config.Config, logger *slog.Logger, deps scenarios.Deps) (router.Handler, error) {
	if deps.Store == nil {
		return nil, errors.New("cache scenario: no cache store configured")
	}
	if deps.Mapper == nil {
		return nil, errors.New("cache scenario: no H3 mapper configured")
	}
	store := newTimeoutStore(deps.Store, cfg.Cache.OpTimeout)
	index := deps.Index
	if index == nil {
		index = cellindex.New(store)
	}
	return &Engine{
		logger:       logger,
		client:       deps.Client,
		res:          cfg.H3Res,
		mapr:         deps.Mapper,
		store:        store,
		index:        index,
		hot:          deps.Hot,
		ttlDefault:   cfg.Cache.TTLDefault,
		ttlHot:       cfg.Cache.TTLHot,
		hotThreshold: cfg.HotThreshold,
	}, nil
}

// timeoutStore bounds every backend call so a slow cache degrades to a miss.
type timeoutStore struct {
	inner   cacheiface.Interface
	timeout time.Duration
}

func newTimeoutStore(s cacheiface.Interface, t time.Duration) cacheiface.Interface {
	if t <= 0 {
		return s
	}
	return &timeoutStore{inner: s, timeout: t}
}

func (a *timeoutStore) MGet(ctx context.Context, ks []string) (map[string][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	m, err := a.inner.MGet(ctx, ks)
	if err != nil {
		return nil, fmt.Errorf("cache mget: %w", err)
	}
	return m, nil
}

func (a *timeoutStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.inner.Set(ctx, key, val, ttl); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

func (a *timeoutStore) Del(ctx context.Context, ks ...string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.inner.Del(ctx, ks...); err != nil {
		return fmt.Errorf("cache del %d keys: %w", len(ks), err)
	}
	return nil
}

func (e *Engine) Search(ctx context.Context, req model.SearchRequest) (model.SearchResult, error) {
	start := time.Now()

	q := req.Filters(bmlt.NewMeetingQuery(e.client))
	var cell string
	if req.HasPoint() || req.Address != "" {
		at := req.Point()
		if !req.HasPoint() {
			g, err := e.client.GeocodeAddress(ctx, req.Address)
			if err != nil {
				return model.SearchResult{}, err
			}
			at = g.Coordinates
		}
		c, err := e.mapr.Cell(at.Latitude, at.Longitude, e.res)
		if err != nil {
			return model.SearchResult{}, bmlt.NewValidationError(err.Error())
		}
		lat, lng, err := e.mapr.Center(c)
		if err != nil {
			return model.SearchResult{}, fmt.Errorf("h3 cell centre: %w", err)
		}
		cell = c
		req.Near(q, bmlt.Coordinates{Latitude: lat, Longitude: lng})
	}

	params := q.Params()
	key := keys.Response(string(bmlt.EndpointSearchResults), cell, params.Encode())
	hotKey := key
	if cell != "" {
		hotKey = cell
	}
	if e.hot != nil {
		e.hot.Inc(hotKey)
	}

	var cached []bmlt.Meeting
	if e.lookup(ctx, key, &cached) {
		observability.IncCacheHit(scenarioName)
		e.logger.DebugContext(mylog.WithCacheResult(ctx, model.CacheHit), "cache hit",
			"cell", cell, "meetings", len(cached), "dur", time.Since(start).String())
		return model.SearchResult{Meetings: cached, Cache: model.CacheHit, Cell: cell}, nil
	}
	observability.IncCacheMiss(scenarioName)

	meetings, err := q.Execute(ctx)
	if err != nil {
		return model.SearchResult{}, err
	}

	ttl := hotness.TTL(e.hot, hotKey, e.hotThreshold, e.ttlDefault, e.ttlHot)
	if e.fill(ctx, key, meetings, ttl) {
		e.indexResponse(ctx, key, cell, meetings, ttl)
	}
	e.logger.DebugContext(mylog.WithCacheResult(ctx, model.CacheMiss), "cache miss",
		"cell", cell, "meetings", len(meetings), "ttl_used", ttl.String(),
		"dur", time.Since(start).String())
	return model.SearchResult{Meetings: meetings, Cache: model.CacheMiss, Cell: cell}, nil
}

func (e *Engine) Formats(ctx context.Context) ([]bmlt.Format, error) {
	return cachedValue(ctx, e, bmlt.EndpointFormats, func(ctx context.Context) ([]bmlt.Format, error) {
		return e.client.GetFormats(ctx, nil)
	})
}

func (e *Engine) ServiceBodies(ctx context.Context) ([]bmlt.ServiceBody, error) {
	return cachedValue(ctx, e, bmlt.EndpointServiceBodies, func(ctx context.Context) ([]bmlt.ServiceBody, error) {
		return e.client.GetServiceBodies(ctx, nil)
	})
}

func (e *Engine) ServerInfo(ctx context.Context) (bmlt.ServerInfo, error) {
	return cachedValue(ctx, e, bmlt.EndpointServerInfo, func(ctx context.Context) (bmlt.ServerInfo, error) {
		return e.client.GetServerInfo(ctx)
	})
}

// cachedValue caches location independent lookups under the default TTL.
func cachedValue[T any](ctx context.Context, e *Engine, endpoint bmlt.Endpoint, fetch func(context.Context) (T, error)) (T, error) {
	key := keys.Response(string(endpoint), "", "")
	var v T
	if e.lookup(ctx, key, &v) {
		observability.IncCacheHit(scenarioName)
		return v, nil
	}
	observability.IncCacheMiss(scenarioName)

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	e.fill(ctx, key, v, e.ttlDefault)
	return v, nil
}

// lookup decodes a cached entry into dst. Backend and decode errors count
// as misses.
func (e *Engine) lookup(ctx context.Context, key string, dst any) bool {
	m, err := e.store.MGet(ctx, []string{key})
	if err != nil {
		e.logger.WarnContext(ctx, "cache mget error, continuing with fetch path", "err", err)
		return false
	}
	raw, ok := m[key]
	if !ok || len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		e.logger.WarnContext(ctx, "cache entry undecodable; refetching", "err", err)
		return false
	}
	return true
}

func (e *Engine) fill(ctx context.Context, key string, v any, ttl time.Duration) bool {
	body, err := json.Marshal(v)
	if err != nil {
		e.logger.WarnContext(ctx, "cache encode failed", "err", err)
		return false
	}
	if err := e.store.Set(ctx, key, body, ttl); err != nil {
		e.logger.WarnContext(ctx, "cache set failed", "err", err)
		return false
	}
	return true
}

// indexResponse records key under the search cell and under the cell of
// every returned meeting, so a change to any of them drops the entry.
func (e *Engine) indexResponse(ctx context.Context, key, cell string, meetings []bmlt.Meeting, ttl time.Duration) {
	cells := map[string]struct{}{}
	if cell != "" {
		cells[cell] = struct{}{}
	}
	for _, m := range meetings {
		if m.Latitude == 0 && m.Longitude == 0 {
			continue
		}
		c, err := e.mapr.Cell(m.Latitude, m.Longitude, e.res)
		if err != nil {
			continue
		}
		cells[c] = struct{}{}
	}
	for c := range cells {
		if err := e.index.Add(ctx, e.res, c, key, ttl); err != nil {
			e.logger.WarnContext(ctx, "cell index add failed", "cell", c, "err", err)
		}
	}
}
