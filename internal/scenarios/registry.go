// Package scenarios holds the request handlers the proxy can run with.
// Scenario packages register themselves from init.
package scenarios

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/bmlt-go/internal/cache"
	"github.com/mohammed-shakir/bmlt-go/internal/cache/cellindex"
	"github.com/mohammed-shakir/bmlt-go/internal/core/config"
	"github.com/mohammed-shakir/bmlt-go/internal/core/model"
	"github.com/mohammed-shakir/bmlt-go/internal/core/router"
	"github.com/mohammed-shakir/bmlt-go/internal/hotness"
	"github.com/mohammed-shakir/bmlt-go/internal/mapper"
	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

// Deps are built once in main and shared with the invalidation consumer.
// Only Client is required by every scenario.
type Deps struct {
	Client *bmlt.Client
	Store  cache.Interface
	Index  *cellindex.Index
	Mapper mapper.Interface
	Hot    hotness.Interface
}

type Factory func(cfg config.Config, logger *slog.Logger, deps Deps) (router.Handler, error)

var reg = map[string]Factory{}

func Register(name string, f Factory) {
	reg[name] = f
}

func New(name string, cfg config.Config, logger *slog.Logger, deps Deps) (router.Handler, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("scenario %q: nil BMLT client", name)
	}
	if f, ok := reg[name]; ok {
		return f(cfg, logger, deps)
	}
	if f, ok := reg["direct"]; ok {
		logger.Warn("unknown scenario; falling back to direct", "scenario", name)
		return f(cfg, logger, deps)
	}
	return nil, fmt.Errorf("no factory for scenario %q and no direct registered", name)
}

// Search runs req against the server without any caching. at, when non-nil,
// replaces the request's own location.
func Search(ctx context.Context, client *bmlt.Client, req model.SearchRequest, at *bmlt.Coordinates) ([]bmlt.Meeting, error) {
	q := req.Filters(bmlt.NewMeetingQuery(client))
	switch {
	case at != nil:
		return req.Near(q, *at).Execute(ctx)
	case req.HasPoint():
		return req.Near(q, req.Point()).Execute(ctx)
	case req.Address != "":
		return client.SearchMeetingsByAddress(ctx, req.Address, req.Miles(), req.RadiusKm, true, q.Params())
	default:
		return q.Execute(ctx)
	}
}
