// Package direct forwards every proxy request to the BMLT server.
package direct

import (
	"context"
	"log/slog"

	"github.com/mohammed-shakir/bmlt-go/internal/core/config"
	"github.com/mohammed-shakir/bmlt-go/internal/core/model"
	"github.com/mohammed-shakir/bmlt-go/internal/core/router"
	"github.com/mohammed-shakir/bmlt-go/internal/mapper"
	"github.com/mohammed-shakir/bmlt-go/internal/scenarios"
	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

type Engine struct {
	logger *slog.Logger
	client *bmlt.Client

	res  int
	mapr mapper.Interface
}

var _ router.Handler = (*Engine)(nil)

func init() {
	scenarios.Register("direct", newDirect)
}

func newDirect(cfg config.Config, logger *slog.Logger, deps scenarios.Deps) (router.Handler, error) {
	return &Engine{
		logger: logger,
		client: deps.Client,
		res:    cfg.H3Res,
		mapr:   deps.Mapper,
	}, nil
}

func (e *Engine) Search(ctx context.Context, req model.SearchRequest) (model.SearchResult, error) {
	var cell string
	if e.mapr != nil && req.HasPoint() {
		c, err := e.mapr.Cell(*req.Latitude, *req.Longitude, e.res)
		if err != nil {
			e.logger.DebugContext(ctx, "h3 mapping failed", "err", err)
		} else {
			cell = c
			e.logger.DebugContext(ctx, "h3 mapping success", "res", e.res, "cell", cell)
		}
	}

	meetings, err := scenarios.Search(ctx, e.client, req, nil)
	if err != nil {
		return model.SearchResult{}, err
	}
	return model.SearchResult{Meetings: meetings, Cell: cell}, nil
}

func (e *Engine) Formats(ctx context.Context) ([]bmlt.Format, error) {
	return e.client.GetFormats(ctx, nil)
}

func (e *Engine) ServiceBodies(ctx context.Context) ([]bmlt.ServiceBody, error) {
	return e.client.GetServiceBodies(ctx, nil)
}

func (e *Engine) ServerInfo(ctx context.Context) (bmlt.ServerInfo, error) {
	return e.client.GetServerInfo(ctx)
}
