package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"

	upstreamOK          = "ok"
	upstreamUnreachable = "unreachable"
)

// Pinger probes the upstream resource server.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type Handler struct {
	upstream   Pinger
	log        *slog.Logger
	middleware huma.Middlewares
}

// NewHandler builds the health handler. A nil upstream skips the
// reachability probe and reports liveness only.
func NewHandler(upstream Pinger, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		upstream:   upstream,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	resp := Response{Status: statusOK}
	if h.upstream != nil {
		if err := h.upstream.HealthCheck(ctx); err != nil {
			h.log.Warn("upstream health probe failed", "error", err)
			resp.Status = statusDegraded
			resp.Upstream = upstreamUnreachable
		} else {
			resp.Upstream = upstreamOK
		}
	}

	return &Output{Body: resp}, nil
}
