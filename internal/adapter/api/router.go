package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loghorn/loghorn/internal/adapter/api/handler"
	"github.com/loghorn/loghorn/internal/adapter/api/middleware"
	"github.com/loghorn/loghorn/internal/usecase"
)

// NewRouter assembles the query-side HTTP surface. tail may be nil when live
// tail is not configured; the endpoint is simply not mounted then.
func NewRouter(queryUC *usecase.QueryUseCase, tail handler.TailSubscriber, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(logger))

	r.Method(http.MethodPost, "/v1/logs/query", handler.NewQueryHandler(queryUC, logger))
	if tail != nil {
		r.Method(http.MethodGet, "/v1/logs/tail", handler.NewTailHandler(tail, logger))
	}

	return r
}
