package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// TailSubscriber is the read side of the live-tail fan-out.
type TailSubscriber interface {
	Subscribe(ctx context.Context, tenantID string) (<-chan []byte, func())
}

// TailHandler streams freshly ingested records for one tenant as
// server-sent events.
type TailHandler struct {
	subscriber TailSubscriber
	logger     *slog.Logger
}

// NewTailHandler creates a TailHandler.
func NewTailHandler(subscriber TailSubscriber, logger *slog.Logger) *TailHandler {
	return &TailHandler{subscriber: subscriber, logger: logger}
}

// ServeHTTP handles GET /v1/logs/tail?tenant_id=...
func (h *TailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "tenant_id is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := h.subscriber.Subscribe(r.Context(), tenantID)
	defer cancel()

	h.logger.Info("tail client connected", "tenant_id", tenantID)
	defer h.logger.Info("tail client disconnected", "tenant_id", tenantID)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
