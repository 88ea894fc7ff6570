package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/loghorn/loghorn/internal/domain"
	"github.com/loghorn/loghorn/internal/usecase"
)

// QueryHandler serves the read path over HTTP.
type QueryHandler struct {
	useCase *usecase.QueryUseCase
	logger  *slog.Logger
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(uc *usecase.QueryUseCase, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{useCase: uc, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles POST /v1/logs/query.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var filter domain.QueryFilter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.useCase.Query(r.Context(), filter)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFilter) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		h.logger.Error("query failed", "error", err, "tenant_id", filter.TenantID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query failed"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
