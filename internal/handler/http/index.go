package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AlamKhalidDev/product-search/internal/service"
	"github.com/AlamKhalidDev/product-search/pkg/httputil"
	"github.com/AlamKhalidDev/product-search/pkg/validator"
)

// IndexHandler handles the ingestion endpoints.
type IndexHandler struct {
	service *service.SearchService
	logger  *slog.Logger

	// reindexed is called when a background reindex finishes (used in tests).
	reindexed func(count int, err error)
}

// NewIndexHandler creates a new ingestion HTTP handler.
func NewIndexHandler(svc *service.SearchService, logger *slog.Logger) *IndexHandler {
	return &IndexHandler{service: svc, logger: logger}
}

// BulkIndexRequest is the JSON request body for bulk indexing products.
type BulkIndexRequest struct {
	Products []service.ProductInput `json:"products" validate:"required,min=1,max=1000"`
}

// IndexProduct handles POST /api/v1/products
func (h *IndexHandler) IndexProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req service.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := h.service.IndexProduct(r.Context(), &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": req.ID, "status": "indexed"}})
}

// DeleteProduct handles DELETE /api/v1/products/{id}
func (h *IndexHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "deleted"}})
}

// BulkIndex handles POST /api/v1/index/bulk
func (h *IndexHandler) BulkIndex(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)

	var req BulkIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	n, err := h.service.BulkIndex(r.Context(), req.Products)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"indexed": n,
		"skipped": len(req.Products) - n,
		"status":  "ok",
	}})
}

// Reindex handles POST /api/v1/index. The rebuild runs in the background.
func (h *IndexHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	go func() {
		n, err := h.service.Reindex(ctx)
		if err != nil {
			h.logger.ErrorContext(ctx, "background reindex failed", slog.String("error", err.Error()))
		}
		if h.reindexed != nil {
			h.reindexed(n, err)
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]string{"status": "reindex started"}})
}
