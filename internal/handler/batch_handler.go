// internal/handler/batch_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/repository"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

// BatchHandler holds the dependencies for batch-related HTTP handlers
type BatchHandler struct {
	Repo    *repository.BatchRepository
	Service *service.BatchService
}

// GetBatchHandlerWithStats returns a batch with its live message and
// tracking stats.
func (h *BatchHandler) GetBatchHandlerWithStats(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "invalid batch id", http.StatusBadRequest)
		return
	}

	details, err := h.Service.GetBatchDetailsWithStats(id)
	if err != nil {
		var notFound *appErrors.ErrBatchNotFound
		if errors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Println("❌ Error fetching batch:", err)
		http.Error(w, "failed to fetch batch: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}
