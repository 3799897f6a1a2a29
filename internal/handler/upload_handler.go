// internal/handler/upload_handler.go
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/unclebandit/mailblast-backend/internal/storage"
)

// maxCSVUploadBytes caps recipient CSV uploads at 20 MB.
const maxCSVUploadBytes = 20 << 20

// UploadHandler stores uploaded recipient CSV files and hands back the
// storage path a batch definition refers to.
type UploadHandler struct {
	Store storage.Storage
}

// UploadCSV handles POST /uploads/csv with a multipart "file" field. The
// stored name is a fresh UUID so concurrent uploads never collide.
func (h *UploadHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCSVUploadBytes)
	if err := r.ParseMultipartForm(maxCSVUploadBytes); err != nil {
		http.Error(w, "invalid multipart body: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		http.Error(w, "only .csv files are accepted", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty file", http.StatusBadRequest)
		return
	}

	path := fmt.Sprintf("recipients/%s.csv", uuid.NewString())
	if err := h.Store.Put(r.Context(), path, data); err != nil {
		http.Error(w, "failed to store file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"csv_file_path": path,
		"filename":      header.Filename,
	})
}
