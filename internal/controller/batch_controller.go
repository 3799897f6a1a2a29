// internal/controller/batch_controller.go
package controller

import (
    "encoding/json"
    "errors"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"

    appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
    "github.com/unclebandit/mailblast-backend/internal/model"
    "github.com/unclebandit/mailblast-backend/internal/service"
)

type BatchController struct {
    BatchService *service.BatchService
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
    var notFound *appErrors.ErrBatchNotFound
    var conflict *appErrors.ErrBatchConflict
    switch {
    case errors.As(err, &notFound):
        http.Error(w, err.Error(), http.StatusNotFound)
    case errors.As(err, &conflict):
        http.Error(w, err.Error(), http.StatusConflict)
    default:
        http.Error(w, err.Error(), http.StatusInternalServerError)
    }
}

func (c *BatchController) CreateBatch(w http.ResponseWriter, r *http.Request) {
    var body struct {
        Name            string   `json:"name"`
        SMTPConfigID    int      `json:"smtp_config_id"`
        CSVFilePath     string   `json:"csv_file_path"`
        ToTemplate      string   `json:"to_template"`
        CcTemplate      string   `json:"cc_template"`
        BccTemplate     string   `json:"bcc_template"`
        SubjectTemplate string   `json:"subject_template"`
        BodyTemplate    string   `json:"body_template"`
        AttachmentPaths []string `json:"attachment_paths"`
        TrackingEnabled bool     `json:"tracking_enabled"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }

    batch, err := c.BatchService.CreateBatch(&model.Batch{
        Name:            body.Name,
        SMTPConfigID:    body.SMTPConfigID,
        CSVFilePath:     body.CSVFilePath,
        ToTemplate:      body.ToTemplate,
        CcTemplate:      body.CcTemplate,
        BccTemplate:     body.BccTemplate,
        SubjectTemplate: body.SubjectTemplate,
        BodyTemplate:    body.BodyTemplate,
        AttachmentPaths: body.AttachmentPaths,
        TrackingEnabled: body.TrackingEnabled,
    })
    if err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusCreated)
    json.NewEncoder(w).Encode(batch)
}

func (c *BatchController) ListBatches(w http.ResponseWriter, r *http.Request) {
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
    status := r.URL.Query().Get("status")

    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }

    batches, pagination, err := c.BatchService.ListBatches(page, pageSize, status)
    if err != nil {
        writeError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "data":       batches,
        "pagination": pagination,
    })
}

func (c *BatchController) GetBatchDetails(w http.ResponseWriter, r *http.Request) {
    idStr := chi.URLParam(r, "id")
    id, _ := strconv.Atoi(idStr)

    batch, err := c.BatchService.GetBatchDetails(id)
    if err != nil {
        writeError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(batch)
}

// GenerateBatch queues a generation job for the batch.
func (c *BatchController) GenerateBatch(w http.ResponseWriter, r *http.Request) {
    idStr := chi.URLParam(r, "id")
    id, _ := strconv.Atoi(idStr)

    if err := c.BatchService.EnqueueGenerate(id); err != nil {
        writeError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusAccepted)
    json.NewEncoder(w).Encode(map[string]interface{}{
        "batch_id": id,
        "status":   model.BatchStatusGenerating,
    })
}

// SendBatch queues a dispatch job for the batch.
func (c *BatchController) SendBatch(w http.ResponseWriter, r *http.Request) {
    idStr := chi.URLParam(r, "id")
    id, _ := strconv.Atoi(idStr)

    if err := c.BatchService.EnqueueSend(id); err != nil {
        writeError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusAccepted)
    json.NewEncoder(w).Encode(map[string]interface{}{
        "batch_id": id,
        "status":   model.BatchStatusSending,
    })
}

// PersonalizedPreview renders the templates against one CSV row.
func (c *BatchController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
    idStr := chi.URLParam(r, "id")
    id, _ := strconv.Atoi(idStr)

    var body struct {
        RowIndex        int     `json:"row_index"`
        OverrideSubject *string `json:"override_subject"`
        OverrideBody    *string `json:"override_body"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }

    preview, err := c.BatchService.Preview(r.Context(), id, body.RowIndex, body.OverrideSubject, body.OverrideBody)
    if err != nil {
        writeError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(preview)
}

// AddAttachmentSpec registers a personalized PDF attachment template.
func (c *BatchController) AddAttachmentSpec(w http.ResponseWriter, r *http.Request) {
    idStr := chi.URLParam(r, "id")
    id, _ := strconv.Atoi(idStr)

    var body struct {
        FilenameTemplate string `json:"filename_template"`
        HeaderTemplate   string `json:"header_template"`
        BodyTemplate     string `json:"body_template"`
        FooterTemplate   string `json:"footer_template"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }

    spec, err := c.BatchService.AddAttachmentSpec(id, &model.AttachmentSpec{
        FilenameTemplate: body.FilenameTemplate,
        HeaderTemplate:   body.HeaderTemplate,
        BodyTemplate:     body.BodyTemplate,
        FooterTemplate:   body.FooterTemplate,
    })
    if err != nil {
        writeError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusCreated)
    json.NewEncoder(w).Encode(spec)
}
