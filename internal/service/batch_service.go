// internal/service/batch_service.go
package service

import (
    "context"
    "fmt"
    "log"
    "strings"

    "github.com/unclebandit/mailblast-backend/internal/csvsource"
    appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
    "github.com/unclebandit/mailblast-backend/internal/model"
    "github.com/unclebandit/mailblast-backend/internal/queue"
    "github.com/unclebandit/mailblast-backend/internal/repository"
)

type BatchService struct {
    BatchRepo    repository.BatchRepositoryInterface
    MessageRepo  repository.MessageRepositoryInterface
    TrackingRepo repository.TrackingEventRepositoryInterface
    Rows         csvsource.RowSource
    Templates    *TemplateService
    Queue        queue.Queue
}

// BatchDetails is a batch plus its live per-message and tracking stats.
type BatchDetails struct {
    Batch    *model.Batch   `json:"batch"`
    Messages map[string]int `json:"messages"`
    Tracking map[string]int `json:"tracking"`
}

// PreviewResult is one CSV row rendered through the batch templates without
// persisting anything.
type PreviewResult struct {
    RowIndex int    `json:"row_index"`
    To       string `json:"to"`
    Cc       string `json:"cc,omitempty"`
    Bcc      string `json:"bcc,omitempty"`
    Subject  string `json:"subject"`
    Body     string `json:"body"`
}

func (s *BatchService) CreateBatch(b *model.Batch) (*model.Batch, error) {
    if strings.TrimSpace(b.Name) == "" {
        return nil, fmt.Errorf("batch name is required")
    }
    if strings.TrimSpace(b.CSVFilePath) == "" {
        return nil, fmt.Errorf("csv_file_path is required")
    }
    if strings.TrimSpace(b.ToTemplate) == "" {
        return nil, fmt.Errorf("to_template is required")
    }
    if strings.TrimSpace(b.SubjectTemplate) == "" {
        return nil, fmt.Errorf("subject_template is required")
    }
    if strings.TrimSpace(b.BodyTemplate) == "" {
        return nil, fmt.Errorf("body_template is required")
    }
    if b.SMTPConfigID == 0 {
        return nil, fmt.Errorf("smtp_config_id is required")
    }

    b.Status = model.BatchStatusDraft
    if err := s.BatchRepo.Create(b); err != nil {
        return nil, err
    }
    return b, nil
}

func (s *BatchService) AddAttachmentSpec(batchID int, spec *model.AttachmentSpec) (*model.AttachmentSpec, error) {
    batch, err := s.BatchRepo.GetByID(batchID)
    if err != nil {
        return nil, err
    }
    if strings.TrimSpace(spec.FilenameTemplate) == "" {
        return nil, fmt.Errorf("filename_template is required")
    }
    if strings.TrimSpace(spec.BodyTemplate) == "" {
        return nil, fmt.Errorf("body_template is required")
    }

    spec.BatchID = batch.ID
    if err := s.BatchRepo.CreateAttachmentSpec(spec); err != nil {
        return nil, err
    }

    if !batch.HasPersonalized {
        batch.HasPersonalized = true
        if err := s.BatchRepo.Update(batch); err != nil {
            return nil, err
        }
    }
    return spec, nil
}

// ListBatches fetches batches with pagination
func (s *BatchService) ListBatches(page, pageSize int, status string) ([]model.Batch, map[string]int, error) {
    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }
    if pageSize > 100 {
        pageSize = 100
    }
    offset := (page - 1) * pageSize

    ptrs, total, err := s.BatchRepo.ListBatches(offset, pageSize, status)
    if err != nil {
        return nil, nil, err
    }

    batches := make([]model.Batch, len(ptrs))
    for i, b := range ptrs {
        batches[i] = *b
    }

    totalPages := (total + pageSize - 1) / pageSize
    pagination := map[string]int{
        "page":        page,
        "page_size":   pageSize,
        "total_count": total,
        "total_pages": totalPages,
    }

    return batches, pagination, nil
}

// GetBatchDetails fetches a batch by ID
func (s *BatchService) GetBatchDetails(id int) (*model.Batch, error) {
    return s.BatchRepo.GetByID(id)
}

func (s *BatchService) GetBatchDetailsWithStats(batchID int) (*BatchDetails, error) {
    batch, err := s.BatchRepo.GetByID(batchID)
    if err != nil {
        return nil, err
    }

    messageStats, err := s.MessageRepo.CountByStatus(batchID)
    if err != nil {
        return nil, err
    }
    total := 0
    for _, count := range messageStats {
        total += count
    }
    messageStats["total"] = total

    events, err := s.TrackingRepo.ListByBatch(batchID)
    if err != nil {
        return nil, err
    }

    tracking := map[string]int{
        "opens":         0,
        "clicks":        0,
        "unique_opens":  0,
        "unique_clicks": 0,
    }
    seenOpens := map[string]bool{}
    seenClicks := map[string]bool{}
    for _, ev := range events {
        switch ev.Type {
        case model.TrackingEventOpen:
            tracking["opens"]++
            if !seenOpens[ev.RecipientID] {
                seenOpens[ev.RecipientID] = true
                tracking["unique_opens"]++
            }
        case model.TrackingEventClick:
            tracking["clicks"]++
            if !seenClicks[ev.RecipientID] {
                seenClicks[ev.RecipientID] = true
                tracking["unique_clicks"]++
            }
        }
    }

    return &BatchDetails{
        Batch:    batch,
        Messages: messageStats,
        Tracking: tracking,
    }, nil
}

// Preview renders the batch templates against one CSV row without touching
// messages or counters. Override templates, when present, replace the stored
// subject/body for this render only.
func (s *BatchService) Preview(ctx context.Context, batchID, rowIndex int, overrideSubject, overrideBody *string) (*PreviewResult, error) {
    batch, err := s.BatchRepo.GetByID(batchID)
    if err != nil {
        return nil, err
    }

    rows, err := s.Rows.Rows(ctx, batch.CSVFilePath)
    if err != nil {
        return nil, fmt.Errorf("reading recipient CSV: %w", err)
    }
    if rowIndex < 0 || rowIndex >= len(rows) {
        return nil, fmt.Errorf("row index %d out of range (%d rows)", rowIndex, len(rows))
    }
    data := rows[rowIndex]

    subjectTemplate := batch.SubjectTemplate
    if overrideSubject != nil && strings.TrimSpace(*overrideSubject) != "" {
        subjectTemplate = *overrideSubject
    }
    bodyTemplate := batch.BodyTemplate
    if overrideBody != nil && strings.TrimSpace(*overrideBody) != "" {
        bodyTemplate = *overrideBody
    }

    result := &PreviewResult{
        RowIndex: rowIndex,
        To:       s.Templates.Resolve(batch.ToTemplate, data),
        Subject:  s.Templates.Resolve(subjectTemplate, data),
        Body:     s.Templates.Resolve(bodyTemplate, data),
    }
    if batch.CcTemplate != "" {
        result.Cc = s.Templates.Resolve(batch.CcTemplate, data)
    }
    if batch.BccTemplate != "" {
        result.Bcc = s.Templates.Resolve(batch.BccTemplate, data)
    }
    return result, nil
}

// EnqueueGenerate queues a generation job for the batch. Conflicting states
// are rejected here so the API caller gets immediate feedback instead of a
// job that dies later.
func (s *BatchService) EnqueueGenerate(batchID int) error {
    batch, err := s.BatchRepo.GetByID(batchID)
    if err != nil {
        return err
    }
    if batch.Status == model.BatchStatusGenerating || batch.Status == model.BatchStatusSending {
        return appErrors.NewBatchConflict(batch.ID, batch.Status)
    }

    if err := s.Queue.Publish(queue.TopicBatchGenerate, batch.ID); err != nil {
        log.Println("⚠️ failed to enqueue generation for batch", batch.ID, ":", err)
        return err
    }
    log.Println("📬 queued generation for batch", batch.ID)
    return nil
}

// EnqueueSend queues a dispatch job. Only a generated batch, or a sending
// one being resumed, may be queued.
func (s *BatchService) EnqueueSend(batchID int) error {
    batch, err := s.BatchRepo.GetByID(batchID)
    if err != nil {
        return err
    }
    if batch.Status != model.BatchStatusGenerated && batch.Status != model.BatchStatusSending {
        return appErrors.NewBatchConflict(batch.ID, batch.Status)
    }

    if err := s.Queue.Publish(queue.TopicBatchSend, batch.ID); err != nil {
        log.Println("⚠️ failed to enqueue dispatch for batch", batch.ID, ":", err)
        return err
    }
    log.Println("📬 queued dispatch for batch", batch.ID)
    return nil
}
