// internal/service/generation_service.go
package service

import (
    "context"
    "fmt"
    "log"
    "net/mail"
    "regexp"
    "strconv"
    "strings"

    "github.com/unclebandit/mailblast-backend/internal/csvsource"
    "github.com/unclebandit/mailblast-backend/internal/model"
    "github.com/unclebandit/mailblast-backend/internal/notify"
    "github.com/unclebandit/mailblast-backend/internal/repository"
    "github.com/unclebandit/mailblast-backend/internal/storage"
)

// counterFlushInterval controls how often running counters are persisted so
// external observers see live progress.
const counterFlushInterval = 10

// GenerationService turns one batch definition plus its CSV rows into
// per-recipient messages (and personalized PDF attachments), tracking
// progress and per-row failures. Row processing is strictly sequential so
// counter updates and attachment path numbering stay deterministic.
type GenerationService struct {
    BatchRepo   repository.BatchRepositoryInterface
    MessageRepo repository.MessageRepositoryInterface
    Rows        csvsource.RowSource
    Templates   *TemplateService
    Tracking    *TrackingService
    PDF         *PDFService
    Store       storage.Storage
    Notifier    notify.Notifier
}

// GenerationResult reports one completed generation pass.
type GenerationResult struct {
    BatchID        int
    GeneratedCount int
    FailedCount    int
    Status         string
}

// Generate runs one full generation pass for the batch. It is idempotent by
// reset: all previously generated messages for the batch are purged and the
// counters start from zero. A batch already generating or sending is
// rejected with ErrBatchConflict.
func (s *GenerationService) Generate(ctx context.Context, batchID int) (*GenerationResult, error) {
    batch, err := s.BatchRepo.GetByID(batchID)
    if err != nil {
        return nil, err
    }

    rows, err := s.Rows.Rows(ctx, batch.CSVFilePath)
    if err != nil {
        s.failBatch(ctx, batch.ID, fmt.Sprintf("reading recipient CSV: %v", err))
        return nil, fmt.Errorf("reading recipient CSV for batch %d: %w", batchID, err)
    }

    if err := s.BatchRepo.BeginGeneration(batch.ID, len(rows)); err != nil {
        return nil, err
    }

    // Regeneration purges prior messages so duplicates never accumulate.
    if err := s.MessageRepo.DeleteByBatch(batch.ID); err != nil {
        s.failBatch(ctx, batch.ID, fmt.Sprintf("purging previous messages: %v", err))
        return nil, fmt.Errorf("purging previous messages for batch %d: %w", batchID, err)
    }

    var specs []*model.AttachmentSpec
    if batch.HasPersonalized {
        specs, err = s.BatchRepo.ListAttachmentSpecs(batch.ID)
        if err != nil {
            s.failBatch(ctx, batch.ID, fmt.Sprintf("loading attachment specs: %v", err))
            return nil, fmt.Errorf("loading attachment specs for batch %d: %w", batchID, err)
        }
    }

    log.Printf("🏗️ generating batch %d: %d recipients, %d attachment specs", batch.ID, len(rows), len(specs))

    generated := 0
    failed := 0

    for i, row := range rows {
        data := make(map[string]string, len(row)+2)
        for k, v := range row {
            data[k] = v
        }
        data["_index"] = strconv.Itoa(i)
        data["_batch_id"] = strconv.Itoa(batch.ID)

        msg, rowErr := s.buildMessage(ctx, batch, specs, i, data)
        if rowErr != nil {
            failed++
            log.Printf("⚠️ batch %d row %d failed: %v", batch.ID, i, rowErr)
            s.persistFailedRow(batch, data, rowErr)
        } else {
            if err := s.MessageRepo.Create(msg); err != nil {
                failed++
                log.Printf("⚠️ batch %d row %d: persisting message failed: %v", batch.ID, i, err)
                s.persistFailedRow(batch, data, err)
            } else {
                generated++
            }
        }

        if i%counterFlushInterval == 0 || i == len(rows)-1 {
            if err := s.BatchRepo.UpdateGenerationCounters(batch.ID, generated, failed); err != nil {
                log.Printf("⚠️ batch %d: counter update failed: %v", batch.ID, err)
            }
        }
    }

    // A single failed row flips the whole batch to failed so the operator
    // has to look at it before anything is sent.
    finalStatus := model.BatchStatusGenerated
    if failed > 0 {
        finalStatus = model.BatchStatusFailed
    }
    if err := s.BatchRepo.FinishGeneration(batch.ID, finalStatus, generated, failed); err != nil {
        return nil, err
    }

    s.Notifier.Notify(ctx, notify.Event{
        BatchID:        batch.ID,
        Stage:          notify.StageGeneration,
        ProcessedCount: generated,
        FailedCount:    failed,
        Status:         finalStatus,
    })

    log.Printf("✅ batch %d generation finished: generated=%d failed=%d status=%s", batch.ID, generated, failed, finalStatus)

    return &GenerationResult{
        BatchID:        batch.ID,
        GeneratedCount: generated,
        FailedCount:    failed,
        Status:         finalStatus,
    }, nil
}

// buildMessage resolves one CSV row into a pending message, generating and
// storing any personalized attachments along the way.
func (s *GenerationService) buildMessage(ctx context.Context, batch *model.Batch, specs []*model.AttachmentSpec, rowIndex int, data map[string]string) (*model.Message, error) {
    toAddress := s.Templates.Resolve(batch.ToTemplate, data)
    if err := validateAddressList(toAddress); err != nil {
        return nil, fmt.Errorf("resolving to-address %q: %w", toAddress, err)
    }

    ccAddress := ""
    if batch.CcTemplate != "" {
        ccAddress = s.Templates.Resolve(batch.CcTemplate, data)
    }
    bccAddress := ""
    if batch.BccTemplate != "" {
        bccAddress = s.Templates.Resolve(batch.BccTemplate, data)
    }

    subject := s.Templates.Resolve(batch.SubjectTemplate, data)
    body := s.Templates.Resolve(batch.BodyTemplate, data)

    recipientID := toAddress
    if batch.TrackingEnabled {
        body = s.Tracking.EmbedOpenPixel(body, batch.ID, recipientID)
    }

    attachments := []string{}
    for _, spec := range specs {
        filename := sanitizeFilename(s.Templates.Resolve(spec.FilenameTemplate, data))

        pdfBytes, err := s.PDF.Render(ctx, spec.BodyTemplate, data, spec.HeaderTemplate, spec.FooterTemplate)
        if err != nil {
            return nil, fmt.Errorf("rendering attachment %q: %w", filename, err)
        }

        // Path is keyed by batch and row index, so attachments for different
        // rows never collide even when resolved filenames do.
        path := fmt.Sprintf("personalized-attachments/batch_%d/row_%d/%s", batch.ID, rowIndex, filename)
        if err := s.Store.Put(ctx, path, pdfBytes); err != nil {
            return nil, fmt.Errorf("storing attachment %q: %w", path, err)
        }
        attachments = append(attachments, path)
    }

    // Personalized first, then the batch's static attachments.
    attachments = append(attachments, batch.AttachmentPaths...)

    return &model.Message{
        BatchID:     batch.ID,
        RecipientID: recipientID,
        ToAddress:   toAddress,
        CcAddress:   ccAddress,
        BccAddress:  bccAddress,
        Subject:     subject,
        Body:        body,
        Attachments: attachments,
        Status:      model.MessageStatusPending,
    }, nil
}

// persistFailedRow records a failed message for a row that could not be
// generated, so no row is ever silently dropped and the counters stay
// truthful. Everything here is best-effort.
func (s *GenerationService) persistFailedRow(batch *model.Batch, data map[string]string, cause error) {
    msg := &model.Message{
        BatchID:     batch.ID,
        RecipientID: s.Templates.Resolve(batch.ToTemplate, data),
        ToAddress:   s.Templates.Resolve(batch.ToTemplate, data),
        Subject:     s.Templates.Resolve(batch.SubjectTemplate, data),
        Body:        "Error during generation.",
        Status:      model.MessageStatusFailed,
        ErrorText:   "Generation failed: " + cause.Error(),
    }
    if err := s.MessageRepo.Create(msg); err != nil {
        log.Printf("⚠️ batch %d: persisting failed message also failed: %v", batch.ID, err)
    }
}

func (s *GenerationService) failBatch(ctx context.Context, batchID int, errText string) {
    if err := s.BatchRepo.UpdateStatus(batchID, model.BatchStatusFailed); err != nil {
        log.Printf("⚠️ batch %d: status update failed: %v", batchID, err)
    }
    s.Notifier.Notify(ctx, notify.Event{
        BatchID: batchID,
        Stage:   notify.StageGeneration,
        Status:  model.BatchStatusFailed,
        Error:   errText,
    })
}

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9.\-_]`)

// sanitizeFilename reduces a resolved filename to a safe character set and
// forces a .pdf extension.
func sanitizeFilename(name string) string {
    safe := unsafeFilenameRe.ReplaceAllString(name, "_")
    if !strings.HasSuffix(strings.ToLower(safe), ".pdf") {
        safe += ".pdf"
    }
    return safe
}

// validateAddressList checks a comma-separated address list resolves to at
// least one well-formed address.
func validateAddressList(addresses string) error {
    trimmed := strings.TrimSpace(addresses)
    if trimmed == "" {
        return fmt.Errorf("empty address")
    }
    for _, part := range strings.Split(trimmed, ",") {
        if _, err := mail.ParseAddress(strings.TrimSpace(part)); err != nil {
            return fmt.Errorf("invalid address %q: %w", part, err)
        }
    }
    return nil
}
