package repository

import (
    "database/sql"
    "encoding/json"
    "fmt"
    "time"

    appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
    "github.com/unclebandit/mailblast-backend/internal/model"
)

type BatchRepositoryInterface interface {
    // Batch CRUD
    Create(b *model.Batch) error
    GetByID(id int) (*model.Batch, error)
    Update(b *model.Batch) error
    UpdateStatus(batchID int, status string) error
    ListBatches(offset, limit int, status string) ([]*model.Batch, int, error)

    // Lifecycle transitions
    BeginGeneration(batchID, totalRecipients int) error
    BeginSending(batchID int) error

    // Counters
    UpdateGenerationCounters(batchID, generated, failed int) error
    FinishGeneration(batchID int, status string, generated, failed int) error
    FinishSending(batchID int, status string, sent, failed int) error

    // Attachment specs
    ListAttachmentSpecs(batchID int) ([]*model.AttachmentSpec, error)
    CreateAttachmentSpec(spec *model.AttachmentSpec) error
}

type BatchRepository struct {
    DB *sql.DB
}

// ====================== Batch CRUD ======================

func (r *BatchRepository) Create(b *model.Batch) error {
    b.CreatedAt = time.Now()
    if b.Status == "" {
        b.Status = model.BatchStatusDraft
    }
    attachments, err := json.Marshal(b.AttachmentPaths)
    if err != nil {
        return err
    }
    query := `
        INSERT INTO batches
        (user_id, smtp_config_id, name, csv_file_path, to_template, cc_template, bcc_template,
         subject_template, body_template, attachment_paths, has_personalized_attachments,
         tracking_enabled, status, total_recipients, generated_count, sent_count, failed_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, 0, 0, 0, $14)
        RETURNING id
    `
    return r.DB.QueryRow(query,
        b.UserID, b.SMTPConfigID, b.Name, b.CSVFilePath, b.ToTemplate, b.CcTemplate, b.BccTemplate,
        b.SubjectTemplate, b.BodyTemplate, attachments, b.HasPersonalized,
        b.TrackingEnabled, b.Status, b.CreatedAt,
    ).Scan(&b.ID)
}

func (r *BatchRepository) GetByID(id int) (*model.Batch, error) {
    query := `
        SELECT id, user_id, smtp_config_id, name, csv_file_path, to_template, cc_template, bcc_template,
               subject_template, body_template, attachment_paths, has_personalized_attachments,
               tracking_enabled, status, total_recipients, generated_count, sent_count, failed_count,
               created_at, updated_at
        FROM batches WHERE id=$1
    `
    var b model.Batch
    var attachments []byte
    err := r.DB.QueryRow(query, id).Scan(
        &b.ID, &b.UserID, &b.SMTPConfigID, &b.Name, &b.CSVFilePath, &b.ToTemplate, &b.CcTemplate, &b.BccTemplate,
        &b.SubjectTemplate, &b.BodyTemplate, &attachments, &b.HasPersonalized,
        &b.TrackingEnabled, &b.Status, &b.TotalRecipients, &b.GeneratedCount, &b.SentCount, &b.FailedCount,
        &b.CreatedAt, &b.UpdatedAt,
    )
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewBatchNotFound(id)
        }
        return nil, err
    }
    if len(attachments) > 0 {
        if err := json.Unmarshal(attachments, &b.AttachmentPaths); err != nil {
            return nil, err
        }
    }
    return &b, nil
}

func (r *BatchRepository) Update(b *model.Batch) error {
    attachments, err := json.Marshal(b.AttachmentPaths)
    if err != nil {
        return err
    }
    query := `
        UPDATE batches
        SET name=$1, subject_template=$2, body_template=$3, to_template=$4, cc_template=$5,
            bcc_template=$6, attachment_paths=$7, tracking_enabled=$8, status=$9, updated_at=NOW()
        WHERE id=$10
    `
    _, err = r.DB.Exec(query, b.Name, b.SubjectTemplate, b.BodyTemplate, b.ToTemplate, b.CcTemplate,
        b.BccTemplate, attachments, b.TrackingEnabled, b.Status, b.ID)
    return err
}

func (r *BatchRepository) UpdateStatus(batchID int, status string) error {
    query := `UPDATE batches SET status=$1, updated_at=$2 WHERE id=$3`
    _, err := r.DB.Exec(query, status, time.Now(), batchID)
    return err
}

func (r *BatchRepository) ListBatches(offset, limit int, status string) ([]*model.Batch, int, error) {
    batches := []*model.Batch{}
    query := `SELECT id, user_id, smtp_config_id, name, status, total_recipients, generated_count,
                     sent_count, failed_count, tracking_enabled, created_at, updated_at
              FROM batches WHERE 1=1`
    args := []interface{}{}
    argPos := 1

    if status != "" {
        query += fmt.Sprintf(" AND status=$%d", argPos)
        args = append(args, status)
        argPos++
    }

    query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
    args = append(args, limit, offset)

    rows, err := r.DB.Query(query, args...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()

    for rows.Next() {
        b := &model.Batch{}
        if err := rows.Scan(&b.ID, &b.UserID, &b.SMTPConfigID, &b.Name, &b.Status, &b.TotalRecipients,
            &b.GeneratedCount, &b.SentCount, &b.FailedCount, &b.TrackingEnabled, &b.CreatedAt, &b.UpdatedAt); err != nil {
            return nil, 0, err
        }
        batches = append(batches, b)
    }

    // Count total
    countQuery := `SELECT COUNT(*) FROM batches WHERE 1=1`
    argsCount := []interface{}{}
    if status != "" {
        countQuery += " AND status=$1"
        argsCount = append(argsCount, status)
    }

    var total int
    if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
        return nil, 0, err
    }

    return batches, total, nil
}

// ====================== Lifecycle transitions ======================

// BeginGeneration moves a batch into 'generating' and resets its counters.
// A batch already generating or sending is rejected with ErrBatchConflict,
// never queued silently behind the in-flight pass.
func (r *BatchRepository) BeginGeneration(batchID, totalRecipients int) error {
    query := `
        UPDATE batches
        SET status=$1, total_recipients=$2, generated_count=0, failed_count=0, updated_at=NOW()
        WHERE id=$3 AND status NOT IN ($4, $5)
    `
    res, err := r.DB.Exec(query, model.BatchStatusGenerating, totalRecipients, batchID,
        model.BatchStatusGenerating, model.BatchStatusSending)
    if err != nil {
        return err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        b, getErr := r.GetByID(batchID)
        if getErr != nil {
            return getErr
        }
        return appErrors.NewBatchConflict(batchID, b.Status)
    }
    return nil
}

// BeginSending moves a generated batch into 'sending' and resets the send
// counters. Restarting an interrupted 'sending' pass is allowed; anything
// else is a conflict.
func (r *BatchRepository) BeginSending(batchID int) error {
    query := `
        UPDATE batches
        SET status=$1, sent_count=0, failed_count=0, updated_at=NOW()
        WHERE id=$2 AND status IN ($3, $4)
    `
    res, err := r.DB.Exec(query, model.BatchStatusSending, batchID,
        model.BatchStatusGenerated, model.BatchStatusSending)
    if err != nil {
        return err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        b, getErr := r.GetByID(batchID)
        if getErr != nil {
            return getErr
        }
        return appErrors.NewBatchConflict(batchID, b.Status)
    }
    return nil
}

// ====================== Counters ======================

func (r *BatchRepository) UpdateGenerationCounters(batchID, generated, failed int) error {
    query := `UPDATE batches SET generated_count=$1, failed_count=$2, updated_at=NOW() WHERE id=$3`
    _, err := r.DB.Exec(query, generated, failed, batchID)
    return err
}

func (r *BatchRepository) FinishGeneration(batchID int, status string, generated, failed int) error {
    query := `UPDATE batches SET status=$1, generated_count=$2, failed_count=$3, updated_at=NOW() WHERE id=$4`
    _, err := r.DB.Exec(query, status, generated, failed, batchID)
    return err
}

func (r *BatchRepository) FinishSending(batchID int, status string, sent, failed int) error {
    query := `UPDATE batches SET status=$1, sent_count=$2, failed_count=$3, updated_at=NOW() WHERE id=$4`
    _, err := r.DB.Exec(query, status, sent, failed, batchID)
    return err
}

// ====================== Attachment specs ======================

func (r *BatchRepository) ListAttachmentSpecs(batchID int) ([]*model.AttachmentSpec, error) {
    query := `
        SELECT id, batch_id, filename_template, header_template, body_template, footer_template, created_at
        FROM attachment_specs WHERE batch_id=$1 ORDER BY id
    `
    rows, err := r.DB.Query(query, batchID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    specs := []*model.AttachmentSpec{}
    for rows.Next() {
        s := &model.AttachmentSpec{}
        if err := rows.Scan(&s.ID, &s.BatchID, &s.FilenameTemplate, &s.HeaderTemplate,
            &s.BodyTemplate, &s.FooterTemplate, &s.CreatedAt); err != nil {
            return nil, err
        }
        specs = append(specs, s)
    }
    return specs, nil
}

func (r *BatchRepository) CreateAttachmentSpec(spec *model.AttachmentSpec) error {
    spec.CreatedAt = time.Now()
    query := `
        INSERT INTO attachment_specs (batch_id, filename_template, header_template, body_template, footer_template, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
    return r.DB.QueryRow(query, spec.BatchID, spec.FilenameTemplate, spec.HeaderTemplate,
        spec.BodyTemplate, spec.FooterTemplate, spec.CreatedAt).Scan(&spec.ID)
}

var _ BatchRepositoryInterface = (*BatchRepository)(nil)
