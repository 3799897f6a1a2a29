package repository

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

func batchColumns() []string {
	return []string{
		"id", "user_id", "smtp_config_id", "name", "csv_file_path", "to_template", "cc_template",
		"bcc_template", "subject_template", "body_template", "attachment_paths",
		"has_personalized_attachments", "tracking_enabled", "status", "total_recipients",
		"generated_count", "sent_count", "failed_count", "created_at", "updated_at",
	}
}

func batchRow(id int, status string) []driver.Value {
	return []driver.Value{
		id, 1, 1, "welcome", "recipients/r.csv", "[[ email ]]", "", "",
		"Hi [[ first_name ]]", "<p>Hi</p>", []byte(`["static/terms.pdf"]`),
		false, true, status, 0, 0, 0, 0, time.Now(), nil,
	}
}

func TestBatchRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := &BatchRepository{DB: db}

	mock.ExpectQuery(`INSERT INTO batches`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	b := &model.Batch{
		SMTPConfigID:    1,
		Name:            "welcome",
		CSVFilePath:     "recipients/r.csv",
		ToTemplate:      "[[ email ]]",
		SubjectTemplate: "Hi",
		BodyTemplate:    "<p>Hi</p>",
	}
	require.NoError(t, repo.Create(b))
	assert.Equal(t, 5, b.ID)
	assert.Equal(t, model.BatchStatusDraft, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryGetByID(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := &BatchRepository{DB: db}

	rows := sqlmock.NewRows(batchColumns()).AddRow(batchRow(3, model.BatchStatusGenerated)...)
	mock.ExpectQuery(`SELECT (.+) FROM batches WHERE id=\$1`).
		WithArgs(3).
		WillReturnRows(rows)

	b, err := repo.GetByID(3)
	require.NoError(t, err)
	assert.Equal(t, 3, b.ID)
	assert.Equal(t, model.BatchStatusGenerated, b.Status)
	assert.Equal(t, []string{"static/terms.pdf"}, b.AttachmentPaths)
}

func TestBatchRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := &BatchRepository{DB: db}

	mock.ExpectQuery(`SELECT (.+) FROM batches WHERE id=\$1`).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows(batchColumns()))

	_, err = repo.GetByID(99)
	require.Error(t, err)
	var notFound *appErrors.ErrBatchNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestBeginGenerationConflict(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := &BatchRepository{DB: db}

	// Conditional update touches nothing because the batch is mid-flight.
	mock.ExpectExec(`UPDATE batches`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM batches WHERE id=\$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(batchColumns()).AddRow(batchRow(3, model.BatchStatusGenerating)...))

	err = repo.BeginGeneration(3, 10)
	require.Error(t, err)
	var conflict *appErrors.ErrBatchConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, model.BatchStatusGenerating, conflict.Status)
}

func TestBeginGenerationSuccess(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := &BatchRepository{DB: db}

	mock.ExpectExec(`UPDATE batches`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.BeginGeneration(3, 10))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginSendingRejectsDraft(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := &BatchRepository{DB: db}

	mock.ExpectExec(`UPDATE batches`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM batches WHERE id=\$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(batchColumns()).AddRow(batchRow(3, model.BatchStatusDraft)...))

	err = repo.BeginSending(3)
	var conflict *appErrors.ErrBatchConflict
	require.ErrorAs(t, err, &conflict)
}

func TestFinishSending(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	repo := &BatchRepository{DB: db}

	mock.ExpectExec(`UPDATE batches SET status=\$1`).
		WithArgs(model.BatchStatusSent, 40, 0, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.FinishSending(3, model.BatchStatusSent, 40, 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}
