// internal/errors/errors.go
package appErrors

import "fmt"

// ErrBatchNotFound is a sentinel error
type ErrBatchNotFound struct {
    BatchID int
}

func (e *ErrBatchNotFound) Error() string {
    return fmt.Sprintf("batch with ID %d not found", e.BatchID)
}

// Helper constructor
func NewBatchNotFound(id int) error {
    return &ErrBatchNotFound{BatchID: id}
}

// ErrBatchConflict signals that a batch is already being processed and a
// second generate/send request must be rejected rather than queued.
type ErrBatchConflict struct {
    BatchID int
    Status  string
}

func (e *ErrBatchConflict) Error() string {
    return fmt.Sprintf("batch %d is already %s", e.BatchID, e.Status)
}

func NewBatchConflict(id int, status string) error {
    return &ErrBatchConflict{BatchID: id, Status: status}
}

// ErrSMTPConfigNotFound is returned when a batch references a missing
// SMTP configuration.
type ErrSMTPConfigNotFound struct {
    ConfigID int
}

func (e *ErrSMTPConfigNotFound) Error() string {
    return fmt.Sprintf("smtp configuration with ID %d not found", e.ConfigID)
}

func NewSMTPConfigNotFound(id int) error {
    return &ErrSMTPConfigNotFound{ConfigID: id}
}
