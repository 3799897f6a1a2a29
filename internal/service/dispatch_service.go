// internal/service/dispatch_service.go
package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strings"
    "sync/atomic"
    "time"

    "golang.org/x/sync/errgroup"

    "github.com/unclebandit/mailblast-backend/internal/mailer"
    "github.com/unclebandit/mailblast-backend/internal/model"
    "github.com/unclebandit/mailblast-backend/internal/notify"
    "github.com/unclebandit/mailblast-backend/internal/repository"
    "github.com/unclebandit/mailblast-backend/internal/storage"
    "github.com/unclebandit/mailblast-backend/internal/throttle"
)

type sendOutcome int

const (
    outcomeSent sendOutcome = iota
    outcomeFailed
    outcomeSkipped // cancelled before transport I/O, message left pending
)

// DispatchService sends every pending message of a batch through the batch's
// SMTP configuration, with per-message retries, bounded wall-clock time and
// final status aggregation. Re-invoking it after a partial failure only
// processes remaining pending messages.
type DispatchService struct {
    BatchRepo   repository.BatchRepositoryInterface
    MessageRepo repository.MessageRepositoryInterface
    SMTPRepo    repository.SMTPConfigRepositoryInterface
    Store       storage.Storage
    Transport   mailer.Transport
    Tracking    *TrackingService
    Throttler   *throttle.Throttler
    Notifier    notify.Notifier

    Workers        int
    MaxAttempts    int
    Backoff        []time.Duration
    SendTimeout    time.Duration
    MonitorTimeout time.Duration
}

// Dispatch runs one dispatch pass over the batch's pending messages. The
// whole pass is bounded by MonitorTimeout; stragglers past the deadline are
// forced into failed. External cancellation leaves untouched messages in
// pending and the batch in sending for a later resume.
func (s *DispatchService) Dispatch(ctx context.Context, batchID int) error {
    batch, err := s.BatchRepo.GetByID(batchID)
    if err != nil {
        return err
    }

    if err := s.BatchRepo.BeginSending(batch.ID); err != nil {
        return err
    }

    pending, err := s.MessageRepo.ListPendingByBatch(batch.ID)
    if err != nil {
        return err
    }

    if len(pending) == 0 {
        log.Printf("📭 batch %d: no pending messages to send", batch.ID)
        if err := s.BatchRepo.FinishSending(batch.ID, model.BatchStatusSent, 0, 0); err != nil {
            return err
        }
        s.Notifier.Notify(ctx, notify.Event{
            BatchID: batch.ID,
            Stage:   notify.StageDispatch,
            Status:  model.BatchStatusSent,
        })
        return nil
    }

    log.Printf("📤 dispatching batch %d: %d pending messages", batch.ID, len(pending))

    groupCtx, cancel := context.WithTimeout(ctx, s.monitorTimeout())
    defer cancel()

    var sent, failed, skipped atomic.Int64

    g := &errgroup.Group{}
    g.SetLimit(s.workers())

    for _, msg := range pending {
        msg := msg
        g.Go(func() error {
            switch s.sendOne(groupCtx, batch, msg) {
            case outcomeSent:
                sent.Add(1)
            case outcomeFailed:
                failed.Add(1)
            case outcomeSkipped:
                skipped.Add(1)
            }
            return nil
        })
    }
    g.Wait()

    if skipped.Load() > 0 && ctx.Err() != nil {
        // Externally cancelled: skipped messages stay pending, the batch
        // stays sending, and a future dispatch resumes where we stopped.
        log.Printf("🛑 batch %d dispatch cancelled: sent=%d failed=%d pending=%d",
            batch.ID, sent.Load(), failed.Load(), skipped.Load())
        return ctx.Err()
    }

    finalStatus := model.BatchStatusSent
    if failed.Load() > 0 {
        finalStatus = model.BatchStatusFailed
    }
    if err := s.BatchRepo.FinishSending(batch.ID, finalStatus, int(sent.Load()), int(failed.Load())); err != nil {
        return err
    }

    s.Notifier.Notify(ctx, notify.Event{
        BatchID:        batch.ID,
        Stage:          notify.StageDispatch,
        ProcessedCount: int(sent.Load()),
        FailedCount:    int(failed.Load()),
        Status:         finalStatus,
    })

    log.Printf("✅ batch %d dispatch finished: sent=%d failed=%d status=%s",
        batch.ID, sent.Load(), failed.Load(), finalStatus)
    return nil
}

// sendOne is the independently retryable unit for a single message. It is
// the only writer of that message's status, sent_at and error text.
func (s *DispatchService) sendOne(ctx context.Context, batch *model.Batch, msg *model.Message) sendOutcome {
    // Observe cancellation before any transport I/O.
    if outcome, done := s.checkCancelled(ctx, msg, "before send"); done {
        return outcome
    }

    // Transport credentials are fetched per send and discarded with this
    // call frame, never cached across sends.
    smtpCfg, err := s.SMTPRepo.GetByID(batch.SMTPConfigID)
    if err != nil {
        s.markFailed(msg, fmt.Sprintf("loading smtp configuration: %v", err))
        return outcomeFailed
    }

    // Tracking is finalized at send time, not generation time, so tracking
    // configuration changes between the two passes are honored.
    body := msg.Body
    if batch.TrackingEnabled && s.Tracking.Enabled() {
        body = s.Tracking.RewriteLinks(body, batch.ID, msg.RecipientID)
        body = s.Tracking.EmbedOpenPixel(body, batch.ID, msg.RecipientID)
    }

    outbound := mailer.Outbound{
        To:       splitAddressList(msg.ToAddress),
        Cc:       splitAddressList(msg.CcAddress),
        Bcc:      splitAddressList(msg.BccAddress),
        Subject:  msg.Subject,
        HTMLBody: body,
    }

    // Attachments missing from storage are logged and skipped rather than
    // aborting the whole message.
    for _, path := range msg.Attachments {
        data, err := s.Store.Get(ctx, path)
        if err != nil {
            log.Printf("⚠️ message %d: attachment %s missing, skipping: %v", msg.ID, path, err)
            continue
        }
        outbound.Attachments = append(outbound.Attachments, mailer.Attachment{
            Name: baseName(path),
            Data: data,
        })
    }

    var lastErr error
    for attempt := 1; attempt <= s.maxAttempts(); attempt++ {
        if outcome, done := s.checkCancelled(ctx, msg, fmt.Sprintf("attempt %d", attempt)); done {
            return outcome
        }

        if err := s.Throttler.Wait(ctx, smtpCfg.Host); err != nil {
            if outcome, done := s.checkCancelled(ctx, msg, "throttled"); done {
                return outcome
            }
        }

        sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout())
        lastErr = s.Transport.Send(sendCtx, smtpCfg, outbound)
        cancel()

        if lastErr == nil {
            now := time.Now()
            if err := s.MessageRepo.MarkSent(msg.ID, now); err != nil {
                log.Printf("⚠️ message %d: sent but status update failed: %v", msg.ID, err)
            }
            return outcomeSent
        }

        log.Printf("⚠️ message %d send attempt %d/%d failed: %v", msg.ID, attempt, s.maxAttempts(), lastErr)

        if attempt < s.maxAttempts() {
            select {
            case <-ctx.Done():
                // Mid-retry deadline or cancellation is resolved below.
            case <-time.After(s.backoffFor(attempt)):
            }
        }
    }

    s.markFailed(msg, lastErr.Error())
    return outcomeFailed
}

// checkCancelled distinguishes the two ways a unit stops early: the group
// deadline forces the message into failed, external cancellation leaves it
// pending for a future retry.
func (s *DispatchService) checkCancelled(ctx context.Context, msg *model.Message, where string) (sendOutcome, bool) {
    switch {
    case ctx.Err() == nil:
        return 0, false
    case errors.Is(ctx.Err(), context.DeadlineExceeded):
        s.markFailed(msg, "dispatch deadline exceeded")
        return outcomeFailed, true
    default:
        log.Printf("🛑 message %d: cancelled %s, left pending", msg.ID, where)
        return outcomeSkipped, true
    }
}

func (s *DispatchService) markFailed(msg *model.Message, errorText string) {
    if err := s.MessageRepo.MarkFailed(msg.ID, errorText); err != nil {
        log.Printf("⚠️ message %d: failure status update failed: %v", msg.ID, err)
    }
}

func (s *DispatchService) workers() int {
    if s.Workers <= 0 {
        return 8
    }
    return s.Workers
}

func (s *DispatchService) maxAttempts() int {
    if s.MaxAttempts <= 0 {
        return 3
    }
    return s.MaxAttempts
}

func (s *DispatchService) backoffFor(attempt int) time.Duration {
    backoff := s.Backoff
    if len(backoff) == 0 {
        backoff = []time.Duration{60 * time.Second, 120 * time.Second}
    }
    if attempt-1 < len(backoff) {
        return backoff[attempt-1]
    }
    return backoff[len(backoff)-1]
}

func (s *DispatchService) sendTimeout() time.Duration {
    if s.SendTimeout <= 0 {
        return 120 * time.Second
    }
    return s.SendTimeout
}

func (s *DispatchService) monitorTimeout() time.Duration {
    if s.MonitorTimeout <= 0 {
        return time.Hour
    }
    return s.MonitorTimeout
}

func splitAddressList(addresses string) []string {
    if strings.TrimSpace(addresses) == "" {
        return nil
    }
    parts := strings.Split(addresses, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        if trimmed := strings.TrimSpace(p); trimmed != "" {
            out = append(out, trimmed)
        }
    }
    return out
}

func baseName(path string) string {
    if idx := strings.LastIndex(path, "/"); idx >= 0 {
        return path[idx+1:]
    }
    return path
}
