// internal/notify/notifier.go
package notify

import (
	"context"
	"log"
)

// Stages reported on completion of a pipeline pass.
const (
	StageGeneration = "generation"
	StageDispatch   = "dispatch"
)

// Event is emitted when a generation or dispatch pass reaches a terminal
// state. Delivery mechanics live behind the Notifier implementation.
type Event struct {
	BatchID        int
	Stage          string // generation, dispatch
	ProcessedCount int    // generated or sent, depending on stage
	FailedCount    int
	Status         string
	Error          string
}

type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// LogNotifier writes completion events to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, ev Event) {
	if ev.Error != "" {
		log.Printf("📣 batch %d %s finished: status=%s processed=%d failed=%d error=%s",
			ev.BatchID, ev.Stage, ev.Status, ev.ProcessedCount, ev.FailedCount, ev.Error)
		return
	}
	log.Printf("📣 batch %d %s finished: status=%s processed=%d failed=%d",
		ev.BatchID, ev.Stage, ev.Status, ev.ProcessedCount, ev.FailedCount)
}

var _ Notifier = LogNotifier{}
