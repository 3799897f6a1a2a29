package service

import (
	"context"
	"fmt"
	"log"
)

// Batch job types
const (
	JobTypeGenerate = "generate"
	JobTypeSend     = "send"
)

// BatchJob is one unit of queued batch work.
type BatchJob struct {
	Type    string
	BatchID int
}

// Worker processes batch lifecycle jobs
type Worker struct {
	JobChan      <-chan BatchJob
	GenerateFunc func(ctx context.Context, batchID int) error
	DispatchFunc func(ctx context.Context, batchID int) error
}

// Constructor
func NewWorker(jobChan <-chan BatchJob, generate, dispatch func(ctx context.Context, batchID int) error) *Worker {
	return &Worker{
		JobChan:      jobChan,
		GenerateFunc: generate,
		DispatchFunc: dispatch,
	}
}

// Run executes a single job
func (w *Worker) Run(ctx context.Context, job BatchJob) error {
	switch job.Type {
	case JobTypeGenerate:
		return w.GenerateFunc(ctx, job.BatchID)
	case JobTypeSend:
		return w.DispatchFunc(ctx, job.BatchID)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// Start begins processing jobs until the channel closes
func (w *Worker) Start(ctx context.Context) {
	for job := range w.JobChan {
		if err := w.Run(ctx, job); err != nil {
			log.Printf("⚠️ %s job for batch %d failed: %v", job.Type, job.BatchID, err)
		}
	}
}
