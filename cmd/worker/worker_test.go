package main

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/streadway/amqp"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

func TestWorkerRoutesJobsByType(t *testing.T) {
	var mu sync.Mutex
	generated := []int{}
	dispatched := []int{}

	jobChan := make(chan service.BatchJob, 2)
	jobChan <- service.BatchJob{Type: service.JobTypeGenerate, BatchID: 1}
	jobChan <- service.BatchJob{Type: service.JobTypeSend, BatchID: 2}
	close(jobChan)

	worker := service.NewWorker(jobChan,
		func(ctx context.Context, batchID int) error {
			mu.Lock()
			defer mu.Unlock()
			generated = append(generated, batchID)
			return nil
		},
		func(ctx context.Context, batchID int) error {
			mu.Lock()
			defer mu.Unlock()
			dispatched = append(dispatched, batchID)
			return nil
		},
	)

	// Start drains the channel and returns once it closes.
	worker.Start(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(generated) != 1 || generated[0] != 1 {
		t.Errorf("generated %v", generated)
	}
	if len(dispatched) != 1 || dispatched[0] != 2 {
		t.Errorf("dispatched %v", dispatched)
	}
}

func TestWorkerRejectsUnknownJobType(t *testing.T) {
	worker := service.NewWorker(nil,
		func(ctx context.Context, batchID int) error { return nil },
		func(ctx context.Context, batchID int) error { return nil },
	)

	err := worker.Run(context.Background(), service.BatchJob{Type: "compact", BatchID: 1})
	if err == nil {
		t.Fatal("expected error for unknown job type")
	}
}

func TestRetryCountReadsAnyIntegerWidth(t *testing.T) {
	cases := []struct {
		headers amqp.Table
		want    int
	}{
		{nil, 0},
		{amqp.Table{}, 0},
		{amqp.Table{"x-retry-count": 2}, 2},
		{amqp.Table{"x-retry-count": int32(2)}, 2},
		{amqp.Table{"x-retry-count": int64(2)}, 2},
		{amqp.Table{"x-retry-count": "2"}, 0},
	}
	for _, c := range cases {
		if got := retryCount(c.headers); got != c.want {
			t.Errorf("retryCount(%v) = %d, want %d", c.headers, got, c.want)
		}
	}
}

func TestShouldRequeueStopsAtRetryCap(t *testing.T) {
	err := fmt.Errorf("smtp send: connection refused")

	if !shouldRequeue(err, nil) {
		t.Error("first failure should requeue")
	}
	if !shouldRequeue(err, amqp.Table{"x-retry-count": int32(maxJobRetries - 1)}) {
		t.Error("failure under the cap should requeue")
	}
	if shouldRequeue(err, amqp.Table{"x-retry-count": int32(maxJobRetries)}) {
		t.Error("failure at the cap must not requeue")
	}
}

func TestShouldRequeueNeverRetriesConflicts(t *testing.T) {
	conflict := fmt.Errorf("enqueue send: %w", appErrors.NewBatchConflict(3, "sending"))

	if shouldRequeue(conflict, nil) {
		t.Error("a batch conflict requeues into the same conflict")
	}
}

func TestWorkerContinuesAfterJobFailure(t *testing.T) {
	jobChan := make(chan service.BatchJob, 2)
	jobChan <- service.BatchJob{Type: service.JobTypeGenerate, BatchID: 1}
	jobChan <- service.BatchJob{Type: service.JobTypeGenerate, BatchID: 2}
	close(jobChan)

	var mu sync.Mutex
	seen := []int{}
	worker := service.NewWorker(jobChan,
		func(ctx context.Context, batchID int) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, batchID)
			if batchID == 1 {
				return fmt.Errorf("boom")
			}
			return nil
		},
		func(ctx context.Context, batchID int) error { return nil },
	)

	worker.Start(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Errorf("a failed job stopped the worker: %v", seen)
	}
}
