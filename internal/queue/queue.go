package queue

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Topics for the two batch lifecycle jobs. Payload is the batch ID.
const (
	TopicBatchGenerate = "batch_generates"
	TopicBatchSend     = "batch_sends"
)

// Job is the wire form of a queued batch job.
type Job struct {
	BatchID int `json:"batch_id"`
}

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue is a production-ready in-memory queue with retry
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: 3,
	}

	for _, handler := range handlers {
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.Printf("Job failed (attempt %d/%d): %+v, error: %v\n", job.RetryCount, job.MaxRetries, job.Payload, err)

		if job.RetryCount > job.MaxRetries {
			log.Printf("Job permanently failed after %d attempts: %+v\n", job.MaxRetries, job.Payload)
			return // No requeue
		}

		// Exponential backoff before retry
		time.Sleep(time.Duration(job.RetryCount*500) * time.Millisecond)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// StartBatchSubscribers wires the generation and dispatch jobs onto the
// queue. Handlers are plain funcs so the wiring stays free of service
// dependencies. Payloads must be batch IDs.
func StartBatchSubscribers(q Queue, generate, dispatch func(batchID int) error) {
	subscribe := func(topic string, run func(batchID int) error) {
		err := q.Subscribe(topic, func(payload any) error {
			batchID, ok := payload.(int)
			if !ok {
				log.Printf("⚠️ invalid payload on %s, expected int batch ID, got %T", topic, payload)
				return nil // malformed, no retry
			}
			log.Printf("📩 processing %s job for batch %d", topic, batchID)
			return run(batchID)
		})
		if err != nil {
			log.Printf("⚠️ failed to subscribe to %s: %v", topic, err)
		}
	}

	subscribe(TopicBatchGenerate, generate)
	subscribe(TopicBatchSend, dispatch)
}
