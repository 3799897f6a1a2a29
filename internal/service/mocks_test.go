package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/notify"
	"github.com/unclebandit/mailblast-backend/internal/pdf"
)

// mockBatchRepo keeps batches in memory and records lifecycle calls.
type mockBatchRepo struct {
	mu      sync.Mutex
	batches map[int]*model.Batch
	specs   map[int][]*model.AttachmentSpec

	beginGenerationErr error
	beginSendingErr    error
	counterUpdates     int
}

func newMockBatchRepo(batches ...*model.Batch) *mockBatchRepo {
	r := &mockBatchRepo{
		batches: map[int]*model.Batch{},
		specs:   map[int][]*model.AttachmentSpec{},
	}
	for _, b := range batches {
		r.batches[b.ID] = b
	}
	return r
}

func (r *mockBatchRepo) Create(b *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = len(r.batches) + 1
	r.batches[b.ID] = b
	return nil
}

func (r *mockBatchRepo) GetByID(id int) (*model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch with ID %d not found", id)
	}
	copied := *b
	return &copied, nil
}

func (r *mockBatchRepo) Update(b *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[b.ID] = b
	return nil
}

func (r *mockBatchRepo) UpdateStatus(batchID int, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[batchID]; ok {
		b.Status = status
	}
	return nil
}

func (r *mockBatchRepo) ListBatches(offset, limit int, status string) ([]*model.Batch, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := []*model.Batch{}
	for _, b := range r.batches {
		if status == "" || b.Status == status {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *mockBatchRepo) BeginGeneration(batchID, totalRecipients int) error {
	if r.beginGenerationErr != nil {
		return r.beginGenerationErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.batches[batchID]
	b.Status = model.BatchStatusGenerating
	b.TotalRecipients = totalRecipients
	b.GeneratedCount = 0
	b.FailedCount = 0
	return nil
}

func (r *mockBatchRepo) BeginSending(batchID int) error {
	if r.beginSendingErr != nil {
		return r.beginSendingErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.batches[batchID]
	b.Status = model.BatchStatusSending
	b.SentCount = 0
	b.FailedCount = 0
	return nil
}

func (r *mockBatchRepo) UpdateGenerationCounters(batchID, generated, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counterUpdates++
	b := r.batches[batchID]
	b.GeneratedCount = generated
	b.FailedCount = failed
	return nil
}

func (r *mockBatchRepo) FinishGeneration(batchID int, status string, generated, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.batches[batchID]
	b.Status = status
	b.GeneratedCount = generated
	b.FailedCount = failed
	return nil
}

func (r *mockBatchRepo) FinishSending(batchID int, status string, sent, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.batches[batchID]
	b.Status = status
	b.SentCount = sent
	b.FailedCount = failed
	return nil
}

func (r *mockBatchRepo) ListAttachmentSpecs(batchID int) ([]*model.AttachmentSpec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.specs[batchID], nil
}

func (r *mockBatchRepo) CreateAttachmentSpec(spec *model.AttachmentSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	spec.ID = len(r.specs[spec.BatchID]) + 1
	r.specs[spec.BatchID] = append(r.specs[spec.BatchID], spec)
	return nil
}

// mockMessageRepo stores messages in memory.
type mockMessageRepo struct {
	mu     sync.Mutex
	nextID int
	msgs   map[int]*model.Message

	createErr error
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{msgs: map[int]*model.Message{}}
}

func (r *mockMessageRepo) Create(msg *model.Message) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	copied := *msg
	r.msgs[msg.ID] = &copied
	return nil
}

func (r *mockMessageRepo) GetByID(id int) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.msgs[id]
	if !ok {
		return nil, nil
	}
	copied := *msg
	return &copied, nil
}

func (r *mockMessageRepo) ListPendingByBatch(batchID int) ([]*model.Message, error) {
	return r.listByStatus(batchID, model.MessageStatusPending), nil
}

func (r *mockMessageRepo) listByStatus(batchID int, status string) []*model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Message{}
	for _, msg := range r.msgs {
		if msg.BatchID == batchID && msg.Status == status {
			copied := *msg
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *mockMessageRepo) DeleteByBatch(batchID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, msg := range r.msgs {
		if msg.BatchID == batchID {
			delete(r.msgs, id)
		}
	}
	return nil
}

func (r *mockMessageRepo) MarkSent(id int, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := r.msgs[id]
	msg.Status = model.MessageStatusSent
	msg.SentAt = &sentAt
	msg.ErrorText = ""
	return nil
}

func (r *mockMessageRepo) MarkFailed(id int, errorText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := r.msgs[id]
	msg.Status = model.MessageStatusFailed
	msg.ErrorText = errorText
	return nil
}

func (r *mockMessageRepo) CountByStatus(batchID int) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := map[string]int{"pending": 0, "sent": 0, "failed": 0}
	for _, msg := range r.msgs {
		if msg.BatchID == batchID {
			stats[msg.Status]++
		}
	}
	return stats, nil
}

// mockRows serves fixed CSV rows.
type mockRows struct {
	headers []string
	rows    []map[string]string
	err     error
}

func (r *mockRows) Headers(ctx context.Context, path string) ([]string, error) {
	return r.headers, r.err
}

func (r *mockRows) Rows(ctx context.Context, path string) ([]map[string]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.rows, nil
}

func (r *mockRows) Count(ctx context.Context, path string) (int, error) {
	return len(r.rows), r.err
}

// mockStore is an in-memory blob store.
type mockStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	putErr error
	getErr error
}

func newMockStore() *mockStore {
	return &mockStore{blobs: map[string][]byte{}}
}

func (s *mockStore) Put(ctx context.Context, path string, data []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = data
	return nil
}

func (s *mockStore) Get(ctx context.Context, path string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[path]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", path)
	}
	return data, nil
}

func (s *mockStore) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[path]
	return ok, nil
}

func (s *mockStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, path)
	return nil
}

// mockNotifier records emitted events.
type mockNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *mockNotifier) Notify(ctx context.Context, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *mockNotifier) last() (notify.Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return notify.Event{}, false
	}
	return n.events[len(n.events)-1], true
}

// fakeConverter returns canned PDF bytes and captures the composed HTML.
type fakeConverter struct {
	mu   sync.Mutex
	html []string
	err  error
}

func (c *fakeConverter) Convert(ctx context.Context, html string, opts pdf.Options) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.html = append(c.html, html)
	return []byte("%PDF-fake"), nil
}

// mockQueue records published jobs.
type mockQueue struct {
	mu        sync.Mutex
	published map[string][]any
	err       error
}

func newMockQueue() *mockQueue {
	return &mockQueue{published: map[string][]any{}}
}

func (q *mockQueue) Publish(topic string, payload any) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published[topic] = append(q.published[topic], payload)
	return nil
}

func (q *mockQueue) Subscribe(topic string, handler func(payload any) error) error {
	return nil
}
