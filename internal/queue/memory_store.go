package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

type heapItem struct {
	env   Envelope
	index int
}

// envelopeHeap is a min-heap of envelopes by RunAt.
type envelopeHeap []*heapItem

func (h envelopeHeap) Len() int { return len(h) }

func (h envelopeHeap) Less(i, j int) bool {
	if !h[i].env.RunAt.Equal(h[j].env.RunAt) {
		return h[i].env.RunAt.Before(h[j].env.RunAt)
	}
	return before(h[i].env, h[j].env)
}

func (h envelopeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *envelopeHeap) Push(x any) {
	item := x.(*heapItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *envelopeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

type leased struct {
	env   Envelope
	until time.Time
}

// MemoryStore keeps jobs in process memory. Jobs do not survive a restart,
// so it only suits a single process running both producer and worker.
type MemoryStore struct {
	mu       sync.Mutex
	pending  envelopeHeap
	byID     map[string]*heapItem
	inflight map[string]leased
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*heapItem),
		inflight: make(map[string]leased),
	}
}

func (s *MemoryStore) Push(_ context.Context, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, env.ID)
	s.pushPending(env)
	return nil
}

// pushPending keeps at most one pending entry per job ID; a later push
// replaces the earlier one.
func (s *MemoryStore) pushPending(env Envelope) {
	if item, ok := s.byID[env.ID]; ok {
		item.env = env
		heap.Fix(&s.pending, item.index)
		return
	}
	item := &heapItem{env: env}
	s.byID[env.ID] = item
	heap.Push(&s.pending, item)
}

func (s *MemoryStore) popPending() Envelope {
	item := heap.Pop(&s.pending).(*heapItem)
	delete(s.byID, item.env.ID)
	return item.env
}

func (s *MemoryStore) Claim(_ context.Context, now time.Time, limit int, lease time.Duration) ([]Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, l := range s.inflight {
		if !l.until.After(now) {
			delete(s.inflight, id)
			s.pushPending(l.env)
		}
	}

	var ready []Envelope
	for s.pending.Len() > 0 && !s.pending[0].env.RunAt.After(now) {
		ready = append(ready, s.popPending())
	}
	sortEnvelopes(ready)

	if len(ready) > limit {
		for _, env := range ready[limit:] {
			s.pushPending(env)
		}
		ready = ready[:limit]
	}
	for _, env := range ready {
		s.inflight[env.ID] = leased{env: env, until: now.Add(lease)}
	}
	return ready, nil
}

func (s *MemoryStore) Ack(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len reports pending plus leased jobs.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len() + len(s.inflight)
}

// NextRunAt reports the earliest pending run time.
func (s *MemoryStore) NextRunAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Len() == 0 {
		return time.Time{}, false
	}
	return s.pending[0].env.RunAt, true
}
