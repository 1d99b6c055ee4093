package handoffclient

import (
	"fmt"
	"sync"

	"github.com/mediflow/clinic/pkg/types"
)

// PendingQueue holds the handoffs a receptionist has received but not yet
// completed, in arrival order.
type PendingQueue struct {
	mu    sync.Mutex
	items []types.HandoffRequest
}

// NewPendingQueue creates an empty queue
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{}
}

// OnReceive appends a delivered handoff
func (q *PendingQueue) OnReceive(req types.HandoffRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, req)
}

// Edit replaces the draft of the entry at index. Concurrent edits are last writer wins.
func (q *PendingQueue) Edit(index int, draft types.PrescriptionDraft) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.items) {
		return fmt.Errorf("no pending request at index %d", index)
	}
	q.items[index].Prescription = draft
	return nil
}

// OnRequestRemoved drops the first entry with requestID. It reports whether
// anything was removed; a duplicate or late removal is a no-op.
func (q *PendingQueue) OnRequestRemoved(requestID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].RequestID == requestID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the entry with requestID
func (q *PendingQueue) Find(requestID string) (types.HandoffRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.RequestID == requestID {
			return item, true
		}
	}
	return types.HandoffRequest{}, false
}

// Items returns a snapshot of the queue
func (q *PendingQueue) Items() []types.HandoffRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]types.HandoffRequest, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of pending entries
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
