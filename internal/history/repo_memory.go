package history

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is the in-memory Repository used by tests.
type MemoryRepo struct {
	mu       sync.Mutex
	calls    []CallEntry
	messages []MessageEntry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) AppendCall(ctx context.Context, e CallEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, e)
	return nil
}

func (r *MemoryRepo) AppendMessage(ctx context.Context, e MessageEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, e)
	return nil
}

func (r *MemoryRepo) ListCalls(ctx context.Context, userID string, limit int) ([]CallEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallEntry
	for _, e := range r.calls {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListMessages(ctx context.Context, userID string, limit int) ([]MessageEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []MessageEntry
	for _, e := range r.messages {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
