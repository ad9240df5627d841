package sink

import (
	"context"
	"sync"

	"pav-go/internal/model"
	"pav-go/internal/pav"
)

// MemorySink is an in-memory implementation of the RemoteSink interface.
// It records every accepted payload and can be scripted to fail for
// specific record ids, making it useful for testing flaky collectors.
// This implementation is safe for concurrent use.
type MemorySink struct {
	mu       sync.Mutex
	accepted []*model.SyncPayload
	failures map[string]error // record id -> scripted error
}

// NewMemorySink creates a new in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		failures: make(map[string]error),
	}
}

// Send accepts the payload unless a failure has been scripted for its id.
func (m *MemorySink) Send(_ context.Context, payload *model.SyncPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failures[payload.ID]; ok {
		return err
	}
	m.accepted = append(m.accepted, payload)
	return nil
}

// FailWith scripts Send to return err for the given record id.
func (m *MemorySink) FailWith(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = err
}

// Accepted returns the payloads accepted so far, in delivery order.
func (m *MemorySink) Accepted() []*model.SyncPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.SyncPayload, len(m.accepted))
	copy(out, m.accepted)
	return out
}

// Compile-time check that MemorySink implements the RemoteSink interface
var _ pav.RemoteSink = (*MemorySink)(nil)
