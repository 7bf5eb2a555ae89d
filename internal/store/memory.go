package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/quartz"

	"thirteen/internal/tourney"
)

// MemoryConnections is an in-process connection registry used by tests and
// single-node runs.
type MemoryConnections struct {
	clock quartz.Clock

	mu    sync.Mutex
	conns map[string]Connection
}

// NewMemoryConnections creates an empty in-memory registry. A nil clock
// falls back to the real one.
func NewMemoryConnections(clock quartz.Clock) *MemoryConnections {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemoryConnections{
		clock: clock,
		conns: make(map[string]Connection),
	}
}

func (m *MemoryConnections) Put(_ context.Context, conn Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ConnectionID] = conn
	return nil
}

func (m *MemoryConnections) Get(_ context.Context, connectionID string) (Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connectionID]
	if !ok {
		return Connection{}, ErrNotFound
	}
	if m.expired(conn) {
		delete(m.conns, connectionID)
		return Connection{}, ErrNotFound
	}
	return conn, nil
}

func (m *MemoryConnections) Delete(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, connectionID)
	return nil
}

func (m *MemoryConnections) Touch(_ context.Context, connectionID string, lastPing int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connectionID]
	if !ok || m.expired(conn) {
		return ErrNotFound
	}
	conn.LastPing = lastPing
	m.conns[connectionID] = conn
	return nil
}

func (m *MemoryConnections) List(_ context.Context) ([]Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Connection, 0, len(m.conns))
	for id, conn := range m.conns {
		if m.expired(conn) {
			delete(m.conns, id)
			continue
		}
		out = append(out, conn)
	}
	return out, nil
}

func (m *MemoryConnections) expired(conn Connection) bool {
	return conn.TTL > 0 && m.clock.Now().Unix() >= conn.TTL
}

// MemoryTourneys is an in-process tournament store with versioned puts.
// Snapshots are kept JSON-encoded so reads hand out independent copies,
// the same isolation the durable stores provide.
type MemoryTourneys struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	snapshot []byte
	version  int64
}

// NewMemoryTourneys creates an empty in-memory tournament store.
func NewMemoryTourneys() *MemoryTourneys {
	return &MemoryTourneys{records: make(map[string]memoryRecord)}
}

func (m *MemoryTourneys) Get(_ context.Context, tourneyID string) (*tourney.Tourney, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[tourneyID]
	if !ok {
		return nil, 0, ErrNotFound
	}
	var t tourney.Tourney
	if err := json.Unmarshal(rec.snapshot, &t); err != nil {
		return nil, 0, err
	}
	t.Normalize()
	return &t, rec.version, nil
}

func (m *MemoryTourneys) Put(_ context.Context, t *tourney.Tourney, expectedVersion int64) (int64, error) {
	snapshot, err := json.Marshal(t)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := int64(0)
	if rec, ok := m.records[t.ID]; ok {
		current = rec.version
	}
	if current != expectedVersion {
		return 0, ErrVersionConflict
	}
	next := current + 1
	m.records[t.ID] = memoryRecord{snapshot: snapshot, version: next}
	return next, nil
}
