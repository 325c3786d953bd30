// Package queue holds the durable ordered stores behind the retry queue.
// All stores keep insertion order and ignore a second Append of the same event id.
package queue

import (
	"context"
	"sync"

	"github.com/MaldivaSky/mercadinhosys-sub003/models"
)

// Memory keeps the queue in process memory. It does not survive a restart
// and exists for tests and PONTO_QUEUE_DRIVER=memory.
type Memory struct {
	mu     sync.RWMutex
	events []models.AttendanceEvent

	// drain is held by the recorder draining this queue, when several share it
	drain sync.Mutex
}

func NewMemory(initial ...models.AttendanceEvent) *Memory {
	return &Memory{events: append([]models.AttendanceEvent(nil), initial...)}
}

func (m *Memory) Append(ctx context.Context, ev models.AttendanceEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == ev.ID {
			return nil
		}
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) PeekFront(ctx context.Context) (models.AttendanceEvent, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.AttendanceEvent{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.events) == 0 {
		return models.AttendanceEvent{}, false, nil
	}
	return m.events[0], true, nil
}

func (m *Memory) PopFront(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.events {
		if e.ID == eventID {
			m.events = append(m.events[:i:i], m.events[i+1:]...)
			return nil
		}
	}
	return nil
}

// LockDrain lets recorders in one process share the queue without draining
// it twice.
func (m *Memory) LockDrain(ctx context.Context) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if !m.drain.TryLock() {
		return nil, false, nil
	}
	return m.drain.Unlock, true, nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	return nil
}

func (m *Memory) LoadAll(ctx context.Context) ([]models.AttendanceEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.AttendanceEvent, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *Memory) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events), nil
}
