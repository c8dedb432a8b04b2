// internal/progress/memory.go
package progress

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Memory - store w pamięci procesu, wpisy wygasają po ttl.
type Memory struct {
	c *cache.Cache
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{c: cache.New(ttl, ttl/2)}
}

func (m *Memory) Set(_ context.Context, operationID string, s Snapshot) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	m.c.SetDefault(operationID, s)
	return nil
}

func (m *Memory) Get(_ context.Context, operationID string) (Snapshot, bool, error) {
	v, ok := m.c.Get(operationID)
	if !ok {
		return Snapshot{}, false, nil
	}
	s, ok := v.(Snapshot)
	return s, ok, nil
}
