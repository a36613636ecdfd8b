package repository

import (
	"context"
	"sync"
	"time"

	"salonbook/internal/domain"
)

type quotaWindow struct {
	count     int
	expiresAt time.Time
}

// MemoryQuotaRepository is a process-local fixed-window counter. It is
// the fallback when Redis is unavailable and the default for
// single-instance deployments.
type MemoryQuotaRepository struct {
	mu      sync.Mutex
	windows map[string]*quotaWindow
	clock   domain.Clock
}

func NewMemoryQuotaRepository(clock domain.Clock) *MemoryQuotaRepository {
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &MemoryQuotaRepository{
		windows: make(map[string]*quotaWindow),
		clock:   clock,
	}
}

func (r *MemoryQuotaRepository) Take(_ context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.windows[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &quotaWindow{
			count:     1,
			expiresAt: now.Add(window),
		}
		r.windows[key] = entry
	} else {
		entry.count++
	}

	remaining := limit - entry.count
	if remaining < 0 {
		remaining = 0
	}
	return entry.count <= limit, remaining, nil
}
