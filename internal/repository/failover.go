package repository

import (
	"context"
	"sync/atomic"
	"time"

	"salonbook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverQuotaRepository serves from the primary (Redis) until it
// errors, then from the fallback (memory) with a periodic retry of the
// primary. Quota counts may diverge between the two backends across a
// failover; admission stays available either way.
type FailoverQuotaRepository struct {
	primary   domain.QuotaRepository
	fallback  domain.QuotaRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	retry     time.Duration
}

func NewFailoverQuotaRepository(primary, fallback domain.QuotaRepository, logger *zerolog.Logger) *FailoverQuotaRepository {
	return &FailoverQuotaRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		retry:    time.Minute,
	}
}

func (r *FailoverQuotaRepository) Take(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	if !r.isDown.Load() {
		allowed, remaining, err := r.primary.Take(ctx, key, limit, window)
		if err == nil {
			return allowed, remaining, nil
		}
		r.logger.Error().Err(err).Msg("Primary quota repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	// Try to recover after the retry interval
	if r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > r.retry {
		allowed, remaining, err := r.primary.Take(ctx, key, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, remaining, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Take(ctx, key, limit, window)
}
