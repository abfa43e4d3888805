package application

import (
	"context"
	"time"

	"pw-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService aplica o teto de requisições em voo (concurrency-max).
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire espera por uma vaga até o ctx encerrar ou, com AcquireTimeout > 0,
// até o timeout (concurrency-timeout). ok=false significa que nada foi
// adquirido e release é nil.
func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), ok bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}
