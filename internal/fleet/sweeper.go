package fleet

import (
	"context"
	"time"

	"go.uber.org/zap"

	"droneDispatch/internal/metrics"
	"droneDispatch/repository"
)

// Sweeper returns in-motion drones that stopped reporting to idle-ready.
type Sweeper struct {
	drones     repository.DroneRepositoryI
	staleAfter time.Duration
	interval   time.Duration
	metrics    *metrics.MetricsRegistry
	log        *zap.Logger
	now        func() time.Time
}

func NewSweeper(drones repository.DroneRepositoryI, staleAfter, interval time.Duration, m *metrics.MetricsRegistry, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{drones: drones, staleAfter: staleAfter, interval: interval, metrics: m, log: log, now: time.Now}
}

// Sweep runs one pass and returns the number of drones reset.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.drones.ResetStale(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if s.metrics != nil {
			s.metrics.StaleDronesReset.Add(float64(n))
		}
		s.log.Info("stale drones reset", zap.Int64("count", n))
	}
	return n, nil
}

// Run sweeps on every tick until ctx is done. Failed passes are logged and retried
// on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Warn("fleet sweep failed", zap.Error(err))
			}
		}
	}
}
