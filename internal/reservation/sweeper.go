package reservation

import (
    "context"
    "time"

    "github.com/rs/zerolog"
)

// ExpiryTarget is the side of the order layer the sweeper drives.  The
// implementation cancels every non-terminal order whose reservation
// window has passed and returns how many it cancelled.
type ExpiryTarget interface {
    ExpireDue(ctx context.Context, now time.Time) int
}

// Sweeper periodically expires abandoned reservations.  Expiry is
// enforced server-side so correctness never depends on a client staying
// attached; a hold lapses even if the browser tab that created it is
// long gone.
type Sweeper struct {
    target   ExpiryTarget
    interval time.Duration
    now      func() time.Time
    logger   zerolog.Logger
}

// NewSweeper returns a sweeper ticking at the given interval.
func NewSweeper(target ExpiryTarget, interval time.Duration, logger zerolog.Logger) *Sweeper {
    if interval <= 0 {
        interval = 15 * time.Second
    }
    return &Sweeper{
        target:   target,
        interval: interval,
        now:      time.Now,
        logger:   logger.With().Str("component", "reservation-sweeper").Logger(),
    }
}

// SetClock replaces the time source.  Intended for tests.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// Run blocks, sweeping once per interval until the context is cancelled.
// Expiry-triggered cancellations are normal terminal transitions, not
// errors, so the sweep only logs when it actually cancelled something.
func (s *Sweeper) Run(ctx context.Context) {
    ticker := time.NewTicker(s.interval)
    defer ticker.Stop()
    s.logger.Info().Dur("interval", s.interval).Msg("reservation sweeper started")
    for {
        select {
        case <-ctx.Done():
            s.logger.Info().Msg("reservation sweeper stopped")
            return
        case <-ticker.C:
            if n := s.target.ExpireDue(ctx, s.now()); n > 0 {
                s.logger.Info().Int("expired_orders", n).Msg("released expired reservations")
            }
        }
    }
}
