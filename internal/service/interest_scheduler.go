package service

import (
	"context"
	"time"

	"coin-bank/internal/core/ports"

	"github.com/rs/zerolog"
)

// InterestScheduler runs the interest batch on a fixed interval, acting as
// the reserve identity.
type InterestScheduler struct {
	bank     ports.BankService
	reserve  string
	interval time.Duration
	log      zerolog.Logger
}

// NewInterestScheduler creates a scheduler. interval must be positive.
func NewInterestScheduler(bank ports.BankService, reserve string, interval time.Duration, log zerolog.Logger) *InterestScheduler {
	return &InterestScheduler{
		bank:     bank,
		reserve:  reserve,
		interval: interval,
		log:      log.With().Str("component", "interest_scheduler").Logger(),
	}
}

// Run blocks until ctx is cancelled.
func (s *InterestScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("interest scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("interest scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *InterestScheduler) tick(ctx context.Context) {
	res, err := s.bank.RunInterestBatch(ctx, s.reserve)
	if err != nil {
		s.log.Error().Err(err).Msg("interest batch failed")
		return
	}
	s.log.Debug().Int("accounts", res.Accounts).Int64("total_paid", res.TotalPaid).Msg("interest batch complete")
}
