package service

import (
	"context"
	"sync"
	"time"

	"coin-bank/internal/core/domain"
	"coin-bank/internal/core/ports"

	"github.com/rs/zerolog"
)

// transferRetryIntervals is the wait before each redelivery attempt.
var transferRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// TransferDispatcher drains the transfer queue and delivers each request
// through a TransferSender. Requests are retried on the fixed schedule and
// dropped with an error log once it is exhausted.
type TransferDispatcher struct {
	queue   ports.TransferQueue
	sender  ports.TransferSender
	poll    time.Duration
	retries []time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewTransferDispatcher creates a dispatcher that waits up to poll for
// each queue pop.
func NewTransferDispatcher(queue ports.TransferQueue, sender ports.TransferSender, poll time.Duration, log zerolog.Logger) *TransferDispatcher {
	return &TransferDispatcher{
		queue:   queue,
		sender:  sender,
		poll:    poll,
		retries: transferRetryIntervals,
		log:     log.With().Str("component", "transfer_dispatcher").Logger(),
	}
}

// Run pops until ctx is cancelled, then waits for in-flight deliveries.
func (d *TransferDispatcher) Run(ctx context.Context) {
	d.log.Info().Dur("poll", d.poll).Msg("transfer dispatcher started")
	defer func() {
		d.wg.Wait()
		d.log.Info().Msg("transfer dispatcher stopped")
	}()

	for ctx.Err() == nil {
		req, err := d.queue.Pop(ctx, d.poll)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error().Err(err).Msg("transfer queue pop failed")
			if !sleep(ctx, d.poll) {
				return
			}
			continue
		}
		if req == nil {
			continue
		}

		d.wg.Add(1)
		go func(req domain.TransferRequest) {
			defer d.wg.Done()
			d.deliver(ctx, req)
		}(*req)
	}
}

func (d *TransferDispatcher) deliver(ctx context.Context, req domain.TransferRequest) {
	log := d.log.With().
		Str("transfer_id", req.ID).
		Str("to", req.To).
		Str("symbol", req.Symbol).
		Int64("amount", req.Amount).
		Logger()

	for attempt := 0; attempt <= len(d.retries); attempt++ {
		if attempt > 0 && !sleep(ctx, d.retries[attempt-1]) {
			log.Warn().Int("attempt", attempt).Msg("shutdown before transfer was delivered")
			return
		}

		err := d.sender.Send(ctx, req)
		if err == nil {
			log.Info().Int("attempt", attempt+1).Msg("transfer delivered")
			return
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("transfer delivery failed")
	}

	log.Error().Str("from", req.From).Str("memo", req.Memo).Msg("transfer dropped, all retry attempts exhausted")
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
