package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"coin-bank/internal/bank"
	"coin-bank/internal/core/domain"
	"coin-bank/internal/core/ports"
	"coin-bank/internal/interest"
	"coin-bank/internal/ledger"
	"coin-bank/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"
)

const depositIdempotencyTTL = 24 * time.Hour

// BankServiceImpl implements ports.BankService. A single mutex serialises
// every operation so that each observes and mutates the ledger alone.
// After an operation succeeds in memory its changed records are written in
// one database transaction; if that fails the in-memory state is rolled
// back and the caller gets an error.
type BankServiceImpl struct {
	mu         sync.Mutex
	bank       *bank.Bank
	ledger     *ledger.Ledger
	engine     *interest.Engine
	accounts   ports.AccountRepository
	settings   ports.SettingsRepository
	transactor ports.DBTransactor
	idempCache ports.IdempotencyCache
	queue      ports.TransferQueue
	log        zerolog.Logger
	now        func() time.Time
}

// NewBankService creates a BankServiceImpl over an already loaded ledger
// and engine. Nil repositories and transactor mean nothing is persisted; a
// nil cache disables deposit deduplication; a nil queue leaves delivery of
// the returned transfer requests to the caller.
func NewBankService(
	ids bank.Identities,
	l *ledger.Ledger,
	e *interest.Engine,
	accounts ports.AccountRepository,
	settings ports.SettingsRepository,
	transactor ports.DBTransactor,
	idempCache ports.IdempotencyCache,
	queue ports.TransferQueue,
	log zerolog.Logger,
) *BankServiceImpl {
	return &BankServiceImpl{
		bank:       bank.New(ids, l, e),
		ledger:     l,
		engine:     e,
		accounts:   accounts,
		settings:   settings,
		transactor: transactor,
		idempCache: idempCache,
		queue:      queue,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// LoadState rebuilds the ledger and the interest engine from storage. The
// default rate applies when none has been persisted yet.
func LoadState(
	ctx context.Context,
	vault string,
	accounts ports.AccountRepository,
	settings ports.SettingsRepository,
	defaultRateBps int64,
	now time.Time,
) (*ledger.Ledger, *interest.Engine, error) {
	records, err := accounts.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load accounts: %w", err)
	}
	rate, ok, err := settings.GetInterestRate(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load interest rate: %w", err)
	}
	if !ok {
		rate = defaultRateBps
	}
	engine, err := interest.NewEngine(rate)
	if err != nil {
		return nil, nil, fmt.Errorf("interest rate %d: %w", rate, err)
	}
	return ledger.Load(vault, records, now), engine, nil
}

// Deposit applies an inbound notification once per notification ID.
func (s *BankServiceImpl) Deposit(ctx context.Context, n domain.DepositNotification) (*ports.DepositReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached := s.cachedReceipt(ctx, n.ID); cached != nil {
		s.log.Info().Str("notification_id", n.ID).Msg("duplicate deposit notification")
		return cached, nil
	}

	var res bank.DepositResult
	err := s.apply(ctx, func(now time.Time) error {
		var err error
		res, err = s.bank.Deposit(n, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	receipt := &ports.DepositReceipt{
		NotificationID: n.ID,
		Ignored:        res.Ignored,
		ReserveTopup:   res.ReserveTopup,
		InterestPaid:   res.InterestPaid,
	}
	s.cacheReceipt(ctx, receipt)

	if !res.Ignored {
		s.log.Info().
			Str("notification_id", n.ID).
			Str("from", n.From).
			Str("symbol", n.Symbol).
			Int64("quantity", n.Quantity).
			Bool("reserve_topup", res.ReserveTopup).
			Int64("interest_paid", res.InterestPaid).
			Msg("deposit applied")
	}
	return receipt, nil
}

// OpenAccount creates user's account if it does not exist yet.
func (s *BankServiceImpl) OpenAccount(ctx context.Context, caller, user string) (*ports.AccountView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created bool
	err := s.apply(ctx, func(now time.Time) error {
		var err error
		created, err = s.bank.OpenAccount(caller, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info().Str("principal", user).Msg("account opened")
	}

	view, err := s.view(caller, user)
	if err != nil {
		return nil, err
	}
	view.Created = created
	return view, nil
}

// Account returns user's balance and pending interest.
func (s *BankServiceImpl) Account(_ context.Context, caller, user string) (*ports.AccountView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(caller, user)
}

// Withdraw debits value from user and queues the vault coins for delivery.
func (s *BankServiceImpl) Withdraw(ctx context.Context, caller, user string, value int64) ([]domain.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reqs []domain.TransferRequest
	err := s.apply(ctx, func(time.Time) error {
		var err error
		reqs, err = s.bank.Withdraw(caller, user, value)
		return err
	})
	if err != nil {
		return nil, err
	}

	reqs = s.dispatch(ctx, reqs)
	s.log.Info().Str("principal", user).Int64("value", value).Int("transfers", len(reqs)).Msg("withdrawal processed")
	return reqs, nil
}

// CloseAccount settles interest, pays out and deletes user's account.
func (s *BankServiceImpl) CloseAccount(ctx context.Context, caller, user string) ([]domain.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reqs []domain.TransferRequest
	err := s.apply(ctx, func(now time.Time) error {
		var err error
		reqs, err = s.bank.CloseAccount(caller, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	reqs = s.dispatch(ctx, reqs)
	s.log.Info().Str("principal", user).Int("transfers", len(reqs)).Msg("account closed")
	return reqs, nil
}

// SetInterestRate settles every account at the old rate and installs the new one.
func (s *BankServiceImpl) SetInterestRate(ctx context.Context, caller string, rateBps int64) (*interest.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.engine.RateBasisPoints()
	var res interest.BatchResult
	err := s.apply(ctx, func(now time.Time) error {
		var err error
		res, err = s.bank.SetInterestRate(caller, rateBps, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("old_rate_bps", old).
		Int64("new_rate_bps", rateBps).
		Int("accounts", res.Accounts).
		Int64("total_paid", res.TotalPaid).
		Msg("interest rate changed")
	return &res, nil
}

// RunInterestBatch settles every interest-bearing account.
func (s *BankServiceImpl) RunInterestBatch(ctx context.Context, caller string) (*interest.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res interest.BatchResult
	err := s.apply(ctx, func(now time.Time) error {
		var err error
		res, err = s.bank.RunInterestBatch(caller, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("accounts", res.Accounts).Int64("total_paid", res.TotalPaid).Msg("interest batch settled")
	return &res, nil
}

// Rebalance emits the transfers that move the vault toward targetFloat.
func (s *BankServiceImpl) Rebalance(ctx context.Context, caller string, targetFloat int64) ([]domain.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs, err := s.bank.Rebalance(caller, targetFloat)
	if err != nil {
		return nil, err
	}

	reqs = s.dispatch(ctx, reqs)
	s.log.Info().Int64("target_float", targetFloat).Int("transfers", len(reqs)).Msg("rebalance requested")
	return reqs, nil
}

// InterestRate returns the current rate in basis points.
func (s *BankServiceImpl) InterestRate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.RateBasisPoints()
}

// apply runs op against the ledger and persists what it changed. On any
// failure the ledger and the rate are restored to their prior state.
// Callers hold s.mu.
func (s *BankServiceImpl) apply(ctx context.Context, op func(now time.Time) error) error {
	snap := s.ledger.Snapshot()
	rate := s.engine.RateBasisPoints()

	rollback := func() {
		s.ledger.Restore(snap)
		s.engine.SetRate(rate)
	}

	if err := op(s.now()); err != nil {
		rollback()
		return err
	}

	changes := s.ledger.Drain()
	newRate := s.engine.RateBasisPoints()
	if err := s.persist(ctx, changes, rate != newRate, newRate); err != nil {
		rollback()
		s.log.Error().Err(err).Msg("failed to persist ledger changes, rolled back")
		return apperror.ErrDatabaseError(err)
	}
	return nil
}

func (s *BankServiceImpl) persist(ctx context.Context, changes ledger.Changes, rateChanged bool, rateBps int64) error {
	if s.transactor == nil || (changes.Empty() && !rateChanged) {
		return nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	for i := range changes.Updated {
		if err := s.accounts.Upsert(ctx, dbTx, &changes.Updated[i]); err != nil {
			return err
		}
	}
	for _, p := range changes.Deleted {
		if err := s.accounts.Delete(ctx, dbTx, p); err != nil {
			return err
		}
	}
	if rateChanged {
		if err := s.settings.SetInterestRate(ctx, dbTx, rateBps); err != nil {
			return err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// dispatch stamps each request with a delivery key and hands the batch to
// the queue. The ledger change is already committed, so a queue failure is
// logged rather than returned.
func (s *BankServiceImpl) dispatch(ctx context.Context, reqs []domain.TransferRequest) []domain.TransferRequest {
	if len(reqs) == 0 {
		return reqs
	}
	op := uuid.New()
	for i := range reqs {
		reqs[i].ID = transferKey(op, i, reqs[i])
	}
	if s.queue == nil {
		return reqs
	}
	if err := s.queue.Push(ctx, reqs); err != nil {
		s.log.Error().Err(err).Str("operation_id", op.String()).Int("transfers", len(reqs)).Msg("failed to enqueue transfers")
	}
	return reqs
}

// transferKey derives a stable identifier the asset-transfer service can
// use to drop redelivered requests.
func transferKey(op uuid.UUID, index int, req domain.TransferRequest) string {
	h, _ := blake2b.New(16, nil)
	h.Write(op[:])
	for _, part := range []string{
		strconv.Itoa(index), req.From, req.To, req.Symbol,
		strconv.FormatInt(req.Amount, 10), req.Memo,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *BankServiceImpl) view(caller, user string) (*ports.AccountView, error) {
	acct, pending, err := s.bank.Account(caller, user, s.now())
	if err != nil {
		return nil, err
	}
	return &ports.AccountView{
		Account:         acct,
		Value:           acct.Value(),
		Coins:           acct.Balance.String(),
		PendingInterest: pending,
	}, nil
}

func (s *BankServiceImpl) cachedReceipt(ctx context.Context, id string) *ports.DepositReceipt {
	if s.idempCache == nil || id == "" {
		return nil
	}
	cached, err := s.idempCache.Get(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("notification_id", id).Msg("redis idempotency check failed, processing notification")
		return nil
	}
	if cached == nil {
		return nil
	}
	var receipt ports.DepositReceipt
	if err := json.Unmarshal(cached, &receipt); err != nil {
		s.log.Warn().Err(err).Str("notification_id", id).Msg("corrupt cached receipt, processing notification")
		return nil
	}
	return &receipt
}

func (s *BankServiceImpl) cacheReceipt(ctx context.Context, receipt *ports.DepositReceipt) {
	if s.idempCache == nil || receipt.NotificationID == "" {
		return
	}
	b, err := json.Marshal(receipt)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to marshal deposit receipt")
		return
	}
	if err := s.idempCache.Set(ctx, receipt.NotificationID, b, depositIdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("notification_id", receipt.NotificationID).Msg("failed to cache deposit receipt")
	}
}
