package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"coin-bank/internal/bank"
	"coin-bank/internal/core/domain"
	"coin-bank/internal/core/ports"
	"coin-bank/internal/core/ports/mocks"
	"coin-bank/internal/interest"
	"coin-bank/internal/ledger"
	"coin-bank/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	testIDs = bank.Identities{Self: "banker", Vault: "bank_vault", Reserve: "reserve"}
	testT0  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

type bankTestDeps struct {
	svc        *BankServiceImpl
	ledger     *ledger.Ledger
	engine     *interest.Engine
	accounts   *mocks.MockAccountRepository
	settings   *mocks.MockSettingsRepository
	transactor *mocks.MockDBTransactor
	idempCache *mocks.MockIdempotencyCache
	queue      *mocks.MockTransferQueue
	ctrl       *gomock.Controller
	clock      time.Time
}

// setupBankService seeds alice and the vault directly on the ledger, then
// clears the change journal so tests only see their own writes.
func setupBankService(t *testing.T, alice, vault domain.Balance) *bankTestDeps {
	t.Helper()
	ctrl := gomock.NewController(t)

	l := ledger.New(testIDs.Vault, testT0)
	l.Open("alice", testT0)
	require.NoError(t, l.CreditCoins("alice", alice))
	require.NoError(t, l.CreditCoins(testIDs.Vault, vault))
	l.Drain()

	e, err := interest.NewEngine(interest.DefaultRateBasisPoints)
	require.NoError(t, err)

	d := &bankTestDeps{
		ledger:     l,
		engine:     e,
		accounts:   mocks.NewMockAccountRepository(ctrl),
		settings:   mocks.NewMockSettingsRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		queue:      mocks.NewMockTransferQueue(ctrl),
		ctrl:       ctrl,
		clock:      testT0,
	}
	d.svc = NewBankService(testIDs, l, e, d.accounts, d.settings, d.transactor, d.idempCache, d.queue, newTestLogger())
	d.svc.now = func() time.Time { return d.clock }
	return d
}

// expectUpserts expects one transaction that upserts exactly the given
// principals and commits.
func (d *bankTestDeps) expectUpserts(principals ...string) *[]domain.Account {
	var written []domain.Account
	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
	d.accounts.EXPECT().Upsert(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, a *domain.Account) error {
			written = append(written, *a)
			return nil
		}).Times(len(principals))
	return &written
}

func principalsOf(accts []domain.Account) []string {
	out := make([]string, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.Principal)
	}
	return out
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

type failingCommitTx struct{ pgx.Tx }

func (m *failingCommitTx) Rollback(_ context.Context) error { return nil }
func (m *failingCommitTx) Commit(_ context.Context) error   { return errors.New("connection lost") }

// ==================== Account lifecycle ====================

func TestBankService_OpenAccount_PersistsNewRecord(t *testing.T) {
	d := setupBankService(t, domain.Balance{}, domain.Balance{})
	defer d.ctrl.Finish()

	written := d.expectUpserts("bob")

	view, err := d.svc.OpenAccount(context.Background(), "bob", "bob")
	require.NoError(t, err)
	assert.True(t, view.Created)
	assert.Equal(t, "bob", view.Account.Principal)
	assert.Zero(t, view.Value)
	assert.Equal(t, []string{"bob"}, principalsOf(*written))
	assert.True(t, (*written)[0].InterestBearing)
	assert.Equal(t, testT0, (*written)[0].LastInterestAt)
}

func TestBankService_OpenAccount_ExistingWritesNothing(t *testing.T) {
	d := setupBankService(t, domain.Balance{5, 0, 0, 0, 0}, domain.Balance{5, 0, 0, 0, 0})
	defer d.ctrl.Finish()

	view, err := d.svc.OpenAccount(context.Background(), "alice", "alice")
	require.NoError(t, err)
	assert.False(t, view.Created)
	assert.Equal(t, int64(5), view.Value)
	assert.Equal(t, "5cp", view.Coins)
}

func TestBankService_Account_ShowsPendingInterest(t *testing.T) {
	d := setupBankService(t, domain.Balance{0, 0, 0, 0, 100}, domain.Balance{0, 0, 0, 0, 100})
	defer d.ctrl.Finish()

	d.clock = testT0.Add(time.Duration(interest.SecondsPerYear) * time.Second)

	view, err := d.svc.Account(context.Background(), "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), view.Value)
	assert.Equal(t, int64(10_000), view.PendingInterest)
}

func TestBankService_CloseAccount(t *testing.T) {
	d := setupBankService(t, domain.Balance{3, 0, 0, 2, 0}, domain.Balance{3, 0, 0, 2, 0})
	defer d.ctrl.Finish()

	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
	d.accounts.EXPECT().Delete(gomock.Any(), gomock.Any(), "alice").Return(nil)

	var pushed []domain.TransferRequest
	d.queue.EXPECT().Push(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, reqs []domain.TransferRequest) error {
			pushed = reqs
			return nil
		})

	reqs, err := d.svc.CloseAccount(context.Background(), "alice", "alice")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "CP", reqs[0].Symbol)
	assert.Equal(t, int64(3), reqs[0].Amount)
	assert.Equal(t, "GP", reqs[1].Symbol)
	assert.Equal(t, domain.MemoAccountClosing, reqs[1].Memo)
	assert.Equal(t, reqs, pushed)
	assert.False(t, d.ledger.Exists("alice"))
}

// ==================== Deposit ====================

func TestBankService_Deposit_AppliesAndCaches(t *testing.T) {
	d := setupBankService(t, domain.Balance{}, domain.Balance{})
	defer d.ctrl.Finish()

	n := domain.DepositNotification{ID: "n-1", From: "alice", To: "banker", Symbol: "GP", Quantity: 3}

	d.idempCache.EXPECT().Get(gomock.Any(), "n-1").Return(nil, nil)
	written := d.expectUpserts("alice", "bank_vault")
	d.idempCache.EXPECT().Set(gomock.Any(), "n-1", gomock.Any(), 24*time.Hour).Return(nil)

	receipt, err := d.svc.Deposit(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, "n-1", receipt.NotificationID)
	assert.False(t, receipt.Ignored)

	assert.Equal(t, []string{"alice", "bank_vault"}, principalsOf(*written))
	assert.Equal(t, domain.Balance{0, 0, 0, 3, 0}, (*written)[0].Balance)
	assert.Equal(t, domain.Balance{0, 0, 0, 3, 0}, (*written)[1].Balance)
}

func TestBankService_Deposit_DuplicateServedFromCache(t *testing.T) {
	d := setupBankService(t, domain.Balance{}, domain.Balance{})
	defer d.ctrl.Finish()

	cached, _ := json.Marshal(ports.DepositReceipt{NotificationID: "n-1", InterestPaid: 7})
	d.idempCache.EXPECT().Get(gomock.Any(), "n-1").Return(cached, nil)

	receipt, err := d.svc.Deposit(context.Background(), domain.DepositNotification{
		ID: "n-1", From: "alice", To: "banker", Symbol: "GP", Quantity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), receipt.InterestPaid)

	acct, _ := d.ledger.Get("alice")
	assert.True(t, acct.Balance.IsZero(), "duplicate must not credit again")
}

func TestBankService_Deposit_CacheOutageStillApplies(t *testing.T) {
	d := setupBankService(t, domain.Balance{}, domain.Balance{})
	defer d.ctrl.Finish()

	d.idempCache.EXPECT().Get(gomock.Any(), "n-2").Return(nil, errors.New("redis down"))
	d.expectUpserts("alice", "bank_vault")
	d.idempCache.EXPECT().Set(gomock.Any(), "n-2", gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	_, err := d.svc.Deposit(context.Background(), domain.DepositNotification{
		ID: "n-2", From: "alice", To: "banker", Symbol: "CP", Quantity: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), mustValue(t, d.ledger, "alice"))
}

func TestBankService_Deposit_IgnoredWritesNothing(t *testing.T) {
	d := setupBankService(t, domain.Balance{}, domain.Balance{})
	defer d.ctrl.Finish()

	d.idempCache.EXPECT().Get(gomock.Any(), "n-3").Return(nil, nil)
	d.idempCache.EXPECT().Set(gomock.Any(), "n-3", gomock.Any(), gomock.Any()).Return(nil)

	receipt, err := d.svc.Deposit(context.Background(), domain.DepositNotification{
		ID: "n-3", From: "banker", To: "alice", Symbol: "GP", Quantity: 1,
	})
	require.NoError(t, err)
	assert.True(t, receipt.Ignored)
}

func TestBankService_Deposit_RejectedIsNotCached(t *testing.T) {
	d := setupBankService(t, domain.Balance{}, domain.Balance{})
	defer d.ctrl.Finish()

	d.idempCache.EXPECT().Get(gomock.Any(), "n-4").Return(nil, nil)

	_, err := d.svc.Deposit(context.Background(), domain.DepositNotification{
		ID: "n-4", From: "mallory", To: "banker", Symbol: "GP", Quantity: 1,
	})
	assertAppError(t, err, "BANK_001")
}

// ==================== Withdraw ====================

func TestBankService_Withdraw_PersistsAndEnqueues(t *testing.T) {
	d := setupBankService(t, domain.Balance{0, 0, 0, 5, 0}, domain.Balance{0, 0, 0, 5, 0})
	defer d.ctrl.Finish()

	written := d.expectUpserts("alice", "bank_vault")
	var pushed []domain.TransferRequest
	d.queue.EXPECT().Push(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, reqs []domain.TransferRequest) error {
			pushed = reqs
			return nil
		})

	reqs, err := d.svc.Withdraw(context.Background(), "alice", "alice", 300)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "banker", reqs[0].From)
	assert.Equal(t, "alice", reqs[0].To)
	assert.Equal(t, "GP", reqs[0].Symbol)
	assert.Equal(t, int64(3), reqs[0].Amount)
	assert.Regexp(t, `^[0-9a-f]{32}$`, reqs[0].ID)
	assert.Equal(t, reqs, pushed)

	assert.Equal(t, domain.Balance{0, 0, 0, 2, 0}, (*written)[0].Balance)
	assert.Equal(t, domain.Balance{0, 0, 0, 2, 0}, (*written)[1].Balance)
}

func TestBankService_Withdraw_QueueFailureDoesNotFailOperation(t *testing.T) {
	d := setupBankService(t, domain.Balance{10, 0, 0, 0, 0}, domain.Balance{10, 0, 0, 0, 0})
	defer d.ctrl.Finish()

	d.expectUpserts("alice", "bank_vault")
	d.queue.EXPECT().Push(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	reqs, err := d.svc.Withdraw(context.Background(), "alice", "alice", 4)
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
	assert.Equal(t, int64(6), mustValue(t, d.ledger, "alice"))
}

func TestBankService_Withdraw_PersistFailureRollsBack(t *testing.T) {
	d := setupBankService(t, domain.Balance{0, 0, 0, 5, 0}, domain.Balance{0, 0, 0, 5, 0})
	defer d.ctrl.Finish()

	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
	d.accounts.EXPECT().Upsert(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("deadlock detected"))

	_, err := d.svc.Withdraw(context.Background(), "alice", "alice", 300)
	assertAppError(t, err, "SYS_001")

	assert.Equal(t, int64(500), mustValue(t, d.ledger, "alice"))
	assert.Equal(t, int64(500), mustValue(t, d.ledger, testIDs.Vault))
	assert.True(t, d.ledger.Drain().Empty(), "rolled back changes must not linger in the journal")
}

func TestBankService_Withdraw_CommitFailureRollsBack(t *testing.T) {
	d := setupBankService(t, domain.Balance{0, 0, 0, 5, 0}, domain.Balance{0, 0, 0, 5, 0})
	defer d.ctrl.Finish()

	d.transactor.EXPECT().Begin(gomock.Any()).Return(&failingCommitTx{}, nil)
	d.accounts.EXPECT().Upsert(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	_, err := d.svc.Withdraw(context.Background(), "alice", "alice", 100)
	assertAppError(t, err, "SYS_001")
	assert.Equal(t, int64(500), mustValue(t, d.ledger, "alice"))
}

func TestBankService_Withdraw_BusinessErrorsTouchNothing(t *testing.T) {
	d := setupBankService(t, domain.Balance{0, 0, 0, 5, 0}, domain.Balance{0, 0, 0, 5, 0})
	defer d.ctrl.Finish()

	_, err := d.svc.Withdraw(context.Background(), "bob", "alice", 100)
	assertAppError(t, err, "AUTH_001")

	_, err = d.svc.Withdraw(context.Background(), "alice", "alice", 501)
	assertAppError(t, err, "BANK_004")

	_, err = d.svc.Withdraw(context.Background(), "alice", "alice", 0)
	assertAppError(t, err, "BANK_002")
}

// ==================== Administration ====================

func TestBankService_SetInterestRate_PersistsRate(t *testing.T) {
	d := setupBankService(t, domain.Balance{0, 0, 0, 0, 100}, domain.Balance{0, 0, 0, 0, 100})
	defer d.ctrl.Finish()

	d.clock = testT0.Add(time.Duration(interest.SecondsPerYear) * time.Second)

	written := d.expectUpserts("alice")
	d.settings.EXPECT().SetInterestRate(gomock.Any(), gomock.Any(), int64(500)).Return(nil)

	res, err := d.svc.SetInterestRate(context.Background(), "reserve", 500)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Accounts)
	assert.Equal(t, int64(10_000), res.TotalPaid)
	assert.Equal(t, int64(500), d.svc.InterestRate())
	assert.Equal(t, d.clock, (*written)[0].LastInterestAt)
}

func TestBankService_SetInterestRate_FailureRestoresRate(t *testing.T) {
	d := setupBankService(t, domain.Balance{}, domain.Balance{})
	defer d.ctrl.Finish()

	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
	d.settings.EXPECT().SetInterestRate(gomock.Any(), gomock.Any(), int64(2500)).Return(errors.New("db down"))

	_, err := d.svc.SetInterestRate(context.Background(), "reserve", 2500)
	assertAppError(t, err, "SYS_001")
	assert.Equal(t, interest.DefaultRateBasisPoints, d.svc.InterestRate())
}

func TestBankService_SetInterestRate_Unauthorized(t *testing.T) {
	d := setupBankService(t, domain.Balance{}, domain.Balance{})
	defer d.ctrl.Finish()

	_, err := d.svc.SetInterestRate(context.Background(), "alice", 2500)
	assertAppError(t, err, "AUTH_001")
}

func TestBankService_RunInterestBatch(t *testing.T) {
	d := setupBankService(t, domain.Balance{0, 0, 0, 0, 100}, domain.Balance{0, 0, 0, 0, 100})
	defer d.ctrl.Finish()

	d.clock = testT0.Add(time.Duration(interest.SecondsPerYear) * time.Second)
	d.expectUpserts("alice")

	res, err := d.svc.RunInterestBatch(context.Background(), "reserve")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), res.TotalPaid)
	assert.Equal(t, int64(110_000), mustValue(t, d.ledger, "alice"))
}

func TestBankService_Rebalance_EnqueuesWithoutPersisting(t *testing.T) {
	d := setupBankService(t, domain.Balance{}, domain.Balance{100, 10, 2, 1, 1})
	defer d.ctrl.Finish()

	d.queue.EXPECT().Push(gomock.Any(), gomock.Len(1)).Return(nil)

	reqs, err := d.svc.Rebalance(context.Background(), "reserve", 100)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.MemoReserveDrain, reqs[0].Memo)
	assert.Equal(t, "PP", reqs[0].Symbol)
}

// ==================== Startup and helpers ====================

func TestLoadState(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := mocks.NewMockAccountRepository(ctrl)
	settings := mocks.NewMockSettingsRepository(ctrl)

	accounts.EXPECT().List(gomock.Any()).Return([]domain.Account{
		{Principal: "alice", Balance: domain.Balance{1, 2, 3, 4, 5}, InterestBearing: true, LastInterestAt: testT0},
		{Principal: "bank_vault", Balance: domain.Balance{1, 2, 3, 4, 5}, InterestBearing: true, LastInterestAt: testT0},
	}, nil)
	settings.EXPECT().GetInterestRate(gomock.Any()).Return(int64(0), false, nil)

	l, e, err := LoadState(context.Background(), "bank_vault", accounts, settings, 1000, testT0)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), e.RateBasisPoints())
	assert.Equal(t, 2, l.Len())

	vault, err := l.Get("bank_vault")
	require.NoError(t, err)
	assert.False(t, vault.InterestBearing)
}

func TestLoadState_PersistedRateWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := mocks.NewMockAccountRepository(ctrl)
	settings := mocks.NewMockSettingsRepository(ctrl)

	accounts.EXPECT().List(gomock.Any()).Return(nil, nil)
	settings.EXPECT().GetInterestRate(gomock.Any()).Return(int64(250), true, nil)

	l, e, err := LoadState(context.Background(), "bank_vault", accounts, settings, 1000, testT0)
	require.NoError(t, err)
	assert.Equal(t, int64(250), e.RateBasisPoints())
	assert.True(t, l.Exists("bank_vault"))
}

func TestLoadState_RepositoryError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := mocks.NewMockAccountRepository(ctrl)
	settings := mocks.NewMockSettingsRepository(ctrl)
	accounts.EXPECT().List(gomock.Any()).Return(nil, errors.New("relation \"accounts\" does not exist"))

	_, _, err := LoadState(context.Background(), "bank_vault", accounts, settings, 1000, testT0)
	assert.ErrorContains(t, err, "load accounts")
}

func TestBankService_WithoutPersistence(t *testing.T) {
	l := ledger.New(testIDs.Vault, testT0)
	e, err := interest.NewEngine(interest.DefaultRateBasisPoints)
	require.NoError(t, err)
	svc := NewBankService(testIDs, l, e, nil, nil, nil, nil, nil, newTestLogger())

	_, err = svc.OpenAccount(context.Background(), "carol", "carol")
	require.NoError(t, err)
	_, err = svc.Deposit(context.Background(), domain.DepositNotification{
		ID: "n-9", From: "carol", To: "banker", Symbol: "SP", Quantity: 4,
	})
	require.NoError(t, err)

	reqs, err := svc.Withdraw(context.Background(), "carol", "carol", 20)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.NotEmpty(t, reqs[0].ID)
}

func TestTransferKey(t *testing.T) {
	op := uuid.New()
	req := domain.TransferRequest{From: "banker", To: "alice", Symbol: "GP", Amount: 3, Memo: domain.MemoWithdrawal}

	k1 := transferKey(op, 0, req)
	assert.Equal(t, k1, transferKey(op, 0, req), "same input, same key")
	assert.NotEqual(t, k1, transferKey(op, 1, req))
	assert.NotEqual(t, k1, transferKey(uuid.New(), 0, req))

	req.Amount = 4
	assert.NotEqual(t, k1, transferKey(op, 0, req))
}

func mustValue(t *testing.T, l *ledger.Ledger, principal string) int64 {
	t.Helper()
	acct, err := l.Get(principal)
	require.NoError(t, err)
	return acct.Value()
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
