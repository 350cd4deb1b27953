// Package bank orchestrates deposits, withdrawals, account lifecycle and
// administrative operations over the ledger and the interest engine.
//
// Bank performs no I/O and holds no locks. Every method expects exclusive
// access to the ledger for its duration and either completes or returns an
// error without mutating anything. Outbound coin movements are returned as
// transfer requests for an external transport to carry out.
package bank

import (
	"errors"
	"time"

	"coin-bank/internal/core/domain"
	"coin-bank/internal/interest"
	"coin-bank/internal/ledger"
	"coin-bank/pkg/apperror"
)

// Identities are the principals the bank treats specially.
type Identities struct {
	// Self is the bank's own identity on the asset-transfer service.
	Self string
	// Vault is the ledger record tracking the coins Self physically holds.
	Vault string
	// Reserve is the external reserve. It authorises administrative calls.
	Reserve string
}

// Bank is the ledger core.
type Bank struct {
	ids    Identities
	ledger *ledger.Ledger
	engine *interest.Engine
}

// New creates a Bank over an existing ledger and engine.
func New(ids Identities, l *ledger.Ledger, e *interest.Engine) *Bank {
	return &Bank{ids: ids, ledger: l, engine: e}
}

// Identities returns the configured identities.
func (b *Bank) Identities() Identities {
	return b.ids
}

// DepositResult describes what a deposit notification did.
type DepositResult struct {
	Ignored      bool  `json:"ignored"`
	ReserveTopup bool  `json:"reserve_topup"`
	InterestPaid int64 `json:"interest_paid"`
}

// Deposit applies an inbound transfer notification. Notifications that did
// not move coins into Self, or that Self sent, are ignored.
func (b *Bank) Deposit(n domain.DepositNotification, now time.Time) (DepositResult, error) {
	if n.From == b.ids.Self || n.To != b.ids.Self {
		return DepositResult{Ignored: true}, nil
	}
	if n.Quantity <= 0 {
		return DepositResult{}, apperror.ErrInvalidAmount()
	}
	d, err := domain.LookupSymbol(n.Symbol)
	if err != nil {
		return DepositResult{}, apperror.ErrUnknownDenomination(err)
	}

	if n.From == b.ids.Reserve {
		if err := b.ledger.Credit(b.ids.Vault, d, n.Quantity); err != nil {
			return DepositResult{}, mapLedgerError(err)
		}
		return DepositResult{ReserveTopup: true}, nil
	}

	if n.From == b.ids.Vault {
		return DepositResult{}, apperror.ErrUnauthorized()
	}
	if !b.ledger.Exists(n.From) {
		return DepositResult{}, apperror.ErrNoSuchAccount()
	}
	vault, err := b.ledger.Get(b.ids.Vault)
	if err != nil {
		return DepositResult{}, mapLedgerError(err)
	}

	acct, err := b.ledger.Get(n.From)
	if err != nil {
		return DepositResult{}, mapLedgerError(err)
	}
	var credit domain.Balance
	credit[domain.Copper] = b.engine.Compute(acct, now)
	credit[d] += n.Quantity
	var vaultCredit domain.Balance
	vaultCredit[d] = n.Quantity
	if !acct.Balance.CanAdd(credit) || !vault.Balance.CanAdd(vaultCredit) {
		return DepositResult{}, apperror.ErrBalanceLimit()
	}

	paid, err := b.engine.FoldBeforeDeposit(b.ledger, n.From, now)
	if err != nil {
		return DepositResult{}, mapLedgerError(err)
	}
	if err := b.ledger.Credit(n.From, d, n.Quantity); err != nil {
		return DepositResult{}, mapLedgerError(err)
	}
	if err := b.ledger.Credit(b.ids.Vault, d, n.Quantity); err != nil {
		return DepositResult{}, mapLedgerError(err)
	}
	return DepositResult{InterestPaid: paid}, nil
}

// Withdraw pays value base units out of user's account. The vault's coins
// are extracted largest tier first and become the outbound batch; the user
// loses exactly value, breaking a coin for change when needed.
func (b *Bank) Withdraw(caller, user string, value int64) ([]domain.TransferRequest, error) {
	if err := b.authorizeUser(caller, user); err != nil {
		return nil, err
	}
	if value <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	acct, err := b.ledger.Get(user)
	if err != nil {
		return nil, mapLedgerError(err)
	}
	vault, err := b.ledger.Get(b.ids.Vault)
	if err != nil {
		return nil, mapLedgerError(err)
	}
	if acct.Value() < value {
		return nil, apperror.ErrInsufficientUserFunds()
	}
	if vault.Value() < value {
		return nil, apperror.ErrInsufficientVaultFunds()
	}

	_, vaultCoins := vault.Balance.Extract(value)
	if vaultCoins.Value() != value {
		// the vault holds enough value but not in coins that add up exactly
		return nil, apperror.ErrInsufficientVaultFunds()
	}
	_, taken, change, ok := acct.Balance.Deduct(value)
	if !ok {
		return nil, apperror.ErrInsufficientUserFunds()
	}

	// every adjustment stays within current counts, so none of these can fail
	if err := b.ledger.DebitCoins(user, taken); err != nil {
		return nil, mapLedgerError(err)
	}
	if err := b.ledger.CreditCoins(user, change); err != nil {
		return nil, mapLedgerError(err)
	}
	if err := b.ledger.DebitCoins(b.ids.Vault, vaultCoins); err != nil {
		return nil, mapLedgerError(err)
	}

	return domain.BatchRequests(b.ids.Self, user, vaultCoins, domain.MemoWithdrawal), nil
}

// OpenAccount creates user's account. It reports whether a new account was
// created; opening an existing account changes nothing.
func (b *Bank) OpenAccount(caller, user string, now time.Time) (bool, error) {
	if err := b.authorizeUser(caller, user); err != nil {
		return false, err
	}
	return b.ledger.Open(user, now), nil
}

// CloseAccount settles interest, returns the whole balance to user and
// deletes the account. The payout is built from the account's own coins and
// the vault record is not debited, so it overstates the bank's holdings until
// the reserve rebalances the float.
func (b *Bank) CloseAccount(caller, user string, now time.Time) ([]domain.TransferRequest, error) {
	if err := b.authorizeUser(caller, user); err != nil {
		return nil, err
	}
	if !b.ledger.Exists(user) {
		return nil, apperror.ErrNoSuchAccount()
	}
	if _, err := b.engine.Settle(b.ledger, user, now); err != nil {
		return nil, mapLedgerError(err)
	}
	balance, err := b.ledger.Close(user)
	if err != nil {
		return nil, mapLedgerError(err)
	}
	return domain.BatchRequests(b.ids.Self, user, balance, domain.MemoAccountClosing), nil
}

// Account returns a copy of user's account together with the interest
// accrued but not yet folded in.
func (b *Bank) Account(caller, user string, now time.Time) (domain.Account, int64, error) {
	if err := b.authorizeUser(caller, user); err != nil {
		return domain.Account{}, 0, err
	}
	acct, err := b.ledger.Get(user)
	if err != nil {
		return domain.Account{}, 0, mapLedgerError(err)
	}
	return acct, b.engine.Compute(acct, now), nil
}

// SetInterestRate finalises all accounts at the current rate, then installs
// the new one.
func (b *Bank) SetInterestRate(caller string, rateBps int64, now time.Time) (interest.BatchResult, error) {
	if err := b.authorizeReserve(caller); err != nil {
		return interest.BatchResult{}, err
	}
	if rateBps < 0 {
		return interest.BatchResult{}, apperror.ErrInvalidAmount()
	}
	res, err := b.engine.ChangeRate(b.ledger, rateBps, now)
	if err != nil {
		return res, mapLedgerError(err)
	}
	return res, nil
}

// InterestRate returns the current rate in basis points.
func (b *Bank) InterestRate() int64 {
	return b.engine.RateBasisPoints()
}

// RunInterestBatch settles every interest-bearing account.
func (b *Bank) RunInterestBatch(caller string, now time.Time) (interest.BatchResult, error) {
	if err := b.authorizeReserve(caller); err != nil {
		return interest.BatchResult{}, err
	}
	res, err := b.engine.SettleAll(b.ledger, now)
	if err != nil {
		return res, mapLedgerError(err)
	}
	return res, nil
}

func (b *Bank) authorizeUser(caller, user string) error {
	if caller == "" || caller != user {
		return apperror.ErrUnauthorized()
	}
	if user == b.ids.Self || user == b.ids.Vault {
		return apperror.ErrUnauthorized()
	}
	return nil
}

func (b *Bank) authorizeReserve(caller string) error {
	if caller == "" || caller != b.ids.Reserve {
		return apperror.ErrUnauthorized()
	}
	return nil
}

func mapLedgerError(err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, ledger.ErrNoSuchAccount):
		return apperror.ErrNoSuchAccount()
	case errors.Is(err, ledger.ErrOverdraft):
		return apperror.ErrOverdraft(err)
	case errors.Is(err, ledger.ErrNegativeAmount), errors.Is(err, interest.ErrNegativeRate):
		return apperror.ErrInvalidAmount()
	case errors.Is(err, domain.ErrUnknownDenomination):
		return apperror.ErrUnknownDenomination(err)
	case errors.Is(err, domain.ErrCountOverflow):
		return apperror.ErrBalanceLimit()
	default:
		return apperror.InternalError(err)
	}
}
