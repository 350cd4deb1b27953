// Package interest computes and settles time-proportional interest on ledger
// accounts.
package interest

import (
	"errors"
	"fmt"
	"time"

	"coin-bank/internal/core/domain"

	"github.com/shopspring/decimal"
)

const (
	// SecondsPerYear is the length of an interest year (365.25 days).
	SecondsPerYear int64 = 31_557_600
	// BasisPointsPerUnit converts basis points into a fraction.
	BasisPointsPerUnit int64 = 10_000
	// DefaultRateBasisPoints is the rate applied when none has been set (10%).
	DefaultRateBasisPoints int64 = 1_000
)

// ErrNegativeRate is returned when a rate below zero is requested.
var ErrNegativeRate = errors.New("interest rate must not be negative")

// Accounts is the subset of the ledger the engine works against.
type Accounts interface {
	Get(principal string) (domain.Account, error)
	Credit(principal string, d domain.Denomination, amount int64) error
	SetLastInterest(principal string, at time.Time) error
	Principals() []string
}

// BatchResult summarises one settle-all pass.
type BatchResult struct {
	Accounts  int   `json:"accounts"`
	TotalPaid int64 `json:"total_paid"`
}

// Engine holds the process-wide interest rate.
type Engine struct {
	rateBps int64
}

// NewEngine creates an engine with the given rate in basis points.
func NewEngine(rateBps int64) (*Engine, error) {
	if rateBps < 0 {
		return nil, ErrNegativeRate
	}
	return &Engine{rateBps: rateBps}, nil
}

// RateBasisPoints returns the current rate in basis points.
func (e *Engine) RateBasisPoints() int64 {
	return e.rateBps
}

// Rate returns the current rate as a fraction per year.
func (e *Engine) Rate() decimal.Decimal {
	return decimal.NewFromInt(e.rateBps).Div(decimal.NewFromInt(BasisPointsPerUnit))
}

// Compute returns the interest accrued by acct between its last settlement
// and now, floored to whole base units and capped at domain.MaxCount. It does
// not mutate anything.
func (e *Engine) Compute(acct domain.Account, now time.Time) int64 {
	if !acct.InterestBearing || e.rateBps == 0 {
		return 0
	}
	elapsed := int64(now.Sub(acct.LastInterestAt) / time.Second)
	if elapsed <= 0 {
		return 0
	}
	value := acct.Balance.Value()
	if value <= 0 {
		return 0
	}

	num := decimal.NewFromInt(value).
		Mul(decimal.NewFromInt(elapsed)).
		Mul(decimal.NewFromInt(e.rateBps))
	den := decimal.NewFromInt(SecondsPerYear).Mul(decimal.NewFromInt(BasisPointsPerUnit))

	q, _ := num.QuoRem(den, 0)
	if q.GreaterThan(decimal.NewFromInt(domain.MaxCount)) {
		return domain.MaxCount
	}
	return q.IntPart()
}

// Settle credits accrued interest to the copper tier. The timestamp only
// advances when something was paid.
func (e *Engine) Settle(accts Accounts, principal string, now time.Time) (int64, error) {
	acct, err := accts.Get(principal)
	if err != nil {
		return 0, err
	}
	accrued := e.Compute(acct, now)
	if accrued <= 0 {
		return 0, nil
	}
	if err := accts.Credit(principal, domain.Copper, accrued); err != nil {
		return 0, err
	}
	if err := accts.SetLastInterest(principal, now); err != nil {
		return 0, err
	}
	return accrued, nil
}

// SettleAll settles every interest-bearing account.
func (e *Engine) SettleAll(accts Accounts, now time.Time) (BatchResult, error) {
	return e.settleAll(accts, now, false)
}

type payout struct {
	principal string
	amount    int64
}

// settleAll pays every interest-bearing account in two passes so that a
// failing account leaves the rest untouched. With finalize set, accounts whose
// accrual floors to zero still have their timestamp moved to now.
func (e *Engine) settleAll(accts Accounts, now time.Time, finalize bool) (BatchResult, error) {
	var res BatchResult
	var payouts []payout
	for _, p := range accts.Principals() {
		acct, err := accts.Get(p)
		if err != nil {
			return res, err
		}
		if !acct.InterestBearing {
			continue
		}
		accrued := e.Compute(acct, now)
		if accrued > 0 && !acct.Balance.CanAdd(domain.Balance{domain.Copper: accrued}) {
			return res, fmt.Errorf("%w: interest of %dcp for %s", domain.ErrCountOverflow, accrued, p)
		}
		if accrued > 0 || (finalize && now.After(acct.LastInterestAt)) {
			payouts = append(payouts, payout{principal: p, amount: accrued})
		}
	}

	for _, po := range payouts {
		if po.amount > 0 {
			if err := accts.Credit(po.principal, domain.Copper, po.amount); err != nil {
				return res, err
			}
			res.Accounts++
			res.TotalPaid += po.amount
		}
		if err := accts.SetLastInterest(po.principal, now); err != nil {
			return res, err
		}
	}
	return res, nil
}

// FoldBeforeDeposit folds interest accrued on the pre-deposit balance into the
// account and restarts accrual at now, paid or not.
func (e *Engine) FoldBeforeDeposit(accts Accounts, principal string, now time.Time) (int64, error) {
	acct, err := accts.Get(principal)
	if err != nil {
		return 0, err
	}
	accrued := e.Compute(acct, now)
	if accrued > 0 {
		if err := accts.Credit(principal, domain.Copper, accrued); err != nil {
			return 0, err
		}
	}
	if err := accts.SetLastInterest(principal, now); err != nil {
		return 0, err
	}
	return accrued, nil
}

// ChangeRate finalises every account at the current rate and only then
// installs the new one. Every interest-bearing account restarts accrual at
// now, including those whose old-rate interest floored to zero, so the new
// rate never applies to time before the change.
func (e *Engine) ChangeRate(accts Accounts, rateBps int64, now time.Time) (BatchResult, error) {
	if rateBps < 0 {
		return BatchResult{}, ErrNegativeRate
	}
	res, err := e.settleAll(accts, now, true)
	if err != nil {
		return res, err
	}
	e.rateBps = rateBps
	return res, nil
}

// SetRate overwrites the rate without settling. It is meant for restoring a
// persisted rate at startup or after a failed persist.
func (e *Engine) SetRate(rateBps int64) {
	e.rateBps = rateBps
}
