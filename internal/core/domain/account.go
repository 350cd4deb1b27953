package domain

import "time"

// Account is a ledger record owned by a single principal.
type Account struct {
	Principal       string    `json:"principal"`
	Balance         Balance   `json:"balance"`
	InterestBearing bool      `json:"interest_bearing"`
	LastInterestAt  time.Time `json:"last_interest_at"`
}

// Value returns the account's total value in base units.
func (a *Account) Value() int64 {
	return a.Balance.Value()
}
