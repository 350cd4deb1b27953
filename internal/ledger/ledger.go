// Package ledger keeps the keyed store of bank accounts, including the vault.
//
// The ledger holds no locks. Callers serialise access so that each external
// operation observes and mutates the ledger exclusively.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"coin-bank/internal/core/domain"
)

var (
	// ErrNoSuchAccount is returned when the principal has no ledger entry.
	ErrNoSuchAccount = errors.New("no such account")
	// ErrOverdraft is returned when a debit exceeds the tier's coin count.
	ErrOverdraft = errors.New("overdraft")
	// ErrNegativeAmount is returned for negative credit or debit amounts.
	ErrNegativeAmount = errors.New("negative amount")
	// ErrVaultImmutable is returned when trying to delete the vault.
	ErrVaultImmutable = errors.New("vault account cannot be removed")
)

// Ledger maps principals to their accounts.
type Ledger struct {
	vault    string
	accounts map[string]*domain.Account
	touched  map[string]struct{}
	deleted  map[string]struct{}
}

// New creates a ledger containing only the vault account.
func New(vault string, now time.Time) *Ledger {
	l := &Ledger{
		vault:    vault,
		accounts: make(map[string]*domain.Account),
		touched:  make(map[string]struct{}),
		deleted:  make(map[string]struct{}),
	}
	l.accounts[vault] = &domain.Account{
		Principal:       vault,
		InterestBearing: false,
		LastInterestAt:  now,
	}
	l.touch(vault)
	return l
}

// Load rebuilds a ledger from persisted records. A missing vault record is
// created; a persisted vault is forced non interest-bearing.
func Load(vault string, records []domain.Account, now time.Time) *Ledger {
	l := New(vault, now)
	for i := range records {
		acct := records[i]
		if acct.Principal == vault {
			acct.InterestBearing = false
		}
		l.accounts[acct.Principal] = &acct
	}
	l.touched = make(map[string]struct{})
	if !containsPrincipal(records, vault) {
		l.touch(vault)
	}
	return l
}

func containsPrincipal(records []domain.Account, principal string) bool {
	for i := range records {
		if records[i].Principal == principal {
			return true
		}
	}
	return false
}

// Vault returns the vault principal.
func (l *Ledger) Vault() string {
	return l.vault
}

// Open creates an interest-bearing account with zero balances. Opening an
// existing account is a no-op and returns false.
func (l *Ledger) Open(principal string, now time.Time) bool {
	if _, ok := l.accounts[principal]; ok {
		return false
	}
	l.accounts[principal] = &domain.Account{
		Principal:       principal,
		InterestBearing: true,
		LastInterestAt:  now,
	}
	delete(l.deleted, principal)
	l.touch(principal)
	return true
}

// Exists reports whether the principal has an account.
func (l *Ledger) Exists(principal string) bool {
	_, ok := l.accounts[principal]
	return ok
}

// Get returns a copy of the principal's account.
func (l *Ledger) Get(principal string) (domain.Account, error) {
	acct, ok := l.accounts[principal]
	if !ok {
		return domain.Account{}, fmt.Errorf("%w: %s", ErrNoSuchAccount, principal)
	}
	return *acct, nil
}

// Close removes the account and returns its final balance. Accrued interest
// must be settled by the caller beforehand.
func (l *Ledger) Close(principal string) (domain.Balance, error) {
	acct, err := l.Get(principal)
	if err != nil {
		return domain.Balance{}, err
	}
	if err := l.Delete(principal); err != nil {
		return domain.Balance{}, err
	}
	return acct.Balance, nil
}

// Delete removes the account record.
func (l *Ledger) Delete(principal string) error {
	if principal == l.vault {
		return ErrVaultImmutable
	}
	if _, ok := l.accounts[principal]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchAccount, principal)
	}
	delete(l.accounts, principal)
	delete(l.touched, principal)
	l.deleted[principal] = struct{}{}
	return nil
}

// Credit adds amount coins of tier d. No tier may exceed domain.MaxCount.
func (l *Ledger) Credit(principal string, d domain.Denomination, amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	acct, ok := l.accounts[principal]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchAccount, principal)
	}
	if amount > domain.MaxCount-acct.Balance[d] {
		return fmt.Errorf("%w: %s holds %d%s, credit of %d", domain.ErrCountOverflow, principal, acct.Balance[d], d.Symbol(), amount)
	}
	if amount == 0 {
		return nil
	}
	acct.Balance[d] += amount
	l.touch(principal)
	return nil
}

// Debit removes amount coins of tier d.
func (l *Ledger) Debit(principal string, d domain.Denomination, amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	acct, ok := l.accounts[principal]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchAccount, principal)
	}
	if amount > acct.Balance[d] {
		return fmt.Errorf("%w: %s holds %d%s, debit of %d", ErrOverdraft, principal, acct.Balance[d], d.Symbol(), amount)
	}
	if amount == 0 {
		return nil
	}
	acct.Balance[d] -= amount
	l.touch(principal)
	return nil
}

// DebitCoins removes every tier of coins, or nothing if any tier would overdraw.
func (l *Ledger) DebitCoins(principal string, coins domain.Balance) error {
	acct, ok := l.accounts[principal]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchAccount, principal)
	}
	for _, d := range domain.Denominations() {
		if coins[d] < 0 {
			return ErrNegativeAmount
		}
		if coins[d] > acct.Balance[d] {
			return fmt.Errorf("%w: %s holds %d%s, debit of %d", ErrOverdraft, principal, acct.Balance[d], d.Symbol(), coins[d])
		}
	}
	for _, d := range domain.Denominations() {
		acct.Balance[d] -= coins[d]
	}
	l.touch(principal)
	return nil
}

// CreditCoins adds every tier of coins, or nothing if any tier would exceed
// domain.MaxCount.
func (l *Ledger) CreditCoins(principal string, coins domain.Balance) error {
	acct, ok := l.accounts[principal]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchAccount, principal)
	}
	for _, d := range domain.Denominations() {
		if coins[d] < 0 {
			return ErrNegativeAmount
		}
	}
	if !acct.Balance.CanAdd(coins) {
		return fmt.Errorf("%w: %s holds %v, credit of %v", domain.ErrCountOverflow, principal, acct.Balance, coins)
	}
	if coins.IsZero() {
		return nil
	}
	for _, d := range domain.Denominations() {
		acct.Balance[d] += coins[d]
	}
	l.touch(principal)
	return nil
}

// SetLastInterest records the instant accrued interest was last folded in.
func (l *Ledger) SetLastInterest(principal string, at time.Time) error {
	acct, ok := l.accounts[principal]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchAccount, principal)
	}
	acct.LastInterestAt = at
	l.touch(principal)
	return nil
}

// Principals returns every principal in sorted order, vault included.
func (l *Ledger) Principals() []string {
	out := make([]string, 0, len(l.accounts))
	for p := range l.accounts {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of accounts, vault included.
func (l *Ledger) Len() int {
	return len(l.accounts)
}

func (l *Ledger) touch(principal string) {
	l.touched[principal] = struct{}{}
}

// Changes lists the accounts modified and the principals deleted since the
// last Drain.
type Changes struct {
	Updated []domain.Account
	Deleted []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Drain returns and clears the change journal. Entries are sorted by principal.
func (l *Ledger) Drain() Changes {
	var c Changes
	for p := range l.touched {
		if acct, ok := l.accounts[p]; ok {
			c.Updated = append(c.Updated, *acct)
		}
	}
	for p := range l.deleted {
		c.Deleted = append(c.Deleted, p)
	}
	sort.Slice(c.Updated, func(i, j int) bool { return c.Updated[i].Principal < c.Updated[j].Principal })
	sort.Strings(c.Deleted)
	l.touched = make(map[string]struct{})
	l.deleted = make(map[string]struct{})
	return c
}

// Snapshot is an opaque deep copy of the ledger state.
type Snapshot struct {
	accounts map[string]domain.Account
	touched  map[string]struct{}
	deleted  map[string]struct{}
}

// Snapshot captures the current state, journal included.
func (l *Ledger) Snapshot() Snapshot {
	s := Snapshot{
		accounts: make(map[string]domain.Account, len(l.accounts)),
		touched:  make(map[string]struct{}, len(l.touched)),
		deleted:  make(map[string]struct{}, len(l.deleted)),
	}
	for p, acct := range l.accounts {
		s.accounts[p] = *acct
	}
	for p := range l.touched {
		s.touched[p] = struct{}{}
	}
	for p := range l.deleted {
		s.deleted[p] = struct{}{}
	}
	return s
}

// Restore rolls the ledger back to a snapshot.
func (l *Ledger) Restore(s Snapshot) {
	l.accounts = make(map[string]*domain.Account, len(s.accounts))
	for p, acct := range s.accounts {
		acct := acct
		l.accounts[p] = &acct
	}
	l.touched = make(map[string]struct{}, len(s.touched))
	for p := range s.touched {
		l.touched[p] = struct{}{}
	}
	l.deleted = make(map[string]struct{}, len(s.deleted))
	for p := range s.deleted {
		l.deleted[p] = struct{}{}
	}
}
