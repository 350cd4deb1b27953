package postgres

import (
	"context"
	"fmt"

	"coin-bank/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository. Coin counts are stored one
// column per tier.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// List loads every account, vault included.
func (r *AccountRepo) List(ctx context.Context) ([]domain.Account, error) {
	query := `SELECT principal, cp, sp, ep, gp, pp, interest_bearing, last_interest_at
		FROM accounts ORDER BY principal`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(
			&a.Principal,
			&a.Balance[domain.Copper], &a.Balance[domain.Silver], &a.Balance[domain.Electrum],
			&a.Balance[domain.Gold], &a.Balance[domain.Platinum],
			&a.InterestBearing, &a.LastInterestAt,
		); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

// Upsert writes the full account record. This MUST be called within a transaction.
func (r *AccountRepo) Upsert(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	query := `INSERT INTO accounts (principal, cp, sp, ep, gp, pp, interest_bearing, last_interest_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (principal) DO UPDATE SET
			cp = EXCLUDED.cp, sp = EXCLUDED.sp, ep = EXCLUDED.ep, gp = EXCLUDED.gp, pp = EXCLUDED.pp,
			interest_bearing = EXCLUDED.interest_bearing,
			last_interest_at = EXCLUDED.last_interest_at,
			updated_at = now()`

	_, err := tx.Exec(ctx, query,
		a.Principal,
		a.Balance[domain.Copper], a.Balance[domain.Silver], a.Balance[domain.Electrum],
		a.Balance[domain.Gold], a.Balance[domain.Platinum],
		a.InterestBearing, a.LastInterestAt,
	)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.Principal, err)
	}
	return nil
}

// Delete removes an account row. Deleting a missing row is not an error.
func (r *AccountRepo) Delete(ctx context.Context, tx pgx.Tx, principal string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE principal = $1`, principal); err != nil {
		return fmt.Errorf("delete account %s: %w", principal, err)
	}
	return nil
}
