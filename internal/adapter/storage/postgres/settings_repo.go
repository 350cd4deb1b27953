package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
)

const settingInterestRate = "interest_rate_bps"

// SettingsRepo implements ports.SettingsRepository over a key/value table.
type SettingsRepo struct {
	pool Pool
}

// NewSettingsRepo creates a new SettingsRepo.
func NewSettingsRepo(pool Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

// GetInterestRate returns the stored rate in basis points.
func (r *SettingsRepo) GetInterestRate(ctx context.Context) (int64, bool, error) {
	var raw string
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, settingInterestRate).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get interest rate: %w", err)
	}
	bps, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse interest rate %q: %w", raw, err)
	}
	return bps, true, nil
}

// SetInterestRate stores the rate. This MUST be called within a transaction.
func (r *SettingsRepo) SetInterestRate(ctx context.Context, tx pgx.Tx, rateBps int64) error {
	query := `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	if _, err := tx.Exec(ctx, query, settingInterestRate, strconv.FormatInt(rateBps, 10)); err != nil {
		return fmt.Errorf("set interest rate: %w", err)
	}
	return nil
}
