package ports

import (
	"context"

	"coin-bank/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepository persists ledger records, one row per principal.
// Writes take a pgx.Tx so that every record touched by one bank operation
// commits or rolls back together.
type AccountRepository interface {
	List(ctx context.Context) ([]domain.Account, error)
	Upsert(ctx context.Context, tx pgx.Tx, account *domain.Account) error
	Delete(ctx context.Context, tx pgx.Tx, principal string) error
}

// SettingsRepository stores process-wide scalars.
type SettingsRepository interface {
	// GetInterestRate returns the persisted rate and whether one exists.
	GetInterestRate(ctx context.Context) (int64, bool, error)
	SetInterestRate(ctx context.Context, tx pgx.Tx, rateBps int64) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
