package integration

import (
	"context"
	"sort"
	"sync"

	"coin-bank/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

func newInMemoryAccountRepo(seed ...domain.Account) *inMemoryAccountRepo {
	r := &inMemoryAccountRepo{accounts: make(map[string]domain.Account)}
	for _, a := range seed {
		r.accounts[a.Principal] = a
	}
	return r
}

func (r *inMemoryAccountRepo) List(ctx context.Context) ([]domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Principal < out[j].Principal })
	return out, nil
}

func (r *inMemoryAccountRepo) Upsert(ctx context.Context, tx pgx.Tx, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.Principal] = *account
	return nil
}

func (r *inMemoryAccountRepo) Delete(ctx context.Context, tx pgx.Tx, principal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, principal)
	return nil
}

func (r *inMemoryAccountRepo) get(principal string) (domain.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[principal]
	return a, ok
}

// --- In-Memory Settings Repo ---

type inMemorySettingsRepo struct {
	mu      sync.RWMutex
	rateBps int64
	set     bool
}

func newInMemorySettingsRepo() *inMemorySettingsRepo {
	return &inMemorySettingsRepo{}
}

func (r *inMemorySettingsRepo) GetInterestRate(ctx context.Context) (int64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rateBps, r.set, nil
}

func (r *inMemorySettingsRepo) SetInterestRate(ctx context.Context, tx pgx.Tx, rateBps int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rateBps, r.set = rateBps, true
	return nil
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *log)
	return nil
}

func (r *inMemoryAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, string(e.Action))
	}
	return out
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func (t inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return noopTx{}, nil
}

// noopTx satisfies pgx.Tx for repos that ignore the transaction handle.
type noopTx struct{}

func (t noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t noopTx) Commit(ctx context.Context) error          { return nil }
func (t noopTx) Rollback(ctx context.Context) error        { return nil }
func (t noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t noopTx) Conn() *pgx.Conn { return nil }
