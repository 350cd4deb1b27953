package bank

import (
	"testing"

	"coin-bank/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVault(t *testing.T, f *fixture, coins domain.Balance) {
	t.Helper()
	require.NoError(t, f.ledger.CreditCoins(ids.Vault, coins))
}

func TestRebalance_TopsUpEveryTier(t *testing.T) {
	f := setupBank(t)
	seedVault(t, f, domain.Balance{500, 50000, 10000, 5000, 800})

	reqs, err := f.bank.Rebalance(ids.Reserve, 1_000_000)
	require.NoError(t, err)

	want := []int64{999500, 50000, 10000, 5000, 200}
	require.Len(t, reqs, len(want))
	for i, d := range domain.Denominations() {
		assert.Equal(t, domain.TransferRequest{
			From:   ids.Reserve,
			To:     ids.Self,
			Symbol: d.Symbol(),
			Amount: want[i],
			Memo:   domain.MemoReserveTopup,
		}, reqs[i])
	}

	// emit-only: the vault changes when the reserve's transfer lands
	vault, _ := f.ledger.Get(ids.Vault)
	assert.Equal(t, domain.Balance{500, 50000, 10000, 5000, 800}, vault.Balance)
}

func TestRebalance_DrainsSurplusAndSkipsBalancedTiers(t *testing.T) {
	f := setupBank(t)
	seedVault(t, f, domain.Balance{1000, 150, 20, 10, 0})

	reqs, err := f.bank.Rebalance(ids.Reserve, 1000)
	require.NoError(t, err)

	// targets {1000, 100, 20, 10, 1}
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.TransferRequest{From: ids.Self, To: ids.Reserve, Symbol: "SP", Amount: 50, Memo: domain.MemoReserveDrain}, reqs[0])
	assert.Equal(t, domain.TransferRequest{From: ids.Reserve, To: ids.Self, Symbol: "PP", Amount: 1, Memo: domain.MemoReserveTopup}, reqs[1])
}

func TestRebalance_AlreadyOnTarget(t *testing.T) {
	f := setupBank(t)
	seedVault(t, f, domain.Balance{100, 10, 2, 1, 0})

	reqs, err := f.bank.Rebalance(ids.Reserve, 100)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestRebalance_ZeroTargetDrainsEverything(t *testing.T) {
	f := setupBank(t)
	seedVault(t, f, domain.Balance{3, 0, 0, 0, 2})

	reqs, err := f.bank.Rebalance(ids.Reserve, 0)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, int64(3), reqs[0].Amount)
	assert.Equal(t, int64(2), reqs[1].Amount)
	assert.Equal(t, ids.Reserve, reqs[1].To)
}

func TestRebalance_Errors(t *testing.T) {
	f := setupBank(t)

	_, err := f.bank.Rebalance("alice", 1000)
	assertAppError(t, err, "AUTH_001")

	_, err = f.bank.Rebalance(ids.Self, 1000)
	assertAppError(t, err, "AUTH_001")

	_, err = f.bank.Rebalance(ids.Reserve, -1)
	assertAppError(t, err, "BANK_002")
}
