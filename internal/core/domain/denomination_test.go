package domain

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenomination_Table(t *testing.T) {
	tests := []struct {
		d      Denomination
		symbol string
		value  int64
	}{
		{Copper, "CP", 1},
		{Silver, "SP", 10},
		{Electrum, "EP", 50},
		{Gold, "GP", 100},
		{Platinum, "PP", 1000},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.symbol, tt.d.Symbol())
			assert.Equal(t, tt.value, tt.d.BaseValue())
			assert.True(t, tt.d.Valid())

			got, err := LookupSymbol(tt.symbol)
			require.NoError(t, err)
			assert.Equal(t, tt.d, got)
		})
	}
}

func TestLookupSymbol_CaseInsensitive(t *testing.T) {
	d, err := LookupSymbol(" gp ")
	require.NoError(t, err)
	assert.Equal(t, Gold, d)
}

func TestLookupSymbol_Unknown(t *testing.T) {
	_, err := LookupSymbol("EOS")
	assert.True(t, errors.Is(err, ErrUnknownDenomination))
}

func TestValueOf(t *testing.T) {
	b := Balance{2, 0, 0, 6, 3}
	assert.Equal(t, int64(3602), ValueOf(b))
	assert.Equal(t, int64(0), ValueOf(Balance{}))
}

func TestExtract_GreedyLargestFirst(t *testing.T) {
	b := Balance{5, 3, 4, 6, 1}

	updated, removed := b.Extract(350)

	assert.Equal(t, Balance{0, 0, 1, 3, 0}, removed)
	assert.Equal(t, Balance{5, 3, 3, 3, 1}, updated)
	assert.Equal(t, int64(350), removed.Value())
}

func TestExtract_BreaksDownWhenLargeTiersRunOut(t *testing.T) {
	b := Balance{7, 9, 0, 0, 0}

	updated, removed := b.Extract(95)

	assert.Equal(t, Balance{5, 9, 0, 0, 0}, removed)
	assert.Equal(t, Balance{2, 0, 0, 0, 0}, updated)
}

func TestExtract_ExactChangeForEveryValue(t *testing.T) {
	balances := []Balance{
		{500, 50000, 10000, 5000, 800},
		{9, 9, 1, 9, 3},
		{1234, 0, 0, 0, 0},
	}

	for _, b := range balances {
		v := b.Value()
		for _, r := range []int64{0, 1, v / 3, v / 2, v - 1, v} {
			updated, removed := b.Extract(r)
			assert.Equal(t, r, removed.Value(), "removed value for %v, r=%d", b, r)
			assert.Equal(t, v-r, updated.Value(), "remaining value for %v, r=%d", b, r)
			for i := range updated {
				assert.GreaterOrEqual(t, updated[i], int64(0))
			}
		}
	}
}

func TestExtract_NoExactSelection(t *testing.T) {
	b := Balance{40, 0, 0, 6, 0}

	updated, removed := b.Extract(350)

	assert.Equal(t, Balance{40, 0, 0, 3, 0}, removed)
	assert.Equal(t, Balance{0, 0, 0, 3, 0}, updated)
	assert.Equal(t, int64(340), removed.Value())
}

func TestDeduct_BreaksCoinForChange(t *testing.T) {
	b := Balance{40, 0, 0, 6, 0}

	updated, taken, change, ok := b.Deduct(350)

	require.True(t, ok)
	assert.Equal(t, Balance{40, 0, 0, 4, 0}, taken)
	assert.Equal(t, Balance{0, 4, 1, 0, 0}, change)
	assert.Equal(t, Balance{0, 4, 1, 2, 0}, updated)
	assert.Equal(t, int64(290), updated.Value())
}

func TestDeduct_ExactForEveryValue(t *testing.T) {
	balances := []Balance{
		{3, 2, 1, 4, 2},
		{99, 1, 1, 1, 1},
		{0, 0, 0, 0, 7},
	}

	for _, b := range balances {
		v := b.Value()
		for _, r := range []int64{0, 1, 13, v / 3, v / 2, v - 1, v} {
			updated, taken, change, ok := b.Deduct(r)
			require.True(t, ok)
			assert.Equal(t, v-r, updated.Value(), "remaining value for %v, r=%d", b, r)
			assert.Equal(t, r, taken.Value()-change.Value())
			for i := range updated {
				assert.GreaterOrEqual(t, updated[i], int64(0))
				assert.LessOrEqual(t, taken[i], b[i])
			}
		}
	}
}

func TestDeduct_Insufficient(t *testing.T) {
	b := Balance{5, 0, 0, 0, 0}
	updated, _, _, ok := b.Deduct(6)
	assert.False(t, ok)
	assert.Equal(t, b, updated)
}

func TestExtract_Zero(t *testing.T) {
	b := Balance{1, 1, 1, 1, 1}
	updated, removed := b.Extract(0)
	assert.Equal(t, b, updated)
	assert.True(t, removed.IsZero())
}

func TestMinimalChange(t *testing.T) {
	assert.Equal(t, Balance{5, 4, 0, 3, 12}, MinimalChange(12345))
	assert.Equal(t, Balance{0, 0, 1, 0, 0}, MinimalChange(50))
	assert.True(t, MinimalChange(0).IsZero())
}

func TestParseCoins(t *testing.T) {
	b, err := ParseCoins("3pp 6gp 2cp")
	require.NoError(t, err)
	assert.Equal(t, Balance{2, 0, 0, 6, 3}, b)

	b, err = ParseCoins("10ep 5 sp 3EP")
	require.Error(t, err, "a detached count is not a coin")
	assert.True(t, errors.Is(err, ErrMalformedCoins))
	assert.True(t, b.IsZero())

	b, err = ParseCoins("10ep 3EP")
	require.NoError(t, err)
	assert.Equal(t, Balance{0, 0, 13, 0, 0}, b)

	b, err = ParseCoins("")
	require.NoError(t, err)
	assert.True(t, b.IsZero())
}

func TestParseCoins_CountLimit(t *testing.T) {
	// 18446744073709552 * 1000 wraps int64
	_, err := ParseCoins("18446744073709552pp")
	assert.ErrorIs(t, err, ErrMalformedCoins)

	_, err = ParseCoins("99999999999999999999cp")
	assert.ErrorIs(t, err, ErrMalformedCoins)

	limit := strconv.FormatInt(MaxCount, 10)
	b, err := ParseCoins(limit + "pp")
	require.NoError(t, err)
	assert.Equal(t, MaxCount, b[Platinum])

	_, err = ParseCoins(limit + "cp 1cp")
	assert.ErrorIs(t, err, ErrMalformedCoins)
}

func TestMaxCount_BalanceValueFits(t *testing.T) {
	full := Balance{MaxCount, MaxCount, MaxCount, MaxCount, MaxCount}
	v := full.Value()
	assert.Positive(t, v)
	assert.Equal(t, MaxCount*1161, v)
	assert.LessOrEqual(t, v, int64(math.MaxInt64))
}

func TestBalance_CanAdd(t *testing.T) {
	b := Balance{MaxCount - 2, 0, 0, 0, 7}

	assert.True(t, b.CanAdd(Balance{2, 0, 0, 0, 0}))
	assert.False(t, b.CanAdd(Balance{3, 0, 0, 0, 0}))
	assert.False(t, b.CanAdd(Balance{0, 0, 0, 0, math.MaxInt64}))
	assert.False(t, b.CanAdd(Balance{0, -1, 0, 0, 0}))
	assert.True(t, b.CanAdd(Balance{}))
}

func TestParseCoins_UnknownSymbol(t *testing.T) {
	_, err := ParseCoins("4xp")
	assert.True(t, errors.Is(err, ErrUnknownDenomination))
}

func TestBalance_String(t *testing.T) {
	assert.Equal(t, "3pp 6gp 2cp", Balance{2, 0, 0, 6, 3}.String())
	assert.Equal(t, "0cp", Balance{}.String())
	assert.Equal(t, "1ep", Balance{0, 0, 1, 0, 0}.String())
}

func TestBatchRequests_SkipsEmptyTiers(t *testing.T) {
	reqs := BatchRequests("bank", "alice", Balance{0, 2, 0, 0, 1}, MemoWithdrawal)

	require.Len(t, reqs, 2)
	assert.Equal(t, TransferRequest{From: "bank", To: "alice", Symbol: "SP", Amount: 2, Memo: MemoWithdrawal}, reqs[0])
	assert.Equal(t, TransferRequest{From: "bank", To: "alice", Symbol: "PP", Amount: 1, Memo: MemoWithdrawal}, reqs[1])

	assert.Empty(t, BatchRequests("bank", "alice", Balance{}, MemoWithdrawal))
}

func TestAuditAction_Constants(t *testing.T) {
	assert.Equal(t, AuditAction("OPEN_ACCOUNT"), AuditActionOpenAccount)
	assert.Equal(t, AuditAction("WITHDRAW"), AuditActionWithdraw)
	assert.Equal(t, AuditAction("REBALANCE"), AuditActionRebalance)
}
