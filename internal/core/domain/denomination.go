package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Denomination is a coin tier index, ordered from smallest to largest unit.
type Denomination int

const (
	Copper Denomination = iota
	Silver
	Electrum
	Gold
	Platinum

	// NumDenominations is the number of coin tiers.
	NumDenominations = 5
)

var (
	// ErrUnknownDenomination is returned for a currency symbol that maps to no tier.
	ErrUnknownDenomination = errors.New("unknown denomination")
	// ErrMalformedCoins is returned when a coin string cannot be parsed.
	ErrMalformedCoins = errors.New("malformed coin string")
	// ErrCountOverflow is returned when a tier would exceed MaxCount.
	ErrCountOverflow = errors.New("coin count limit exceeded")
)

// MaxCount is the most coins a single tier may hold. A balance with every
// tier at MaxCount is still valued without overflowing int64.
const MaxCount int64 = math.MaxInt64 / (1 + 10 + 50 + 100 + 1000)

// baseValues is the exchange rate of each tier to the base unit.
// The smallest tier must stay at 1 so that exact change always exists.
var baseValues = [NumDenominations]int64{1, 10, 50, 100, 1000}

var symbols = [NumDenominations]string{"CP", "SP", "EP", "GP", "PP"}

var symbolIndex = map[string]Denomination{
	"CP": Copper,
	"SP": Silver,
	"EP": Electrum,
	"GP": Gold,
	"PP": Platinum,
}

// BaseValue returns the tier's value in base units.
func (d Denomination) BaseValue() int64 {
	return baseValues[d]
}

// Symbol returns the asset-service currency symbol of the tier.
func (d Denomination) Symbol() string {
	return symbols[d]
}

// Valid reports whether d is one of the five tiers.
func (d Denomination) Valid() bool {
	return d >= Copper && d < NumDenominations
}

// Denominations returns all tiers, smallest first.
func Denominations() []Denomination {
	return []Denomination{Copper, Silver, Electrum, Gold, Platinum}
}

// LookupSymbol maps an external currency symbol to its tier.
func LookupSymbol(symbol string) (Denomination, error) {
	d, ok := symbolIndex[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDenomination, symbol)
	}
	return d, nil
}

// Balance holds one non-negative coin count per tier.
type Balance [NumDenominations]int64

// ValueOf returns the total value of a balance in base units. Counts are
// expected within [0, MaxCount], which the ledger and ParseCoins enforce.
func ValueOf(b Balance) int64 {
	var total int64
	for i, count := range b {
		total += count * baseValues[i]
	}
	return total
}

// Value is shorthand for ValueOf(b).
func (b Balance) Value() int64 {
	return ValueOf(b)
}

// CanAdd reports whether adding coins keeps every tier within MaxCount.
func (b Balance) CanAdd(coins Balance) bool {
	for i := range b {
		if coins[i] < 0 || coins[i] > MaxCount-b[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether every count is zero.
func (b Balance) IsZero() bool {
	return b == Balance{}
}

// Extract removes coins worth requested from the balance, taking as many of
// the largest tier as possible before moving down. Because every base value
// divides the next, the result is exact whenever any exact selection exists.
// When none does, removed is worth less than requested; callers compare
// removed.Value() against requested.
func (b Balance) Extract(requested int64) (updated Balance, removed Balance) {
	updated, removed, _ = b.extract(requested)
	return updated, removed
}

func (b Balance) extract(requested int64) (updated, removed Balance, short int64) {
	updated = b
	for i := NumDenominations - 1; i >= 0; i-- {
		count := requested / baseValues[i]
		if count > updated[i] {
			count = updated[i]
		}
		requested -= count * baseValues[i]
		updated[i] -= count
		removed[i] = count
	}
	return updated, removed, requested
}

// Deduct removes exactly value from a balance worth at least value. Coins are
// extracted as in Extract; if that leaves a shortfall, one coin of the
// smallest tier able to cover it is broken and the difference is returned as
// change. taken and change are disjoint adjustments: updated equals
// b - taken + change.
func (b Balance) Deduct(value int64) (updated, taken, change Balance, ok bool) {
	if value < 0 || b.Value() < value {
		return b, Balance{}, Balance{}, false
	}
	updated, taken, short := b.extract(value)
	if short == 0 {
		return updated, taken, Balance{}, true
	}
	for i := 0; i < NumDenominations; i++ {
		if updated[i] == 0 || baseValues[i] <= short {
			continue
		}
		updated[i]--
		taken[i]++
		change = MinimalChange(baseValues[i] - short)
		for j := range updated {
			updated[j] += change[j]
		}
		return updated, taken, change, true
	}
	return b, Balance{}, Balance{}, false
}

// MinimalChange returns the fewest-coins representation of value.
func MinimalChange(value int64) Balance {
	var b Balance
	for i := NumDenominations - 1; i >= 0; i-- {
		b[i] = value / baseValues[i]
		value %= baseValues[i]
	}
	return b
}

var coinRe = regexp.MustCompile(`^(\d+)\s*([a-zA-Z]+)$`)

// ParseCoins parses a space separated coin list such as "3pp 6gp 2cp".
// Repeated symbols accumulate. No tier may total more than MaxCount.
func ParseCoins(s string) (Balance, error) {
	var b Balance
	for _, tok := range strings.Fields(s) {
		m := coinRe.FindStringSubmatch(tok)
		if m == nil {
			return Balance{}, fmt.Errorf("%w: %q", ErrMalformedCoins, tok)
		}
		count, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || count > MaxCount {
			return Balance{}, fmt.Errorf("%w: %q", ErrMalformedCoins, tok)
		}
		d, err := LookupSymbol(m[2])
		if err != nil {
			return Balance{}, err
		}
		if count > MaxCount-b[d] {
			return Balance{}, fmt.Errorf("%w: %s total exceeds %d", ErrMalformedCoins, symbols[d], MaxCount)
		}
		b[d] += count
	}
	return b, nil
}

// String renders the balance largest tier first, e.g. "3pp 6gp 2cp".
func (b Balance) String() string {
	parts := make([]string, 0, NumDenominations)
	for i := NumDenominations - 1; i >= 0; i-- {
		if b[i] == 0 {
			continue
		}
		parts = append(parts, strconv.FormatInt(b[i], 10)+strings.ToLower(symbols[i]))
	}
	if len(parts) == 0 {
		return "0" + strings.ToLower(symbols[Copper])
	}
	return strings.Join(parts, " ")
}
