package bank

import (
	"coin-bank/internal/core/domain"
	"coin-bank/pkg/apperror"
)

// Rebalance moves the vault's float toward targetFloat/base coins per tier.
// Shortfalls are requested from the reserve and surpluses sent back to it.
// The ledger is left alone: top-ups land through the reserve's deposit
// notification like any other inbound transfer. Surpluses sent back are not
// debited either. Until the reserve settles them, the vault record overstates
// the float, and the next Rebalance computes its deltas from that stale record.
func (b *Bank) Rebalance(caller string, targetFloat int64) ([]domain.TransferRequest, error) {
	if err := b.authorizeReserve(caller); err != nil {
		return nil, err
	}
	if targetFloat < 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	vault, err := b.ledger.Get(b.ids.Vault)
	if err != nil {
		return nil, mapLedgerError(err)
	}

	var out []domain.TransferRequest
	for _, d := range domain.Denominations() {
		delta := targetFloat/d.BaseValue() - vault.Balance[d]
		switch {
		case delta > 0:
			out = append(out, domain.TransferRequest{
				From:   b.ids.Reserve,
				To:     b.ids.Self,
				Symbol: d.Symbol(),
				Amount: delta,
				Memo:   domain.MemoReserveTopup,
			})
		case delta < 0:
			out = append(out, domain.TransferRequest{
				From:   b.ids.Self,
				To:     b.ids.Reserve,
				Symbol: d.Symbol(),
				Amount: -delta,
				Memo:   domain.MemoReserveDrain,
			})
		}
	}
	return out, nil
}
