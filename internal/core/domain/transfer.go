package domain

// Memos attached to outbound transfer requests.
const (
	MemoWithdrawal     = "Withdrawal"
	MemoAccountClosing = "Account closing"
	MemoReserveTopup   = "Reserve top-up"
	MemoReserveDrain   = "Reserve drain"
)

// TransferRequest is an outbound command for the asset-transfer service.
// The bank never executes it; delivery belongs to an external transport.
type TransferRequest struct {
	ID     string `json:"id,omitempty"`
	From   string `json:"from"`
	To     string `json:"to"`
	Symbol string `json:"symbol"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

// DepositNotification is delivered by the asset-transfer service whenever
// funds move to or from the bank's own identity.
type DepositNotification struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Memo     string `json:"memo"`
}

// BatchRequests converts non-zero coin counts into one request per tier,
// smallest tier first.
func BatchRequests(from, to string, coins Balance, memo string) []TransferRequest {
	var out []TransferRequest
	for _, d := range Denominations() {
		if coins[d] == 0 {
			continue
		}
		out = append(out, TransferRequest{
			From:   from,
			To:     to,
			Symbol: d.Symbol(),
			Amount: coins[d],
			Memo:   memo,
		})
	}
	return out
}
