package ledger

// SeqnoResponse mirrors the daemon's seqno endpoint. A null seqno means the
// wallet contract has never been deployed on-chain.
type SeqnoResponse struct {
	Seqno *uint32 `json:"seqno"`
}

type BalanceResponse struct {
	// Balance is the spendable balance in whole coins, as a decimal string.
	Balance string `json:"balance"`
}

type TransferRequest struct {
	ToAddress string `json:"to_address"`
	Amount    string `json:"amount"`
	Seqno     uint32 `json:"seqno"`
	Memo      string `json:"memo,omitempty"`
	SendMode  int    `json:"send_mode"`
}

type TransferResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// Transaction is one confirmed outbound transfer from the hot wallet.
type Transaction struct {
	Reference string `json:"reference"`
	Memo      string `json:"memo,omitempty"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

type TransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}
