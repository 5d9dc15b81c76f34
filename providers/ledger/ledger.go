package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/CrystalRanch/Payout-Backend/providers"
	"github.com/CrystalRanch/Payout-Backend/services/monitoring/logging"
	"github.com/CrystalRanch/Payout-Backend/utils"
	"github.com/shopspring/decimal"
)

// transferSendMode 3 pays fees from the sender and ignores transient
// action-phase errors, matching the wallet contract default.
const transferSendMode = 3

// LedgerProvider talks to the local signing daemon that holds the hot
// wallet key. All payouts in the process go through this one client.
type LedgerProvider struct {
	providers.BaseProvider
	config *LedgerConfig
}

type LedgerConfig struct {
	LedgerBaseURL   string `mapstructure:"LEDGER_BASE_URL"`
	LedgerAccessKey string `mapstructure:"LEDGER_ACCESS_KEY"`
	WalletAddress   string `mapstructure:"WALLET_ADDRESS"`
	WalletPasskey   string `mapstructure:"WALLET_PASSKEY"`
}

func NewLedgerProvider(logger *logging.Logger) *LedgerProvider {

	var c LedgerConfig

	err := utils.LoadCustomConfig(utils.EnvPath, &c)
	if err != nil {
		panic(fmt.Sprintf("Could not load config: %v", err))
	}

	return &LedgerProvider{
		BaseProvider: providers.BaseProvider{
			Name:    providers.Ledger,
			BaseURL: c.LedgerBaseURL,
			APIKey:  c.LedgerAccessKey,
			Client: &http.Client{
				Timeout: time.Second * 30,
			},
			Logger: logger,
		},
		config: &c,
	}
}

// WalletAddress reports the hot wallet this provider signs for.
func (p *LedgerProvider) WalletAddress() string {
	return p.config.WalletAddress
}

// GetSequenceNumber fetches the wallet's current seqno. A nil result means
// the wallet contract is not activated on-chain; callers must treat that as
// a precondition failure, not something to retry.
func (p *LedgerProvider) GetSequenceNumber(ctx context.Context) (*uint32, error) {

	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger base URL: %w", err)
	}

	// Path params
	base.Path += fmt.Sprintf("/api/v1/wallet/%s/seqno", p.config.WalletAddress)

	resp, err := p.MakeRequest(ctx, "GET", base.String(), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d fetching seqno", resp.StatusCode)
	}

	var newModel SeqnoResponse
	decoder := json.NewDecoder(resp.Body)
	err = decoder.Decode(&newModel)
	if err != nil {
		return nil, fmt.Errorf("error decoding response body: %w", err)
	}

	return newModel.Seqno, nil
}

// GetBalance fetches the current spendable balance in whole coins.
func (p *LedgerProvider) GetBalance(ctx context.Context) (decimal.Decimal, error) {

	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid ledger base URL: %w", err)
	}

	base.Path += fmt.Sprintf("/api/v1/wallet/%s/balance", p.config.WalletAddress)

	resp, err := p.MakeRequest(ctx, "GET", base.String(), nil, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("unexpected status code: %d fetching balance", resp.StatusCode)
	}

	var newModel BalanceResponse
	decoder := json.NewDecoder(resp.Body)
	err = decoder.Decode(&newModel)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error decoding response body: %w", err)
	}

	balance, err := decimal.NewFromString(newModel.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid balance %q from ledger: %w", newModel.Balance, err)
	}

	return balance, nil
}

// Transfer submits one signed transfer at the given seqno. The daemon
// rejects stale seqnos, which is the backstop against concurrent sends.
func (p *LedgerProvider) Transfer(ctx context.Context, destination string, amount decimal.Decimal, seqno uint32, memo string) error {

	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid ledger base URL: %w", err)
	}

	base.Path += fmt.Sprintf("/api/v1/wallet/%s/transfer", p.config.WalletAddress)

	request := TransferRequest{
		ToAddress: destination,
		Amount:    amount.String(),
		Seqno:     seqno,
		Memo:      memo,
		SendMode:  transferSendMode,
	}

	headers := map[string]string{
		"X-Wallet-Passkey": p.config.WalletPasskey,
	}

	resp, err := p.MakeRequest(ctx, "POST", base.String(), request, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("unexpected status code: %d submitting transfer", resp.StatusCode)
		}
		return fmt.Errorf("unexpected status code: %d submitting transfer: %s", resp.StatusCode, string(bodyBytes))
	}

	var newModel TransferResponse
	decoder := json.NewDecoder(resp.Body)
	err = decoder.Decode(&newModel)
	if err != nil {
		return fmt.Errorf("error decoding response body: %w", err)
	}

	if !newModel.Accepted {
		return fmt.Errorf("transfer rejected by ledger: %s", newModel.Message)
	}

	return nil
}

// GetRecentTransactions lists the wallet's most recent confirmed transfers,
// newest first.
func (p *LedgerProvider) GetRecentTransactions(ctx context.Context, count int) ([]Transaction, error) {

	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger base URL: %w", err)
	}

	base.Path += fmt.Sprintf("/api/v1/wallet/%s/transactions", p.config.WalletAddress)
	q := base.Query()
	q.Set("limit", fmt.Sprintf("%d", count))
	base.RawQuery = q.Encode()

	resp, err := p.MakeRequest(ctx, "GET", base.String(), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d fetching transactions", resp.StatusCode)
	}

	var newModel TransactionsResponse
	decoder := json.NewDecoder(resp.Body)
	err = decoder.Decode(&newModel)
	if err != nil {
		return nil, fmt.Errorf("error decoding response body: %w", err)
	}

	return newModel.Transactions, nil
}
