package payout

import (
	"fmt"
	"sync"
)

// Wallet is the single custodial account all payouts are sent from. The
// handle carries no key material; signing stays inside the ledger daemon.
type Wallet struct {
	Address string
}

var (
	walletRegistry   = make(map[string]struct{})
	walletRegistryMu sync.Mutex
)

// claimWallet enforces the one-engine-per-wallet rule for the life of the
// process. A second engine on the same wallet would race on the sequence
// number.
func claimWallet(address string) error {
	walletRegistryMu.Lock()
	defer walletRegistryMu.Unlock()

	if _, exists := walletRegistry[address]; exists {
		return fmt.Errorf("wallet %s is already owned by another engine in this process", address)
	}
	walletRegistry[address] = struct{}{}
	return nil
}

func releaseWallet(address string) {
	walletRegistryMu.Lock()
	defer walletRegistryMu.Unlock()
	delete(walletRegistry, address)
}
