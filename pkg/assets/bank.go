package assets

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vizvalabs/marketd/pkg/market"
)

// Bank is the native-currency ledger used for push payments in direct
// sales and lazy-mint redemptions.
type Bank struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

// NewBank creates an empty ledger.
func NewBank() *Bank {
	return &Bank{balances: make(map[common.Address]*big.Int)}
}

func (b *Bank) balanceLocked(addr common.Address) *big.Int {
	bal, ok := b.balances[addr]
	if !ok {
		bal = big.NewInt(0)
		b.balances[addr] = bal
	}
	return bal
}

// Credit adds funds to an account. Genesis/test helper.
func (b *Bank) Credit(addr common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balanceLocked(addr).Add(b.balanceLocked(addr), amount)
}

// BalanceOf returns a copy of the account balance.
func (b *Bank) BalanceOf(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balanceLocked(addr))
}

// Transfer moves native funds between accounts.
func (b *Bank) Transfer(from, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	fromBal := b.balanceLocked(from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("transfer of %s exceeds balance %s", amount, fromBal)
	}
	fromBal.Sub(fromBal, amount)
	b.balanceLocked(to).Add(b.balanceLocked(to), amount)
	return nil
}

var _ market.NativeLedger = (*Bank)(nil)
