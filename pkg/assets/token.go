package assets

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vizvalabs/marketd/pkg/market"
)

// Token is a WETH-style ERC20 ledger with deposit, approve and
// pull-transfer semantics. The bid-voucher settlement path pulls payment
// through TransferFrom against a prior Approve.
type Token struct {
	name string

	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewToken creates an empty ledger.
func NewToken(name string) *Token {
	return &Token{
		name:       name,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Name returns the token symbol.
func (t *Token) Name() string { return t.name }

func (t *Token) balanceLocked(addr common.Address) *big.Int {
	b, ok := t.balances[addr]
	if !ok {
		b = big.NewInt(0)
		t.balances[addr] = b
	}
	return b
}

// Deposit credits an account, like wrapping native currency.
func (t *Token) Deposit(to common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balanceLocked(to).Add(t.balanceLocked(to), amount)
}

// BalanceOf returns a copy of the account balance.
func (t *Token) BalanceOf(owner common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.balanceLocked(owner))
}

// Approve authorizes spender to pull up to amount from owner.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = new(big.Int).Set(amount)
}

// Allowance returns a copy of the remaining pull approval.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.allowances[owner][spender]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a)
}

// TransferFrom moves amount from one account to another on behalf of
// spender, consuming allowance. The holder may always move their own
// funds without an allowance.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if spender != from {
		a, ok := t.allowances[from][spender]
		if !ok || a.Cmp(amount) < 0 {
			return fmt.Errorf("%s: transfer of %s exceeds allowance", t.name, amount)
		}
		a.Sub(a, amount)
	}
	fromBal := t.balanceLocked(from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%s: transfer of %s exceeds balance %s", t.name, amount, fromBal)
	}
	fromBal.Sub(fromBal, amount)
	t.balanceLocked(to).Add(t.balanceLocked(to), amount)
	return nil
}

var _ market.ERC20 = (*Token)(nil)

// TokenSet resolves payment-asset addresses to their ledgers.
type TokenSet struct {
	mu     sync.RWMutex
	tokens map[common.Address]*Token
}

// NewTokenSet creates an empty resolver.
func NewTokenSet() *TokenSet {
	return &TokenSet{tokens: make(map[common.Address]*Token)}
}

// Register binds a token ledger to its address.
func (s *TokenSet) Register(addr common.Address, t *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[addr] = t
}

// Token resolves an address to its ERC20 capability.
func (s *TokenSet) Token(addr common.Address) (market.ERC20, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[addr]
	if !ok {
		return nil, false
	}
	return t, true
}

var _ market.PaymentAssets = (*TokenSet)(nil)
