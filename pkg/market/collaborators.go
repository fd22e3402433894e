package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetRegistry is the external ownership/transfer capability the engine
// settles against. Errors returned by a registry are surfaced to callers
// verbatim, wrapped only with the engine's taxonomy sentinel.
type AssetRegistry interface {
	// Controls reports whether owner currently holds at least amount of
	// tokenID in the given collection.
	Controls(token, owner common.Address, tokenID *big.Int, amount uint64) (bool, error)

	// IsApprovedForAll reports whether operator may transfer owner's
	// assets in the given collection.
	IsApprovedForAll(token, owner, operator common.Address) (bool, error)

	// SafeTransferFrom moves amount of tokenID from one holder to another.
	SafeTransferFrom(token, from, to common.Address, tokenID *big.Int, amount uint64) error

	// Mint creates tokenID with the given metadata URI, owned by to.
	// Must fail if tokenID already exists in the collection; that failure
	// is how single-use mint vouchers are enforced.
	Mint(token, to common.Address, tokenID *big.Int, uri string) error
}

// ERC20 is the pull-payment capability used by bid-voucher settlement.
type ERC20 interface {
	BalanceOf(owner common.Address) *big.Int
	Allowance(owner, spender common.Address) *big.Int
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// PaymentAssets resolves a payment-token identity named in a bid voucher
// to its ERC20 capability.
type PaymentAssets interface {
	Token(addr common.Address) (ERC20, bool)
}

// NativeLedger is the push-payment primitive for direct sales and
// lazy-mint redemption.
type NativeLedger interface {
	BalanceOf(addr common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
}
