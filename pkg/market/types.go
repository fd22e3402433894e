package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenType distinguishes unique assets from fungible batches.
type TokenType uint8

const (
	TokenERC721  TokenType = 1 // unique asset, amount is always 1
	TokenERC1155 TokenType = 2 // semi-fungible batch
)

func (t TokenType) String() string {
	switch t {
	case TokenERC721:
		return "ERC721"
	case TokenERC1155:
		return "ERC1155"
	default:
		return "Unknown"
	}
}

// SaleType selects the settlement path a listing accepts.
type SaleType uint8

const (
	SaleInstant SaleType = 1 // direct purchase at asking price
	SaleAuction SaleType = 2 // settled by seller-finalized bid voucher
)

func (s SaleType) String() string {
	switch s {
	case SaleInstant:
		return "Instant"
	case SaleAuction:
		return "Auction"
	default:
		return "Unknown"
	}
}

// ItemDetails describes the asset being offered when creating a listing.
type ItemDetails struct {
	TokenType    TokenType      `json:"tokenType"`
	TokenAddress common.Address `json:"tokenAddress"`
	TokenID      *big.Int       `json:"tokenId"`
	Amount       uint64         `json:"amount"`
	Creator      common.Address `json:"creator"`
	RoyaltyBps   uint16         `json:"royaltyBps"`
}

// Listing is one row in the sale registry. Rows are never deleted:
// cancelled and sold listings stay queryable for audit.
type Listing struct {
	ID           uint64         `json:"id"`
	SaleType     SaleType       `json:"saleType"`
	TokenType    TokenType      `json:"tokenType"`
	TokenAddress common.Address `json:"tokenAddress"`
	TokenID      *big.Int       `json:"tokenId"`
	Amount       uint64         `json:"amount"`
	AskingPrice  *big.Int       `json:"askingPrice"`
	Seller       common.Address `json:"seller"`
	Creator      common.Address `json:"creator"`
	RoyaltyBps   uint16         `json:"royaltyBps"`
	Cancelled    bool           `json:"cancelled"`
	Sold         bool           `json:"sold"`
}

// Active reports whether the listing can still be settled or cancelled.
func (l *Listing) Active() bool {
	return !l.Cancelled && !l.Sold
}
