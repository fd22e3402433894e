package api

// Request and response types for REST endpoints and WebSocket messages.
// Big integer amounts travel as decimal strings; addresses as 0x hex.

// ==============================
// REST Response Types
// ==============================

// ListingInfo is the wire form of a listing row.
type ListingInfo struct {
	ID           uint64 `json:"id"`
	SaleType     string `json:"saleType"`
	TokenType    string `json:"tokenType"`
	TokenAddress string `json:"tokenAddress"`
	TokenID      string `json:"tokenId"`
	Amount       uint64 `json:"amount"`
	AskingPrice  string `json:"askingPrice"`
	Seller       string `json:"seller"`
	Creator      string `json:"creator"`
	RoyaltyBps   uint16 `json:"royaltyBps"`
	Cancelled    bool   `json:"cancelled"`
	Sold         bool   `json:"sold"`
}

// StatusInfo describes the running engine.
type StatusInfo struct {
	ChainID       string `json:"chainId"`
	CommissionBps uint16 `json:"commissionBps"`
	Treasury      string `json:"treasury"`
	Listings      int    `json:"listings"`
	SigningDomain string `json:"signingDomain"`
}

// ==============================
// REST Request Types
// ==============================

// AddListingRequest creates a new listing on behalf of the seller.
type AddListingRequest struct {
	Seller       string `json:"seller"`
	SaleType     uint8  `json:"saleType"` // 1 = instant, 2 = auction
	AskingPrice  string `json:"askingPrice"`
	TokenType    uint8  `json:"tokenType"` // 1 = ERC721, 2 = ERC1155
	TokenAddress string `json:"tokenAddress"`
	TokenID      string `json:"tokenId"`
	Amount       uint64 `json:"amount"`
	Creator      string `json:"creator"`
	RoyaltyBps   uint16 `json:"royaltyBps"`
}

// CancelRequest cancels one listing.
type CancelRequest struct {
	Caller string `json:"caller"`
}

// BatchCancelRequest cancels several listings, best-effort per id.
type BatchCancelRequest struct {
	Caller string   `json:"caller"`
	IDs    []uint64 `json:"ids"`
}

// BuyRequest settles a direct sale.
type BuyRequest struct {
	Buyer        string `json:"buyer"`
	TokenAddress string `json:"tokenAddress"`
	TokenID      string `json:"tokenId"`
	ListingID    uint64 `json:"listingId"`
	Payment      string `json:"payment"`
}

// BidVoucherJSON is the wire form of a signed bid voucher.
type BidVoucherJSON struct {
	Asset        string `json:"asset"`
	TokenAddress string `json:"tokenAddress"`
	TokenID      string `json:"tokenId"`
	MarketID     string `json:"marketId"`
	Bid          string `json:"bid"`
	Signature    string `json:"signature"` // 0x-prefixed hex, 65 bytes
}

// FinalizeBidRequest settles an auction against a bid voucher.
type FinalizeBidRequest struct {
	Caller  string         `json:"caller"`
	Buyer   string         `json:"buyer"`
	Voucher BidVoucherJSON `json:"voucher"`
}

// NFTVoucherJSON is the wire form of a signed mint voucher.
type NFTVoucherJSON struct {
	TokenID   string `json:"tokenId"`
	MinPrice  string `json:"minPrice"`
	Royalty   uint16 `json:"royalty"`
	URI       string `json:"uri"`
	Signature string `json:"signature"`
}

// RedeemRequest redeems a mint voucher.
type RedeemRequest struct {
	Caller  string         `json:"caller"`
	Buyer   string         `json:"buyer"`
	Voucher NFTVoucherJSON `json:"voucher"`
	Payment string         `json:"payment"`
}

// ErrorResponse carries the failure kind plus context for resubmission.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IDResponse acknowledges listing creation.
type IDResponse struct {
	ID uint64 `json:"id"`
}

// OKResponse acknowledges a settled operation.
type OKResponse struct {
	OK bool `json:"ok"`
}
