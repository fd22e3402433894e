package market

import "errors"

// Settlement failures are terminal for the operation that raised them.
// Callers match with errors.Is; wrapped context carries listing ids and
// required vs provided amounts.
var (
	ErrAlreadyInitialized    = errors.New("market already initialized")
	ErrNotInitialized        = errors.New("market not initialized")
	ErrUnauthorized          = errors.New("only seller or operator allowed")
	ErrNotOwnerOrNotApproved = errors.New("caller is not owner or market not approved")
	ErrTransferNotApproved   = errors.New("transfer not approved")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrItemAlreadyCancelled  = errors.New("item sale already cancelled")
	ErrItemAlreadySold       = errors.New("item already sold")
	ErrAlreadyRedeemed       = errors.New("token already redeemed")
	ErrInvalidSignature      = errors.New("invalid signature")
	ErrInvalidConfiguration  = errors.New("invalid market configuration")
	ErrUnknownListing        = errors.New("unknown listing id")
	ErrUnknownAsset          = errors.New("unknown payment asset")
	ErrWrongSaleType         = errors.New("operation not allowed for this sale type")
	ErrItemMismatch          = errors.New("token does not match listing")
)
