package market

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/vizvalabs/marketd/pkg/crypto"
)

// Store persists listings and the event journal. Optional; a nil store
// keeps the engine fully in-memory.
type Store interface {
	SaveListing(Listing) error
	AppendEvent(Event) error
}

// Options wires the engine to its collaborators.
type Options struct {
	ChainID       *big.Int
	Self          common.Address // engine identity: EIP-712 verifying contract and transfer operator
	Operator      common.Address // privileged operator (may cancel any sale, finalize any bid)
	LazyMintToken common.Address // collection mint vouchers are redeemed into
	Assets        AssetRegistry
	Payments      PaymentAssets
	Native        NativeLedger
	Store         Store               // optional
	Logger        *zap.SugaredLogger  // optional
}

// Engine is the settlement core: listing registry, fee arithmetic and
// voucher redemption. All operations are serialized behind one mutex so
// each settlement call is indivisible relative to all others; a listing
// can be consumed by exactly one successful operation.
type Engine struct {
	mu sync.Mutex

	initialized   bool
	commissionBps uint16
	treasury      common.Address

	self          common.Address
	operator      common.Address
	lazyMintToken common.Address
	chainID       *big.Int

	book     *ListingBook
	assets   AssetRegistry
	payments PaymentAssets
	native   NativeLedger
	verifier *crypto.VoucherVerifier
	store    Store
	sinks    []EventSink
	log      *zap.SugaredLogger
}

// NewEngine creates an engine that is not yet open for settlement;
// Init must be called exactly once before any operation.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		self:          opts.Self,
		operator:      opts.Operator,
		lazyMintToken: opts.LazyMintToken,
		chainID:       opts.ChainID,
		book:          NewListingBook(),
		assets:        opts.Assets,
		payments:      opts.Payments,
		native:        opts.Native,
		verifier:      crypto.NewVoucherVerifier(crypto.DefaultDomain(opts.ChainID, opts.Self)),
		store:         opts.Store,
		log:           logger,
	}
}

// Init sets the process-wide settlement parameters. A second call fails
// with ErrAlreadyInitialized; the configuration is read-only afterward.
func (e *Engine) Init(commissionBps uint16, treasury common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return ErrAlreadyInitialized
	}
	if commissionBps > BpsDenominator {
		return fmt.Errorf("%w: commission %d bps exceeds 100%%", ErrInvalidConfiguration, commissionBps)
	}
	e.commissionBps = commissionBps
	e.treasury = treasury
	e.initialized = true
	e.log.Infow("market_initialized", "commission_bps", commissionBps, "treasury", treasury.Hex())
	return nil
}

// Subscribe registers a sink invoked synchronously for every event.
func (e *Engine) Subscribe(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

// Verifier exposes the voucher verifier bound to this engine's signing
// domain, for clients that need to produce matching signatures.
func (e *Engine) Verifier() *crypto.VoucherVerifier {
	return e.verifier
}

// ChainID returns the chain the signing domain is scoped to.
func (e *Engine) ChainID() *big.Int {
	return e.chainID
}

// CommissionBps returns the platform commission in basis points.
func (e *Engine) CommissionBps() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commissionBps
}

// Treasury returns the commission destination identity.
func (e *Engine) Treasury() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.treasury
}

// Listing returns the listing with the given id, sold and cancelled
// rows included.
func (e *Engine) Listing(id uint64) (Listing, bool) {
	return e.book.Get(id)
}

// Listings returns every listing ever created.
func (e *Engine) Listings() []Listing {
	return e.book.All()
}

// ActiveListings returns listings still open for settlement.
func (e *Engine) ActiveListings() []Listing {
	return e.book.Active()
}

// Restore re-inserts persisted listings at startup.
func (e *Engine) Restore(listings []Listing) error {
	for _, l := range listings {
		if err := e.book.Restore(l); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) emit(ev Event) {
	if e.store != nil {
		if err := e.store.AppendEvent(ev); err != nil {
			e.log.Errorw("event_journal_failed", "type", ev.Type, "err", err)
		}
	}
	for _, sink := range e.sinks {
		sink(ev)
	}
}

func (e *Engine) persist(l Listing) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveListing(l); err != nil {
		e.log.Errorw("listing_persist_failed", "id", l.ID, "err", err)
	}
}

// AddListing offers an asset for sale. The caller must currently control
// the asset quantity and must already have granted the engine operator
// approval; otherwise it fails with ErrNotOwnerOrNotApproved.
func (e *Engine) AddListing(caller common.Address, saleType SaleType, askingPrice *big.Int, item ItemDetails) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return 0, ErrNotInitialized
	}
	if saleType != SaleInstant && saleType != SaleAuction {
		return 0, fmt.Errorf("%w: sale type %d", ErrWrongSaleType, saleType)
	}
	if item.Amount < 1 {
		return 0, fmt.Errorf("%w: amount must be at least 1", ErrInvalidConfiguration)
	}
	if item.TokenType == TokenERC721 && item.Amount != 1 {
		return 0, fmt.Errorf("%w: unique assets list with amount 1", ErrInvalidConfiguration)
	}
	if item.RoyaltyBps > BpsDenominator {
		return 0, fmt.Errorf("%w: royalty %d bps exceeds 100%%", ErrInvalidConfiguration, item.RoyaltyBps)
	}
	if uint32(item.RoyaltyBps)+uint32(e.commissionBps) > BpsDenominator {
		return 0, fmt.Errorf("%w: royalty %d bps + commission %d bps exceeds 100%%",
			ErrInvalidConfiguration, item.RoyaltyBps, e.commissionBps)
	}
	if askingPrice == nil || askingPrice.Sign() < 0 {
		return 0, fmt.Errorf("%w: asking price must be non-negative", ErrInvalidConfiguration)
	}

	controls, err := e.assets.Controls(item.TokenAddress, caller, item.TokenID, item.Amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotOwnerOrNotApproved, err)
	}
	if !controls {
		return 0, fmt.Errorf("%w: caller does not hold token %s", ErrNotOwnerOrNotApproved, item.TokenID)
	}
	approved, err := e.assets.IsApprovedForAll(item.TokenAddress, caller, e.self)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotOwnerOrNotApproved, err)
	}
	if !approved {
		return 0, fmt.Errorf("%w: market lacks operator approval", ErrNotOwnerOrNotApproved)
	}

	listing := Listing{
		SaleType:     saleType,
		TokenType:    item.TokenType,
		TokenAddress: item.TokenAddress,
		TokenID:      item.TokenID,
		Amount:       item.Amount,
		AskingPrice:  askingPrice,
		Seller:       caller,
		Creator:      item.Creator,
		RoyaltyBps:   item.RoyaltyBps,
	}
	id := e.book.Append(listing)
	listing.ID = id
	e.persist(listing)

	e.log.Infow("listing_created",
		"id", id, "seller", caller.Hex(), "token_id", item.TokenID, "asking_price", askingPrice)
	e.emit(Event{
		Type:         EventListingCreated,
		ListingID:    id,
		TokenID:      item.TokenID,
		TokenAddress: item.TokenAddress,
		AskingPrice:  askingPrice,
		RoyaltyBps:   item.RoyaltyBps,
		Creator:      item.Creator,
		At:           now(),
	})
	return id, nil
}

// CancelSale cancels a listing. Only the original seller or the
// privileged operator may cancel. Calling twice fails the second time
// with ErrItemAlreadyCancelled.
func (e *Engine) CancelSale(caller common.Address, id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelLocked(caller, id)
}

func (e *Engine) cancelLocked(caller common.Address, id uint64) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	listing, ok := e.book.Get(id)
	if !ok {
		return fmt.Errorf("listing %d: %w", id, ErrUnknownListing)
	}
	if caller != listing.Seller && caller != e.operator {
		return fmt.Errorf("listing %d: %w", id, ErrUnauthorized)
	}
	updated, err := e.book.MarkCancelled(id)
	if err != nil {
		return err
	}
	e.persist(updated)

	e.log.Infow("listing_cancelled", "id", id, "caller", caller.Hex())
	e.emit(Event{Type: EventItemCancelled, ListingID: id, At: now()})
	return nil
}

// BatchCancelSale cancels each listing id in turn. The batch is
// best-effort: a failure on one id does not undo prior cancellations.
// The returned error joins the per-id failures, if any.
func (e *Engine) BatchCancelSale(caller common.Address, ids []uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := e.cancelLocked(caller, id); err != nil {
			errs = append(errs, fmt.Errorf("cancel %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// BuyItem settles a direct sale at asking price. Payment is the native
// value the buyer attached; the amount applied to the sale is exactly
// the asking price and the split is deducted from it. All checks run
// before any transfer, and a late transfer failure rolls back the asset
// move, so no partial settlement can be observed.
func (e *Engine) BuyItem(buyer, tokenAddress common.Address, tokenID *big.Int, listingID uint64, payment *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	listing, ok := e.book.Get(listingID)
	if !ok {
		return fmt.Errorf("listing %d: %w", listingID, ErrUnknownListing)
	}
	if listing.Cancelled {
		return fmt.Errorf("listing %d: %w", listingID, ErrItemAlreadyCancelled)
	}
	if listing.Sold {
		return fmt.Errorf("listing %d: %w", listingID, ErrItemAlreadySold)
	}
	if listing.SaleType != SaleInstant {
		return fmt.Errorf("listing %d is an auction: %w", listingID, ErrWrongSaleType)
	}
	if listing.TokenAddress != tokenAddress || listing.TokenID.Cmp(tokenID) != 0 {
		return fmt.Errorf("listing %d: %w", listingID, ErrItemMismatch)
	}
	if payment == nil || payment.Cmp(listing.AskingPrice) < 0 {
		return fmt.Errorf("listing %d requires %s, got %s: %w",
			listingID, listing.AskingPrice, payment, ErrInsufficientFunds)
	}
	if e.native.BalanceOf(buyer).Cmp(listing.AskingPrice) < 0 {
		return fmt.Errorf("buyer balance below %s: %w", listing.AskingPrice, ErrInsufficientFunds)
	}

	if err := e.requireSellerTransferable(listing); err != nil {
		return err
	}

	split := SplitSale(listing.AskingPrice, listing.RoyaltyBps, e.commissionBps, listing.Creator, listing.Seller)

	if err := e.assets.SafeTransferFrom(listing.TokenAddress, listing.Seller, buyer, listing.TokenID, listing.Amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferNotApproved, err)
	}
	if err := e.disburseNative(buyer, listing, split); err != nil {
		// Undo the asset move so a failed settlement leaves no trace.
		if rbErr := e.assets.SafeTransferFrom(listing.TokenAddress, buyer, listing.Seller, listing.TokenID, listing.Amount); rbErr != nil {
			e.log.Errorw("asset_rollback_failed", "id", listingID, "err", rbErr)
		}
		return err
	}

	updated, err := e.book.MarkSold(listingID)
	if err != nil {
		return err
	}
	e.persist(updated)

	e.log.Infow("item_sold",
		"id", listingID, "buyer", buyer.Hex(), "token_id", listing.TokenID, "price", listing.AskingPrice)
	e.emit(Event{
		Type:         EventItemSold,
		ListingID:    listingID,
		Buyer:        buyer,
		TokenID:      listing.TokenID,
		TokenAddress: listing.TokenAddress,
		Price:        listing.AskingPrice,
		At:           now(),
	})
	return nil
}

// requireSellerTransferable surfaces the asset registry's denial when
// the seller no longer holds the asset or has revoked approval.
func (e *Engine) requireSellerTransferable(listing Listing) error {
	controls, err := e.assets.Controls(listing.TokenAddress, listing.Seller, listing.TokenID, listing.Amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferNotApproved, err)
	}
	if !controls {
		return fmt.Errorf("seller no longer holds token %s: %w", listing.TokenID, ErrTransferNotApproved)
	}
	approved, err := e.assets.IsApprovedForAll(listing.TokenAddress, listing.Seller, e.self)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferNotApproved, err)
	}
	if !approved {
		return fmt.Errorf("seller revoked market approval: %w", ErrTransferNotApproved)
	}
	return nil
}

// disburseNative pays the split out of the buyer's native balance,
// compensating earlier legs if a later one fails.
func (e *Engine) disburseNative(buyer common.Address, listing Listing, split FeeSplit) error {
	type leg struct {
		to     common.Address
		amount *big.Int
	}
	legs := []leg{{listing.Seller, split.Seller}}
	if split.Royalty.Sign() > 0 {
		legs = append(legs, leg{listing.Creator, split.Royalty})
	}
	if split.Commission.Sign() > 0 {
		legs = append(legs, leg{e.treasury, split.Commission})
	}

	for i, l := range legs {
		if l.amount.Sign() == 0 {
			continue
		}
		if err := e.native.Transfer(buyer, l.to, l.amount); err != nil {
			for j := i - 1; j >= 0; j-- {
				if legs[j].amount.Sign() == 0 {
					continue
				}
				if rbErr := e.native.Transfer(legs[j].to, buyer, legs[j].amount); rbErr != nil {
					e.log.Errorw("payment_rollback_failed", "to", legs[j].to.Hex(), "err", rbErr)
				}
			}
			return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
		}
	}
	return nil
}

// FinalizeBid settles an auction listing against a bidder-signed bid
// voucher. Only the listing's seller or the privileged operator may
// finalize; the recovered signer must equal the claimed buyer. The bid
// amount is pulled from the buyer's ERC20 balance, which requires a
// pre-existing spend approval for the engine.
func (e *Engine) FinalizeBid(caller common.Address, voucher *crypto.BidVoucher, buyer common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	if voucher.MarketID == nil || !voucher.MarketID.IsUint64() {
		return fmt.Errorf("bad market id: %w", ErrUnknownListing)
	}
	listingID := voucher.MarketID.Uint64()
	listing, ok := e.book.Get(listingID)
	if !ok {
		return fmt.Errorf("listing %d: %w", listingID, ErrUnknownListing)
	}
	if caller != listing.Seller && caller != e.operator {
		return fmt.Errorf("listing %d: %w", listingID, ErrUnauthorized)
	}

	signer, err := e.verifier.RecoverBidSigner(voucher)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer != buyer {
		return fmt.Errorf("voucher signed by %s, not buyer %s: %w", signer.Hex(), buyer.Hex(), ErrInvalidSignature)
	}

	if listing.Cancelled {
		return fmt.Errorf("listing %d: %w", listingID, ErrItemAlreadyCancelled)
	}
	if listing.Sold {
		return fmt.Errorf("listing %d: %w", listingID, ErrItemAlreadySold)
	}
	if listing.SaleType != SaleAuction {
		return fmt.Errorf("listing %d is not an auction: %w", listingID, ErrWrongSaleType)
	}
	if listing.TokenAddress != voucher.TokenAddress || listing.TokenID.Cmp(voucher.TokenID) != 0 {
		return fmt.Errorf("listing %d: %w", listingID, ErrItemMismatch)
	}

	token, ok := e.payments.Token(voucher.Asset)
	if !ok {
		return fmt.Errorf("asset %s: %w", voucher.Asset.Hex(), ErrUnknownAsset)
	}
	if token.Allowance(buyer, e.self).Cmp(voucher.Bid) < 0 {
		return fmt.Errorf("bid %s exceeds spend approval: %w", voucher.Bid, ErrTransferNotApproved)
	}
	if token.BalanceOf(buyer).Cmp(voucher.Bid) < 0 {
		return fmt.Errorf("bid %s exceeds buyer balance: %w", voucher.Bid, ErrInsufficientFunds)
	}
	if err := e.requireSellerTransferable(listing); err != nil {
		return err
	}

	split := SplitSale(voucher.Bid, listing.RoyaltyBps, e.commissionBps, listing.Creator, listing.Seller)

	if err := e.assets.SafeTransferFrom(listing.TokenAddress, listing.Seller, buyer, listing.TokenID, listing.Amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferNotApproved, err)
	}
	if err := e.disburseERC20(token, buyer, listing, split); err != nil {
		if rbErr := e.assets.SafeTransferFrom(listing.TokenAddress, buyer, listing.Seller, listing.TokenID, listing.Amount); rbErr != nil {
			e.log.Errorw("asset_rollback_failed", "id", listingID, "err", rbErr)
		}
		return err
	}

	updated, err := e.book.MarkSold(listingID)
	if err != nil {
		return err
	}
	e.persist(updated)

	e.log.Infow("bid_finalized",
		"id", listingID, "buyer", buyer.Hex(), "token_id", listing.TokenID, "bid", voucher.Bid)
	e.emit(Event{
		Type:         EventItemSold,
		ListingID:    listingID,
		Buyer:        buyer,
		TokenID:      listing.TokenID,
		TokenAddress: listing.TokenAddress,
		Price:        voucher.Bid,
		At:           now(),
	})
	return nil
}

// disburseERC20 pulls the split legs from the buyer's token balance.
func (e *Engine) disburseERC20(token ERC20, buyer common.Address, listing Listing, split FeeSplit) error {
	type leg struct {
		to     common.Address
		amount *big.Int
	}
	legs := []leg{{listing.Seller, split.Seller}}
	if split.Royalty.Sign() > 0 {
		legs = append(legs, leg{listing.Creator, split.Royalty})
	}
	if split.Commission.Sign() > 0 {
		legs = append(legs, leg{e.treasury, split.Commission})
	}

	for i, l := range legs {
		if l.amount.Sign() == 0 {
			continue
		}
		if err := token.TransferFrom(e.self, buyer, l.to, l.amount); err != nil {
			for j := i - 1; j >= 0; j-- {
				if legs[j].amount.Sign() == 0 {
					continue
				}
				if rbErr := token.TransferFrom(e.self, legs[j].to, buyer, legs[j].amount); rbErr != nil {
					e.log.Errorw("payment_rollback_failed", "to", legs[j].to.Hex(), "err", rbErr)
				}
			}
			return fmt.Errorf("%w: %v", ErrTransferNotApproved, err)
		}
	}
	return nil
}

// Redeem settles a creator-signed mint voucher: the asset is minted to
// the recovered signer, transferred to the buyer, and the caller pays
// minPrice to the signer plus an additive commission to the treasury.
// Re-minting an existing tokenId fails with ErrAlreadyRedeemed, which
// makes every voucher single-use.
func (e *Engine) Redeem(caller common.Address, voucher *crypto.NFTVoucher, buyer common.Address, payment *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}

	signer, err := e.verifier.RecoverNFTSigner(voucher)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	required := LazyMintTotal(voucher.MinPrice, e.commissionBps)
	if payment == nil || payment.Cmp(required) < 0 {
		return fmt.Errorf("redeem requires %s, got %s: %w", required, payment, ErrInsufficientFunds)
	}
	if e.native.BalanceOf(caller).Cmp(required) < 0 {
		return fmt.Errorf("caller balance below %s: %w", required, ErrInsufficientFunds)
	}

	if err := e.assets.Mint(e.lazyMintToken, signer, voucher.TokenID, voucher.URI); err != nil {
		return fmt.Errorf("token %s: %w", voucher.TokenID, ErrAlreadyRedeemed)
	}
	if err := e.assets.SafeTransferFrom(e.lazyMintToken, signer, buyer, voucher.TokenID, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferNotApproved, err)
	}

	commission := LazyMintCommission(voucher.MinPrice, e.commissionBps)
	if voucher.MinPrice.Sign() > 0 {
		if err := e.native.Transfer(caller, signer, voucher.MinPrice); err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
		}
	}
	if commission.Sign() > 0 {
		if err := e.native.Transfer(caller, e.treasury, commission); err != nil {
			if rbErr := e.native.Transfer(signer, caller, voucher.MinPrice); rbErr != nil {
				e.log.Errorw("payment_rollback_failed", "to", signer.Hex(), "err", rbErr)
			}
			return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
		}
	}

	e.log.Infow("voucher_redeemed",
		"buyer", buyer.Hex(), "signer", signer.Hex(), "token_id", voucher.TokenID, "price", required)
	e.emit(Event{
		Type:         EventItemRedeemed,
		Buyer:        buyer,
		TokenID:      voucher.TokenID,
		TokenAddress: e.lazyMintToken,
		Price:        required,
		At:           now(),
	})
	return nil
}
