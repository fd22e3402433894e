package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10000

// FeeSplit is the division of a gross payment between the three payees.
type FeeSplit struct {
	Seller     *big.Int
	Royalty    *big.Int
	Commission *big.Int
}

// bpsShare returns floor(gross * bps / 10000). Truncation remainder is
// retained by the seller, never lost or double-paid.
func bpsShare(gross *big.Int, bps uint16) *big.Int {
	share := new(big.Int).Mul(gross, big.NewInt(int64(bps)))
	return share.Div(share, big.NewInt(BpsDenominator))
}

// SplitSale divides a gross sale amount into seller proceeds, creator
// royalty and platform commission. Royalty is owed only on secondary
// sales, i.e. when creator differs from seller. The caller must have
// validated royaltyBps+commissionBps <= 10000, so the seller amount
// cannot go negative.
func SplitSale(gross *big.Int, royaltyBps, commissionBps uint16, creator, seller common.Address) FeeSplit {
	commission := bpsShare(gross, commissionBps)
	royalty := big.NewInt(0)
	if creator != seller {
		royalty = bpsShare(gross, royaltyBps)
	}
	sellerAmt := new(big.Int).Sub(gross, commission)
	sellerAmt.Sub(sellerAmt, royalty)
	return FeeSplit{Seller: sellerAmt, Royalty: royalty, Commission: commission}
}

// LazyMintCommission returns the platform fee charged on top of a mint
// voucher's minimum price. Unlike SplitSale the commission here is
// additive: the voucher signer receives minPrice in full.
func LazyMintCommission(minPrice *big.Int, commissionBps uint16) *big.Int {
	return bpsShare(minPrice, commissionBps)
}

// LazyMintTotal is the payment required to redeem a mint voucher:
// minPrice plus the additive commission.
func LazyMintTotal(minPrice *big.Int, commissionBps uint16) *big.Int {
	return new(big.Int).Add(minPrice, LazyMintCommission(minPrice, commissionBps))
}
