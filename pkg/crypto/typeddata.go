package crypto

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Signing domain constants. These must match the values voucher-signing
// clients (wallets) use, or no signature will ever recover.
const (
	SigningDomainName    = "VIZVA_MARKETPLACE"
	SigningDomainVersion = "1"
)

// ErrInvalidSignature is returned when a signature is malformed or does
// not recover to a usable identity.
var ErrInvalidSignature = errors.New("invalid signature")

// Domain is the EIP-712 domain separator input. Scoping signatures to
// {name, version, chainId, verifyingContract} prevents replay across
// chains and across contract instances.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// BidVoucher is a bidder-signed authorization to pay Bid units of the
// ERC20 at Asset for the listing MarketID. Signed off-chain, never
// persisted by the engine.
type BidVoucher struct {
	Asset        common.Address `json:"asset"`
	TokenAddress common.Address `json:"tokenAddress"`
	TokenID      *big.Int       `json:"tokenId"`
	MarketID     *big.Int       `json:"marketId"`
	Bid          *big.Int       `json:"bid"`
	Signature    []byte         `json:"signature"`
}

// NFTVoucher is a creator-signed authorization to mint TokenID on first
// sale. Royalty is carried for informational purposes only; the lazy-mint
// settlement path does not split it.
type NFTVoucher struct {
	TokenID   *big.Int `json:"tokenId"`
	MinPrice  *big.Int `json:"minPrice"`
	Royalty   uint16   `json:"royalty"`
	URI       string   `json:"uri"`
	Signature []byte   `json:"signature"`
}

var bidVoucherType = []apitypes.Type{
	{Name: "asset", Type: "address"},
	{Name: "tokenAddress", Type: "address"},
	{Name: "tokenId", Type: "uint256"},
	{Name: "marketId", Type: "uint256"},
	{Name: "bid", Type: "uint256"},
}

var nftVoucherType = []apitypes.Type{
	{Name: "tokenId", Type: "uint256"},
	{Name: "minPrice", Type: "uint256"},
	{Name: "royalty", Type: "uint16"},
	{Name: "uri", Type: "string"},
}

var eip712DomainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// VoucherVerifier hashes and recovers signatures over bid and mint
// vouchers. The domain separator is a pure function of the immutable
// Domain, so it is computed once and memoized.
type VoucherVerifier struct {
	domain Domain

	sepOnce sync.Once
	sep     []byte
	sepErr  error
}

// NewVoucherVerifier creates a verifier bound to the given domain.
func NewVoucherVerifier(domain Domain) *VoucherVerifier {
	return &VoucherVerifier{domain: domain}
}

// DefaultDomain returns the marketplace signing domain for a given chain
// and verifying-contract identity.
func DefaultDomain(chainID *big.Int, verifyingContract common.Address) Domain {
	return Domain{
		Name:              SigningDomainName,
		Version:           SigningDomainVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

func (v *VoucherVerifier) apiDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              v.domain.Name,
		Version:           v.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(v.domain.ChainID),
		VerifyingContract: v.domain.VerifyingContract.Hex(),
	}
}

// domainSeparator computes and caches hashStruct(EIP712Domain).
func (v *VoucherVerifier) domainSeparator() ([]byte, error) {
	v.sepOnce.Do(func() {
		td := apitypes.TypedData{
			Types:  apitypes.Types{"EIP712Domain": eip712DomainType},
			Domain: v.apiDomain(),
		}
		v.sep, v.sepErr = td.HashStruct("EIP712Domain", td.Domain.Map())
	})
	return v.sep, v.sepErr
}

// digest computes keccak256("\x19\x01" || domainSeparator || structHash)
// for the given primary type and message.
func (v *VoucherVerifier) digest(primaryType string, types apitypes.Types, message apitypes.TypedDataMessage) ([]byte, error) {
	sep, err := v.domainSeparator()
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}

	td := apitypes.TypedData{
		Types:       types,
		PrimaryType: primaryType,
		Domain:      v.apiDomain(),
		Message:     message,
	}
	structHash, err := td.HashStruct(primaryType, message)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", primaryType, err)
	}

	raw := make([]byte, 0, 2+len(sep)+len(structHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, sep...)
	raw = append(raw, structHash...)
	return crypto.Keccak256(raw), nil
}

// HashBidVoucher returns the EIP-712 digest a bidder signs.
func (v *VoucherVerifier) HashBidVoucher(b *BidVoucher) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": eip712DomainType,
		"BidVoucher":   bidVoucherType,
	}
	message := apitypes.TypedDataMessage{
		"asset":        b.Asset.Hex(),
		"tokenAddress": b.TokenAddress.Hex(),
		"tokenId":      b.TokenID.String(),
		"marketId":     b.MarketID.String(),
		"bid":          b.Bid.String(),
	}
	return v.digest("BidVoucher", types, message)
}

// HashNFTVoucher returns the EIP-712 digest a creator signs.
func (v *VoucherVerifier) HashNFTVoucher(n *NFTVoucher) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": eip712DomainType,
		"NFTVoucher":   nftVoucherType,
	}
	message := apitypes.TypedDataMessage{
		"tokenId":  n.TokenID.String(),
		"minPrice": n.MinPrice.String(),
		"royalty":  fmt.Sprintf("%d", n.Royalty),
		"uri":      n.URI,
	}
	return v.digest("NFTVoucher", types, message)
}

// RecoverBidSigner recovers the bidder identity from a bid voucher.
// Malformed signatures fail with ErrInvalidSignature rather than
// recovering a garbage address.
func (v *VoucherVerifier) RecoverBidSigner(b *BidVoucher) (common.Address, error) {
	hash, err := v.HashBidVoucher(b)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(hash, b.Signature)
}

// RecoverNFTSigner recovers the creator identity from a mint voucher.
func (v *VoucherVerifier) RecoverNFTSigner(n *NFTVoucher) (common.Address, error) {
	hash, err := v.HashNFTVoucher(n)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(hash, n.Signature)
}

// SignBidVoucher fills in the voucher's signature using the given key.
// Used by test tooling and the sign-voucher CLI; production bidders sign
// in their own wallets.
func (v *VoucherVerifier) SignBidVoucher(s *Signer, b *BidVoucher) error {
	hash, err := v.HashBidVoucher(b)
	if err != nil {
		return err
	}
	sig, err := s.Sign(hash)
	if err != nil {
		return err
	}
	b.Signature = sig
	return nil
}

// SignNFTVoucher fills in the voucher's signature using the given key.
func (v *VoucherVerifier) SignNFTVoucher(s *Signer, n *NFTVoucher) error {
	hash, err := v.HashNFTVoucher(n)
	if err != nil {
		return err
	}
	sig, err := s.Sign(hash)
	if err != nil {
		return err
	}
	n.Signature = sig
	return nil
}
