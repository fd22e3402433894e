// Package assets provides in-memory implementations of the collaborator
// capabilities the settlement engine consumes: an NFT asset registry, an
// ERC20-style token ledger and a native-coin bank. They stand in for the
// on-chain contracts the engine would settle against in production.
package assets

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vizvalabs/marketd/pkg/market"
)

// ErrAlreadyMinted is returned when a token id is minted twice in the
// same collection. The engine relies on this to make mint vouchers
// single-use.
var ErrAlreadyMinted = fmt.Errorf("token already minted")

type collection struct {
	kind market.TokenType

	// ERC721 state: tokenId -> owner
	owners map[string]common.Address
	uris   map[string]string

	// ERC1155 state: tokenId -> holder -> balance
	balances map[string]map[common.Address]uint64

	// owner -> operator -> approved
	approvals map[common.Address]map[common.Address]bool
}

// Registry tracks collections of unique and semi-fungible assets.
// Transfer authorization is enforced by the engine via IsApprovedForAll
// checks before any transfer; the registry itself only enforces
// ownership and mint uniqueness.
type Registry struct {
	mu          sync.RWMutex
	collections map[common.Address]*collection
}

// NewRegistry creates an empty asset registry.
func NewRegistry() *Registry {
	return &Registry{collections: make(map[common.Address]*collection)}
}

// CreateCollection registers a collection address with its token type.
func (r *Registry) CreateCollection(addr common.Address, kind market.TokenType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[addr]; exists {
		return fmt.Errorf("collection %s already exists", addr.Hex())
	}
	r.collections[addr] = &collection{
		kind:      kind,
		owners:    make(map[string]common.Address),
		uris:      make(map[string]string),
		balances:  make(map[string]map[common.Address]uint64),
		approvals: make(map[common.Address]map[common.Address]bool),
	}
	return nil
}

func (r *Registry) collectionOf(addr common.Address) (*collection, error) {
	c, ok := r.collections[addr]
	if !ok {
		return nil, fmt.Errorf("unknown collection %s", addr.Hex())
	}
	return c, nil
}

func key(tokenID *big.Int) string { return tokenID.String() }

// Mint creates tokenID owned by to. Fails with ErrAlreadyMinted when the
// id exists, for both token types.
func (r *Registry) Mint(token, to common.Address, tokenID *big.Int, uri string) error {
	return r.MintAmount(token, to, tokenID, uri, 1)
}

// MintAmount mints a quantity of a semi-fungible token, or exactly one
// unique token.
func (r *Registry) MintAmount(token, to common.Address, tokenID *big.Int, uri string, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.collectionOf(token)
	if err != nil {
		return err
	}
	k := key(tokenID)
	switch c.kind {
	case market.TokenERC721:
		if _, exists := c.owners[k]; exists {
			return fmt.Errorf("%w: %s in %s", ErrAlreadyMinted, k, token.Hex())
		}
		c.owners[k] = to
	case market.TokenERC1155:
		if _, exists := c.balances[k]; exists {
			return fmt.Errorf("%w: %s in %s", ErrAlreadyMinted, k, token.Hex())
		}
		c.balances[k] = map[common.Address]uint64{to: amount}
	default:
		return fmt.Errorf("collection %s has unknown token type", token.Hex())
	}
	c.uris[k] = uri
	return nil
}

// OwnerOf returns the holder of a unique token.
func (r *Registry) OwnerOf(token common.Address, tokenID *big.Int) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.collectionOf(token)
	if err != nil {
		return common.Address{}, err
	}
	owner, ok := c.owners[key(tokenID)]
	if !ok {
		return common.Address{}, fmt.Errorf("token %s not minted", tokenID)
	}
	return owner, nil
}

// TokenURI returns the metadata pointer recorded at mint.
func (r *Registry) TokenURI(token common.Address, tokenID *big.Int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.collectionOf(token)
	if err != nil {
		return "", err
	}
	uri, ok := c.uris[key(tokenID)]
	if !ok {
		return "", fmt.Errorf("token %s not minted", tokenID)
	}
	return uri, nil
}

// Controls reports whether owner holds at least amount of tokenID.
func (r *Registry) Controls(token, owner common.Address, tokenID *big.Int, amount uint64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.collectionOf(token)
	if err != nil {
		return false, err
	}
	k := key(tokenID)
	switch c.kind {
	case market.TokenERC721:
		return c.owners[k] == owner && amount == 1, nil
	case market.TokenERC1155:
		return c.balances[k][owner] >= amount, nil
	default:
		return false, fmt.Errorf("collection %s has unknown token type", token.Hex())
	}
}

// SetApprovalForAll grants or revokes operator rights over all of the
// owner's assets in a collection.
func (r *Registry) SetApprovalForAll(token, owner, operator common.Address, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.collectionOf(token)
	if err != nil {
		return err
	}
	if c.approvals[owner] == nil {
		c.approvals[owner] = make(map[common.Address]bool)
	}
	c.approvals[owner][operator] = approved
	return nil
}

// IsApprovedForAll reports whether operator may transfer owner's assets.
func (r *Registry) IsApprovedForAll(token, owner, operator common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.collectionOf(token)
	if err != nil {
		return false, err
	}
	return c.approvals[owner][operator], nil
}

// SafeTransferFrom moves amount of tokenID between holders. Fails if the
// sender does not hold the quantity.
func (r *Registry) SafeTransferFrom(token, from, to common.Address, tokenID *big.Int, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.collectionOf(token)
	if err != nil {
		return err
	}
	k := key(tokenID)
	switch c.kind {
	case market.TokenERC721:
		if c.owners[k] != from {
			return fmt.Errorf("transfer of token %s not owned by %s", tokenID, from.Hex())
		}
		if amount != 1 {
			return fmt.Errorf("unique token transfers move exactly 1, got %d", amount)
		}
		c.owners[k] = to
	case market.TokenERC1155:
		if c.balances[k][from] < amount {
			return fmt.Errorf("holder %s has %d of token %s, needs %d", from.Hex(), c.balances[k][from], tokenID, amount)
		}
		c.balances[k][from] -= amount
		c.balances[k][to] += amount
	default:
		return fmt.Errorf("collection %s has unknown token type", token.Hex())
	}
	return nil
}

var _ market.AssetRegistry = (*Registry)(nil)
