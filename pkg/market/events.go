package market

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names the settlement events consumed by off-chain indexers.
type EventType string

const (
	EventListingCreated EventType = "ListingCreated"
	EventItemSold       EventType = "ItemSold"
	EventItemCancelled  EventType = "ItemCancelled"
	EventItemRedeemed   EventType = "ItemRedeemed"
)

// Event is the flat wire form broadcast to indexers and journaled to
// storage. Fields not meaningful for a given type are omitted.
type Event struct {
	Type         EventType      `json:"type"`
	ListingID    uint64         `json:"id"`
	TokenID      *big.Int       `json:"tokenId,omitempty"`
	TokenAddress common.Address `json:"tokenAddress,omitempty"`
	AskingPrice  *big.Int       `json:"askingPrice,omitempty"`
	RoyaltyBps   uint16         `json:"royalty,omitempty"`
	Creator      common.Address `json:"creator,omitempty"`
	Buyer        common.Address `json:"buyer,omitempty"`
	Price        *big.Int       `json:"price,omitempty"`
	At           time.Time      `json:"at"`
}

// EventSink receives every event the engine emits. Implementations must
// not block; the engine calls sinks synchronously under its settlement
// lock.
type EventSink func(Event)

func now() time.Time {
	return time.Now().UTC()
}
