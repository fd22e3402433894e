package market

import (
	"fmt"
	"sync"
)

// ListingBook holds all listings indexed by their sequential id.
// Ids start at 0 and are never reused; rows are mutated in place by
// exactly one successful settlement or cancellation and never removed.
type ListingBook struct {
	mu       sync.RWMutex
	listings map[uint64]*Listing
	nextID   uint64
}

// NewListingBook creates an empty book.
func NewListingBook() *ListingBook {
	return &ListingBook{
		listings: make(map[uint64]*Listing),
	}
}

// Append assigns the next sequential id to l, stores it and returns the id.
func (b *ListingBook) Append(l Listing) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	l.ID = b.nextID
	b.nextID++
	b.listings[l.ID] = &l
	return l.ID
}

// Restore re-inserts a persisted listing under its original id.
// Used when rebuilding the book from storage at startup.
func (b *ListingBook) Restore(l Listing) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.listings[l.ID]; exists {
		return fmt.Errorf("listing %d already present", l.ID)
	}
	b.listings[l.ID] = &l
	if l.ID >= b.nextID {
		b.nextID = l.ID + 1
	}
	return nil
}

// Get returns a copy of the listing with the given id.
func (b *ListingBook) Get(id uint64) (Listing, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	l, ok := b.listings[id]
	if !ok {
		return Listing{}, false
	}
	return *l, true
}

// All returns copies of every listing, including cancelled and sold ones.
func (b *ListingBook) All() []Listing {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Listing, 0, len(b.listings))
	for _, l := range b.listings {
		out = append(out, *l)
	}
	return out
}

// Active returns copies of listings still open for settlement.
func (b *ListingBook) Active() []Listing {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Listing, 0)
	for _, l := range b.listings {
		if l.Active() {
			out = append(out, *l)
		}
	}
	return out
}

// Count returns the total number of listings ever created.
func (b *ListingBook) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listings)
}

// MarkCancelled transitions Active -> Cancelled. The transition happens
// at most once: a second call fails with ErrItemAlreadyCancelled.
func (b *ListingBook) MarkCancelled(id uint64) (Listing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.listings[id]
	if !ok {
		return Listing{}, fmt.Errorf("listing %d: %w", id, ErrUnknownListing)
	}
	if l.Cancelled {
		return Listing{}, fmt.Errorf("listing %d: %w", id, ErrItemAlreadyCancelled)
	}
	if l.Sold {
		return Listing{}, fmt.Errorf("listing %d: %w", id, ErrItemAlreadySold)
	}
	l.Cancelled = true
	return *l, nil
}

// MarkSold transitions Active -> Sold, exactly once.
func (b *ListingBook) MarkSold(id uint64) (Listing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.listings[id]
	if !ok {
		return Listing{}, fmt.Errorf("listing %d: %w", id, ErrUnknownListing)
	}
	if l.Cancelled {
		return Listing{}, fmt.Errorf("listing %d: %w", id, ErrItemAlreadyCancelled)
	}
	if l.Sold {
		return Listing{}, fmt.Errorf("listing %d: %w", id, ErrItemAlreadySold)
	}
	l.Sold = true
	return *l, nil
}
