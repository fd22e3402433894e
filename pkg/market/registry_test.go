package market

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testListing() Listing {
	return Listing{
		SaleType:     SaleInstant,
		TokenType:    TokenERC721,
		TokenAddress: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		TokenID:      big.NewInt(1),
		Amount:       1,
		AskingPrice:  big.NewInt(1000),
		Seller:       sellerAddr,
		Creator:      creatorAddr,
		RoyaltyBps:   1000,
	}
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	book := NewListingBook()

	for want := uint64(0); want < 5; want++ {
		id := book.Append(testListing())
		if id != want {
			t.Errorf("id = %d, want %d", id, want)
		}
	}
	if book.Count() != 5 {
		t.Errorf("count = %d, want 5", book.Count())
	}
}

func TestMarkCancelledTwice(t *testing.T) {
	book := NewListingBook()
	id := book.Append(testListing())

	if _, err := book.MarkCancelled(id); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := book.MarkCancelled(id); !errors.Is(err, ErrItemAlreadyCancelled) {
		t.Errorf("second cancel err = %v, want ErrItemAlreadyCancelled", err)
	}
}

func TestMarkSoldThenCancelFails(t *testing.T) {
	book := NewListingBook()
	id := book.Append(testListing())

	if _, err := book.MarkSold(id); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if _, err := book.MarkCancelled(id); !errors.Is(err, ErrItemAlreadySold) {
		t.Errorf("cancel after sale err = %v, want ErrItemAlreadySold", err)
	}
	if _, err := book.MarkSold(id); !errors.Is(err, ErrItemAlreadySold) {
		t.Errorf("second sale err = %v, want ErrItemAlreadySold", err)
	}
}

func TestCancelledListingStaysQueryable(t *testing.T) {
	book := NewListingBook()
	id := book.Append(testListing())
	if _, err := book.MarkCancelled(id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	l, ok := book.Get(id)
	if !ok {
		t.Fatal("cancelled listing removed from book")
	}
	if !l.Cancelled {
		t.Error("listing not flagged cancelled")
	}
	if len(book.All()) != 1 {
		t.Errorf("All() = %d rows, want 1", len(book.All()))
	}
	if len(book.Active()) != 0 {
		t.Errorf("Active() = %d rows, want 0", len(book.Active()))
	}
}

func TestUnknownListing(t *testing.T) {
	book := NewListingBook()
	if _, err := book.MarkCancelled(42); !errors.Is(err, ErrUnknownListing) {
		t.Errorf("err = %v, want ErrUnknownListing", err)
	}
	if _, ok := book.Get(42); ok {
		t.Error("Get returned a listing that was never created")
	}
}

func TestRestoreResumesIDSequence(t *testing.T) {
	book := NewListingBook()

	l := testListing()
	l.ID = 7
	if err := book.Restore(l); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := book.Restore(l); err == nil {
		t.Error("restoring the same id twice should fail")
	}

	id := book.Append(testListing())
	if id != 8 {
		t.Errorf("next id = %d, want 8", id)
	}
}
