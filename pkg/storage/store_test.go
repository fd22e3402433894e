package storage

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vizvalabs/marketd/pkg/market"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleListing(id uint64) market.Listing {
	return market.Listing{
		ID:           id,
		SaleType:     market.SaleInstant,
		TokenType:    market.TokenERC721,
		TokenAddress: common.HexToAddress("0x00000000000000000000000000000000000000cc"),
		TokenID:      big.NewInt(int64(id) + 100),
		Amount:       1,
		AskingPrice:  big.NewInt(1_000_000),
		Seller:       common.HexToAddress("0x0000000000000000000000000000000000000010"),
		Creator:      common.HexToAddress("0x0000000000000000000000000000000000000020"),
		RoyaltyBps:   1000,
	}
}

func TestListingRoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := sampleListing(3)
	if err := s.SaveListing(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := s.GetListing(3)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.ID != want.ID || got.SaleType != want.SaleType || got.TokenAddress != want.TokenAddress {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.TokenID.Cmp(want.TokenID) != 0 || got.AskingPrice.Cmp(want.AskingPrice) != 0 {
		t.Errorf("numeric fields changed: got %+v", got)
	}
	if got.RoyaltyBps != want.RoyaltyBps {
		t.Errorf("royalty = %d, want %d", got.RoyaltyBps, want.RoyaltyBps)
	}
}

func TestGetListingMissing(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.GetListing(99)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("missing listing reported present")
	}
}

func TestSaveListingOverwrites(t *testing.T) {
	s := openTestStore(t)

	l := sampleListing(0)
	if err := s.SaveListing(l); err != nil {
		t.Fatal(err)
	}
	l.Sold = true
	if err := s.SaveListing(l); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.GetListing(0)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !got.Sold {
		t.Error("overwrite lost sold flag")
	}
}

func TestLoadListingsIDOrder(t *testing.T) {
	s := openTestStore(t)

	// Insert out of order; the big-endian key layout must iterate in
	// id order regardless.
	for _, id := range []uint64{5, 0, 300, 2} {
		if err := s.SaveListing(sampleListing(id)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.LoadListings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []uint64{0, 2, 5, 300}
	if len(got) != len(want) {
		t.Fatalf("loaded %d listings, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("listing[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestEventJournalAppendOrder(t *testing.T) {
	s := openTestStore(t)

	types := []market.EventType{
		market.EventListingCreated,
		market.EventItemSold,
		market.EventItemCancelled,
	}
	for i, typ := range types {
		ev := market.Event{
			Type:      typ,
			ListingID: uint64(i),
			At:        time.Now().UTC(),
		}
		if err := s.AppendEvent(ev); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := s.LoadEvents()
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(got) != len(types) {
		t.Fatalf("loaded %d events, want %d", len(got), len(types))
	}
	for i, typ := range types {
		if got[i].Type != typ || got[i].ListingID != uint64(i) {
			t.Errorf("event[%d] = {%s %d}, want {%s %d}", i, got[i].Type, got[i].ListingID, typ, i)
		}
	}
}

func TestMarketConfigSavedOnce(t *testing.T) {
	s := openTestStore(t)

	cfg := MarketConfig{
		CommissionBps: 250,
		Treasury:      common.HexToAddress("0x7Adb261Bea663ee06E4ff0a657E65aE91aC7167f"),
	}
	if err := s.SaveMarketConfig(cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	got, ok, err := s.LoadMarketConfig()
	if err != nil || !ok {
		t.Fatalf("load config: ok=%v err=%v", ok, err)
	}
	if got.CommissionBps != cfg.CommissionBps || got.Treasury != cfg.Treasury {
		t.Errorf("got %+v, want %+v", got, cfg)
	}

	err = s.SaveMarketConfig(MarketConfig{CommissionBps: 500})
	if !errors.Is(err, market.ErrAlreadyInitialized) {
		t.Errorf("second save err = %v, want ErrAlreadyInitialized", err)
	}

	// The original configuration must survive the rejected overwrite.
	got, _, _ = s.LoadMarketConfig()
	if got.CommissionBps != 250 {
		t.Errorf("config changed to %d after rejected save", got.CommissionBps)
	}
}

func TestLoadMarketConfigMissing(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.LoadMarketConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Error("missing config reported present")
	}
}
