package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vizvalabs/marketd/pkg/market"
)

// Store persists listings, the settlement event journal and the one-time
// market configuration in Pebble.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// keys: l:<8-byte-be-id> listings, e:<8-byte-be-seq> events,
// es event sequence counter, mc market config
func kListing(id uint64) []byte {
	key := make([]byte, 2, 10)
	copy(key, "l:")
	return binary.BigEndian.AppendUint64(key, id)
}

func kEvent(seq uint64) []byte {
	key := make([]byte, 2, 10)
	copy(key, "e:")
	return binary.BigEndian.AppendUint64(key, seq)
}

func kEventSeq() []byte      { return []byte("es") }
func kMarketConfig() []byte  { return []byte("mc") }

// SaveListing writes a listing row, overwriting prior state for its id.
func (s *Store) SaveListing(l market.Listing) error {
	val, err := encodeJSON(l)
	if err != nil {
		return fmt.Errorf("encode listing %d: %w", l.ID, err)
	}
	if err := s.db.Set(kListing(l.ID), val, pebble.Sync); err != nil {
		return fmt.Errorf("save listing %d: %w", l.ID, err)
	}
	return nil
}

// GetListing reads one listing row.
func (s *Store) GetListing(id uint64) (market.Listing, bool, error) {
	val, closer, err := s.db.Get(kListing(id))
	if err == pebble.ErrNotFound {
		return market.Listing{}, false, nil
	}
	if err != nil {
		return market.Listing{}, false, fmt.Errorf("get listing %d: %w", id, err)
	}
	defer closer.Close()

	var out market.Listing
	if err := decodeJSON(val, &out); err != nil {
		return market.Listing{}, false, fmt.Errorf("decode listing %d: %w", id, err)
	}
	return out, true, nil
}

// LoadListings returns every persisted listing in id order.
func (s *Store) LoadListings() ([]market.Listing, error) {
	prefix := []byte("l:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("listing iterator: %w", err)
	}
	defer iter.Close()

	var out []market.Listing
	for iter.First(); iter.Valid(); iter.Next() {
		var l market.Listing
		if err := decodeJSON(iter.Value(), &l); err != nil {
			return nil, fmt.Errorf("decode listing row: %w", err)
		}
		out = append(out, l)
	}
	return out, nil
}

// AppendEvent journals one settlement event under the next sequence
// number.
func (s *Store) AppendEvent(ev market.Event) error {
	seq, err := s.nextEventSeq()
	if err != nil {
		return err
	}
	val, err := encodeJSON(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := s.db.Set(kEvent(seq), val, pebble.Sync); err != nil {
		return fmt.Errorf("append event %d: %w", seq, err)
	}
	return nil
}

func (s *Store) nextEventSeq() (uint64, error) {
	var seq uint64
	val, closer, err := s.db.Get(kEventSeq())
	switch err {
	case nil:
		seq = binary.BigEndian.Uint64(val)
		closer.Close()
	case pebble.ErrNotFound:
		seq = 0
	default:
		return 0, fmt.Errorf("read event seq: %w", err)
	}

	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, seq+1)
	if err := s.db.Set(kEventSeq(), next, pebble.Sync); err != nil {
		return 0, fmt.Errorf("advance event seq: %w", err)
	}
	return seq, nil
}

// LoadEvents returns journaled events in append order.
func (s *Store) LoadEvents() ([]market.Event, error) {
	prefix := []byte("e:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("event iterator: %w", err)
	}
	defer iter.Close()

	var out []market.Event
	for iter.First(); iter.Valid(); iter.Next() {
		var ev market.Event
		if err := decodeJSON(iter.Value(), &ev); err != nil {
			return nil, fmt.Errorf("decode event row: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// MarketConfig is the persisted form of the one-time initialization
// parameters, so a restarted node keeps its original configuration.
type MarketConfig struct {
	CommissionBps uint16         `json:"commissionBps"`
	Treasury      common.Address `json:"treasury"`
}

// SaveMarketConfig records the initialization parameters. Fails if a
// configuration was already saved; initialization happens exactly once
// per data directory.
func (s *Store) SaveMarketConfig(cfg MarketConfig) error {
	_, closer, err := s.db.Get(kMarketConfig())
	if err == nil {
		closer.Close()
		return fmt.Errorf("market config already saved: %w", market.ErrAlreadyInitialized)
	}
	if err != pebble.ErrNotFound {
		return fmt.Errorf("read market config: %w", err)
	}

	val, err := encodeJSON(cfg)
	if err != nil {
		return fmt.Errorf("encode market config: %w", err)
	}
	if err := s.db.Set(kMarketConfig(), val, pebble.Sync); err != nil {
		return fmt.Errorf("save market config: %w", err)
	}
	return nil
}

// LoadMarketConfig returns the persisted initialization parameters.
func (s *Store) LoadMarketConfig() (MarketConfig, bool, error) {
	val, closer, err := s.db.Get(kMarketConfig())
	if err == pebble.ErrNotFound {
		return MarketConfig{}, false, nil
	}
	if err != nil {
		return MarketConfig{}, false, fmt.Errorf("read market config: %w", err)
	}
	defer closer.Close()

	var cfg MarketConfig
	if err := decodeJSON(val, &cfg); err != nil {
		return MarketConfig{}, false, fmt.Errorf("decode market config: %w", err)
	}
	return cfg, true, nil
}

var _ market.Store = (*Store)(nil)
