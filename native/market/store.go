package market

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"otcmarket/native/pricing"
	"otcmarket/storage"
)

var (
	listingPrefix = []byte("market/listing/")
	tradePrefix   = []byte("market/trade/")
	listingSeqKey = ethcrypto.Keccak256([]byte("market/seq/listing"))
	tradeSeqKey   = ethcrypto.Keccak256([]byte("market/seq/trade"))
)

func listingStoreKey(id uint64) []byte {
	buf := make([]byte, len(listingPrefix)+8)
	copy(buf, listingPrefix)
	binary.BigEndian.PutUint64(buf[len(listingPrefix):], id)
	return ethcrypto.Keccak256(buf)
}

func tradeStoreKey(id uint64) []byte {
	buf := make([]byte, len(tradePrefix)+8)
	copy(buf, tradePrefix)
	binary.BigEndian.PutUint64(buf[len(tradePrefix):], id)
	return ethcrypto.Keccak256(buf)
}

// storedListing mirrors Listing with RLP-friendly field types. Timestamps are
// persisted as uint64 because RLP has no signed integer encoding.
type storedListing struct {
	ID          uint64
	Seller      [20]byte
	Token       string
	TotalAmount *big.Int
	Remaining   *big.Int
	Mode        uint8
	UnitPrice   *big.Int
	DiscountBps uint32
	PayAsset    string
	PriceSource string
	CreatedAt   uint64
	OpenTrades  uint64
	Status      uint8
}

type storedTrade struct {
	ID              uint64
	ListingID       uint64
	Buyer           [20]byte
	Quantity        *big.Int
	Payment         *big.Int
	CreatedAt       uint64
	BuyerConfirmed  bool
	SellerConfirmed bool
	Disputed        bool
	ResolutionReady bool
	Status          uint8
}

// Store persists listings, trades and the id sequences in a storage.Database.
// It satisfies the engine's state interface; identifier minting is serialised
// so ids stay strictly increasing even under concurrent use.
type Store struct {
	mu sync.Mutex
	db storage.Database
}

// NewStore wraps the supplied database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// ListingPut encodes and persists the listing.
func (s *Store) ListingPut(l *Listing) error {
	if l == nil {
		return fmt.Errorf("market: nil listing")
	}
	if l.CreatedAt < 0 {
		return fmt.Errorf("market: negative listing timestamp")
	}
	rec := &storedListing{
		ID:          l.ID,
		Seller:      l.Seller,
		Token:       l.Token,
		TotalAmount: nonNil(l.TotalAmount),
		Remaining:   nonNil(l.Remaining),
		Mode:        uint8(l.Mode),
		UnitPrice:   nonNil(l.UnitPrice),
		DiscountBps: l.DiscountBps,
		PayAsset:    l.PayAsset,
		PriceSource: l.PriceSource,
		CreatedAt:   uint64(l.CreatedAt),
		OpenTrades:  l.OpenTrades,
		Status:      uint8(l.Status),
	}
	encoded, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return err
	}
	return s.db.Put(listingStoreKey(l.ID), encoded)
}

// ListingGet loads a listing by id.
func (s *Store) ListingGet(id uint64) (*Listing, bool) {
	data, err := s.db.Get(listingStoreKey(id))
	if err != nil {
		return nil, false
	}
	rec := new(storedListing)
	if err := rlp.DecodeBytes(data, rec); err != nil {
		return nil, false
	}
	listing := &Listing{
		ID:          rec.ID,
		Seller:      rec.Seller,
		Token:       rec.Token,
		TotalAmount: rec.TotalAmount,
		Remaining:   rec.Remaining,
		Mode:        pricing.Mode(rec.Mode),
		DiscountBps: rec.DiscountBps,
		PayAsset:    rec.PayAsset,
		PriceSource: rec.PriceSource,
		CreatedAt:   int64(rec.CreatedAt),
		OpenTrades:  rec.OpenTrades,
		Status:      ListingStatus(rec.Status),
	}
	if rec.UnitPrice != nil && rec.UnitPrice.Sign() > 0 {
		listing.UnitPrice = rec.UnitPrice
	}
	return listing, true
}

// TradePut encodes and persists the trade.
func (s *Store) TradePut(t *Trade) error {
	if t == nil {
		return fmt.Errorf("market: nil trade")
	}
	if t.CreatedAt < 0 {
		return fmt.Errorf("market: negative trade timestamp")
	}
	rec := &storedTrade{
		ID:              t.ID,
		ListingID:       t.ListingID,
		Buyer:           t.Buyer,
		Quantity:        nonNil(t.Quantity),
		Payment:         nonNil(t.Payment),
		CreatedAt:       uint64(t.CreatedAt),
		BuyerConfirmed:  t.BuyerConfirmed,
		SellerConfirmed: t.SellerConfirmed,
		Disputed:        t.Disputed,
		ResolutionReady: t.ResolutionReady,
		Status:          uint8(t.Status),
	}
	encoded, err := rlp.EncodeToBytes(rec)
	if err != nil {
		return err
	}
	return s.db.Put(tradeStoreKey(t.ID), encoded)
}

// TradeGet loads a trade by id.
func (s *Store) TradeGet(id uint64) (*Trade, bool) {
	data, err := s.db.Get(tradeStoreKey(id))
	if err != nil {
		return nil, false
	}
	rec := new(storedTrade)
	if err := rlp.DecodeBytes(data, rec); err != nil {
		return nil, false
	}
	return &Trade{
		ID:              rec.ID,
		ListingID:       rec.ListingID,
		Buyer:           rec.Buyer,
		Quantity:        rec.Quantity,
		Payment:         rec.Payment,
		CreatedAt:       int64(rec.CreatedAt),
		BuyerConfirmed:  rec.BuyerConfirmed,
		SellerConfirmed: rec.SellerConfirmed,
		Disputed:        rec.Disputed,
		ResolutionReady: rec.ResolutionReady,
		Status:          TradeStatus(rec.Status),
	}, true
}

// NextListingID mints the next listing identifier, starting at 1.
func (s *Store) NextListingID() (uint64, error) {
	return s.nextSequence(listingSeqKey)
}

// NextTradeID mints the next trade identifier, starting at 1.
func (s *Store) NextTradeID() (uint64, error) {
	return s.nextSequence(tradeSeqKey)
}

func (s *Store) nextSequence(key []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current uint64
	data, err := s.db.Get(key)
	switch {
	case err == nil:
		if len(data) != 8 {
			return 0, fmt.Errorf("market: corrupt sequence record")
		}
		current = binary.BigEndian.Uint64(data)
	case errors.Is(err, storage.ErrKeyNotFound):
	default:
		return 0, err
	}
	next := current + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := s.db.Put(key, buf); err != nil {
		return 0, err
	}
	return next, nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
