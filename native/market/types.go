package market

import (
	"fmt"
	"math/big"

	"otcmarket/ledger"
	"otcmarket/native/pricing"
)

// ListingStatus represents the lifecycle states of a seller's standing offer.
// Transitions are monotone: a Cancelled or Completed listing never reopens.
type ListingStatus uint8

const (
	ListingOpen ListingStatus = iota
	ListingFunded
	ListingCompleted
	ListingCancelled
	ListingDisputed
)

// Listing captures a seller's offer of Token units priced in PayAsset. The
// escrowed supply is tracked through Remaining, which only ever decreases.
// OpenTrades counts trades initiated against the listing that have not yet
// reached a terminal state, letting the engine detect when a fully consumed
// listing can complete.
type Listing struct {
	ID          uint64
	Seller      [20]byte
	Token       string
	TotalAmount *big.Int
	Remaining   *big.Int
	Mode        pricing.Mode
	UnitPrice   *big.Int
	DiscountBps uint32
	PayAsset    string
	PriceSource string
	CreatedAt   int64
	OpenTrades  uint64
	Status      ListingStatus
}

// Clone returns a deep copy so callers can mutate the result without
// affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.TotalAmount != nil {
		clone.TotalAmount = new(big.Int).Set(l.TotalAmount)
	} else {
		clone.TotalAmount = big.NewInt(0)
	}
	if l.Remaining != nil {
		clone.Remaining = new(big.Int).Set(l.Remaining)
	} else {
		clone.Remaining = big.NewInt(0)
	}
	if l.UnitPrice != nil {
		clone.UnitPrice = new(big.Int).Set(l.UnitPrice)
	}
	return &clone
}

// Valid reports whether the status value is within the supported range.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingOpen, ListingFunded, ListingCompleted, ListingCancelled, ListingDisputed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the listing can no longer change state.
func (s ListingStatus) Terminal() bool {
	return s == ListingCompleted || s == ListingCancelled
}

// SanitizeListing validates and normalises the supplied listing, returning a
// cloned instance with canonical asset casing and non-nil amounts. The
// original value is not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	clone := l.Clone()
	token, err := ledger.NormalizeAsset(clone.Token)
	if err != nil {
		return nil, err
	}
	clone.Token = token
	payAsset, err := ledger.NormalizeAsset(clone.PayAsset)
	if err != nil {
		return nil, err
	}
	clone.PayAsset = payAsset
	if clone.TotalAmount.Sign() < 0 || clone.Remaining.Sign() < 0 {
		return nil, fmt.Errorf("market: listing amounts must be non-negative")
	}
	if clone.Remaining.Cmp(clone.TotalAmount) > 0 {
		return nil, fmt.Errorf("market: remaining exceeds total")
	}
	if !clone.Mode.Valid() {
		return nil, fmt.Errorf("market: invalid pricing mode %d", clone.Mode)
	}
	if clone.DiscountBps > 10_000 {
		return nil, fmt.Errorf("market: discount bps out of range: %d", clone.DiscountBps)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("market: invalid listing status %d", clone.Status)
	}
	return clone, nil
}
