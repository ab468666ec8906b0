package market

import (
	"fmt"
	"math/big"
)

// TradeStatus represents the lifecycle phases of one buyer's fill against a
// listing.
type TradeStatus uint8

const (
	TradePending TradeStatus = iota
	TradeCompleted
	TradeDisputed
	TradeResolved
)

// Trade records a buyer's claim against a listing. Payment is computed once
// at initiation and never recomputed; the stored value is the amount held in
// escrow for the trade's whole life. ResolutionReady is the arbitrator's
// confirmation record: resolution cannot execute until it is set.
type Trade struct {
	ID              uint64
	ListingID       uint64
	Buyer           [20]byte
	Quantity        *big.Int
	Payment         *big.Int
	CreatedAt       int64
	BuyerConfirmed  bool
	SellerConfirmed bool
	Disputed        bool
	ResolutionReady bool
	Status          TradeStatus
}

// Clone returns a deep copy allowing callers to mutate the result without
// affecting the stored instance.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Quantity != nil {
		clone.Quantity = new(big.Int).Set(t.Quantity)
	} else {
		clone.Quantity = big.NewInt(0)
	}
	if t.Payment != nil {
		clone.Payment = new(big.Int).Set(t.Payment)
	} else {
		clone.Payment = big.NewInt(0)
	}
	return &clone
}

// Valid reports whether the trade status value is supported.
func (s TradeStatus) Valid() bool {
	switch s {
	case TradePending, TradeCompleted, TradeDisputed, TradeResolved:
		return true
	default:
		return false
	}
}

// Terminal reports whether the trade can no longer change state.
func (s TradeStatus) Terminal() bool {
	return s == TradeCompleted || s == TradeResolved
}

// SanitizeTrade validates the supplied trade definition and returns a cloned
// instance with non-nil amount fields. The original value is not mutated.
func SanitizeTrade(t *Trade) (*Trade, error) {
	if t == nil {
		return nil, fmt.Errorf("market: nil trade")
	}
	clone := t.Clone()
	if clone.Quantity.Sign() <= 0 {
		return nil, fmt.Errorf("market: trade quantity must be positive")
	}
	if clone.Payment.Sign() <= 0 {
		return nil, fmt.Errorf("market: trade payment must be positive")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("market: invalid trade status %d", clone.Status)
	}
	if clone.Disputed && clone.Status != TradeDisputed {
		return nil, fmt.Errorf("market: disputed flag requires disputed status")
	}
	return clone, nil
}
