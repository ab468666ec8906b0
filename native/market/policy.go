package market

import (
	"strings"
	"sync"
)

// Default validity windows, in seconds. A listing stops accepting trades
// once its window elapses; a pending trade becomes dispute-eligible once its
// window elapses.
const (
	DefaultListingWindowSecs int64 = 1800
	DefaultTradeWindowSecs   int64 = 1800
)

// Policy carries the process-wide administrative state consulted by the
// engine: the arbitrator identity, the validity windows and the
// allowed-payment-asset set. It is injected at construction so tests can
// substitute policy without touching engine logic. The allow-list is mutated
// only from outside the engine and consulted at listing creation time only.
type Policy struct {
	mu            sync.RWMutex
	arbitrator    [20]byte
	listingWindow int64
	tradeWindow   int64
	allowed       map[string]bool
}

// NewPolicy builds a policy with the default validity windows and an empty
// allow-list.
func NewPolicy(arbitrator [20]byte) *Policy {
	return &Policy{
		arbitrator:    arbitrator,
		listingWindow: DefaultListingWindowSecs,
		tradeWindow:   DefaultTradeWindowSecs,
		allowed:       make(map[string]bool),
	}
}

// Arbitrator returns the identity authorised to confirm dispute resolutions.
func (p *Policy) Arbitrator() [20]byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.arbitrator
}

// SetWindows overrides the listing and trade validity windows. Non-positive
// values keep the current setting.
func (p *Policy) SetWindows(listingSecs, tradeSecs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if listingSecs > 0 {
		p.listingWindow = listingSecs
	}
	if tradeSecs > 0 {
		p.tradeWindow = tradeSecs
	}
}

// ListingWindow returns the number of seconds a listing accepts new trades.
func (p *Policy) ListingWindow() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.listingWindow
}

// TradeWindow returns the number of seconds before a pending trade becomes
// dispute-eligible.
func (p *Policy) TradeWindow() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tradeWindow
}

// AllowPaymentAsset adds or removes an asset from the allow-list.
func (p *Policy) AllowPaymentAsset(asset string, allowed bool) {
	normalized := strings.ToUpper(strings.TrimSpace(asset))
	if normalized == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if allowed {
		p.allowed[normalized] = true
		return
	}
	delete(p.allowed, normalized)
}

// PaymentAssetAllowed reports whether the asset may be used as the payment
// side of a new listing.
func (p *Policy) PaymentAssetAllowed(asset string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(asset))
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.allowed[normalized]
}
