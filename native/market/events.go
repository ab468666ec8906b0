package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"otcmarket/core/types"
)

const (
	EventTypeListingCreated   = "market.listing.created"
	EventTypeListingCancelled = "market.listing.cancelled"
	EventTypeTradeInitiated   = "market.trade.initiated"
	EventTypeTradeConfirmed   = "market.trade.confirmed"
	EventTypeTradeCompleted   = "market.trade.completed"
	EventTypeTradeDisputed    = "market.trade.disputed"
	EventTypeDisputeConfirmed = "market.dispute.confirmed"
	EventTypeTradeResolved    = "market.trade.resolved"
)

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// NewListingCreatedEvent returns the canonical payload for a new listing.
func NewListingCreatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCreated, l)
}

// NewListingCancelledEvent returns the payload emitted when a seller cancels
// a listing and the remaining supply is refunded.
func NewListingCancelledEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCancelled, l)
}

// NewTradeInitiatedEvent returns the payload for a freshly escrowed trade.
func NewTradeInitiatedEvent(t *Trade) *types.Event {
	return newTradeEvent(EventTypeTradeInitiated, t, nil)
}

// NewTradeConfirmedEvent returns the payload recording one party's
// confirmation.
func NewTradeConfirmedEvent(t *Trade, confirmer [20]byte, isBuyer bool) *types.Event {
	return newTradeEvent(EventTypeTradeConfirmed, t, map[string]string{
		"confirmer": hex.EncodeToString(confirmer[:]),
		"isBuyer":   strconv.FormatBool(isBuyer),
	})
}

// NewTradeCompletedEvent returns the payload emitted on settlement.
func NewTradeCompletedEvent(t *Trade) *types.Event {
	return newTradeEvent(EventTypeTradeCompleted, t, nil)
}

// NewTradeDisputedEvent returns the payload emitted when a party raises a
// dispute.
func NewTradeDisputedEvent(t *Trade, disputer [20]byte) *types.Event {
	return newTradeEvent(EventTypeTradeDisputed, t, map[string]string{
		"disputer": hex.EncodeToString(disputer[:]),
	})
}

// NewDisputeConfirmedEvent returns the payload emitted when the arbitrator
// records that a resolution is ready to execute.
func NewDisputeConfirmedEvent(t *Trade) *types.Event {
	return newTradeEvent(EventTypeDisputeConfirmed, t, nil)
}

// NewTradeResolvedEvent returns the payload describing the executed split.
func NewTradeResolvedEvent(t *Trade, tokenToBuyer, paymentToSeller *big.Int) *types.Event {
	extra := map[string]string{}
	if tokenToBuyer != nil {
		extra["tokenToBuyer"] = tokenToBuyer.String()
	}
	if paymentToSeller != nil {
		extra["paymentToSeller"] = paymentToSeller.String()
	}
	return newTradeEvent(EventTypeTradeResolved, t, extra)
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["listingId"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["token"] = sanitized.Token
	attrs["totalAmount"] = sanitized.TotalAmount.String()
	attrs["remaining"] = sanitized.Remaining.String()
	attrs["payAsset"] = sanitized.PayAsset
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	attrs["status"] = strconv.FormatUint(uint64(sanitized.Status), 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newTradeEvent(eventType string, t *Trade, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if t == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeTrade(t)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["tradeId"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["listingId"] = strconv.FormatUint(sanitized.ListingID, 10)
	attrs["buyer"] = hex.EncodeToString(sanitized.Buyer[:])
	attrs["quantity"] = sanitized.Quantity.String()
	attrs["amount"] = sanitized.Payment.String()
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	attrs["status"] = strconv.FormatUint(uint64(sanitized.Status), 10)
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
