package market

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	nativecommon "otcmarket/native/common"
	"otcmarket/native/pricing"
)

// InitiateTrade fills quantity units from an open listing. The payment owed
// is quoted exactly once, escrowed from the buyer, and persisted on the
// trade; later oracle movement cannot change it. Escrowing the payment is the
// buyer's economically binding action, so the trade is created with the buyer
// already confirmed.
func (e *Engine) InitiateTrade(caller [20]byte, listingID uint64, quantity *big.Int) (id uint64, err error) {
	defer e.track("initiate_trade", time.Now(), &err)
	if err = e.ready(); err != nil {
		return 0, err
	}
	if err = nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	key := listingKey(listingID)
	if err = e.acquire(key); err != nil {
		return 0, err
	}
	defer e.releaseEntries(key)
	listing, err := e.loadListing(listingID)
	if err != nil {
		return 0, err
	}
	if listing.Status != ListingOpen {
		return 0, fmt.Errorf("%w: listing %d not open", ErrInvalidState, listingID)
	}
	now := e.now()
	if now > listing.CreatedAt+e.policy.ListingWindow() {
		return 0, fmt.Errorf("%w: listing %d no longer accepts trades", ErrExpired, listingID)
	}
	if quantity == nil || quantity.Sign() <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if quantity.Cmp(listing.Remaining) > 0 {
		return 0, fmt.Errorf("%w: quantity exceeds remaining supply", ErrInvalidInput)
	}
	payment, err := e.pricer.Quote(listing.Mode, listing.UnitPrice, listing.DiscountBps, listing.PriceSource, quantity)
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidBps) {
			return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}
	if err = e.ledger.TransferIn(listing.PayAsset, caller, payment); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	id, err = e.state.NextTradeID()
	if err != nil {
		_ = e.ledger.TransferOut(listing.PayAsset, caller, payment)
		return 0, err
	}
	trade := &Trade{
		ID:             id,
		ListingID:      listingID,
		Buyer:          caller,
		Quantity:       new(big.Int).Set(quantity),
		Payment:        payment,
		CreatedAt:      now,
		BuyerConfirmed: true,
		Status:         TradePending,
	}
	prevListing := listing.Clone()
	listing.Remaining = new(big.Int).Sub(listing.Remaining, quantity)
	listing.OpenTrades++
	if listing.Remaining.Sign() == 0 {
		listing.Status = ListingFunded
	}
	if err = e.state.TradePut(trade); err != nil {
		_ = e.ledger.TransferOut(listing.PayAsset, caller, payment)
		return 0, err
	}
	if err = e.state.ListingPut(listing); err != nil {
		_ = e.state.ListingPut(prevListing)
		_ = e.ledger.TransferOut(listing.PayAsset, caller, payment)
		return 0, err
	}
	e.emit(NewTradeInitiatedEvent(trade))
	e.emit(NewTradeConfirmedEvent(trade, caller, true))
	return id, nil
}

// ReleaseTrade settles a pending trade: the seller confirms, the escrowed
// token quantity moves to the buyer and the escrowed payment to the seller.
// The buyer is already confirmed from initiation, so the seller's release is
// the completing confirmation. State is committed before the external
// transfers; a failed transfer restores the prior state.
func (e *Engine) ReleaseTrade(caller [20]byte, tradeID uint64) (err error) {
	defer e.track("release_trade", time.Now(), &err)
	if err = e.ready(); err != nil {
		return err
	}
	if err = nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	tKey := tradeKey(tradeID)
	if err = e.acquire(tKey); err != nil {
		return err
	}
	defer e.releaseEntries(tKey)
	trade, err := e.loadTrade(tradeID)
	if err != nil {
		return err
	}
	lKey := listingKey(trade.ListingID)
	if err = e.acquire(lKey); err != nil {
		return err
	}
	defer e.releaseEntries(lKey)
	listing, err := e.loadListing(trade.ListingID)
	if err != nil {
		return err
	}
	if caller != listing.Seller {
		return fmt.Errorf("%w: only the seller may release", ErrPolicyViolation)
	}
	if trade.Status != TradePending {
		return fmt.Errorf("%w: trade %d not pending", ErrInvalidState, tradeID)
	}
	if !trade.BuyerConfirmed || trade.SellerConfirmed {
		return fmt.Errorf("%w: confirmation flags inconsistent", ErrInvalidState)
	}
	prevTrade := trade.Clone()
	prevListing := listing.Clone()
	trade.SellerConfirmed = true
	trade.Status = TradeCompleted
	if listing.OpenTrades > 0 {
		listing.OpenTrades--
	}
	if listing.Status == ListingFunded && listing.OpenTrades == 0 {
		listing.Status = ListingCompleted
	}
	if err = e.state.TradePut(trade); err != nil {
		return err
	}
	if err = e.state.ListingPut(listing); err != nil {
		_ = e.state.TradePut(prevTrade)
		return err
	}
	err = e.payoutAll([]payout{
		{asset: listing.Token, to: trade.Buyer, amount: trade.Quantity},
		{asset: listing.PayAsset, to: listing.Seller, amount: trade.Payment},
	})
	if err != nil {
		_ = e.state.TradePut(prevTrade)
		_ = e.state.ListingPut(prevListing)
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	e.emit(NewTradeConfirmedEvent(trade, caller, false))
	e.emit(NewTradeCompletedEvent(trade))
	return nil
}

// RaiseDispute flags a pending trade once its confirmation window has
// elapsed without completion. Only the trade's buyer or the listing's seller
// may dispute. No assets move.
func (e *Engine) RaiseDispute(caller [20]byte, tradeID uint64) (err error) {
	defer e.track("raise_dispute", time.Now(), &err)
	if err = e.ready(); err != nil {
		return err
	}
	if err = nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	tKey := tradeKey(tradeID)
	if err = e.acquire(tKey); err != nil {
		return err
	}
	defer e.releaseEntries(tKey)
	trade, err := e.loadTrade(tradeID)
	if err != nil {
		return err
	}
	lKey := listingKey(trade.ListingID)
	if err = e.acquire(lKey); err != nil {
		return err
	}
	defer e.releaseEntries(lKey)
	listing, err := e.loadListing(trade.ListingID)
	if err != nil {
		return err
	}
	if caller != trade.Buyer && caller != listing.Seller {
		return fmt.Errorf("%w: only buyer or seller may dispute", ErrPolicyViolation)
	}
	if trade.Status != TradePending {
		return fmt.Errorf("%w: trade %d not pending", ErrInvalidState, tradeID)
	}
	if e.now() <= trade.CreatedAt+e.policy.TradeWindow() {
		return fmt.Errorf("%w: trade %d confirmation window still open", ErrTooEarly, tradeID)
	}
	trade.Disputed = true
	trade.Status = TradeDisputed
	// A listing already Cancelled or Completed stays terminal; only the trade
	// carries the dispute in that case.
	if !listing.Status.Terminal() {
		listing.Status = ListingDisputed
	}
	if err = e.state.TradePut(trade); err != nil {
		return err
	}
	if err = e.state.ListingPut(listing); err != nil {
		return err
	}
	e.emit(NewTradeDisputedEvent(trade, caller))
	return nil
}

// ConfirmDisputeResolution records the arbitrator's decision that a disputed
// trade is ready to resolve. Recording is idempotent and moves no assets;
// executing the resolution is a separate, openly callable step.
func (e *Engine) ConfirmDisputeResolution(caller [20]byte, tradeID uint64) (err error) {
	defer e.track("confirm_dispute", time.Now(), &err)
	if err = e.ready(); err != nil {
		return err
	}
	if err = nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	tKey := tradeKey(tradeID)
	if err = e.acquire(tKey); err != nil {
		return err
	}
	defer e.releaseEntries(tKey)
	trade, err := e.loadTrade(tradeID)
	if err != nil {
		return err
	}
	if caller != e.policy.Arbitrator() {
		return fmt.Errorf("%w: only the arbitrator may confirm", ErrPolicyViolation)
	}
	if trade.Status != TradeDisputed {
		return fmt.Errorf("%w: trade %d not disputed", ErrInvalidState, tradeID)
	}
	if trade.ResolutionReady {
		return nil
	}
	trade.ResolutionReady = true
	if err = e.state.TradePut(trade); err != nil {
		return err
	}
	e.emit(NewDisputeConfirmedEvent(trade))
	return nil
}

// ResolveDispute disburses both escrowed legs of a disputed trade according
// to an explicit split: tokenToBuyer of the escrowed quantity goes to the
// buyer with the remainder returned to the seller, and paymentToSeller of
// the escrowed payment goes to the seller with the remainder refunded to the
// buyer. Any remaining listing supply is refunded to the seller and the
// listing is cancelled. Anyone may execute once the arbitrator has confirmed,
// so execution itself cannot be censored.
func (e *Engine) ResolveDispute(caller [20]byte, tradeID uint64, tokenToBuyer, paymentToSeller *big.Int) (err error) {
	defer e.track("resolve_dispute", time.Now(), &err)
	if err = e.ready(); err != nil {
		return err
	}
	if err = nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	tKey := tradeKey(tradeID)
	if err = e.acquire(tKey); err != nil {
		return err
	}
	defer e.releaseEntries(tKey)
	trade, err := e.loadTrade(tradeID)
	if err != nil {
		return err
	}
	lKey := listingKey(trade.ListingID)
	if err = e.acquire(lKey); err != nil {
		return err
	}
	defer e.releaseEntries(lKey)
	listing, err := e.loadListing(trade.ListingID)
	if err != nil {
		return err
	}
	if trade.Status != TradeDisputed {
		return fmt.Errorf("%w: trade %d not disputed", ErrInvalidState, tradeID)
	}
	if !trade.ResolutionReady {
		return fmt.Errorf("%w: resolution not confirmed by arbitrator", ErrInvalidState)
	}
	if tokenToBuyer == nil || tokenToBuyer.Sign() < 0 || tokenToBuyer.Cmp(trade.Quantity) > 0 {
		return fmt.Errorf("%w: token split outside escrowed bounds", ErrInvalidInput)
	}
	if paymentToSeller == nil || paymentToSeller.Sign() < 0 || paymentToSeller.Cmp(trade.Payment) > 0 {
		return fmt.Errorf("%w: payment split outside escrowed bounds", ErrInvalidInput)
	}
	tokenToSeller := new(big.Int).Sub(trade.Quantity, tokenToBuyer)
	paymentToBuyer := new(big.Int).Sub(trade.Payment, paymentToSeller)
	supplyRefund := new(big.Int).Set(listing.Remaining)

	prevTrade := trade.Clone()
	prevListing := listing.Clone()
	trade.Disputed = false
	trade.ResolutionReady = false
	trade.Status = TradeResolved
	if listing.OpenTrades > 0 {
		listing.OpenTrades--
	}
	listing.Remaining = big.NewInt(0)
	cancelledNow := !listing.Status.Terminal()
	if cancelledNow {
		listing.Status = ListingCancelled
	}
	if err = e.state.TradePut(trade); err != nil {
		return err
	}
	if err = e.state.ListingPut(listing); err != nil {
		_ = e.state.TradePut(prevTrade)
		return err
	}
	err = e.payoutAll([]payout{
		{asset: listing.Token, to: trade.Buyer, amount: tokenToBuyer},
		{asset: listing.Token, to: listing.Seller, amount: tokenToSeller},
		{asset: listing.PayAsset, to: listing.Seller, amount: paymentToSeller},
		{asset: listing.PayAsset, to: trade.Buyer, amount: paymentToBuyer},
		{asset: listing.Token, to: listing.Seller, amount: supplyRefund},
	})
	if err != nil {
		_ = e.state.TradePut(prevTrade)
		_ = e.state.ListingPut(prevListing)
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	e.emit(NewTradeResolvedEvent(trade, tokenToBuyer, paymentToSeller))
	if cancelledNow {
		e.emit(NewListingCancelledEvent(listing))
	}
	return nil
}
