package market

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"otcmarket/core/events"
	"otcmarket/core/types"
	"otcmarket/ledger"
	nativecommon "otcmarket/native/common"
	"otcmarket/native/pricing"
)

var (
	errNilState  = errors.New("market engine: state not configured")
	errNilLedger = errors.New("market engine: ledger not configured")
	errNilPricer = errors.New("market engine: price resolver not configured")
	errNilPolicy = errors.New("market engine: policy not configured")
)

const moduleName = "market"

// engineState is the narrow persistence surface the engine depends on.
// Identifiers are minted by the state so they stay strictly increasing across
// restarts.
type engineState interface {
	ListingPut(*Listing) error
	ListingGet(id uint64) (*Listing, bool)
	NextListingID() (uint64, error)
	TradePut(*Trade) error
	TradeGet(id uint64) (*Trade, bool)
	NextTradeID() (uint64, error)
}

// MetricsRecorder receives one observation per public engine operation.
type MetricsRecorder interface {
	ObserveOperation(op, outcome string, seconds float64)
}

type entryKey struct {
	listing bool
	id      uint64
}

func listingKey(id uint64) entryKey { return entryKey{listing: true, id: id} }
func tradeKey(id uint64) entryKey   { return entryKey{id: id} }

// Engine implements the listing registry, trade registry and dispute
// resolver over injected state, ledger, pricing and policy collaborators.
// Operations touching an existing listing or trade hold an exclusive section
// over that entry for their whole duration; a transfer callback re-entering
// the engine against the same entry is rejected with ErrReentrancy.
type Engine struct {
	state   engineState
	ledger  ledger.Adapter
	pricer  *pricing.Resolver
	policy  *Policy
	emitter events.Emitter
	pauses  nativecommon.PauseView
	metrics MetricsRecorder
	nowFn   func() int64

	mu       sync.Mutex
	inflight map[entryKey]struct{}
}

// NewEngine creates a market engine with a no-op emitter. Callers configure
// the collaborators via the Set methods before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
		inflight: make(map[entryKey]struct{}),
	}
}

// SetState configures the state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the asset transfer adapter holding escrowed value.
func (e *Engine) SetLedger(adapter ledger.Adapter) { e.ledger = adapter }

// SetPricer configures the price resolver used at trade initiation.
func (e *Engine) SetPricer(pricer *pricing.Resolver) { e.pricer = pricer }

// SetPolicy configures the administrative policy view.
func (e *Engine) SetPolicy(policy *Policy) { e.policy = policy }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the administrative pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetMetrics configures an optional operation metrics sink.
func (e *Engine) SetMetrics(m MetricsRecorder) { e.metrics = m }

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) track(op string, start time.Time, err *error) {
	if e == nil || e.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil && *err != nil {
		outcome = "error"
	}
	e.metrics.ObserveOperation(op, outcome, time.Since(start).Seconds())
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if e.pricer == nil {
		return errNilPricer
	}
	if e.policy == nil {
		return errNilPolicy
	}
	return nil
}

// acquire marks the given entries in flight, rejecting the call when any of
// them is already being mutated.
func (e *Engine) acquire(keys ...entryKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, key := range keys {
		if _, busy := e.inflight[key]; busy {
			return ErrReentrancy
		}
	}
	for _, key := range keys {
		e.inflight[key] = struct{}{}
	}
	return nil
}

func (e *Engine) releaseEntries(keys ...entryKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, key := range keys {
		delete(e.inflight, key)
	}
}

// payout is one escrow disbursement leg.
type payout struct {
	asset  string
	to     [20]byte
	amount *big.Int
}

// payoutAll executes the disbursements in order. If a leg fails, every leg
// already paid is pulled back into the vault so the operation stays
// all-or-nothing.
func (e *Engine) payoutAll(items []payout) error {
	done := make([]payout, 0, len(items))
	for _, p := range items {
		if p.amount == nil || p.amount.Sign() == 0 {
			continue
		}
		if err := e.ledger.TransferOut(p.asset, p.to, p.amount); err != nil {
			for i := len(done) - 1; i >= 0; i-- {
				_ = e.ledger.TransferIn(done[i].asset, done[i].to, done[i].amount)
			}
			return err
		}
		done = append(done, p)
	}
	return nil
}

// CreateListing escrows totalAmount of token from the caller and records a
// new listing. The payment asset must be allow-listed at this moment; the
// commitment is not re-checked by later operations against the listing.
func (e *Engine) CreateListing(caller [20]byte, token string, totalAmount *big.Int, mode pricing.Mode, unitPrice *big.Int, discountBps uint32, payAsset, priceSource string) (id uint64, err error) {
	defer e.track("create_listing", time.Now(), &err)
	if err = e.ready(); err != nil {
		return 0, err
	}
	if err = nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	normalizedToken, err := ledger.NormalizeAsset(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	normalizedPay, err := ledger.NormalizeAsset(payAsset)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if totalAmount == nil || totalAmount.Sign() <= 0 {
		return 0, fmt.Errorf("%w: total amount must be positive", ErrInvalidInput)
	}
	if !mode.Valid() {
		return 0, fmt.Errorf("%w: unsupported pricing mode %d", ErrInvalidInput, mode)
	}
	if discountBps > 10_000 {
		return 0, fmt.Errorf("%w: discount bps out of range", ErrInvalidInput)
	}
	switch mode {
	case pricing.ModeFixed:
		if unitPrice == nil || unitPrice.Sign() <= 0 {
			return 0, fmt.Errorf("%w: fixed unit price must be positive", ErrInvalidInput)
		}
	case pricing.ModeDynamic:
		if priceSource == "" {
			return 0, fmt.Errorf("%w: dynamic listing requires a price source", ErrInvalidInput)
		}
	}
	if !e.policy.PaymentAssetAllowed(normalizedPay) {
		return 0, fmt.Errorf("%w: payment asset %s not allowed", ErrPolicyViolation, normalizedPay)
	}
	if err = e.ledger.TransferIn(normalizedToken, caller, totalAmount); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	// Minting after the escrow succeeds keeps the sequence gap-free: a failed
	// creation never consumes an id.
	id, err = e.state.NextListingID()
	if err != nil {
		_ = e.ledger.TransferOut(normalizedToken, caller, totalAmount)
		return 0, err
	}
	listing := &Listing{
		ID:          id,
		Seller:      caller,
		Token:       normalizedToken,
		TotalAmount: new(big.Int).Set(totalAmount),
		Remaining:   new(big.Int).Set(totalAmount),
		Mode:        mode,
		DiscountBps: discountBps,
		PayAsset:    normalizedPay,
		PriceSource: priceSource,
		CreatedAt:   e.now(),
		Status:      ListingOpen,
	}
	if unitPrice != nil {
		listing.UnitPrice = new(big.Int).Set(unitPrice)
	}
	if err = e.state.ListingPut(listing); err != nil {
		_ = e.ledger.TransferOut(normalizedToken, caller, totalAmount)
		return 0, err
	}
	e.emit(NewListingCreatedEvent(listing))
	return id, nil
}

// CancelListing refunds the remaining escrowed supply to the seller and
// closes the listing. Only the seller may cancel, and only while the listing
// is still Open with supply left.
func (e *Engine) CancelListing(caller [20]byte, listingID uint64) (err error) {
	defer e.track("cancel_listing", time.Now(), &err)
	if err = e.ready(); err != nil {
		return err
	}
	if err = nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	key := listingKey(listingID)
	if err = e.acquire(key); err != nil {
		return err
	}
	defer e.releaseEntries(key)
	listing, err := e.loadListing(listingID)
	if err != nil {
		return err
	}
	if caller != listing.Seller {
		return fmt.Errorf("%w: only the seller may cancel", ErrPolicyViolation)
	}
	if listing.Status != ListingOpen {
		return fmt.Errorf("%w: listing %d not open", ErrInvalidState, listingID)
	}
	if listing.Remaining.Sign() <= 0 {
		return fmt.Errorf("%w: listing %d has no remaining supply", ErrInvalidState, listingID)
	}
	refund := new(big.Int).Set(listing.Remaining)
	prev := listing.Clone()
	listing.Remaining = big.NewInt(0)
	listing.Status = ListingCancelled
	if err = e.state.ListingPut(listing); err != nil {
		return err
	}
	if err = e.ledger.TransferOut(listing.Token, listing.Seller, refund); err != nil {
		_ = e.state.ListingPut(prev)
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	e.emit(NewListingCancelledEvent(listing))
	return nil
}

// Listing returns a sanitized copy of the stored listing.
func (e *Engine) Listing(id uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok := e.state.ListingGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: listing %d", ErrNotFound, id)
	}
	return SanitizeListing(listing)
}

// Trade returns a sanitized copy of the stored trade.
func (e *Engine) Trade(id uint64) (*Trade, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	trade, ok := e.state.TradeGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: trade %d", ErrNotFound, id)
	}
	return SanitizeTrade(trade)
}

func (e *Engine) loadListing(id uint64) (*Listing, error) {
	listing, ok := e.state.ListingGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: listing %d", ErrNotFound, id)
	}
	return SanitizeListing(listing)
}

func (e *Engine) loadTrade(id uint64) (*Trade, error) {
	trade, ok := e.state.TradeGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: trade %d", ErrNotFound, id)
	}
	return SanitizeTrade(trade)
}
