package pricing

import (
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"
)

const bpsDenominator = 10_000

// Resolver computes the total payment owed for a quantity of listed units.
// The result is a pure function of its inputs at call time; callers persist
// it so later oracle movement cannot alter an already-escrowed trade.
type Resolver struct {
	source Source
	maxAge int64
	nowFn  func() int64
}

// NewResolver constructs a resolver reading dynamic samples from source. A
// nil source restricts the resolver to fixed-mode quotes.
func NewResolver(source Source) *Resolver {
	return &Resolver{
		source: source,
		nowFn:  func() int64 { return time.Now().Unix() },
	}
}

// SetMaxSampleAge bounds how old a dynamic sample may be, in seconds. Zero
// disables the staleness check.
func (r *Resolver) SetMaxSampleAge(secs int64) { r.maxAge = secs }

// SetNowFunc overrides the time source, primarily used in tests.
func (r *Resolver) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// Quote returns the total payment for quantity units. Fixed mode multiplies
// the listing's unit price; dynamic mode reads one sample from the configured
// source, recovers the linear value and applies the listing discount. All
// rounding floors toward zero.
func (r *Resolver) Quote(mode Mode, unitPrice *big.Int, discountBps uint32, sourceRef string, quantity *big.Int) (*big.Int, error) {
	if quantity == nil || quantity.Sign() <= 0 {
		return nil, fmt.Errorf("pricing: quantity must be positive")
	}
	switch mode {
	case ModeFixed:
		if unitPrice == nil || unitPrice.Sign() <= 0 {
			return nil, fmt.Errorf("pricing: unit price must be positive")
		}
		return new(big.Int).Mul(unitPrice, quantity), nil
	case ModeDynamic:
		if r == nil || r.source == nil {
			return nil, ErrNoSource
		}
		if discountBps >= bpsDenominator {
			return nil, ErrInvalidBps
		}
		sample, err := r.source.Sample(sourceRef)
		if err != nil {
			return nil, err
		}
		if !sample.Valid || sample.SqrtRatioX96 == nil || sample.SqrtRatioX96.Sign() <= 0 {
			return nil, ErrInvalidSample
		}
		if r.maxAge > 0 {
			now := r.nowFn()
			if sample.Timestamp <= 0 || now-sample.Timestamp > r.maxAge {
				return nil, ErrStaleSample
			}
		}
		value, err := ValueFromSqrtRatioX96(sample.SqrtRatioX96, quantity)
		if err != nil {
			return nil, err
		}
		discounted := applyDiscount(value, discountBps)
		if discounted.Sign() <= 0 {
			return nil, ErrZeroAmount
		}
		return discounted, nil
	default:
		return nil, fmt.Errorf("pricing: unsupported mode %d", mode)
	}
}

// ValueFromSqrtRatioX96 recovers the linear payment value for quantity units
// from a Q64.96 square-root price ratio. The ratio is squared in a 256-bit
// intermediate before the Q192 shift; ratios wider than 128 bits lose their
// low 32 bits of precision rather than overflowing. Result floors toward
// zero.
func ValueFromSqrtRatioX96(sqrtRatio, quantity *big.Int) (*big.Int, error) {
	sq, overflow := uint256.FromBig(sqrtRatio)
	if overflow {
		return nil, fmt.Errorf("%w: sqrt ratio exceeds 256 bits", ErrInvalidSample)
	}
	var ratio uint256.Int
	if _, over := ratio.MulOverflow(sq, sq); over {
		truncated := new(uint256.Int).Rsh(sq, 32)
		if _, over := ratio.MulOverflow(truncated, truncated); over {
			return nil, fmt.Errorf("%w: sqrt ratio exceeds representable range", ErrInvalidSample)
		}
		value := new(big.Int).Mul(ratio.ToBig(), quantity)
		return value.Rsh(value, 128), nil
	}
	value := new(big.Int).Mul(ratio.ToBig(), quantity)
	return value.Rsh(value, 192), nil
}

// applyDiscount keeps (10000-bps)/10000 of value, flooring the result. The
// floor lands in the buyer's favour at the margin.
func applyDiscount(value *big.Int, discountBps uint32) *big.Int {
	if discountBps == 0 {
		return value
	}
	keep := new(big.Int).Mul(value, new(big.Int).SetUint64(uint64(bpsDenominator-discountBps)))
	return keep.Div(keep, big.NewInt(bpsDenominator))
}
