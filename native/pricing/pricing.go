package pricing

import (
	"errors"
	"math/big"
	"sync"
)

// Mode selects how a listing prices its units.
type Mode uint8

const (
	ModeFixed Mode = iota
	ModeDynamic
)

// Valid reports whether the mode value is supported.
func (m Mode) Valid() bool {
	switch m {
	case ModeFixed, ModeDynamic:
		return true
	default:
		return false
	}
}

var (
	ErrNoSource      = errors.New("pricing: no price source configured")
	ErrInvalidSample = errors.New("pricing: invalid price sample")
	ErrStaleSample   = errors.New("pricing: price sample too old")
	ErrZeroAmount    = errors.New("pricing: computed amount is zero or negative")
	ErrInvalidBps    = errors.New("pricing: discount bps out of range")
)

// Sample is one observation from an external market price source. SqrtRatioX96
// carries the square root of the payment-per-token ratio in Q64.96 fixed
// point, the representation used by concentrated-liquidity pools.
type Sample struct {
	SqrtRatioX96 *big.Int
	Timestamp    int64
	Valid        bool
}

// Source resolves a price sample for the given source reference (a pool or
// oracle identifier recorded on the listing).
type Source interface {
	Sample(ref string) (Sample, error)
}

// StaticSource is a fixed Source backed by a map, used in tests and tooling.
type StaticSource struct {
	mu      sync.RWMutex
	samples map[string]Sample
}

func NewStaticSource() *StaticSource {
	return &StaticSource{samples: make(map[string]Sample)}
}

// Set stores the sample returned for ref.
func (s *StaticSource) Set(ref string, sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[ref] = sample
}

// Sample implements the Source interface.
func (s *StaticSource) Sample(ref string) (Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.samples[ref]
	if !ok {
		return Sample{}, ErrInvalidSample
	}
	return sample, nil
}
