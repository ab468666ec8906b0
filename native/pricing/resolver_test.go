package pricing

import (
	"errors"
	"math/big"
	"testing"
)

func TestQuoteFixed(t *testing.T) {
	r := NewResolver(nil)
	got, err := r.Quote(ModeFixed, big.NewInt(3), 0, "", big.NewInt(7))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if got.Cmp(big.NewInt(21)) != 0 {
		t.Fatalf("amount = %s, want 21", got)
	}
	if _, err := r.Quote(ModeFixed, big.NewInt(0), 0, "", big.NewInt(7)); err == nil {
		t.Fatal("zero unit price accepted")
	}
	if _, err := r.Quote(ModeFixed, big.NewInt(3), 0, "", big.NewInt(0)); err == nil {
		t.Fatal("zero quantity accepted")
	}
}

func TestQuoteDynamicDiscountFloor(t *testing.T) {
	source := NewStaticSource()
	// sqrt ratio 2 * 2^96 -> linear unit value 4.
	source.Set("pool", Sample{SqrtRatioX96: new(big.Int).Lsh(big.NewInt(2), 96), Timestamp: 100, Valid: true})
	r := NewResolver(source)

	// floor(4 * 7 * (10000-333)/10000) = floor(27.0676) = 27
	got, err := r.Quote(ModeDynamic, nil, 333, "pool", big.NewInt(7))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	want := big.NewInt(28 * (10_000 - 333) / 10_000)
	if got.Cmp(want) != 0 {
		t.Fatalf("amount = %s, want %s", got, want)
	}

	got, err = r.Quote(ModeDynamic, nil, 0, "pool", big.NewInt(7))
	if err != nil {
		t.Fatalf("quote without discount: %v", err)
	}
	if got.Cmp(big.NewInt(28)) != 0 {
		t.Fatalf("amount = %s, want 28", got)
	}
}

func TestQuoteDynamicFullDiscount(t *testing.T) {
	source := NewStaticSource()
	source.Set("pool", Sample{SqrtRatioX96: new(big.Int).Lsh(big.NewInt(2), 96), Timestamp: 100, Valid: true})
	r := NewResolver(source)
	if _, err := r.Quote(ModeDynamic, nil, 10_000, "pool", big.NewInt(7)); !errors.Is(err, ErrInvalidBps) {
		t.Fatalf("err = %v, want invalid bps", err)
	}
}

func TestQuoteDynamicSampleValidation(t *testing.T) {
	source := NewStaticSource()
	r := NewResolver(source)
	if _, err := r.Quote(ModeDynamic, nil, 0, "missing", big.NewInt(1)); !errors.Is(err, ErrInvalidSample) {
		t.Fatalf("missing ref err = %v, want invalid sample", err)
	}
	source.Set("pool", Sample{SqrtRatioX96: big.NewInt(100), Timestamp: 100, Valid: false})
	if _, err := r.Quote(ModeDynamic, nil, 0, "pool", big.NewInt(1)); !errors.Is(err, ErrInvalidSample) {
		t.Fatalf("invalid sample err = %v, want invalid sample", err)
	}
	source.Set("pool", Sample{SqrtRatioX96: big.NewInt(-5), Timestamp: 100, Valid: true})
	if _, err := r.Quote(ModeDynamic, nil, 0, "pool", big.NewInt(1)); !errors.Is(err, ErrInvalidSample) {
		t.Fatalf("negative sample err = %v, want invalid sample", err)
	}
}

func TestQuoteDynamicStaleness(t *testing.T) {
	source := NewStaticSource()
	source.Set("pool", Sample{SqrtRatioX96: new(big.Int).Lsh(big.NewInt(2), 96), Timestamp: 100, Valid: true})
	r := NewResolver(source)
	r.SetMaxSampleAge(60)
	r.SetNowFunc(func() int64 { return 200 })
	if _, err := r.Quote(ModeDynamic, nil, 0, "pool", big.NewInt(1)); !errors.Is(err, ErrStaleSample) {
		t.Fatalf("err = %v, want stale sample", err)
	}
	r.SetNowFunc(func() int64 { return 150 })
	if _, err := r.Quote(ModeDynamic, nil, 0, "pool", big.NewInt(1)); err != nil {
		t.Fatalf("fresh sample rejected: %v", err)
	}
}

func TestQuoteDynamicTinyRatioFloorsToZero(t *testing.T) {
	source := NewStaticSource()
	// sqrt ratio 1 -> squared value floors to zero after the Q192 shift.
	source.Set("pool", Sample{SqrtRatioX96: big.NewInt(1), Timestamp: 100, Valid: true})
	r := NewResolver(source)
	if _, err := r.Quote(ModeDynamic, nil, 0, "pool", big.NewInt(10)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("err = %v, want zero amount", err)
	}
}

func TestValueFromSqrtRatioWideRatio(t *testing.T) {
	// A ratio wider than 128 bits takes the truncating path: the low 32 bits
	// are dropped before squaring, so a value with only low bits set floors
	// to a smaller result than the exact square.
	wide := new(big.Int).Lsh(big.NewInt(5), 130)
	got, err := ValueFromSqrtRatioX96(wide, big.NewInt(1))
	if err != nil {
		t.Fatalf("wide ratio: %v", err)
	}
	// (5<<130 >> 32)^2 >> 128 == 25 << (2*98-128) == 25 << 68
	want := new(big.Int).Lsh(big.NewInt(25), 68)
	if got.Cmp(want) != 0 {
		t.Fatalf("value = %s, want %s", got, want)
	}

	huge := new(big.Int).Lsh(big.NewInt(1), 250)
	if _, err := ValueFromSqrtRatioX96(huge, big.NewInt(1)); err == nil {
		t.Fatal("unrepresentable ratio accepted")
	}
}
