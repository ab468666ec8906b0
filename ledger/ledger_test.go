package ledger

import (
	"errors"
	"math/big"
	"testing"
)

func testAddr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestBookEscrowRoundTrip(t *testing.T) {
	book := NewBook()
	alice := testAddr(0x01)
	bob := testAddr(0x02)
	if err := book.Mint("usd", alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := book.TransferIn("USD", alice, big.NewInt(60)); err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if got := book.BalanceOf("USD", alice); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("alice balance = %s, want 40", got)
	}
	if got := book.VaultBalance("USD"); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("vault = %s, want 60", got)
	}

	if err := book.TransferOut("usd", bob, big.NewInt(60)); err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	if got := book.BalanceOf("USD", bob); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("bob balance = %s, want 60", got)
	}
	if got := book.VaultBalance("USD"); got.Sign() != 0 {
		t.Fatalf("vault not emptied: %s", got)
	}
}

func TestBookRejectsOverdraw(t *testing.T) {
	book := NewBook()
	alice := testAddr(0x01)
	if err := book.Mint("USD", alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := book.TransferIn("USD", alice, big.NewInt(11)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want insufficient balance", err)
	}
	// A failed transfer must not move anything.
	if got := book.BalanceOf("USD", alice); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("alice balance mutated: %s", got)
	}
	if err := book.TransferOut("USD", alice, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("empty vault payout err = %v, want insufficient balance", err)
	}
}

func TestNormalizeAsset(t *testing.T) {
	got, err := NormalizeAsset("  usdc ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "USDC" {
		t.Fatalf("normalized = %q, want USDC", got)
	}
	if _, err := NormalizeAsset("   "); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("err = %v, want unknown asset", err)
	}
}
