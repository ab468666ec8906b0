// Package ledger adapts external asset ledgers to the narrow transfer surface
// the market engine needs. Escrowed value lives in a per-adapter vault
// account; TransferIn moves funds from a caller into the vault and
// TransferOut releases vault funds to a recipient. Either the whole transfer
// applies or nothing does.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

var (
	ErrUnknownAsset        = errors.New("ledger: unknown asset")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
)

// Adapter is the asset movement surface consumed by the market engine. Both
// directions are all-or-nothing: an error means no funds moved.
type Adapter interface {
	TransferIn(asset string, from [20]byte, amount *big.Int) error
	TransferOut(asset string, to [20]byte, amount *big.Int) error
	BalanceOf(asset string, addr [20]byte) *big.Int
	VaultBalance(asset string) *big.Int
}

// NormalizeAsset canonicalises an asset symbol to trimmed uppercase form.
func NormalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty symbol", ErrUnknownAsset)
	}
	return trimmed, nil
}

// Book is an in-memory Adapter implementation holding one balance table per
// asset plus the vault balance. It backs tests and single-process
// deployments; production ledgers implement Adapter over their own stores.
type Book struct {
	mu       sync.Mutex
	balances map[string]map[[20]byte]*big.Int
	vault    map[string]*big.Int
}

func NewBook() *Book {
	return &Book{
		balances: make(map[string]map[[20]byte]*big.Int),
		vault:    make(map[string]*big.Int),
	}
}

// Mint credits an account outside any escrow flow. Used to seed balances.
func (b *Book) Mint(asset string, addr [20]byte, amount *big.Int) error {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("ledger: mint amount must be positive")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(normalized, addr, amount)
	return nil
}

func (b *Book) TransferIn(asset string, from [20]byte, amount *big.Int) error {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	balance := b.balanceLocked(normalized, from)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	b.balances[normalized][from] = new(big.Int).Sub(balance, amount)
	b.vault[normalized] = new(big.Int).Add(b.vaultLocked(normalized), amount)
	return nil
}

func (b *Book) TransferOut(asset string, to [20]byte, amount *big.Int) error {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	vault := b.vaultLocked(normalized)
	if vault.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	b.vault[normalized] = new(big.Int).Sub(vault, amount)
	b.credit(normalized, to, amount)
	return nil
}

func (b *Book) BalanceOf(asset string, addr [20]byte) *big.Int {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return big.NewInt(0)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balanceLocked(normalized, addr))
}

func (b *Book) VaultBalance(asset string) *big.Int {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return big.NewInt(0)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.vaultLocked(normalized))
}

func (b *Book) credit(asset string, addr [20]byte, amount *big.Int) {
	book, ok := b.balances[asset]
	if !ok {
		book = make(map[[20]byte]*big.Int)
		b.balances[asset] = book
	}
	current, ok := book[addr]
	if !ok {
		current = big.NewInt(0)
	}
	book[addr] = new(big.Int).Add(current, amount)
}

func (b *Book) balanceLocked(asset string, addr [20]byte) *big.Int {
	book, ok := b.balances[asset]
	if !ok {
		return big.NewInt(0)
	}
	balance, ok := book[addr]
	if !ok {
		return big.NewInt(0)
	}
	return balance
}

func (b *Book) vaultLocked(asset string) *big.Int {
	balance, ok := b.vault[asset]
	if !ok {
		return big.NewInt(0)
	}
	return balance
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ledger: transfer amount must be non-negative")
	}
	return nil
}
