package token

import (
	"fmt"
	"math/big"
	"sort"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
)

// Bank routes symbol-addressed transfers to the matching ledger. Escrow,
// multisig and reward modules depend on it through small interfaces.
type Bank struct {
	ledgers map[string]*Ledger
}

// NewBank indexes the supplied ledgers by symbol.
func NewBank(ledgers ...*Ledger) *Bank {
	b := &Bank{ledgers: make(map[string]*Ledger, len(ledgers))}
	for _, l := range ledgers {
		if l == nil {
			continue
		}
		b.ledgers[l.Symbol()] = l
	}
	return b
}

// Bind points every ledger at the same state, emitter and clock.
func (b *Bank) Bind(s state.Writer, emitter events.Emitter, now func() int64) {
	for _, l := range b.ledgers {
		l.SetState(s)
		l.SetEmitter(emitter)
		l.SetNowFunc(now)
	}
}

// Symbols lists the registered symbols in sorted order.
func (b *Bank) Symbols() []string {
	out := make([]string, 0, len(b.ledgers))
	for sym := range b.ledgers {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Ledger returns the ledger for symbol.
func (b *Bank) Ledger(symbol string) (*Ledger, error) {
	l, ok := b.ledgers[NormalizeSymbol(symbol)]
	if !ok {
		return nil, fmt.Errorf("token: %w: unknown symbol %q", coreerrors.ErrNotFound, symbol)
	}
	return l, nil
}

// Transfer moves amount of symbol between holders.
func (b *Bank) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	l, err := b.Ledger(symbol)
	if err != nil {
		return err
	}
	return l.Transfer(from, to, amount)
}

// Balance returns the holder's balance of symbol.
func (b *Bank) Balance(symbol string, addr [20]byte) (*big.Int, error) {
	l, err := b.Ledger(symbol)
	if err != nil {
		return nil, err
	}
	return l.Balance(addr)
}
