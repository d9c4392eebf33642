package escrow

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"strings"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
)

// Entry is one principal's contribution to a scope.
type Entry struct {
	Principal [20]byte
	Amount    *big.Int
}

// Account is the per-scope escrow record. Entries are unique by principal and
// kept sorted so iteration is deterministic; TotalDeposited always equals the
// sum of entry amounts.
type Account struct {
	ScopeID        string
	Token          string
	Entries        []Entry
	TotalDeposited *big.Int
	PayoutCap      *big.Int
	EntryFee       *big.Int
	// Deadline is the unix time after which targeted withdrawals fail. Zero
	// means no deadline.
	Deadline   int64
	Finalized  bool
	AllowTopUp bool
	CreatedAt  int64
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Entries = make([]Entry, len(a.Entries))
	for i, entry := range a.Entries {
		clone.Entries[i] = Entry{Principal: entry.Principal, Amount: cloneBigInt(entry.Amount)}
	}
	clone.TotalDeposited = cloneBigInt(a.TotalDeposited)
	clone.PayoutCap = cloneBigInt(a.PayoutCap)
	clone.EntryFee = cloneBigInt(a.EntryFee)
	return &clone
}

// Entry returns the contribution of principal, if any.
func (a *Account) Entry(principal [20]byte) (Entry, bool) {
	idx, ok := a.search(principal)
	if !ok {
		return Entry{}, false
	}
	return a.Entries[idx], true
}

func (a *Account) search(principal [20]byte) (int, bool) {
	idx := sort.Search(len(a.Entries), func(i int) bool {
		return bytes.Compare(a.Entries[i].Principal[:], principal[:]) >= 0
	})
	return idx, idx < len(a.Entries) && a.Entries[idx].Principal == principal
}

// credit adds amount to principal's entry, inserting it in order when new.
func (a *Account) credit(principal [20]byte, amount *big.Int) {
	idx, ok := a.search(principal)
	if ok {
		a.Entries[idx].Amount = new(big.Int).Add(a.Entries[idx].Amount, amount)
	} else {
		a.Entries = append(a.Entries, Entry{})
		copy(a.Entries[idx+1:], a.Entries[idx:])
		a.Entries[idx] = Entry{Principal: principal, Amount: new(big.Int).Set(amount)}
	}
	a.TotalDeposited = new(big.Int).Add(a.TotalDeposited, amount)
}

// debitProRata removes amount from the entries proportionally to their size,
// walking principals in order. Integer rounding leftovers are taken greedily
// from the first entries that still hold funds. The caller ensures amount does
// not exceed TotalDeposited.
func (a *Account) debitProRata(amount *big.Int) {
	total := a.TotalDeposited
	if total.Sign() == 0 || amount.Sign() == 0 {
		return
	}
	remaining := new(big.Int).Set(amount)
	debits := make([]*big.Int, len(a.Entries))
	for i, entry := range a.Entries {
		share := new(big.Int).Mul(entry.Amount, amount)
		share.Quo(share, total)
		debits[i] = share
		remaining.Sub(remaining, share)
	}
	for i := 0; remaining.Sign() > 0 && i < len(a.Entries); i++ {
		headroom := new(big.Int).Sub(a.Entries[i].Amount, debits[i])
		if headroom.Sign() <= 0 {
			continue
		}
		take := minBig(headroom, remaining)
		debits[i].Add(debits[i], take)
		remaining.Sub(remaining, take)
	}
	for i := range a.Entries {
		a.Entries[i].Amount = new(big.Int).Sub(a.Entries[i].Amount, debits[i])
	}
	a.TotalDeposited = new(big.Int).Sub(total, amount)
}

// checkEntryFee rejects deposits that do not match the scope's entry fee.
func (a *Account) checkEntryFee(amount *big.Int) error {
	if a.EntryFee == nil || a.EntryFee.Sign() == 0 {
		return nil
	}
	if !a.AllowTopUp {
		if amount.Cmp(a.EntryFee) != 0 {
			return fmt.Errorf("escrow: %w: deposit %s must equal entry fee %s", coreerrors.ErrInvalidArgument, amount, a.EntryFee)
		}
		return nil
	}
	if new(big.Int).Rem(amount, a.EntryFee).Sign() != 0 {
		return fmt.Errorf("escrow: %w: deposit %s is not a multiple of entry fee %s", coreerrors.ErrInvalidArgument, amount, a.EntryFee)
	}
	return nil
}

// Sum recomputes the total of all entries.
func (a *Account) Sum() *big.Int {
	sum := big.NewInt(0)
	for _, entry := range a.Entries {
		if entry.Amount != nil {
			sum.Add(sum, entry.Amount)
		}
	}
	return sum
}

// NormalizeScope trims scope identifiers and rejects empty ones.
func NormalizeScope(scope string) (string, error) {
	trimmed := strings.TrimSpace(scope)
	if trimmed == "" {
		return "", fmt.Errorf("escrow: %w: scope must not be empty", coreerrors.ErrInvalidArgument)
	}
	return trimmed, nil
}

type storedEntry struct {
	Principal [20]byte
	Amount    *big.Int
}

type storedAccount struct {
	ScopeID        string
	Token          string
	Entries        []storedEntry
	TotalDeposited *big.Int
	PayoutCap      *big.Int
	EntryFee       *big.Int
	Deadline       uint64
	Finalized      bool
	AllowTopUp     bool
	CreatedAt      uint64
}

func newStoredAccount(a *Account) *storedAccount {
	entries := make([]storedEntry, len(a.Entries))
	for i, entry := range a.Entries {
		entries[i] = storedEntry{Principal: entry.Principal, Amount: cloneBigInt(entry.Amount)}
	}
	return &storedAccount{
		ScopeID:        a.ScopeID,
		Token:          a.Token,
		Entries:        entries,
		TotalDeposited: cloneBigInt(a.TotalDeposited),
		PayoutCap:      cloneBigInt(a.PayoutCap),
		EntryFee:       cloneBigInt(a.EntryFee),
		Deadline:       uint64(a.Deadline),
		Finalized:      a.Finalized,
		AllowTopUp:     a.AllowTopUp,
		CreatedAt:      uint64(a.CreatedAt),
	}
}

func (s *storedAccount) toAccount() *Account {
	entries := make([]Entry, len(s.Entries))
	for i, entry := range s.Entries {
		entries[i] = Entry{Principal: entry.Principal, Amount: cloneBigInt(entry.Amount)}
	}
	return &Account{
		ScopeID:        s.ScopeID,
		Token:          s.Token,
		Entries:        entries,
		TotalDeposited: cloneBigInt(s.TotalDeposited),
		PayoutCap:      cloneBigInt(s.PayoutCap),
		EntryFee:       cloneBigInt(s.EntryFee),
		Deadline:       int64(s.Deadline),
		Finalized:      s.Finalized,
		AllowTopUp:     s.AllowTopUp,
		CreatedAt:      int64(s.CreatedAt),
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
