package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

var (
	errNilState  = errors.New("escrow engine: state not configured")
	errNilAssets = errors.New("escrow engine: asset ledger not configured")
)

// Assets moves funds between holders. The token bank satisfies it.
type Assets interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// CreateParams describes a new scope.
type CreateParams struct {
	ScopeID    string
	Token      string
	PayoutCap  *big.Int
	Deadline   int64
	EntryFee   *big.Int
	AllowTopUp bool
}

// Engine owns the per-scope escrow ledger. Privilege checks are the caller's
// responsibility: consumers gate Create, RefundAll and Finalize behind their
// own admin role.
type Engine struct {
	namespace             string
	state                 state.Writer
	assets                Assets
	emitter               events.Emitter
	nowFn                 func() int64
	blockPayoutOnFinalize bool
}

// NewEngine creates an escrow engine with a no-op emitter. The namespace
// separates the ledgers of different consumers sharing one store.
func NewEngine(namespace string) *Engine {
	return &Engine{
		namespace: namespace,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(s state.Writer) { e.state = s }

// SetAssets configures the asset ledger used for custody transfers.
func (e *Engine) SetAssets(a Assets) { e.assets = a }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetBlockPayoutOnFinalize makes targeted withdrawals fail on finalized scopes.
func (e *Engine) SetBlockPayoutOnFinalize(block bool) { e.blockPayoutOnFinalize = block }

// VaultAddress returns the module account that custodies escrowed token.
func (e *Engine) VaultAddress(token string) [20]byte {
	return crypto.ModuleAccount("escrow", e.namespace, token)
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) accountKey(scope string) []byte {
	return []byte(e.namespace + "/escrow/account/" + scope)
}

func (e *Engine) load(scope string) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	id, err := NormalizeScope(scope)
	if err != nil {
		return nil, err
	}
	var stored storedAccount
	ok, err := e.state.KVGet(e.accountKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("escrow: %w: scope %q", coreerrors.ErrNotFound, id)
	}
	return stored.toAccount(), nil
}

func (e *Engine) store(a *Account) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(e.accountKey(a.ScopeID), newStoredAccount(a))
}

func (e *Engine) transfer(token string, from, to [20]byte, amount *big.Int) error {
	if e.assets == nil {
		return errNilAssets
	}
	return e.assets.Transfer(token, from, to, amount)
}

func positive(amount *big.Int, what string) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("escrow: %w: %s must be positive", coreerrors.ErrInvalidArgument, what)
	}
	return nil
}

// Create registers a new scope. It fails with AlreadyExists when the scope is
// already known. A zero payout cap disables targeted withdrawals, leaving
// only per-entry returns and refunds; payouts apply the same rule through
// Limits. A nil cap is stored as zero.
func (e *Engine) Create(p CreateParams) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	id, err := NormalizeScope(p.ScopeID)
	if err != nil {
		return nil, err
	}
	if p.Token == "" {
		return nil, fmt.Errorf("escrow: %w: token required", coreerrors.ErrInvalidArgument)
	}
	if p.PayoutCap != nil && p.PayoutCap.Sign() < 0 {
		return nil, fmt.Errorf("escrow: %w: payout cap must not be negative", coreerrors.ErrInvalidArgument)
	}
	if p.Deadline < 0 {
		return nil, fmt.Errorf("escrow: %w: deadline must not be negative", coreerrors.ErrInvalidArgument)
	}
	if p.EntryFee != nil && p.EntryFee.Sign() < 0 {
		return nil, fmt.Errorf("escrow: %w: entry fee must not be negative", coreerrors.ErrInvalidArgument)
	}
	exists, err := e.state.KVHas(e.accountKey(id))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("escrow: %w: scope %q", coreerrors.ErrAlreadyExists, id)
	}
	payoutCap := big.NewInt(0)
	if p.PayoutCap != nil {
		payoutCap.Set(p.PayoutCap)
	}
	acc := &Account{
		ScopeID:        id,
		Token:          p.Token,
		TotalDeposited: big.NewInt(0),
		PayoutCap:      payoutCap,
		EntryFee:       cloneBigInt(p.EntryFee),
		Deadline:       p.Deadline,
		AllowTopUp:     p.AllowTopUp,
		CreatedAt:      e.now(),
	}
	if err := e.store(acc); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(acc))
	return acc.Clone(), nil
}

// Get returns a copy of the scope's account.
func (e *Engine) Get(scope string) (*Account, error) {
	return e.load(scope)
}

// Exists reports whether the scope has been created.
func (e *Engine) Exists(scope string) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	id, err := NormalizeScope(scope)
	if err != nil {
		return false, err
	}
	return e.state.KVHas(e.accountKey(id))
}

// Deposit moves amount from principal into the scope's custody. When the
// scope has an entry fee, a single-entry scope takes exactly the fee and a
// top-up scope takes whole multiples of it.
func (e *Engine) Deposit(scope string, principal [20]byte, amount *big.Int) (*Account, error) {
	if err := positive(amount, "deposit"); err != nil {
		return nil, err
	}
	acc, err := e.load(scope)
	if err != nil {
		return nil, err
	}
	if acc.Finalized {
		return nil, fmt.Errorf("escrow: %w: scope %q", coreerrors.ErrFinalized, acc.ScopeID)
	}
	if _, ok := acc.Entry(principal); ok && !acc.AllowTopUp {
		return nil, fmt.Errorf("escrow: %w: entry for %s", coreerrors.ErrAlreadyExists, crypto.FormatPrincipal(principal))
	}
	if err := acc.checkEntryFee(amount); err != nil {
		return nil, err
	}
	if err := e.transfer(acc.Token, principal, e.VaultAddress(acc.Token), amount); err != nil {
		return nil, err
	}
	acc.credit(principal, amount)
	if err := e.store(acc); err != nil {
		return nil, err
	}
	e.emit(NewDepositedEvent(acc, principal, amount))
	return acc, nil
}

// Available returns the funds currently held for the scope.
func (e *Engine) Available(scope string) (*big.Int, error) {
	acc, err := e.load(scope)
	if err != nil {
		return nil, err
	}
	return acc.TotalDeposited, nil
}

// WithdrawTargeted pays amount from the scope to recipient, debiting the
// entries pro-rata.
func (e *Engine) WithdrawTargeted(scope string, recipient [20]byte, amount *big.Int) (*Account, error) {
	if err := positive(amount, "withdrawal"); err != nil {
		return nil, err
	}
	acc, err := e.load(scope)
	if err != nil {
		return nil, err
	}
	if e.blockPayoutOnFinalize && acc.Finalized {
		return nil, fmt.Errorf("escrow: %w: scope %q", coreerrors.ErrFinalized, acc.ScopeID)
	}
	if amount.Cmp(acc.PayoutCap) > 0 {
		return nil, fmt.Errorf("escrow: %w: %s above cap %s", coreerrors.ErrCapExceeded, amount, acc.PayoutCap)
	}
	if amount.Cmp(acc.TotalDeposited) > 0 {
		return nil, fmt.Errorf("escrow: %w: %s above available %s", coreerrors.ErrInsufficientFunds, amount, acc.TotalDeposited)
	}
	if acc.Deadline > 0 && e.now() > acc.Deadline {
		return nil, fmt.Errorf("escrow: %w: scope %q closed at %d", coreerrors.ErrDeadlineExceeded, acc.ScopeID, acc.Deadline)
	}
	if err := e.transfer(acc.Token, e.VaultAddress(acc.Token), recipient, amount); err != nil {
		return nil, err
	}
	acc.debitProRata(amount)
	if err := e.store(acc); err != nil {
		return nil, err
	}
	e.emit(NewWithdrawnEvent(acc, recipient, amount))
	return acc, nil
}

// WithdrawEntry returns amount of principal's own contribution to them.
func (e *Engine) WithdrawEntry(scope string, principal [20]byte, amount *big.Int) (*Account, error) {
	if err := positive(amount, "withdrawal"); err != nil {
		return nil, err
	}
	acc, err := e.load(scope)
	if err != nil {
		return nil, err
	}
	idx, ok := acc.search(principal)
	if !ok {
		return nil, fmt.Errorf("escrow: %w: no entry for %s", coreerrors.ErrNotFound, crypto.FormatPrincipal(principal))
	}
	if amount.Cmp(acc.Entries[idx].Amount) > 0 {
		return nil, fmt.Errorf("escrow: %w: entry holds %s", coreerrors.ErrInsufficientFunds, acc.Entries[idx].Amount)
	}
	if err := e.transfer(acc.Token, e.VaultAddress(acc.Token), principal, amount); err != nil {
		return nil, err
	}
	left := new(big.Int).Sub(acc.Entries[idx].Amount, amount)
	if left.Sign() == 0 {
		acc.Entries = append(acc.Entries[:idx], acc.Entries[idx+1:]...)
	} else {
		acc.Entries[idx].Amount = left
	}
	acc.TotalDeposited = new(big.Int).Sub(acc.TotalDeposited, amount)
	if err := e.store(acc); err != nil {
		return nil, err
	}
	e.emit(NewWithdrawnEvent(acc, principal, amount))
	return acc, nil
}

// RefundAll returns every remaining entry to its principal, empties the scope
// and finalizes it. A scope without funded entries fails with NotFound.
func (e *Engine) RefundAll(scope string) (*Account, error) {
	acc, err := e.load(scope)
	if err != nil {
		return nil, err
	}
	refunds := make([]Entry, 0, len(acc.Entries))
	for _, entry := range acc.Entries {
		if entry.Amount != nil && entry.Amount.Sign() > 0 {
			refunds = append(refunds, entry)
		}
	}
	if len(refunds) == 0 {
		return nil, fmt.Errorf("escrow: %w: no entries in scope %q", coreerrors.ErrNotFound, acc.ScopeID)
	}
	vault := e.VaultAddress(acc.Token)
	for _, entry := range refunds {
		if err := e.transfer(acc.Token, vault, entry.Principal, entry.Amount); err != nil {
			return nil, err
		}
	}
	acc.Entries = nil
	acc.TotalDeposited = big.NewInt(0)
	wasFinal := acc.Finalized
	acc.Finalized = true
	if err := e.store(acc); err != nil {
		return nil, err
	}
	for _, entry := range refunds {
		e.emit(NewRefundedEvent(acc, entry.Principal, entry.Amount))
	}
	if !wasFinal {
		e.emit(NewFinalizedEvent(acc))
	}
	return acc, nil
}

// Finalize closes the scope to new deposits. It is one-way.
func (e *Engine) Finalize(scope string) (*Account, error) {
	acc, err := e.load(scope)
	if err != nil {
		return nil, err
	}
	if acc.Finalized {
		return nil, fmt.Errorf("escrow: %w: scope %q", coreerrors.ErrFinalized, acc.ScopeID)
	}
	acc.Finalized = true
	if err := e.store(acc); err != nil {
		return nil, err
	}
	e.emit(NewFinalizedEvent(acc))
	return acc, nil
}

// Limits reports the funds available to a targeted withdrawal, the scope's
// payout cap and its deadline.
func (e *Engine) Limits(scope string) (available, localCap *big.Int, deadline int64, err error) {
	acc, err := e.load(scope)
	if err != nil {
		return nil, nil, 0, err
	}
	return acc.TotalDeposited, acc.PayoutCap, acc.Deadline, nil
}

// Release performs the targeted withdrawal used by attested payouts.
func (e *Engine) Release(scope string, recipient [20]byte, amount *big.Int) error {
	_, err := e.WithdrawTargeted(scope, recipient, amount)
	return err
}
