package payout

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
)

var (
	errNilState  = errors.New("payout: state not configured")
	errNotWired  = errors.New("payout: engine dependencies not configured")
	errNilSource = errors.New("payout: funding source not configured")
)

// Source is the account a payout draws from: an escrow scope or a treasury.
type Source interface {
	// Limits reports the funds available to the scope, its own payout cap
	// and its deadline (zero for none). A nil cap means the source has no
	// per-scope ceiling; a zero cap admits no payout at all.
	Limits(scope string) (available, localCap *big.Int, deadline int64, err error)
	// Release transfers amount to recipient and debits the scope.
	Release(scope string, recipient [20]byte, amount *big.Int) error
}

// Authority answers role and pause questions. The role registry satisfies it.
type Authority interface {
	Require(role string, who [20]byte) error
	Guard() error
}

// Nonces is the replay ledger consulted before and consumed after a payout.
type Nonces interface {
	Check(scope string, n uint64) error
	Consume(scope string, n uint64) error
}

// Receipt is the stored record of an executed payout.
type Receipt struct {
	Scope      string
	Recipient  [20]byte
	Amount     *big.Int
	Nonce      uint64
	Attestor   [20]byte
	ExecutedAt uint64
}

// Engine executes attested payouts against a Source.
type Engine struct {
	namespace string
	state     state.Writer
	authority Authority
	nonces    Nonces
	source    Source
	globalCap *big.Int
	emitter   events.Emitter
	nowFn     func() int64
}

// NewEngine creates a payout engine. The namespace doubles as the signing
// domain for attestor signatures.
func NewEngine(namespace string) *Engine {
	return &Engine{
		namespace: namespace,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(s state.Writer) { e.state = s }

// SetAuthority configures the attestor registry and pause flag.
func (e *Engine) SetAuthority(a Authority) { e.authority = a }

// SetNonces configures the replay ledger.
func (e *Engine) SetNonces(n Nonces) { e.nonces = n }

// SetSource configures where payouts draw funds from.
func (e *Engine) SetSource(s Source) { e.source = s }

// SetGlobalCap bounds every single payout. Nil or zero disables the bound.
func (e *Engine) SetGlobalCap(limit *big.Int) {
	if limit == nil {
		e.globalCap = nil
		return
	}
	e.globalCap = new(big.Int).Set(limit)
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deadline checks.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Domain returns the signing domain.
func (e *Engine) Domain() string { return e.namespace }

func (e *Engine) receiptKey(scope string, nonce uint64) []byte {
	return []byte(e.namespace + "/payout/receipt/" + scope + "/" + strconv.FormatUint(nonce, 10))
}

func (e *Engine) totalKey() []byte { return []byte(e.namespace + "/payout/total") }

func (e *Engine) scopeTotalKey(scope string) []byte {
	return []byte(e.namespace + "/payout/scope-total/" + scope)
}

// effectiveDeadline picks the earlier of the two non-zero deadlines.
func effectiveDeadline(authDeadline, scopeDeadline int64) int64 {
	switch {
	case authDeadline > 0 && scopeDeadline > 0:
		if authDeadline < scopeDeadline {
			return authDeadline
		}
		return scopeDeadline
	case authDeadline > 0:
		return authDeadline
	default:
		return scopeDeadline
	}
}

// Execute runs an attested payout for caller. Checks run in a fixed order:
// attestor role, deadline, nonce, caps, available funds. Nothing is written
// unless every check passes; the host discards partial writes if a later
// step fails.
func (e *Engine) Execute(caller [20]byte, auth Authorization) (*Receipt, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if e.authority == nil || e.nonces == nil {
		return nil, errNotWired
	}
	if e.source == nil {
		return nil, errNilSource
	}
	if err := auth.Validate(); err != nil {
		return nil, err
	}
	scope := strings.TrimSpace(auth.Scope)
	if err := e.authority.Guard(); err != nil {
		return nil, err
	}
	if err := e.authority.Require(roles.RoleAttestor, caller); err != nil {
		return nil, err
	}
	available, localCap, scopeDeadline, err := e.source.Limits(scope)
	if err != nil {
		return nil, err
	}
	now := e.nowFn()
	if deadline := effectiveDeadline(auth.Deadline, scopeDeadline); deadline > 0 && now > deadline {
		return nil, fmt.Errorf("payout: %w: now %d after %d", coreerrors.ErrDeadlineExceeded, now, deadline)
	}
	if err := e.nonces.Check(scope, auth.Nonce); err != nil {
		return nil, err
	}
	if localCap != nil && auth.Amount.Cmp(localCap) > 0 {
		return nil, fmt.Errorf("payout: %w: %s above scope cap %s", coreerrors.ErrCapExceeded, auth.Amount, localCap)
	}
	if e.globalCap != nil && e.globalCap.Sign() > 0 && auth.Amount.Cmp(e.globalCap) > 0 {
		return nil, fmt.Errorf("payout: %w: %s above global cap %s", coreerrors.ErrCapExceeded, auth.Amount, e.globalCap)
	}
	if available == nil || auth.Amount.Cmp(available) > 0 {
		return nil, fmt.Errorf("payout: %w: %s requested, %s available", coreerrors.ErrInsufficientFunds, auth.Amount, available)
	}

	if err := e.source.Release(scope, auth.Recipient, auth.Amount); err != nil {
		return nil, err
	}
	if err := e.nonces.Consume(scope, auth.Nonce); err != nil {
		return nil, err
	}
	receipt := &Receipt{
		Scope:      scope,
		Recipient:  auth.Recipient,
		Amount:     new(big.Int).Set(auth.Amount),
		Nonce:      auth.Nonce,
		Attestor:   caller,
		ExecutedAt: uint64(now),
	}
	if err := e.state.KVPut(e.receiptKey(scope, auth.Nonce), receipt); err != nil {
		return nil, err
	}
	if _, err := state.AddBig(e.state, e.totalKey(), auth.Amount); err != nil {
		return nil, err
	}
	if _, err := state.AddBig(e.state, e.scopeTotalKey(scope), auth.Amount); err != nil {
		return nil, err
	}
	e.emitter.Emit(Executed{Domain: e.namespace, Receipt: *receipt})
	return receipt, nil
}

// ExecuteSigned recovers the attestor from sig and executes auth on its
// behalf.
func (e *Engine) ExecuteSigned(auth Authorization, sig []byte) (*Receipt, error) {
	signer, err := RecoverSigner(e.namespace, auth, sig)
	if err != nil {
		return nil, err
	}
	return e.Execute(signer, auth)
}

// Receipt returns the record of the payout made under nonce in scope.
func (e *Engine) Receipt(scope string, nonce uint64) (*Receipt, error) {
	if e.state == nil {
		return nil, errNilState
	}
	scope = strings.TrimSpace(scope)
	receipt := new(Receipt)
	ok, err := e.state.KVGet(e.receiptKey(scope, nonce), receipt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("payout: %w: no receipt for %s/%d", coreerrors.ErrNotFound, scope, nonce)
	}
	return receipt, nil
}

// TotalPaidOut returns the cumulative amount paid across all scopes.
func (e *Engine) TotalPaidOut() (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return state.LoadBig(e.state, e.totalKey())
}

// ScopePaidOut returns the cumulative amount paid from scope.
func (e *Engine) ScopePaidOut(scope string) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return state.LoadBig(e.state, e.scopeTotalKey(strings.TrimSpace(scope)))
}
