package payout

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/escrow"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/nonce"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/token"
	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

const t0 = int64(1_700_000_000)

func fill(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

type recorder struct{ events []events.Event }

func (r *recorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

type harness struct {
	engine   *Engine
	escrow   *escrow.Engine
	ledger   *token.Ledger
	nonces   *nonce.Ledger
	roles    *roles.Registry
	admin    [20]byte
	attestor *crypto.PrivateKey
	events   *recorder
	now      int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	h := &harness{admin: fill(0xAD), attestor: key, events: &recorder{}, now: t0}
	clock := func() int64 { return h.now }

	h.ledger = token.NewLedger(token.Params{Symbol: "CCTR"})
	bank := token.NewBank(h.ledger)
	bank.Bind(tx, nil, clock)

	h.roles = roles.NewRegistry("vault")
	h.roles.SetState(tx)
	require.NoError(t, h.roles.Initialize(h.admin))
	require.NoError(t, h.roles.Grant(h.admin, roles.RoleAttestor, key.PubKey().Principal()))

	h.escrow = escrow.NewEngine("vault")
	h.escrow.SetState(tx)
	h.escrow.SetAssets(bank)
	h.escrow.SetNowFunc(clock)

	h.nonces = nonce.NewLedger("vault", nonce.PolicySequential)
	h.nonces.SetState(tx)

	h.engine = NewEngine("vault")
	h.engine.SetState(tx)
	h.engine.SetAuthority(h.roles)
	h.engine.SetNonces(h.nonces)
	h.engine.SetSource(h.escrow)
	h.engine.SetEmitter(h.events)
	h.engine.SetNowFunc(clock)
	return h
}

// seedScope creates a scope with cap 1000 and deadline t0+600 funded by
// three players paying 500 each.
func (h *harness) seedScope(t *testing.T, scope string) {
	t.Helper()
	_, err := h.escrow.Create(escrow.CreateParams{
		ScopeID:   scope,
		Token:     "CCTR",
		PayoutCap: big.NewInt(1000),
		Deadline:  t0 + 600,
		EntryFee:  big.NewInt(500),
	})
	require.NoError(t, err)
	for _, b := range []byte{0x01, 0x02, 0x03} {
		require.NoError(t, h.ledger.Allocate(fill(b), big.NewInt(500)))
		_, err := h.escrow.Deposit(scope, fill(b), big.NewInt(500))
		require.NoError(t, err)
	}
}

func (h *harness) attestorAddr() [20]byte { return h.attestor.PubKey().Principal() }

func TestPayoutScenario(t *testing.T) {
	h := newHarness(t)
	h.seedScope(t, "t1")
	winner := fill(0x0F)

	h.now = t0 + 100
	receipt, err := h.engine.Execute(h.attestorAddr(), Authorization{Scope: "t1", Recipient: winner, Amount: big.NewInt(1000), Nonce: 1})
	require.NoError(t, err)
	require.Equal(t, uint64(1), receipt.Nonce)
	bal, err := h.ledger.Balance(winner)
	require.NoError(t, err)
	require.Equal(t, int64(1000), bal.Int64())
	acc, err := h.escrow.Get("t1")
	require.NoError(t, err)
	require.Equal(t, int64(500), acc.TotalDeposited.Int64())

	// Replaying the same nonce is rejected.
	_, err = h.engine.Execute(h.attestorAddr(), Authorization{Scope: "t1", Recipient: winner, Amount: big.NewInt(1), Nonce: 1})
	require.ErrorIs(t, err, coreerrors.ErrNonceReplay)

	// Above the scope cap.
	_, err = h.engine.Execute(h.attestorAddr(), Authorization{Scope: "t1", Recipient: winner, Amount: big.NewInt(1001), Nonce: 2})
	require.ErrorIs(t, err, coreerrors.ErrCapExceeded)

	// Above what remains in the scope.
	_, err = h.engine.Execute(h.attestorAddr(), Authorization{Scope: "t1", Recipient: winner, Amount: big.NewInt(501), Nonce: 2})
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)

	// After the scope deadline.
	h.now = t0 + 700
	_, err = h.engine.Execute(h.attestorAddr(), Authorization{Scope: "t1", Recipient: winner, Amount: big.NewInt(10), Nonce: 2})
	require.ErrorIs(t, err, coreerrors.ErrDeadlineExceeded)

	// Failed attempts consumed nothing.
	last, err := h.nonces.Last("t1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), last)
	total, err := h.engine.TotalPaidOut()
	require.NoError(t, err)
	require.Equal(t, int64(1000), total.Int64())
	require.Len(t, h.events.events, 1)
	require.Equal(t, TypeExecuted, h.events.events[0].EventType())
}

func TestPayoutRequiresAttestor(t *testing.T) {
	h := newHarness(t)
	h.seedScope(t, "t1")
	_, err := h.engine.Execute(fill(0x55), Authorization{Scope: "t1", Recipient: fill(0x0F), Amount: big.NewInt(1), Nonce: 1})
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
}

func TestPayoutOrderDeadlineBeforeNonce(t *testing.T) {
	h := newHarness(t)
	h.seedScope(t, "t1")
	h.now = t0 + 601
	_, err := h.engine.Execute(h.attestorAddr(), Authorization{Scope: "t1", Recipient: fill(0x0F), Amount: big.NewInt(1), Nonce: 7})
	require.ErrorIs(t, err, coreerrors.ErrDeadlineExceeded)
}

func TestAuthorizationDeadlineTightensScope(t *testing.T) {
	h := newHarness(t)
	h.seedScope(t, "t1")
	h.now = t0 + 300
	_, err := h.engine.Execute(h.attestorAddr(), Authorization{Scope: "t1", Recipient: fill(0x0F), Amount: big.NewInt(1), Nonce: 1, Deadline: t0 + 200})
	require.ErrorIs(t, err, coreerrors.ErrDeadlineExceeded)
}

func TestGlobalCap(t *testing.T) {
	h := newHarness(t)
	h.seedScope(t, "t1")
	h.engine.SetGlobalCap(big.NewInt(300))
	_, err := h.engine.Execute(h.attestorAddr(), Authorization{Scope: "t1", Recipient: fill(0x0F), Amount: big.NewInt(301), Nonce: 1})
	require.ErrorIs(t, err, coreerrors.ErrCapExceeded)
	_, err = h.engine.Execute(h.attestorAddr(), Authorization{Scope: "t1", Recipient: fill(0x0F), Amount: big.NewInt(300), Nonce: 1})
	require.NoError(t, err)
}

func TestPausedRejectsPayout(t *testing.T) {
	h := newHarness(t)
	h.seedScope(t, "t1")
	require.NoError(t, h.roles.SetPaused(h.admin, true))
	_, err := h.engine.Execute(h.attestorAddr(), Authorization{Scope: "t1", Recipient: fill(0x0F), Amount: big.NewInt(1), Nonce: 1})
	require.ErrorIs(t, err, coreerrors.ErrContractPaused)
}

func TestExecuteSigned(t *testing.T) {
	h := newHarness(t)
	h.seedScope(t, "t1")
	auth := Authorization{Scope: "t1", Recipient: fill(0x0F), Amount: big.NewInt(250), Nonce: 1, Deadline: t0 + 60}

	sig, err := Sign(h.attestor, h.engine.Domain(), auth)
	require.NoError(t, err)
	signer, err := RecoverSigner(h.engine.Domain(), auth, sig)
	require.NoError(t, err)
	require.Equal(t, h.attestorAddr(), signer)

	// A signature for another domain recovers a different principal.
	otherSig, err := Sign(h.attestor, "other", auth)
	require.NoError(t, err)
	_, err = h.engine.ExecuteSigned(auth, otherSig)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	receipt, err := h.engine.ExecuteSigned(auth, sig)
	require.NoError(t, err)
	require.Equal(t, h.attestorAddr(), receipt.Attestor)

	stored, err := h.engine.Receipt("t1", 1)
	require.NoError(t, err)
	require.Equal(t, int64(250), stored.Amount.Int64())
	_, err = h.engine.Receipt("t1", 2)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)

	_, err = RecoverSigner(h.engine.Domain(), auth, sig[:10])
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
}

func TestZeroScopeCapRejectedBeforeRelease(t *testing.T) {
	h := newHarness(t)
	_, err := h.escrow.Create(escrow.CreateParams{ScopeID: "closed", Token: "CCTR", PayoutCap: big.NewInt(0)})
	require.NoError(t, err)
	require.NoError(t, h.ledger.Allocate(fill(0x01), big.NewInt(50)))
	_, err = h.escrow.Deposit("closed", fill(0x01), big.NewInt(50))
	require.NoError(t, err)

	_, err = h.engine.Execute(h.attestorAddr(), Authorization{Scope: "closed", Recipient: fill(0x0F), Amount: big.NewInt(1), Nonce: 1})
	require.ErrorIs(t, err, coreerrors.ErrCapExceeded)
	if !strings.HasPrefix(err.Error(), "payout:") {
		t.Fatalf("expected the payout cap check to reject first, got %v", err)
	}
	last, err := h.nonces.Last("closed")
	require.NoError(t, err)
	require.Zero(t, last)
}
