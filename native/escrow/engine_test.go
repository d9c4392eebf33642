package escrow

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/token"
	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type eventRecorder struct{ events []events.Event }

func (r *eventRecorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

type testEnv struct {
	engine *Engine
	ledger *token.Ledger
	events *eventRecorder
	now    int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	ledger := token.NewLedger(token.Params{Symbol: "CCTR"})
	bank := token.NewBank(ledger)
	bank.Bind(tx, nil, nil)
	env := &testEnv{ledger: ledger, events: &eventRecorder{}, now: 1_000}
	env.engine = NewEngine("vault")
	env.engine.SetState(tx)
	env.engine.SetAssets(bank)
	env.engine.SetEmitter(env.events)
	env.engine.SetNowFunc(func() int64 { return env.now })
	return env
}

func (env *testEnv) fund(t *testing.T, who [20]byte, amount int64) {
	t.Helper()
	require.NoError(t, env.ledger.Allocate(who, big.NewInt(amount)))
}

func (env *testEnv) balance(t *testing.T, who [20]byte) int64 {
	t.Helper()
	bal, err := env.ledger.Balance(who)
	require.NoError(t, err)
	return bal.Int64()
}

func (env *testEnv) create(t *testing.T, scope string, cap int64, deadline int64, topUp bool) {
	t.Helper()
	_, err := env.engine.Create(CreateParams{
		ScopeID:    scope,
		Token:      "CCTR",
		PayoutCap:  big.NewInt(cap),
		Deadline:   deadline,
		AllowTopUp: topUp,
	})
	require.NoError(t, err)
}

func TestCreateRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "t-1", 1000, 0, false)
	_, err := env.engine.Create(CreateParams{ScopeID: "t-1", Token: "CCTR", PayoutCap: big.NewInt(1)})
	require.ErrorIs(t, err, coreerrors.ErrAlreadyExists)

	_, err = env.engine.Create(CreateParams{ScopeID: " ", Token: "CCTR", PayoutCap: big.NewInt(1)})
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)
	_, err = env.engine.Get("missing")
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
	require.Equal(t, EventTypeCreated, env.events.events[0].EventType())
}

func TestDepositTracksEntriesAndCustody(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := newTestAddress(0x02), newTestAddress(0x01)
	env.fund(t, alice, 100)
	env.fund(t, bob, 100)
	env.create(t, "t-1", 1000, 0, false)

	_, err := env.engine.Deposit("t-1", alice, big.NewInt(30))
	require.NoError(t, err)
	acc, err := env.engine.Deposit("t-1", bob, big.NewInt(20))
	require.NoError(t, err)

	require.Equal(t, int64(50), acc.TotalDeposited.Int64())
	require.Equal(t, bob, acc.Entries[0].Principal)
	require.Equal(t, alice, acc.Entries[1].Principal)
	require.Equal(t, int64(70), env.balance(t, alice))
	require.Equal(t, int64(50), env.balance(t, env.engine.VaultAddress("CCTR")))

	_, err = env.engine.Deposit("t-1", alice, big.NewInt(1))
	require.ErrorIs(t, err, coreerrors.ErrAlreadyExists)

	poor := newTestAddress(0x09)
	_, err = env.engine.Deposit("t-1", poor, big.NewInt(1))
	require.ErrorIs(t, err, coreerrors.ErrInsufficientBalance)
	acc, err = env.engine.Get("t-1")
	require.NoError(t, err)
	require.Len(t, acc.Entries, 2)
}

func TestTopUpAccumulates(t *testing.T) {
	env := newTestEnv(t)
	alice := newTestAddress(0x02)
	env.fund(t, alice, 100)
	env.create(t, "pool", 1000, 0, true)

	_, err := env.engine.Deposit("pool", alice, big.NewInt(30))
	require.NoError(t, err)
	acc, err := env.engine.Deposit("pool", alice, big.NewInt(5))
	require.NoError(t, err)
	entry, ok := acc.Entry(alice)
	require.True(t, ok)
	require.Equal(t, int64(35), entry.Amount.Int64())
}

func TestWithdrawTargetedChecks(t *testing.T) {
	env := newTestEnv(t)
	winner := newTestAddress(0x0F)
	players := []([20]byte){newTestAddress(0x01), newTestAddress(0x02), newTestAddress(0x03)}
	env.create(t, "t-1", 1000, 1600, false)
	for _, p := range players {
		env.fund(t, p, 500)
		_, err := env.engine.Deposit("t-1", p, big.NewInt(500))
		require.NoError(t, err)
	}

	_, err := env.engine.WithdrawTargeted("t-1", winner, big.NewInt(1001))
	require.ErrorIs(t, err, coreerrors.ErrCapExceeded)
	require.ErrorIs(t, err, coreerrors.ErrCapacityExceeded)

	acc, err := env.engine.WithdrawTargeted("t-1", winner, big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, int64(500), acc.TotalDeposited.Int64())
	require.Equal(t, 0, acc.TotalDeposited.Cmp(acc.Sum()))
	require.Equal(t, int64(1000), env.balance(t, winner))

	_, err = env.engine.WithdrawTargeted("t-1", winner, big.NewInt(501))
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)

	env.now = 1601
	_, err = env.engine.WithdrawTargeted("t-1", winner, big.NewInt(1))
	require.ErrorIs(t, err, coreerrors.ErrDeadlineExceeded)
}

func TestProRataDebitConservesTotals(t *testing.T) {
	acc := &Account{TotalDeposited: big.NewInt(0)}
	acc.credit(newTestAddress(0x03), big.NewInt(7))
	acc.credit(newTestAddress(0x01), big.NewInt(3))
	acc.credit(newTestAddress(0x02), big.NewInt(1))

	for _, amount := range []int64{5, 1, 2, 3} {
		acc.debitProRata(big.NewInt(amount))
		require.Equal(t, 0, acc.TotalDeposited.Cmp(acc.Sum()), "after debiting %d", amount)
		for _, entry := range acc.Entries {
			if entry.Amount.Sign() < 0 {
				t.Fatalf("entry went negative: %v", entry.Amount)
			}
		}
	}
	require.Equal(t, int64(0), acc.TotalDeposited.Int64())
}

func TestRefundAllReturnsEachEntryOnce(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := newTestAddress(0x01), newTestAddress(0x02)
	env.fund(t, alice, 40)
	env.fund(t, bob, 60)
	env.create(t, "t-1", 1000, 0, false)
	_, err := env.engine.Deposit("t-1", alice, big.NewInt(40))
	require.NoError(t, err)
	_, err = env.engine.Deposit("t-1", bob, big.NewInt(60))
	require.NoError(t, err)

	acc, err := env.engine.RefundAll("t-1")
	require.NoError(t, err)
	require.True(t, acc.Finalized)
	require.Equal(t, int64(0), acc.TotalDeposited.Int64())
	require.Equal(t, int64(40), env.balance(t, alice))
	require.Equal(t, int64(60), env.balance(t, bob))
	require.Equal(t, int64(0), env.balance(t, env.engine.VaultAddress("CCTR")))

	_, err = env.engine.RefundAll("t-1")
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
	_, err = env.engine.Deposit("t-1", alice, big.NewInt(1))
	require.ErrorIs(t, err, coreerrors.ErrFinalized)
}

func TestFinalizeBlocksDepositsOnly(t *testing.T) {
	env := newTestEnv(t)
	alice, winner := newTestAddress(0x01), newTestAddress(0x0F)
	env.fund(t, alice, 100)
	env.create(t, "t-1", 1000, 0, false)
	_, err := env.engine.Deposit("t-1", alice, big.NewInt(100))
	require.NoError(t, err)

	_, err = env.engine.Finalize("t-1")
	require.NoError(t, err)
	_, err = env.engine.Finalize("t-1")
	require.ErrorIs(t, err, coreerrors.ErrFinalized)

	require.NoError(t, env.engine.Release("t-1", winner, big.NewInt(10)))

	env.engine.SetBlockPayoutOnFinalize(true)
	require.ErrorIs(t, env.engine.Release("t-1", winner, big.NewInt(10)), coreerrors.ErrFinalized)
}

func TestWithdrawEntry(t *testing.T) {
	env := newTestEnv(t)
	alice := newTestAddress(0x01)
	env.fund(t, alice, 100)
	env.create(t, "lp", 1000, 0, true)
	_, err := env.engine.Deposit("lp", alice, big.NewInt(100))
	require.NoError(t, err)

	_, err = env.engine.WithdrawEntry("lp", alice, big.NewInt(101))
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)
	acc, err := env.engine.WithdrawEntry("lp", alice, big.NewInt(100))
	require.NoError(t, err)
	require.Empty(t, acc.Entries)
	require.Equal(t, int64(100), env.balance(t, alice))

	_, err = env.engine.WithdrawEntry("lp", alice, big.NewInt(1))
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
}

func TestLimits(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "t-1", 700, 99, false)
	available, cap, deadline, err := env.engine.Limits("t-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), available.Int64())
	require.Equal(t, int64(700), cap.Int64())
	require.Equal(t, int64(99), deadline)
}

func TestDepositEnforcesEntryFee(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := newTestAddress(0x01), newTestAddress(0x02)
	env.fund(t, alice, 100)
	env.fund(t, bob, 100)

	_, err := env.engine.Create(CreateParams{ScopeID: "cup", Token: "CCTR", PayoutCap: big.NewInt(100), EntryFee: big.NewInt(25)})
	require.NoError(t, err)
	_, err = env.engine.Deposit("cup", alice, big.NewInt(24))
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)
	_, err = env.engine.Deposit("cup", alice, big.NewInt(50))
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)
	_, err = env.engine.Deposit("cup", alice, big.NewInt(25))
	require.NoError(t, err)
	require.Equal(t, int64(75), env.balance(t, alice))

	_, err = env.engine.Create(CreateParams{ScopeID: "tickets", Token: "CCTR", PayoutCap: big.NewInt(100), EntryFee: big.NewInt(10), AllowTopUp: true})
	require.NoError(t, err)
	_, err = env.engine.Deposit("tickets", bob, big.NewInt(15))
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)
	acc, err := env.engine.Deposit("tickets", bob, big.NewInt(30))
	require.NoError(t, err)
	require.Equal(t, int64(30), acc.TotalDeposited.Int64())
}

func TestZeroCapBlocksTargetedWithdrawals(t *testing.T) {
	env := newTestEnv(t)
	alice := newTestAddress(0x01)
	env.fund(t, alice, 100)
	env.create(t, "lp", 0, 0, true)
	_, err := env.engine.Deposit("lp", alice, big.NewInt(100))
	require.NoError(t, err)

	require.ErrorIs(t, env.engine.Release("lp", alice, big.NewInt(1)), coreerrors.ErrCapExceeded)
	_, cap, _, err := env.engine.Limits("lp")
	require.NoError(t, err)
	require.Equal(t, 0, cap.Sign())
	_, err = env.engine.WithdrawEntry("lp", alice, big.NewInt(100))
	require.NoError(t, err)
}

func TestNilCapStoredAsZero(t *testing.T) {
	env := newTestEnv(t)
	alice := newTestAddress(0x01)
	env.fund(t, alice, 50)
	acc, err := env.engine.Create(CreateParams{ScopeID: "open", Token: "CCTR"})
	require.NoError(t, err)
	if acc.PayoutCap == nil || acc.PayoutCap.Sign() != 0 {
		t.Fatalf("expected zero payout cap, got %v", acc.PayoutCap)
	}
	_, err = env.engine.Deposit("open", alice, big.NewInt(50))
	require.NoError(t, err)
	require.ErrorIs(t, env.engine.Release("open", alice, big.NewInt(1)), coreerrors.ErrCapExceeded)
}
