package raffle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/multisig"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/token"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/vault"
	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

const t0 = int64(1_700_000_000)

func addr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

type fixture struct {
	raffles  *Engine
	treasury *multisig.Treasury
	ledger   *token.Ledger
	admin    [20]byte
	attestor [20]byte
	alice    [20]byte
	bob      [20]byte
	now      int64
	seq      uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	f := &fixture{admin: addr(0xAD), attestor: addr(0xA7), alice: addr(0xA1), bob: addr(0xB0), now: t0, seq: 7}
	clock := func() int64 { return f.now }
	f.ledger = token.NewLedger(token.Params{Symbol: "CCTR", Decimals: 7})
	bank := token.NewBank(f.ledger)
	bank.Bind(tx, nil, clock)

	v := vault.NewEngine()
	v.Bind(tx, nil, clock)
	v.SetAssets(bank)
	require.NoError(t, v.Initialize(vault.InitParams{
		Admin:     f.admin,
		Attestors: [][20]byte{f.attestor},
		GlobalCap: big.NewInt(1_000_000),
	}))
	f.treasury = v.Treasury()

	f.raffles = NewEngine()
	f.raffles.Bind(tx, nil, clock)
	f.raffles.SetAssets(bank)
	f.raffles.SetTreasury(f.treasury)
	f.raffles.SetSequenceFunc(func() uint64 { return f.seq })
	require.NoError(t, f.raffles.Initialize(InitParams{
		Admin:     f.admin,
		Attestors: [][20]byte{f.attestor},
		Token:     "cctr",
	}))
	require.NoError(t, f.ledger.Allocate(f.alice, big.NewInt(1000)))
	require.NoError(t, f.ledger.Allocate(f.bob, big.NewInt(1000)))
	return f
}

func (f *fixture) open(t *testing.T) *Raffle {
	t.Helper()
	r, err := f.raffles.CreateRaffle(f.admin, Params{
		Name:        "weekly",
		TicketPrice: big.NewInt(100),
		MaxTickets:  5,
		PrizeValue:  big.NewInt(450),
		EndTime:     t0 + 1000,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) balance(t *testing.T, who [20]byte) int64 {
	t.Helper()
	bal, err := f.ledger.Balance(who)
	require.NoError(t, err)
	return bal.Int64()
}

func TestSeedIndexAndSplit(t *testing.T) {
	seed := Seed(t0, 7, 5)
	if seed != uint64(t0)^7^(5*31337) {
		t.Fatalf("unexpected seed %d", seed)
	}
	require.Equal(t, uint32(seed%5), Index(seed, 5))
	require.Zero(t, Index(seed, 0))

	prize, fee := Split(big.NewInt(101))
	require.Equal(t, int64(90), prize.Int64())
	require.Equal(t, int64(11), fee.Int64())
}

func TestCreateRaffleAssignsSequentialIDs(t *testing.T) {
	f := newFixture(t)
	first := f.open(t)
	second := f.open(t)
	require.Equal(t, uint64(1), first.ID)
	require.Equal(t, uint64(2), second.ID)
	require.Equal(t, "CCTR", first.Token)
	count, err := f.raffles.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	_, err = f.raffles.CreateRaffle(f.alice, Params{TicketPrice: big.NewInt(1), MaxTickets: 1, EndTime: t0 + 1})
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
	_, err = f.raffles.CreateRaffle(f.admin, Params{TicketPrice: big.NewInt(1), MaxTickets: 1, EndTime: t0})
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)
}

func TestBuyTickets(t *testing.T) {
	f := newFixture(t)
	r := f.open(t)

	_, err := f.raffles.BuyTickets(f.alice, r.ID, 2)
	require.NoError(t, err)
	tickets, err := f.raffles.BuyTickets(f.bob, r.ID, 3)
	require.NoError(t, err)
	require.Equal(t, []TicketRange{{First: 3, Count: 3}}, tickets.Ranges)
	require.Equal(t, int64(800), f.balance(t, f.alice))

	_, err = f.raffles.BuyTickets(f.alice, r.ID, 1)
	require.ErrorIs(t, err, coreerrors.ErrCapacityExceeded)

	stored, err := f.raffles.Raffle(r.ID)
	require.NoError(t, err)
	require.Equal(t, uint32(5), stored.TicketsSold)

	late := f.open(t)
	f.now = t0 + 1001
	_, err = f.raffles.BuyTickets(f.alice, late.ID, 1)
	require.ErrorIs(t, err, coreerrors.ErrDeadlineExceeded)

	none, err := f.raffles.Tickets(late.ID, f.alice)
	require.NoError(t, err)
	require.Zero(t, none.Count)
}

func TestDrawWinnerPaysNinetyPercent(t *testing.T) {
	f := newFixture(t)
	r := f.open(t)
	_, err := f.raffles.BuyTickets(f.alice, r.ID, 2)
	require.NoError(t, err)
	_, err = f.raffles.BuyTickets(f.bob, r.ID, 3)
	require.NoError(t, err)

	_, err = f.raffles.DrawWinner(f.alice, r.ID)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	f.now = t0 + 2000
	holders := [][20]byte{f.alice, f.alice, f.bob, f.bob, f.bob}
	want := holders[Index(Seed(f.now, f.seq, 5), len(holders))]

	res, err := f.raffles.DrawWinner(f.attestor, r.ID)
	require.NoError(t, err)
	require.Equal(t, want, res.Winner)
	require.Equal(t, int64(450), res.Prize.Int64())
	require.Equal(t, int64(50), res.Fee.Int64())

	treasury, err := f.treasury.Balance("CCTR")
	require.NoError(t, err)
	require.Equal(t, int64(50), treasury.Int64())
	spent := map[[20]byte]int64{f.alice: 200, f.bob: 300}
	require.Equal(t, 1000-spent[want]+450, f.balance(t, want))

	stored, err := f.raffles.Raffle(r.ID)
	require.NoError(t, err)
	require.True(t, stored.Drawn)
	require.False(t, stored.Active)

	_, err = f.raffles.DrawWinner(f.admin, r.ID)
	require.ErrorIs(t, err, coreerrors.ErrAlreadyExecuted)
}

func TestDrawWithoutTickets(t *testing.T) {
	f := newFixture(t)
	r := f.open(t)
	_, err := f.raffles.DrawWinner(f.admin, r.ID)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
	_, err = f.raffles.DrawWinner(f.admin, 99)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
}

func TestCancelRaffleRefundsBuyers(t *testing.T) {
	f := newFixture(t)
	r := f.open(t)
	_, err := f.raffles.BuyTickets(f.alice, r.ID, 2)
	require.NoError(t, err)

	cancelled, err := f.raffles.CancelRaffle(f.admin, r.ID)
	require.NoError(t, err)
	require.True(t, cancelled.Cancelled)
	require.Equal(t, int64(1000), f.balance(t, f.alice))

	_, err = f.raffles.BuyTickets(f.bob, r.ID, 1)
	require.ErrorIs(t, err, coreerrors.ErrFinalized)
	_, err = f.raffles.DrawWinner(f.admin, r.ID)
	require.ErrorIs(t, err, coreerrors.ErrFinalized)
	_, err = f.raffles.CancelRaffle(f.admin, r.ID)
	require.ErrorIs(t, err, coreerrors.ErrFinalized)

	empty := f.open(t)
	_, err = f.raffles.CancelRaffle(f.admin, empty.ID)
	require.NoError(t, err)
}

func TestPausedRejectsTicketSales(t *testing.T) {
	f := newFixture(t)
	r := f.open(t)
	require.NoError(t, f.raffles.SetPaused(f.admin, true))
	_, err := f.raffles.BuyTickets(f.alice, r.ID, 1)
	require.ErrorIs(t, err, coreerrors.ErrContractPaused)
}
