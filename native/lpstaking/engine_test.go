package lpstaking

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/token"
	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

const (
	t0     = int64(1_700_000_000)
	day    = int64(86_400)
	poolID = "cctr-lp"
)

func addr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

type fixture struct {
	engine *Engine
	cctr   *token.Ledger
	lp     *token.Ledger
	admin  [20]byte
	alice  [20]byte
	bob    [20]byte
	now    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	f := &fixture{admin: addr(0xAD), alice: addr(0xA1), bob: addr(0xB0), now: t0}
	clock := func() int64 { return f.now }
	f.cctr = token.NewLedger(token.Params{Symbol: "CCTR", Decimals: 7})
	f.lp = token.NewLedger(token.Params{Symbol: "LP", Decimals: 7})
	bank := token.NewBank(f.cctr, f.lp)
	bank.Bind(tx, nil, clock)

	f.engine = NewEngine()
	f.engine.Bind(tx, nil, clock)
	f.engine.SetAssets(bank)
	require.NoError(t, f.engine.Initialize(f.admin))
	_, err := f.engine.CreatePool(f.admin, PoolParams{
		ID:          poolID,
		StakeToken:  "lp",
		RewardToken: "cctr",
		RewardRate:  big.NewInt(1000),
		LockPeriod:  uint64(7 * day),
	})
	require.NoError(t, err)
	require.NoError(t, f.lp.Allocate(f.alice, big.NewInt(1000)))
	require.NoError(t, f.lp.Allocate(f.bob, big.NewInt(1000)))
	require.NoError(t, f.cctr.Allocate(f.admin, big.NewInt(10_000)))
	return f
}

func balance(t *testing.T, l *token.Ledger, who [20]byte) int64 {
	t.Helper()
	bal, err := l.Balance(who)
	require.NoError(t, err)
	return bal.Int64()
}

func TestCreatePoolRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	params := PoolParams{ID: "other", StakeToken: "lp", RewardToken: "cctr", RewardRate: big.NewInt(1)}
	_, err := f.engine.CreatePool(f.alice, params)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	params.ID = poolID
	_, err = f.engine.CreatePool(f.admin, params)
	require.ErrorIs(t, err, coreerrors.ErrAlreadyExists)

	params.ID = "zero"
	params.RewardRate = big.NewInt(0)
	_, err = f.engine.CreatePool(f.admin, params)
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)

	ids, err := f.engine.Pools()
	require.NoError(t, err)
	require.Equal(t, []string{poolID}, ids)
}

func TestProportionalRewards(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Stake(f.alice, poolID, big.NewInt(300))
	require.NoError(t, err)
	_, err = f.engine.Stake(f.bob, poolID, big.NewInt(100))
	require.NoError(t, err)

	f.now = t0 + day
	pending, err := f.engine.PendingRewards(poolID, f.alice)
	require.NoError(t, err)
	require.Equal(t, int64(750), pending.Int64())
	pending, err = f.engine.PendingRewards(poolID, f.bob)
	require.NoError(t, err)
	require.Equal(t, int64(250), pending.Int64())

	_, err = f.engine.ClaimRewards(f.alice, poolID)
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)

	_, err = f.engine.FundRewards(f.admin, "cctr", big.NewInt(10_000))
	require.NoError(t, err)
	paid, err := f.engine.ClaimRewards(f.alice, poolID)
	require.NoError(t, err)
	require.Equal(t, int64(750), paid.Int64())
	require.Equal(t, int64(750), balance(t, f.cctr, f.alice))
	reserve, err := f.engine.ReserveBalance("CCTR")
	require.NoError(t, err)
	require.Equal(t, int64(9_250), reserve.Int64())

	_, err = f.engine.ClaimRewards(f.alice, poolID)
	require.ErrorIs(t, err, coreerrors.ErrNoRewardsAvailable)
}

func TestTopUpKeepsStakeTime(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Stake(f.bob, poolID, big.NewInt(100))
	require.NoError(t, err)

	f.now = t0 + day/2
	pos, err := f.engine.Stake(f.bob, poolID, big.NewInt(50))
	require.NoError(t, err)
	require.Equal(t, int64(150), pos.Amount.Int64())
	require.Equal(t, uint64(t0), pos.StakedAt)
	require.Equal(t, uint64(t0), pos.LastClaim)

	p, err := f.engine.Pool(poolID)
	require.NoError(t, err)
	require.Equal(t, int64(150), p.TotalStaked.Int64())
	require.Equal(t, int64(850), balance(t, f.lp, f.bob))
}

func TestUnstakeHonoursLockPeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Stake(f.alice, poolID, big.NewInt(300))
	require.NoError(t, err)

	f.now = t0 + 7*day - 1
	_, err = f.engine.Unstake(f.alice, poolID, big.NewInt(100))
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)

	f.now = t0 + 7*day
	_, err = f.engine.Unstake(f.alice, poolID, big.NewInt(301))
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)
	pos, err := f.engine.Unstake(f.alice, poolID, big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, int64(200), pos.Amount.Int64())
	require.Equal(t, int64(800), balance(t, f.lp, f.alice))

	_, err = f.engine.Unstake(f.alice, poolID, big.NewInt(200))
	require.NoError(t, err)
	_, err = f.engine.Position(poolID, f.alice)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
	require.Equal(t, int64(1000), balance(t, f.lp, f.alice))

	p, err := f.engine.Pool(poolID)
	require.NoError(t, err)
	require.Zero(t, p.TotalStaked.Sign())
}

func TestSetRewardRate(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Stake(f.alice, poolID, big.NewInt(100))
	require.NoError(t, err)
	_, err = f.engine.SetRewardRate(f.alice, poolID, big.NewInt(5))
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
	_, err = f.engine.SetRewardRate(f.admin, poolID, big.NewInt(40))
	require.NoError(t, err)

	f.now = t0 + 2*day
	pending, err := f.engine.PendingRewards(poolID, f.alice)
	require.NoError(t, err)
	require.Equal(t, int64(80), pending.Int64())
}

func TestPausedRejectsStaking(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.SetPaused(f.admin, true))
	_, err := f.engine.Stake(f.alice, poolID, big.NewInt(1))
	require.ErrorIs(t, err, coreerrors.ErrContractPaused)
	paused, err := f.engine.Paused()
	require.NoError(t, err)
	if !paused {
		t.Fatalf("expected paused")
	}
}
