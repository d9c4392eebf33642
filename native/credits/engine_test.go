package credits

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/multisig"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/token"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/vault"
	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

// 2023-11-14T22:13:20Z, a little under two hours before a UTC day boundary.
const t0 = int64(1_700_000_000)

func addr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

type fixture struct {
	credits  *Engine
	treasury *multisig.Treasury
	usdc     *token.Ledger
	buf      *events.Buffer
	admin    [20]byte
	minter   [20]byte
	burner   [20]byte
	alice    [20]byte
	bob      [20]byte
	now      int64
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	f := &fixture{
		buf:    &events.Buffer{},
		admin:  addr(0xAD),
		minter: addr(0x33),
		burner: addr(0x44),
		alice:  addr(0xA1),
		bob:    addr(0xB0),
		now:    t0,
	}
	clock := func() int64 { return f.now }
	f.usdc = token.NewLedger(token.Params{Symbol: "USDC", Decimals: 7})
	bank := token.NewBank(token.NewLedger(token.Params{Symbol: "CCTR", Decimals: 7}), f.usdc)
	bank.Bind(tx, nil, clock)

	v := vault.NewEngine()
	v.Bind(tx, nil, clock)
	v.SetAssets(bank)
	require.NoError(t, v.Initialize(vault.InitParams{Admin: f.admin, Attestors: [][20]byte{f.minter}, GlobalCap: big.NewInt(1)}))
	f.treasury = v.Treasury()

	f.credits = NewEngine()
	f.credits.Bind(tx, f.buf, clock)
	f.credits.SetAssets(bank)
	f.credits.SetTreasury(f.treasury)
	require.NoError(t, f.credits.Initialize(InitParams{
		Admin:        f.admin,
		Minters:      [][20]byte{f.minter},
		Burners:      [][20]byte{f.burner},
		PaymentToken: "usdc",
		Limits:       limits,
	}))
	require.NoError(t, f.usdc.Allocate(f.alice, units(10)))
	f.buf.Reset()
	return f
}

func (f *fixture) balance(t *testing.T, who [20]byte) *big.Int {
	t.Helper()
	bal, err := f.credits.Balance(who)
	require.NoError(t, err)
	return bal
}

func TestDefaultsInstalled(t *testing.T) {
	f := newFixture(t, Limits{})
	pkgs, err := f.credits.Packages()
	require.NoError(t, err)
	require.Len(t, pkgs, 3)
	require.Equal(t, uint32(2), pkgs[1].ID)
	require.Equal(t, 0, units(550).Cmp(pkgs[1].Total()))

	cfg, err := f.credits.ActivityConfig(ActivityAchievement)
	require.NoError(t, err)
	require.Equal(t, 0, units(10).Cmp(cfg.Reward))
	require.Equal(t, uint32(5), cfg.DailyCap)

	a, err := ParseActivity("Radio-Listen")
	require.NoError(t, err)
	require.Equal(t, ActivityRadioListen, a)
	_, err = ParseActivity("idle")
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)
}

func TestRewardActivityCooldownAndDailyCap(t *testing.T) {
	f := newFixture(t, Limits{})
	_, err := f.credits.RewardActivity(f.alice, f.alice, ActivityGamePlay)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	reward, err := f.credits.RewardActivity(f.minter, f.alice, ActivityGamePlay)
	require.NoError(t, err)
	require.Equal(t, 0, units(2).Cmp(reward))

	f.now += 59
	_, err = f.credits.RewardActivity(f.minter, f.alice, ActivityGamePlay)
	require.ErrorIs(t, err, coreerrors.ErrDeadlineExceeded)
	f.now++
	_, err = f.credits.RewardActivity(f.minter, f.alice, ActivityGamePlay)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.credits.RewardActivity(f.minter, f.bob, ActivityAchievement)
		require.NoError(t, err)
	}
	_, err = f.credits.RewardActivity(f.minter, f.bob, ActivityAchievement)
	require.ErrorIs(t, err, coreerrors.ErrCapacityExceeded)

	f.now += daySeconds
	_, err = f.credits.RewardActivity(f.minter, f.bob, ActivityAchievement)
	require.NoError(t, err)
	require.Equal(t, 0, units(60).Cmp(f.balance(t, f.bob)))

	acc, err := f.credits.Account(f.alice)
	require.NoError(t, err)
	require.Equal(t, 0, units(4).Cmp(acc.LifetimeEarned))
}

func TestDailyMintLimitPerUser(t *testing.T) {
	f := newFixture(t, Limits{DailyMintLimit: units(15)})
	require.NoError(t, f.credits.AwardCredits(f.minter, f.alice, units(10), "bug bounty"))
	err := f.credits.AwardCredits(f.minter, f.alice, units(6), "")
	require.ErrorIs(t, err, coreerrors.ErrCapacityExceeded)
	require.NoError(t, f.credits.AwardCredits(f.minter, f.bob, units(15), ""))

	_, err = f.credits.RewardActivity(f.minter, f.alice, ActivityGameWin)
	require.NoError(t, err)
	_, err = f.credits.RewardActivity(f.minter, f.alice, ActivityGameWin)
	require.ErrorIs(t, err, coreerrors.ErrCapacityExceeded)

	f.now += daySeconds
	require.NoError(t, f.credits.AwardCredits(f.minter, f.alice, units(6), ""))

	payload, ok := events.Canonical(f.buf.Events()[0])
	require.True(t, ok)
	require.Equal(t, TypeIssued, payload.Type)
	require.Equal(t, "award:bug bounty", payload.Attributes["source"])
}

func TestMaxSupplyBoundsIssuance(t *testing.T) {
	f := newFixture(t, Limits{MaxSupply: units(120)})
	require.NoError(t, f.credits.AwardCredits(f.minter, f.bob, units(100), ""))
	_, err := f.credits.BuyCredits(f.alice, 1)
	require.ErrorIs(t, err, coreerrors.ErrCapacityExceeded)

	require.NoError(t, f.credits.SetLimits(f.admin, Limits{}))
	pkg, err := f.credits.BuyCredits(f.alice, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), pkg.ID)
	supply, err := f.credits.Supply()
	require.NoError(t, err)
	require.Equal(t, 0, units(200).Cmp(supply))
}

func TestBuyCreditsPaysTreasury(t *testing.T) {
	f := newFixture(t, Limits{})
	_, err := f.credits.BuyCredits(f.alice, 2)
	require.NoError(t, err)
	require.Equal(t, 0, units(550).Cmp(f.balance(t, f.alice)))

	paid, err := f.treasury.Balance("USDC")
	require.NoError(t, err)
	require.Equal(t, int64(45_000_000), paid.Int64())
	left, err := f.usdc.Balance(f.alice)
	require.NoError(t, err)
	require.Equal(t, int64(55_000_000), left.Int64())

	_, err = f.credits.BuyCredits(f.alice, 9)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)

	_, err = f.credits.UpdatePackage(f.admin, 3, units(1000), units(8), units(200), false)
	require.NoError(t, err)
	_, err = f.credits.BuyCredits(f.alice, 3)
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)

	_, err = f.credits.BuyCredits(f.bob, 1)
	require.ErrorIs(t, err, coreerrors.ErrInsufficientBalance)
}

func TestSpendTransferAndBurn(t *testing.T) {
	f := newFixture(t, Limits{})
	require.NoError(t, f.credits.AwardCredits(f.minter, f.alice, big.NewInt(100), ""))

	require.NoError(t, f.credits.SpendCredits(f.alice, big.NewInt(30), "gpu-minutes"))
	require.ErrorIs(t, f.credits.SpendCredits(f.alice, big.NewInt(71), ""), coreerrors.ErrInsufficientBalance)
	require.ErrorIs(t, f.credits.SpendCredits(f.alice, big.NewInt(0), ""), coreerrors.ErrInvalidArgument)

	require.NoError(t, f.credits.TransferCredits(f.alice, f.bob, big.NewInt(20)))
	require.ErrorIs(t, f.credits.TransferCredits(f.alice, f.alice, big.NewInt(1)), coreerrors.ErrInvalidArgument)
	require.ErrorIs(t, f.credits.TransferCredits(f.bob, f.alice, big.NewInt(21)), coreerrors.ErrInsufficientBalance)

	require.ErrorIs(t, f.credits.BurnCredits(f.minter, f.bob, big.NewInt(5)), coreerrors.ErrUnauthorized)
	require.NoError(t, f.credits.BurnCredits(f.burner, f.bob, big.NewInt(5)))

	require.Equal(t, int64(50), f.balance(t, f.alice).Int64())
	require.Equal(t, int64(15), f.balance(t, f.bob).Int64())
	supply, err := f.credits.Supply()
	require.NoError(t, err)
	require.Equal(t, int64(65), supply.Int64())

	acc, err := f.credits.Account(f.alice)
	require.NoError(t, err)
	require.Equal(t, int64(30), acc.LifetimeSpent.Int64())
}

func TestRoleAndPackageAdministration(t *testing.T) {
	f := newFixture(t, Limits{})
	require.NoError(t, f.credits.Grant(f.admin, roles.RoleMinter, f.bob))
	require.NoError(t, f.credits.AwardCredits(f.bob, f.alice, big.NewInt(1), ""))
	require.NoError(t, f.credits.Revoke(f.admin, roles.RoleMinter, f.bob))
	require.ErrorIs(t, f.credits.AwardCredits(f.bob, f.alice, big.NewInt(1), ""), coreerrors.ErrUnauthorized)
	require.ErrorIs(t, f.credits.Grant(f.admin, roles.RoleAttestor, f.bob), coreerrors.ErrInvalidArgument)

	pkg, err := f.credits.CreatePackage(f.admin, units(50), big.NewInt(4_000_000), nil)
	require.NoError(t, err)
	require.Equal(t, uint32(4), pkg.ID)
	_, err = f.credits.CreatePackage(f.alice, units(50), units(1), nil)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
	_, err = f.credits.CreatePackage(f.admin, units(50), big.NewInt(0), nil)
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)

	require.NoError(t, f.credits.SetActivity(f.admin, ActivityChatMessage, ActivityConfig{Reward: big.NewInt(7)}))
	reward, err := f.credits.RewardActivity(f.minter, f.alice, ActivityChatMessage)
	require.NoError(t, err)
	require.Equal(t, int64(7), reward.Int64())
	_, err = f.credits.RewardActivity(f.minter, f.alice, ActivityChatMessage)
	require.NoError(t, err)

	require.NoError(t, f.credits.SetPaused(f.admin, true))
	require.ErrorIs(t, f.credits.SpendCredits(f.alice, big.NewInt(1), ""), coreerrors.ErrContractPaused)
}
