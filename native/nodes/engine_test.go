package nodes

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
	nodes    *Engine
	treasury *multisig.Treasury
	ledger   *token.Ledger
	admin    [20]byte
	buyer    [20]byte
	now      int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	f := &fixture{admin: addr(0xAD), buyer: addr(0xB1), now: t0}
	clock := func() int64 { return f.now }
	f.ledger = token.NewLedger(token.Params{Symbol: "CCTR", Decimals: 7})
	bank := token.NewBank(f.ledger)
	bank.Bind(tx, nil, clock)

	v := vault.NewEngine()
	v.Bind(tx, nil, clock)
	v.SetAssets(bank)
	require.NoError(t, v.Initialize(vault.InitParams{
		Admin:     f.admin,
		Attestors: [][20]byte{addr(0xA7)},
		GlobalCap: big.NewInt(1_000_000),
	}))
	f.treasury = v.Treasury()

	f.nodes = NewEngine()
	f.nodes.Bind(tx, nil, clock)
	f.nodes.SetAssets(bank)
	f.nodes.SetTreasury(f.treasury)
	require.NoError(t, f.nodes.Initialize(InitParams{
		Admin: f.admin,
		Token: "cctr",
		Tiers: []TierConfig{
			{Tier: TierBasic, Price: big.NewInt(100), DailyReward: big.NewInt(5), MaxSupply: 2},
			{Tier: TierPremium, Price: big.NewInt(1000), DailyReward: big.NewInt(60), MaxSupply: 1},
			{Tier: TierLegendary, Price: big.NewInt(1000), DailyReward: big.NewInt(700), MaxSupply: 1},
		},
	}))
	require.NoError(t, f.ledger.Allocate(f.buyer, big.NewInt(10_000)))
	return f
}

func (f *fixture) treasuryBalance(t *testing.T) int64 {
	t.Helper()
	bal, err := f.treasury.Balance("CCTR")
	require.NoError(t, err)
	return bal.Int64()
}

func (f *fixture) balance(t *testing.T, who [20]byte) int64 {
	t.Helper()
	bal, err := f.ledger.Balance(who)
	require.NoError(t, err)
	return bal.Int64()
}

func TestDefaultTiers(t *testing.T) {
	tiers := DefaultTiers()
	require.Len(t, tiers, 3)
	for _, cfg := range tiers {
		require.NoError(t, cfg.Validate())
	}
	require.Equal(t, "10000000000", tiers[0].Price.String())
	require.Equal(t, "50000000", tiers[0].DailyReward.String())
	require.Equal(t, uint64(100), tiers[2].MaxSupply)
}

func TestPurchaseNodeCreditsTreasury(t *testing.T) {
	f := newFixture(t)
	node, err := f.nodes.PurchaseNode(f.buyer, TierBasic)
	require.NoError(t, err)
	require.Equal(t, uint64(1), node.ID)
	require.Equal(t, uint64(t0), node.LastClaim)
	require.Equal(t, int64(9_900), f.balance(t, f.buyer))
	require.Equal(t, int64(100), f.treasuryBalance(t))
	require.Equal(t, int64(100), f.balance(t, f.treasury.Address()))

	_, err = f.nodes.PurchaseNode(f.buyer, TierBasic)
	require.NoError(t, err)
	_, err = f.nodes.PurchaseNode(f.buyer, TierBasic)
	require.ErrorIs(t, err, coreerrors.ErrCapacityExceeded)

	cfg, err := f.nodes.TierConfig(TierBasic)
	require.NoError(t, err)
	require.Equal(t, uint64(2), cfg.Supply)

	_, err = f.nodes.PurchaseNode(addr(0xB2), TierPremium)
	require.ErrorIs(t, err, coreerrors.ErrInsufficientBalance)
	_, err = f.nodes.PurchaseNode(f.buyer, Tier(9))
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)
}

func TestClaimRewardsPaysWholeDaysOnly(t *testing.T) {
	f := newFixture(t)
	_, err := f.nodes.PurchaseNode(f.buyer, TierBasic)
	require.NoError(t, err)

	f.now = t0 + 86_399
	_, err = f.nodes.ClaimRewards(f.buyer)
	require.ErrorIs(t, err, coreerrors.ErrNoRewardsAvailable)

	f.now = t0 + 86_400
	paid, err := f.nodes.ClaimRewards(f.buyer)
	require.NoError(t, err)
	require.Equal(t, int64(5), paid.Int64())
	require.Equal(t, int64(9_905), f.balance(t, f.buyer))
	require.Equal(t, int64(95), f.treasuryBalance(t))

	nodes, err := f.nodes.Nodes(f.buyer)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, uint64(t0+86_400), nodes[0].LastClaim)
	require.Equal(t, int64(5), nodes[0].TotalClaimed.Int64())

	_, err = f.nodes.ClaimRewards(f.buyer)
	require.ErrorIs(t, err, coreerrors.ErrNoRewardsAvailable)
}

func TestClaimRewardsAggregatesAcrossNodes(t *testing.T) {
	f := newFixture(t)
	_, err := f.nodes.PurchaseNode(f.buyer, TierBasic)
	require.NoError(t, err)
	f.now = t0 + 43_200
	_, err = f.nodes.PurchaseNode(f.buyer, TierBasic)
	require.NoError(t, err)

	// Only the first node has completed a day.
	f.now = t0 + 86_400
	pending, err := f.nodes.PendingRewards(f.buyer)
	require.NoError(t, err)
	require.Equal(t, int64(5), pending.Int64())
	paid, err := f.nodes.ClaimRewards(f.buyer)
	require.NoError(t, err)
	require.Equal(t, int64(5), paid.Int64())

	nodes, err := f.nodes.Nodes(f.buyer)
	require.NoError(t, err)
	require.Equal(t, uint64(t0+43_200), nodes[1].LastClaim)

	f.now = t0 + 3*86_400
	pending, err = f.nodes.PendingRewards(f.buyer)
	require.NoError(t, err)
	require.Equal(t, int64(20), pending.Int64())
	paid, err = f.nodes.ClaimRewards(f.buyer)
	require.NoError(t, err)
	require.Equal(t, int64(20), paid.Int64())

	total, err := f.nodes.TotalDistributed()
	require.NoError(t, err)
	require.Equal(t, int64(25), total.Int64())
}

func TestClaimRewardsFailsWithoutNodesOrFunds(t *testing.T) {
	f := newFixture(t)
	_, err := f.nodes.ClaimRewards(f.buyer)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)

	_, err = f.nodes.PurchaseNode(f.buyer, TierLegendary)
	require.NoError(t, err)
	f.now = t0 + 2*86_400
	_, err = f.nodes.ClaimRewards(f.buyer)
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)

	nodes, err := f.nodes.Nodes(f.buyer)
	require.NoError(t, err)
	if nodes[0].LastClaim != uint64(t0) {
		t.Fatalf("failed claim advanced last claim to %d", nodes[0].LastClaim)
	}
}

func TestUpdateTier(t *testing.T) {
	f := newFixture(t)
	_, err := f.nodes.PurchaseNode(f.buyer, TierBasic)
	require.NoError(t, err)

	next := TierConfig{Tier: TierBasic, Price: big.NewInt(200), DailyReward: big.NewInt(7), MaxSupply: 10}
	_, err = f.nodes.UpdateTier(f.buyer, next)
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)

	shrink := next
	shrink.MaxSupply = 0
	_, err = f.nodes.UpdateTier(f.admin, shrink)
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)

	cfg, err := f.nodes.UpdateTier(f.admin, next)
	require.NoError(t, err)
	require.Equal(t, uint64(1), cfg.Supply)

	f.now = t0 + 86_400
	pending, err := f.nodes.PendingRewards(f.buyer)
	require.NoError(t, err)
	require.Equal(t, int64(7), pending.Int64())
}

func TestPausedRejectsPurchases(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.nodes.SetPaused(f.buyer, true), coreerrors.ErrUnauthorized)
	require.NoError(t, f.nodes.SetPaused(f.admin, true))
	_, err := f.nodes.PurchaseNode(f.buyer, TierBasic)
	require.ErrorIs(t, err, coreerrors.ErrContractPaused)
	require.NoError(t, f.nodes.SetPaused(f.admin, false))
	_, err = f.nodes.PurchaseNode(f.buyer, TierBasic)
	require.NoError(t, err)
}

func TestParseTier(t *testing.T) {
	for _, tier := range Tiers() {
		parsed, err := ParseTier(tier.String())
		require.NoError(t, err)
		require.Equal(t, tier, parsed)
	}
	_, err := ParseTier("mythic")
	require.ErrorIs(t, err, coreerrors.ErrInvalidArgument)
}
