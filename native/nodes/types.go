package nodes

import (
	"fmt"
	"math/big"
	"strings"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
)

// Tier is a node class. Each tier carries its own price, daily reward and
// supply limit.
type Tier uint8

const (
	TierBasic Tier = iota + 1
	TierPremium
	TierLegendary
)

// Tiers lists every tier in ascending order.
func Tiers() []Tier { return []Tier{TierBasic, TierPremium, TierLegendary} }

func (t Tier) String() string {
	switch t {
	case TierBasic:
		return "basic"
	case TierPremium:
		return "premium"
	case TierLegendary:
		return "legendary"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierBasic, TierPremium, TierLegendary:
		return true
	default:
		return false
	}
}

// ParseTier converts the String form back into a Tier.
func ParseTier(value string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "basic":
		return TierBasic, nil
	case "premium":
		return TierPremium, nil
	case "legendary":
		return TierLegendary, nil
	default:
		return 0, fmt.Errorf("nodes: %w: unknown tier %q", coreerrors.ErrInvalidArgument, value)
	}
}

// TierConfig is the stored configuration and sales count of a tier.
type TierConfig struct {
	Tier        Tier
	Price       *big.Int
	DailyReward *big.Int
	MaxSupply   uint64
	Supply      uint64
}

// Validate rejects unusable tier settings.
func (c TierConfig) Validate() error {
	if !c.Tier.Valid() {
		return fmt.Errorf("nodes: %w: tier %s", coreerrors.ErrInvalidArgument, c.Tier)
	}
	if c.Price == nil || c.Price.Sign() <= 0 {
		return fmt.Errorf("nodes: %w: %s price must be positive", coreerrors.ErrInvalidArgument, c.Tier)
	}
	if c.DailyReward == nil || c.DailyReward.Sign() < 0 {
		return fmt.Errorf("nodes: %w: %s daily reward must not be negative", coreerrors.ErrInvalidArgument, c.Tier)
	}
	if c.MaxSupply == 0 {
		return fmt.Errorf("nodes: %w: %s max supply must be positive", coreerrors.ErrInvalidArgument, c.Tier)
	}
	return nil
}

// unit is one whole CCTR at seven decimals.
var unit = big.NewInt(10_000_000)

func cctr(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), unit) }

// DefaultTiers returns the launch configuration.
func DefaultTiers() []TierConfig {
	return []TierConfig{
		{Tier: TierBasic, Price: cctr(1_000), DailyReward: cctr(5), MaxSupply: 5_000},
		{Tier: TierPremium, Price: cctr(10_000), DailyReward: cctr(60), MaxSupply: 2_000},
		{Tier: TierLegendary, Price: cctr(100_000), DailyReward: cctr(700), MaxSupply: 100},
	}
}

// Node is one purchased node. Rewards accrue from LastClaim in whole days.
type Node struct {
	ID           uint64
	Tier         Tier
	PurchasedAt  uint64
	LastClaim    uint64
	TotalClaimed *big.Int
}

// portfolio is the stored list of nodes held by one owner.
type portfolio struct {
	Nodes []Node
}
