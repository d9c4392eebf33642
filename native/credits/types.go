package credits

import (
	"fmt"
	"math/big"
	"strings"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
)

// Activity is a rewarded in-arcade action.
type Activity uint8

const (
	ActivityGamePlay Activity = iota
	ActivityRadioListen
	ActivityChatMessage
	ActivityGameWin
	ActivityAchievement
)

var activityNames = []string{"gameplay", "radio-listen", "chat-message", "game-win", "achievement"}

func (a Activity) String() string {
	if int(a) < len(activityNames) {
		return activityNames[a]
	}
	return "unknown"
}

// ParseActivity decodes an activity name.
func ParseActivity(value string) (Activity, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for i, name := range activityNames {
		if v == name {
			return Activity(i), nil
		}
	}
	return 0, fmt.Errorf("credits: %w: unknown activity %q", coreerrors.ErrInvalidArgument, value)
}

// ActivityConfig rate-limits one activity. A zero cooldown allows back to
// back rewards; a zero daily cap disables the per-day count.
type ActivityConfig struct {
	Reward   *big.Int
	Cooldown uint64
	DailyCap uint32
}

// Package is a purchasable credit bundle.
type Package struct {
	ID      uint32
	Credits *big.Int
	Price   *big.Int
	Bonus   *big.Int
	Active  bool
}

// Total returns the credits a purchase of the package mints.
func (p *Package) Total() *big.Int { return new(big.Int).Add(p.Credits, p.Bonus) }

// Limits bound issuance. Nil or zero values disable a limit.
type Limits struct {
	MaxSupply *big.Int
	// DailyMintLimit caps what minters may issue to one user per day.
	DailyMintLimit *big.Int
}

// Account is a user's credit balance and lifetime totals.
type Account struct {
	Balance        *big.Int
	LifetimeEarned *big.Int
	LifetimeSpent  *big.Int
	LastActivity   uint64
}

func newAccount() *Account {
	return &Account{Balance: big.NewInt(0), LifetimeEarned: big.NewInt(0), LifetimeSpent: big.NewInt(0)}
}

type activityState struct {
	LastAt uint64
	Day    uint64
	Count  uint32
}

type storedWindow struct {
	WindowID uint64
	Used     *big.Int
}

const unit = 10_000_000

func units(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), big.NewInt(unit)) }

// DefaultActivities is the launch reward table in base units.
func DefaultActivities() map[Activity]ActivityConfig {
	return map[Activity]ActivityConfig{
		ActivityGamePlay:    {Reward: units(2), Cooldown: 60, DailyCap: 20},
		ActivityRadioListen: {Reward: units(1), Cooldown: 300, DailyCap: 10},
		ActivityChatMessage: {Reward: units(1), Cooldown: 120, DailyCap: 15},
		ActivityGameWin:     {Reward: units(5), DailyCap: 10},
		ActivityAchievement: {Reward: units(10), DailyCap: 5},
	}
}

// DefaultPackages is the launch bundle list. Prices are in the payment
// token's base units.
func DefaultPackages() []Package {
	return []Package{
		{Credits: units(100), Price: units(1), Bonus: big.NewInt(0), Active: true},
		{Credits: units(500), Price: big.NewInt(45_000_000), Bonus: units(50), Active: true},
		{Credits: units(1000), Price: units(8), Bonus: units(200), Active: true},
	}
}
