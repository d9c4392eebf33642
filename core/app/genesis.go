package app

import (
	"context"
	"fmt"

	"github.com/hustletexas/cyber-arcade-verse-rally/config"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/bracket"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/credits"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/hostrewards"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/lpstaking"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/nodes"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/raffle"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/vault"
)

// InitGenesis applies the genesis configuration in one operation. A store
// that was already initialised fails with ErrAlreadyInitialized and is left
// untouched.
func (a *App) InitGenesis(ctx context.Context) error {
	g := a.genesis
	return a.Execute(ctx, "app.genesis", func(m *Modules) error {
		if err := m.TokenRoles.Initialize(g.Admin); err != nil {
			return err
		}
		for _, minter := range g.Minters {
			if err := m.TokenRoles.Grant(g.Admin, roles.RoleMinter, minter); err != nil {
				return err
			}
		}
		for _, burner := range g.Burners {
			if err := m.TokenRoles.Grant(g.Admin, roles.RoleBurner, burner); err != nil {
				return err
			}
		}
		for _, alloc := range g.Allocations {
			if err := m.Token.Allocate(alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("app: genesis allocation: %w", err)
			}
		}

		if err := m.Vault.Initialize(vault.InitParams{
			Admin:     g.Admin,
			Attestors: g.Attestors,
			GlobalCap: g.GlobalCap,
			Signers:   g.Signers,
			Threshold: g.Threshold,
		}); err != nil {
			return err
		}

		if err := m.Hosts.Initialize(hostrewards.InitParams{
			Admin:     g.Admin,
			Attestors: g.Attestors,
			Token:     a.Symbol(),
			Limits:    hostrewards.Limits{MinStake: g.MinStake, MaxPayoutPerJob: g.MaxPayoutPerJob},
		}); err != nil {
			return err
		}

		tiers, err := nodeTiers(g.Tiers)
		if err != nil {
			return err
		}
		if err := m.Nodes.Initialize(nodes.InitParams{Admin: g.Admin, Token: a.Symbol(), Tiers: tiers}); err != nil {
			return err
		}

		if err := m.LP.Initialize(g.Admin); err != nil {
			return err
		}
		for _, p := range g.Pools {
			if _, err := m.LP.CreatePool(g.Admin, lpstaking.PoolParams{
				ID:          p.ID,
				StakeToken:  p.StakeToken,
				RewardToken: p.RewardToken,
				RewardRate:  p.RewardRate,
				LockPeriod:  p.LockPeriod,
			}); err != nil {
				return err
			}
		}

		if err := m.Raffle.Initialize(raffle.InitParams{
			Admin:     g.Admin,
			Attestors: g.Attestors,
			Token:     g.RaffleToken,
		}); err != nil {
			return err
		}

		if err := m.Results.Initialize(g.Admin, g.Attestors); err != nil {
			return err
		}
		if err := m.Bracket.Initialize(bracket.InitParams{
			Admin:    g.Admin,
			Referees: g.Attestors,
			Token:    orSymbol(g.BracketToken, a.Symbol()),
		}); err != nil {
			return err
		}
		return m.Credits.Initialize(credits.InitParams{
			Admin:        g.Admin,
			Minters:      g.CreditMinters,
			Burners:      g.CreditBurners,
			PaymentToken: orSymbol(g.CreditsToken, a.Symbol()),
			Limits:       credits.Limits{MaxSupply: g.CreditsMaxSupply, DailyMintLimit: g.CreditsDailyMintLimit},
		})
	})
}

func orSymbol(token, fallback string) string {
	if token == "" {
		return fallback
	}
	return token
}

func nodeTiers(in []config.ResolvedTier) ([]nodes.TierConfig, error) {
	out := make([]nodes.TierConfig, 0, len(in))
	for _, t := range in {
		tier, err := nodes.ParseTier(t.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes.TierConfig{
			Tier:        tier,
			Price:       t.Price,
			DailyReward: t.DailyReward,
			MaxSupply:   t.MaxSupply,
		})
	}
	return out, nil
}
