package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

// Resolved is a validated genesis with principals and amounts parsed.
type Resolved struct {
	Admin     [20]byte
	Attestors [][20]byte

	Symbol         string
	Name           string
	Decimals       uint8
	MaxSupply      *big.Int
	DailyMintLimit *big.Int
	Minters        [][20]byte
	Burners        [][20]byte
	Allocations    []ResolvedAllocation

	GlobalCap *big.Int
	Signers   [][20]byte
	Threshold uint32

	MinStake        *big.Int
	MaxPayoutPerJob *big.Int

	Tiers       []ResolvedTier
	StakeTokens []string
	Pools       []ResolvedPool

	RaffleToken  string
	BracketToken string

	CreditsToken          string
	CreditsMaxSupply      *big.Int
	CreditsDailyMintLimit *big.Int
	CreditMinters         [][20]byte
	CreditBurners         [][20]byte
}

type ResolvedAllocation struct {
	Address [20]byte
	Amount  *big.Int
}

type ResolvedTier struct {
	Name        string
	Price       *big.Int
	DailyReward *big.Int
	MaxSupply   uint64
}

type ResolvedPool struct {
	ID          string
	StakeToken  string
	RewardToken string
	RewardRate  *big.Int
	LockPeriod  uint64
}

// ParseAmount parses a non-negative base-unit amount. Underscores are
// accepted as digit separators.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	return amount, nil
}

func parsePrincipals(field string, values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	seen := make(map[[20]byte]struct{}, len(values))
	for _, v := range values {
		p, err := crypto.ParsePrincipal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("%s: duplicate principal %s", field, v)
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// Validate checks g and returns the parsed values.
func (g *Genesis) Validate() (*Resolved, error) {
	r := &Resolved{
		Symbol:      g.Token.Symbol,
		Name:        g.Token.Name,
		Decimals:    g.Token.Decimals,
		Threshold:   g.Vault.Threshold,
		RaffleToken:  strings.ToUpper(strings.TrimSpace(g.Raffle.Token)),
		BracketToken: strings.ToUpper(strings.TrimSpace(g.Bracket.Token)),
		CreditsToken: strings.ToUpper(strings.TrimSpace(g.Credits.PaymentToken)),
	}
	var err error
	if strings.TrimSpace(g.Admin) == "" {
		return nil, fmt.Errorf("config: Admin is required")
	}
	if r.Admin, err = crypto.ParsePrincipal(g.Admin); err != nil {
		return nil, fmt.Errorf("config: Admin: %w", err)
	}
	if r.Attestors, err = parsePrincipals("config: Attestors", g.Attestors); err != nil {
		return nil, err
	}
	if len(r.Attestors) == 0 {
		return nil, fmt.Errorf("config: at least one attestor is required")
	}
	if r.Symbol == "" {
		return nil, fmt.Errorf("config: token.Symbol is required")
	}
	if r.MaxSupply, err = ParseAmount(g.Token.MaxSupply); err != nil {
		return nil, fmt.Errorf("config: token.MaxSupply: %w", err)
	}
	if r.DailyMintLimit, err = ParseAmount(g.Token.DailyMintLimit); err != nil {
		return nil, fmt.Errorf("config: token.DailyMintLimit: %w", err)
	}
	if r.Minters, err = parsePrincipals("config: token.Minters", g.Token.Minters); err != nil {
		return nil, err
	}
	if r.Burners, err = parsePrincipals("config: token.Burners", g.Token.Burners); err != nil {
		return nil, err
	}
	allocated := big.NewInt(0)
	for i, a := range g.Token.Allocations {
		addr, err := crypto.ParsePrincipal(a.Address)
		if err != nil {
			return nil, fmt.Errorf("config: token.allocations[%d]: %w", i, err)
		}
		amount, err := ParseAmount(a.Amount)
		if err != nil {
			return nil, fmt.Errorf("config: token.allocations[%d]: %w", i, err)
		}
		allocated.Add(allocated, amount)
		r.Allocations = append(r.Allocations, ResolvedAllocation{Address: addr, Amount: amount})
	}
	if r.MaxSupply.Sign() > 0 && allocated.Cmp(r.MaxSupply) > 0 {
		return nil, fmt.Errorf("config: allocations total %s above max supply %s", allocated, r.MaxSupply)
	}

	if r.GlobalCap, err = ParseAmount(g.Vault.GlobalCap); err != nil {
		return nil, fmt.Errorf("config: vault.GlobalCap: %w", err)
	}
	if r.GlobalCap.Sign() <= 0 {
		return nil, fmt.Errorf("config: vault.GlobalCap must be positive")
	}
	if r.Signers, err = parsePrincipals("config: vault.Signers", g.Vault.Signers); err != nil {
		return nil, err
	}
	if int(r.Threshold) > len(r.Signers) {
		return nil, fmt.Errorf("config: vault.Threshold %d exceeds %d signers", r.Threshold, len(r.Signers))
	}

	if r.MinStake, err = ParseAmount(g.Hosts.MinStake); err != nil {
		return nil, fmt.Errorf("config: hosts.MinStake: %w", err)
	}
	if r.MaxPayoutPerJob, err = ParseAmount(g.Hosts.MaxPayoutPerJob); err != nil {
		return nil, fmt.Errorf("config: hosts.MaxPayoutPerJob: %w", err)
	}
	if r.MaxPayoutPerJob.Sign() <= 0 {
		return nil, fmt.Errorf("config: hosts.MaxPayoutPerJob must be positive")
	}

	for i, t := range g.Nodes.Tiers {
		price, err := ParseAmount(t.Price)
		if err != nil {
			return nil, fmt.Errorf("config: nodes.tiers[%d].Price: %w", i, err)
		}
		reward, err := ParseAmount(t.DailyReward)
		if err != nil {
			return nil, fmt.Errorf("config: nodes.tiers[%d].DailyReward: %w", i, err)
		}
		if price.Sign() <= 0 || t.MaxSupply == 0 {
			return nil, fmt.Errorf("config: nodes.tiers[%d] needs a positive price and max supply", i)
		}
		r.Tiers = append(r.Tiers, ResolvedTier{Name: t.Name, Price: price, DailyReward: reward, MaxSupply: t.MaxSupply})
	}

	for _, sym := range g.LP.StakeTokens {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || sym == r.Symbol {
			return nil, fmt.Errorf("config: lp.StakeTokens entry %q is empty or repeats the main token", sym)
		}
		r.StakeTokens = append(r.StakeTokens, sym)
	}
	for i, p := range g.LP.Pools {
		rate, err := ParseAmount(p.RewardRate)
		if err != nil {
			return nil, fmt.Errorf("config: lp.pools[%d].RewardRate: %w", i, err)
		}
		if strings.TrimSpace(p.ID) == "" || rate.Sign() <= 0 {
			return nil, fmt.Errorf("config: lp.pools[%d] needs an ID and a positive reward rate", i)
		}
		r.Pools = append(r.Pools, ResolvedPool{
			ID:          strings.TrimSpace(p.ID),
			StakeToken:  strings.ToUpper(strings.TrimSpace(p.StakeToken)),
			RewardToken: strings.ToUpper(strings.TrimSpace(p.RewardToken)),
			RewardRate:  rate,
			LockPeriod:  p.LockPeriodSeconds,
		})
	}

	if err := r.resolveCredits(g.Credits); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolved) knownToken(sym string) bool {
	if sym == r.Symbol {
		return true
	}
	for _, s := range r.StakeTokens {
		if s == sym {
			return true
		}
	}
	return false
}

func (r *Resolved) resolveCredits(c Credits) error {
	if !r.knownToken(r.CreditsToken) {
		return fmt.Errorf("config: credits.PaymentToken %q is not a configured ledger", r.CreditsToken)
	}
	if !r.knownToken(r.BracketToken) {
		return fmt.Errorf("config: bracket.Token %q is not a configured ledger", r.BracketToken)
	}
	var err error
	if r.CreditsMaxSupply, err = ParseAmount(c.MaxSupply); err != nil {
		return fmt.Errorf("config: credits.MaxSupply: %w", err)
	}
	if r.CreditsDailyMintLimit, err = ParseAmount(c.DailyMintLimit); err != nil {
		return fmt.Errorf("config: credits.DailyMintLimit: %w", err)
	}
	if r.CreditMinters, err = parsePrincipals("config: credits.Minters", c.Minters); err != nil {
		return err
	}
	if r.CreditBurners, err = parsePrincipals("config: credits.Burners", c.Burners); err != nil {
		return err
	}
	return nil
}
