package config

// Token configures the CCTR ledger. Amounts are decimal strings in base
// units.
type Token struct {
	Symbol         string       `toml:"Symbol"`
	Name           string       `toml:"Name"`
	Decimals       uint8        `toml:"Decimals"`
	MaxSupply      string       `toml:"MaxSupply"`
	DailyMintLimit string       `toml:"DailyMintLimit"`
	Minters        []string     `toml:"Minters"`
	Burners        []string     `toml:"Burners"`
	Allocations    []Allocation `toml:"allocations"`
}

// Allocation credits a genesis balance.
type Allocation struct {
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// Vault configures the tournament vault and its multisig treasury.
type Vault struct {
	GlobalCap string   `toml:"GlobalCap"`
	Signers   []string `toml:"Signers"`
	Threshold uint32   `toml:"Threshold"`
}

// Hosts configures host staking limits.
type Hosts struct {
	MinStake        string `toml:"MinStake"`
	MaxPayoutPerJob string `toml:"MaxPayoutPerJob"`
}

// NodeTier overrides one node tier.
type NodeTier struct {
	Name        string `toml:"Name"`
	Price       string `toml:"Price"`
	DailyReward string `toml:"DailyReward"`
	MaxSupply   uint64 `toml:"MaxSupply"`
}

// Nodes configures the node system. An empty tier list keeps the launch
// tiers.
type Nodes struct {
	Tiers []NodeTier `toml:"tiers"`
}

// LPPool opens a staking pool at genesis.
type LPPool struct {
	ID                string `toml:"ID"`
	StakeToken        string `toml:"StakeToken"`
	RewardToken       string `toml:"RewardToken"`
	RewardRate        string `toml:"RewardRate"`
	LockPeriodSeconds uint64 `toml:"LockPeriodSeconds"`
}

// LP configures liquidity staking.
type LP struct {
	// StakeTokens lists extra ledgers created for pool stakes.
	StakeTokens []string `toml:"StakeTokens"`
	Pools       []LPPool `toml:"pools"`
}

// Raffle configures the raffle module.
type Raffle struct {
	Token string `toml:"Token"`
}

// Bracket configures entry-fee tournaments.
type Bracket struct {
	Token string `toml:"Token"`
}

// Credits configures the compute-credit ledger. PaymentToken must be the
// main token or one of lp.StakeTokens.
type Credits struct {
	PaymentToken   string   `toml:"PaymentToken"`
	MaxSupply      string   `toml:"MaxSupply"`
	DailyMintLimit string   `toml:"DailyMintLimit"`
	Minters        []string `toml:"Minters"`
	Burners        []string `toml:"Burners"`
}
