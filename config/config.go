package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Genesis is the instance configuration applied once when a fresh store is
// initialised. Principals are bech32 arc addresses or 0x hex.
type Genesis struct {
	Admin     string   `toml:"Admin"`
	Attestors []string `toml:"Attestors"`
	Token     Token    `toml:"token"`
	Vault     Vault    `toml:"vault"`
	Hosts     Hosts    `toml:"hosts"`
	Nodes     Nodes    `toml:"nodes"`
	LP        LP       `toml:"lp"`
	Raffle    Raffle   `toml:"raffle"`
	Bracket   Bracket  `toml:"bracket"`
	Credits   Credits  `toml:"credits"`
}

const (
	DefaultSymbol   = "CCTR"
	DefaultName     = "Cyber City Arcade Token"
	DefaultDecimals = 7
	// 1 billion CCTR.
	DefaultMaxSupply = "10000000000000000"
	// 10,000 CCTR.
	DefaultGlobalCap = "100000000000"
	// 1,000 CCTR.
	DefaultMinStake = "10000000000"
	// 500 CCTR.
	DefaultMaxPayoutPerJob = "5000000000"
)

// Load reads the genesis file at path. A missing file is replaced by the
// default configuration, which still needs an admin before it validates.
func Load(path string) (*Genesis, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}
	cfg := &Genesis{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Parse decodes genesis TOML held in memory.
func Parse(data string) (*Genesis, error) {
	cfg := &Genesis{}
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (g *Genesis) applyDefaults() {
	if strings.TrimSpace(g.Token.Symbol) == "" {
		g.Token.Symbol = DefaultSymbol
	}
	g.Token.Symbol = strings.ToUpper(strings.TrimSpace(g.Token.Symbol))
	if g.Token.Name == "" {
		g.Token.Name = DefaultName
	}
	if g.Token.Decimals == 0 {
		g.Token.Decimals = DefaultDecimals
	}
	if g.Token.MaxSupply == "" {
		g.Token.MaxSupply = DefaultMaxSupply
	}
	if g.Vault.GlobalCap == "" {
		g.Vault.GlobalCap = DefaultGlobalCap
	}
	if g.Vault.Threshold == 0 && len(g.Vault.Signers) > 0 {
		g.Vault.Threshold = uint32(len(g.Vault.Signers))
	}
	if g.Hosts.MinStake == "" {
		g.Hosts.MinStake = DefaultMinStake
	}
	if g.Hosts.MaxPayoutPerJob == "" {
		g.Hosts.MaxPayoutPerJob = DefaultMaxPayoutPerJob
	}
	if strings.TrimSpace(g.Raffle.Token) == "" {
		g.Raffle.Token = g.Token.Symbol
	}
	if strings.TrimSpace(g.Bracket.Token) == "" {
		g.Bracket.Token = g.Token.Symbol
	}
	if strings.TrimSpace(g.Credits.PaymentToken) == "" {
		g.Credits.PaymentToken = g.Token.Symbol
	}
	for i := range g.LP.Pools {
		if g.LP.Pools[i].RewardToken == "" {
			g.LP.Pools[i].RewardToken = g.Token.Symbol
		}
	}
}

func createDefault(path string) (*Genesis, error) {
	cfg := &Genesis{Attestors: []string{}}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Genesis) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
