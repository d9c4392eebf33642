package app

import (
	"context"
	"fmt"

	"github.com/hustletexas/cyber-arcade-verse-rally/config"
	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/host"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/attestation"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/bracket"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/credits"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/hostrewards"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/lpstaking"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/nodes"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/raffle"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/token"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/vault"
)

// TokenNamespace scopes the minter and burner registry shared by every
// ledger.
const TokenNamespace = "token"

// Modules is one operation's view of every engine, bound to the same state
// overlay, event buffer and clock.
type Modules struct {
	Bank       *token.Bank
	Token      *token.Ledger
	TokenRoles *roles.Registry
	Vault      *vault.Engine
	Hosts      *hostrewards.Engine
	Nodes      *nodes.Engine
	LP         *lpstaking.Engine
	Raffle     *raffle.Engine
	Results    *attestation.Engine
	Bracket    *bracket.Engine
	Credits    *credits.Engine
}

// App composes the protocol modules over a host runtime. Engines are
// constructed per call so concurrent queries never share bound state.
type App struct {
	runtime *host.Runtime
	genesis *config.Resolved
}

// New returns an App executing through rt. genesis supplies the ledger
// parameters and the one-time initial state.
func New(rt *host.Runtime, genesis *config.Resolved) (*App, error) {
	if rt == nil {
		return nil, fmt.Errorf("app: %w: runtime required", coreerrors.ErrInvalidArgument)
	}
	if genesis == nil {
		return nil, fmt.Errorf("app: %w: genesis required", coreerrors.ErrInvalidArgument)
	}
	return &App{runtime: rt, genesis: genesis}, nil
}

// Runtime exposes the underlying host runtime.
func (a *App) Runtime() *host.Runtime { return a.runtime }

// Symbol returns the main token symbol.
func (a *App) Symbol() string { return token.NormalizeSymbol(a.genesis.Symbol) }

func (a *App) ledgers() []*token.Ledger {
	main := token.NewLedger(token.Params{
		Symbol:         a.genesis.Symbol,
		Name:           a.genesis.Name,
		Decimals:       a.genesis.Decimals,
		MaxSupply:      a.genesis.MaxSupply,
		DailyMintLimit: a.genesis.DailyMintLimit,
	})
	out := []*token.Ledger{main}
	for _, sym := range a.genesis.StakeTokens {
		out = append(out, token.NewLedger(token.Params{Symbol: sym, Name: sym, Decimals: a.genesis.Decimals}))
	}
	return out
}

func (a *App) bind(tx *host.Tx) *Modules {
	s, emitter, now := tx.State(), tx.Emitter(), tx.Now

	ledgers := a.ledgers()
	tokenRoles := roles.NewRegistry(TokenNamespace)
	tokenRoles.SetState(s)
	tokenRoles.SetEmitter(emitter)
	for _, l := range ledgers {
		l.SetAuthority(tokenRoles)
	}
	bank := token.NewBank(ledgers...)
	bank.Bind(s, emitter, now)

	m := &Modules{
		Bank:       bank,
		Token:      ledgers[0],
		TokenRoles: tokenRoles,
		Vault:      vault.NewEngine(),
		Hosts:      hostrewards.NewEngine(),
		Nodes:      nodes.NewEngine(),
		LP:         lpstaking.NewEngine(),
		Raffle:     raffle.NewEngine(),
		Results:    attestation.NewEngine(),
		Bracket:    bracket.NewEngine(),
		Credits:    credits.NewEngine(),
	}
	m.Vault.Bind(s, emitter, now)
	m.Vault.SetAssets(bank)
	treasury := m.Vault.Treasury()

	m.Hosts.Bind(s, emitter, now)
	m.Hosts.SetAssets(bank)

	m.Nodes.Bind(s, emitter, now)
	m.Nodes.SetAssets(bank)
	m.Nodes.SetTreasury(treasury)

	m.LP.Bind(s, emitter, now)
	m.LP.SetAssets(bank)

	m.Raffle.Bind(s, emitter, now)
	m.Raffle.SetAssets(bank)
	m.Raffle.SetTreasury(treasury)
	m.Raffle.SetSequenceFunc(tx.Sequence)

	m.Results.Bind(s, emitter, now)

	m.Bracket.Bind(s, emitter, now)
	m.Bracket.SetAssets(bank)
	m.Bracket.SetTreasury(treasury)

	m.Credits.Bind(s, emitter, now)
	m.Credits.SetAssets(bank)
	m.Credits.SetTreasury(treasury)
	return m
}

// Execute runs fn as one atomic operation. Nothing fn wrote survives an
// error.
func (a *App) Execute(ctx context.Context, op string, fn func(*Modules) error) error {
	return a.runtime.Execute(ctx, op, func(tx *host.Tx) error {
		return fn(a.bind(tx))
	})
}

// Query runs fn against committed state and discards any writes.
func (a *App) Query(ctx context.Context, op string, fn func(*Modules) error) error {
	return a.runtime.Query(ctx, op, func(tx *host.Tx) error {
		return fn(a.bind(tx))
	})
}

// Initialized reports whether the genesis state has been applied.
func (a *App) Initialized(ctx context.Context) (bool, error) {
	var done bool
	err := a.Query(ctx, "app.initialized", func(m *Modules) error {
		var err error
		done, err = m.Vault.Roles().Initialized()
		return err
	})
	return done, err
}

// Admin returns the vault admin, the principal operator controls act as.
func (a *App) Admin(ctx context.Context) ([20]byte, error) {
	var admin [20]byte
	err := a.Query(ctx, "app.admin", func(m *Modules) error {
		var err error
		admin, err = m.Vault.Roles().Admin()
		return err
	})
	return admin, err
}

// Paused reports the pause flag of every module keyed by namespace.
func (a *App) Paused(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool, 9)
	err := a.Query(ctx, "app.paused", func(m *Modules) error {
		for ns, view := range m.pauseViews() {
			paused, err := view.Paused()
			if err != nil {
				return err
			}
			out[ns] = paused
		}
		return nil
	})
	return out, err
}

// SetPaused toggles every module in one operation. The caller must be the
// admin of each.
func (a *App) SetPaused(ctx context.Context, caller [20]byte, paused bool) error {
	op := "app.resume"
	if paused {
		op = "app.pause"
	}
	return a.Execute(ctx, op, func(m *Modules) error {
		for _, toggle := range []func([20]byte, bool) error{
			m.TokenRoles.SetPaused,
			m.Vault.SetPaused,
			m.Hosts.SetPaused,
			m.Nodes.SetPaused,
			m.LP.SetPaused,
			m.Raffle.SetPaused,
			m.Results.SetPaused,
			m.Bracket.SetPaused,
			m.Credits.SetPaused,
		} {
			if err := toggle(caller, paused); err != nil {
				return err
			}
		}
		return nil
	})
}

type pauseView interface {
	Paused() (bool, error)
}

func (m *Modules) pauseViews() map[string]pauseView {
	return map[string]pauseView{
		TokenNamespace:        m.TokenRoles,
		vault.Namespace:       m.Vault,
		hostrewards.Namespace: m.Hosts,
		nodes.Namespace:       m.Nodes,
		lpstaking.Namespace:   m.LP,
		raffle.Namespace:      m.Raffle,
		attestation.Namespace: m.Results,
		bracket.Namespace:     m.Bracket,
		credits.Namespace:     m.Credits,
	}
}
