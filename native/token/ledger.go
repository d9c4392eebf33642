package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/common"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
)

const mintWindowSeconds = 24 * 60 * 60

var errNilState = errors.New("token: state not configured")

// Params describes a fungible asset.
type Params struct {
	Symbol   string
	Name     string
	Decimals uint8
	// MaxSupply caps total supply. Nil or zero disables the cap.
	MaxSupply *big.Int
	// DailyMintLimit caps minting per UTC day. Nil or zero disables it.
	DailyMintLimit *big.Int
}

type authority interface {
	Require(role string, who [20]byte) error
	Guard() error
}

type storedWindow struct {
	WindowID uint64
	Used     *big.Int
}

// Ledger is the asset ledger for one symbol: balances, supply, allowances and
// privileged mint/burn.
type Ledger struct {
	params  Params
	auth    authority
	state   state.Writer
	emitter events.Emitter
	nowFn   func() int64
}

// NewLedger constructs a ledger for params. The symbol is upper-cased.
func NewLedger(params Params) *Ledger {
	params.Symbol = NormalizeSymbol(params.Symbol)
	return &Ledger{
		params:  params,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// NormalizeSymbol trims and upper-cases a token symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(s state.Writer) { l.state = s }

// SetAuthority wires the role registry consulted for mint, burn and pause.
func (l *Ledger) SetAuthority(auth authority) { l.auth = auth }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the time source used for the daily mint window.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// Params returns the ledger configuration.
func (l *Ledger) Params() Params { return l.params }

// Symbol returns the normalized token symbol.
func (l *Ledger) Symbol() string { return l.params.Symbol }

func (l *Ledger) balanceKey(addr [20]byte) []byte {
	return append([]byte("token/"+l.params.Symbol+"/balance/"), addr[:]...)
}

func (l *Ledger) supplyKey() []byte { return []byte("token/" + l.params.Symbol + "/supply") }

func (l *Ledger) mintWindowKey() []byte { return []byte("token/" + l.params.Symbol + "/mint-window") }

func (l *Ledger) allowanceKey(owner, spender [20]byte) []byte {
	key := append([]byte("token/"+l.params.Symbol+"/allowance/"), owner[:]...)
	return append(key, spender[:]...)
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token: %w: amount must not be negative", coreerrors.ErrInvalidArgument)
	}
	return nil
}

// Balance returns the balance held by addr.
func (l *Ledger) Balance(addr [20]byte) (*big.Int, error) {
	if l.state == nil {
		return nil, errNilState
	}
	return state.LoadBig(l.state, l.balanceKey(addr))
}

// TotalSupply returns the circulating supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if l.state == nil {
		return nil, errNilState
	}
	return state.LoadBig(l.state, l.supplyKey())
}

func (l *Ledger) guard() error {
	if l.auth == nil {
		return nil
	}
	return l.auth.Guard()
}

// Transfer moves amount from one holder to another. It fails without effect
// when the sender's balance is insufficient. Zero transfers are no-ops.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l.state == nil {
		return errNilState
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := l.guard(); err != nil {
		return err
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBal, err := l.Balance(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("token: %w: %s has %s, needs %s", coreerrors.ErrInsufficientBalance, l.params.Symbol, fromBal, amount)
	}
	toBal, err := l.Balance(to)
	if err != nil {
		return err
	}
	if err := state.StoreBig(l.state, l.balanceKey(from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := state.StoreBig(l.state, l.balanceKey(to), new(big.Int).Add(toBal, amount)); err != nil {
		return err
	}
	l.emitter.Emit(Transferred{Symbol: l.params.Symbol, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Mint creates amount for to. The caller must hold the minter role; the
// maximum supply and the daily mint limit both apply.
func (l *Ledger) Mint(caller, to [20]byte, amount *big.Int) error {
	if l.auth == nil {
		return fmt.Errorf("token: %w: no mint authority configured", coreerrors.ErrUnauthorized)
	}
	if err := l.guard(); err != nil {
		return err
	}
	if err := l.auth.Require(roles.RoleMinter, caller); err != nil {
		return err
	}
	return l.issue(to, amount, true)
}

// Allocate credits a genesis allocation. It bypasses roles and the daily mint
// window but still honours the maximum supply.
func (l *Ledger) Allocate(to [20]byte, amount *big.Int) error {
	return l.issue(to, amount, false)
}

func (l *Ledger) issue(to [20]byte, amount *big.Int, windowed bool) error {
	if l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("token: %w: mint amount must be positive", coreerrors.ErrInvalidArgument)
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	nextSupply := new(big.Int).Add(supply, amount)
	if max := l.params.MaxSupply; max != nil && max.Sign() > 0 && nextSupply.Cmp(max) > 0 {
		return fmt.Errorf("token: %w: max supply %s", coreerrors.ErrCapacityExceeded, max)
	}
	if windowed {
		var prev storedWindow
		if _, err := l.state.KVGet(l.mintWindowKey(), &prev); err != nil {
			return err
		}
		usage, err := common.CheckWindow(l.params.DailyMintLimit, common.WindowID(l.nowFn(), mintWindowSeconds),
			common.WindowUsage{WindowID: prev.WindowID, Used: prev.Used}, amount)
		if err != nil {
			return fmt.Errorf("token: %w: daily mint limit %s", coreerrors.ErrCapacityExceeded, l.params.DailyMintLimit)
		}
		if err := l.state.KVPut(l.mintWindowKey(), storedWindow{WindowID: usage.WindowID, Used: usage.Used}); err != nil {
			return err
		}
	}
	balance, err := l.Balance(to)
	if err != nil {
		return err
	}
	if err := state.StoreBig(l.state, l.balanceKey(to), balance.Add(balance, amount)); err != nil {
		return err
	}
	if err := state.StoreBig(l.state, l.supplyKey(), nextSupply); err != nil {
		return err
	}
	l.emitter.Emit(Minted{Symbol: l.params.Symbol, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Burn destroys amount held by from. Holders may burn their own balance; the
// burner role may burn from any holder.
func (l *Ledger) Burn(caller, from [20]byte, amount *big.Int) error {
	if l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("token: %w: burn amount must be positive", coreerrors.ErrInvalidArgument)
	}
	if err := l.guard(); err != nil {
		return err
	}
	if caller != from {
		if l.auth == nil {
			return fmt.Errorf("token: %w: no burn authority configured", coreerrors.ErrUnauthorized)
		}
		if err := l.auth.Require(roles.RoleBurner, caller); err != nil {
			return err
		}
	}
	balance, err := l.Balance(from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("token: %w: burn exceeds balance", coreerrors.ErrInsufficientBalance)
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	if err := state.StoreBig(l.state, l.balanceKey(from), balance.Sub(balance, amount)); err != nil {
		return err
	}
	if err := state.StoreBig(l.state, l.supplyKey(), supply.Sub(supply, amount)); err != nil {
		return err
	}
	l.emitter.Emit(Burned{Symbol: l.params.Symbol, From: from, Amount: new(big.Int).Set(amount)})
	return nil
}

// Allowance returns how much spender may move on behalf of owner.
func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if l.state == nil {
		return nil, errNilState
	}
	return state.LoadBig(l.state, l.allowanceKey(owner, spender))
}

// Approve sets the allowance of spender over owner's balance.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	if l.state == nil {
		return errNilState
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := l.guard(); err != nil {
		return err
	}
	if err := state.StoreBig(l.state, l.allowanceKey(owner, spender), amount); err != nil {
		return err
	}
	l.emitter.Emit(Approved{Symbol: l.params.Symbol, Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferFrom moves amount from owner to to using spender's allowance.
func (l *Ledger) TransferFrom(spender, owner, to [20]byte, amount *big.Int) error {
	allowance, err := l.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("token: %w: allowance %s below %s", coreerrors.ErrInsufficientBalance, allowance, amount)
	}
	if err := l.Transfer(owner, to, amount); err != nil {
		return err
	}
	return state.StoreBig(l.state, l.allowanceKey(owner, spender), allowance.Sub(allowance, amount))
}
