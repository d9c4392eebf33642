package lpstaking

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/accrual"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/escrow"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
)

// Namespace prefixes every key written by the LP staking module.
const Namespace = "lp"

var (
	errNilState  = errors.New("lpstaking: state not configured")
	errNilAssets = errors.New("lpstaking: asset ledger not configured")
)

// Assets moves funds between holders.
type Assets interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// Engine runs staking pools with proportional daily rewards.
type Engine struct {
	state   state.Writer
	assets  Assets
	emitter events.Emitter
	nowFn   func() int64
	roles   *roles.Registry
	escrow  *escrow.Engine
}

// NewEngine creates an LP staking engine. Each pool is an escrow scope that
// accepts top-ups and allows no targeted withdrawals.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		roles:   roles.NewRegistry(Namespace),
		escrow:  escrow.NewEngine(Namespace),
	}
}

// Bind points the engine and its sub-engines at one state transaction,
// emitter and clock.
func (e *Engine) Bind(s state.Writer, emitter events.Emitter, now func() int64) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.state, e.emitter, e.nowFn = s, emitter, now
	e.roles.SetState(s)
	e.roles.SetEmitter(emitter)
	e.escrow.SetState(s)
	e.escrow.SetEmitter(emitter)
	e.escrow.SetNowFunc(now)
}

// SetAssets configures the asset ledger.
func (e *Engine) SetAssets(a Assets) {
	e.assets = a
	e.escrow.SetAssets(a)
}

// Roles exposes the module's role registry.
func (e *Engine) Roles() *roles.Registry { return e.roles }

// ReserveAddress holds funded rewards.
func ReserveAddress() [20]byte { return crypto.ModuleAccount(Namespace, "reserve") }

func poolsKey() []byte { return []byte(Namespace + "/pools") }

func poolKey(id string) []byte { return []byte(Namespace + "/pool/" + id) }

func positionKey(pool string, owner [20]byte) []byte {
	return []byte(Namespace + "/position/" + pool + "/" + hex.EncodeToString(owner[:]))
}

func reserveKey(token string) []byte { return []byte(Namespace + "/reserve/" + token) }

func normalizeToken(token string) string { return strings.ToUpper(strings.TrimSpace(token)) }

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.assets == nil {
		return errNilAssets
	}
	return nil
}

func positive(amount *big.Int, what string) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("lpstaking: %w: %s must be positive", coreerrors.ErrInvalidArgument, what)
	}
	return nil
}

// Initialize sets the admin. It runs once.
func (e *Engine) Initialize(admin [20]byte) error {
	if e.state == nil {
		return errNilState
	}
	return e.roles.Initialize(admin)
}

// Pool returns a pool by id.
func (e *Engine) Pool(id string) (*Pool, error) {
	if e.state == nil {
		return nil, errNilState
	}
	id = strings.TrimSpace(id)
	p := new(Pool)
	ok, err := e.state.KVGet(poolKey(id), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lpstaking: %w: pool %q", coreerrors.ErrNotFound, id)
	}
	return p, nil
}

// Pools lists pool ids in creation order.
func (e *Engine) Pools() ([]string, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(poolsKey(), &raw); err != nil {
		return nil, err
	}
	ids := make([]string, len(raw))
	for i, id := range raw {
		ids[i] = string(id)
	}
	return ids, nil
}

// Position returns owner's stake in pool.
func (e *Engine) Position(pool string, owner [20]byte) (*Position, error) {
	if e.state == nil {
		return nil, errNilState
	}
	pool = strings.TrimSpace(pool)
	pos := new(Position)
	ok, err := e.state.KVGet(positionKey(pool, owner), pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lpstaking: %w: no position for %s in %q", coreerrors.ErrNotFound, crypto.FormatPrincipal(owner), pool)
	}
	return pos, nil
}

// ReserveBalance returns the funded, unpaid rewards in token.
func (e *Engine) ReserveBalance(token string) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return state.LoadBig(e.state, reserveKey(normalizeToken(token)))
}

// Paused reports the circuit breaker.
func (e *Engine) Paused() (bool, error) { return e.roles.Paused() }

// CreatePool opens a staking pool.
func (e *Engine) CreatePool(caller [20]byte, p PoolParams) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	stakeToken, rewardToken := normalizeToken(p.StakeToken), normalizeToken(p.RewardToken)
	if stakeToken == "" || rewardToken == "" {
		return nil, fmt.Errorf("lpstaking: %w: stake and reward tokens required", coreerrors.ErrInvalidArgument)
	}
	if err := positive(p.RewardRate, "reward rate"); err != nil {
		return nil, err
	}
	acc, err := e.escrow.Create(escrow.CreateParams{
		ScopeID:    p.ID,
		Token:      stakeToken,
		PayoutCap:  big.NewInt(0),
		AllowTopUp: true,
	})
	if err != nil {
		return nil, err
	}
	pool := &Pool{
		ID:          acc.ScopeID,
		StakeToken:  stakeToken,
		RewardToken: rewardToken,
		RewardRate:  new(big.Int).Set(p.RewardRate),
		LockPeriod:  p.LockPeriod,
		TotalStaked: big.NewInt(0),
		CreatedAt:   uint64(e.nowFn()),
	}
	if err := e.state.KVPut(poolKey(pool.ID), pool); err != nil {
		return nil, err
	}
	if err := e.state.KVAppend(poolsKey(), []byte(pool.ID)); err != nil {
		return nil, err
	}
	e.emitter.Emit(PoolCreated{Pool: *pool})
	return pool, nil
}

// SetRewardRate changes a pool's daily emission. Unclaimed days accrue at
// the new rate.
func (e *Engine) SetRewardRate(caller [20]byte, id string, rate *big.Int) (*Pool, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := positive(rate, "reward rate"); err != nil {
		return nil, err
	}
	pool, err := e.Pool(id)
	if err != nil {
		return nil, err
	}
	pool.RewardRate = new(big.Int).Set(rate)
	if err := e.state.KVPut(poolKey(pool.ID), pool); err != nil {
		return nil, err
	}
	return pool, nil
}

// FundRewards moves reward tokens from funder into the reserve.
func (e *Engine) FundRewards(funder [20]byte, token string, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := positive(amount, "funding"); err != nil {
		return nil, err
	}
	token = normalizeToken(token)
	if token == "" {
		return nil, fmt.Errorf("lpstaking: %w: token required", coreerrors.ErrInvalidArgument)
	}
	if err := e.assets.Transfer(token, funder, ReserveAddress(), amount); err != nil {
		return nil, err
	}
	balance, err := state.AddBig(e.state, reserveKey(token), amount)
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(RewardsFunded{Funder: funder, Token: token, Amount: new(big.Int).Set(amount), Reserve: balance})
	return balance, nil
}

// Stake deposits amount of the pool's stake token for owner. A top-up keeps
// the position's stake time and last claim.
func (e *Engine) Stake(owner [20]byte, id string, amount *big.Int) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := positive(amount, "stake"); err != nil {
		return nil, err
	}
	pool, err := e.Pool(id)
	if err != nil {
		return nil, err
	}
	if _, err := e.escrow.Deposit(pool.ID, owner, amount); err != nil {
		return nil, err
	}
	pos, err := e.Position(pool.ID, owner)
	switch {
	case errors.Is(err, coreerrors.ErrNotFound):
		now := uint64(e.nowFn())
		pos = &Position{Pool: pool.ID, Owner: owner, Amount: big.NewInt(0), StakedAt: now, LastClaim: now, TotalClaimed: big.NewInt(0)}
	case err != nil:
		return nil, err
	}
	pos.Amount = new(big.Int).Add(pos.Amount, amount)
	pool.TotalStaked = new(big.Int).Add(pool.TotalStaked, amount)
	if err := e.state.KVPut(positionKey(pool.ID, owner), pos); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(poolKey(pool.ID), pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(Staked{Pool: pool.ID, Owner: owner, Amount: new(big.Int).Set(amount), Position: new(big.Int).Set(pos.Amount)})
	return pos, nil
}

// Unstake returns amount of owner's stake once the lock period has passed.
// A position drained to zero is removed.
func (e *Engine) Unstake(owner [20]byte, id string, amount *big.Int) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := positive(amount, "unstake"); err != nil {
		return nil, err
	}
	pool, err := e.Pool(id)
	if err != nil {
		return nil, err
	}
	pos, err := e.Position(pool.ID, owner)
	if err != nil {
		return nil, err
	}
	if now := e.nowFn(); !pos.Unlocked(pool.LockPeriod, now) {
		return nil, fmt.Errorf("lpstaking: %w: stake locked until %d", coreerrors.ErrInvalidArgument, pos.StakedAt+pool.LockPeriod)
	}
	if amount.Cmp(pos.Amount) > 0 {
		return nil, fmt.Errorf("lpstaking: %w: position holds %s", coreerrors.ErrInsufficientFunds, pos.Amount)
	}
	if _, err := e.escrow.WithdrawEntry(pool.ID, owner, amount); err != nil {
		return nil, err
	}
	pos.Amount = new(big.Int).Sub(pos.Amount, amount)
	pool.TotalStaked = new(big.Int).Sub(pool.TotalStaked, amount)
	if pos.Amount.Sign() == 0 {
		if err := e.state.KVDelete(positionKey(pool.ID, owner)); err != nil {
			return nil, err
		}
	} else if err := e.state.KVPut(positionKey(pool.ID, owner), pos); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(poolKey(pool.ID), pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(Unstaked{Pool: pool.ID, Owner: owner, Amount: new(big.Int).Set(amount), Position: new(big.Int).Set(pos.Amount)})
	return pos, nil
}

func holding(pool *Pool, pos *Position) *accrual.Holding {
	return &accrual.Holding{
		ID: pool.ID,
		Schedule: accrual.Proportional{
			PoolDailyRate: pool.RewardRate,
			Amount:        pos.Amount,
			PoolTotal:     pool.TotalStaked,
		},
		LastClaim:  int64(pos.LastClaim),
		Cumulative: pos.TotalClaimed,
	}
}

// PendingRewards returns what owner could claim from pool now.
func (e *Engine) PendingRewards(id string, owner [20]byte) (*big.Int, error) {
	pool, err := e.Pool(id)
	if err != nil {
		return nil, err
	}
	pos, err := e.Position(pool.ID, owner)
	if err != nil {
		return nil, err
	}
	return accrual.Pending(*holding(pool, pos), e.nowFn())
}

// ClaimRewards pays owner's accrued share of the pool emission from the
// reserve.
func (e *Engine) ClaimRewards(owner [20]byte, id string) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	pool, err := e.Pool(id)
	if err != nil {
		return nil, err
	}
	pos, err := e.Position(pool.ID, owner)
	if err != nil {
		return nil, err
	}
	h := holding(pool, pos)
	funder := accrual.FunderFunc(func(to [20]byte, amount *big.Int) error {
		reserve, err := e.ReserveBalance(pool.RewardToken)
		if err != nil {
			return err
		}
		if reserve.Cmp(amount) < 0 {
			return fmt.Errorf("lpstaking: %w: reserve holds %s %s", coreerrors.ErrInsufficientFunds, reserve, pool.RewardToken)
		}
		if err := e.assets.Transfer(pool.RewardToken, ReserveAddress(), to, amount); err != nil {
			return err
		}
		return state.StoreBig(e.state, reserveKey(pool.RewardToken), reserve.Sub(reserve, amount))
	})
	paid, err := accrual.Claim(h, owner, funder, e.nowFn())
	if err != nil {
		return nil, err
	}
	pos.LastClaim = uint64(h.LastClaim)
	pos.TotalClaimed = h.Cumulative
	if err := e.state.KVPut(positionKey(pool.ID, owner), pos); err != nil {
		return nil, err
	}
	e.emitter.Emit(RewardsClaimed{Pool: pool.ID, Owner: owner, Token: pool.RewardToken, Amount: new(big.Int).Set(paid)})
	return paid, nil
}

// RotateAdmin hands the admin capability to next.
func (e *Engine) RotateAdmin(caller, next [20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	return e.roles.RotateAdmin(caller, next)
}

// SetPaused toggles the circuit breaker.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	return e.roles.SetPaused(caller, paused)
}
