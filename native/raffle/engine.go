package raffle

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/escrow"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
)

// Namespace prefixes every key written by the raffle module.
const Namespace = "raffle"

var (
	errNilState    = errors.New("raffle: state not configured")
	errNilAssets   = errors.New("raffle: asset ledger not configured")
	errNilTreasury = errors.New("raffle: treasury not configured")
)

// Assets moves funds between holders.
type Assets interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// Treasury receives the draw fee.
type Treasury interface {
	Address() [20]byte
	Credit(token string, amount *big.Int) error
}

// InitParams seeds the raffle module.
type InitParams struct {
	Admin     [20]byte
	Attestors [][20]byte
	Token     string
}

// Engine sells raffle tickets into escrow and pays the drawn winner.
type Engine struct {
	state      state.Writer
	assets     Assets
	treasury   Treasury
	emitter    events.Emitter
	nowFn      func() int64
	sequenceFn func() uint64
	roles      *roles.Registry
	escrow     *escrow.Engine
}

// NewEngine creates a raffle engine with a no-op emitter and a zero
// sequence source.
func NewEngine() *Engine {
	return &Engine{
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
		sequenceFn: func() uint64 { return 0 },
		roles:      roles.NewRegistry(Namespace),
		escrow:     escrow.NewEngine(Namespace),
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

// SetSequenceFunc configures the commit sequence mixed into the draw seed.
func (e *Engine) SetSequenceFunc(fn func() uint64) {
	if fn == nil {
		fn = func() uint64 { return 0 }
	}
	e.sequenceFn = fn
}

// SetAssets configures the asset ledger.
func (e *Engine) SetAssets(a Assets) {
	e.assets = a
	e.escrow.SetAssets(a)
}

// SetTreasury configures the treasury receiving draw fees.
func (e *Engine) SetTreasury(t Treasury) { e.treasury = t }

// Roles exposes the module's role registry.
func (e *Engine) Roles() *roles.Registry { return e.roles }

func tokenKey() []byte    { return []byte(Namespace + "/config/token") }
func sequenceKey() []byte { return []byte(Namespace + "/count") }

func raffleKey(id uint64) []byte {
	return []byte(Namespace + "/raffle/" + strconv.FormatUint(id, 10))
}

func holdersKey(id uint64) []byte {
	return []byte(Namespace + "/holders/" + strconv.FormatUint(id, 10))
}

func ticketsKey(id uint64, owner [20]byte) []byte {
	return []byte(Namespace + "/tickets/" + strconv.FormatUint(id, 10) + "/" + hex.EncodeToString(owner[:]))
}

// ScopeID is the escrow scope holding a raffle's ticket sales.
func ScopeID(id uint64) string { return "raffle-" + strconv.FormatUint(id, 10) }

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.assets == nil {
		return errNilAssets
	}
	if e.treasury == nil {
		return errNilTreasury
	}
	return nil
}

// Initialize sets the admin, the attestors allowed to draw and the default
// ticket token. It runs once.
func (e *Engine) Initialize(p InitParams) error {
	if e.state == nil {
		return errNilState
	}
	token := strings.ToUpper(strings.TrimSpace(p.Token))
	if token == "" {
		return fmt.Errorf("raffle: %w: token required", coreerrors.ErrInvalidArgument)
	}
	if err := e.roles.Initialize(p.Admin); err != nil {
		return err
	}
	if len(p.Attestors) > 0 {
		if err := e.roles.Replace(p.Admin, roles.RoleAttestor, p.Attestors); err != nil {
			return err
		}
	}
	return e.state.KVPut(tokenKey(), token)
}

// Token returns the default ticket token.
func (e *Engine) Token() (string, error) {
	if e.state == nil {
		return "", errNilState
	}
	var token string
	ok, err := e.state.KVGet(tokenKey(), &token)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("raffle: %w", coreerrors.ErrNotInitialized)
	}
	return token, nil
}

// Count returns the number of raffles created.
func (e *Engine) Count() (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	return state.LoadUint64(e.state, sequenceKey())
}

// Raffle returns a raffle by id.
func (e *Engine) Raffle(id uint64) (*Raffle, error) {
	if e.state == nil {
		return nil, errNilState
	}
	r := new(Raffle)
	ok, err := e.state.KVGet(raffleKey(id), r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("raffle: %w: raffle %d", coreerrors.ErrNotFound, id)
	}
	return r, nil
}

// Tickets returns the tickets owner holds in raffle id. Holders without
// tickets get an empty record.
func (e *Engine) Tickets(id uint64, owner [20]byte) (*Tickets, error) {
	if e.state == nil {
		return nil, errNilState
	}
	t := &Tickets{RaffleID: id}
	if _, err := e.state.KVGet(ticketsKey(id, owner), t); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) holders(id uint64) ([][20]byte, error) {
	list := new(holderList)
	if _, err := e.state.KVGet(holdersKey(id), list); err != nil {
		return nil, err
	}
	return list.Holders, nil
}

// Paused reports the circuit breaker.
func (e *Engine) Paused() (bool, error) { return e.roles.Paused() }

// CreateRaffle opens a raffle under the next id.
func (e *Engine) CreateRaffle(caller [20]byte, p Params) (*Raffle, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if p.TicketPrice == nil || p.TicketPrice.Sign() <= 0 {
		return nil, fmt.Errorf("raffle: %w: ticket price must be positive", coreerrors.ErrInvalidArgument)
	}
	if p.MaxTickets == 0 {
		return nil, fmt.Errorf("raffle: %w: max tickets must be positive", coreerrors.ErrInvalidArgument)
	}
	now := e.nowFn()
	if p.EndTime <= now {
		return nil, fmt.Errorf("raffle: %w: end time %d not after %d", coreerrors.ErrInvalidArgument, p.EndTime, now)
	}
	if p.PrizeValue != nil && p.PrizeValue.Sign() < 0 {
		return nil, fmt.Errorf("raffle: %w: prize value must not be negative", coreerrors.ErrInvalidArgument)
	}
	token := strings.ToUpper(strings.TrimSpace(p.Token))
	if token == "" {
		var err error
		if token, err = e.Token(); err != nil {
			return nil, err
		}
	}
	id, err := state.NextSequence(e.state, sequenceKey())
	if err != nil {
		return nil, err
	}
	capacity := new(big.Int).Mul(p.TicketPrice, big.NewInt(int64(p.MaxTickets)))
	if _, err := e.escrow.Create(escrow.CreateParams{
		ScopeID:    ScopeID(id),
		Token:      token,
		PayoutCap:  capacity,
		EntryFee:   p.TicketPrice,
		AllowTopUp: true,
	}); err != nil {
		return nil, err
	}
	prize := big.NewInt(0)
	if p.PrizeValue != nil {
		prize.Set(p.PrizeValue)
	}
	r := &Raffle{
		ID:          id,
		Name:        strings.TrimSpace(p.Name),
		Token:       token,
		TicketPrice: new(big.Int).Set(p.TicketPrice),
		MaxTickets:  p.MaxTickets,
		PrizeValue:  prize,
		EndTime:     uint64(p.EndTime),
		Active:      true,
		CreatedAt:   uint64(now),
	}
	if err := e.state.KVPut(raffleKey(id), r); err != nil {
		return nil, err
	}
	e.emitter.Emit(Created{Raffle: *r})
	return r, nil
}

// BuyTickets sells quantity tickets to buyer, escrowing their price.
func (e *Engine) BuyTickets(buyer [20]byte, id uint64, quantity uint32) (*Tickets, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if quantity == 0 {
		return nil, fmt.Errorf("raffle: %w: quantity must be positive", coreerrors.ErrInvalidArgument)
	}
	r, err := e.Raffle(id)
	if err != nil {
		return nil, err
	}
	if !r.Active {
		return nil, fmt.Errorf("raffle: %w: raffle %d is closed", coreerrors.ErrFinalized, id)
	}
	if now := e.nowFn(); now > int64(r.EndTime) {
		return nil, fmt.Errorf("raffle: %w: raffle %d ended at %d", coreerrors.ErrDeadlineExceeded, id, r.EndTime)
	}
	if uint64(r.TicketsSold)+uint64(quantity) > uint64(r.MaxTickets) {
		return nil, fmt.Errorf("raffle: %w: %d of %d tickets left", coreerrors.ErrCapacityExceeded, r.MaxTickets-r.TicketsSold, r.MaxTickets)
	}
	cost := new(big.Int).Mul(r.TicketPrice, big.NewInt(int64(quantity)))
	if _, err := e.escrow.Deposit(ScopeID(id), buyer, cost); err != nil {
		return nil, err
	}
	first := r.TicketsSold + 1
	r.TicketsSold += quantity
	if err := e.state.KVPut(raffleKey(id), r); err != nil {
		return nil, err
	}
	tickets, err := e.Tickets(id, buyer)
	if err != nil {
		return nil, err
	}
	tickets.Count += quantity
	tickets.Ranges = append(tickets.Ranges, TicketRange{First: first, Count: quantity})
	if err := e.state.KVPut(ticketsKey(id, buyer), tickets); err != nil {
		return nil, err
	}
	holders, err := e.holders(id)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < quantity; i++ {
		holders = append(holders, buyer)
	}
	if err := e.state.KVPut(holdersKey(id), &holderList{Holders: holders}); err != nil {
		return nil, err
	}
	e.emitter.Emit(TicketsPurchased{RaffleID: id, Buyer: buyer, First: first, Quantity: quantity, Cost: cost})
	return tickets, nil
}

func (e *Engine) requireDrawer(caller [20]byte) error {
	admin, err := e.roles.Admin()
	if err != nil {
		return err
	}
	if caller == admin {
		return nil
	}
	return e.roles.Require(roles.RoleAttestor, caller)
}

// DrawWinner picks a ticket holder, pays them WinnerShare percent of the
// sales and sends the rest to the treasury. See Seed for the limits of the
// randomness.
func (e *Engine) DrawWinner(caller [20]byte, id uint64) (*Result, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.requireDrawer(caller); err != nil {
		return nil, err
	}
	r, err := e.Raffle(id)
	if err != nil {
		return nil, err
	}
	if r.Drawn {
		return nil, fmt.Errorf("raffle: %w: raffle %d already drawn", coreerrors.ErrAlreadyExecuted, id)
	}
	if r.Cancelled {
		return nil, fmt.Errorf("raffle: %w: raffle %d cancelled", coreerrors.ErrFinalized, id)
	}
	holders, err := e.holders(id)
	if err != nil {
		return nil, err
	}
	if len(holders) == 0 {
		return nil, fmt.Errorf("raffle: %w: no tickets sold in raffle %d", coreerrors.ErrNotFound, id)
	}
	idx := Index(Seed(e.nowFn(), e.sequenceFn(), r.TicketsSold), len(holders))
	winner := holders[idx]
	prize, fee := Split(r.Pool())
	scope := ScopeID(id)
	if prize.Sign() > 0 {
		if _, err := e.escrow.WithdrawTargeted(scope, winner, prize); err != nil {
			return nil, err
		}
	}
	if fee.Sign() > 0 {
		if _, err := e.escrow.WithdrawTargeted(scope, e.treasury.Address(), fee); err != nil {
			return nil, err
		}
		if err := e.treasury.Credit(r.Token, fee); err != nil {
			return nil, err
		}
	}
	if _, err := e.escrow.Finalize(scope); err != nil {
		return nil, err
	}
	r.Winner, r.Drawn, r.Active = winner, true, false
	if err := e.state.KVPut(raffleKey(id), r); err != nil {
		return nil, err
	}
	res := &Result{RaffleID: id, Winner: winner, Index: idx, Prize: prize, Fee: fee}
	e.emitter.Emit(WinnerDrawn{Result: *res})
	return res, nil
}

// CancelRaffle refunds every ticket and closes the raffle.
func (e *Engine) CancelRaffle(caller [20]byte, id uint64) (*Raffle, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	r, err := e.Raffle(id)
	if err != nil {
		return nil, err
	}
	if r.Drawn || r.Cancelled {
		return nil, fmt.Errorf("raffle: %w: raffle %d is closed", coreerrors.ErrFinalized, id)
	}
	if r.TicketsSold > 0 {
		if _, err := e.escrow.RefundAll(ScopeID(id)); err != nil {
			return nil, err
		}
	} else if _, err := e.escrow.Finalize(ScopeID(id)); err != nil {
		return nil, err
	}
	r.Active, r.Cancelled = false, true
	if err := e.state.KVPut(raffleKey(id), r); err != nil {
		return nil, err
	}
	e.emitter.Emit(Cancelled{RaffleID: id, Refunded: r.Pool()})
	return r, nil
}

// SetAttestors replaces the keys allowed to draw.
func (e *Engine) SetAttestors(caller [20]byte, keys [][20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	return e.roles.Replace(caller, roles.RoleAttestor, keys)
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

