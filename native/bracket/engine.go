package bracket

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/escrow"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
)

// Namespace prefixes every key written by the bracket module.
const Namespace = "bracket"

var (
	errNilState    = errors.New("bracket: state not configured")
	errNilAssets   = errors.New("bracket: asset ledger not configured")
	errNilTreasury = errors.New("bracket: treasury not configured")
)

// Assets moves funds between holders.
type Assets interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// Treasury receives the house share of each prize pool.
type Treasury interface {
	Address() [20]byte
	Credit(token string, amount *big.Int) error
}

// InitParams seeds the bracket module.
type InitParams struct {
	Admin [20]byte
	// Referees may record scores and complete tournaments beside the admin.
	Referees [][20]byte
	Token    string
}

// Engine runs entry-fee tournaments whose pools are held in escrow.
type Engine struct {
	state    state.Writer
	assets   Assets
	treasury Treasury
	emitter  events.Emitter
	nowFn    func() int64
	roles    *roles.Registry
	escrow   *escrow.Engine
}

// NewEngine creates a bracket engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		roles:   roles.NewRegistry(Namespace),
		escrow:  escrow.NewEngine(Namespace),
	}
}

// Bind points the engine and its escrow at one state transaction, emitter
// and clock.
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

// SetTreasury configures the treasury receiving the house share.
func (e *Engine) SetTreasury(t Treasury) { e.treasury = t }

// Roles exposes the module's role registry.
func (e *Engine) Roles() *roles.Registry { return e.roles }

// Escrow exposes the escrow holding entry fees.
func (e *Engine) Escrow() *escrow.Engine { return e.escrow }

func tokenKey() []byte    { return []byte(Namespace + "/config/token") }
func sequenceKey() []byte { return []byte(Namespace + "/count") }

func tournamentKey(id uint64) []byte {
	return []byte(Namespace + "/tournament/" + strconv.FormatUint(id, 10))
}

func playersKey(id uint64) []byte {
	return []byte(Namespace + "/players/" + strconv.FormatUint(id, 10))
}

func entryKey(id uint64, player [20]byte) []byte {
	return []byte(Namespace + "/entry/" + strconv.FormatUint(id, 10) + "/" + hex.EncodeToString(player[:]))
}

// ScopeID is the escrow scope holding a tournament's entry fees.
func ScopeID(id uint64) string { return "bracket-" + strconv.FormatUint(id, 10) }

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

// Initialize sets the admin, the referees and the default entry token. It
// runs once.
func (e *Engine) Initialize(p InitParams) error {
	if e.state == nil {
		return errNilState
	}
	token := strings.ToUpper(strings.TrimSpace(p.Token))
	if token == "" {
		return fmt.Errorf("bracket: %w: token required", coreerrors.ErrInvalidArgument)
	}
	if err := e.roles.Initialize(p.Admin); err != nil {
		return err
	}
	if len(p.Referees) > 0 {
		if err := e.roles.Replace(p.Admin, roles.RoleAttestor, p.Referees); err != nil {
			return err
		}
	}
	return e.state.KVPut(tokenKey(), token)
}

// Token returns the default entry token.
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
		return "", fmt.Errorf("bracket: %w", coreerrors.ErrNotInitialized)
	}
	return token, nil
}

// Paused reports the circuit breaker.
func (e *Engine) Paused() (bool, error) { return e.roles.Paused() }

// Count returns the number of tournaments created.
func (e *Engine) Count() (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	return state.LoadUint64(e.state, sequenceKey())
}

// Tournament returns a tournament by id.
func (e *Engine) Tournament(id uint64) (*Tournament, error) {
	if e.state == nil {
		return nil, errNilState
	}
	t := new(Tournament)
	ok, err := e.state.KVGet(tournamentKey(id), t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("bracket: %w: tournament %d", coreerrors.ErrNotFound, id)
	}
	return t, nil
}

// Entry returns player's seat in tournament id.
func (e *Engine) Entry(id uint64, player [20]byte) (*Entry, error) {
	if e.state == nil {
		return nil, errNilState
	}
	entry := new(Entry)
	ok, err := e.state.KVGet(entryKey(id, player), entry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("bracket: %w: %s has not joined tournament %d", coreerrors.ErrNotFound, crypto.FormatPrincipal(player), id)
	}
	return entry, nil
}

// Players lists the players of tournament id in join order.
func (e *Engine) Players(id uint64) ([][20]byte, error) {
	if e.state == nil {
		return nil, errNilState
	}
	list := new(playerList)
	if _, err := e.state.KVGet(playersKey(id), list); err != nil {
		return nil, err
	}
	return list.Players, nil
}

// Standings returns every entry ordered by score, highest first. Ties keep
// join order.
func (e *Engine) Standings(id uint64) ([]Entry, error) {
	if _, err := e.Tournament(id); err != nil {
		return nil, err
	}
	players, err := e.Players(id)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(players))
	for _, p := range players {
		entry, err := e.Entry(id, p)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (e *Engine) requireReferee(caller [20]byte) error {
	admin, err := e.roles.Admin()
	if err != nil {
		return err
	}
	if caller == admin {
		return nil
	}
	return e.roles.Require(roles.RoleAttestor, caller)
}

// CreateTournament opens a tournament under the next id.
func (e *Engine) CreateTournament(caller [20]byte, p Params) (*Tournament, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if p.EntryFee != nil && p.EntryFee.Sign() < 0 {
		return nil, fmt.Errorf("bracket: %w: entry fee must not be negative", coreerrors.ErrInvalidArgument)
	}
	if p.MaxPlayers < 2 {
		return nil, fmt.Errorf("bracket: %w: at least two players required", coreerrors.ErrInvalidArgument)
	}
	if p.StartTime < 0 || p.EndTime < 0 || (p.EndTime > 0 && p.EndTime <= p.StartTime) {
		return nil, fmt.Errorf("bracket: %w: end time %d not after start %d", coreerrors.ErrInvalidArgument, p.EndTime, p.StartTime)
	}
	token := strings.ToUpper(strings.TrimSpace(p.Token))
	if token == "" {
		var err error
		if token, err = e.Token(); err != nil {
			return nil, err
		}
	}
	fee := big.NewInt(0)
	if p.EntryFee != nil {
		fee.Set(p.EntryFee)
	}
	id, err := state.NextSequence(e.state, sequenceKey())
	if err != nil {
		return nil, err
	}
	if _, err := e.escrow.Create(escrow.CreateParams{
		ScopeID:   ScopeID(id),
		Token:     token,
		PayoutCap: new(big.Int).Mul(fee, big.NewInt(int64(p.MaxPlayers))),
		EntryFee:  fee,
	}); err != nil {
		return nil, err
	}
	t := &Tournament{
		ID:         id,
		Name:       strings.TrimSpace(p.Name),
		Token:      token,
		EntryFee:   fee,
		PrizePool:  big.NewInt(0),
		MaxPlayers: p.MaxPlayers,
		StartTime:  uint64(p.StartTime),
		EndTime:    uint64(p.EndTime),
		Status:     StatusUpcoming,
		CreatedAt:  uint64(e.nowFn()),
	}
	if err := e.state.KVPut(tournamentKey(id), t); err != nil {
		return nil, err
	}
	e.emitter.Emit(Created{Tournament: *t})
	return t, nil
}

// Join seats player in an upcoming tournament and escrows the entry fee.
func (e *Engine) Join(player [20]byte, id uint64) (*Tournament, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	t, err := e.Tournament(id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusUpcoming {
		return nil, fmt.Errorf("bracket: %w: tournament %d is %s", coreerrors.ErrFinalized, id, t.Status)
	}
	if t.Players >= t.MaxPlayers {
		return nil, fmt.Errorf("bracket: %w: tournament %d is full", coreerrors.ErrCapacityExceeded, id)
	}
	joined, err := e.state.KVHas(entryKey(id, player))
	if err != nil {
		return nil, err
	}
	if joined {
		return nil, fmt.Errorf("bracket: %w: %s already joined", coreerrors.ErrAlreadyExists, crypto.FormatPrincipal(player))
	}
	if t.EntryFee.Sign() > 0 {
		if _, err := e.escrow.Deposit(ScopeID(id), player, t.EntryFee); err != nil {
			return nil, err
		}
	}
	t.Players++
	t.PrizePool = new(big.Int).Add(t.PrizePool, t.EntryFee)
	if err := e.state.KVPut(tournamentKey(id), t); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(entryKey(id, player), &Entry{Player: player, JoinedAt: uint64(e.nowFn())}); err != nil {
		return nil, err
	}
	players, err := e.Players(id)
	if err != nil {
		return nil, err
	}
	if err := e.state.KVPut(playersKey(id), &playerList{Players: append(players, player)}); err != nil {
		return nil, err
	}
	e.emitter.Emit(Joined{TournamentID: id, Player: player, Fee: t.EntryFee, PrizePool: t.PrizePool})
	return t, nil
}

// Start closes registration and moves the tournament to active play.
func (e *Engine) Start(caller [20]byte, id uint64) (*Tournament, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.requireReferee(caller); err != nil {
		return nil, err
	}
	t, err := e.Tournament(id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusUpcoming {
		return nil, fmt.Errorf("bracket: %w: tournament %d is %s", coreerrors.ErrFinalized, id, t.Status)
	}
	if t.Players == 0 {
		return nil, fmt.Errorf("bracket: %w: tournament %d has no players", coreerrors.ErrInvalidArgument, id)
	}
	t.Status = StatusActive
	if err := e.state.KVPut(tournamentKey(id), t); err != nil {
		return nil, err
	}
	e.emitter.Emit(Started{TournamentID: id, Players: t.Players})
	return t, nil
}

// SubmitScore records a player's score while the tournament is open. A later
// submission replaces the earlier one.
func (e *Engine) SubmitScore(caller [20]byte, id uint64, player [20]byte, score uint64) (*Entry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.requireReferee(caller); err != nil {
		return nil, err
	}
	t, err := e.Tournament(id)
	if err != nil {
		return nil, err
	}
	if !t.Status.Open() {
		return nil, fmt.Errorf("bracket: %w: tournament %d is %s", coreerrors.ErrFinalized, id, t.Status)
	}
	entry, err := e.Entry(id, player)
	if err != nil {
		return nil, err
	}
	entry.Score = score
	if err := e.state.KVPut(entryKey(id, player), entry); err != nil {
		return nil, err
	}
	e.emitter.Emit(ScoreSubmitted{TournamentID: id, Player: player, Score: score})
	return entry, nil
}

// Complete names the winner, pays them WinnerShare percent of the pool and
// sends the rest to the treasury.
func (e *Engine) Complete(caller [20]byte, id uint64, winner [20]byte) (*Result, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.requireReferee(caller); err != nil {
		return nil, err
	}
	t, err := e.Tournament(id)
	if err != nil {
		return nil, err
	}
	if !t.Status.Open() {
		return nil, fmt.Errorf("bracket: %w: tournament %d is %s", coreerrors.ErrFinalized, id, t.Status)
	}
	entry, err := e.Entry(id, winner)
	if err != nil {
		return nil, err
	}
	prize, fee := Split(t.PrizePool)
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
		if err := e.treasury.Credit(t.Token, fee); err != nil {
			return nil, err
		}
	}
	if _, err := e.escrow.Finalize(scope); err != nil {
		return nil, err
	}
	t.Status, t.Winner, t.EndTime = StatusCompleted, winner, uint64(e.nowFn())
	if err := e.state.KVPut(tournamentKey(id), t); err != nil {
		return nil, err
	}
	entry.Placement, entry.RewardClaimed = 1, true
	if err := e.state.KVPut(entryKey(id, winner), entry); err != nil {
		return nil, err
	}
	res := &Result{TournamentID: id, Winner: winner, Prize: prize, Fee: fee}
	e.emitter.Emit(Completed{Result: *res})
	return res, nil
}

// Cancel refunds every entry fee and closes the tournament.
func (e *Engine) Cancel(caller [20]byte, id uint64) (*Tournament, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	t, err := e.Tournament(id)
	if err != nil {
		return nil, err
	}
	if !t.Status.Open() {
		return nil, fmt.Errorf("bracket: %w: tournament %d is %s", coreerrors.ErrFinalized, id, t.Status)
	}
	if t.PrizePool.Sign() > 0 {
		if _, err := e.escrow.RefundAll(ScopeID(id)); err != nil {
			return nil, err
		}
	} else if _, err := e.escrow.Finalize(ScopeID(id)); err != nil {
		return nil, err
	}
	t.Status = StatusCancelled
	if err := e.state.KVPut(tournamentKey(id), t); err != nil {
		return nil, err
	}
	e.emitter.Emit(Cancelled{TournamentID: id, Refunded: t.PrizePool})
	return t, nil
}

// SetReferees replaces the keys allowed to score and complete tournaments.
func (e *Engine) SetReferees(caller [20]byte, keys [][20]byte) error {
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
