package attestation

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/nonce"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
)

// Namespace prefixes every key written by the results registry.
const Namespace = "attestation"

var errNilState = errors.New("attestation: state not configured")

// Engine records attested match and tournament results and the disputes
// raised against them. Attestation keys are the registry's attestor role.
type Engine struct {
	state   state.Writer
	emitter events.Emitter
	nowFn   func() int64
	roles   *roles.Registry
	nonces  *nonce.Ledger
}

// NewEngine creates a results registry with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		roles:   roles.NewRegistry(Namespace),
		nonces:  nonce.NewLedger(Namespace, nonce.PolicyUsedSet),
	}
}

// Bind points the engine at one state transaction, emitter and clock.
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
	e.nonces.SetState(s)
}

// Roles exposes the module's role registry.
func (e *Engine) Roles() *roles.Registry { return e.roles }

// Nonces exposes the challenger nonce ledger.
func (e *Engine) Nonces() *nonce.Ledger { return e.nonces }

func matchKey(id uint64) []byte {
	return []byte(Namespace + "/match/" + strconv.FormatUint(id, 10))
}

func tournamentKey(id uint64) []byte {
	return []byte(Namespace + "/tournament/" + strconv.FormatUint(id, 10))
}

func tournamentMatchesKey(id uint64) []byte {
	return []byte(Namespace + "/tournament-matches/" + strconv.FormatUint(id, 10))
}

func disputeKey(id uint64) []byte {
	return []byte(Namespace + "/dispute/" + strconv.FormatUint(id, 10))
}

func matchDisputesKey(matchID uint64) []byte {
	return []byte(Namespace + "/match-disputes/" + strconv.FormatUint(matchID, 10))
}

func disputeSequenceKey() []byte { return []byte(Namespace + "/count/disputes") }

// DisputeScope is the nonce scope a challenger's dispute filings consume.
func DisputeScope(challenger [20]byte) string {
	return "disputes/" + hex.EncodeToString(challenger[:])
}

// Initialize sets the admin and the first attestation keys. At least one
// key is required. It runs once.
func (e *Engine) Initialize(admin [20]byte, keys [][20]byte) error {
	if e.state == nil {
		return errNilState
	}
	if len(keys) == 0 {
		return fmt.Errorf("attestation: %w: at least one attestation key required", coreerrors.ErrInvalidArgument)
	}
	if err := e.roles.Initialize(admin); err != nil {
		return err
	}
	return e.roles.Replace(admin, roles.RoleAttestor, keys)
}

// Paused reports the circuit breaker.
func (e *Engine) Paused() (bool, error) { return e.roles.Paused() }

// Keys returns the attestation keys in sorted order.
func (e *Engine) Keys() ([][20]byte, error) { return e.roles.Members(roles.RoleAttestor) }

// Match returns an attested match.
func (e *Engine) Match(id uint64) (*Match, error) {
	if e.state == nil {
		return nil, errNilState
	}
	m := new(Match)
	ok, err := e.state.KVGet(matchKey(id), m)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("attestation: %w: match %d", coreerrors.ErrNotFound, id)
	}
	return m, nil
}

// Tournament returns a finalized tournament.
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
		return nil, fmt.Errorf("attestation: %w: tournament %d", coreerrors.ErrNotFound, id)
	}
	return t, nil
}

// TournamentMatches lists the attested match ids of a tournament in
// attestation order.
func (e *Engine) TournamentMatches(id uint64) ([]uint64, error) {
	return e.list(tournamentMatchesKey(id))
}

// Dispute returns a dispute by id.
func (e *Engine) Dispute(id uint64) (*Dispute, error) {
	if e.state == nil {
		return nil, errNilState
	}
	d := new(Dispute)
	ok, err := e.state.KVGet(disputeKey(id), d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("attestation: %w: dispute %d", coreerrors.ErrNotFound, id)
	}
	return d, nil
}

// MatchDisputes lists the dispute ids filed against a match.
func (e *Engine) MatchDisputes(matchID uint64) ([]uint64, error) {
	return e.list(matchDisputesKey(matchID))
}

func (e *Engine) list(key []byte) ([]uint64, error) {
	if e.state == nil {
		return nil, errNilState
	}
	l := new(idList)
	if _, err := e.state.KVGet(key, l); err != nil {
		return nil, err
	}
	return l.IDs, nil
}

func (e *Engine) push(key []byte, id uint64) error {
	ids, err := e.list(key)
	if err != nil {
		return err
	}
	return e.state.KVPut(key, &idList{IDs: append(ids, id)})
}

// VerifyResult reports whether hash matches the attested result of the
// match. Unknown matches verify false.
func (e *Engine) VerifyResult(matchID uint64, hash [32]byte) (bool, error) {
	m, err := e.Match(matchID)
	if errors.Is(err, coreerrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.ResultHash == hash, nil
}

func validateMatch(p MatchParams) error {
	if len(p.Participants) == 0 {
		return fmt.Errorf("attestation: %w: participants required", coreerrors.ErrInvalidArgument)
	}
	seen := make(map[[20]byte]struct{}, len(p.Participants))
	for _, who := range p.Participants {
		if who == ([20]byte{}) {
			return fmt.Errorf("attestation: %w: empty participant", coreerrors.ErrInvalidArgument)
		}
		if _, dup := seen[who]; dup {
			return fmt.Errorf("attestation: %w: duplicate participant %s", coreerrors.ErrInvalidArgument, crypto.FormatPrincipal(who))
		}
		seen[who] = struct{}{}
	}
	if _, ok := seen[p.Winner]; !ok {
		return fmt.Errorf("attestation: %w: winner %s did not play", coreerrors.ErrInvalidArgument, crypto.FormatPrincipal(p.Winner))
	}
	for _, s := range p.Scores {
		if _, ok := seen[s.Player]; !ok {
			return fmt.Errorf("attestation: %w: score for non-participant %s", coreerrors.ErrInvalidArgument, crypto.FormatPrincipal(s.Player))
		}
	}
	if p.ResultHash == ([32]byte{}) {
		return fmt.Errorf("attestation: %w: result hash required", coreerrors.ErrInvalidArgument)
	}
	return nil
}

// AttestMatch records a match result signed off by an attestation key. A
// match is attested once; a second attempt fails with AlreadyExists.
func (e *Engine) AttestMatch(attestor [20]byte, p MatchParams) (*Match, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.Require(roles.RoleAttestor, attestor); err != nil {
		return nil, err
	}
	if err := validateMatch(p); err != nil {
		return nil, err
	}
	exists, err := e.state.KVHas(matchKey(p.MatchID))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("attestation: %w: match %d already attested", coreerrors.ErrAlreadyExists, p.MatchID)
	}
	if done, err := e.state.KVHas(tournamentKey(p.TournamentID)); err != nil {
		return nil, err
	} else if done {
		return nil, fmt.Errorf("attestation: %w: tournament %d finalized", coreerrors.ErrFinalized, p.TournamentID)
	}
	m := &Match{
		TournamentID: p.TournamentID,
		MatchID:      p.MatchID,
		ResultHash:   p.ResultHash,
		Winner:       p.Winner,
		Participants: append([][20]byte(nil), p.Participants...),
		Scores:       append([]Score(nil), p.Scores...),
		MetadataHash: p.MetadataHash,
		AttestedAt:   uint64(e.nowFn()),
		AttestedBy:   attestor,
	}
	if err := e.state.KVPut(matchKey(m.MatchID), m); err != nil {
		return nil, err
	}
	if err := e.push(tournamentMatchesKey(m.TournamentID), m.MatchID); err != nil {
		return nil, err
	}
	e.emitter.Emit(MatchAttested{Match: *m})
	return m, nil
}

// AttestTournament finalizes a tournament's standing. It runs once per
// tournament and closes it to further match attestations.
func (e *Engine) AttestTournament(attestor [20]byte, p TournamentParams) (*Tournament, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.Require(roles.RoleAttestor, attestor); err != nil {
		return nil, err
	}
	if p.Winner == ([20]byte{}) {
		return nil, fmt.Errorf("attestation: %w: winner required", coreerrors.ErrInvalidArgument)
	}
	if p.Winner == p.RunnerUp {
		return nil, fmt.Errorf("attestation: %w: winner and runner-up must differ", coreerrors.ErrInvalidArgument)
	}
	exists, err := e.state.KVHas(tournamentKey(p.TournamentID))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("attestation: %w: tournament %d already finalized", coreerrors.ErrAlreadyExists, p.TournamentID)
	}
	matches, err := e.TournamentMatches(p.TournamentID)
	if err != nil {
		return nil, err
	}
	t := &Tournament{
		TournamentID:          p.TournamentID,
		FinalResultsHash:      p.FinalResultsHash,
		TotalMatches:          uint64(len(matches)),
		Winner:                p.Winner,
		RunnerUp:              p.RunnerUp,
		PrizeDistributionHash: p.PrizeDistributionHash,
		FinalizedAt:           uint64(e.nowFn()),
		FinalizedBy:           attestor,
	}
	if err := e.state.KVPut(tournamentKey(t.TournamentID), t); err != nil {
		return nil, err
	}
	e.emitter.Emit(TournamentFinalized{Tournament: *t})
	return t, nil
}

// FileDispute lets anyone challenge an attested match. Each filing consumes
// a nonce from the challenger's dispute scope so a relayed request cannot be
// replayed.
func (e *Engine) FileDispute(challenger [20]byte, matchID uint64, reasonHash [32]byte, n uint64) (*Dispute, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if challenger == ([20]byte{}) {
		return nil, fmt.Errorf("attestation: %w: challenger required", coreerrors.ErrInvalidArgument)
	}
	if _, err := e.Match(matchID); err != nil {
		return nil, err
	}
	if err := e.nonces.Consume(DisputeScope(challenger), n); err != nil {
		return nil, err
	}
	id, err := state.NextSequence(e.state, disputeSequenceKey())
	if err != nil {
		return nil, err
	}
	d := &Dispute{
		ID:         id,
		MatchID:    matchID,
		Challenger: challenger,
		ReasonHash: reasonHash,
		CreatedAt:  uint64(e.nowFn()),
	}
	if err := e.state.KVPut(disputeKey(id), d); err != nil {
		return nil, err
	}
	if err := e.push(matchDisputesKey(matchID), id); err != nil {
		return nil, err
	}
	e.emitter.Emit(DisputeFiled{Dispute: *d})
	return d, nil
}

func (e *Engine) requireResolver(caller [20]byte) error {
	admin, err := e.roles.Admin()
	if err != nil {
		return err
	}
	if caller == admin {
		return nil
	}
	return e.roles.Require(roles.RoleAttestor, caller)
}

// ResolveDispute closes a dispute with the hash of its resolution. The admin
// or any attestation key may resolve, once.
func (e *Engine) ResolveDispute(caller [20]byte, id uint64, resolutionHash [32]byte) (*Dispute, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.requireResolver(caller); err != nil {
		return nil, err
	}
	d, err := e.Dispute(id)
	if err != nil {
		return nil, err
	}
	if d.Resolved {
		return nil, fmt.Errorf("attestation: %w: dispute %d already resolved", coreerrors.ErrFinalized, id)
	}
	d.Resolved = true
	d.ResolutionHash = resolutionHash
	d.ResolvedAt = uint64(e.nowFn())
	d.ResolvedBy = caller
	if err := e.state.KVPut(disputeKey(id), d); err != nil {
		return nil, err
	}
	e.emitter.Emit(DisputeResolved{Dispute: *d})
	return d, nil
}

// AddKey grants a new attestation key. Adding a present key fails with
// AlreadyExists.
func (e *Engine) AddKey(caller, key [20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return err
	}
	has, err := e.roles.Has(roles.RoleAttestor, key)
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("attestation: %w: key %s", coreerrors.ErrAlreadyExists, crypto.FormatPrincipal(key))
	}
	return e.roles.Grant(caller, roles.RoleAttestor, key)
}

// RemoveKey revokes an attestation key. The last key cannot be removed.
func (e *Engine) RemoveKey(caller, key [20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return err
	}
	keys, err := e.Keys()
	if err != nil {
		return err
	}
	if len(keys) == 1 && keys[0] == key {
		return fmt.Errorf("attestation: %w: cannot remove the last attestation key", coreerrors.ErrInvalidArgument)
	}
	return e.roles.Revoke(caller, roles.RoleAttestor, key)
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
