package vault

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/escrow"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/multisig"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/nonce"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/payout"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
)

// Namespace prefixes every key written by the rewards vault.
const Namespace = "vault"

var (
	errNilState  = errors.New("vault: state not configured")
	errNilAssets = errors.New("vault: asset ledger not configured")
)

// Assets moves funds between holders. The token bank satisfies it.
type Assets interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// InitParams seeds a vault instance.
type InitParams struct {
	Admin     [20]byte
	Attestors [][20]byte
	GlobalCap *big.Int
	Signers   [][20]byte
	Threshold uint32
}

// TournamentParams describes a new tournament escrow.
type TournamentParams struct {
	ID        string
	Token     string
	EntryFee  *big.Int
	PayoutCap *big.Int
	// Deadline is the unix time after which payouts are rejected. Zero
	// leaves the tournament open until finalized.
	Deadline int64
}

// Engine is the tournament rewards vault: per-tournament escrows paid out on
// attested results, plus a multisig treasury.
type Engine struct {
	state    state.Writer
	assets   Assets
	emitter  events.Emitter
	nowFn    func() int64
	roles    *roles.Registry
	escrow   *escrow.Engine
	nonces   *nonce.Ledger
	payouts  *payout.Engine
	treasury *multisig.Treasury
}

// NewEngine wires the vault's sub-engines under the vault namespace.
// Tournament payouts use sequential nonces.
func NewEngine() *Engine {
	e := &Engine{
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
		roles:    roles.NewRegistry(Namespace),
		escrow:   escrow.NewEngine(Namespace),
		nonces:   nonce.NewLedger(Namespace, nonce.PolicySequential),
		payouts:  payout.NewEngine(Namespace),
		treasury: multisig.NewTreasury(Namespace),
	}
	e.payouts.SetAuthority(e.roles)
	e.payouts.SetNonces(e.nonces)
	e.payouts.SetSource(e.escrow)
	e.treasury.SetAuthority(e.roles)
	return e
}

// Bind points the vault and its sub-engines at one state transaction,
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
	e.nonces.SetState(s)
	e.payouts.SetState(s)
	e.payouts.SetEmitter(emitter)
	e.payouts.SetNowFunc(now)
	e.treasury.SetState(s)
	e.treasury.SetEmitter(emitter)
	e.treasury.SetNowFunc(now)
}

// SetAssets configures the asset ledger used for custody.
func (e *Engine) SetAssets(a Assets) {
	e.assets = a
	e.escrow.SetAssets(a)
	e.treasury.SetAssets(a)
}

// Roles exposes the vault's role registry.
func (e *Engine) Roles() *roles.Registry { return e.roles }

// Treasury exposes the vault's multisig treasury. Other modules credit fees
// to it and draw programmatic rewards from it.
func (e *Engine) Treasury() *multisig.Treasury { return e.treasury }

// Domain is the signing domain for attestor signatures over vault payouts.
func (e *Engine) Domain() string { return e.payouts.Domain() }

func globalCapKey() []byte { return []byte(Namespace + "/config/global-cap") }

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.assets == nil {
		return errNilAssets
	}
	return nil
}

// Initialize sets the admin, attestors, global payout cap and multisig
// signers. It runs once.
func (e *Engine) Initialize(p InitParams) error {
	if e.state == nil {
		return errNilState
	}
	if p.GlobalCap == nil || p.GlobalCap.Sign() <= 0 {
		return fmt.Errorf("vault: %w: global cap must be positive", coreerrors.ErrInvalidArgument)
	}
	if len(p.Attestors) == 0 {
		return fmt.Errorf("vault: %w: at least one attestor required", coreerrors.ErrInvalidArgument)
	}
	if int(p.Threshold) > len(p.Signers) {
		return fmt.Errorf("vault: %w: threshold %d exceeds %d signers", coreerrors.ErrInvalidArgument, p.Threshold, len(p.Signers))
	}
	if err := e.roles.Initialize(p.Admin); err != nil {
		return err
	}
	if err := e.roles.Replace(p.Admin, roles.RoleAttestor, p.Attestors); err != nil {
		return err
	}
	if err := state.StoreBig(e.state, globalCapKey(), p.GlobalCap); err != nil {
		return err
	}
	if len(p.Signers) > 0 {
		if err := e.roles.Replace(p.Admin, roles.RoleMultisigSigner, p.Signers); err != nil {
			return err
		}
		threshold := p.Threshold
		if threshold == 0 {
			threshold = uint32(len(p.Signers))
		}
		if err := e.treasury.Configure(p.Admin, threshold); err != nil {
			return err
		}
	}
	e.emitter.Emit(Initialized{Admin: p.Admin, GlobalCap: new(big.Int).Set(p.GlobalCap), Attestors: uint32(len(p.Attestors))})
	return nil
}

// GlobalCap returns the bound applied to every tournament cap and payout.
func (e *Engine) GlobalCap() (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return state.LoadBig(e.state, globalCapKey())
}

// requireAdmin runs the pause guard and then the admin check.
func (e *Engine) requireAdmin(caller [20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	return e.roles.RequireAdmin(caller)
}

// CreateTournament opens an escrow for a tournament. The tournament cap may
// not exceed the global cap.
func (e *Engine) CreateTournament(caller [20]byte, p TournamentParams) (*escrow.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	if p.EntryFee == nil || p.EntryFee.Sign() <= 0 {
		return nil, fmt.Errorf("vault: %w: entry fee must be positive", coreerrors.ErrInvalidArgument)
	}
	if p.PayoutCap == nil || p.PayoutCap.Sign() <= 0 {
		return nil, fmt.Errorf("vault: %w: payout cap must be positive", coreerrors.ErrInvalidArgument)
	}
	global, err := e.GlobalCap()
	if err != nil {
		return nil, err
	}
	if p.PayoutCap.Cmp(global) > 0 {
		return nil, fmt.Errorf("vault: %w: tournament cap %s above global cap %s", coreerrors.ErrCapExceeded, p.PayoutCap, global)
	}
	return e.escrow.Create(escrow.CreateParams{
		ScopeID:   p.ID,
		Token:     strings.ToUpper(strings.TrimSpace(p.Token)),
		PayoutCap: p.PayoutCap,
		Deadline:  p.Deadline,
		EntryFee:  p.EntryFee,
	})
}

// Enter charges player the entry fee into the tournament escrow. Each player
// enters once.
func (e *Engine) Enter(player [20]byte, id string) (*escrow.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	acc, err := e.escrow.Get(id)
	if err != nil {
		return nil, err
	}
	return e.escrow.Deposit(acc.ScopeID, player, acc.EntryFee)
}

// Payout executes an attested payout authorized by caller, who must hold
// the attestor role.
func (e *Engine) Payout(caller [20]byte, auth payout.Authorization) (*payout.Receipt, error) {
	if err := e.preparePayout(); err != nil {
		return nil, err
	}
	return e.payouts.Execute(caller, auth)
}

// PayoutSigned executes auth on behalf of the attestor recovered from sig.
func (e *Engine) PayoutSigned(auth payout.Authorization, sig []byte) (*payout.Receipt, error) {
	if err := e.preparePayout(); err != nil {
		return nil, err
	}
	return e.payouts.ExecuteSigned(auth, sig)
}

func (e *Engine) preparePayout() error {
	if err := e.ready(); err != nil {
		return err
	}
	global, err := e.GlobalCap()
	if err != nil {
		return err
	}
	e.payouts.SetGlobalCap(global)
	return nil
}

// EmergencyRefund returns every entry to its player and closes the
// tournament.
func (e *Engine) EmergencyRefund(caller [20]byte, id string) (*escrow.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	return e.escrow.RefundAll(id)
}

// Finalize stops new entries. Payouts remain possible until the deadline.
func (e *Engine) Finalize(caller [20]byte, id string) (*escrow.Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, err
	}
	return e.escrow.Finalize(id)
}

// FundTreasury moves funds from funder into the multisig treasury.
func (e *Engine) FundTreasury(funder [20]byte, token string, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.treasury.Fund(funder, strings.ToUpper(strings.TrimSpace(token)), amount)
}

// ProposeWithdrawal opens a treasury withdrawal pre-approved by proposer.
func (e *Engine) ProposeWithdrawal(proposer [20]byte, token string, amount *big.Int, recipient [20]byte) (*multisig.Proposal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.treasury.Propose(proposer, strings.ToUpper(strings.TrimSpace(token)), amount, recipient)
}

// ApproveWithdrawal records signer's approval, executing at the threshold.
func (e *Engine) ApproveWithdrawal(signer [20]byte, id uint64) (*multisig.Proposal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.treasury.Approve(signer, id)
}

// SetGlobalCap replaces the global payout cap. Existing tournament caps are
// not revisited; every payout is still bounded by both.
func (e *Engine) SetGlobalCap(caller [20]byte, limit *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if limit == nil || limit.Sign() <= 0 {
		return fmt.Errorf("vault: %w: global cap must be positive", coreerrors.ErrInvalidArgument)
	}
	if err := state.StoreBig(e.state, globalCapKey(), limit); err != nil {
		return err
	}
	e.emitter.Emit(GlobalCapChanged{Cap: new(big.Int).Set(limit)})
	return nil
}

// RotateAdmin hands the admin capability to next.
func (e *Engine) RotateAdmin(caller, next [20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	return e.roles.RotateAdmin(caller, next)
}

// SetAttestors replaces the attestation key set. Old keys stop working in
// the same call.
func (e *Engine) SetAttestors(caller [20]byte, keys [][20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	return e.roles.Replace(caller, roles.RoleAttestor, keys)
}

// ConfigureMultisig replaces the signer set and threshold. Pending proposals
// keep the threshold captured when they were opened, and approvals from
// removed signers stop counting toward it.
func (e *Engine) ConfigureMultisig(caller [20]byte, signers [][20]byte, threshold uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if threshold == 0 || int(threshold) > len(signers) {
		return fmt.Errorf("vault: %w: threshold %d with %d signers", coreerrors.ErrInvalidArgument, threshold, len(signers))
	}
	if err := e.roles.Replace(caller, roles.RoleMultisigSigner, signers); err != nil {
		return err
	}
	return e.treasury.Configure(caller, threshold)
}

// SetPaused toggles the vault circuit breaker.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	return e.roles.SetPaused(caller, paused)
}

// Tournament returns the tournament escrow.
func (e *Engine) Tournament(id string) (*escrow.Account, error) {
	return e.escrow.Get(id)
}

// TreasuryBalance returns the tracked treasury balance of token.
func (e *Engine) TreasuryBalance(token string) (*big.Int, error) {
	return e.treasury.Balance(strings.ToUpper(strings.TrimSpace(token)))
}

// TotalPaidOut returns the cumulative amount paid across tournaments.
func (e *Engine) TotalPaidOut() (*big.Int, error) { return e.payouts.TotalPaidOut() }

// PayoutNonce returns the last nonce consumed for tournament id.
func (e *Engine) PayoutNonce(id string) (uint64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	scope, err := escrow.NormalizeScope(id)
	if err != nil {
		return 0, err
	}
	return e.nonces.Last(scope)
}

// Receipt returns the payout made under nonce for tournament id.
func (e *Engine) Receipt(id string, n uint64) (*payout.Receipt, error) {
	return e.payouts.Receipt(id, n)
}

// Withdrawal returns a treasury proposal.
func (e *Engine) Withdrawal(id uint64) (*multisig.Proposal, error) {
	return e.treasury.Proposal(id)
}

// Paused reports the circuit breaker.
func (e *Engine) Paused() (bool, error) { return e.roles.Paused() }
