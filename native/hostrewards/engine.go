package hostrewards

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
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/escrow"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/nonce"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/payout"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
)

// Namespace prefixes every key written by the host rewards module.
const Namespace = "hosts"

// Claim nonces form one used-set across all jobs.
const claimScope = "claims"

var (
	errNilState  = errors.New("hostrewards: state not configured")
	errNilAssets = errors.New("hostrewards: asset ledger not configured")
)

// Assets moves funds between holders.
type Assets interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// InitParams seeds the module.
type InitParams struct {
	Admin     [20]byte
	Attestors [][20]byte
	Token     string
	Limits    Limits
}

// JobParams describes a job opened by an attestor.
type JobParams struct {
	ID        string
	Host      [20]byte
	Requester [20]byte
	Type      JobType
	Reward    *big.Int
}

// ClaimRequest asks for a payout against a completed job. A nil Amount
// claims whatever remains of the job reward.
type ClaimRequest struct {
	JobID           string
	Amount          *big.Int
	Nonce           uint64
	Deadline        int64
	AttestationHash [32]byte
}

// Authorization returns the payout authorization the attestor signs for
// req against job.
func (req ClaimRequest) Authorization(job *Job) payout.Authorization {
	amount := req.Amount
	if amount == nil {
		amount = remaining(job)
	}
	return payout.Authorization{
		Scope:     job.ID,
		Recipient: job.Host,
		Amount:    amount,
		Nonce:     req.Nonce,
		Deadline:  req.Deadline,
	}
}

func remaining(job *Job) *big.Int {
	left := new(big.Int).Set(job.Reward)
	if job.Paid != nil {
		left.Sub(left, job.Paid)
	}
	return left
}

// claimNonces pins every claim to one used-set regardless of job.
type claimNonces struct{ ledger *nonce.Ledger }

func (c claimNonces) Check(_ string, n uint64) error   { return c.ledger.Check(claimScope, n) }
func (c claimNonces) Consume(_ string, n uint64) error { return c.ledger.Consume(claimScope, n) }

// Engine runs host registration, staking, job escrow and attested claims.
type Engine struct {
	state   state.Writer
	assets  Assets
	emitter events.Emitter
	nowFn   func() int64
	roles   *roles.Registry
	escrow  *escrow.Engine
	nonces  *nonce.Ledger
	payouts *payout.Engine
}

// NewEngine wires the module's sub-engines. Each job is an escrow scope
// funded from the reward pool; claims use a used-set nonce policy.
func NewEngine() *Engine {
	e := &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		roles:   roles.NewRegistry(Namespace),
		escrow:  escrow.NewEngine(Namespace),
		nonces:  nonce.NewLedger(Namespace, nonce.PolicyUsedSet),
		payouts: payout.NewEngine(Namespace),
	}
	e.payouts.SetAuthority(e.roles)
	e.payouts.SetNonces(claimNonces{ledger: e.nonces})
	e.payouts.SetSource(e.escrow)
	return e
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
	e.nonces.SetState(s)
	e.payouts.SetState(s)
	e.payouts.SetEmitter(emitter)
	e.payouts.SetNowFunc(now)
}

// SetAssets configures the asset ledger.
func (e *Engine) SetAssets(a Assets) {
	e.assets = a
	e.escrow.SetAssets(a)
}

// Roles exposes the module's role registry.
func (e *Engine) Roles() *roles.Registry { return e.roles }

// Domain is the signing domain for claim authorizations.
func (e *Engine) Domain() string { return e.payouts.Domain() }

// StakeAddress holds bonded host stake.
func StakeAddress() [20]byte { return crypto.ModuleAccount(Namespace, "stake") }

// PoolAddress holds rewards not yet assigned to a job.
func PoolAddress() [20]byte { return crypto.ModuleAccount(Namespace, "pool") }

func tokenKey() []byte    { return []byte(Namespace + "/config/token") }
func limitsKey() []byte   { return []byte(Namespace + "/config/limits") }
func poolKey() []byte     { return []byte(Namespace + "/pool") }
func claimSeqKey() []byte { return []byte(Namespace + "/claim-seq") }

func hostKey(addr [20]byte) []byte {
	return []byte(Namespace + "/host/" + hex.EncodeToString(addr[:]))
}

func hostJobsKey(addr [20]byte) []byte {
	return []byte(Namespace + "/host-jobs/" + hex.EncodeToString(addr[:]))
}

func jobKey(id string) []byte { return []byte(Namespace + "/job/" + id) }

func claimKey(id uint64) []byte {
	return []byte(Namespace + "/claim/" + strconv.FormatUint(id, 10))
}

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
		return fmt.Errorf("hostrewards: %w: %s must be positive", coreerrors.ErrInvalidArgument, what)
	}
	return nil
}

// Initialize sets the admin, attestors, staking token and limits. It runs
// once.
func (e *Engine) Initialize(p InitParams) error {
	if e.state == nil {
		return errNilState
	}
	token := strings.ToUpper(strings.TrimSpace(p.Token))
	if token == "" {
		return fmt.Errorf("hostrewards: %w: token required", coreerrors.ErrInvalidArgument)
	}
	if err := p.Limits.Validate(); err != nil {
		return err
	}
	if err := e.roles.Initialize(p.Admin); err != nil {
		return err
	}
	if err := e.roles.Replace(p.Admin, roles.RoleAttestor, p.Attestors); err != nil {
		return err
	}
	if err := e.state.KVPut(tokenKey(), token); err != nil {
		return err
	}
	return e.state.KVPut(limitsKey(), &p.Limits)
}

// Token returns the staking and reward token.
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
		return "", fmt.Errorf("hostrewards: %w", coreerrors.ErrNotInitialized)
	}
	return token, nil
}

// Limits returns the staking and reward bounds.
func (e *Engine) Limits() (*Limits, error) {
	if e.state == nil {
		return nil, errNilState
	}
	limits := new(Limits)
	ok, err := e.state.KVGet(limitsKey(), limits)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("hostrewards: %w", coreerrors.ErrNotInitialized)
	}
	return limits, nil
}

// PoolBalance returns the unassigned reward pool.
func (e *Engine) PoolBalance() (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return state.LoadBig(e.state, poolKey())
}

// Host returns a registered host.
func (e *Engine) Host(addr [20]byte) (*Host, error) {
	if e.state == nil {
		return nil, errNilState
	}
	h := new(Host)
	ok, err := e.state.KVGet(hostKey(addr), h)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("hostrewards: %w: host %s", coreerrors.ErrNotFound, crypto.FormatPrincipal(addr))
	}
	return h, nil
}

func (e *Engine) putHost(h *Host) error { return e.state.KVPut(hostKey(h.Address), h) }

// Job returns a job by id.
func (e *Engine) Job(id string) (*Job, error) {
	if e.state == nil {
		return nil, errNilState
	}
	id = strings.TrimSpace(id)
	job := new(Job)
	ok, err := e.state.KVGet(jobKey(id), job)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("hostrewards: %w: job %q", coreerrors.ErrNotFound, id)
	}
	return job, nil
}

func (e *Engine) putJob(job *Job) error { return e.state.KVPut(jobKey(job.ID), job) }

// HostJobs lists the ids of every job assigned to addr.
func (e *Engine) HostJobs(addr [20]byte) ([]string, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(hostJobsKey(addr), &raw); err != nil {
		return nil, err
	}
	ids := make([]string, len(raw))
	for i, id := range raw {
		ids[i] = string(id)
	}
	return ids, nil
}

// Claim returns a payout claim record.
func (e *Engine) Claim(id uint64) (*Claim, error) {
	if e.state == nil {
		return nil, errNilState
	}
	c := new(Claim)
	ok, err := e.state.KVGet(claimKey(id), c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("hostrewards: %w: claim %d", coreerrors.ErrNotFound, id)
	}
	return c, nil
}

// IsNonceUsed reports whether a claim nonce has been consumed.
func (e *Engine) IsNonceUsed(n uint64) (bool, error) { return e.nonces.IsUsed(claimScope, n) }

// TotalPaidOut returns the cumulative amount paid to hosts.
func (e *Engine) TotalPaidOut() (*big.Int, error) { return e.payouts.TotalPaidOut() }

// Paused reports the circuit breaker.
func (e *Engine) Paused() (bool, error) { return e.roles.Paused() }

// RegisterHost bonds stake from host and registers it as active.
func (e *Engine) RegisterHost(host [20]byte, stake *big.Int) (*Host, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := positive(stake, "stake"); err != nil {
		return nil, err
	}
	limits, err := e.Limits()
	if err != nil {
		return nil, err
	}
	if stake.Cmp(limits.MinStake) < 0 {
		return nil, fmt.Errorf("hostrewards: %w: stake %s below minimum %s", coreerrors.ErrInvalidArgument, stake, limits.MinStake)
	}
	if exists, err := e.state.KVHas(hostKey(host)); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("hostrewards: %w: host %s", coreerrors.ErrAlreadyExists, crypto.FormatPrincipal(host))
	}
	token, err := e.Token()
	if err != nil {
		return nil, err
	}
	if err := e.assets.Transfer(token, host, StakeAddress(), stake); err != nil {
		return nil, err
	}
	now := uint64(e.nowFn())
	h := &Host{
		Address:       host,
		Stake:         new(big.Int).Set(stake),
		RegisteredAt:  now,
		TotalEarnings: big.NewInt(0),
		Reputation:    InitialReputation,
		Active:        true,
		LastHeartbeat: now,
	}
	if err := e.putHost(h); err != nil {
		return nil, err
	}
	e.emitter.Emit(HostRegistered{Host: host, Stake: new(big.Int).Set(stake)})
	return h, nil
}

// AddStake bonds more stake. A host brought back to the minimum is
// reactivated.
func (e *Engine) AddStake(host [20]byte, amount *big.Int) (*Host, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := positive(amount, "stake"); err != nil {
		return nil, err
	}
	h, err := e.Host(host)
	if err != nil {
		return nil, err
	}
	token, err := e.Token()
	if err != nil {
		return nil, err
	}
	limits, err := e.Limits()
	if err != nil {
		return nil, err
	}
	if err := e.assets.Transfer(token, host, StakeAddress(), amount); err != nil {
		return nil, err
	}
	h.Stake = new(big.Int).Add(h.Stake, amount)
	if !h.Active && h.Stake.Cmp(limits.MinStake) >= 0 {
		h.Active = true
	}
	if err := e.putHost(h); err != nil {
		return nil, err
	}
	e.emitter.Emit(StakeChanged{Host: host, Delta: new(big.Int).Set(amount), Stake: new(big.Int).Set(h.Stake), Added: true})
	return h, nil
}

// WithdrawStake returns stake to host. It fails while the host has open
// jobs, and deactivates the host when the remainder drops below the minimum.
func (e *Engine) WithdrawStake(host [20]byte, amount *big.Int) (*Host, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := positive(amount, "withdrawal"); err != nil {
		return nil, err
	}
	h, err := e.Host(host)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(h.Stake) > 0 {
		return nil, fmt.Errorf("hostrewards: %w: stake is %s", coreerrors.ErrInsufficientFunds, h.Stake)
	}
	ids, err := e.HostJobs(host)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		job, err := e.Job(id)
		if err != nil {
			return nil, err
		}
		if job.Status.Open() {
			return nil, fmt.Errorf("hostrewards: %w: job %q is %s", coreerrors.ErrInvalidArgument, id, job.Status)
		}
	}
	limits, err := e.Limits()
	if err != nil {
		return nil, err
	}
	token, err := e.Token()
	if err != nil {
		return nil, err
	}
	if err := e.assets.Transfer(token, StakeAddress(), host, amount); err != nil {
		return nil, err
	}
	h.Stake = new(big.Int).Sub(h.Stake, amount)
	if h.Stake.Cmp(limits.MinStake) < 0 {
		h.Active = false
	}
	if err := e.putHost(h); err != nil {
		return nil, err
	}
	e.emitter.Emit(StakeChanged{Host: host, Delta: new(big.Int).Set(amount), Stake: new(big.Int).Set(h.Stake)})
	return h, nil
}

// Heartbeat records that host is online.
func (e *Engine) Heartbeat(host [20]byte) error {
	if e.state == nil {
		return errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return err
	}
	h, err := e.Host(host)
	if err != nil {
		return err
	}
	h.LastHeartbeat = uint64(e.nowFn())
	return e.putHost(h)
}

// SlashStake burns up to amount of host's stake into the reward pool and
// cuts its reputation.
func (e *Engine) SlashStake(caller, host [20]byte, amount *big.Int, reason [32]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := positive(amount, "slash amount"); err != nil {
		return nil, err
	}
	h, err := e.Host(host)
	if err != nil {
		return nil, err
	}
	limits, err := e.Limits()
	if err != nil {
		return nil, err
	}
	slashed := new(big.Int).Set(amount)
	if slashed.Cmp(h.Stake) > 0 {
		slashed.Set(h.Stake)
	}
	if slashed.Sign() > 0 {
		token, err := e.Token()
		if err != nil {
			return nil, err
		}
		if err := e.assets.Transfer(token, StakeAddress(), PoolAddress(), slashed); err != nil {
			return nil, err
		}
		if _, err := state.AddBig(e.state, poolKey(), slashed); err != nil {
			return nil, err
		}
	}
	h.Stake = new(big.Int).Sub(h.Stake, slashed)
	if h.Reputation > SlashReputationPenalty {
		h.Reputation -= SlashReputationPenalty
	} else {
		h.Reputation = 0
	}
	if h.Stake.Cmp(limits.MinStake) < 0 {
		h.Active = false
	}
	if err := e.putHost(h); err != nil {
		return nil, err
	}
	e.emitter.Emit(HostSlashed{Host: host, Amount: new(big.Int).Set(slashed), Reason: reason, Reputation: h.Reputation})
	return slashed, nil
}

// FundPool moves funds from funder into the reward pool.
func (e *Engine) FundPool(funder [20]byte, amount *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := positive(amount, "funding"); err != nil {
		return nil, err
	}
	token, err := e.Token()
	if err != nil {
		return nil, err
	}
	if err := e.assets.Transfer(token, funder, PoolAddress(), amount); err != nil {
		return nil, err
	}
	balance, err := state.AddBig(e.state, poolKey(), amount)
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(PoolFunded{Funder: funder, Amount: new(big.Int).Set(amount), Balance: balance})
	return balance, nil
}

// CreateJob assigns a job to an active host and escrows its reward from the
// pool. Only attestors may open jobs.
func (e *Engine) CreateJob(caller [20]byte, p JobParams) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.Require(roles.RoleAttestor, caller); err != nil {
		return nil, err
	}
	id, err := escrow.NormalizeScope(p.ID)
	if err != nil {
		return nil, err
	}
	if err := positive(p.Reward, "reward"); err != nil {
		return nil, err
	}
	if !p.Type.Valid() {
		return nil, fmt.Errorf("hostrewards: %w: job type %s", coreerrors.ErrInvalidArgument, p.Type)
	}
	limits, err := e.Limits()
	if err != nil {
		return nil, err
	}
	if p.Reward.Cmp(limits.MaxPayoutPerJob) > 0 {
		return nil, fmt.Errorf("hostrewards: %w: reward %s above per-job max %s", coreerrors.ErrCapExceeded, p.Reward, limits.MaxPayoutPerJob)
	}
	h, err := e.Host(p.Host)
	if err != nil {
		return nil, err
	}
	if !h.Active {
		return nil, fmt.Errorf("hostrewards: %w: host %s is inactive", coreerrors.ErrInvalidArgument, crypto.FormatPrincipal(p.Host))
	}
	if exists, err := e.state.KVHas(jobKey(id)); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("hostrewards: %w: job %q", coreerrors.ErrAlreadyExists, id)
	}
	pool, err := e.PoolBalance()
	if err != nil {
		return nil, err
	}
	if pool.Cmp(p.Reward) < 0 {
		return nil, fmt.Errorf("hostrewards: %w: pool holds %s", coreerrors.ErrInsufficientFunds, pool)
	}
	token, err := e.Token()
	if err != nil {
		return nil, err
	}
	if _, err := e.escrow.Create(escrow.CreateParams{ScopeID: id, Token: token, PayoutCap: p.Reward}); err != nil {
		return nil, err
	}
	if _, err := e.escrow.Deposit(id, PoolAddress(), p.Reward); err != nil {
		return nil, err
	}
	if err := state.StoreBig(e.state, poolKey(), pool.Sub(pool, p.Reward)); err != nil {
		return nil, err
	}
	job := &Job{
		ID:        id,
		Host:      p.Host,
		Requester: p.Requester,
		Type:      p.Type,
		Reward:    new(big.Int).Set(p.Reward),
		Paid:      big.NewInt(0),
		StartedAt: uint64(e.nowFn()),
		Status:    JobActive,
	}
	if err := e.putJob(job); err != nil {
		return nil, err
	}
	if err := e.state.KVAppend(hostJobsKey(p.Host), []byte(id)); err != nil {
		return nil, err
	}
	e.emitter.Emit(JobCreated{Job: *job})
	return job, nil
}

// CompleteJob records the proof of work and credits the host's reputation.
func (e *Engine) CompleteJob(caller [20]byte, id string, proof [32]byte) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.Require(roles.RoleAttestor, caller); err != nil {
		return nil, err
	}
	job, err := e.Job(id)
	if err != nil {
		return nil, err
	}
	if job.Status != JobActive {
		return nil, fmt.Errorf("hostrewards: %w: job %q is %s", coreerrors.ErrInvalidArgument, job.ID, job.Status)
	}
	job.Status = JobCompleted
	job.CompletedAt = uint64(e.nowFn())
	job.ProofHash = proof
	if err := e.putJob(job); err != nil {
		return nil, err
	}
	if _, err := e.escrow.Finalize(job.ID); err != nil {
		return nil, err
	}
	h, err := e.Host(job.Host)
	if err != nil {
		return nil, err
	}
	h.JobsCompleted++
	if h.Reputation < MaxReputation {
		h.Reputation++
	}
	if err := e.putHost(h); err != nil {
		return nil, err
	}
	e.emitter.Emit(JobStatusChanged{JobID: job.ID, Host: job.Host, Status: job.Status})
	return job, nil
}

// DisputeJob freezes claims against a completed job.
func (e *Engine) DisputeJob(caller [20]byte, id string) (*Job, error) {
	return e.transition(caller, id, JobDisputed)
}

// CancelJob closes an open or disputed job and returns its unpaid reward to
// the pool.
func (e *Engine) CancelJob(caller [20]byte, id string) (*Job, error) {
	return e.transition(caller, id, JobCancelled)
}

func (e *Engine) transition(caller [20]byte, id string, next JobStatus) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return nil, err
	}
	job, err := e.Job(id)
	if err != nil {
		return nil, err
	}
	var allowed bool
	switch next {
	case JobDisputed:
		allowed = job.Status == JobCompleted
	case JobCancelled:
		allowed = job.Status.Open() || job.Status == JobDisputed
	case JobPending, JobActive, JobCompleted:
		allowed = false
	}
	if !allowed {
		return nil, fmt.Errorf("hostrewards: %w: job %q cannot move from %s to %s", coreerrors.ErrInvalidArgument, job.ID, job.Status, next)
	}
	if next == JobCancelled {
		left, err := e.escrow.Available(job.ID)
		if err != nil {
			return nil, err
		}
		if left.Sign() > 0 {
			if _, err := e.escrow.RefundAll(job.ID); err != nil {
				return nil, err
			}
			if _, err := state.AddBig(e.state, poolKey(), left); err != nil {
				return nil, err
			}
		}
	}
	job.Status = next
	if err := e.putJob(job); err != nil {
		return nil, err
	}
	e.emitter.Emit(JobStatusChanged{JobID: job.ID, Host: job.Host, Status: job.Status})
	return job, nil
}

// ClaimPayout pays a completed job's host on caller's attestation. Nonces
// are single-use across all jobs, and the request deadline is mandatory.
func (e *Engine) ClaimPayout(caller [20]byte, req ClaimRequest) (*Claim, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.roles.Guard(); err != nil {
		return nil, err
	}
	if err := e.roles.Require(roles.RoleAttestor, caller); err != nil {
		return nil, err
	}
	if req.Deadline <= 0 {
		return nil, fmt.Errorf("hostrewards: %w: claim deadline required", coreerrors.ErrInvalidArgument)
	}
	job, err := e.Job(req.JobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Claimable() {
		return nil, fmt.Errorf("hostrewards: %w: job %q is %s", coreerrors.ErrInvalidArgument, job.ID, job.Status)
	}
	auth := req.Authorization(job)
	if auth.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("hostrewards: %w: job %q fully paid", coreerrors.ErrInsufficientFunds, job.ID)
	}
	receipt, err := e.payouts.Execute(caller, auth)
	if err != nil {
		return nil, err
	}
	id, err := state.NextSequence(e.state, claimSeqKey())
	if err != nil {
		return nil, err
	}
	claim := &Claim{
		ID:              id,
		JobID:           job.ID,
		Host:            job.Host,
		Amount:          new(big.Int).Set(receipt.Amount),
		Nonce:           receipt.Nonce,
		Deadline:        uint64(req.Deadline),
		AttestationHash: req.AttestationHash,
		PaidAt:          receipt.ExecutedAt,
	}
	if err := e.state.KVPut(claimKey(id), claim); err != nil {
		return nil, err
	}
	job.Paid = new(big.Int).Add(job.Paid, receipt.Amount)
	if err := e.putJob(job); err != nil {
		return nil, err
	}
	h, err := e.Host(job.Host)
	if err != nil {
		return nil, err
	}
	h.TotalEarnings = new(big.Int).Add(h.TotalEarnings, receipt.Amount)
	if err := e.putHost(h); err != nil {
		return nil, err
	}
	e.emitter.Emit(ClaimPaid{Claim: *claim})
	return claim, nil
}

// ClaimPayoutSigned recovers the attestor from sig over the request's
// authorization and claims on its behalf.
func (e *Engine) ClaimPayoutSigned(req ClaimRequest, sig []byte) (*Claim, error) {
	job, err := e.Job(req.JobID)
	if err != nil {
		return nil, err
	}
	signer, err := payout.RecoverSigner(e.Domain(), req.Authorization(job), sig)
	if err != nil {
		return nil, err
	}
	return e.ClaimPayout(signer, req)
}

// SetLimits replaces the staking and reward bounds.
func (e *Engine) SetLimits(caller [20]byte, limits Limits) error {
	if e.state == nil {
		return errNilState
	}
	if err := e.roles.Guard(); err != nil {
		return err
	}
	if err := e.roles.RequireAdmin(caller); err != nil {
		return err
	}
	if err := limits.Validate(); err != nil {
		return err
	}
	return e.state.KVPut(limitsKey(), &limits)
}

// RotateAdmin hands the admin capability to next.
func (e *Engine) RotateAdmin(caller, next [20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	return e.roles.RotateAdmin(caller, next)
}

// SetAttestors replaces the attestation key set.
func (e *Engine) SetAttestors(caller [20]byte, keys [][20]byte) error {
	if err := e.roles.Guard(); err != nil {
		return err
	}
	return e.roles.Replace(caller, roles.RoleAttestor, keys)
}

// SetPaused toggles the circuit breaker.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	return e.roles.SetPaused(caller, paused)
}
