package multisig

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"time"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/roles"
)

var (
	errNilState  = errors.New("multisig: state not configured")
	errNotWired  = errors.New("multisig: dependencies not configured")
	errNoSigners = fmt.Errorf("multisig: %w: no signers configured", coreerrors.ErrNotInitialized)
)

// Assets moves funds between holders.
type Assets interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// Authority exposes the signer set, admin check and pause flag.
type Authority interface {
	RequireAdmin(caller [20]byte) error
	Require(role string, who [20]byte) error
	Members(role string) ([][20]byte, error)
	Guard() error
}

// Proposal is a pending or executed treasury withdrawal. Threshold is
// captured when the proposal is created.
type Proposal struct {
	ID         uint64
	Token      string
	Amount     *big.Int
	Recipient  [20]byte
	Proposer   [20]byte
	Approvals  [][20]byte
	Threshold  uint32
	Executed   bool
	CreatedAt  uint64
	ExecutedAt uint64
}

// HasApproved reports whether signer already approved.
func (p *Proposal) HasApproved(signer [20]byte) bool {
	for _, a := range p.Approvals {
		if a == signer {
			return true
		}
	}
	return false
}

// Treasury is an M-of-N gate over a module-owned account.
type Treasury struct {
	namespace string
	state     state.Writer
	authority Authority
	assets    Assets
	emitter   events.Emitter
	nowFn     func() int64
}

// NewTreasury creates a treasury gate scoped to namespace.
func NewTreasury(namespace string) *Treasury {
	return &Treasury{
		namespace: namespace,
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend.
func (t *Treasury) SetState(s state.Writer) { t.state = s }

// SetAuthority configures the registry holding the signer set.
func (t *Treasury) SetAuthority(a Authority) { t.authority = a }

// SetAssets configures the asset ledger.
func (t *Treasury) SetAssets(a Assets) { t.assets = a }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (t *Treasury) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

// SetNowFunc overrides the time source.
func (t *Treasury) SetNowFunc(now func() int64) {
	if now == nil {
		t.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	t.nowFn = now
}

// Address returns the module account holding treasury funds.
func (t *Treasury) Address() [20]byte {
	return crypto.ModuleAccount(t.namespace, "treasury")
}

func (t *Treasury) thresholdKey() []byte { return []byte(t.namespace + "/multisig/threshold") }

func (t *Treasury) sequenceKey() []byte { return []byte(t.namespace + "/multisig/sequence") }

func (t *Treasury) balanceKey(token string) []byte {
	return []byte(t.namespace + "/multisig/balance/" + token)
}

func (t *Treasury) proposalKey(id uint64) []byte {
	return []byte(t.namespace + "/multisig/proposal/" + strconv.FormatUint(id, 10))
}

func (t *Treasury) ready() error {
	if t.state == nil {
		return errNilState
	}
	if t.authority == nil || t.assets == nil {
		return errNotWired
	}
	return nil
}

// Threshold returns the configured approval threshold, or zero when unset.
func (t *Treasury) Threshold() (uint32, error) {
	if t.state == nil {
		return 0, errNilState
	}
	var threshold uint32
	if _, err := t.state.KVGet(t.thresholdKey(), &threshold); err != nil {
		return 0, err
	}
	return threshold, nil
}

// Configure sets the approval threshold. It must lie between one and the
// current number of signers.
func (t *Treasury) Configure(caller [20]byte, threshold uint32) error {
	if err := t.ready(); err != nil {
		return err
	}
	if err := t.authority.RequireAdmin(caller); err != nil {
		return err
	}
	signers, err := t.authority.Members(roles.RoleMultisigSigner)
	if err != nil {
		return err
	}
	if threshold == 0 || int(threshold) > len(signers) {
		return fmt.Errorf("multisig: %w: threshold %d with %d signers", coreerrors.ErrInvalidArgument, threshold, len(signers))
	}
	if err := t.state.KVPut(t.thresholdKey(), threshold); err != nil {
		return err
	}
	t.emitter.Emit(Configured{Namespace: t.namespace, Threshold: threshold, Signers: uint32(len(signers))})
	return nil
}

// Balance returns the tracked treasury balance of token.
func (t *Treasury) Balance(token string) (*big.Int, error) {
	if t.state == nil {
		return nil, errNilState
	}
	return state.LoadBig(t.state, t.balanceKey(token))
}

// Fund moves amount of token from the funder into the treasury.
func (t *Treasury) Fund(from [20]byte, token string, amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("multisig: %w: amount must be positive", coreerrors.ErrInvalidArgument)
	}
	if err := t.authority.Guard(); err != nil {
		return err
	}
	if err := t.assets.Transfer(token, from, t.Address(), amount); err != nil {
		return err
	}
	return t.Credit(token, amount)
}

// Credit records funds that already arrived at the treasury address through
// another module, such as raffle fees or node sales.
func (t *Treasury) Credit(token string, amount *big.Int) error {
	if t.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("multisig: %w: amount must be positive", coreerrors.ErrInvalidArgument)
	}
	balance, err := state.AddBig(t.state, t.balanceKey(token), amount)
	if err != nil {
		return err
	}
	t.emitter.Emit(Funded{Namespace: t.namespace, Token: token, Amount: new(big.Int).Set(amount), Balance: balance})
	return nil
}

// Pay releases amount straight from the tracked treasury. Modules use it for
// programmatic outflows such as accrued rewards; discretionary withdrawals go
// through Propose and Approve.
func (t *Treasury) Pay(token string, to [20]byte, amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("multisig: %w: amount must be positive", coreerrors.ErrInvalidArgument)
	}
	return t.debit(token, to, amount)
}

func (t *Treasury) debit(token string, to [20]byte, amount *big.Int) error {
	balance, err := t.Balance(token)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("multisig: %w: treasury holds %s %s", coreerrors.ErrInsufficientFunds, balance, token)
	}
	if err := t.assets.Transfer(token, t.Address(), to, amount); err != nil {
		return err
	}
	return state.StoreBig(t.state, t.balanceKey(token), balance.Sub(balance, amount))
}

// Proposal returns the stored proposal.
func (t *Treasury) Proposal(id uint64) (*Proposal, error) {
	if t.state == nil {
		return nil, errNilState
	}
	p := new(Proposal)
	ok, err := t.state.KVGet(t.proposalKey(id), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("multisig: %w: proposal %d", coreerrors.ErrNotFound, id)
	}
	return p, nil
}

// Propose opens a withdrawal. The proposer counts as the first approval and
// a threshold of one executes immediately.
func (t *Treasury) Propose(proposer [20]byte, token string, amount *big.Int, recipient [20]byte) (*Proposal, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("multisig: %w: amount must be positive", coreerrors.ErrInvalidArgument)
	}
	if recipient == ([20]byte{}) {
		return nil, fmt.Errorf("multisig: %w: recipient required", coreerrors.ErrInvalidArgument)
	}
	if err := t.authority.Guard(); err != nil {
		return nil, err
	}
	if err := t.authority.Require(roles.RoleMultisigSigner, proposer); err != nil {
		return nil, err
	}
	threshold, err := t.Threshold()
	if err != nil {
		return nil, err
	}
	if threshold == 0 {
		return nil, errNoSigners
	}
	balance, err := t.Balance(token)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("multisig: %w: treasury holds %s %s", coreerrors.ErrInsufficientFunds, balance, token)
	}
	id, err := state.NextSequence(t.state, t.sequenceKey())
	if err != nil {
		return nil, err
	}
	p := &Proposal{
		ID:        id,
		Token:     token,
		Amount:    new(big.Int).Set(amount),
		Recipient: recipient,
		Proposer:  proposer,
		Approvals: [][20]byte{proposer},
		Threshold: threshold,
		CreatedAt: uint64(t.nowFn()),
	}
	t.emitter.Emit(Proposed{Namespace: t.namespace, Proposal: *p})
	if err := t.maybeExecute(p); err != nil {
		return nil, err
	}
	if err := t.state.KVPut(t.proposalKey(id), p); err != nil {
		return nil, err
	}
	return p, nil
}

// Approve adds signer's approval and executes once the threshold is met. Only
// approvals from current signers count toward the threshold.
func (t *Treasury) Approve(signer [20]byte, id uint64) (*Proposal, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	if err := t.authority.Guard(); err != nil {
		return nil, err
	}
	if err := t.authority.Require(roles.RoleMultisigSigner, signer); err != nil {
		return nil, err
	}
	p, err := t.Proposal(id)
	if err != nil {
		return nil, err
	}
	if p.Executed {
		return nil, fmt.Errorf("multisig: %w: proposal %d", coreerrors.ErrAlreadyExecuted, id)
	}
	if p.HasApproved(signer) {
		return nil, fmt.Errorf("multisig: %w: proposal %d", coreerrors.ErrDuplicateApproval, id)
	}
	p.Approvals = append(p.Approvals, signer)
	sort.Slice(p.Approvals, func(i, j int) bool {
		return bytes.Compare(p.Approvals[i][:], p.Approvals[j][:]) < 0
	})
	t.emitter.Emit(Approved{Namespace: t.namespace, ID: id, Signer: signer, Approvals: uint32(len(p.Approvals))})
	if err := t.maybeExecute(p); err != nil {
		return nil, err
	}
	if err := t.state.KVPut(t.proposalKey(id), p); err != nil {
		return nil, err
	}
	return p, nil
}

// countApprovals returns how many of p's approvals come from principals that
// still hold the signer role. Approvals from signers removed by a later
// ConfigureMultisig stay on the record but no longer count.
func (t *Treasury) countApprovals(p *Proposal) (uint32, error) {
	signers, err := t.authority.Members(roles.RoleMultisigSigner)
	if err != nil {
		return 0, err
	}
	current := make(map[[20]byte]struct{}, len(signers))
	for _, s := range signers {
		current[s] = struct{}{}
	}
	var n uint32
	for _, a := range p.Approvals {
		if _, ok := current[a]; ok {
			n++
		}
	}
	return n, nil
}

func (t *Treasury) maybeExecute(p *Proposal) error {
	if p.Executed {
		return nil
	}
	approvals, err := t.countApprovals(p)
	if err != nil {
		return err
	}
	if approvals < p.Threshold {
		return nil
	}
	if err := t.debit(p.Token, p.Recipient, p.Amount); err != nil {
		return err
	}
	p.Executed = true
	p.ExecutedAt = uint64(t.nowFn())
	t.emitter.Emit(Executed{Namespace: t.namespace, Proposal: *p})
	return nil
}
