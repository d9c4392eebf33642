package hostrewards

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	TypeHostRegistered = "hostrewards.host_registered"
	TypeStakeAdded     = "hostrewards.stake_added"
	TypeStakeWithdrawn = "hostrewards.stake_withdrawn"
	TypeHostSlashed    = "hostrewards.host_slashed"
	TypePoolFunded     = "hostrewards.pool_funded"
	TypeJobCreated     = "hostrewards.job_created"
	TypeJobStatus      = "hostrewards.job_status"
	TypeClaimPaid      = "hostrewards.claim_paid"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type HostRegistered struct {
	Host  [20]byte
	Stake *big.Int
}

func (HostRegistered) EventType() string { return TypeHostRegistered }

func (e HostRegistered) Event() *types.Event {
	return &types.Event{Type: TypeHostRegistered, Attributes: map[string]string{
		"host":  crypto.FormatPrincipal(e.Host),
		"stake": amountString(e.Stake),
	}}
}

// StakeChanged reports a stake top-up or withdrawal.
type StakeChanged struct {
	Host  [20]byte
	Delta *big.Int
	Stake *big.Int
	Added bool
}

func (e StakeChanged) EventType() string {
	if e.Added {
		return TypeStakeAdded
	}
	return TypeStakeWithdrawn
}

func (e StakeChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"host":   crypto.FormatPrincipal(e.Host),
		"amount": amountString(e.Delta),
		"stake":  amountString(e.Stake),
	}}
}

type HostSlashed struct {
	Host       [20]byte
	Amount     *big.Int
	Reason     [32]byte
	Reputation uint32
}

func (HostSlashed) EventType() string { return TypeHostSlashed }

func (e HostSlashed) Event() *types.Event {
	return &types.Event{Type: TypeHostSlashed, Attributes: map[string]string{
		"host":       crypto.FormatPrincipal(e.Host),
		"amount":     amountString(e.Amount),
		"reason":     hex.EncodeToString(e.Reason[:]),
		"reputation": strconv.FormatUint(uint64(e.Reputation), 10),
	}}
}

type PoolFunded struct {
	Funder  [20]byte
	Amount  *big.Int
	Balance *big.Int
}

func (PoolFunded) EventType() string { return TypePoolFunded }

func (e PoolFunded) Event() *types.Event {
	return &types.Event{Type: TypePoolFunded, Attributes: map[string]string{
		"funder":  crypto.FormatPrincipal(e.Funder),
		"amount":  amountString(e.Amount),
		"balance": amountString(e.Balance),
	}}
}

type JobCreated struct {
	Job Job
}

func (JobCreated) EventType() string { return TypeJobCreated }

func (e JobCreated) Event() *types.Event {
	return &types.Event{Type: TypeJobCreated, Attributes: map[string]string{
		"job":       e.Job.ID,
		"host":      crypto.FormatPrincipal(e.Job.Host),
		"requester": crypto.FormatPrincipal(e.Job.Requester),
		"jobType":   e.Job.Type.String(),
		"reward":    amountString(e.Job.Reward),
	}}
}

type JobStatusChanged struct {
	JobID  string
	Host   [20]byte
	Status JobStatus
}

func (JobStatusChanged) EventType() string { return TypeJobStatus }

func (e JobStatusChanged) Event() *types.Event {
	return &types.Event{Type: TypeJobStatus, Attributes: map[string]string{
		"job":    e.JobID,
		"host":   crypto.FormatPrincipal(e.Host),
		"status": e.Status.String(),
	}}
}

type ClaimPaid struct {
	Claim Claim
}

func (ClaimPaid) EventType() string { return TypeClaimPaid }

func (e ClaimPaid) Event() *types.Event {
	return &types.Event{Type: TypeClaimPaid, Attributes: map[string]string{
		"claim":  strconv.FormatUint(e.Claim.ID, 10),
		"job":    e.Claim.JobID,
		"host":   crypto.FormatPrincipal(e.Claim.Host),
		"amount": amountString(e.Claim.Amount),
		"nonce":  strconv.FormatUint(e.Claim.Nonce, 10),
	}}
}
