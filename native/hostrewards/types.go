package hostrewards

import (
	"fmt"
	"math/big"
	"strings"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
)

const (
	// InitialReputation is assigned on registration, on a 0-1000 scale.
	InitialReputation uint32 = 500
	MaxReputation     uint32 = 1000
	// SlashReputationPenalty is deducted, saturating at zero, per slash.
	SlashReputationPenalty uint32 = 100
)

// JobType classifies the work a host performs.
type JobType uint8

const (
	JobTournamentServer JobType = iota + 1
	JobGameRelay
	JobContentDelivery
	JobCustom
)

func (t JobType) String() string {
	switch t {
	case JobTournamentServer:
		return "tournament_server"
	case JobGameRelay:
		return "game_relay"
	case JobContentDelivery:
		return "content_delivery"
	case JobCustom:
		return "custom"
	default:
		return fmt.Sprintf("job_type(%d)", uint8(t))
	}
}

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTournamentServer, JobGameRelay, JobContentDelivery, JobCustom:
		return true
	default:
		return false
	}
}

// ParseJobType converts the String form back into a JobType.
func ParseJobType(value string) (JobType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "tournament_server":
		return JobTournamentServer, nil
	case "game_relay":
		return JobGameRelay, nil
	case "content_delivery":
		return JobContentDelivery, nil
	case "custom", "":
		return JobCustom, nil
	default:
		return 0, fmt.Errorf("hostrewards: %w: unknown job type %q", coreerrors.ErrInvalidArgument, value)
	}
}

// JobStatus is the lifecycle state of a compute job.
type JobStatus uint8

const (
	JobPending JobStatus = iota + 1
	JobActive
	JobCompleted
	JobDisputed
	JobCancelled
)

func (s JobStatus) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobActive:
		return "active"
	case JobCompleted:
		return "completed"
	case JobDisputed:
		return "disputed"
	case JobCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("job_status(%d)", uint8(s))
	}
}

// Open reports whether the job still ties up its host's stake.
func (s JobStatus) Open() bool {
	switch s {
	case JobPending, JobActive:
		return true
	case JobCompleted, JobDisputed, JobCancelled:
		return false
	default:
		return false
	}
}

// Claimable reports whether a payout may be drawn for the job.
func (s JobStatus) Claimable() bool {
	switch s {
	case JobCompleted:
		return true
	case JobPending, JobActive, JobDisputed, JobCancelled:
		return false
	default:
		return false
	}
}

// Host is a registered compute provider.
type Host struct {
	Address       [20]byte
	Stake         *big.Int
	RegisteredAt  uint64
	TotalEarnings *big.Int
	JobsCompleted uint64
	Reputation    uint32
	Active        bool
	LastHeartbeat uint64
}

// Job is a unit of compute work with its escrowed reward.
type Job struct {
	ID          string
	Host        [20]byte
	Requester   [20]byte
	Type        JobType
	Reward      *big.Int
	Paid        *big.Int
	StartedAt   uint64
	CompletedAt uint64
	Status      JobStatus
	ProofHash   [32]byte
}

// Claim records one executed payout to a host.
type Claim struct {
	ID              uint64
	JobID           string
	Host            [20]byte
	Amount          *big.Int
	Nonce           uint64
	Deadline        uint64
	AttestationHash [32]byte
	PaidAt          uint64
}

// Limits bounds staking and job rewards.
type Limits struct {
	MinStake        *big.Int
	MaxPayoutPerJob *big.Int
}

// Validate rejects non-positive limits.
func (l Limits) Validate() error {
	if l.MinStake == nil || l.MinStake.Sign() < 0 {
		return fmt.Errorf("hostrewards: %w: min stake must not be negative", coreerrors.ErrInvalidArgument)
	}
	if l.MaxPayoutPerJob == nil || l.MaxPayoutPerJob.Sign() <= 0 {
		return fmt.Errorf("hostrewards: %w: max payout per job must be positive", coreerrors.ErrInvalidArgument)
	}
	return nil
}
