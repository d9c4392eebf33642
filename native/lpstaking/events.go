package lpstaking

import (
	"math/big"
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	TypePoolCreated    = "lpstaking.pool_created"
	TypeRewardsFunded  = "lpstaking.rewards_funded"
	TypeStaked         = "lpstaking.staked"
	TypeUnstaked       = "lpstaking.unstaked"
	TypeRewardsClaimed = "lpstaking.rewards_claimed"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type PoolCreated struct {
	Pool Pool
}

func (PoolCreated) EventType() string { return TypePoolCreated }

func (e PoolCreated) Event() *types.Event {
	return &types.Event{Type: TypePoolCreated, Attributes: map[string]string{
		"pool":        e.Pool.ID,
		"stakeToken":  e.Pool.StakeToken,
		"rewardToken": e.Pool.RewardToken,
		"rewardRate":  amountString(e.Pool.RewardRate),
		"lockPeriod":  strconv.FormatUint(e.Pool.LockPeriod, 10),
	}}
}

type RewardsFunded struct {
	Funder  [20]byte
	Token   string
	Amount  *big.Int
	Reserve *big.Int
}

func (RewardsFunded) EventType() string { return TypeRewardsFunded }

func (e RewardsFunded) Event() *types.Event {
	return &types.Event{Type: TypeRewardsFunded, Attributes: map[string]string{
		"funder":  crypto.FormatPrincipal(e.Funder),
		"token":   e.Token,
		"amount":  amountString(e.Amount),
		"reserve": amountString(e.Reserve),
	}}
}

type Staked struct {
	Pool     string
	Owner    [20]byte
	Amount   *big.Int
	Position *big.Int
}

func (Staked) EventType() string { return TypeStaked }

func (e Staked) Event() *types.Event { return stakeEvent(TypeStaked, e.Pool, e.Owner, e.Amount, e.Position) }

type Unstaked struct {
	Pool     string
	Owner    [20]byte
	Amount   *big.Int
	Position *big.Int
}

func (Unstaked) EventType() string { return TypeUnstaked }

func (e Unstaked) Event() *types.Event {
	return stakeEvent(TypeUnstaked, e.Pool, e.Owner, e.Amount, e.Position)
}

func stakeEvent(eventType, pool string, owner [20]byte, amount, position *big.Int) *types.Event {
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"pool":     pool,
		"owner":    crypto.FormatPrincipal(owner),
		"amount":   amountString(amount),
		"position": amountString(position),
	}}
}

type RewardsClaimed struct {
	Pool   string
	Owner  [20]byte
	Token  string
	Amount *big.Int
}

func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeRewardsClaimed, Attributes: map[string]string{
		"pool":   e.Pool,
		"owner":  crypto.FormatPrincipal(e.Owner),
		"token":  e.Token,
		"amount": amountString(e.Amount),
	}}
}
