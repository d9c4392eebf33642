package lpstaking

import "math/big"

// Pool is a staking pool. Stakes sit in the pool's escrow scope; rewards are
// paid from the module reserve at RewardRate per day across the whole pool.
type Pool struct {
	ID          string
	StakeToken  string
	RewardToken string
	RewardRate  *big.Int
	LockPeriod  uint64
	TotalStaked *big.Int
	CreatedAt   uint64
}

// Position is one owner's stake in a pool.
type Position struct {
	Pool         string
	Owner        [20]byte
	Amount       *big.Int
	StakedAt     uint64
	LastClaim    uint64
	TotalClaimed *big.Int
}

// Unlocked reports whether the position may be withdrawn at now.
func (p *Position) Unlocked(lock uint64, now int64) bool {
	return now >= 0 && uint64(now) >= p.StakedAt+lock
}

// PoolParams describes a pool opened by the admin.
type PoolParams struct {
	ID          string
	StakeToken  string
	RewardToken string
	RewardRate  *big.Int
	// LockPeriod is the number of seconds a stake is held before it may be
	// withdrawn.
	LockPeriod uint64
}
