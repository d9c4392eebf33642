package accrual

import (
	"fmt"
	"math/big"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
)

const (
	// SecondsPerDay is the accrual quantum. Partial days earn nothing.
	SecondsPerDay = 86400
	// BasisPoints is the denominator of proportional shares.
	BasisPoints = 10000
)

var bpsDenominator = big.NewInt(BasisPoints)

// Schedule is the accrual rule attached to a holding. It is implemented by
// Flat and Proportional only.
type Schedule interface {
	schedule()
}

// Flat accrues a fixed amount per elapsed day.
type Flat struct {
	DailyRate *big.Int
}

// Proportional accrues a pool's daily emission weighted by the holding's
// share of the pool, expressed in basis points.
type Proportional struct {
	PoolDailyRate *big.Int
	Amount        *big.Int
	PoolTotal     *big.Int
}

func (Flat) schedule()         {}
func (Proportional) schedule() {}

// Holding is one accruing position.
type Holding struct {
	ID         string
	Schedule   Schedule
	LastClaim  int64
	Cumulative *big.Int
}

// Days returns the number of whole days between last and now.
func Days(last, now int64) uint64 {
	if now <= last {
		return 0
	}
	return uint64((now - last) / SecondsPerDay)
}

// FlatPending computes days*rate.
func FlatPending(rate *big.Int, days uint64) *big.Int {
	if rate == nil || rate.Sign() <= 0 || days == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(rate, new(big.Int).SetUint64(days))
}

// ProportionalPending computes days*poolRate*share/10000 where share is the
// holding's basis-point share of the pool. Both divisions truncate.
func ProportionalPending(poolRate, amount, poolTotal *big.Int, days uint64) *big.Int {
	if days == 0 || poolRate == nil || poolRate.Sign() <= 0 || amount == nil || amount.Sign() <= 0 ||
		poolTotal == nil || poolTotal.Sign() <= 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(amount, bpsDenominator)
	share.Quo(share, poolTotal)
	pending := new(big.Int).Mul(new(big.Int).SetUint64(days), poolRate)
	pending.Mul(pending, share)
	return pending.Quo(pending, bpsDenominator)
}

// Pending returns what h has accrued at now and not yet claimed.
func Pending(h Holding, now int64) (*big.Int, error) {
	days := Days(h.LastClaim, now)
	switch s := h.Schedule.(type) {
	case Flat:
		return FlatPending(s.DailyRate, days), nil
	case *Flat:
		return FlatPending(s.DailyRate, days), nil
	case Proportional:
		return ProportionalPending(s.PoolDailyRate, s.Amount, s.PoolTotal, days), nil
	case *Proportional:
		return ProportionalPending(s.PoolDailyRate, s.Amount, s.PoolTotal, days), nil
	default:
		return nil, fmt.Errorf("accrual: %w: unknown schedule %T", coreerrors.ErrInvalidArgument, h.Schedule)
	}
}

// Aggregate sums pending rewards across holdings and returns the per-holding
// contributions in input order.
func Aggregate(holdings []*Holding, now int64) (*big.Int, []*big.Int, error) {
	total := big.NewInt(0)
	parts := make([]*big.Int, len(holdings))
	for i, h := range holdings {
		if h == nil {
			parts[i] = big.NewInt(0)
			continue
		}
		pending, err := Pending(*h, now)
		if err != nil {
			return nil, nil, err
		}
		parts[i] = pending
		total.Add(total, pending)
	}
	return total, parts, nil
}

// Funder delivers claimed rewards, either by a treasury transfer or by minting.
type Funder interface {
	Fund(to [20]byte, amount *big.Int) error
}

// FunderFunc adapts a function to Funder.
type FunderFunc func(to [20]byte, amount *big.Int) error

func (f FunderFunc) Fund(to [20]byte, amount *big.Int) error { return f(to, amount) }

// Claim pays h's pending reward to beneficiary. The holding is only updated
// when funding succeeds.
func Claim(h *Holding, beneficiary [20]byte, funder Funder, now int64) (*big.Int, error) {
	if h == nil {
		return nil, fmt.Errorf("accrual: %w: nil holding", coreerrors.ErrInvalidArgument)
	}
	return ClaimAll([]*Holding{h}, beneficiary, funder, now)
}

// ClaimAll pays the sum of pending rewards across holdings in one funding
// call. Every holding that contributed is advanced together; holdings with a
// zero contribution keep their claim time. A zero sum fails the whole call.
func ClaimAll(holdings []*Holding, beneficiary [20]byte, funder Funder, now int64) (*big.Int, error) {
	if funder == nil {
		return nil, fmt.Errorf("accrual: %w: funder required", coreerrors.ErrInvalidArgument)
	}
	total, parts, err := Aggregate(holdings, now)
	if err != nil {
		return nil, err
	}
	if total.Sign() == 0 {
		return nil, fmt.Errorf("accrual: %w", coreerrors.ErrNoRewardsAvailable)
	}
	if err := funder.Fund(beneficiary, total); err != nil {
		return nil, err
	}
	for i, h := range holdings {
		if h == nil || parts[i].Sign() == 0 {
			continue
		}
		h.LastClaim = now
		if h.Cumulative == nil {
			h.Cumulative = big.NewInt(0)
		}
		h.Cumulative = new(big.Int).Add(h.Cumulative, parts[i])
	}
	return total, nil
}
