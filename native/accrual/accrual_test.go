package accrual

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
)

type recordingFunder struct {
	paid []*big.Int
	err  error
}

func (f *recordingFunder) Fund(_ [20]byte, amount *big.Int) error {
	if f.err != nil {
		return f.err
	}
	f.paid = append(f.paid, new(big.Int).Set(amount))
	return nil
}

func TestFlatQuantizedToDays(t *testing.T) {
	const t0 = int64(1_700_000_000)
	h := &Holding{ID: "node-1", Schedule: Flat{DailyRate: big.NewInt(5)}, LastClaim: t0, Cumulative: big.NewInt(0)}
	funder := &recordingFunder{}

	_, err := Claim(h, [20]byte{1}, funder, t0+86399)
	require.ErrorIs(t, err, coreerrors.ErrNoRewardsAvailable)
	require.Equal(t, t0, h.LastClaim)

	paid, err := Claim(h, [20]byte{1}, funder, t0+86400)
	require.NoError(t, err)
	require.Equal(t, int64(5), paid.Int64())
	require.Equal(t, t0+86400, h.LastClaim)
	require.Equal(t, int64(5), h.Cumulative.Int64())

	// Claiming again at the same instant pays nothing.
	_, err = Claim(h, [20]byte{1}, funder, t0+86400)
	require.ErrorIs(t, err, coreerrors.ErrNoRewardsAvailable)
	require.Len(t, funder.paid, 1)
}

func TestProportionalShare(t *testing.T) {
	// 250 of 1000 is 2500 bps; 3 days at 100/day yields 75.
	got := ProportionalPending(big.NewInt(100), big.NewInt(250), big.NewInt(1000), 3)
	require.Equal(t, int64(75), got.Int64())

	// Shares truncate to whole basis points.
	got = ProportionalPending(big.NewInt(10), big.NewInt(1), big.NewInt(3), 1)
	require.Equal(t, int64(3), got.Int64())

	require.Equal(t, int64(0), ProportionalPending(big.NewInt(10), big.NewInt(1), big.NewInt(0), 1).Int64())
}

func TestClaimAllAdvancesContributorsOnly(t *testing.T) {
	const t0 = int64(0)
	a := &Holding{ID: "a", Schedule: Flat{DailyRate: big.NewInt(5)}, LastClaim: t0}
	b := &Holding{ID: "b", Schedule: Flat{DailyRate: big.NewInt(60)}, LastClaim: t0 + 86400}
	c := &Holding{ID: "c", Schedule: &Proportional{PoolDailyRate: big.NewInt(100), Amount: big.NewInt(1), PoolTotal: big.NewInt(2)}, LastClaim: t0}
	funder := &recordingFunder{}

	now := t0 + 2*86400 - 1
	total, err := ClaimAll([]*Holding{a, b, c}, [20]byte{9}, funder, now)
	require.NoError(t, err)
	// a: 1 day * 5, b: 0 days, c: 1 day * 100 * 5000 / 10000
	require.Equal(t, int64(55), total.Int64())
	require.Equal(t, now, a.LastClaim)
	require.Equal(t, t0+86400, b.LastClaim)
	require.Nil(t, b.Cumulative)
	require.Equal(t, int64(50), c.Cumulative.Int64())
}

func TestClaimAllFundingFailureLeavesHoldings(t *testing.T) {
	boom := errors.New("treasury empty")
	h := &Holding{ID: "a", Schedule: Flat{DailyRate: big.NewInt(5)}, LastClaim: 0}
	_, err := ClaimAll([]*Holding{h}, [20]byte{9}, &recordingFunder{err: boom}, 3*86400)
	require.ErrorIs(t, err, boom)
	require.Equal(t, int64(0), h.LastClaim)
	require.Nil(t, h.Cumulative)
}

func TestFunderFunc(t *testing.T) {
	var got *big.Int
	f := FunderFunc(func(_ [20]byte, amount *big.Int) error { got = amount; return nil })
	h := &Holding{Schedule: Flat{DailyRate: big.NewInt(1)}}
	_, err := Claim(h, [20]byte{}, f, 2*86400)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Int64())
}

func TestDays(t *testing.T) {
	require.Equal(t, uint64(0), Days(100, 50))
	require.Equal(t, uint64(0), Days(0, 86399))
	require.Equal(t, uint64(1), Days(0, 86400))
	require.Equal(t, uint64(10), Days(5, 5+10*86400+1))
}
