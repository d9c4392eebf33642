package raffle

import "math/big"

// Seed mixes the draw time, the commit sequence and the tickets sold.
//
// Every input is public or predictable before the draw is submitted, so
// whoever submits the draw can choose a timestamp that selects a chosen
// holder. The draw is suitable for promotional raffles only; anything of
// value needs a commit-reveal or VRF source.
func Seed(timestamp int64, sequence uint64, sold uint32) uint64 {
	return uint64(timestamp) ^ sequence ^ (uint64(sold) * seedFactor)
}

// Index maps seed onto one of the holder slots.
func Index(seed uint64, holders int) uint32 {
	if holders <= 0 {
		return 0
	}
	return uint32(seed % uint64(holders))
}

// Split divides pool into the winner's share and the treasury fee. The fee
// absorbs rounding.
func Split(pool *big.Int) (prize, fee *big.Int) {
	if pool == nil || pool.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	prize = new(big.Int).Mul(pool, big.NewInt(WinnerShare))
	prize.Quo(prize, big.NewInt(100))
	return prize, new(big.Int).Sub(pool, prize)
}
