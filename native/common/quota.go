package common

import (
	"errors"
	"math/big"
)

var ErrQuotaExceeded = errors.New("window quota exceeded")

// WindowUsage captures the amount consumed within a fixed time window.
type WindowUsage struct {
	WindowID uint64
	Used     *big.Int
}

// WindowID buckets a unix timestamp into windows of the given length.
func WindowID(now int64, windowSeconds int64) uint64 {
	if now <= 0 || windowSeconds <= 0 {
		return 0
	}
	return uint64(now / windowSeconds)
}

// CheckWindow verifies whether add fits in limit for the current window. The
// counters reset when the window changes. A nil or zero limit disables the
// check. The returned usage reflects the new counters and is only meaningful
// when err is nil; prev is never modified.
func CheckWindow(limit *big.Int, nowWindow uint64, prev WindowUsage, add *big.Int) (WindowUsage, error) {
	used := big.NewInt(0)
	if prev.WindowID == nowWindow && prev.Used != nil {
		used.Set(prev.Used)
	}
	if add != nil {
		used.Add(used, add)
	}
	if limit != nil && limit.Sign() > 0 && used.Cmp(limit) > 0 {
		return prev, ErrQuotaExceeded
	}
	return WindowUsage{WindowID: nowWindow, Used: used}, nil
}
