package common

import (
	"errors"
	"math/big"
	"testing"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
)

func TestCheckWindowLimit(t *testing.T) {
	limit := big.NewInt(1000)
	prev := WindowUsage{WindowID: 1, Used: big.NewInt(0)}

	next, err := CheckWindow(limit, 1, prev, big.NewInt(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Used.Cmp(limit) != 0 {
		t.Fatalf("unexpected usage: %s", next.Used)
	}

	denied, err := CheckWindow(limit, 1, next, big.NewInt(1))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if denied.Used.Cmp(next.Used) != 0 || denied.WindowID != next.WindowID {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckWindow(limit, 2, next, big.NewInt(1))
	if err != nil {
		t.Fatalf("unexpected error after window rollover: %v", err)
	}
	if rollover.WindowID != 2 || rollover.Used.Int64() != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckWindowUnlimited(t *testing.T) {
	next, err := CheckWindow(nil, 3, WindowUsage{}, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Used.Int64() != 1_000_000 {
		t.Fatalf("unexpected usage: %s", next.Used)
	}
}

func TestWindowID(t *testing.T) {
	if WindowID(86_399, 86_400) != 0 || WindowID(86_400, 86_400) != 1 {
		t.Fatalf("unexpected day bucketing")
	}
	if WindowID(-5, 86_400) != 0 {
		t.Fatalf("negative timestamps must map to window 0")
	}
}

type pauseFlag bool

func (p pauseFlag) Paused() (bool, error) { return bool(p), nil }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "vault"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	if err := Guard(pauseFlag(false), "vault"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := Guard(pauseFlag(true), "vault")
	if !errors.Is(err, coreerrors.ErrContractPaused) {
		t.Fatalf("expected ErrContractPaused, got %v", err)
	}
}
