package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err   error
		class Class
		kind  string
	}{
		{fmt.Errorf("vault: %w: tournament 7", ErrNotFound), ClassCallerError, "not_found"},
		{fmt.Errorf("payout: %w", ErrNonceReplay), ClassNeverRetry, "nonce_replay"},
		{fmt.Errorf("payout: %w", ErrCapExceeded), ClassRetryLater, "cap_exceeded"},
		{fmt.Errorf("token: %w: daily mint", ErrCapacityExceeded), ClassRetryLater, "capacity_exceeded"},
		{ErrNotInitialized, ClassSetup, "not_initialized"},
		{stderrors.New("disk on fire"), ClassUnknown, "internal"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.class, Classify(tc.err), tc.err.Error())
		require.Equal(t, tc.kind, Kind(tc.err), tc.err.Error())
	}
}

func TestCapExceededIsCapacity(t *testing.T) {
	if !stderrors.Is(ErrCapExceeded, ErrCapacityExceeded) {
		t.Fatalf("cap exceeded must match capacity exceeded")
	}
}

func TestJoinedNonceErrorsMatchBoth(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrNonceReplay, ErrInvalidNonceSequence)
	require.ErrorIs(t, err, ErrNonceReplay)
	require.ErrorIs(t, err, ErrInvalidNonceSequence)
	require.Equal(t, ClassNeverRetry, Classify(err))
	require.Equal(t, "", Kind(nil))
	require.Equal(t, "retry_later", ClassRetryLater.String())
}
