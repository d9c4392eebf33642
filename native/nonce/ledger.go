package nonce

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
)

// Policy selects how a scope accepts nonces.
type Policy uint8

const (
	// PolicySequential accepts exactly Last+1.
	PolicySequential Policy = iota + 1
	// PolicyUsedSet accepts any nonce not consumed before.
	PolicyUsedSet
)

func (p Policy) String() string {
	switch p {
	case PolicySequential:
		return "sequential"
	case PolicyUsedSet:
		return "used-set"
	default:
		return "unknown"
	}
}

// ParsePolicy decodes a policy name.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sequential", "seq":
		return PolicySequential, nil
	case "used-set", "usedset", "set":
		return PolicyUsedSet, nil
	default:
		return 0, fmt.Errorf("nonce: %w: unknown policy %q", coreerrors.ErrInvalidArgument, value)
	}
}

var errNilState = errors.New("nonce: state not configured")

// Ledger tracks consumed nonces per scope under one policy.
type Ledger struct {
	namespace string
	policy    Policy
	state     state.Writer
}

// NewLedger scopes a nonce ledger to namespace.
func NewLedger(namespace string, policy Policy) *Ledger {
	return &Ledger{namespace: namespace, policy: policy}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(s state.Writer) { l.state = s }

// Policy returns the configured policy.
func (l *Ledger) Policy() Policy { return l.policy }

func (l *Ledger) lastKey(scope string) []byte {
	return []byte(l.namespace + "/nonce/last/" + scope)
}

func (l *Ledger) usedKey(scope string, n uint64) []byte {
	return []byte(l.namespace + "/nonce/used/" + scope + "/" + strconv.FormatUint(n, 10))
}

// Last returns the highest nonce accepted for scope, or zero.
func (l *Ledger) Last(scope string) (uint64, error) {
	if l.state == nil {
		return 0, errNilState
	}
	return state.LoadUint64(l.state, l.lastKey(scope))
}

// IsUsed reports whether n has been consumed for scope.
func (l *Ledger) IsUsed(scope string, n uint64) (bool, error) {
	if l.state == nil {
		return false, errNilState
	}
	return l.state.KVHas(l.usedKey(scope, n))
}

// Validate applies policy to a candidate nonce without touching state.
func Validate(policy Policy, last uint64, used bool, n uint64) error {
	switch policy {
	case PolicySequential:
		if used {
			return fmt.Errorf("nonce: %w: %w: %d already consumed", coreerrors.ErrNonceReplay, coreerrors.ErrInvalidNonceSequence, n)
		}
		if n != last+1 {
			return fmt.Errorf("nonce: %w: got %d, want %d", coreerrors.ErrInvalidNonceSequence, n, last+1)
		}
		return nil
	case PolicyUsedSet:
		if used {
			return fmt.Errorf("nonce: %w: %d already consumed", coreerrors.ErrNonceReplay, n)
		}
		return nil
	default:
		return fmt.Errorf("nonce: %w: unsupported policy %d", coreerrors.ErrInvalidArgument, policy)
	}
}

// Check reports whether n would be accepted for scope.
func (l *Ledger) Check(scope string, n uint64) error {
	last, err := l.Last(scope)
	if err != nil {
		return err
	}
	used, err := l.IsUsed(scope, n)
	if err != nil {
		return err
	}
	// Sequential scopes never store a used marker above Last.
	if l.policy == PolicySequential && !used && n != 0 && n <= last {
		used = true
	}
	return Validate(l.policy, last, used, n)
}

// Consume checks n and records it as used.
func (l *Ledger) Consume(scope string, n uint64) error {
	if err := l.Check(scope, n); err != nil {
		return err
	}
	last, err := l.Last(scope)
	if err != nil {
		return err
	}
	if err := l.state.KVPut(l.usedKey(scope, n), true); err != nil {
		return err
	}
	if n > last {
		if err := l.state.KVPut(l.lastKey(scope), n); err != nil {
			return err
		}
	}
	return nil
}
