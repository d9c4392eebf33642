package roles

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/common"
)

// Capability tags recognised by the registry. Admin is held by exactly one
// principal and is not stored as a member set.
const (
	RoleMinter         = "minter"
	RoleBurner         = "burner"
	RoleAttestor       = "attestor"
	RoleMultisigSigner = "multisig-signer"
)

var errNilState = errors.New("roles: state not configured")

var knownRoles = map[string]struct{}{
	RoleMinter:         {},
	RoleBurner:         {},
	RoleAttestor:       {},
	RoleMultisigSigner: {},
}

// Registry maps capabilities to principals for one contract instance.
type Registry struct {
	namespace string
	state     state.Writer
	emitter   events.Emitter
}

// NewRegistry scopes a registry to namespace, typically the module name.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace: strings.TrimSpace(namespace),
		emitter:   events.NoopEmitter{},
	}
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(s state.Writer) { r.state = s }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Namespace returns the instance namespace.
func (r *Registry) Namespace() string { return r.namespace }

func (r *Registry) adminKey() []byte { return []byte(r.namespace + "/roles/admin") }

func (r *Registry) pausedKey() []byte { return []byte(r.namespace + "/roles/paused") }

func (r *Registry) membersKey(role string) []byte {
	return []byte(r.namespace + "/roles/members/" + role)
}

func normalizeRole(role string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(role))
	if _, ok := knownRoles[trimmed]; !ok {
		return "", fmt.Errorf("roles: %w: unknown role %q", coreerrors.ErrInvalidArgument, role)
	}
	return trimmed, nil
}

// Initialize records the first admin. It may only run once per namespace.
func (r *Registry) Initialize(admin [20]byte) error {
	if r.state == nil {
		return errNilState
	}
	if admin == ([20]byte{}) {
		return fmt.Errorf("roles: %w: admin must not be empty", coreerrors.ErrInvalidArgument)
	}
	exists, err := r.state.KVHas(r.adminKey())
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", r.namespace, coreerrors.ErrAlreadyInitialized)
	}
	if err := r.state.KVPut(r.adminKey(), admin); err != nil {
		return err
	}
	if err := r.state.KVPut(r.pausedKey(), false); err != nil {
		return err
	}
	r.emitter.Emit(AdminChanged{Namespace: r.namespace, Admin: admin})
	return nil
}

// Initialized reports whether Initialize has run.
func (r *Registry) Initialized() (bool, error) {
	if r.state == nil {
		return false, errNilState
	}
	return r.state.KVHas(r.adminKey())
}

// Admin returns the current admin.
func (r *Registry) Admin() ([20]byte, error) {
	var admin [20]byte
	if r.state == nil {
		return admin, errNilState
	}
	ok, err := r.state.KVGet(r.adminKey(), &admin)
	if err != nil {
		return admin, err
	}
	if !ok {
		return admin, fmt.Errorf("%s: %w", r.namespace, coreerrors.ErrNotInitialized)
	}
	return admin, nil
}

// RequireAdmin fails with Unauthorized unless caller is the admin.
func (r *Registry) RequireAdmin(caller [20]byte) error {
	admin, err := r.Admin()
	if err != nil {
		return err
	}
	if admin != caller {
		return fmt.Errorf("%s: %w: admin required", r.namespace, coreerrors.ErrUnauthorized)
	}
	return nil
}

// RotateAdmin hands the admin capability to next.
func (r *Registry) RotateAdmin(caller, next [20]byte) error {
	if err := r.RequireAdmin(caller); err != nil {
		return err
	}
	if next == ([20]byte{}) {
		return fmt.Errorf("roles: %w: admin must not be empty", coreerrors.ErrInvalidArgument)
	}
	if err := r.state.KVPut(r.adminKey(), next); err != nil {
		return err
	}
	r.emitter.Emit(AdminChanged{Namespace: r.namespace, Admin: next, Previous: caller})
	return nil
}

// Members returns the sorted member set for role.
func (r *Registry) Members(role string) ([][20]byte, error) {
	if r.state == nil {
		return nil, errNilState
	}
	normalized, err := normalizeRole(role)
	if err != nil {
		return nil, err
	}
	var members [][20]byte
	if err := r.state.KVGetList(r.membersKey(normalized), &members); err != nil {
		return nil, err
	}
	return members, nil
}

func search(members [][20]byte, who [20]byte) (int, bool) {
	idx := sort.Search(len(members), func(i int) bool {
		return bytes.Compare(members[i][:], who[:]) >= 0
	})
	return idx, idx < len(members) && members[idx] == who
}

// Has reports whether who holds role.
func (r *Registry) Has(role string, who [20]byte) (bool, error) {
	members, err := r.Members(role)
	if err != nil {
		return false, err
	}
	_, ok := search(members, who)
	return ok, nil
}

// Require fails with Unauthorized unless who holds role. The registry must be
// initialized.
func (r *Registry) Require(role string, who [20]byte) error {
	if _, err := r.Admin(); err != nil {
		return err
	}
	ok, err := r.Has(role, who)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w: %s role required", r.namespace, coreerrors.ErrUnauthorized, role)
	}
	return nil
}

// Grant adds member to role. Granting an existing member is a no-op.
func (r *Registry) Grant(caller [20]byte, role string, member [20]byte) error {
	if err := r.RequireAdmin(caller); err != nil {
		return err
	}
	if member == ([20]byte{}) {
		return fmt.Errorf("roles: %w: member must not be empty", coreerrors.ErrInvalidArgument)
	}
	normalized, err := normalizeRole(role)
	if err != nil {
		return err
	}
	members, err := r.Members(normalized)
	if err != nil {
		return err
	}
	idx, ok := search(members, member)
	if ok {
		return nil
	}
	members = append(members, [20]byte{})
	copy(members[idx+1:], members[idx:])
	members[idx] = member
	if err := r.state.KVPut(r.membersKey(normalized), members); err != nil {
		return err
	}
	r.emitter.Emit(RoleChanged{Namespace: r.namespace, Role: normalized, Member: member, Granted: true})
	return nil
}

// Revoke removes member from role. Revoking a non-member fails NotFound.
func (r *Registry) Revoke(caller [20]byte, role string, member [20]byte) error {
	if err := r.RequireAdmin(caller); err != nil {
		return err
	}
	normalized, err := normalizeRole(role)
	if err != nil {
		return err
	}
	members, err := r.Members(normalized)
	if err != nil {
		return err
	}
	idx, ok := search(members, member)
	if !ok {
		return fmt.Errorf("%s: %w: %s member", r.namespace, coreerrors.ErrNotFound, normalized)
	}
	members = append(members[:idx], members[idx+1:]...)
	if err := r.state.KVPut(r.membersKey(normalized), members); err != nil {
		return err
	}
	r.emitter.Emit(RoleChanged{Namespace: r.namespace, Role: normalized, Member: member, Granted: false})
	return nil
}

// Replace swaps the whole member set of role, used for attestation key
// rotation where the old key must stop working in the same call.
func (r *Registry) Replace(caller [20]byte, role string, members [][20]byte) error {
	if err := r.RequireAdmin(caller); err != nil {
		return err
	}
	normalized, err := normalizeRole(role)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return fmt.Errorf("roles: %w: %s set must not be empty", coreerrors.ErrInvalidArgument, normalized)
	}
	sorted := make([][20]byte, 0, len(members))
	for _, m := range members {
		if m == ([20]byte{}) {
			return fmt.Errorf("roles: %w: member must not be empty", coreerrors.ErrInvalidArgument)
		}
		idx, ok := search(sorted, m)
		if ok {
			continue
		}
		sorted = append(sorted, [20]byte{})
		copy(sorted[idx+1:], sorted[idx:])
		sorted[idx] = m
	}
	previous, err := r.Members(normalized)
	if err != nil {
		return err
	}
	if err := r.state.KVPut(r.membersKey(normalized), sorted); err != nil {
		return err
	}
	for _, m := range previous {
		if _, ok := search(sorted, m); !ok {
			r.emitter.Emit(RoleChanged{Namespace: r.namespace, Role: normalized, Member: m, Granted: false})
		}
	}
	for _, m := range sorted {
		if _, ok := search(previous, m); !ok {
			r.emitter.Emit(RoleChanged{Namespace: r.namespace, Role: normalized, Member: m, Granted: true})
		}
	}
	return nil
}

// Paused reports the pause flag. Getters never consult it.
func (r *Registry) Paused() (bool, error) {
	if r.state == nil {
		return false, errNilState
	}
	var paused bool
	if _, err := r.state.KVGet(r.pausedKey(), &paused); err != nil {
		return false, err
	}
	return paused, nil
}

// SetPaused toggles the circuit breaker. Only the admin may call it, and it
// is the one mutating call that works while paused.
func (r *Registry) SetPaused(caller [20]byte, paused bool) error {
	if err := r.RequireAdmin(caller); err != nil {
		return err
	}
	if err := r.state.KVPut(r.pausedKey(), paused); err != nil {
		return err
	}
	r.emitter.Emit(PauseChanged{Namespace: r.namespace, Paused: paused})
	return nil
}

// Guard fails with NotInitialized before setup and with ContractPaused while
// paused. Every mutating operation other than unpause calls it first.
func (r *Registry) Guard() error {
	if _, err := r.Admin(); err != nil {
		return err
	}
	return common.Guard(r, r.namespace)
}
