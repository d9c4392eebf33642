package roles

import (
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	TypeAdminChanged = "roles.admin_changed"
	TypeRoleChanged  = "roles.role_changed"
	TypePauseChanged = "roles.pause_changed"
)

// AdminChanged is emitted on initialization and on every rotation.
type AdminChanged struct {
	Namespace string
	Admin     [20]byte
	Previous  [20]byte
}

func (AdminChanged) EventType() string { return TypeAdminChanged }

func (e AdminChanged) Event() *types.Event {
	attrs := map[string]string{
		"namespace": e.Namespace,
		"admin":     crypto.FormatPrincipal(e.Admin),
	}
	if e.Previous != ([20]byte{}) {
		attrs["previous"] = crypto.FormatPrincipal(e.Previous)
	}
	return &types.Event{Type: TypeAdminChanged, Attributes: attrs}
}

// RoleChanged is emitted when a member is granted or revoked.
type RoleChanged struct {
	Namespace string
	Role      string
	Member    [20]byte
	Granted   bool
}

func (RoleChanged) EventType() string { return TypeRoleChanged }

func (e RoleChanged) Event() *types.Event {
	return &types.Event{Type: TypeRoleChanged, Attributes: map[string]string{
		"namespace": e.Namespace,
		"role":      e.Role,
		"member":    crypto.FormatPrincipal(e.Member),
		"granted":   strconv.FormatBool(e.Granted),
	}}
}

// PauseChanged is emitted when the circuit breaker flips.
type PauseChanged struct {
	Namespace string
	Paused    bool
}

func (PauseChanged) EventType() string { return TypePauseChanged }

func (e PauseChanged) Event() *types.Event {
	return &types.Event{Type: TypePauseChanged, Attributes: map[string]string{
		"namespace": e.Namespace,
		"paused":    strconv.FormatBool(e.Paused),
	}}
}
