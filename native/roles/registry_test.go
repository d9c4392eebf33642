package roles

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/events"
	"github.com/hustletexas/cyber-arcade-verse-rally/core/state"
	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

type captureEmitter struct{ events []events.Event }

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func newRegistry(t *testing.T) (*Registry, *captureEmitter) {
	t.Helper()
	reg := NewRegistry("vault")
	reg.SetState(state.NewManager(storage.NewMemDB()).Begin())
	em := &captureEmitter{}
	reg.SetEmitter(em)
	return reg, em
}

func TestInitializeOnce(t *testing.T) {
	reg, em := newRegistry(t)
	admin := newTestAddress(0x01)

	_, err := reg.Admin()
	require.ErrorIs(t, err, coreerrors.ErrNotInitialized)
	require.ErrorIs(t, reg.Guard(), coreerrors.ErrNotInitialized)

	require.NoError(t, reg.Initialize(admin))
	require.ErrorIs(t, reg.Initialize(admin), coreerrors.ErrAlreadyInitialized)

	got, err := reg.Admin()
	require.NoError(t, err)
	require.Equal(t, admin, got)
	require.Len(t, em.events, 1)
	require.Equal(t, TypeAdminChanged, em.events[0].EventType())
}

func TestRotateAdmin(t *testing.T) {
	reg, _ := newRegistry(t)
	admin := newTestAddress(0x01)
	next := newTestAddress(0x02)
	require.NoError(t, reg.Initialize(admin))

	require.ErrorIs(t, reg.RotateAdmin(next, next), coreerrors.ErrUnauthorized)
	require.NoError(t, reg.RotateAdmin(admin, next))
	require.ErrorIs(t, reg.RequireAdmin(admin), coreerrors.ErrUnauthorized)
	require.NoError(t, reg.RequireAdmin(next))
}

func TestGrantRevokeKeepsSortedSet(t *testing.T) {
	reg, _ := newRegistry(t)
	admin := newTestAddress(0x01)
	require.NoError(t, reg.Initialize(admin))

	for _, fill := range []byte{0x30, 0x10, 0x20, 0x10} {
		require.NoError(t, reg.Grant(admin, RoleAttestor, newTestAddress(fill)))
	}
	members, err := reg.Members(RoleAttestor)
	require.NoError(t, err)
	require.Equal(t, [][20]byte{newTestAddress(0x10), newTestAddress(0x20), newTestAddress(0x30)}, members)

	ok, err := reg.Has(RoleAttestor, newTestAddress(0x20))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = reg.Has(RoleMinter, newTestAddress(0x20))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, reg.Revoke(admin, RoleAttestor, newTestAddress(0x20)))
	require.ErrorIs(t, reg.Revoke(admin, RoleAttestor, newTestAddress(0x20)), coreerrors.ErrNotFound)
	require.ErrorIs(t, reg.Require(RoleAttestor, newTestAddress(0x20)), coreerrors.ErrUnauthorized)
	require.NoError(t, reg.Require(RoleAttestor, newTestAddress(0x30)))
}

func TestGrantRequiresAdmin(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Initialize(newTestAddress(0x01)))
	err := reg.Grant(newTestAddress(0x09), RoleMinter, newTestAddress(0x09))
	if !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	require.ErrorIs(t, reg.Grant(newTestAddress(0x01), "overlord", newTestAddress(0x09)), coreerrors.ErrInvalidArgument)
}

func TestReplaceRotatesAttestors(t *testing.T) {
	reg, em := newRegistry(t)
	admin := newTestAddress(0x01)
	require.NoError(t, reg.Initialize(admin))
	require.NoError(t, reg.Grant(admin, RoleAttestor, newTestAddress(0xA1)))
	em.events = nil

	require.NoError(t, reg.Replace(admin, RoleAttestor, [][20]byte{newTestAddress(0xB2), newTestAddress(0xB2)}))
	members, err := reg.Members(RoleAttestor)
	require.NoError(t, err)
	require.Equal(t, [][20]byte{newTestAddress(0xB2)}, members)
	require.Len(t, em.events, 2)
	require.ErrorIs(t, reg.Replace(admin, RoleAttestor, nil), coreerrors.ErrInvalidArgument)
}

func TestPauseGuard(t *testing.T) {
	reg, _ := newRegistry(t)
	admin := newTestAddress(0x01)
	require.NoError(t, reg.Initialize(admin))
	require.NoError(t, reg.Guard())

	require.ErrorIs(t, reg.SetPaused(newTestAddress(0x02), true), coreerrors.ErrUnauthorized)
	require.NoError(t, reg.SetPaused(admin, true))
	require.ErrorIs(t, reg.Guard(), coreerrors.ErrContractPaused)

	// Unpause stays available while paused.
	require.NoError(t, reg.SetPaused(admin, false))
	require.NoError(t, reg.Guard())
}
