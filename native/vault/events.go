package vault

import (
	"math/big"
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	TypeInitialized      = "vault.initialized"
	TypeGlobalCapChanged = "vault.global_cap"
)

// Initialized is emitted once when the vault is set up.
type Initialized struct {
	Admin     [20]byte
	GlobalCap *big.Int
	Attestors uint32
}

func (Initialized) EventType() string { return TypeInitialized }

func (e Initialized) Event() *types.Event {
	return &types.Event{Type: TypeInitialized, Attributes: map[string]string{
		"admin":     crypto.FormatPrincipal(e.Admin),
		"globalCap": e.GlobalCap.String(),
		"attestors": strconv.FormatUint(uint64(e.Attestors), 10),
	}}
}

// GlobalCapChanged is emitted when the admin replaces the global cap.
type GlobalCapChanged struct {
	Cap *big.Int
}

func (GlobalCapChanged) EventType() string { return TypeGlobalCapChanged }

func (e GlobalCapChanged) Event() *types.Event {
	return &types.Event{Type: TypeGlobalCapChanged, Attributes: map[string]string{
		"cap": e.Cap.String(),
	}}
}
