package common

import (
	"fmt"

	coreerrors "github.com/hustletexas/cyber-arcade-verse-rally/core/errors"
)

// PauseView reports whether a contract instance is paused.
type PauseView interface {
	Paused() (bool, error)
}

// Guard rejects state-mutating calls while the instance is paused. A nil view
// is treated as unpaused.
func Guard(p PauseView, module string) error {
	if p == nil {
		return nil
	}
	paused, err := p.Paused()
	if err != nil {
		return err
	}
	if paused {
		return fmt.Errorf("%s: %w", module, coreerrors.ErrContractPaused)
	}
	return nil
}
