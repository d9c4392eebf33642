package payout

import (
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const TypeExecuted = "payout.executed"

// Executed is emitted once per successful payout.
type Executed struct {
	Domain  string
	Receipt Receipt
}

func (Executed) EventType() string { return TypeExecuted }

func (e Executed) Event() *types.Event {
	amount := "0"
	if e.Receipt.Amount != nil {
		amount = e.Receipt.Amount.String()
	}
	return &types.Event{Type: TypeExecuted, Attributes: map[string]string{
		"module":    e.Domain,
		"scope":     e.Receipt.Scope,
		"recipient": crypto.FormatPrincipal(e.Receipt.Recipient),
		"amount":    amount,
		"nonce":     strconv.FormatUint(e.Receipt.Nonce, 10),
		"attestor":  crypto.FormatPrincipal(e.Receipt.Attestor),
	}}
}
