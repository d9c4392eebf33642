package escrow

import (
	"math/big"
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	EventTypeCreated   = "escrow.created"
	EventTypeDeposited = "escrow.deposited"
	EventTypeWithdrawn = "escrow.withdrawn"
	EventTypeRefunded  = "escrow.refunded"
	EventTypeFinalized = "escrow.finalized"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent returns the canonical payload for a newly created scope.
func NewCreatedEvent(a *Account) *types.Event {
	evt := newAccountEvent(EventTypeCreated, a)
	evt.Attributes["payoutCap"] = formatAmount(a.PayoutCap)
	evt.Attributes["entryFee"] = formatAmount(a.EntryFee)
	evt.Attributes["deadline"] = strconv.FormatInt(a.Deadline, 10)
	return evt
}

// NewDepositedEvent returns the payload emitted when a principal funds a scope.
func NewDepositedEvent(a *Account, principal [20]byte, amount *big.Int) *types.Event {
	evt := newAccountEvent(EventTypeDeposited, a)
	evt.Attributes["principal"] = crypto.FormatPrincipal(principal)
	evt.Attributes["amount"] = formatAmount(amount)
	return evt
}

// NewWithdrawnEvent returns the payload emitted for a targeted withdrawal.
func NewWithdrawnEvent(a *Account, recipient [20]byte, amount *big.Int) *types.Event {
	evt := newAccountEvent(EventTypeWithdrawn, a)
	evt.Attributes["recipient"] = crypto.FormatPrincipal(recipient)
	evt.Attributes["amount"] = formatAmount(amount)
	return evt
}

// NewRefundedEvent returns the payload emitted once per refunded entry.
func NewRefundedEvent(a *Account, principal [20]byte, amount *big.Int) *types.Event {
	evt := newAccountEvent(EventTypeRefunded, a)
	evt.Attributes["principal"] = crypto.FormatPrincipal(principal)
	evt.Attributes["amount"] = formatAmount(amount)
	return evt
}

// NewFinalizedEvent returns the payload emitted when a scope is closed.
func NewFinalizedEvent(a *Account) *types.Event { return newAccountEvent(EventTypeFinalized, a) }

func newAccountEvent(eventType string, a *Account) *types.Event {
	attrs := map[string]string{}
	if a != nil {
		attrs["scope"] = a.ScopeID
		attrs["token"] = a.Token
		attrs["total"] = formatAmount(a.TotalDeposited)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
