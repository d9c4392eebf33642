package multisig

import (
	"math/big"
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	TypeConfigured = "multisig.configured"
	TypeFunded     = "multisig.funded"
	TypeProposed   = "multisig.proposed"
	TypeApproved   = "multisig.approved"
	TypeExecuted   = "multisig.executed"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type Configured struct {
	Namespace string
	Threshold uint32
	Signers   uint32
}

func (Configured) EventType() string { return TypeConfigured }

func (e Configured) Event() *types.Event {
	return &types.Event{Type: TypeConfigured, Attributes: map[string]string{
		"namespace": e.Namespace,
		"threshold": strconv.FormatUint(uint64(e.Threshold), 10),
		"signers":   strconv.FormatUint(uint64(e.Signers), 10),
	}}
}

type Funded struct {
	Namespace string
	Token     string
	Amount    *big.Int
	Balance   *big.Int
}

func (Funded) EventType() string { return TypeFunded }

func (e Funded) Event() *types.Event {
	return &types.Event{Type: TypeFunded, Attributes: map[string]string{
		"namespace": e.Namespace,
		"token":     e.Token,
		"amount":    amountString(e.Amount),
		"balance":   amountString(e.Balance),
	}}
}

type Proposed struct {
	Namespace string
	Proposal  Proposal
}

func (Proposed) EventType() string { return TypeProposed }

func (e Proposed) Event() *types.Event {
	return proposalEvent(TypeProposed, e.Namespace, &e.Proposal)
}

type Approved struct {
	Namespace string
	ID        uint64
	Signer    [20]byte
	Approvals uint32
}

func (Approved) EventType() string { return TypeApproved }

func (e Approved) Event() *types.Event {
	return &types.Event{Type: TypeApproved, Attributes: map[string]string{
		"namespace": e.Namespace,
		"id":        strconv.FormatUint(e.ID, 10),
		"signer":    crypto.FormatPrincipal(e.Signer),
		"approvals": strconv.FormatUint(uint64(e.Approvals), 10),
	}}
}

type Executed struct {
	Namespace string
	Proposal  Proposal
}

func (Executed) EventType() string { return TypeExecuted }

func (e Executed) Event() *types.Event {
	return proposalEvent(TypeExecuted, e.Namespace, &e.Proposal)
}

func proposalEvent(eventType, namespace string, p *Proposal) *types.Event {
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"namespace": namespace,
		"id":        strconv.FormatUint(p.ID, 10),
		"token":     p.Token,
		"amount":    amountString(p.Amount),
		"recipient": crypto.FormatPrincipal(p.Recipient),
		"proposer":  crypto.FormatPrincipal(p.Proposer),
		"threshold": strconv.FormatUint(uint64(p.Threshold), 10),
	}}
}
