package token

import (
	"math/big"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	TypeTransferred = "token.transfer"
	TypeMinted      = "token.mint"
	TypeBurned      = "token.burn"
	TypeApproved    = "token.approval"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type Transferred struct {
	Symbol string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transferred) EventType() string { return TypeTransferred }

func (e Transferred) Event() *types.Event {
	return &types.Event{Type: TypeTransferred, Attributes: map[string]string{
		"symbol": e.Symbol,
		"from":   crypto.FormatPrincipal(e.From),
		"to":     crypto.FormatPrincipal(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

type Minted struct {
	Symbol string
	To     [20]byte
	Amount *big.Int
}

func (Minted) EventType() string { return TypeMinted }

func (e Minted) Event() *types.Event {
	return &types.Event{Type: TypeMinted, Attributes: map[string]string{
		"symbol": e.Symbol,
		"to":     crypto.FormatPrincipal(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

type Burned struct {
	Symbol string
	From   [20]byte
	Amount *big.Int
}

func (Burned) EventType() string { return TypeBurned }

func (e Burned) Event() *types.Event {
	return &types.Event{Type: TypeBurned, Attributes: map[string]string{
		"symbol": e.Symbol,
		"from":   crypto.FormatPrincipal(e.From),
		"amount": formatAmount(e.Amount),
	}}
}

type Approved struct {
	Symbol  string
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (Approved) EventType() string { return TypeApproved }

func (e Approved) Event() *types.Event {
	return &types.Event{Type: TypeApproved, Attributes: map[string]string{
		"symbol":  e.Symbol,
		"owner":   crypto.FormatPrincipal(e.Owner),
		"spender": crypto.FormatPrincipal(e.Spender),
		"amount":  formatAmount(e.Amount),
	}}
}
