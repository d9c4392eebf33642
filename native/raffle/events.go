package raffle

import (
	"math/big"
	"strconv"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/types"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
)

const (
	TypeCreated          = "raffle.created"
	TypeTicketsPurchased = "raffle.tickets_purchased"
	TypeWinnerDrawn      = "raffle.winner_drawn"
	TypeCancelled        = "raffle.cancelled"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func idString(id uint64) string { return strconv.FormatUint(id, 10) }

type Created struct {
	Raffle Raffle
}

func (Created) EventType() string { return TypeCreated }

func (e Created) Event() *types.Event {
	return &types.Event{Type: TypeCreated, Attributes: map[string]string{
		"raffle":      idString(e.Raffle.ID),
		"name":        e.Raffle.Name,
		"token":       e.Raffle.Token,
		"ticketPrice": amountString(e.Raffle.TicketPrice),
		"maxTickets":  strconv.FormatUint(uint64(e.Raffle.MaxTickets), 10),
		"endTime":     strconv.FormatUint(e.Raffle.EndTime, 10),
	}}
}

type TicketsPurchased struct {
	RaffleID uint64
	Buyer    [20]byte
	First    uint32
	Quantity uint32
	Cost     *big.Int
}

func (TicketsPurchased) EventType() string { return TypeTicketsPurchased }

func (e TicketsPurchased) Event() *types.Event {
	return &types.Event{Type: TypeTicketsPurchased, Attributes: map[string]string{
		"raffle":   idString(e.RaffleID),
		"buyer":    crypto.FormatPrincipal(e.Buyer),
		"first":    strconv.FormatUint(uint64(e.First), 10),
		"quantity": strconv.FormatUint(uint64(e.Quantity), 10),
		"cost":     amountString(e.Cost),
	}}
}

type WinnerDrawn struct {
	Result Result
}

func (WinnerDrawn) EventType() string { return TypeWinnerDrawn }

func (e WinnerDrawn) Event() *types.Event {
	return &types.Event{Type: TypeWinnerDrawn, Attributes: map[string]string{
		"raffle": idString(e.Result.RaffleID),
		"winner": crypto.FormatPrincipal(e.Result.Winner),
		"index":  strconv.FormatUint(uint64(e.Result.Index), 10),
		"prize":  amountString(e.Result.Prize),
		"fee":    amountString(e.Result.Fee),
	}}
}

type Cancelled struct {
	RaffleID uint64
	Refunded *big.Int
}

func (Cancelled) EventType() string { return TypeCancelled }

func (e Cancelled) Event() *types.Event {
	return &types.Event{Type: TypeCancelled, Attributes: map[string]string{
		"raffle":   idString(e.RaffleID),
		"refunded": amountString(e.Refunded),
	}}
}
