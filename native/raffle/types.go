package raffle

import "math/big"

const (
	// WinnerShare is the percentage of ticket sales paid to the winner. The
	// remainder goes to the treasury.
	WinnerShare = 90
	seedFactor  = 31337
)

// Raffle is a ticketed draw. Ticket sales sit in the raffle's escrow scope
// until the draw or a cancellation.
type Raffle struct {
	ID          uint64
	Name        string
	Token       string
	TicketPrice *big.Int
	MaxTickets  uint32
	TicketsSold uint32
	PrizeValue  *big.Int
	EndTime     uint64
	Winner      [20]byte
	Drawn       bool
	Active      bool
	Cancelled   bool
	CreatedAt   uint64
}

// Pool returns the ticket sales held for the raffle.
func (r *Raffle) Pool() *big.Int {
	return new(big.Int).Mul(r.TicketPrice, big.NewInt(int64(r.TicketsSold)))
}

// TicketRange is a block of consecutive ticket numbers bought together.
type TicketRange struct {
	First uint32
	Count uint32
}

// Tickets lists the ticket blocks a holder bought in one raffle.
type Tickets struct {
	RaffleID uint64
	Count    uint32
	Ranges   []TicketRange
}

// Params describes a raffle opened by the admin.
type Params struct {
	Name        string
	Token       string
	TicketPrice *big.Int
	MaxTickets  uint32
	PrizeValue  *big.Int
	EndTime     int64
}

// Result is the outcome of a draw.
type Result struct {
	RaffleID uint64
	Winner   [20]byte
	Index    uint32
	Prize    *big.Int
	Fee      *big.Int
}

type holderList struct {
	Holders [][20]byte
}
