package vaultd

import (
	"net/http"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/app"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/raffle"
)

type createRaffleRequest struct {
	Name        string `json:"name"`
	Token       string `json:"token,omitempty"`
	TicketPrice string `json:"ticket_price"`
	MaxTickets  uint32 `json:"max_tickets"`
	PrizeValue  string `json:"prize_value,omitempty"`
	EndTime     int64  `json:"end_time"`
}

func (s *Server) handleCreateRaffle(w http.ResponseWriter, r *http.Request) {
	var req createRaffleRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	p := raffle.Params{Name: req.Name, Token: req.Token, MaxTickets: req.MaxTickets, EndTime: req.EndTime}
	var err error
	if p.TicketPrice, err = parseAmount("ticket_price", req.TicketPrice); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if p.PrizeValue, err = parseAmount("prize_value", req.PrizeValue); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "raffle.create", http.StatusCreated, func(m *app.Modules) (interface{}, error) {
		rf, err := m.Raffle.CreateRaffle(who, p)
		if err != nil {
			return nil, err
		}
		return raffleFrom(rf), nil
	})
}

type drawJSON struct {
	RaffleID uint64 `json:"raffle_id"`
	Winner   string `json:"winner"`
	Ticket   uint32 `json:"ticket"`
	Prize    string `json:"prize"`
	Fee      string `json:"fee"`
}

func (s *Server) handleDrawRaffle(w http.ResponseWriter, r *http.Request) {
	who, ok := s.begin(w, r, nil)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "raffle.draw", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		res, err := m.Raffle.DrawWinner(who, id)
		if err != nil {
			return nil, err
		}
		return drawJSON{
			RaffleID: res.RaffleID,
			Winner:   crypto.FormatPrincipal(res.Winner),
			Ticket:   res.Index,
			Prize:    amountString(res.Prize),
			Fee:      amountString(res.Fee),
		}, nil
	})
}

func (s *Server) handleCancelRaffle(w http.ResponseWriter, r *http.Request) {
	who, ok := s.begin(w, r, nil)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "raffle.cancel", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		rf, err := m.Raffle.CancelRaffle(who, id)
		if err != nil {
			return nil, err
		}
		return raffleFrom(rf), nil
	})
}
