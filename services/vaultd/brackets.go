package vaultd

import (
	"net/http"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/app"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/bracket"
)

type createBracketRequest struct {
	Name       string `json:"name"`
	Token      string `json:"token,omitempty"`
	EntryFee   string `json:"entry_fee"`
	MaxPlayers uint32 `json:"max_players"`
	StartTime  int64  `json:"start_time"`
	EndTime    int64  `json:"end_time,omitempty"`
}

func (s *Server) handleCreateBracket(w http.ResponseWriter, r *http.Request) {
	var req createBracketRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	fee, err := parseAmount("entry_fee", req.EntryFee)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	p := bracket.Params{
		Name:       req.Name,
		Token:      req.Token,
		EntryFee:   fee,
		MaxPlayers: req.MaxPlayers,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	}
	s.respond(w, r, "bracket.create", http.StatusCreated, func(m *app.Modules) (interface{}, error) {
		t, err := m.Bracket.CreateTournament(who, p)
		if err != nil {
			return nil, err
		}
		return bracketFrom(t), nil
	})
}

func (s *Server) handleGetBracket(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.view(w, r, "bracket.get", func(m *app.Modules) (interface{}, error) {
		t, err := m.Bracket.Tournament(id)
		if err != nil {
			return nil, err
		}
		return bracketFrom(t), nil
	})
}

func (s *Server) handleBracketStandings(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.view(w, r, "bracket.standings", func(m *app.Modules) (interface{}, error) {
		entries, err := m.Bracket.Standings(id)
		if err != nil {
			return nil, err
		}
		out := make([]bracketEntryJSON, 0, len(entries))
		for i := range entries {
			out = append(out, bracketEntryFrom(&entries[i]))
		}
		return out, nil
	})
}

func (s *Server) handleJoinBracket(w http.ResponseWriter, r *http.Request) {
	s.bracketAction(w, r, "bracket.join", (*bracket.Engine).Join)
}

func (s *Server) handleStartBracket(w http.ResponseWriter, r *http.Request) {
	s.bracketAction(w, r, "bracket.start", (*bracket.Engine).Start)
}

func (s *Server) handleCancelBracket(w http.ResponseWriter, r *http.Request) {
	s.bracketAction(w, r, "bracket.cancel", (*bracket.Engine).Cancel)
}

func (s *Server) bracketAction(w http.ResponseWriter, r *http.Request, op string, fn func(*bracket.Engine, [20]byte, uint64) (*bracket.Tournament, error)) {
	who, ok := s.begin(w, r, nil)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, op, http.StatusOK, func(m *app.Modules) (interface{}, error) {
		t, err := fn(m.Bracket, who, id)
		if err != nil {
			return nil, err
		}
		return bracketFrom(t), nil
	})
}

type submitScoreRequest struct {
	Player string `json:"player"`
	Score  uint64 `json:"score"`
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req submitScoreRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	player, err := parseAddress("player", req.Player)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "bracket.score", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		entry, err := m.Bracket.SubmitScore(who, id, player, req.Score)
		if err != nil {
			return nil, err
		}
		return bracketEntryFrom(entry), nil
	})
}

type completeBracketRequest struct {
	Winner string `json:"winner"`
}

func (s *Server) handleCompleteBracket(w http.ResponseWriter, r *http.Request) {
	var req completeBracketRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	winner, err := parseAddress("winner", req.Winner)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "bracket.complete", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		res, err := m.Bracket.Complete(who, id, winner)
		if err != nil {
			return nil, err
		}
		return bracketResultJSON{
			TournamentID: res.TournamentID,
			Winner:       crypto.FormatPrincipal(res.Winner),
			Prize:        amountString(res.Prize),
			Fee:          amountString(res.Fee),
		}, nil
	})
}
