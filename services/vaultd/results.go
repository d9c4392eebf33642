package vaultd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/app"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/attestation"
)

type attestMatchRequest struct {
	TournamentID uint64      `json:"tournament_id"`
	MatchID      uint64      `json:"match_id"`
	ResultHash   string      `json:"result_hash"`
	Winner       string      `json:"winner"`
	Participants []string    `json:"participants"`
	Scores       []scoreJSON `json:"scores,omitempty"`
	MetadataHash string      `json:"metadata_hash,omitempty"`
}

func (req attestMatchRequest) params() (attestation.MatchParams, error) {
	p := attestation.MatchParams{TournamentID: req.TournamentID, MatchID: req.MatchID}
	var err error
	if p.ResultHash, err = decodeHash("result_hash", req.ResultHash, false); err != nil {
		return p, err
	}
	if p.MetadataHash, err = decodeHash("metadata_hash", req.MetadataHash, true); err != nil {
		return p, err
	}
	if p.Winner, err = parseAddress("winner", req.Winner); err != nil {
		return p, err
	}
	if p.Participants, err = parseAddresses("participants", req.Participants); err != nil {
		return p, err
	}
	for _, sc := range req.Scores {
		player, err := parseAddress("scores.player", sc.Player)
		if err != nil {
			return p, err
		}
		p.Scores = append(p.Scores, attestation.Score{Player: player, Points: sc.Points})
	}
	return p, nil
}

func (s *Server) handleAttestMatch(w http.ResponseWriter, r *http.Request) {
	var req attestMatchRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	p, err := req.params()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "results.match", http.StatusCreated, func(m *app.Modules) (interface{}, error) {
		match, err := m.Results.AttestMatch(who, p)
		if err != nil {
			return nil, err
		}
		return matchFrom(match), nil
	})
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.view(w, r, "results.match.get", func(m *app.Modules) (interface{}, error) {
		match, err := m.Results.Match(id)
		if err != nil {
			return nil, err
		}
		return matchFrom(match), nil
	})
}

type verifyRequest struct {
	ResultHash string `json:"result_hash"`
}

func (s *Server) handleVerifyMatch(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if _, ok := s.begin(w, r, &req); !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	hash, err := decodeHash("result_hash", req.ResultHash, false)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.view(w, r, "results.verify", func(m *app.Modules) (interface{}, error) {
		valid, err := m.Results.VerifyResult(id, hash)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"match_id": id, "valid": valid}, nil
	})
}

func (s *Server) handleMatchDisputes(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.view(w, r, "results.match.disputes", func(m *app.Modules) (interface{}, error) {
		ids, err := m.Results.MatchDisputes(id)
		if err != nil {
			return nil, err
		}
		out := make([]disputeJSON, 0, len(ids))
		for _, d := range ids {
			dispute, err := m.Results.Dispute(d)
			if err != nil {
				return nil, err
			}
			out = append(out, disputeFrom(dispute))
		}
		return out, nil
	})
}

type attestTournamentRequest struct {
	TournamentID          uint64 `json:"tournament_id"`
	FinalResultsHash      string `json:"final_results_hash"`
	Winner                string `json:"winner"`
	RunnerUp              string `json:"runner_up,omitempty"`
	PrizeDistributionHash string `json:"prize_distribution_hash,omitempty"`
}

func (s *Server) handleAttestTournament(w http.ResponseWriter, r *http.Request) {
	var req attestTournamentRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	p := attestation.TournamentParams{TournamentID: req.TournamentID}
	var err error
	if p.FinalResultsHash, err = decodeHash("final_results_hash", req.FinalResultsHash, false); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if p.PrizeDistributionHash, err = decodeHash("prize_distribution_hash", req.PrizeDistributionHash, true); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if p.Winner, err = parseAddress("winner", req.Winner); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if req.RunnerUp != "" {
		if p.RunnerUp, err = parseAddress("runner_up", req.RunnerUp); err != nil {
			s.writeAppError(w, r, err)
			return
		}
	}
	s.respond(w, r, "results.tournament", http.StatusCreated, func(m *app.Modules) (interface{}, error) {
		t, err := m.Results.AttestTournament(who, p)
		if err != nil {
			return nil, err
		}
		matches, err := m.Results.TournamentMatches(t.TournamentID)
		if err != nil {
			return nil, err
		}
		return standingFrom(t, matches), nil
	})
}

func (s *Server) handleGetStanding(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.view(w, r, "results.tournament.get", func(m *app.Modules) (interface{}, error) {
		t, err := m.Results.Tournament(id)
		if err != nil {
			return nil, err
		}
		matches, err := m.Results.TournamentMatches(id)
		if err != nil {
			return nil, err
		}
		return standingFrom(t, matches), nil
	})
}

type fileDisputeRequest struct {
	MatchID    uint64 `json:"match_id"`
	ReasonHash string `json:"reason_hash"`
	Nonce      uint64 `json:"nonce"`
}

func (s *Server) handleFileDispute(w http.ResponseWriter, r *http.Request) {
	var req fileDisputeRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	reason, err := decodeHash("reason_hash", req.ReasonHash, false)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "results.dispute", http.StatusCreated, func(m *app.Modules) (interface{}, error) {
		d, err := m.Results.FileDispute(who, req.MatchID, reason, req.Nonce)
		if err != nil {
			return nil, err
		}
		return disputeFrom(d), nil
	})
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.view(w, r, "results.dispute.get", func(m *app.Modules) (interface{}, error) {
		d, err := m.Results.Dispute(id)
		if err != nil {
			return nil, err
		}
		return disputeFrom(d), nil
	})
}

type resolveDisputeRequest struct {
	ResolutionHash string `json:"resolution_hash"`
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req resolveDisputeRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	hash, err := decodeHash("resolution_hash", req.ResolutionHash, false)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "results.dispute.resolve", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		d, err := m.Results.ResolveDispute(who, id, hash)
		if err != nil {
			return nil, err
		}
		return disputeFrom(d), nil
	})
}

func (s *Server) handleListResultKeys(w http.ResponseWriter, r *http.Request) {
	s.view(w, r, "results.keys", func(m *app.Modules) (interface{}, error) {
		keys, err := m.Results.Keys()
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, crypto.FormatPrincipal(k))
		}
		return map[string][]string{"keys": out}, nil
	})
}

type keyRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleAddResultKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	key, err := parseAddress("key", req.Key)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "results.keys.add", http.StatusCreated, func(m *app.Modules) (interface{}, error) {
		if err := m.Results.AddKey(who, key); err != nil {
			return nil, err
		}
		return map[string]string{"key": crypto.FormatPrincipal(key)}, nil
	})
}

func (s *Server) handleRemoveResultKey(w http.ResponseWriter, r *http.Request) {
	who, ok := s.begin(w, r, nil)
	if !ok {
		return
	}
	key, err := parseAddress("key", chi.URLParam(r, "key"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "results.keys.remove", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		if err := m.Results.RemoveKey(who, key); err != nil {
			return nil, err
		}
		return map[string]string{"removed": crypto.FormatPrincipal(key)}, nil
	})
}
