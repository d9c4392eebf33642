package vaultd

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/app"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/hostrewards"
)

type hostAmountRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleRegisterHost(w http.ResponseWriter, r *http.Request) {
	s.hostAction(w, r, "hosts.register", http.StatusCreated, (*hostrewards.Engine).RegisterHost)
}

func (s *Server) handleAddStake(w http.ResponseWriter, r *http.Request) {
	s.hostAction(w, r, "hosts.stake", http.StatusOK, (*hostrewards.Engine).AddStake)
}

func (s *Server) handleWithdrawStake(w http.ResponseWriter, r *http.Request) {
	s.hostAction(w, r, "hosts.withdraw", http.StatusOK, (*hostrewards.Engine).WithdrawStake)
}

func (s *Server) hostAction(w http.ResponseWriter, r *http.Request, op string, status int, fn func(*hostrewards.Engine, [20]byte, *big.Int) (*hostrewards.Host, error)) {
	var req hostAmountRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, op, status, func(m *app.Modules) (interface{}, error) {
		h, err := fn(m.Hosts, who, amount)
		if err != nil {
			return nil, err
		}
		return hostFrom(h), nil
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	who, ok := s.begin(w, r, nil)
	if !ok {
		return
	}
	s.respond(w, r, "hosts.heartbeat", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		if err := m.Hosts.Heartbeat(who); err != nil {
			return nil, err
		}
		h, err := m.Hosts.Host(who)
		if err != nil {
			return nil, err
		}
		return hostFrom(h), nil
	})
}

func (s *Server) handleGetHost(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("host", chi.URLParam(r, "host"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.view(w, r, "hosts.get", func(m *app.Modules) (interface{}, error) {
		h, err := m.Hosts.Host(addr)
		if err != nil {
			return nil, err
		}
		return hostFrom(h), nil
	})
}

type slashRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleSlashHost(w http.ResponseWriter, r *http.Request) {
	var req slashRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	target, err := parseAddress("host", chi.URLParam(r, "host"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	reason, err := decodeHash("reason", req.Reason, true)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "hosts.slash", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		slashed, err := m.Hosts.SlashStake(who, target, amount, reason)
		if err != nil {
			return nil, err
		}
		return map[string]string{"host": crypto.FormatPrincipal(target), "slashed": amountString(slashed)}, nil
	})
}

func (s *Server) handleFundHostPool(w http.ResponseWriter, r *http.Request) {
	var req hostAmountRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "hosts.fund", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		balance, err := m.Hosts.FundPool(who, amount)
		if err != nil {
			return nil, err
		}
		return map[string]string{"pool": amountString(balance)}, nil
	})
}

type createJobRequest struct {
	ID        string `json:"id"`
	Host      string `json:"host"`
	Requester string `json:"requester,omitempty"`
	Type      string `json:"type"`
	Reward    string `json:"reward"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	p := hostrewards.JobParams{ID: req.ID, Requester: who}
	var err error
	if p.Host, err = parseAddress("host", req.Host); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if req.Requester != "" {
		if p.Requester, err = parseAddress("requester", req.Requester); err != nil {
			s.writeAppError(w, r, err)
			return
		}
	}
	if p.Type, err = hostrewards.ParseJobType(req.Type); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if p.Reward, err = parseAmount("reward", req.Reward); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "hosts.job.create", http.StatusCreated, func(m *app.Modules) (interface{}, error) {
		job, err := m.Hosts.CreateJob(who, p)
		if err != nil {
			return nil, err
		}
		return jobFrom(job), nil
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.view(w, r, "hosts.job.get", func(m *app.Modules) (interface{}, error) {
		job, err := m.Hosts.Job(id)
		if err != nil {
			return nil, err
		}
		return jobFrom(job), nil
	})
}

type completeJobRequest struct {
	Proof string `json:"proof"`
}

func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	var req completeJobRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	proof, err := decodeHash("proof", req.Proof, false)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	s.respond(w, r, "hosts.job.complete", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		job, err := m.Hosts.CompleteJob(who, id, proof)
		if err != nil {
			return nil, err
		}
		return jobFrom(job), nil
	})
}

func (s *Server) handleDisputeJob(w http.ResponseWriter, r *http.Request) {
	s.jobTransition(w, r, "hosts.job.dispute", (*hostrewards.Engine).DisputeJob)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	s.jobTransition(w, r, "hosts.job.cancel", (*hostrewards.Engine).CancelJob)
}

func (s *Server) jobTransition(w http.ResponseWriter, r *http.Request, op string, fn func(*hostrewards.Engine, [20]byte, string) (*hostrewards.Job, error)) {
	who, ok := s.begin(w, r, nil)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	s.respond(w, r, op, http.StatusOK, func(m *app.Modules) (interface{}, error) {
		job, err := fn(m.Hosts, who, id)
		if err != nil {
			return nil, err
		}
		return jobFrom(job), nil
	})
}
