package vaultd

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/app"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/credits"
)

func creditAccount(m *app.Modules, who [20]byte) (interface{}, error) {
	acc, err := m.Credits.Account(who)
	if err != nil {
		return nil, err
	}
	return creditAccountFrom(who, acc), nil
}

func (s *Server) handleCreditAccount(w http.ResponseWriter, r *http.Request) {
	who, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.view(w, r, "credits.account", func(m *app.Modules) (interface{}, error) {
		return creditAccount(m, who)
	})
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	s.view(w, r, "credits.packages", func(m *app.Modules) (interface{}, error) {
		pkgs, err := m.Credits.Packages()
		if err != nil {
			return nil, err
		}
		out := make([]packageJSON, 0, len(pkgs))
		for i := range pkgs {
			out = append(out, packageFrom(&pkgs[i]))
		}
		return out, nil
	})
}

type createPackageRequest struct {
	Credits string `json:"credits"`
	Price   string `json:"price"`
	Bonus   string `json:"bonus,omitempty"`
}

func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var req createPackageRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	amount, err := parseAmount("credits", req.Credits)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	bonus, err := parseAmount("bonus", req.Bonus)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "credits.package.create", http.StatusCreated, func(m *app.Modules) (interface{}, error) {
		pkg, err := m.Credits.CreatePackage(who, amount, price, bonus)
		if err != nil {
			return nil, err
		}
		return packageFrom(pkg), nil
	})
}

type buyCreditsRequest struct {
	PackageID uint32 `json:"package_id"`
}

func (s *Server) handleBuyCredits(w http.ResponseWriter, r *http.Request) {
	var req buyCreditsRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	s.respond(w, r, "credits.buy", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		if _, err := m.Credits.BuyCredits(who, req.PackageID); err != nil {
			return nil, err
		}
		return creditAccount(m, who)
	})
}

type rewardActivityRequest struct {
	User     string `json:"user"`
	Activity string `json:"activity"`
}

func (s *Server) handleRewardActivity(w http.ResponseWriter, r *http.Request) {
	var req rewardActivityRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	user, err := parseAddress("user", req.User)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	activity, err := credits.ParseActivity(req.Activity)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "credits.reward", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		reward, err := m.Credits.RewardActivity(who, user, activity)
		if err != nil {
			return nil, err
		}
		return map[string]string{"activity": activity.String(), "reward": amountString(reward)}, nil
	})
}

type awardCreditsRequest struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleAwardCredits(w http.ResponseWriter, r *http.Request) {
	var req awardCreditsRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	user, err := parseAddress("user", req.User)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "credits.award", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		if err := m.Credits.AwardCredits(who, user, amount, req.Reason); err != nil {
			return nil, err
		}
		return creditAccount(m, user)
	})
}

type spendCreditsRequest struct {
	Amount  string `json:"amount"`
	Purpose string `json:"purpose,omitempty"`
}

func (s *Server) handleSpendCredits(w http.ResponseWriter, r *http.Request) {
	var req spendCreditsRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "credits.spend", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		if err := m.Credits.SpendCredits(who, amount, req.Purpose); err != nil {
			return nil, err
		}
		return creditAccount(m, who)
	})
}

// creditMoveRequest serves transfers and burns. Holder is the recipient of a
// transfer or the account a burner debits.
type creditMoveRequest struct {
	Holder string `json:"holder"`
	Amount string `json:"amount"`
}

func (s *Server) handleTransferCredits(w http.ResponseWriter, r *http.Request) {
	s.creditMove(w, r, "credits.transfer", (*credits.Engine).TransferCredits)
}

func (s *Server) handleBurnCredits(w http.ResponseWriter, r *http.Request) {
	s.creditMove(w, r, "credits.burn", (*credits.Engine).BurnCredits)
}

func (s *Server) creditMove(w http.ResponseWriter, r *http.Request, op string, fn func(*credits.Engine, [20]byte, [20]byte, *big.Int) error) {
	var req creditMoveRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	holder, err := parseAddress("holder", req.Holder)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, op, http.StatusOK, func(m *app.Modules) (interface{}, error) {
		if err := fn(m.Credits, who, holder, amount); err != nil {
			return nil, err
		}
		return creditAccount(m, holder)
	})
}
