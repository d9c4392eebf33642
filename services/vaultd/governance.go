package vaultd

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/app"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/nodes"
)

type globalCapRequest struct {
	Cap string `json:"cap"`
}

func (s *Server) handleSetGlobalCap(w http.ResponseWriter, r *http.Request) {
	var req globalCapRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	limit, err := parseAmount("cap", req.Cap)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "vault.global_cap", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		if err := m.Vault.SetGlobalCap(who, limit); err != nil {
			return nil, err
		}
		return map[string]string{"global_cap": amountString(limit)}, nil
	})
}

type rotateAdminRequest struct {
	Admin string `json:"admin"`
}

func (s *Server) handleRotateVaultAdmin(w http.ResponseWriter, r *http.Request) {
	var req rotateAdminRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	next, err := parseAddress("admin", req.Admin)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "vault.rotate_admin", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		if err := m.Vault.RotateAdmin(who, next); err != nil {
			return nil, err
		}
		return map[string]string{"admin": crypto.FormatPrincipal(next)}, nil
	})
}

type keySetRequest struct {
	Keys []string `json:"keys"`
}

func (s *Server) handleSetVaultAttestors(w http.ResponseWriter, r *http.Request) {
	var req keySetRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	keys, err := parseAddresses("keys", req.Keys)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "vault.attestors", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		if err := m.Vault.SetAttestors(who, keys); err != nil {
			return nil, err
		}
		return map[string]int{"attestors": len(keys)}, nil
	})
}

type multisigRequest struct {
	Signers   []string `json:"signers"`
	Threshold uint32   `json:"threshold"`
}

func (s *Server) handleConfigureMultisig(w http.ResponseWriter, r *http.Request) {
	var req multisigRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	signers, err := parseAddresses("signers", req.Signers)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "vault.multisig", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		if err := m.Vault.ConfigureMultisig(who, signers, req.Threshold); err != nil {
			return nil, err
		}
		return map[string]interface{}{"signers": len(signers), "threshold": req.Threshold}, nil
	})
}

type tierRequest struct {
	Price       string `json:"price"`
	DailyReward string `json:"daily_reward"`
	MaxSupply   uint64 `json:"max_supply"`
}

type tierJSON struct {
	Tier        string `json:"tier"`
	Price       string `json:"price"`
	DailyReward string `json:"daily_reward"`
	MaxSupply   uint64 `json:"max_supply"`
	Supply      uint64 `json:"supply"`
}

func (s *Server) handleUpdateTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	next := nodes.TierConfig{MaxSupply: req.MaxSupply}
	var err error
	if next.Tier, err = nodes.ParseTier(chi.URLParam(r, "tier")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if next.Price, err = parseAmount("price", req.Price); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if next.DailyReward, err = parseAmount("daily_reward", req.DailyReward); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.respond(w, r, "nodes.tier", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		cfg, err := m.Nodes.UpdateTier(who, next)
		if err != nil {
			return nil, err
		}
		return tierJSON{
			Tier:        cfg.Tier.String(),
			Price:       amountString(cfg.Price),
			DailyReward: amountString(cfg.DailyReward),
			MaxSupply:   cfg.MaxSupply,
			Supply:      cfg.Supply,
		}, nil
	})
}

type fundRewardsRequest struct {
	Token  string `json:"token,omitempty"`
	Amount string `json:"amount"`
}

func (s *Server) handleFundRewards(w http.ResponseWriter, r *http.Request) {
	var req fundRewardsRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	symbol := s.tokenOrDefault(req.Token)
	s.respond(w, r, "lp.fund", http.StatusOK, func(m *app.Modules) (interface{}, error) {
		reserve, err := m.LP.FundRewards(who, symbol, amount)
		if err != nil {
			return nil, err
		}
		return map[string]string{"token": symbol, "reserve": amountString(reserve)}, nil
	})
}
