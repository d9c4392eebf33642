package vaultd

import (
	"encoding/hex"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/app"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/escrow"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/hostrewards"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/lpstaking"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/multisig"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/nodes"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/payout"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/vault"
)

func decodeHex(field, value string, size int) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, badRequest("%s: %v", field, err)
	}
	if size > 0 && len(raw) != size {
		return nil, badRequest("%s must be %d bytes", field, size)
	}
	return raw, nil
}

func pathUint(r *http.Request, key string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, key), 10, 64)
	if err != nil {
		return 0, badRequest("%s must be an unsigned integer", key)
	}
	return v, nil
}

// tournament reads the escrow together with its last consumed nonce.
func tournament(m *app.Modules, id string) (tournamentJSON, error) {
	account, err := m.Vault.Tournament(id)
	if err != nil {
		return tournamentJSON{}, err
	}
	last, err := m.Vault.PayoutNonce(id)
	if err != nil {
		return tournamentJSON{}, err
	}
	return tournamentFrom(account, last), nil
}

type createTournamentRequest struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	EntryFee  string `json:"entry_fee"`
	PayoutCap string `json:"payout_cap"`
	Deadline  int64  `json:"deadline"`
}

func (s *Server) handleCreateTournament(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var req createTournamentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	fee, err := parseAmount("entry_fee", req.EntryFee)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	limit, err := parseAmount("payout_cap", req.PayoutCap)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	token := req.Token
	if strings.TrimSpace(token) == "" {
		token = s.app.Symbol()
	}
	var out tournamentJSON
	err = s.app.Execute(r.Context(), "vault.create_tournament", func(m *app.Modules) error {
		account, err := m.Vault.CreateTournament(who, vault.TournamentParams{
			ID:        req.ID,
			Token:     token,
			EntryFee:  fee,
			PayoutCap: limit,
			Deadline:  req.Deadline,
		})
		if err != nil {
			return err
		}
		out = tournamentFrom(account, 0)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetTournament(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var out tournamentJSON
	err := s.app.Query(r.Context(), "vault.tournament", func(m *app.Modules) error {
		var err error
		out, err = tournament(m, id)
		return err
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEnterTournament(w http.ResponseWriter, r *http.Request) {
	s.tournamentAction(w, r, "vault.enter", func(m *app.Modules, who [20]byte, id string) (*escrow.Account, error) {
		return m.Vault.Enter(who, id)
	})
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	s.tournamentAction(w, r, "vault.refund", func(m *app.Modules, who [20]byte, id string) (*escrow.Account, error) {
		return m.Vault.EmergencyRefund(who, id)
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	s.tournamentAction(w, r, "vault.finalize", func(m *app.Modules, who [20]byte, id string) (*escrow.Account, error) {
		return m.Vault.Finalize(who, id)
	})
}

func (s *Server) tournamentAction(w http.ResponseWriter, r *http.Request, op string, fn func(*app.Modules, [20]byte, string) (*escrow.Account, error)) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	var out tournamentJSON
	err = s.app.Execute(r.Context(), op, func(m *app.Modules) error {
		account, err := fn(m, who, id)
		if err != nil {
			return err
		}
		last, err := m.Vault.PayoutNonce(id)
		if err != nil {
			return err
		}
		out = tournamentFrom(account, last)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type payoutRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Deadline  int64  `json:"deadline"`
	// Signature is the attestor's 65-byte signature over the authorization
	// digest. Without it the caller must hold the attestor role.
	Signature string `json:"signature,omitempty"`
}

func (s *Server) handlePayout(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var req payoutRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var sig []byte
	if strings.TrimSpace(req.Signature) != "" {
		if sig, err = decodeHex("signature", req.Signature, 65); err != nil {
			s.writeAppError(w, r, err)
			return
		}
	}
	auth := payout.Authorization{
		Scope:     chi.URLParam(r, "id"),
		Recipient: recipient,
		Amount:    amount,
		Nonce:     req.Nonce,
		Deadline:  req.Deadline,
	}
	var out receiptJSON
	err = s.app.Execute(r.Context(), "vault.payout", func(m *app.Modules) error {
		var (
			receipt *payout.Receipt
			err     error
		)
		if sig != nil {
			receipt, err = m.Vault.PayoutSigned(auth, sig)
		} else {
			receipt, err = m.Vault.Payout(who, auth)
		}
		if err != nil {
			return err
		}
		out = receiptFrom(receipt)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	nonce, err := pathUint(r, "nonce")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	var out receiptJSON
	err = s.app.Query(r.Context(), "vault.receipt", func(m *app.Modules) error {
		receipt, err := m.Vault.Receipt(id, nonce)
		if err != nil {
			return err
		}
		out = receiptFrom(receipt)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type fundRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func (s *Server) tokenOrDefault(token string) string {
	if strings.TrimSpace(token) == "" {
		return s.app.Symbol()
	}
	return token
}

func (s *Server) handleFundTreasury(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var req fundRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	token := s.tokenOrDefault(req.Token)
	var balance *big.Int
	err = s.app.Execute(r.Context(), "treasury.fund", func(m *app.Modules) error {
		if err := m.Vault.FundTreasury(who, token, amount); err != nil {
			return err
		}
		var err error
		balance, err = m.Vault.TreasuryBalance(token)
		return err
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "balance": amountString(balance)})
}

func (s *Server) handleTreasuryBalance(w http.ResponseWriter, r *http.Request) {
	token := s.tokenOrDefault(r.URL.Query().Get("token"))
	var balance *big.Int
	err := s.app.Query(r.Context(), "treasury.balance", func(m *app.Modules) error {
		var err error
		balance, err = m.Vault.TreasuryBalance(token)
		return err
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "balance": amountString(balance)})
}

type proposeRequest struct {
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var req proposeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	token := s.tokenOrDefault(req.Token)
	s.proposalAction(w, r, http.StatusCreated, "treasury.propose", func(m *app.Modules) (*multisig.Proposal, error) {
		return m.Vault.ProposeWithdrawal(who, token, amount, recipient)
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.proposalAction(w, r, http.StatusOK, "treasury.approve", func(m *app.Modules) (*multisig.Proposal, error) {
		return m.Vault.ApproveWithdrawal(who, id)
	})
}

func (s *Server) proposalAction(w http.ResponseWriter, r *http.Request, status int, op string, fn func(*app.Modules) (*multisig.Proposal, error)) {
	var out proposalJSON
	err := s.app.Execute(r.Context(), op, func(m *app.Modules) error {
		p, err := fn(m)
		if err != nil {
			return err
		}
		out = proposalFrom(p)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, status, out)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var out proposalJSON
	err = s.app.Query(r.Context(), "treasury.proposal", func(m *app.Modules) error {
		p, err := m.Vault.Withdrawal(id)
		if err != nil {
			return err
		}
		out = proposalFrom(p)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type purchaseNodeRequest struct {
	Tier string `json:"tier"`
}

func (s *Server) handlePurchaseNode(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var req purchaseNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	tier, err := nodes.ParseTier(req.Tier)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var out nodeJSON
	err = s.app.Execute(r.Context(), "nodes.purchase", func(m *app.Modules) error {
		node, err := m.Nodes.PurchaseNode(who, tier)
		if err != nil {
			return err
		}
		out = nodeFrom(*node)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleClaimNodeRewards(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var paid *big.Int
	err = s.app.Execute(r.Context(), "nodes.claim", func(m *app.Modules) error {
		var err error
		paid, err = m.Nodes.ClaimRewards(who)
		return err
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": crypto.FormatPrincipal(who), "claimed": amountString(paid)})
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("owner", chi.URLParam(r, "owner"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out := []nodeJSON{}
	err = s.app.Query(r.Context(), "nodes.list", func(m *app.Modules) error {
		held, err := m.Nodes.Nodes(owner)
		if err != nil {
			return err
		}
		for _, n := range held {
			out = append(out, nodeFrom(n))
		}
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePendingNodeRewards(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("owner", chi.URLParam(r, "owner"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var pending *big.Int
	err = s.app.Query(r.Context(), "nodes.pending", func(m *app.Modules) error {
		var err error
		pending, err = m.Nodes.PendingRewards(owner)
		return err
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": crypto.FormatPrincipal(owner), "pending": amountString(pending)})
}

type hostClaimRequest struct {
	JobID string `json:"job_id"`
	// Amount is optional; empty claims the rest of the job reward.
	Amount          string `json:"amount,omitempty"`
	Nonce           uint64 `json:"nonce"`
	Deadline        int64  `json:"deadline"`
	AttestationHash string `json:"attestation_hash"`
	Signature       string `json:"signature,omitempty"`
}

func (s *Server) handleHostClaim(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var req hostClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	claim := hostrewards.ClaimRequest{JobID: req.JobID, Nonce: req.Nonce, Deadline: req.Deadline}
	if strings.TrimSpace(req.Amount) != "" {
		if claim.Amount, err = parseAmount("amount", req.Amount); err != nil {
			s.writeAppError(w, r, err)
			return
		}
	}
	hash, err := decodeHex("attestation_hash", req.AttestationHash, 32)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	copy(claim.AttestationHash[:], hash)
	var sig []byte
	if strings.TrimSpace(req.Signature) != "" {
		if sig, err = decodeHex("signature", req.Signature, 65); err != nil {
			s.writeAppError(w, r, err)
			return
		}
	}
	var out claimJSON
	err = s.app.Execute(r.Context(), "hosts.claim", func(m *app.Modules) error {
		var (
			paid *hostrewards.Claim
			err  error
		)
		if sig != nil {
			paid, err = m.Hosts.ClaimPayoutSigned(claim, sig)
		} else {
			paid, err = m.Hosts.ClaimPayout(who, claim)
		}
		if err != nil {
			return err
		}
		out = claimFrom(paid)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var out poolJSON
	err := s.app.Query(r.Context(), "lp.pool", func(m *app.Modules) error {
		pool, err := m.LP.Pool(id)
		if err != nil {
			return err
		}
		out = poolFrom(pool)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type stakeRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	s.stakeAction(w, r, "lp.stake", func(m *app.Modules, who [20]byte, id string, amount *big.Int) (*lpstaking.Position, error) {
		return m.LP.Stake(who, id, amount)
	})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	s.stakeAction(w, r, "lp.unstake", func(m *app.Modules, who [20]byte, id string, amount *big.Int) (*lpstaking.Position, error) {
		return m.LP.Unstake(who, id, amount)
	})
}

func (s *Server) stakeAction(w http.ResponseWriter, r *http.Request, op string, fn func(*app.Modules, [20]byte, string, *big.Int) (*lpstaking.Position, error)) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var req stakeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	var out positionJSON
	err = s.app.Execute(r.Context(), op, func(m *app.Modules) error {
		pos, err := fn(m, who, id, amount)
		if err != nil {
			return err
		}
		out = positionFrom(pos)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClaimLP(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	var paid *big.Int
	err = s.app.Execute(r.Context(), "lp.claim", func(m *app.Modules) error {
		var err error
		paid, err = m.LP.ClaimRewards(who, id)
		return err
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pool": id, "claimed": amountString(paid)})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("owner", chi.URLParam(r, "owner"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	var out positionJSON
	err = s.app.Query(r.Context(), "lp.position", func(m *app.Modules) error {
		pos, err := m.LP.Position(id, owner)
		if err != nil {
			return err
		}
		pending, err := m.LP.PendingRewards(id, owner)
		if err != nil {
			return err
		}
		out = positionFrom(pos)
		out.Pending = amountString(pending)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRaffle(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var out raffleJSON
	err = s.app.Query(r.Context(), "raffle.get", func(m *app.Modules) error {
		rf, err := m.Raffle.Raffle(id)
		if err != nil {
			return err
		}
		out = raffleFrom(rf)
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type buyTicketsRequest struct {
	Quantity uint32 `json:"quantity"`
}

func (s *Server) handleBuyTickets(w http.ResponseWriter, r *http.Request) {
	who, err := caller(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var req buyTicketsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var out ticketsJSON
	err = s.app.Execute(r.Context(), "raffle.buy", func(m *app.Modules) error {
		held, err := m.Raffle.BuyTickets(who, id, req.Quantity)
		if err != nil {
			return err
		}
		out = ticketsJSON{RaffleID: held.RaffleID, Count: held.Count}
		return nil
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	symbol := s.tokenOrDefault(r.URL.Query().Get("symbol"))
	var balance *big.Int
	err = s.app.Query(r.Context(), "token.balance", func(m *app.Modules) error {
		var err error
		balance, err = m.Bank.Balance(symbol, addr)
		return err
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": crypto.FormatPrincipal(addr),
		"symbol":  strings.ToUpper(symbol),
		"balance": amountString(balance),
	})
}

// begin resolves the caller and, when dst is non-nil, decodes the body into
// it. It writes any error itself; handlers return when ok is false.
func (s *Server) begin(w http.ResponseWriter, r *http.Request, dst interface{}) ([20]byte, bool) {
	who, err := caller(r)
	if err == nil && dst != nil {
		err = decodeJSON(r, dst)
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return [20]byte{}, false
	}
	return who, true
}

// respond runs fn in a write transaction and encodes what it returns.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, op string, status int, fn func(*app.Modules) (interface{}, error)) {
	var out interface{}
	err := s.app.Execute(r.Context(), op, func(m *app.Modules) error {
		var err error
		out, err = fn(m)
		return err
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, status, out)
}

// view is respond for read-only operations.
func (s *Server) view(w http.ResponseWriter, r *http.Request, op string, fn func(*app.Modules) (interface{}, error)) {
	var out interface{}
	err := s.app.Query(r.Context(), op, func(m *app.Modules) error {
		var err error
		out, err = fn(m)
		return err
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeHash parses a 32-byte hex hash. Empty input yields the zero hash
// when optional is set.
func decodeHash(field, value string, optional bool) ([32]byte, error) {
	var out [32]byte
	if optional && strings.TrimSpace(value) == "" {
		return out, nil
	}
	raw, err := decodeHex(field, value, 32)
	if err != nil {
		return out, err
	}
	copy(out[:], raw)
	return out, nil
}

func parseAddresses(field string, values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	for i, v := range values {
		a, err := parseAddress(field+"["+strconv.Itoa(i)+"]", v)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
