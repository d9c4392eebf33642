package vaultd

import (
	"math/big"
	"net/http"

	"github.com/hustletexas/cyber-arcade-verse-rally/core/app"
	"github.com/hustletexas/cyber-arcade-verse-rally/crypto"
	"github.com/hustletexas/cyber-arcade-verse-rally/native/token"
)

// tokenRequest serves transfer, approve, mint and burn. Counterparty is the
// recipient, the spender or the burned holder depending on the route.
type tokenRequest struct {
	Symbol       string `json:"symbol,omitempty"`
	Counterparty string `json:"counterparty"`
	Amount       string `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	s.tokenAction(w, r, "token.transfer", func(l *token.Ledger, who, other [20]byte, amount *big.Int) error {
		return l.Transfer(who, other, amount)
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.tokenAction(w, r, "token.approve", func(l *token.Ledger, who, other [20]byte, amount *big.Int) error {
		return l.Approve(who, other, amount)
	})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	s.tokenAction(w, r, "token.mint", func(l *token.Ledger, who, other [20]byte, amount *big.Int) error {
		return l.Mint(who, other, amount)
	})
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	s.tokenAction(w, r, "token.burn", func(l *token.Ledger, who, other [20]byte, amount *big.Int) error {
		return l.Burn(who, other, amount)
	})
}

func (s *Server) tokenAction(w http.ResponseWriter, r *http.Request, op string, fn func(*token.Ledger, [20]byte, [20]byte, *big.Int) error) {
	var req tokenRequest
	who, ok := s.begin(w, r, &req)
	if !ok {
		return
	}
	other, err := parseAddress("counterparty", req.Counterparty)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	symbol := token.NormalizeSymbol(s.tokenOrDefault(req.Symbol))
	s.respond(w, r, op, http.StatusOK, func(m *app.Modules) (interface{}, error) {
		ledger, err := m.Bank.Ledger(symbol)
		if err != nil {
			return nil, err
		}
		if err := fn(ledger, who, other, amount); err != nil {
			return nil, err
		}
		balance, err := ledger.Balance(who)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"address": crypto.FormatPrincipal(who),
			"symbol":  symbol,
			"balance": amountString(balance),
		}, nil
	})
}
