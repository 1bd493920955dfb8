package server

import (
	"net/http"

	"github.com/google/uuid"

	"DriftShield/internal/vault"
)

type depositRequest struct {
	User   string `json:"user"`
	Amount uint64 `json:"amount"`
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

// handleDeposit credits a user's account from outside the ledger. This is
// the external-funds boundary; everything after it is a zero-sum transfer.
// POST /v1/vault/deposits
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := uuid.Parse(req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	account := vault.UserAccount(user)
	if err := s.ledger.Deposit(r.Context(), account, req.Amount); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, balanceResponse{
		Account: string(account),
		Balance: s.ledger.Balance(account),
	})
}

// handleBalance returns a user's spendable balance.
// GET /v1/vault/accounts/{user}/balance
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	user, err := uuid.Parse(r.PathValue("user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	account := vault.UserAccount(user)
	writeJSON(w, http.StatusOK, balanceResponse{
		Account: string(account),
		Balance: s.ledger.Balance(account),
	})
}

// handleJournal returns the persisted transfer history for an account.
// GET /v1/vault/journal?account=<account>&limit=50
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeError(w, http.StatusServiceUnavailable, "query service not available")
		return
	}
	account := r.URL.Query().Get("account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "missing account parameter")
		return
	}
	entries, err := s.query.JournalHistory(r.Context(), account, queryLimit(r))
	if err != nil {
		s.log.Error().Err(err).Msg("journal history failed")
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
