package server

import (
	"net/http"
	"time"

	"DriftShield/internal/insurance"
	"DriftShield/internal/state"
)

type purchasePolicyRequest struct {
	Model             string `json:"model"`
	CoverageAmount    uint64 `json:"coverage_amount"`
	Premium           uint64 `json:"premium"`
	AccuracyThreshold uint64 `json:"accuracy_threshold_bps"`
	DurationSeconds   int64  `json:"duration_seconds"`
}

type policyResponse struct {
	Key               string    `json:"key"`
	Owner             string    `json:"owner"`
	Model             string    `json:"model"`
	CoverageAmount    uint64    `json:"coverage_amount"`
	PremiumPaid       uint64    `json:"premium_paid"`
	AccuracyThreshold uint64    `json:"accuracy_threshold_bps"`
	Status            string    `json:"status"`
	StartTime         time.Time `json:"start_time"`
	ExpiryTime        time.Time `json:"expiry_time"`
	ClaimPaid         uint64    `json:"claim_paid"`
}

func toPolicyResponse(p *state.Policy) policyResponse {
	return policyResponse{
		Key:               p.Key.String(),
		Owner:             p.Owner.String(),
		Model:             p.Model.String(),
		CoverageAmount:    p.CoverageAmount,
		PremiumPaid:       p.PremiumPaid,
		AccuracyThreshold: p.AccuracyThreshold,
		Status:            p.Status.String(),
		StartTime:         p.StartTime,
		ExpiryTime:        p.ExpiryTime,
		ClaimPaid:         p.ClaimPaid,
	}
}

// handlePurchasePolicy buys accuracy-degradation coverage for a model.
// POST /v1/policies
func (s *Server) handlePurchasePolicy(w http.ResponseWriter, r *http.Request) {
	owner, err := callerID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req purchasePolicyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	model, err := state.ParseKey(req.Model)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid model key")
		return
	}

	pol, err := s.policies.PurchasePolicy(r.Context(), insurance.PurchasePolicyParams{
		Owner:             owner,
		Model:             model,
		CoverageAmount:    req.CoverageAmount,
		Premium:           req.Premium,
		AccuracyThreshold: req.AccuracyThreshold,
		Duration:          time.Duration(req.DurationSeconds) * time.Second,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPolicyResponse(pol))
}

// handleFileClaim pays out full coverage when the insured model's accuracy
// has degraded below the policy threshold.
// POST /v1/policies/{key}/claim
func (s *Server) handleFileClaim(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payout, err := s.policies.FileClaim(r.Context(), caller, key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{Payout: payout})
}

type cancelPolicyResponse struct {
	Refund uint64 `json:"refund"`
}

// handleCancelPolicy cancels a policy with a pro-rata premium refund.
// POST /v1/policies/{key}/cancel
func (s *Server) handleCancelPolicy(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	refund, err := s.policies.CancelPolicy(r.Context(), caller, key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelPolicyResponse{Refund: refund})
}

// handleGetPolicy returns one policy.
// GET /v1/policies/{key}
func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pol, err := s.policies.GetPolicy(r.Context(), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyResponse(pol))
}
