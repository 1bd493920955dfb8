package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"DriftShield/internal/amm"
	"DriftShield/internal/insurance"
	"DriftShield/internal/market"
	fpmath "DriftShield/internal/math"
	"DriftShield/internal/registry"
	"DriftShield/internal/state"
	"DriftShield/internal/store"
	"DriftShield/internal/vault"
)

// callerHeader carries the authenticated caller identity. Authentication
// itself happens at the edge; by the time a request reaches this server the
// header is trusted.
const callerHeader = "X-User-ID"

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps an engine error onto an HTTP status and sends it.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// statusFor maps the engines' sentinel errors onto HTTP status codes.
// Lifecycle and timing conflicts are 409, validation failures 400,
// authorization failures 403.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrUnauthorized),
		errors.Is(err, registry.ErrUnauthorized),
		errors.Is(err, insurance.ErrUnauthorized),
		errors.Is(err, vault.ErrUnauthorizedTransfer):
		return http.StatusForbidden
	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, market.ErrAlreadyClaimed),
		errors.Is(err, market.ErrMarketAlreadyResolved),
		errors.Is(err, market.ErrMarketClosed),
		errors.Is(err, market.ErrMarketExpired),
		errors.Is(err, market.ErrMarketNotExpired),
		errors.Is(err, market.ErrMarketNotResolved),
		errors.Is(err, market.ErrNoWinningStake),
		errors.Is(err, insurance.ErrPolicyNotActive),
		errors.Is(err, insurance.ErrPolicyExpired),
		errors.Is(err, insurance.ErrThresholdNotMet):
		return http.StatusConflict
	case errors.Is(err, vault.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, market.ErrStakeTooLow),
		errors.Is(err, market.ErrQuestionTooLong),
		errors.Is(err, market.ErrInvalidLiquidity),
		errors.Is(err, market.ErrInvalidResolutionTime),
		errors.Is(err, registry.ErrModelIDTooLong),
		errors.Is(err, registry.ErrModelNameTooLong),
		errors.Is(err, insurance.ErrInvalidDuration),
		errors.Is(err, amm.ErrInsufficientLiquidity),
		errors.Is(err, vault.ErrAmountTooLarge),
		errors.Is(err, fpmath.ErrOverflow),
		errors.Is(err, fpmath.ErrUnderflow),
		errors.Is(err, fpmath.ErrDivideByZero):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody parses the request body as JSON into dst, rejecting unknown
// fields so client typos surface as 400s instead of silent zero values.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// callerID reads the caller identity from the request headers.
func callerID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(callerHeader)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing %s header", callerHeader)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s header", callerHeader)
	}
	return id, nil
}

// pathKey parses the {key} path segment as an entity key.
func pathKey(r *http.Request) (state.Key, error) {
	raw := r.PathValue("key")
	k, err := state.ParseKey(raw)
	if err != nil {
		return state.Key{}, fmt.Errorf("invalid key %q", raw)
	}
	return k, nil
}

// parseOutcome accepts the wire spellings of the two market sides.
func parseOutcome(s string) (state.Outcome, error) {
	switch s {
	case "yes", "YES", "Yes":
		return state.OutcomeYes, nil
	case "no", "NO", "No":
		return state.OutcomeNo, nil
	default:
		return state.OutcomeNo, fmt.Errorf("invalid outcome %q, want yes or no", s)
	}
}

// queryLimit reads a limit query parameter with a default of 50.
func queryLimit(r *http.Request) int {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return limit
}
