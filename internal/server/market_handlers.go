package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"DriftShield/internal/market"
	"DriftShield/internal/state"
)

type createMarketRequest struct {
	Model            string    `json:"model"`
	Question         string    `json:"question"`
	ResolutionTime   time.Time `json:"resolution_time"`
	MinStake         uint64    `json:"min_stake"`
	AMMEnabled       bool      `json:"amm_enabled"`
	VirtualLiquidity uint64    `json:"virtual_liquidity"`
}

type marketResponse struct {
	Key               string     `json:"key"`
	Creator           string     `json:"creator"`
	Model             string     `json:"model"`
	Question          string     `json:"question"`
	Status            string     `json:"status"`
	YesPool           uint64     `json:"yes_pool"`
	NoPool            uint64     `json:"no_pool"`
	TotalVolume       uint64     `json:"total_volume"`
	MinStake          uint64     `json:"min_stake"`
	AMMEnabled        bool       `json:"amm_enabled"`
	VirtualLiquidity  uint64     `json:"virtual_liquidity"`
	VirtualYesReserve uint64     `json:"virtual_yes_reserve"`
	VirtualNoReserve  uint64     `json:"virtual_no_reserve"`
	TotalYesShares    uint64     `json:"total_yes_shares"`
	TotalNoShares     uint64     `json:"total_no_shares"`
	ResolutionTime    time.Time  `json:"resolution_time"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	WinningOutcome    *string    `json:"winning_outcome,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toMarketResponse(m *state.Market) marketResponse {
	resp := marketResponse{
		Key:               m.Key.String(),
		Creator:           m.Creator.String(),
		Model:             m.Model.String(),
		Question:          m.Question,
		Status:            m.Status.String(),
		YesPool:           m.YesPool,
		NoPool:            m.NoPool,
		TotalVolume:       m.TotalVolume,
		MinStake:          m.MinStake,
		AMMEnabled:        m.AMMEnabled,
		VirtualLiquidity:  m.VirtualLiquidity,
		VirtualYesReserve: m.VirtualYesReserve,
		VirtualNoReserve:  m.VirtualNoReserve,
		TotalYesShares:    m.TotalYesShares,
		TotalNoShares:     m.TotalNoShares,
		ResolutionTime:    m.ResolutionTime,
		CreatedAt:         m.CreatedAt,
	}
	if !m.ResolvedAt.IsZero() {
		t := m.ResolvedAt
		resp.ResolvedAt = &t
	}
	if m.WinningOutcome != nil {
		o := m.WinningOutcome.String()
		resp.WinningOutcome = &o
	}
	return resp
}

// handleCreateMarket creates a prediction market for a registered model.
// POST /v1/markets
func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	creator, err := callerID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	model, err := state.ParseKey(req.Model)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid model key")
		return
	}
	if req.MinStake == 0 {
		req.MinStake = s.defaults.DefaultMinStake
	}
	if req.AMMEnabled && req.VirtualLiquidity == 0 {
		req.VirtualLiquidity = s.defaults.DefaultVirtualLiquidity
	}

	m, err := s.markets.CreateMarket(r.Context(), market.CreateMarketParams{
		Creator:          creator,
		Model:            model,
		Question:         req.Question,
		ResolutionTime:   req.ResolutionTime,
		MinStake:         req.MinStake,
		AMMEnabled:       req.AMMEnabled,
		VirtualLiquidity: req.VirtualLiquidity,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMarketResponse(m))
}

type placeBetRequest struct {
	Outcome string `json:"outcome"`
	Amount  uint64 `json:"amount"`
}

type positionResponse struct {
	Key        string `json:"key"`
	Market     string `json:"market"`
	User       string `json:"user"`
	YesStake   uint64 `json:"yes_stake"`
	NoStake    uint64 `json:"no_stake"`
	TotalStake uint64 `json:"total_stake"`
	YesShares  uint64 `json:"yes_shares"`
	NoShares   uint64 `json:"no_shares"`
	Claimed    bool   `json:"claimed"`
}

func toPositionResponse(p *state.Position) positionResponse {
	return positionResponse{
		Key:        p.Key.String(),
		Market:     p.Market.String(),
		User:       p.User.String(),
		YesStake:   p.YesStake,
		NoStake:    p.NoStake,
		TotalStake: p.TotalStake,
		YesShares:  p.YesShares,
		NoShares:   p.NoShares,
		Claimed:    p.Claimed,
	}
}

// handlePlaceBet stakes funds on one side of a market.
// POST /v1/markets/{key}/bets
func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	user, err := callerID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req placeBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := parseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pos, err := s.markets.PlaceBet(r.Context(), user, key, outcome, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPositionResponse(pos))
}

type resolveMarketRequest struct {
	Outcome string `json:"outcome"`
}

// handleResolveMarket settles a market. Creator only.
// POST /v1/markets/{key}/resolve
func (s *Server) handleResolveMarket(w http.ResponseWriter, r *http.Request) {
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
	var req resolveMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := parseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.markets.ResolveMarket(r.Context(), caller, key, outcome); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "resolved",
		"outcome": outcome.String(),
	})
}

type claimResponse struct {
	Payout uint64 `json:"payout"`
}

// handleClaimWinnings pays out the caller's winning shares.
// POST /v1/markets/{key}/claim
func (s *Server) handleClaimWinnings(w http.ResponseWriter, r *http.Request) {
	user, err := callerID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payout, err := s.markets.ClaimWinnings(r.Context(), user, key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{Payout: payout})
}

type pricesResponse struct {
	YesBps uint64 `json:"yes_bps"`
	NoBps  uint64 `json:"no_bps"`
	Cached bool   `json:"cached"`
}

// handleGetPrices returns the current spot prices in basis points. Reads go
// through the price cache when one is wired; misses fall through to the
// engine and repopulate the cache best-effort.
// GET /v1/markets/{key}/prices
func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if yes, no, ok := s.prices.GetPrices(r.Context(), key); ok {
		writeJSON(w, http.StatusOK, pricesResponse{YesBps: yes, NoBps: no, Cached: true})
		return
	}

	prices, err := s.markets.GetPrices(r.Context(), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.prices.SetPrices(r.Context(), key, prices.YesBps, prices.NoBps, s.clock.Now())
	writeJSON(w, http.StatusOK, pricesResponse{YesBps: prices.YesBps, NoBps: prices.NoBps})
}

// handleListMarkets lists markets from the query store.
// GET /v1/markets?status=Open&limit=50
func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeError(w, http.StatusServiceUnavailable, "query service not available")
		return
	}
	var status *state.MarketStatus
	switch r.URL.Query().Get("status") {
	case "":
	case "Open", "open":
		v := state.MarketStatusOpen
		status = &v
	case "Resolved", "resolved":
		v := state.MarketStatusResolved
		status = &v
	case "Cancelled", "cancelled":
		v := state.MarketStatusCancelled
		status = &v
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	markets, err := s.query.ListMarkets(r.Context(), status, queryLimit(r))
	if err != nil {
		s.log.Error().Err(err).Msg("list markets failed")
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets})
}

// handleGetMarket returns one market from the query store.
// GET /v1/markets/{key}
func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeError(w, http.StatusServiceUnavailable, "query service not available")
		return
	}
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := s.query.GetMarket(r.Context(), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleGetPosition returns one bettor's position in a market.
// GET /v1/markets/{key}/positions/{user}
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeError(w, http.StatusServiceUnavailable, "query service not available")
		return
	}
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := uuid.Parse(r.PathValue("user"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	pos, err := s.query.GetPosition(r.Context(), key, user)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}
