package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"DriftShield/internal/registry"
	"DriftShield/internal/state"
)

type registerModelRequest struct {
	ModelID          string `json:"model_id"`
	Name             string `json:"name"`
	ModelType        string `json:"model_type"`
	Framework        string `json:"framework"`
	BaselineAccuracy uint64 `json:"baseline_accuracy_bps"`
}

type modelResponse struct {
	Key              string    `json:"key"`
	Owner            string    `json:"owner"`
	ModelID          string    `json:"model_id"`
	Name             string    `json:"name"`
	ModelType        string    `json:"model_type"`
	Framework        string    `json:"framework"`
	BaselineAccuracy uint64    `json:"baseline_accuracy_bps"`
	CurrentAccuracy  uint64    `json:"current_accuracy_bps"`
	TotalChecks      uint64    `json:"total_checks"`
	DriftAlerts      uint64    `json:"drift_alerts"`
	Status           string    `json:"status"`
	IsInsured        bool      `json:"is_insured"`
	HasActiveMarket  bool      `json:"has_active_market"`
	CreatedAt        time.Time `json:"created_at"`
	LastCheckAt      time.Time `json:"last_check_at"`
}

func toModelResponse(m *state.ModelRecord) modelResponse {
	return modelResponse{
		Key:              m.Key.String(),
		Owner:            m.Owner.String(),
		ModelID:          m.ModelID,
		Name:             m.Name,
		ModelType:        m.ModelType,
		Framework:        m.Framework,
		BaselineAccuracy: m.BaselineAccuracy,
		CurrentAccuracy:  m.CurrentAccuracy,
		TotalChecks:      m.TotalChecks,
		DriftAlerts:      m.DriftAlerts,
		Status:           m.Status.String(),
		IsInsured:        m.IsInsured,
		HasActiveMarket:  m.HasActiveMarket,
		CreatedAt:        m.CreatedAt,
		LastCheckAt:      m.LastCheckAt,
	}
}

// handleRegisterModel registers an AI model for monitoring.
// POST /v1/models
func (s *Server) handleRegisterModel(w http.ResponseWriter, r *http.Request) {
	owner, err := callerID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req registerModelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.models.RegisterModel(r.Context(), registry.RegisterModelParams{
		Owner:            owner,
		ModelID:          req.ModelID,
		Name:             req.Name,
		ModelType:        req.ModelType,
		Framework:        req.Framework,
		BaselineAccuracy: req.BaselineAccuracy,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toModelResponse(m))
}

type submitReceiptRequest struct {
	Accuracy    uint64 `json:"accuracy_bps"`
	Precision   uint64 `json:"precision_bps"`
	Recall      uint64 `json:"recall_bps"`
	F1Score     uint64 `json:"f1_score_bps"`
	DriftScore  uint64 `json:"drift_score"`
	MetadataURI string `json:"metadata_uri"`
}

type receiptResponse struct {
	ID          string    `json:"id"`
	Model       string    `json:"model"`
	Checker     string    `json:"checker"`
	Accuracy    uint64    `json:"accuracy_bps"`
	Precision   uint64    `json:"precision_bps"`
	Recall      uint64    `json:"recall_bps"`
	F1Score     uint64    `json:"f1_score_bps"`
	DriftScore  uint64    `json:"drift_score"`
	MetadataURI string    `json:"metadata_uri"`
	Timestamp   time.Time `json:"timestamp"`
}

// handleSubmitReceipt records a monitoring receipt for a model.
// POST /v1/models/{key}/receipts
func (s *Server) handleSubmitReceipt(w http.ResponseWriter, r *http.Request) {
	checker, err := callerID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req submitReceiptRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.models.SubmitReceipt(r.Context(), checker, key, registry.ReceiptParams{
		Accuracy:    req.Accuracy,
		Precision:   req.Precision,
		Recall:      req.Recall,
		F1Score:     req.F1Score,
		DriftScore:  req.DriftScore,
		MetadataURI: req.MetadataURI,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receiptResponse{
		ID:          rec.ID.String(),
		Model:       rec.Model.String(),
		Checker:     rec.Checker.String(),
		Accuracy:    rec.Accuracy,
		Precision:   rec.Precision,
		Recall:      rec.Recall,
		F1Score:     rec.F1Score,
		DriftScore:  rec.DriftScore,
		MetadataURI: rec.MetadataURI,
		Timestamp:   rec.Timestamp,
	})
}

// handleGetModel returns one model record.
// GET /v1/models/{key}
func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := s.models.GetModel(r.Context(), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toModelResponse(m))
}

// handleListModels lists models for an owner from the query store.
// GET /v1/models?owner=<uuid>
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeError(w, http.StatusServiceUnavailable, "query service not available")
		return
	}
	owner, err := uuid.Parse(r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or invalid owner parameter")
		return
	}
	models, err := s.query.ListModels(r.Context(), owner)
	if err != nil {
		s.log.Error().Err(err).Msg("list models failed")
		writeError(w, http.StatusInternalServerError, "failed to list models")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// handleListReceipts lists monitoring receipts for a model, newest first.
// GET /v1/models/{key}/receipts?limit=50
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	if s.query == nil {
		writeError(w, http.StatusServiceUnavailable, "query service not available")
		return
	}
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipts, err := s.query.ListReceipts(r.Context(), key, queryLimit(r))
	if err != nil {
		s.log.Error().Err(err).Msg("list receipts failed")
		writeError(w, http.StatusInternalServerError, "failed to list receipts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}
