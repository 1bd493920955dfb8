package query

import (
	"time"

	"github.com/google/uuid"
)

// MarketSummary is a market row for API queries.
type MarketSummary struct {
	Key            string    `json:"key"`
	Creator        uuid.UUID `json:"creator"`
	ModelKey       string    `json:"model_key"`
	Question       string    `json:"question"`
	YesPool        int64     `json:"yes_pool"`
	NoPool         int64     `json:"no_pool"`
	TotalVolume    int64     `json:"total_volume"`
	MinStake       int64     `json:"min_stake"`
	AMMEnabled     bool      `json:"amm_enabled"`
	Status         int32     `json:"status"`
	ResolutionTime time.Time `json:"resolution_time"`
	WinningOutcome *bool     `json:"winning_outcome,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PositionSummary is a position row for API queries.
type PositionSummary struct {
	Key        string    `json:"key"`
	MarketKey  string    `json:"market_key"`
	UserID     uuid.UUID `json:"user_id"`
	YesStake   int64     `json:"yes_stake"`
	NoStake    int64     `json:"no_stake"`
	TotalStake int64     `json:"total_stake"`
	YesShares  int64     `json:"yes_shares"`
	NoShares   int64     `json:"no_shares"`
	Claimed    bool      `json:"claimed"`
}

// ModelSummary is a model row for API queries.
type ModelSummary struct {
	Key              string    `json:"key"`
	Owner            uuid.UUID `json:"owner"`
	ModelID          string    `json:"model_id"`
	Name             string    `json:"name"`
	ModelType        string    `json:"model_type"`
	Framework        string    `json:"framework"`
	BaselineAccuracy int64     `json:"baseline_accuracy"`
	CurrentAccuracy  int64     `json:"current_accuracy"`
	TotalChecks      int64     `json:"total_checks"`
	DriftAlerts      int64     `json:"drift_alerts"`
	Status           int32     `json:"status"`
	IsInsured        bool      `json:"is_insured"`
	HasActiveMarket  bool      `json:"has_active_market"`
	LastCheckAt      time.Time `json:"last_check_at"`
}

// ReceiptSummary is a monitoring receipt row for API queries.
type ReceiptSummary struct {
	ID          uuid.UUID `json:"id"`
	ModelKey    string    `json:"model_key"`
	Accuracy    int64     `json:"accuracy"`
	Precision   int64     `json:"precision"`
	Recall      int64     `json:"recall"`
	F1Score     int64     `json:"f1_score"`
	DriftScore  int64     `json:"drift_score"`
	MetadataURI string    `json:"metadata_uri"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// JournalEntry is a vault journal row for API queries.
type JournalEntry struct {
	ID            uuid.UUID `json:"id"`
	DebitAccount  string    `json:"debit_account"`
	CreditAccount string    `json:"credit_account"`
	Amount        int64     `json:"amount"`
	Kind          int32     `json:"kind"`
	CreatedAt     time.Time `json:"created_at"`
}
