package state

import (
	"time"

	"github.com/google/uuid"
)

// ModelStatus tracks a registered model's monitoring state.
type ModelStatus int32

const (
	ModelStatusActive ModelStatus = iota
	ModelStatusDriftDetected
	ModelStatusPaused
)

func (s ModelStatus) String() string {
	switch s {
	case ModelStatusActive:
		return "Active"
	case ModelStatusDriftDetected:
		return "DriftDetected"
	case ModelStatusPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Bounds on registry free-text fields.
const (
	MaxModelIDLen   = 64
	MaxModelNameLen = 128
)

// ModelRecord is a registered AI model under monitoring. Accuracy values
// are basis points (9420 = 94.20%).
type ModelRecord struct {
	Key   Key
	Owner uuid.UUID

	ModelID   string
	Name      string
	ModelType string
	Framework string

	BaselineAccuracy uint64
	CurrentAccuracy  uint64
	TotalChecks      uint64
	DriftAlerts      uint64

	Status      ModelStatus
	CreatedAt   time.Time
	LastCheckAt time.Time

	IsInsured       bool
	HasActiveMarket bool
}

// Clone returns a deep copy.
func (m *ModelRecord) Clone() *ModelRecord {
	cp := *m
	return &cp
}

// MonitoringReceipt is one performance measurement submitted for a model.
// Receipts are append-only; each gets a fresh ID.
type MonitoringReceipt struct {
	ID      uuid.UUID
	Model   Key
	Checker uuid.UUID

	Accuracy   uint64 // basis points
	Precision  uint64
	Recall     uint64
	F1Score    uint64
	DriftScore uint64 // 0..10000 basis points

	MetadataURI string
	Timestamp   time.Time
}
