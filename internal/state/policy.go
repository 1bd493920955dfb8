package state

import (
	"time"

	"github.com/google/uuid"
)

// PolicyStatus is the lifecycle state of an insurance policy.
type PolicyStatus int32

const (
	PolicyStatusActive PolicyStatus = iota
	PolicyStatusClaimed
	PolicyStatusExpired
	PolicyStatusCancelled
)

func (s PolicyStatus) String() string {
	switch s {
	case PolicyStatusActive:
		return "Active"
	case PolicyStatusClaimed:
		return "Claimed"
	case PolicyStatusExpired:
		return "Expired"
	case PolicyStatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates policy transitions. Claimed, Expired, and
// Cancelled are terminal.
func (s PolicyStatus) CanTransitionTo(next PolicyStatus) bool {
	if s != PolicyStatusActive {
		return false
	}
	return next == PolicyStatusClaimed || next == PolicyStatusExpired || next == PolicyStatusCancelled
}

// Policy is an insurance policy covering a registered model against
// accuracy degradation below a threshold.
type Policy struct {
	Key   Key
	Owner uuid.UUID
	Model Key

	CoverageAmount    uint64
	PremiumPaid       uint64
	AccuracyThreshold uint64 // basis points

	Status     PolicyStatus
	StartTime  time.Time
	ExpiryTime time.Time
	ClaimPaid  uint64
}

// Clone returns a deep copy.
func (p *Policy) Clone() *Policy {
	cp := *p
	return &cp
}
