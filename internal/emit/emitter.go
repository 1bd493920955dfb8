// Package emit delivers notifications to downstream observers.
package emit

import (
	"DriftShield/internal/event"
)

// Emitter is the notification sink. Emit must never block the calling
// operation and must never fail it: delivery is fire-and-forget.
type Emitter interface {
	Emit(ev event.Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Emit(event.Event) {}
