package service

import (
	"time"

	"vocalsilence/internal/logging"
)

// Monitor event types
const (
	EventCrisisOpened     = "crisis_opened"
	EventCrisisClosed     = "crisis_closed"
	EventSessionReset     = "session_reset"
	EventSessionCompleted = "session_completed"
)

// Broadcaster interface for the staff monitor stream (avoids import cycle)
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// MonitorEvent is the payload pushed to staff monitors. Participant ids are masked.
type MonitorEvent struct {
	Participant string    `json:"participant"`
	State       string    `json:"state,omitempty"`
	CrisisType  string    `json:"crisisType,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

func newMonitorEvent(participantID string, at time.Time) MonitorEvent {
	return MonitorEvent{Participant: logging.Mask(participantID), At: at}
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, interface{}) {}
