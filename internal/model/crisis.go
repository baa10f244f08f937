package model

import "time"

// Risk categories returned by the classifiers
const (
	RiskSuicide     = "suicide"
	RiskViolence    = "violence"
	RiskSubstance   = "substance"
	RiskPsychosis   = "psychosis"
	RiskHelpRequest = "help_request"
	RiskNone        = "none"

	// CrisisTypeUnknown replaces a missing type on an open episode.
	CrisisTypeUnknown = "unknown"
)

// Resolution reasons recorded when an episode closes
const (
	ResolutionResumed       = "resumed"
	ResolutionUserReset     = "reset_questionnaire"
	ResolutionAdminReset    = "admin_reset"
	ResolutionAdminOverride = "admin_override"
)

// CrisisTurn is one message exchanged inside an episode
type CrisisTurn struct {
	Role      string    `json:"role" bson:"role"` // "user" or "assistant"
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// CrisisEpisode is an open (or archived) supportive conversation
type CrisisEpisode struct {
	ID               string       `json:"id" bson:"_id"`
	ParticipantID    string       `json:"participantId" bson:"participantId"`
	Type             string       `json:"type" bson:"type"`
	Severity         string       `json:"severity,omitempty" bson:"severity,omitempty"`
	SafetyScore      float64      `json:"safetyScore" bson:"safetyScore"`
	InteractionCount int          `json:"interactionCount" bson:"interactionCount"`
	History          []CrisisTurn `json:"history" bson:"history"`
	Active           bool         `json:"active" bson:"active"`
	ResolutionReason string       `json:"resolutionReason,omitempty" bson:"resolutionReason,omitempty"`
	OpenedAt         time.Time    `json:"openedAt" bson:"openedAt"`
	UpdatedAt        time.Time    `json:"updatedAt" bson:"updatedAt"`
	ResolvedAt       *time.Time   `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
}

// EnsureType replaces an empty type with CrisisTypeUnknown.
// It returns true when a correction was made.
func (c *CrisisEpisode) EnsureType() bool {
	if c.Type != "" {
		return false
	}
	c.Type = CrisisTypeUnknown
	return true
}

// Append records a turn.
func (c *CrisisEpisode) Append(role, text string, at time.Time) {
	c.History = append(c.History, CrisisTurn{Role: role, Text: text, Timestamp: at})
	c.UpdatedAt = at
}

// Recent returns at most n of the latest turns.
func (c *CrisisEpisode) Recent(n int) []CrisisTurn {
	if len(c.History) <= n {
		return c.History
	}
	return c.History[len(c.History)-n:]
}

// Close marks the episode inactive.
func (c *CrisisEpisode) Close(reason string, at time.Time) {
	c.Active = false
	c.ResolutionReason = reason
	c.ResolvedAt = &at
	c.UpdatedAt = at
}
