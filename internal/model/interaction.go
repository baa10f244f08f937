package model

import "time"

// InteractionLog is one append-only audit row per processed message
type InteractionLog struct {
	ID                  string         `json:"id" bson:"_id,omitempty"`
	ParticipantID       string         `json:"participantId" bson:"participantId"`
	StateBefore         State          `json:"stateBefore" bson:"stateBefore"`
	StateAfter          State          `json:"stateAfter" bson:"stateAfter"`
	MessageReceived     string         `json:"messageReceived" bson:"messageReceived"`
	MessageSent         string         `json:"messageSent" bson:"messageSent"`
	LLMUsed             bool           `json:"llmUsed" bson:"llmUsed"`
	SafetyTriggered     bool           `json:"safetyTriggered" bson:"safetyTriggered"`
	ScreeningModel      string         `json:"screeningModel,omitempty" bson:"screeningModel,omitempty"`
	ScreeningConfidence float64        `json:"screeningConfidence" bson:"screeningConfidence"`
	DetailedCheck       bool           `json:"detailedCheck" bson:"detailedCheck"`
	Metadata            map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt           time.Time      `json:"createdAt" bson:"createdAt"`
}

// Archive phases
const (
	ArchivePhase1    = "phase1"
	ArchiveFollowups = "followups"
)

// ArchiveRecord is a write-once snapshot of a completed phase
type ArchiveRecord struct {
	Key           string    `json:"key" bson:"_id"`
	ParticipantID string    `json:"participantId" bson:"participantId"`
	Phase         string    `json:"phase" bson:"phase"`
	ContentType   string    `json:"contentType" bson:"contentType"`
	Body          []byte    `json:"body" bson:"body"` // UTF-8 JSON document
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// Media is an attachment reference from the messaging gateway
type Media struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// InboundMessage is a participant message as delivered by the webhook
type InboundMessage struct {
	ParticipantID string `json:"participantId"`
	Body          string `json:"body"`
	MessageSID    string `json:"messageSid,omitempty"`
	Media         *Media `json:"media,omitempty"`
}
