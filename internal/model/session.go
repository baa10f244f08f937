package model

import (
	"fmt"
	"time"
)

// State is the questionnaire phase of a participant
type State string

const (
	StateWelcome   State = "welcome"
	StateConsent   State = "consent"
	StatePhase1    State = "phase1_questions"
	StateAssess    State = "assessment"
	StateFollowup  State = "followup_questions"
	StateOrigin    State = "origin_questions"
	StateComplete  State = "completion"
	StateEmergency State = "emergency"
	StateReset     State = "reset"
)

// Durable reports whether a session may be persisted in this state.
// Completion and reset are transient: they always end in teardown.
func (s State) Durable() bool {
	return s != StateComplete && s != StateReset
}

// Valid reports whether s is a known durable state.
func (s State) Valid() bool {
	switch s {
	case StateWelcome, StateConsent, StatePhase1, StateAssess, StateFollowup, StateOrigin, StateEmergency:
		return true
	}
	return false
}

// Snapshot is the questionnaire position captured when a crisis opens
type Snapshot struct {
	State         State `json:"state" bson:"state"`
	QuestionIndex int   `json:"questionIndex" bson:"questionIndex"`
}

// Session is the per-participant aggregate. The active crisis episode and the
// pre-crisis snapshot live in the same document so they commit together.
type Session struct {
	ParticipantID     string                   `json:"participantId" bson:"_id"`
	State             State                    `json:"state" bson:"state"`
	QuestionIndex     int                      `json:"questionIndex" bson:"questionIndex"`
	Phase1Answers     []Phase1Answer           `json:"phase1Answers" bson:"phase1Answers"`
	Followup          FollowupAnswers          `json:"followup" bson:"followup"`
	TriggerDimensions []string                 `json:"triggerDimensions" bson:"triggerDimensions"`
	Attempts          map[string]*AttemptState `json:"attempts" bson:"attempts"`
	SkippedCount      int                      `json:"skippedCount" bson:"skippedCount"`
	PreCrisis         *Snapshot                `json:"preCrisis,omitempty" bson:"preCrisis,omitempty"`
	Crisis            *CrisisEpisode           `json:"crisis,omitempty" bson:"crisis,omitempty"`
	CreatedAt         time.Time                `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time                `json:"updatedAt" bson:"updatedAt"`
}

// NewSession returns the implicit WELCOME session for a participant
func NewSession(participantID string, now time.Time) *Session {
	return &Session{
		ParticipantID: participantID,
		State:         StateWelcome,
		Followup:      FollowupAnswers{Origins: map[string][]AnsweredQuestion{}},
		Attempts:      map[string]*AttemptState{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Attempt returns the counters for a question key, creating them if needed.
func (s *Session) Attempt(key string) *AttemptState {
	if s.Attempts == nil {
		s.Attempts = map[string]*AttemptState{}
	}
	a, ok := s.Attempts[key]
	if !ok {
		a = &AttemptState{}
		s.Attempts[key] = a
	}
	return a
}

// ResetAttempt zeroes the counters for a question after a successful answer.
func (s *Session) ResetAttempt(key string) {
	if a, ok := s.Attempts[key]; ok {
		a.Attempts = 0
		a.Clarifications = 0
	}
}

// InCrisis reports whether an episode owns the conversation.
func (s *Session) InCrisis() bool {
	return s.State == StateEmergency
}

// EnterEmergency snapshots the questionnaire position and hands control to ep.
// A session still in WELCOME has no position worth restoring.
func (s *Session) EnterEmergency(ep *CrisisEpisode) {
	s.PreCrisis = nil
	if s.State != StateWelcome && s.State != StateEmergency {
		s.PreCrisis = &Snapshot{State: s.State, QuestionIndex: s.QuestionIndex}
	}
	s.State = StateEmergency
	s.Crisis = ep
}

// ExitEmergency restores the snapshot (or WELCOME) and detaches the episode.
// The detached episode is returned so the caller can archive it.
func (s *Session) ExitEmergency() *CrisisEpisode {
	ep := s.Crisis
	if s.PreCrisis != nil {
		s.State = s.PreCrisis.State
		s.QuestionIndex = s.PreCrisis.QuestionIndex
	} else {
		s.State = StateWelcome
		s.QuestionIndex = 0
	}
	s.PreCrisis = nil
	s.Crisis = nil
	return ep
}

// AwaitConsent moves a session that has just been sent the welcome text from
// WELCOME to CONSENT. Any other state is left alone.
func (s *Session) AwaitConsent() {
	if s.State == StateWelcome {
		s.State = StateConsent
		s.QuestionIndex = 0
	}
}

// Validate checks the cross-field invariants before a commit.
func (s *Session) Validate() error {
	if !s.State.Durable() {
		return fmt.Errorf("state %s is not durable", s.State)
	}
	if s.InCrisis() != (s.Crisis != nil && s.Crisis.Active) {
		return fmt.Errorf("crisis episode presence does not match state %s", s.State)
	}
	if s.PreCrisis != nil && !s.InCrisis() {
		return fmt.Errorf("pre-crisis snapshot outside emergency")
	}
	return nil
}
