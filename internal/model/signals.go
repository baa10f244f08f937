package model

// ScreeningResult is the cheap first-pass risk classification
type ScreeningResult struct {
	HasRisk    bool    `json:"has_risk"`
	Type       string  `json:"type"`       // suicide, violence, substance, psychosis, help_request, none
	Confidence float64 `json:"confidence"` // 0-1
	Reasoning  string  `json:"reasoning,omitempty"`
	Model      string  `json:"-"` // model name, or "quick_check" for the keyword fallback
}

// RiskAssessment is the expensive second-pass classification
type RiskAssessment struct {
	IsEmergency        bool    `json:"is_emergency"`
	Type               string  `json:"type"`
	Severity           string  `json:"severity"` // low, medium, high, critical
	Confidence         float64 `json:"confidence"`
	InitialSafetyScore float64 `json:"initial_safety_score"` // 0-10, 10 = safe
	Analysis           string  `json:"detailed_analysis,omitempty"`
	RecommendedAction  string  `json:"recommended_action,omitempty"`
	Model              string  `json:"-"` // model name, or "error" for the fail-safe fallback
}

// Intent is what a participant is doing with a reply
type Intent string

const (
	IntentAnswer   Intent = "answer"
	IntentQuestion Intent = "question" // asking for clarification
	IntentSkip     Intent = "skip_request"
	IntentOffTopic Intent = "off_topic"
)

// IntentAnalysis is the classifier's view of an ambiguous reply
type IntentAnalysis struct {
	Intent                Intent  `json:"intent"`
	Confidence            float64 `json:"confidence"`
	WantsToSkip           bool    `json:"wants_to_skip"`
	ClarificationResponse string  `json:"clarification_response,omitempty"`
	ShouldInsist          bool    `json:"should_insist"`
	Reasoning             string  `json:"reasoning,omitempty"`
}

// Interpretation maps free text onto a concrete answer value.
// Value is a likert score (number) or an option string; nil when unknown.
type Interpretation struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// CrisisReply is one generated turn of crisis dialogue
type CrisisReply struct {
	Reply  string `json:"reply"`
	Resume bool   `json:"resume_questionnaire"`
}
