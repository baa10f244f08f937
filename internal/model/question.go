package model

// QuestionType defines how a reply to a question is parsed
type QuestionType string

const (
	QuestionLikert         QuestionType = "likert"          // 1-5 agreement scale, feeds assessment
	QuestionMultipleChoice QuestionType = "multiple choice" // one of Options
	QuestionText           QuestionType = "text"            // free text, truncated
)

// Question is a static questionnaire item (phase 1, follow-up or origin)
type Question struct {
	ID        string       `json:"id" bson:"id" yaml:"id"`
	Text      string       `json:"question" bson:"question" yaml:"question"`
	Type      QuestionType `json:"type" bson:"type" yaml:"type"`
	Options   []string     `json:"options,omitempty" bson:"options,omitempty" yaml:"options,omitempty"`
	Required  bool         `json:"required,omitempty" bson:"required,omitempty" yaml:"required,omitempty"`
	Dimension string       `json:"dimension,omitempty" bson:"dimension,omitempty" yaml:"dimension,omitempty"`
}

// HasOption reports whether value is exactly one of the options.
func (q *Question) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// Response is a recorded answer value
type Response struct {
	Text  string `json:"text,omitempty" bson:"text,omitempty"`   // multiple choice option or free text
	Score int    `json:"score,omitempty" bson:"score,omitempty"` // likert 1-5
}

// Phase1Answer is one revealed phase-1 question and what happened to it
type Phase1Answer struct {
	Question    Question  `json:"question" bson:"question"`
	Response    *Response `json:"response" bson:"response"`
	Disregarded bool      `json:"disregarded" bson:"disregarded"`
}

// AnsweredQuestion is a follow-up or origin question with its answer
type AnsweredQuestion struct {
	Question Question  `json:"question" bson:"question"`
	Response *Response `json:"response" bson:"response"`
}

// FollowupAnswers collects everything asked after the assessment
type FollowupAnswers struct {
	Deepening []AnsweredQuestion            `json:"deepening" bson:"deepening"`
	Origins   map[string][]AnsweredQuestion `json:"origins" bson:"origins"` // keyed by dimension
}

// AttemptState tracks retries for one question
type AttemptState struct {
	Attempts       int `json:"attempts" bson:"attempts"`
	Clarifications int `json:"clarifications" bson:"clarifications"`
}
