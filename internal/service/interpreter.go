package service

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"vocalsilence/internal/config"
	"vocalsilence/internal/model"
	"vocalsilence/internal/parser"
)

// OutcomeKind is the result class of resolving one reply.
type OutcomeKind int

const (
	OutcomeUnknown  OutcomeKind = iota // could not interpret
	OutcomeAnswer                      // Response holds the value
	OutcomeSkip                        // participant asked to skip
	OutcomeClarify                     // Message holds an explanation to relay
	OutcomeInsist                      // clarification budget spent
	OutcomeOffTopic                    // Message holds a redirect
)

// Outcome is what the interpretation layers made of a reply.
type Outcome struct {
	Kind       OutcomeKind
	Response   model.Response
	Message    string
	Confidence float64 // interpretation confidence, 1 for the fast path
	LLMUsed    bool
}

// Interpreter runs the local parser first and falls back to the classifier.
type Interpreter struct {
	classifier Classifier
	policy     config.PolicyConfig
	logger     *zap.Logger
}

func NewInterpreter(classifier Classifier, policy config.PolicyConfig, logger *zap.Logger) *Interpreter {
	return &Interpreter{
		classifier: classifier,
		policy:     policy,
		logger:     logger.With(zap.String("component", "interpreter")),
	}
}

// Resolve interprets text as a reply to q.
func (i *Interpreter) Resolve(ctx context.Context, text string, q *model.Question, ac AttemptContext) Outcome {
	if resp, ok := parser.Parse(text, q); ok {
		if q.Type == model.QuestionText {
			resp.Text = parser.Truncate(resp.Text, i.maxTextLength())
		}
		return Outcome{Kind: OutcomeAnswer, Response: resp, Confidence: 1}
	}

	analysis, err := i.classifier.AnalyzeIntent(ctx, text, q, ac)
	if err != nil {
		i.logger.Warn("intent analysis failed", zap.Error(err))
		return Outcome{Kind: OutcomeUnknown, LLMUsed: true}
	}

	switch {
	case analysis.Intent == model.IntentSkip || analysis.WantsToSkip:
		return Outcome{Kind: OutcomeSkip, LLMUsed: true}

	case analysis.Intent == model.IntentQuestion && analysis.Confidence > i.policy.ClarifyConfidence:
		if analysis.ShouldInsist || ac.Clarifications >= i.policy.ClarificationLimit {
			return Outcome{Kind: OutcomeInsist, Message: msgClarifyLimit, LLMUsed: true}
		}
		msg := strings.TrimSpace(analysis.ClarificationResponse)
		if msg == "" {
			msg = msgClarifyDefault
		}
		return Outcome{Kind: OutcomeClarify, Message: msg, LLMUsed: true}

	case analysis.Intent == model.IntentOffTopic && analysis.Confidence > i.policy.OffTopicConfidence:
		return Outcome{Kind: OutcomeOffTopic, Message: msgOffTopic, LLMUsed: true}
	}

	return i.interpret(ctx, text, q)
}

func (i *Interpreter) interpret(ctx context.Context, text string, q *model.Question) Outcome {
	if q.Type == model.QuestionText {
		if s := strings.TrimSpace(text); s != "" {
			return Outcome{
				Kind:       OutcomeAnswer,
				Response:   model.Response{Text: parser.Truncate(s, i.maxTextLength())},
				Confidence: 1,
				LLMUsed:    true,
			}
		}
		return Outcome{Kind: OutcomeUnknown, LLMUsed: true}
	}

	result, err := i.classifier.Interpret(ctx, text, q)
	if err != nil {
		i.logger.Warn("interpretation failed", zap.Error(err))
		return Outcome{Kind: OutcomeUnknown, LLMUsed: true}
	}
	if result.Value == nil || result.Confidence <= i.policy.InterpretationConfidence {
		return Outcome{Kind: OutcomeUnknown, Message: msgNotUnderstood, LLMUsed: true}
	}

	resp, ok := coerceValue(result.Value, q)
	if !ok {
		return Outcome{Kind: OutcomeUnknown, Message: msgNotUnderstood, LLMUsed: true}
	}
	return Outcome{Kind: OutcomeAnswer, Response: resp, Confidence: result.Confidence, LLMUsed: true}
}

func (i *Interpreter) maxTextLength() int {
	if i.policy.MaxTextLength > 0 {
		return i.policy.MaxTextLength
	}
	return parser.MaxTextLength
}

// coerceValue turns an interpreted value into a response valid for q.
// Likert values arrive as JSON numbers or digit strings; options must
// resolve to one of q's options.
func coerceValue(v any, q *model.Question) (model.Response, bool) {
	switch q.Type {
	case model.QuestionLikert:
		var score int
		switch n := v.(type) {
		case float64:
			if n != math.Trunc(n) {
				return model.Response{}, false
			}
			score = int(n)
		case string:
			s, ok := parser.ParseLikert(n)
			if !ok {
				return model.Response{}, false
			}
			score = s
		default:
			return model.Response{}, false
		}
		if score < 1 || score > 5 {
			return model.Response{}, false
		}
		return model.Response{Score: score}, true

	case model.QuestionMultipleChoice:
		s, ok := v.(string)
		if !ok {
			return model.Response{}, false
		}
		if q.HasOption(s) {
			return model.Response{Text: s}, true
		}
		opt, ok := parser.ParseMultipleChoice(s, q.Options)
		if !ok {
			return model.Response{}, false
		}
		return model.Response{Text: opt}, true
	}
	return model.Response{}, false
}
