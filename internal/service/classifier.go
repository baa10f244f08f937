package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vocalsilence/internal/config"
	"vocalsilence/internal/llm"
	"vocalsilence/internal/model"
)

// ErrClassifierDisabled is returned by every call when no provider is configured.
var ErrClassifierDisabled = errors.New("classifier disabled")

// AttemptContext describes where the participant stands on the current question.
type AttemptContext struct {
	Clarifications int
	Skipped        int
	Required       bool
}

// Classifier is the gateway to the hosted models. Every call returns an
// explicit error; callers pick the fallback.
type Classifier interface {
	Screen(ctx context.Context, message string) (*model.ScreeningResult, error)
	AssessRisk(ctx context.Context, message string, screening *model.ScreeningResult) (*model.RiskAssessment, error)
	AnalyzeIntent(ctx context.Context, message string, q *model.Question, ac AttemptContext) (*model.IntentAnalysis, error)
	Interpret(ctx context.Context, message string, q *model.Question) (*model.Interpretation, error)
	CrisisTurn(ctx context.Context, episode *model.CrisisEpisode) (*model.CrisisReply, error)
}

type ClassifierService struct {
	completer llm.Completer
	config    *config.AIConfig
	skipCap   int
	logger    *zap.Logger
}

func NewClassifierService(completer llm.Completer, cfg *config.AIConfig, policy config.PolicyConfig, logger *zap.Logger) *ClassifierService {
	if completer == nil {
		completer = llm.Disabled{}
	}
	return &ClassifierService{
		completer: completer,
		config:    cfg,
		skipCap:   policy.SkipCap,
		logger:    logger.With(zap.String("component", "classifier")),
	}
}

func (s *ClassifierService) Screen(ctx context.Context, message string) (*model.ScreeningResult, error) {
	var result model.ScreeningResult
	if err := s.completeJSON(ctx, s.config.Models.Screening, buildScreeningPrompt(message), 0, &result); err != nil {
		return nil, fmt.Errorf("screening: %w", err)
	}
	if result.Type == "" {
		result.Type = model.RiskNone
	}
	result.Model = s.config.Models.Screening
	return &result, nil
}

func (s *ClassifierService) AssessRisk(ctx context.Context, message string, screening *model.ScreeningResult) (*model.RiskAssessment, error) {
	var result model.RiskAssessment
	if err := s.completeJSON(ctx, s.config.Models.Detailed, buildDetailedPrompt(message, screening), 0, &result); err != nil {
		return nil, fmt.Errorf("detailed check: %w", err)
	}
	result.Model = s.config.Models.Detailed
	return &result, nil
}

func (s *ClassifierService) AnalyzeIntent(ctx context.Context, message string, q *model.Question, ac AttemptContext) (*model.IntentAnalysis, error) {
	var result model.IntentAnalysis
	if err := s.completeJSON(ctx, s.config.Models.Interpret, buildIntentPrompt(message, q, ac, s.skipCap), 0, &result); err != nil {
		return nil, fmt.Errorf("intent: %w", err)
	}
	s.logger.Debug("intent analysed",
		zap.String("intent", string(result.Intent)),
		zap.Float64("confidence", result.Confidence),
	)
	return &result, nil
}

func (s *ClassifierService) Interpret(ctx context.Context, message string, q *model.Question) (*model.Interpretation, error) {
	var prompt string
	switch q.Type {
	case model.QuestionLikert:
		prompt = buildLikertInterpretPrompt(message, q)
	case model.QuestionMultipleChoice:
		prompt = buildChoiceInterpretPrompt(message, q)
	default:
		return nil, fmt.Errorf("interpret: unsupported question type %q", q.Type)
	}
	var result model.Interpretation
	if err := s.completeJSON(ctx, s.config.Models.Interpret, prompt, 0, &result); err != nil {
		return nil, fmt.Errorf("interpret: %w", err)
	}
	return &result, nil
}

// CrisisTurn generates the next supportive reply. The episode must already
// hold the participant's latest message. A reply that is not valid JSON is
// returned verbatim so sentinel scanning still applies.
func (s *ClassifierService) CrisisTurn(ctx context.Context, episode *model.CrisisEpisode) (*model.CrisisReply, error) {
	last := ""
	if n := len(episode.History); n > 0 {
		last = episode.History[n-1].Text
	}
	raw, err := s.complete(ctx, llm.Request{
		Model:     s.config.Models.Crisis,
		System:    buildCrisisPrompt(episode, crisisHistoryWindow),
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: last}},
		JSON:      true,
		MaxTokens: s.config.CrisisMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("crisis turn: %w", err)
	}

	var reply model.CrisisReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reply); err != nil || reply.Reply == "" && !reply.Resume {
		return &model.CrisisReply{Reply: raw}, nil
	}
	return &reply, nil
}

func (s *ClassifierService) completeJSON(ctx context.Context, modelName, prompt string, maxTokens int, out any) error {
	raw, err := s.complete(ctx, llm.Request{
		Model:     modelName,
		System:    prompt,
		JSON:      true,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (s *ClassifierService) complete(ctx context.Context, req llm.Request) (string, error) {
	if !s.config.IsEnabled() {
		return "", ErrClassifierDisabled
	}
	if s.config.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.TimeoutMS)*time.Millisecond)
		defer cancel()
	}
	return s.completer.Complete(ctx, req)
}

// extractJSON trims code fences and surrounding prose from a model reply.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}
