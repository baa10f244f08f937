package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"vocalsilence/internal/config"
	"vocalsilence/internal/model"
	"vocalsilence/internal/parser"
)

type riskKeywords struct {
	riskType string
	keywords []string
}

// Checked in order; the first category with a hit wins.
var emergencyKeywords = []riskKeywords{
	{model.RiskSuicide, []string{
		"suicídio", "me matar", "tirar minha vida", "não aguento mais", "acabar com tudo",
		"desistir de viver", "me cortar", "me machucar", "automutilação",
	}},
	{model.RiskViolence, []string{
		"matar alguém", "machucar", "violência", "agredir", "ferir", "atacar", "vingança",
	}},
	{model.RiskSubstance, []string{
		"overdose", "drogas", "álcool", "vício", "dependência", "abuso de substância",
	}},
	{model.RiskPsychosis, []string{
		"vozes", "alucinação", "perseguição", "complô", "delírio", "paranoia",
	}},
	{model.RiskHelpRequest, []string{
		"me sentindo mal", "sentindo mal", "preciso de ajuda", "preciso ajuda",
		"contato de alguém", "contato para ajudar", "alguém para me ajudar",
	}},
}

// QuickCheck is the offline keyword screen. It returns the matched category
// and keyword, or ok=false.
func QuickCheck(message string) (riskType, keyword string, ok bool) {
	msg := parser.Normalize(message)
	for _, group := range emergencyKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(msg, parser.Normalize(kw)) {
				return group.riskType, kw, true
			}
		}
	}
	return "", "", false
}

// SafetyDecision is the outcome of the two-tier screen for one message.
type SafetyDecision struct {
	Screening  *model.ScreeningResult
	Assessment *model.RiskAssessment // nil when the detailed pass did not run
	OpenCrisis bool
}

// DetailedCheck reports whether the detailed pass ran.
func (d SafetyDecision) DetailedCheck() bool {
	return d.Assessment != nil
}

type SafetyService struct {
	classifier Classifier
	config     config.SafetyConfig
	logger     *zap.Logger
}

func NewSafetyService(classifier Classifier, cfg config.SafetyConfig, logger *zap.Logger) *SafetyService {
	return &SafetyService{
		classifier: classifier,
		config:     cfg,
		logger:     logger.With(zap.String("component", "safety")),
	}
}

// Evaluate screens a message and escalates to the detailed pass when the
// screening confidence clears the threshold. It never fails: screening
// degrades to QuickCheck and the detailed pass degrades to an emergency.
func (s *SafetyService) Evaluate(ctx context.Context, message string) SafetyDecision {
	screening := s.screen(ctx, message)
	decision := SafetyDecision{Screening: screening}

	flagged := screening.HasRisk || (screening.Type != "" && screening.Type != model.RiskNone)
	if !flagged || screening.Confidence < s.config.ScreeningThreshold {
		return decision
	}

	assessment, err := s.classifier.AssessRisk(ctx, message, screening)
	if err != nil {
		s.logger.Warn("detailed check failed, assuming emergency", zap.Error(err))
		assessment = failSafeAssessment(screening)
	}
	if assessment.Type == "" || assessment.Type == model.RiskNone {
		assessment.Type = screening.Type
	}
	if assessment.Type == "" || assessment.Type == model.RiskNone {
		assessment.Type = model.CrisisTypeUnknown
	}
	decision.Assessment = assessment
	decision.OpenCrisis = assessment.IsEmergency && assessment.Confidence > s.config.EmergencyConfidence

	s.logger.Info("risk escalated",
		zap.String("type", assessment.Type),
		zap.String("severity", assessment.Severity),
		zap.Float64("screeningConfidence", screening.Confidence),
		zap.Float64("confidence", assessment.Confidence),
		zap.Bool("openCrisis", decision.OpenCrisis),
	)
	return decision
}

func (s *SafetyService) screen(ctx context.Context, message string) *model.ScreeningResult {
	result, err := s.classifier.Screen(ctx, message)
	if err == nil {
		return result
	}
	s.logger.Warn("screening failed, using keyword check", zap.Error(err))
	if riskType, kw, ok := QuickCheck(message); ok {
		return &model.ScreeningResult{
			HasRisk:    true,
			Type:       riskType,
			Confidence: 0.8,
			Reasoning:  "Detectado por palavra-chave: " + kw,
			Model:      "quick_check",
		}
	}
	return &model.ScreeningResult{
		Type:      model.RiskNone,
		Reasoning: "Sem riscos detectados",
		Model:     "quick_check",
	}
}

func failSafeAssessment(screening *model.ScreeningResult) *model.RiskAssessment {
	riskType := screening.Type
	if riskType == "" || riskType == model.RiskNone {
		riskType = model.CrisisTypeUnknown
	}
	return &model.RiskAssessment{
		IsEmergency:        true,
		Type:               riskType,
		Severity:           "high",
		Confidence:         0.7,
		InitialSafetyScore: 3,
		Analysis:           "Erro na análise detalhada - assumindo emergência por precaução",
		RecommendedAction:  "Iniciar protocolo de suporte",
		Model:              "error",
	}
}
