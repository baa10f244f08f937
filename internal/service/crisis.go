package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vocalsilence/internal/model"
)

const (
	crisisHistoryWindow   = 5
	crisisReminderEvery   = 4
	crisisLongTalkTurns   = 10
	crisisResumeScore     = 8.0
	crisisScoreStep       = 0.5
	crisisScoreCeiling    = 6.0
	crisisDefaultScore    = 3.0
	crisisTurnRoleUser    = "user"
	crisisTurnRoleSupport = "assistant"
)

// Matches [RETOMAR_QUESTIONARIO] and its spacing/accent variants.
var resumeSentinel = regexp.MustCompile(`(?i)\[\s*RETOMAR[_ ]QUESTION[AÁ]RIO\s*\]`)

// StripResumeSentinel removes every resume marker from reply and reports
// whether one was present.
func StripResumeSentinel(reply string) (string, bool) {
	if !resumeSentinel.MatchString(reply) {
		return reply, false
	}
	return strings.TrimSpace(resumeSentinel.ReplaceAllString(reply, "")), true
}

// CrisisOutcome is the result of one crisis dialogue turn.
type CrisisOutcome struct {
	Reply    string
	Resumed  bool
	Closed   *model.CrisisEpisode // set when the episode ended this turn
	Metadata map[string]any
}

// CrisisService runs the supportive dialogue while an episode is open.
type CrisisService struct {
	classifier Classifier
	logger     *zap.Logger
}

func NewCrisisService(classifier Classifier, logger *zap.Logger) *CrisisService {
	return &CrisisService{
		classifier: classifier,
		logger:     logger.With(zap.String("component", "crisis")),
	}
}

// Open starts a fresh episode from a confirmed assessment and moves the
// session into EMERGENCY, snapshotting the questionnaire position.
func (c *CrisisService) Open(s *model.Session, assessment *model.RiskAssessment, now time.Time) *model.CrisisEpisode {
	score := assessment.InitialSafetyScore
	if score <= 0 || score > 10 {
		score = crisisDefaultScore
	}
	ep := &model.CrisisEpisode{
		ID:            uuid.New().String(),
		ParticipantID: s.ParticipantID,
		Type:          assessment.Type,
		Severity:      assessment.Severity,
		SafetyScore:   score,
		Active:        true,
		OpenedAt:      now,
		UpdatedAt:     now,
	}
	ep.EnsureType()
	s.EnterEmergency(ep)

	c.logger.Info("crisis opened",
		zap.String("episode", ep.ID),
		zap.String("type", ep.Type),
		zap.String("severity", ep.Severity),
	)
	return ep
}

// Converse feeds one participant message into the open episode. On resume
// the episode is closed and the session is restored from its snapshot.
func (c *CrisisService) Converse(ctx context.Context, s *model.Session, message string, now time.Time) CrisisOutcome {
	ep := s.Crisis
	ep.EnsureType()
	ep.InteractionCount++
	ep.Append(crisisTurnRoleUser, message, now)

	generated, err := c.classifier.CrisisTurn(ctx, ep)
	if err != nil {
		c.logger.Warn("crisis dialogue failed", zap.String("episode", ep.ID), zap.Error(err))
		ep.Append(crisisTurnRoleSupport, msgCrisisFallback, now)
		return CrisisOutcome{
			Reply:    msgCrisisFallback,
			Metadata: map[string]any{"error": err.Error(), "crisis_type": ep.Type},
		}
	}

	reply, sentinel := StripResumeSentinel(strings.TrimSpace(generated.Reply))
	resumed := sentinel || generated.Resume
	if reply == "" {
		if resumed {
			reply = msgCrisisResumed
		} else {
			reply = msgCrisisFallback
		}
	}
	ep.Append(crisisTurnRoleSupport, reply, now)

	if resumed {
		ep.SafetyScore = crisisResumeScore
	} else {
		ep.SafetyScore = math.Max(ep.SafetyScore, math.Min(ep.SafetyScore+crisisScoreStep, crisisScoreCeiling))
		if ep.InteractionCount >= crisisLongTalkTurns {
			reply += fmt.Sprintf(msgCrisisLongNote, ep.InteractionCount)
		}
		if ep.InteractionCount%crisisReminderEvery == 0 {
			reply += msgCrisisReminder
		}
	}

	out := CrisisOutcome{
		Reply:   reply,
		Resumed: resumed,
		Metadata: map[string]any{
			"crisis_type":            ep.Type,
			"interaction_count":      ep.InteractionCount,
			"safety_score":           ep.SafetyScore,
			"resume_signal_detected": sentinel,
			"can_resume":             resumed,
		},
	}
	if resumed {
		ep.Close(model.ResolutionResumed, now)
		out.Closed = s.ExitEmergency()
		c.logger.Info("crisis resolved",
			zap.String("episode", ep.ID),
			zap.Int("turns", ep.InteractionCount),
			zap.String("restored", string(s.State)),
		)
	}
	return out
}

// Interrupt closes the open episode abnormally and detaches it without
// touching the questionnaire position. The session is expected to be
// torn down afterwards.
func (c *CrisisService) Interrupt(s *model.Session, reason string, now time.Time) *model.CrisisEpisode {
	ep := s.Crisis
	if ep == nil {
		return nil
	}
	ep.Close(reason, now)
	s.Crisis = nil
	s.PreCrisis = nil
	c.logger.Info("crisis interrupted", zap.String("episode", ep.ID), zap.String("reason", reason))
	return ep
}

// Override closes the open episode on staff request and restores the
// questionnaire position as a normal resume would.
func (c *CrisisService) Override(s *model.Session, now time.Time) *model.CrisisEpisode {
	if s.Crisis == nil {
		return nil
	}
	s.Crisis.Close(model.ResolutionAdminOverride, now)
	ep := s.ExitEmergency()
	c.logger.Info("crisis overridden", zap.String("episode", ep.ID), zap.String("restored", string(s.State)))
	return ep
}
