package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vocalsilence/internal/llm"
	"vocalsilence/internal/logging"
	"vocalsilence/internal/model"
	"vocalsilence/internal/parser"
	"vocalsilence/internal/repository"
)

// Longest text kept in an interaction log field.
const interactionTextLimit = 1000

// ConversationService is the per-message engine: it loads the session,
// routes the message through audio, commands, crisis, safety and the
// questionnaire, then commits and logs the turn.
type ConversationService struct {
	sessions      repository.SessionRepo
	crises        repository.CrisisHistoryRepo
	interactions  repository.InteractionRepo
	safety        *SafetyService
	crisis        *CrisisService
	questionnaire *QuestionnaireService
	audio         *AudioService
	broadcaster   Broadcaster
	logger        *zap.Logger
	now           func() time.Time
}

func NewConversationService(
	sessions repository.SessionRepo,
	crises repository.CrisisHistoryRepo,
	interactions repository.InteractionRepo,
	safety *SafetyService,
	crisis *CrisisService,
	questionnaire *QuestionnaireService,
	audio *AudioService,
	broadcaster Broadcaster,
	logger *zap.Logger,
) *ConversationService {
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	return &ConversationService{
		sessions:      sessions,
		crises:        crises,
		interactions:  interactions,
		safety:        safety,
		crisis:        crisis,
		questionnaire: questionnaire,
		audio:         audio,
		broadcaster:   broadcaster,
		logger:        logger.With(zap.String("component", "conversation")),
		now:           time.Now,
	}
}

// HandleMessage processes one inbound message and returns the replies to
// send, in order. It never fails: unexpected errors become the generic
// retry reply.
func (e *ConversationService) HandleMessage(ctx context.Context, msg model.InboundMessage) (replies []string) {
	entry := &model.InteractionLog{
		ParticipantID:   msg.ParticipantID,
		MessageReceived: msg.Body,
		Metadata:        map[string]any{},
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("turn panicked",
				logging.Participant(msg.ParticipantID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			entry.MessageSent = "[ERROR]"
			entry.Metadata["error"] = fmt.Sprint(r)
			e.logInteraction(ctx, entry)
			replies = []string{GenericErrorReply}
		}
	}()

	replies, err := e.handle(ctx, msg, entry)
	if err != nil {
		e.logger.Error("turn failed", logging.Participant(msg.ParticipantID), zap.Error(err))
		entry.MessageSent = "[ERROR]"
		entry.Metadata["error"] = err.Error()
		e.logInteraction(ctx, entry)
		return []string{GenericErrorReply}
	}

	entry.MessageSent = strings.Join(replies, " | ")
	e.logInteraction(ctx, entry)
	return replies
}

func (e *ConversationService) handle(ctx context.Context, msg model.InboundMessage, entry *model.InteractionLog) ([]string, error) {
	now := e.now()

	s, err := e.sessions.Get(ctx, msg.ParticipantID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		s = model.NewSession(msg.ParticipantID, now)
	}
	e.repair(s, now)
	entry.StateBefore = s.State
	entry.StateAfter = s.State

	text := msg.Body
	var transcript string
	if msg.Media != nil && msg.Media.URL != "" {
		t, err := e.transcribe(ctx, s, msg.Media)
		if err != nil {
			var audioErr *AudioError
			if !errors.As(err, &audioErr) {
				return nil, err
			}
			entry.MessageReceived = "[AUDIO: " + parser.Truncate(msg.Media.URL, 50) + "...]"
			entry.Metadata["audio_error"] = true
			entry.Metadata["error"] = audioErr.Err.Error()
			return []string{audioErr.Reply}, nil
		}
		text, transcript = t.Text, t.Text
		entry.MessageReceived = "[ÁUDIO TRANSCRITO]: " + t.Text
		entry.Metadata["audio_processed"] = true
		entry.Metadata["audio_duration"] = t.Duration.Seconds()
		entry.Metadata["audio_language"] = t.Language
	}

	if parser.ContainsAnyWord(text, restartWords) {
		return e.restart(ctx, s, text, entry, now), nil
	}

	if s.InCrisis() {
		return []string{e.crisisTurn(ctx, s, text, entry, now)}, nil
	}

	decision := e.safety.Evaluate(ctx, text)
	entry.ScreeningModel = decision.Screening.Model
	entry.ScreeningConfidence = decision.Screening.Confidence
	entry.DetailedCheck = decision.DetailedCheck()
	entry.Metadata["screening_type"] = decision.Screening.Type
	if decision.DetailedCheck() {
		entry.Metadata["severity"] = decision.Assessment.Severity
		entry.Metadata["detailed_model"] = decision.Assessment.Model
	}

	if decision.OpenCrisis {
		ep := e.crisis.Open(s, decision.Assessment, now)
		ev := newMonitorEvent(s.ParticipantID, now)
		ev.CrisisType, ev.Severity, ev.State = ep.Type, ep.Severity, string(s.State)
		e.broadcaster.Broadcast(EventCrisisOpened, ev)
		return []string{e.crisisTurn(ctx, s, text, entry, now)}, nil
	}

	turn, err := e.questionnaire.Handle(ctx, s, text)
	if err != nil {
		return nil, err
	}
	entry.LLMUsed = turn.LLMUsed

	if turn.Teardown {
		e.delete(ctx, s.ParticipantID)
		ev := newMonitorEvent(s.ParticipantID, now)
		ev.Reason = turn.Reason
		if turn.Completed {
			entry.StateAfter = model.StateComplete
			e.broadcaster.Broadcast(EventSessionCompleted, ev)
		} else {
			entry.StateAfter = model.StateReset
			e.broadcaster.Broadcast(EventSessionReset, ev)
		}
		entry.Metadata["teardown"] = turn.Reason
		return turn.Messages, nil
	}

	e.save(ctx, s, now)
	entry.StateAfter = s.State

	messages := turn.Messages
	if transcript != "" && len(messages) > 0 {
		messages[0] = audioPreview(transcript) + messages[0]
	}
	return messages, nil
}

// crisisTurn runs one crisis dialogue turn, commits the session and, on
// resume, appends the questionnaire resume message.
func (e *ConversationService) crisisTurn(ctx context.Context, s *model.Session, text string, entry *model.InteractionLog, now time.Time) string {
	out := e.crisis.Converse(ctx, s, text, now)
	entry.LLMUsed = true
	entry.SafetyTriggered = true
	for k, v := range out.Metadata {
		entry.Metadata[k] = v
	}

	result := out.Reply
	if out.Resumed {
		result += "\n\n" + e.questionnaire.ResumeMessage(s)
		s.AwaitConsent()
		e.archiveEpisode(ctx, out.Closed)
		ev := newMonitorEvent(s.ParticipantID, now)
		ev.Reason, ev.State = model.ResolutionResumed, string(s.State)
		if out.Closed != nil {
			ev.CrisisType = out.Closed.Type
		}
		e.broadcaster.Broadcast(EventCrisisClosed, ev)
	}

	e.save(ctx, s, now)
	entry.StateAfter = s.State
	return result
}

func (e *ConversationService) restart(ctx context.Context, s *model.Session, text string, entry *model.InteractionLog, now time.Time) []string {
	if s.InCrisis() {
		e.logInteraction(ctx, &model.InteractionLog{
			ParticipantID:   s.ParticipantID,
			StateBefore:     s.State,
			StateAfter:      model.StateReset,
			MessageReceived: text,
			MessageSent:     msgResetDuringCris,
			SafetyTriggered: true,
			Metadata:        map[string]any{"crisis_interrupted": true, "reason": "user_reset_request"},
		})
		e.archiveEpisode(ctx, e.crisis.Interrupt(s, model.ResolutionUserReset, now))
	}
	e.delete(ctx, s.ParticipantID)

	ev := newMonitorEvent(s.ParticipantID, now)
	ev.Reason = ReasonUserReset
	e.broadcaster.Broadcast(EventSessionReset, ev)

	entry.StateAfter = model.StateReset
	return []string{msgRestarted}
}

func (e *ConversationService) transcribe(ctx context.Context, s *model.Session, media *model.Media) (*llm.Transcription, error) {
	if e.audio == nil {
		return nil, &AudioError{Reply: msgAudioFailed, Err: ErrTranscriberDisabled}
	}
	return e.audio.Transcribe(ctx, media, e.questionnaire.CurrentQuestionType(s))
}

// repair fixes inconsistencies left by older writes: an episode without a
// type, EMERGENCY without an episode, or an episode outside EMERGENCY.
func (e *ConversationService) repair(s *model.Session, now time.Time) {
	switch {
	case s.InCrisis() && (s.Crisis == nil || !s.Crisis.Active):
		e.logger.Warn("emergency session without an open episode", logging.Participant(s.ParticipantID))
		s.Crisis = &model.CrisisEpisode{
			ID:            uuid.New().String(),
			ParticipantID: s.ParticipantID,
			Type:          model.CrisisTypeUnknown,
			SafetyScore:   crisisDefaultScore,
			Active:        true,
			OpenedAt:      now,
			UpdatedAt:     now,
		}
	case !s.InCrisis() && (s.Crisis != nil || s.PreCrisis != nil):
		e.logger.Warn("episode attached outside emergency", logging.Participant(s.ParticipantID))
		s.Crisis = nil
		s.PreCrisis = nil
	}
	if s.Crisis != nil && s.Crisis.EnsureType() {
		e.logger.Warn("crisis type was empty, set to unknown", logging.Participant(s.ParticipantID))
	}
}

func (e *ConversationService) save(ctx context.Context, s *model.Session, now time.Time) {
	if err := s.Validate(); err != nil {
		e.logger.Error("saving inconsistent session", logging.Participant(s.ParticipantID), zap.Error(err))
	}
	s.UpdatedAt = now
	if err := e.sessions.Save(ctx, s); err != nil {
		e.logger.Error("save session failed", logging.Participant(s.ParticipantID), zap.Error(err))
	}
}

func (e *ConversationService) delete(ctx context.Context, participantID string) {
	if err := e.sessions.Delete(ctx, participantID); err != nil {
		e.logger.Error("delete session failed", logging.Participant(participantID), zap.Error(err))
	}
}

func (e *ConversationService) archiveEpisode(ctx context.Context, ep *model.CrisisEpisode) {
	if ep == nil || e.crises == nil {
		return
	}
	if err := e.crises.Append(ctx, ep); err != nil {
		e.logger.Error("archive crisis episode failed", zap.String("episode", ep.ID), zap.Error(err))
	}
}

func (e *ConversationService) logInteraction(ctx context.Context, entry *model.InteractionLog) {
	if e.interactions == nil {
		return
	}
	entry.MessageReceived = parser.Truncate(entry.MessageReceived, interactionTextLimit)
	entry.MessageSent = parser.Truncate(entry.MessageSent, interactionTextLimit)
	if len(entry.Metadata) == 0 {
		entry.Metadata = nil
	}
	if err := e.interactions.Append(ctx, entry); err != nil {
		e.logger.Warn("interaction log failed", logging.Participant(entry.ParticipantID), zap.Error(err))
	}
}
