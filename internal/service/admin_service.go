package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vocalsilence/internal/cache"
	"vocalsilence/internal/logging"
	"vocalsilence/internal/model"
	"vocalsilence/internal/repository"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoActiveCrisis  = errors.New("no active crisis")
)

// AdminService exposes the staff operations on participant sessions.
type AdminService struct {
	sessions      repository.SessionRepo
	crises        repository.CrisisHistoryRepo
	interactions  repository.InteractionRepo
	crisis        *CrisisService
	questionnaire *QuestionnaireService
	messenger     Messenger
	lock          cache.ParticipantLock
	broadcaster   Broadcaster
	logger        *zap.Logger
	now           func() time.Time
}

// NewAdminService creates the staff service. messenger and lock may be nil.
func NewAdminService(
	sessions repository.SessionRepo,
	crises repository.CrisisHistoryRepo,
	interactions repository.InteractionRepo,
	crisis *CrisisService,
	questionnaire *QuestionnaireService,
	messenger Messenger,
	lock cache.ParticipantLock,
	broadcaster Broadcaster,
	logger *zap.Logger,
) *AdminService {
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	return &AdminService{
		sessions:      sessions,
		crises:        crises,
		interactions:  interactions,
		crisis:        crisis,
		questionnaire: questionnaire,
		messenger:     messenger,
		lock:          lock,
		broadcaster:   broadcaster,
		logger:        logger.With(zap.String("component", "admin")),
		now:           time.Now,
	}
}

// CrisisSummary lists a participant's archived episodes plus the open one.
type CrisisSummary struct {
	Active  *model.CrisisEpisode   `json:"active,omitempty"`
	History []*model.CrisisEpisode `json:"history"`
}

// GetSession returns the stored session for a participant.
func (a *AdminService) GetSession(ctx context.Context, participantID string) (*model.Session, error) {
	s, err := a.sessions.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Reset wipes a participant's session. An open crisis is closed as an
// admin reset and archived first.
func (a *AdminService) Reset(ctx context.Context, participantID string) error {
	release, err := a.acquire(ctx, participantID)
	if err != nil {
		return err
	}
	defer release()

	s, err := a.GetSession(ctx, participantID)
	if err != nil {
		return err
	}
	now := a.now()
	if s.InCrisis() {
		a.archive(ctx, a.crisis.Interrupt(s, model.ResolutionAdminReset, now))
	}
	if err := a.sessions.Delete(ctx, participantID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	a.logger.Info("session reset by staff", logging.Participant(participantID))
	ev := newMonitorEvent(participantID, now)
	ev.Reason = ReasonAdminReset
	a.broadcaster.Broadcast(EventSessionReset, ev)
	return nil
}

// CloseCrisis ends the open crisis and returns the participant to the
// questionnaire position they were at. The returned text is the resume
// message, sent to the participant when notify is set.
func (a *AdminService) CloseCrisis(ctx context.Context, participantID string, notify bool) (string, error) {
	release, err := a.acquire(ctx, participantID)
	if err != nil {
		return "", err
	}
	defer release()

	s, err := a.GetSession(ctx, participantID)
	if err != nil {
		return "", err
	}
	if !s.InCrisis() {
		return "", ErrNoActiveCrisis
	}

	now := a.now()
	closed := a.crisis.Override(s, now)
	a.archive(ctx, closed)

	resume := a.questionnaire.ResumeMessage(s)
	if notify && a.messenger != nil {
		if _, err := a.messenger.Send(ctx, participantID, resume); err != nil {
			a.logger.Warn("resume notification failed", logging.Participant(participantID), zap.Error(err))
		} else {
			s.AwaitConsent()
		}
	}

	s.UpdatedAt = now
	if err := a.sessions.Save(ctx, s); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	ev := newMonitorEvent(participantID, now)
	ev.Reason, ev.State = model.ResolutionAdminOverride, string(s.State)
	if closed != nil {
		ev.CrisisType = closed.Type
	}
	a.broadcaster.Broadcast(EventCrisisClosed, ev)
	return resume, nil
}

// ListCrises returns the archived episodes and the active one, if any.
func (a *AdminService) ListCrises(ctx context.Context, participantID string) (*CrisisSummary, error) {
	var (
		history []*model.CrisisEpisode
		s       *model.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = a.crises.ListByParticipant(gctx, participantID)
		return err
	})
	g.Go(func() error {
		var err error
		s, err = a.sessions.Get(gctx, participantID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &CrisisSummary{History: history}
	if summary.History == nil {
		summary.History = []*model.CrisisEpisode{}
	}
	if s != nil && s.Crisis != nil && s.Crisis.Active {
		summary.Active = s.Crisis
	}
	return summary, nil
}

// ListSessions returns the most recently updated sessions in a state.
func (a *AdminService) ListSessions(ctx context.Context, state model.State, limit int64) ([]*model.Session, error) {
	sessions, err := a.sessions.ListByState(ctx, state, limit)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	return sessions, nil
}

func (a *AdminService) ListInteractions(ctx context.Context, participantID string, limit int64) ([]*model.InteractionLog, error) {
	entries, err := a.interactions.ListByParticipant(ctx, participantID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*model.InteractionLog{}
	}
	return entries, nil
}

func (a *AdminService) acquire(ctx context.Context, participantID string) (func(), error) {
	if a.lock == nil {
		return func() {}, nil
	}
	unlock, err := a.lock.Acquire(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("lock participant: %w", err)
	}
	return func() {
		if err := unlock(context.Background()); err != nil {
			a.logger.Warn("release lock failed", logging.Participant(participantID), zap.Error(err))
		}
	}, nil
}

func (a *AdminService) archive(ctx context.Context, ep *model.CrisisEpisode) {
	if ep == nil || a.crises == nil {
		return
	}
	if err := a.crises.Append(ctx, ep); err != nil {
		a.logger.Error("archive crisis episode failed", zap.String("episode", ep.ID), zap.Error(err))
	}
}
