package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"vocalsilence/internal/config"
	"vocalsilence/internal/logging"
	"vocalsilence/internal/model"
	"vocalsilence/internal/parser"
	"vocalsilence/internal/questionnaire"
	"vocalsilence/internal/repository"
)

const (
	archivePrefix      = "questionario_state_machine"
	archiveTimeLayout  = "20060102T150405Z"
	archiveContentType = "application/json; charset=utf-8"

	// Origin questions asked per trigger dimension.
	originPerDimension = 2

	// Interpreted answers below this confidence are flagged to the participant.
	interpretedFlagConfidence = 0.85
)

// Turn is the questionnaire's reaction to one message.
type Turn struct {
	Messages  []string
	LLMUsed   bool
	Teardown  bool   // the session must be deleted
	Completed bool   // the questionnaire finished normally
	Reason    string // why a teardown happened
}

func reply(msgs ...string) Turn {
	return Turn{Messages: msgs}
}

func teardown(reason string, msgs ...string) Turn {
	return Turn{Messages: msgs, Teardown: true, Reason: reason}
}

// Teardown reasons
const (
	ReasonConsentDeclined = "consent_declined"
	ReasonSkipCap         = "skip_cap"
	ReasonAttempts        = "attempts_exhausted"
	ReasonCompleted       = "completed"
	ReasonUserReset       = "user_reset"
	ReasonAdminReset      = "admin_reset"
)

// QuestionnaireService drives the questionnaire phases of a session.
type QuestionnaireService struct {
	catalog     *questionnaire.Catalog
	interpreter *Interpreter
	archive     repository.ArchiveRepo
	policy      config.PolicyConfig
	logger      *zap.Logger
	now         func() time.Time
}

func NewQuestionnaireService(catalog *questionnaire.Catalog, interpreter *Interpreter, archive repository.ArchiveRepo, policy config.PolicyConfig, logger *zap.Logger) *QuestionnaireService {
	return &QuestionnaireService{
		catalog:     catalog,
		interpreter: interpreter,
		archive:     archive,
		policy:      policy,
		logger:      logger.With(zap.String("component", "questionnaire")),
		now:         time.Now,
	}
}

// Handle advances the session by one participant message.
func (q *QuestionnaireService) Handle(ctx context.Context, s *model.Session, text string) (Turn, error) {
	switch s.State {
	case model.StateWelcome, model.StateComplete, model.StateReset:
		s.State = model.StateConsent
		s.QuestionIndex = 0
		return reply(msgWelcome), nil
	case model.StateConsent:
		return q.handleConsent(s, text), nil
	case model.StatePhase1:
		return q.handlePhase1(ctx, s, text), nil
	case model.StateAssess:
		return q.assess(ctx, s), nil
	case model.StateFollowup:
		return q.handleFollowup(ctx, s, text), nil
	case model.StateOrigin:
		return q.handleOrigin(ctx, s, text), nil
	default:
		return Turn{}, fmt.Errorf("questionnaire: unexpected state %s", s.State)
	}
}

// handleConsent only accepts an unambiguous yes. A message carrying both an
// affirmative and a negative keyword ("não aceito") is asked again.
func (q *QuestionnaireService) handleConsent(s *model.Session, text string) Turn {
	yes := parser.ContainsAnyWord(text, consentYes)
	no := parser.ContainsAnyWord(text, consentNo)
	switch {
	case yes && !no:
		first := q.catalog.Questions[0]
		s.State = model.StatePhase1
		s.QuestionIndex = 0
		s.Phase1Answers = []model.Phase1Answer{{Question: first}}
		return reply(msgConsentIntro + FormatQuestion(&first, 1, len(q.catalog.Questions)))
	case no && !yes:
		return teardown(ReasonConsentDeclined, msgConsentDeclined)
	default:
		return reply(msgConsentReprompt)
	}
}

func (q *QuestionnaireService) handlePhase1(ctx context.Context, s *model.Session, text string) Turn {
	total := len(q.catalog.Questions)
	if s.QuestionIndex >= total {
		s.State = model.StateAssess
		return q.assess(ctx, s)
	}

	question := q.phase1Question(s)
	required := q.isRequired(question)
	key := "q_" + question.ID
	attempt := s.Attempt(key)
	card := FormatQuestion(question, s.QuestionIndex+1, total)

	out := q.interpreter.Resolve(ctx, text, question, AttemptContext{
		Clarifications: attempt.Clarifications,
		Skipped:        s.SkippedCount,
		Required:       required,
	})
	turn := q.phase1Outcome(ctx, s, question, required, attempt, card, out)
	turn.LLMUsed = turn.LLMUsed || out.LLMUsed
	return turn
}

func (q *QuestionnaireService) phase1Outcome(ctx context.Context, s *model.Session, question *model.Question, required bool, attempt *model.AttemptState, card string, out Outcome) Turn {
	switch out.Kind {
	case OutcomeSkip:
		if required {
			return reply(msgRequiredNoSkip + card)
		}
		if s.SkippedCount >= q.policy.SkipCap {
			return teardown(ReasonSkipCap, fmt.Sprintf(msgSkipCapReached, q.policy.SkipCap))
		}
		q.disregard(s)
		remaining := q.policy.SkipCap - s.SkippedCount
		if next, done := q.advancePhase1(ctx, s); done {
			return next
		}
		info := msgSkipsExhausted
		if remaining > 0 {
			plural := ""
			if remaining > 1 {
				plural = "s"
			}
			info = fmt.Sprintf(msgSkipsRemaining, remaining, plural)
		}
		return reply(msgSkipped + info + "\n\n" + q.currentCard(s))

	case OutcomeClarify:
		attempt.Clarifications++
		return reply(fmt.Sprintf(msgClarifyRelay, out.Message) + card)

	case OutcomeInsist, OutcomeOffTopic:
		if out.Kind == OutcomeInsist {
			attempt.Clarifications++
		}
		return reply(fmt.Sprintf(msgWarning, out.Message) + card)

	case OutcomeUnknown:
		attempt.Attempts++
		if required {
			if attempt.Attempts >= q.policy.RequiredAttempts {
				return teardown(ReasonAttempts, msgInconsistent)
			}
			msg := out.Message
			if msg == "" {
				msg = msgNotUnderstood
			}
			return reply("❌ " + msg + "\n\n" + fmt.Sprintf(msgAttemptCounter, attempt.Attempts, q.policy.RequiredAttempts) + card)
		}
		if attempt.Attempts < q.policy.OptionalAttempts {
			return reply(msgTryClearer + fmt.Sprintf(msgAttemptCounter, attempt.Attempts, q.policy.OptionalAttempts) + card)
		}
		q.disregard(s)
		if s.SkippedCount >= q.policy.SkipCap {
			return teardown(ReasonSkipCap, msgTooManySkips)
		}
		if next, done := q.advancePhase1(ctx, s); done {
			return next
		}
		return reply(msgAutoSkipped + q.currentCard(s))
	}

	// OutcomeAnswer
	switch question.Type {
	case model.QuestionMultipleChoice:
		if !question.HasOption(out.Response.Text) {
			return reply(msgInvalidOption + card)
		}
	case model.QuestionLikert:
		if out.Response.Score < 1 || out.Response.Score > 5 {
			return reply(msgInvalidLikert + card)
		}
	}

	resp := out.Response
	entry := &s.Phase1Answers[s.QuestionIndex]
	entry.Response = &resp
	entry.Disregarded = false
	s.ResetAttempt("q_" + question.ID)

	if next, done := q.advancePhase1(ctx, s); done {
		return next
	}
	flag := ""
	if out.LLMUsed && out.Confidence < interpretedFlagConfidence {
		flag = msgInterpreted
	}
	return reply(fmt.Sprintf(msgAnswerRecorded, flag) + q.currentCard(s))
}

// disregard marks the current phase-1 question as skipped.
func (q *QuestionnaireService) disregard(s *model.Session) {
	entry := &s.Phase1Answers[s.QuestionIndex]
	entry.Response = nil
	entry.Disregarded = true
	s.SkippedCount++
}

// advancePhase1 moves the cursor and reveals the next question. When the
// battery is exhausted it runs the assessment and returns its turn.
func (q *QuestionnaireService) advancePhase1(ctx context.Context, s *model.Session) (Turn, bool) {
	s.QuestionIndex++
	if s.QuestionIndex >= len(q.catalog.Questions) {
		s.State = model.StateAssess
		return q.assess(ctx, s), true
	}
	if len(s.Phase1Answers) <= s.QuestionIndex {
		s.Phase1Answers = append(s.Phase1Answers, model.Phase1Answer{Question: q.catalog.Questions[s.QuestionIndex]})
	}
	return Turn{}, false
}

// phase1Question returns the revealed question at the cursor, revealing it
// if an older session never recorded it.
func (q *QuestionnaireService) phase1Question(s *model.Session) *model.Question {
	for len(s.Phase1Answers) <= s.QuestionIndex {
		s.Phase1Answers = append(s.Phase1Answers, model.Phase1Answer{Question: q.catalog.Questions[len(s.Phase1Answers)]})
	}
	return &s.Phase1Answers[s.QuestionIndex].Question
}

func (q *QuestionnaireService) isRequired(question *model.Question) bool {
	return question.Required || slices.Contains(q.policy.RequiredQuestionIDs, question.ID)
}

func (q *QuestionnaireService) assess(ctx context.Context, s *model.Session) Turn {
	s.TriggerDimensions = TriggerDimensions(s.Phase1Answers, q.policy.RiskCutoff, q.catalog.IsTarget)
	q.archivePhase(ctx, s, model.ArchivePhase1, map[string]any{"questionnaire": s.Phase1Answers})

	q.logger.Info("assessment done",
		logging.Participant(s.ParticipantID),
		zap.Strings("triggers", s.TriggerDimensions),
	)

	if len(s.TriggerDimensions) == 0 {
		return q.complete(s)
	}
	s.State = model.StateFollowup
	s.QuestionIndex = 0
	first := q.catalog.Followups[0]
	return reply(msgFollowupIntro, FormatFollowup(&first, 1, len(q.catalog.Followups)))
}

// TriggerDimensions averages Likert answers per dimension and returns the
// dimensions at or below cutoff, in first-seen order. isTarget filters the
// dimensions that count; nil accepts all.
func TriggerDimensions(answers []model.Phase1Answer, cutoff float64, isTarget func(string) bool) []string {
	var order []string
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, a := range answers {
		if a.Question.Type != model.QuestionLikert || a.Disregarded || a.Response == nil {
			continue
		}
		dim := a.Question.Dimension
		if dim == "" || (isTarget != nil && !isTarget(dim)) {
			continue
		}
		if _, seen := counts[dim]; !seen {
			order = append(order, dim)
		}
		sums[dim] += float64(a.Response.Score)
		counts[dim]++
	}

	triggers := []string{}
	for _, dim := range order {
		if sums[dim]/float64(counts[dim]) <= cutoff {
			triggers = append(triggers, dim)
		}
	}
	return triggers
}

func (q *QuestionnaireService) handleFollowup(ctx context.Context, s *model.Session, text string) Turn {
	total := len(q.catalog.Followups)
	if s.QuestionIndex >= total {
		return q.startOrigin(ctx, s)
	}
	question := &q.catalog.Followups[s.QuestionIndex]
	key := "followup_" + question.ID
	attempt := s.Attempt(key)
	card := FormatFollowup(question, s.QuestionIndex+1, total)

	out := q.interpreter.Resolve(ctx, text, question, AttemptContext{
		Clarifications: attempt.Clarifications,
		Skipped:        s.SkippedCount,
		Required:       true,
	})

	var turn Turn
	switch out.Kind {
	case OutcomeClarify:
		attempt.Clarifications++
		turn = reply(fmt.Sprintf(msgClarifyShort, out.Message) + card)
	case OutcomeInsist, OutcomeOffTopic:
		if out.Kind == OutcomeInsist {
			attempt.Clarifications++
		}
		turn = reply(fmt.Sprintf(msgWarning, out.Message) + card)
	case OutcomeAnswer:
		if !question.HasOption(out.Response.Text) {
			turn = reply(msgInvalidOption + card)
			break
		}
		resp := out.Response
		s.Followup.Deepening = append(s.Followup.Deepening, model.AnsweredQuestion{Question: *question, Response: &resp})
		s.ResetAttempt(key)
		s.QuestionIndex++
		if s.QuestionIndex >= total {
			turn = q.startOrigin(ctx, s)
			break
		}
		next := &q.catalog.Followups[s.QuestionIndex]
		turn = reply(msgRecorded + FormatFollowup(next, s.QuestionIndex+1, total))
	default:
		if len(question.Options) > 0 {
			turn = reply(fmt.Sprintf(msgAnswerWith, quoteOptions(question.Options)))
		} else {
			turn = reply(msgAnswerWithAny)
		}
	}
	turn.LLMUsed = turn.LLMUsed || out.LLMUsed
	return turn
}

func (q *QuestionnaireService) startOrigin(ctx context.Context, s *model.Session) Turn {
	s.State = model.StateOrigin
	s.QuestionIndex = 0
	if len(s.TriggerDimensions) == 0 {
		return q.finishFollowups(ctx, s)
	}
	first := q.catalog.Origin[0]
	return reply(msgOriginIntro, FormatOrigin(&first, 1, q.originTotal(s), q.catalog.Describe(s.TriggerDimensions[0])))
}

func (q *QuestionnaireService) handleOrigin(ctx context.Context, s *model.Session, text string) Turn {
	dimIdx, sub := s.QuestionIndex/originPerDimension, s.QuestionIndex%originPerDimension
	if dimIdx >= len(s.TriggerDimensions) {
		return q.finishFollowups(ctx, s)
	}
	dim := s.TriggerDimensions[dimIdx]
	question := &q.catalog.Origin[sub]
	position, total := s.QuestionIndex+1, q.originTotal(s)

	var resp model.Response
	var llmUsed bool
	if question.Type == model.QuestionMultipleChoice {
		key := "origin_" + question.ID
		attempt := s.Attempt(key)
		out := q.interpreter.Resolve(ctx, text, question, AttemptContext{
			Clarifications: attempt.Clarifications,
			Skipped:        s.SkippedCount,
			Required:       true,
		})
		llmUsed = out.LLMUsed
		card := FormatOrigin(question, position, total, "")
		switch out.Kind {
		case OutcomeClarify:
			attempt.Clarifications++
			return Turn{Messages: []string{fmt.Sprintf(msgClarifyShort, out.Message) + card}, LLMUsed: llmUsed}
		case OutcomeInsist, OutcomeOffTopic:
			if out.Kind == OutcomeInsist {
				attempt.Clarifications++
			}
			return Turn{Messages: []string{fmt.Sprintf(msgWarning, out.Message) + card}, LLMUsed: llmUsed}
		case OutcomeAnswer:
			if !question.HasOption(out.Response.Text) {
				return Turn{Messages: []string{msgChooseOption + FormatOptions(question.Options)}, LLMUsed: llmUsed}
			}
			resp = out.Response
			s.ResetAttempt(key)
		default:
			return Turn{Messages: []string{msgChooseOption + FormatOptions(question.Options)}, LLMUsed: llmUsed}
		}
	} else {
		answer := strings.TrimSpace(text)
		if answer == "" {
			return reply(FormatOrigin(question, position, total, ""))
		}
		resp = model.Response{Text: parser.Truncate(answer, q.maxTextLength())}
	}

	if s.Followup.Origins == nil {
		s.Followup.Origins = map[string][]model.AnsweredQuestion{}
	}
	s.Followup.Origins[dim] = append(s.Followup.Origins[dim], model.AnsweredQuestion{Question: *question, Response: &resp})
	s.QuestionIndex++

	dimIdx, sub = s.QuestionIndex/originPerDimension, s.QuestionIndex%originPerDimension
	if dimIdx >= len(s.TriggerDimensions) {
		turn := q.finishFollowups(ctx, s)
		turn.LLMUsed = llmUsed
		return turn
	}
	description := ""
	if sub == 0 {
		description = q.catalog.Describe(s.TriggerDimensions[dimIdx])
	}
	next := &q.catalog.Origin[sub]
	return Turn{
		Messages: []string{msgRecorded + FormatOrigin(next, s.QuestionIndex+1, total, description)},
		LLMUsed:  llmUsed,
	}
}

func (q *QuestionnaireService) originTotal(s *model.Session) int {
	return len(s.TriggerDimensions) * originPerDimension
}

func (q *QuestionnaireService) finishFollowups(ctx context.Context, s *model.Session) Turn {
	q.archivePhase(ctx, s, model.ArchiveFollowups, s.Followup)
	return q.complete(s)
}

func (q *QuestionnaireService) complete(s *model.Session) Turn {
	s.State = model.StateComplete
	t := teardown(ReasonCompleted, msgCompletion)
	t.Completed = true
	return t
}

func (q *QuestionnaireService) maxTextLength() int {
	if q.policy.MaxTextLength > 0 {
		return q.policy.MaxTextLength
	}
	return parser.MaxTextLength
}

// archivePhase writes a write-once snapshot. Failures are logged only.
func (q *QuestionnaireService) archivePhase(ctx context.Context, s *model.Session, phase string, doc any) {
	if q.archive == nil {
		return
	}
	body, err := json.Marshal(doc)
	if err != nil {
		q.logger.Error("encode archive", zap.String("phase", phase), zap.Error(err))
		return
	}
	now := q.now().UTC()
	record := &model.ArchiveRecord{
		Key:           ArchiveKey(s.ParticipantID, now, phase),
		ParticipantID: s.ParticipantID,
		Phase:         phase,
		ContentType:   archiveContentType,
		Body:          body,
		CreatedAt:     now,
	}
	if err := q.archive.Put(ctx, record); err != nil {
		q.logger.Error("archive failed",
			logging.Participant(s.ParticipantID),
			zap.String("phase", phase),
			zap.Error(err),
		)
	}
}

// ArchiveKey builds the object key of a phase snapshot.
func ArchiveKey(participantID string, at time.Time, phase string) string {
	return fmt.Sprintf("%s/%s/%s/%s.json", archivePrefix, participantID, at.UTC().Format(archiveTimeLayout), phase)
}

// currentCard renders the question at the cursor for the current state.
func (q *QuestionnaireService) currentCard(s *model.Session) string {
	switch s.State {
	case model.StatePhase1:
		if s.QuestionIndex < len(q.catalog.Questions) {
			return FormatQuestion(q.phase1Question(s), s.QuestionIndex+1, len(q.catalog.Questions))
		}
	case model.StateFollowup:
		if s.QuestionIndex < len(q.catalog.Followups) {
			return FormatFollowup(&q.catalog.Followups[s.QuestionIndex], s.QuestionIndex+1, len(q.catalog.Followups))
		}
	case model.StateOrigin:
		dimIdx, sub := s.QuestionIndex/originPerDimension, s.QuestionIndex%originPerDimension
		if dimIdx < len(s.TriggerDimensions) {
			description := ""
			if sub == 0 {
				description = q.catalog.Describe(s.TriggerDimensions[dimIdx])
			}
			return FormatOrigin(&q.catalog.Origin[sub], s.QuestionIndex+1, q.originTotal(s), description)
		}
	}
	return ""
}

// ResumeMessage greets a participant returning from a crisis and re-presents
// the question at the restored position. A session restored without any
// questionnaire position is greeted with the welcome text; the caller moves
// it to consent once that text is delivered.
func (q *QuestionnaireService) ResumeMessage(s *model.Session) string {
	var state string
	switch s.State {
	case model.StatePhase1:
		state = msgResumePhase1
	case model.StateFollowup:
		state = msgResumeFollowup
	case model.StateOrigin:
		state = msgResumeOrigin
	case model.StateAssess:
		return msgResumeBase + msgResumeGeneric
	case model.StateConsent:
		return msgResumeBase + msgResumeConsent + "\n\n" + msgWelcome
	default:
		return msgResumeBase + msgResumeRestart + "\n\n" + msgWelcome
	}
	if card := q.currentCard(s); card != "" {
		return msgResumeBase + state + "\n\n" + card
	}
	return msgResumeBase + state
}

// CurrentQuestionType is the type of the question awaiting an answer.
func (q *QuestionnaireService) CurrentQuestionType(s *model.Session) model.QuestionType {
	switch s.State {
	case model.StatePhase1:
		if s.QuestionIndex < len(q.catalog.Questions) {
			return q.catalog.Questions[s.QuestionIndex].Type
		}
	case model.StateFollowup:
		return model.QuestionMultipleChoice
	case model.StateOrigin:
		if s.QuestionIndex%originPerDimension == 0 {
			return model.QuestionMultipleChoice
		}
	}
	return model.QuestionText
}
