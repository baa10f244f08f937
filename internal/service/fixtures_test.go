package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vocalsilence/internal/config"
	"vocalsilence/internal/llm"
	"vocalsilence/internal/model"
	"vocalsilence/internal/questionnaire"
	"vocalsilence/internal/repository"
)

const testCatalogYAML = `
questionnaire:
  - id: "1"
    question: Tenho dormido bem.
    type: likert
    dimension: Sono
  - id: "2"
    question: Acordo descansado.
    type: likert
    dimension: Sono
  - id: "3"
    question: Qual o seu turno?
    type: multiple choice
    options: [Diurno, Noturno]
  - id: "4"
    question: Em qual unidade você trabalha?
    type: text
followups:
  - id: A1
    question: Já teve afastamento?
    type: multiple choice
    options: [Sim, Não]
origin:
  - id: O1
    question: De onde vem essa situação?
    type: multiple choice
    options: [Do trabalho, Da vida pessoal]
  - id: O2
    question: A empresa poderia fazer algo?
    type: text
dimensions:
  - name: Sono
    description: na qualidade do sono
`

func testCatalog(t *testing.T) *questionnaire.Catalog {
	t.Helper()
	c, err := questionnaire.Parse([]byte(testCatalogYAML))
	require.NoError(t, err)
	return c
}

func testPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		SkipCap:                  1,
		RequiredAttempts:         2,
		OptionalAttempts:         2,
		ClarificationLimit:       2,
		ClarifyConfidence:        0.6,
		OffTopicConfidence:       0.7,
		InterpretationConfidence: 0.7,
		RiskCutoff:               3,
		RequiredQuestionIDs:      []string{"3"},
		MaxTextLength:            500,
	}
}

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// memSessions stores deep copies so tests only see committed state.
type memSessions struct {
	mu    sync.Mutex
	m     map[string][]byte
	saves int
}

func newMemSessions() *memSessions {
	return &memSessions{m: map[string][]byte{}}
}

func (r *memSessions) Get(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *memSessions) Save(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	r.m[s.ParticipantID] = data
	r.saves++
	return nil
}

func (r *memSessions) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
	return nil
}

func (r *memSessions) ListByState(ctx context.Context, state model.State, _ int64) ([]*model.Session, error) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.m))
	for id := range r.m {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var out []*model.Session
	for _, id := range ids {
		s, _ := r.Get(ctx, id)
		if s != nil && s.State == state {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSessions) put(t *testing.T, s *model.Session) {
	t.Helper()
	require.NoError(t, r.Save(context.Background(), s))
}

type memCrises struct {
	mu       sync.Mutex
	episodes []*model.CrisisEpisode
}

func (r *memCrises) Append(_ context.Context, ep *model.CrisisEpisode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.episodes = append(r.episodes, ep)
	return nil
}

func (r *memCrises) ListByParticipant(_ context.Context, id string) ([]*model.CrisisEpisode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CrisisEpisode
	for _, ep := range r.episodes {
		if ep.ParticipantID == id {
			out = append(out, ep)
		}
	}
	return out, nil
}

type memInteractions struct {
	mu      sync.Mutex
	entries []*model.InteractionLog
}

func (r *memInteractions) Append(_ context.Context, e *model.InteractionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memInteractions) ListByParticipant(_ context.Context, id string, limit int64) ([]*model.InteractionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.InteractionLog
	for _, e := range r.entries {
		if e.ParticipantID == id {
			out = append(out, e)
		}
	}
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

type memArchive struct {
	mu      sync.Mutex
	records map[string]*model.ArchiveRecord
}

func (r *memArchive) Put(_ context.Context, rec *model.ArchiveRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records == nil {
		r.records = map[string]*model.ArchiveRecord{}
	}
	if _, ok := r.records[rec.Key]; ok {
		return repository.ErrArchiveExists
	}
	r.records[rec.Key] = rec
	return nil
}

func (r *memArchive) Get(_ context.Context, key string) (*model.ArchiveRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[key], nil
}

func (r *memArchive) phases() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rec := range r.records {
		out = append(out, rec.Phase)
	}
	return out
}

// stubClassifier answers with the configured funcs; a nil func behaves like
// an unconfigured provider.
type stubClassifier struct {
	mu          sync.Mutex
	calls       map[string]int
	screen      func(msg string) (*model.ScreeningResult, error)
	assess      func(msg string) (*model.RiskAssessment, error)
	intent      func(msg string, q *model.Question) (*model.IntentAnalysis, error)
	interpret   func(msg string, q *model.Question) (*model.Interpretation, error)
	crisisReply func(ep *model.CrisisEpisode) (*model.CrisisReply, error)
}

func (c *stubClassifier) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[name]++
}

func (c *stubClassifier) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *stubClassifier) Screen(_ context.Context, msg string) (*model.ScreeningResult, error) {
	c.record("screen")
	if c.screen == nil {
		return nil, ErrClassifierDisabled
	}
	return c.screen(msg)
}

func (c *stubClassifier) AssessRisk(_ context.Context, msg string, _ *model.ScreeningResult) (*model.RiskAssessment, error) {
	c.record("assess")
	if c.assess == nil {
		return nil, ErrClassifierDisabled
	}
	return c.assess(msg)
}

func (c *stubClassifier) AnalyzeIntent(_ context.Context, msg string, q *model.Question, _ AttemptContext) (*model.IntentAnalysis, error) {
	c.record("intent")
	if c.intent == nil {
		return nil, ErrClassifierDisabled
	}
	return c.intent(msg, q)
}

func (c *stubClassifier) Interpret(_ context.Context, msg string, q *model.Question) (*model.Interpretation, error) {
	c.record("interpret")
	if c.interpret == nil {
		return nil, ErrClassifierDisabled
	}
	return c.interpret(msg, q)
}

func (c *stubClassifier) CrisisTurn(_ context.Context, ep *model.CrisisEpisode) (*model.CrisisReply, error) {
	c.record("crisis")
	if c.crisisReply == nil {
		return nil, ErrClassifierDisabled
	}
	return c.crisisReply(ep)
}

// scriptedCompleter returns canned replies in order and records requests.
type scriptedCompleter struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []llm.Request
}

func (c *scriptedCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return "", c.err
	}
	if len(c.replies) == 0 {
		return "", llm.ErrEmptyResponse
	}
	out := c.replies[0]
	c.replies = c.replies[1:]
	return out, nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBroadcaster) Broadcast(event string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

type harness struct {
	sessions     *memSessions
	crises       *memCrises
	interactions *memInteractions
	archive      *memArchive
	classifier   *stubClassifier
	broadcaster  *recordingBroadcaster
	q            *QuestionnaireService
	crisis       *CrisisService
	engine       *ConversationService
}

func newHarness(t *testing.T, catalog *questionnaire.Catalog) *harness {
	t.Helper()
	logger := zap.NewNop()
	policy := testPolicy()
	h := &harness{
		sessions:     newMemSessions(),
		crises:       &memCrises{},
		interactions: &memInteractions{},
		archive:      &memArchive{},
		classifier:   &stubClassifier{},
		broadcaster:  &recordingBroadcaster{},
	}
	safetyCfg := config.SafetyConfig{ScreeningThreshold: 0.4, EmergencyConfidence: 0.6}

	h.q = NewQuestionnaireService(catalog, NewInterpreter(h.classifier, policy, logger), h.archive, policy, logger)
	h.q.now = func() time.Time { return fixedNow }
	h.crisis = NewCrisisService(h.classifier, logger)
	h.engine = NewConversationService(
		h.sessions, h.crises, h.interactions,
		NewSafetyService(h.classifier, safetyCfg, logger),
		h.crisis, h.q, nil, h.broadcaster, logger,
	)
	h.engine.now = func() time.Time { return fixedNow }
	return h
}

func (h *harness) send(t *testing.T, participant, body string) []string {
	t.Helper()
	return h.engine.HandleMessage(context.Background(), model.InboundMessage{ParticipantID: participant, Body: body})
}

func (h *harness) session(t *testing.T, participant string) *model.Session {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), participant)
	require.NoError(t, err)
	return s
}

func skipIntent(string, *model.Question) (*model.IntentAnalysis, error) {
	return &model.IntentAnalysis{Intent: model.IntentSkip, Confidence: 0.9, WantsToSkip: true}, nil
}
