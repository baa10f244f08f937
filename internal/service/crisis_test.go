package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalsilence/internal/model"
	"vocalsilence/internal/questionnaire"
)

func defaultCatalog(t *testing.T) *questionnaire.Catalog {
	t.Helper()
	c, err := questionnaire.Default()
	require.NoError(t, err)
	return c
}

func TestStripResumeSentinel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		resumed bool
	}{
		{"Que bom! [RETOMAR_QUESTIONARIO]", "Que bom!", true},
		{"[retomar questionário] Vamos lá.", "Vamos lá.", true},
		{"Ok [ RETOMAR_QUESTIONÁRIO ]", "Ok", true},
		{"[RETOMAR_QUESTIONARIO]", "", true},
		{"Como você está agora?", "Como você está agora?", false},
		{"RETOMAR_QUESTIONARIO sem colchetes", "RETOMAR_QUESTIONARIO sem colchetes", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, resumed := StripResumeSentinel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.resumed, resumed)
		})
	}
}

func openEpisode(t *testing.T, h *harness, s *model.Session) *model.CrisisEpisode {
	t.Helper()
	return h.crisis.Open(s, &model.RiskAssessment{
		IsEmergency:        true,
		Type:               model.RiskSuicide,
		Severity:           "high",
		Confidence:         0.9,
		InitialSafetyScore: 3,
	}, fixedNow)
}

func TestConverseSentinelOnlyUsesDefaultReply(t *testing.T) {
	h := newHarness(t, testCatalog(t))
	h.classifier.crisisReply = func(*model.CrisisEpisode) (*model.CrisisReply, error) {
		return &model.CrisisReply{Reply: " [RETOMAR_QUESTIONARIO] "}, nil
	}
	s := phase1At(t, h, 1)
	openEpisode(t, h, s)

	out := h.crisis.Converse(context.Background(), s, "estou melhor, podemos continuar", fixedNow)
	assert.Equal(t, msgCrisisResumed, out.Reply)
	assert.True(t, out.Resumed)
	require.NotNil(t, out.Closed)
	assert.Equal(t, model.ResolutionResumed, out.Closed.ResolutionReason)
	assert.False(t, out.Closed.Active)
	assert.Equal(t, crisisResumeScore, out.Closed.SafetyScore)

	assert.Equal(t, model.StatePhase1, s.State)
	assert.Equal(t, 1, s.QuestionIndex)
	assert.Nil(t, s.Crisis)
	assert.Nil(t, s.PreCrisis)
	assert.NoError(t, s.Validate())
}

func TestConverseResumeFlagWithoutSentinel(t *testing.T) {
	h := newHarness(t, testCatalog(t))
	h.classifier.crisisReply = func(*model.CrisisEpisode) (*model.CrisisReply, error) {
		return &model.CrisisReply{Reply: "Fico feliz em saber.", Resume: true}, nil
	}
	s := phase1At(t, h, 0)
	openEpisode(t, h, s)

	out := h.crisis.Converse(context.Background(), s, "já passou", fixedNow)
	assert.Equal(t, "Fico feliz em saber.", out.Reply)
	assert.True(t, out.Resumed)
	assert.Equal(t, false, out.Metadata["resume_signal_detected"])
}

func TestConverseRemindersAndScore(t *testing.T) {
	h := newHarness(t, testCatalog(t))
	h.classifier.crisisReply = func(*model.CrisisEpisode) (*model.CrisisReply, error) {
		return &model.CrisisReply{Reply: "Estou aqui."}, nil
	}
	s := phase1At(t, h, 0)
	ep := openEpisode(t, h, s)
	ctx := context.Background()

	var out CrisisOutcome
	for i := 1; i <= 4; i++ {
		out = h.crisis.Converse(ctx, s, "ainda mal", fixedNow)
		assert.Equal(t, i%4 == 0, strings.HasSuffix(out.Reply, msgCrisisReminder), "turn %d", i)
	}
	assert.Equal(t, 5.0, ep.SafetyScore)
	assert.Len(t, ep.History, 8)
	assert.Equal(t, model.StateEmergency, s.State)

	for i := 5; i <= 10; i++ {
		out = h.crisis.Converse(ctx, s, "ainda mal", fixedNow)
	}
	assert.Equal(t, crisisScoreCeiling, ep.SafetyScore)
	assert.Contains(t, out.Reply, fmt.Sprintf(msgCrisisLongNote, 10))
}

func TestConverseClassifierFailure(t *testing.T) {
	h := newHarness(t, testCatalog(t))
	s := phase1At(t, h, 0)
	ep := openEpisode(t, h, s)

	out := h.crisis.Converse(context.Background(), s, "socorro", fixedNow)
	assert.Equal(t, msgCrisisFallback, out.Reply)
	assert.False(t, out.Resumed)
	assert.Equal(t, 1, ep.InteractionCount)
	assert.Equal(t, model.StateEmergency, s.State)

	require.Len(t, ep.History, 2)
	assert.Equal(t, crisisTurnRoleUser, ep.History[0].Role)
	assert.Equal(t, crisisTurnRoleSupport, ep.History[1].Role)
	assert.Equal(t, msgCrisisFallback, ep.History[1].Text)
}

func TestResumeFromWelcomeAwaitsConsent(t *testing.T) {
	h := newHarness(t, testCatalog(t))
	s := model.NewSession(participant, fixedNow)
	openEpisode(t, h, s)
	require.Nil(t, s.PreCrisis)
	h.sessions.put(t, s)

	h.classifier.crisisReply = func(*model.CrisisEpisode) (*model.CrisisReply, error) {
		return &model.CrisisReply{Reply: "Fico feliz.", Resume: true}, nil
	}
	out := h.send(t, participant, "estou bem")
	require.Len(t, out, 1)
	assert.True(t, strings.HasSuffix(out[0], msgWelcome))
	assert.Equal(t, model.StateConsent, h.session(t, participant).State)
}

func TestOpenDefaultsInvalidScoreAndType(t *testing.T) {
	h := newHarness(t, testCatalog(t))
	s := model.NewSession(participant, fixedNow)

	ep := h.crisis.Open(s, &model.RiskAssessment{IsEmergency: true, InitialSafetyScore: 42}, fixedNow)
	assert.Equal(t, crisisDefaultScore, ep.SafetyScore)
	assert.Equal(t, model.CrisisTypeUnknown, ep.Type)
	assert.Nil(t, s.PreCrisis, "no position to restore from WELCOME")
	assert.NoError(t, s.Validate())
}

func riskyScreen(confidence float64, riskType string) func(string) (*model.ScreeningResult, error) {
	return func(string) (*model.ScreeningResult, error) {
		return &model.ScreeningResult{HasRisk: true, Type: riskType, Confidence: confidence, Model: "screen"}, nil
	}
}

func TestCrisisOpensAndResumesAtSnapshot(t *testing.T) {
	h := newHarness(t, defaultCatalog(t))
	h.sessions.put(t, phase1At(t, h, 7))

	h.classifier.screen = riskyScreen(0.55, model.RiskSuicide)
	h.classifier.assess = func(string) (*model.RiskAssessment, error) {
		return &model.RiskAssessment{IsEmergency: true, Type: model.RiskSuicide, Severity: "high", Confidence: 0.8, InitialSafetyScore: 2}, nil
	}
	h.classifier.crisisReply = func(*model.CrisisEpisode) (*model.CrisisReply, error) {
		return &model.CrisisReply{Reply: "Estou aqui com você. Você está em segurança agora?"}, nil
	}

	out := h.send(t, participant, "não aguento mais nada")
	assert.Equal(t, []string{"Estou aqui com você. Você está em segurança agora?"}, out)

	s := h.session(t, participant)
	require.NotNil(t, s)
	assert.Equal(t, model.StateEmergency, s.State)
	assert.Equal(t, &model.Snapshot{State: model.StatePhase1, QuestionIndex: 7}, s.PreCrisis)
	require.NotNil(t, s.Crisis)
	assert.Equal(t, model.RiskSuicide, s.Crisis.Type)
	assert.True(t, s.Crisis.Active)
	assert.Equal(t, 1, s.Crisis.InteractionCount)
	assert.Equal(t, 2.5, s.Crisis.SafetyScore)
	assert.Equal(t, []string{EventCrisisOpened}, h.broadcaster.all())

	entry := h.interactions.entries[0]
	assert.True(t, entry.SafetyTriggered)
	assert.True(t, entry.DetailedCheck)
	assert.Equal(t, model.StatePhase1, entry.StateBefore)
	assert.Equal(t, model.StateEmergency, entry.StateAfter)

	h.classifier.crisisReply = func(*model.CrisisEpisode) (*model.CrisisReply, error) {
		return &model.CrisisReply{Reply: "Que bom que está melhor. [RETOMAR_QUESTIONARIO]"}, nil
	}
	out = h.send(t, participant, "estou melhor, obrigado")
	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0], "Que bom que está melhor.\n\n"+msgResumeBase+msgResumePhase1))
	assert.Contains(t, out[0], "Tenho dormido bem na maior parte das noites.")
	assert.Equal(t, 1, h.classifier.count("screen"), "no screening while a crisis is open")

	s = h.session(t, participant)
	assert.Equal(t, model.StatePhase1, s.State)
	assert.Equal(t, 7, s.QuestionIndex)
	assert.Nil(t, s.Crisis)
	assert.Nil(t, s.PreCrisis)

	require.Len(t, h.crises.episodes, 1)
	assert.Equal(t, model.ResolutionResumed, h.crises.episodes[0].ResolutionReason)
	assert.Len(t, h.crises.episodes[0].History, 4)
	assert.Equal(t, []string{EventCrisisOpened, EventCrisisClosed}, h.broadcaster.all())
}

func TestLowScreeningSkipsDetailedPass(t *testing.T) {
	h := newHarness(t, testCatalog(t))
	h.classifier.screen = riskyScreen(0.3, model.RiskSuicide)

	out := h.send(t, participant, "oi")
	assert.Equal(t, []string{msgWelcome}, out)
	assert.Zero(t, h.classifier.count("assess"))
	assert.False(t, h.interactions.entries[0].DetailedCheck)
}

func TestDetailedBelowThresholdDoesNotOpenCrisis(t *testing.T) {
	h := newHarness(t, testCatalog(t))
	h.classifier.screen = riskyScreen(0.9, model.RiskHelpRequest)
	h.classifier.assess = func(string) (*model.RiskAssessment, error) {
		return &model.RiskAssessment{IsEmergency: true, Type: model.RiskHelpRequest, Confidence: 0.6}, nil
	}

	out := h.send(t, participant, "oi")
	assert.Equal(t, []string{msgWelcome}, out)
	assert.Equal(t, 1, h.classifier.count("assess"))
	assert.Equal(t, model.StateConsent, h.session(t, participant).State)
}

func TestDetailedFailureAssumesEmergency(t *testing.T) {
	h := newHarness(t, testCatalog(t))
	h.classifier.screen = riskyScreen(0.9, model.RiskViolence)
	h.classifier.assess = func(string) (*model.RiskAssessment, error) {
		return nil, errors.New("upstream timeout")
	}

	out := h.send(t, participant, "vou fazer uma besteira")
	assert.Equal(t, []string{msgCrisisFallback}, out)

	s := h.session(t, participant)
	assert.Equal(t, model.StateEmergency, s.State)
	assert.Equal(t, model.RiskViolence, s.Crisis.Type)
	assert.Nil(t, s.PreCrisis)
}

func TestRestartDuringCrisis(t *testing.T) {
	h := newHarness(t, testCatalog(t))
	s := phase1At(t, h, 2)
	openEpisode(t, h, s)
	h.sessions.put(t, s)

	out := h.send(t, participant, "quero reiniciar")
	assert.Equal(t, []string{msgRestarted}, out)
	assert.Nil(t, h.session(t, participant))

	require.Len(t, h.crises.episodes, 1)
	assert.Equal(t, model.ResolutionUserReset, h.crises.episodes[0].ResolutionReason)

	require.Len(t, h.interactions.entries, 2)
	assert.Equal(t, true, h.interactions.entries[0].Metadata["crisis_interrupted"])
	assert.Equal(t, model.StateReset, h.interactions.entries[1].StateAfter)
	assert.Zero(t, h.classifier.count("crisis"))
}

func TestRepairEmergencyWithoutEpisode(t *testing.T) {
	h := newHarness(t, testCatalog(t))
	broken := model.NewSession(participant, fixedNow)
	broken.State = model.StateEmergency
	h.sessions.put(t, broken)

	h.classifier.crisisReply = func(ep *model.CrisisEpisode) (*model.CrisisReply, error) {
		assert.Equal(t, model.CrisisTypeUnknown, ep.Type)
		return &model.CrisisReply{Reply: "Estou aqui."}, nil
	}
	out := h.send(t, participant, "oi")
	assert.Equal(t, []string{"Estou aqui."}, out)

	s := h.session(t, participant)
	require.NotNil(t, s.Crisis)
	assert.NoError(t, s.Validate())
}
