package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"vocalsilence/internal/model"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "▓▓▓▓▓░░░░░ 50%", ProgressBar(5, 10))
	assert.Equal(t, "▓▓▓▓▓▓▓▓▓▓ 100%", ProgressBar(3, 3))
	assert.Equal(t, "░░░░░░░░░░ 3%", ProgressBar(1, 31))
	assert.Empty(t, ProgressBar(1, 0))
}

func TestFormatQuestionMarkers(t *testing.T) {
	q := &model.Question{Text: "Durmo bem.", Type: model.QuestionLikert}

	first := FormatQuestion(q, 1, 10)
	assert.Contains(t, first, "*Pergunta 1 de 10*")
	assert.Contains(t, first, "🚀")
	assert.Contains(t, first, "5️⃣ 😄 Concordo totalmente")

	assert.Contains(t, FormatQuestion(q, 5, 10), "⭐")
	assert.Contains(t, FormatQuestion(q, 10, 10), "🏁")

	middle := FormatQuestion(q, 3, 10)
	for _, marker := range []string{"🚀", "⭐", "🏁"} {
		assert.NotContains(t, middle, marker)
	}
}

func TestFormatQuestionTypes(t *testing.T) {
	choice := FormatQuestion(&model.Question{Text: "Turno?", Type: model.QuestionMultipleChoice, Options: []string{"Diurno", "Noturno"}}, 2, 4)
	assert.Contains(t, choice, "1️⃣ Diurno\n2️⃣ Noturno")
	assert.True(t, strings.HasSuffix(choice, hintChoice))

	text := FormatQuestion(&model.Question{Text: "Unidade?", Type: model.QuestionText}, 0, 0)
	assert.True(t, strings.HasPrefix(text, "*Unidade?*"))
	assert.True(t, strings.HasSuffix(text, hintText))
}

func TestFormatOptionsBeyondKeycaps(t *testing.T) {
	opts := make([]string, 11)
	for i := range opts {
		opts[i] = fmt.Sprintf("opção %d", i+1)
	}
	out := FormatOptions(opts)
	assert.True(t, strings.HasPrefix(out, "1️⃣ opção 1"))
	assert.Contains(t, out, "9️⃣ opção 9\n10) opção 10\n11) opção 11")
}

func TestFormatOrigin(t *testing.T) {
	q := &model.Question{Text: "De onde vem?", Type: model.QuestionMultipleChoice, Options: []string{"Trabalho"}}
	assert.Contains(t, FormatOrigin(q, 1, 4, "no sono"), "⚠️ _Riscos identificados no sono_")
	assert.NotContains(t, FormatOrigin(q, 2, 4, ""), "Riscos identificados")
	assert.Contains(t, FormatFollowup(q, 2, 6), "🔍 *Aprofundamento 2/6*")
}

func TestQuoteOptions(t *testing.T) {
	assert.Equal(t, "'Sim' ou 'Não' ou 'Prefiro não responder'", quoteOptions([]string{"Sim", "Não", "Prefiro não responder"}))
}
