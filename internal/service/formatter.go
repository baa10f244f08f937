package service

import (
	"fmt"
	"strings"

	"vocalsilence/internal/model"
)

var keycaps = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣"}

const (
	hintChoice = "\n\n💡 _Responda com número, texto ou áudio_ 🎤"
	hintText   = "\n\n✍️ _Digite sua resposta livremente_\n\n💡 _Responda com texto ou áudio_ 🎤"
	likertCard = "\n\n1️⃣ 😞 Discordo totalmente\n2️⃣ 🙁 Discordo\n3️⃣ 😐 Neutro\n4️⃣ 🙂 Concordo\n5️⃣ 😄 Concordo totalmente"
)

// ProgressBar renders ten blocks and a percentage for position out of total.
func ProgressBar(position, total int) string {
	if total <= 0 {
		return ""
	}
	pct := position * 100 / total
	filled := pct / 10
	if filled > 10 {
		filled = 10
	}
	return strings.Repeat("▓", filled) + strings.Repeat("░", 10-filled) + fmt.Sprintf(" %d%%", pct)
}

// FormatQuestion renders a phase-1 question card. position is 1-based.
func FormatQuestion(q *model.Question, position, total int) string {
	var b strings.Builder
	if position > 0 && total > 0 {
		fmt.Fprintf(&b, "*Pergunta %d de %d*\n", position, total)
		switch {
		case position == 1:
			b.WriteString("🚀 *Iniciando questionário*\n")
		case position == total:
			b.WriteString("🏁 *Última pergunta!*\n")
		case position == total/2:
			b.WriteString("⭐ *Metade do caminho!*\n")
		}
		b.WriteString(ProgressBar(position, total))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "*%s*", q.Text)
	writeAnswerHint(&b, q)
	return b.String()
}

// FormatFollowup renders a deepening question card.
func FormatFollowup(q *model.Question, position, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 *Aprofundamento %d/%d*\n%s\n\n*%s*\n", position, total, ProgressBar(position, total), q.Text)
	writeOptions(&b, q.Options)
	b.WriteString(hintChoice)
	return b.String()
}

// FormatOrigin renders an origin question card. description is shown
// when a new dimension starts and may be empty.
func FormatOrigin(q *model.Question, position, total int, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 *Origem dos Riscos %d/%d*\n%s\n\n", position, total, ProgressBar(position, total))
	if description != "" {
		fmt.Fprintf(&b, "⚠️ _Riscos identificados %s_\n\n", description)
	}
	fmt.Fprintf(&b, "*%s*", q.Text)
	writeAnswerHint(&b, q)
	return b.String()
}

// FormatOptions lists options with keycaps followed by the answer hint.
func FormatOptions(options []string) string {
	var b strings.Builder
	writeOptions(&b, options)
	return strings.TrimPrefix(b.String(), "\n") + hintChoice
}

func writeAnswerHint(b *strings.Builder, q *model.Question) {
	switch q.Type {
	case model.QuestionLikert:
		b.WriteString(likertCard)
		b.WriteString(hintChoice)
	case model.QuestionMultipleChoice:
		b.WriteString("\n")
		writeOptions(b, q.Options)
		b.WriteString(hintChoice)
	default:
		b.WriteString(hintText)
	}
}

func writeOptions(b *strings.Builder, options []string) {
	for i, opt := range options {
		if i < len(keycaps) {
			fmt.Fprintf(b, "\n%s %s", keycaps[i], opt)
		} else {
			fmt.Fprintf(b, "\n%d) %s", i+1, opt)
		}
	}
}

// quoteOptions joins options as 'A' ou 'B' ou 'C'.
func quoteOptions(options []string) string {
	quoted := make([]string, len(options))
	for i, opt := range options {
		quoted[i] = "'" + opt + "'"
	}
	return strings.Join(quoted, " ou ")
}
