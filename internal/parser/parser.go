// Package parser interprets replies locally, without any external call.
package parser

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"vocalsilence/internal/model"
)

// MaxTextLength is the longest free-text answer kept.
const MaxTextLength = 500

var keycapIndex = map[string]int{
	"1️⃣": 0, "2️⃣": 1, "3️⃣": 2, "4️⃣": 3, "5️⃣": 4,
	"6️⃣": 5, "7️⃣": 6, "8️⃣": 7, "9️⃣": 8,
}

var likertLiterals = map[string]int{
	"😞": 1, "🙁": 2, "😐": 3, "🙂": 4, "😄": 5,
	"1": 1, "2": 2, "3": 3, "4": 4, "5": 5,
	"1️⃣": 1, "2️⃣": 2, "3️⃣": 3, "4️⃣": 4, "5️⃣": 5,
}

type band struct {
	value    int
	keywords []string
}

// Intensified phrases are checked before plain words so that
// "concordo totalmente" is never read as "concordo".
var likertTiers = [][]band{
	{
		{1, []string{"discordo totalmente", "discordo muito", "pessimo", "horrivel"}},
		{3, []string{"mais ou menos"}},
		{5, []string{"concordo totalmente", "concordo muito", "otimo", "excelente"}},
	},
	{
		{2, []string{"discordo", "ruim", "mal"}},
		{3, []string{"neutro", "medio", "talvez"}},
		{4, []string{"concordo", "bom", "bem"}},
	},
}

// Normalize lowercases, strips diacritics and trims surrounding space.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.TrimSpace(out)
}

// Parse runs the fast path for q's type.
func Parse(text string, q *model.Question) (model.Response, bool) {
	switch q.Type {
	case model.QuestionMultipleChoice:
		opt, ok := ParseMultipleChoice(text, q.Options)
		return model.Response{Text: opt}, ok
	case model.QuestionLikert:
		v, ok := ParseLikert(text)
		return model.Response{Score: v}, ok
	default:
		s, ok := ParseText(text)
		return model.Response{Text: s}, ok
	}
}

// ParseMultipleChoice accepts a keycap emoji, a 1-based ordinal, an exact
// normalized option, or a containment match in either direction.
func ParseMultipleChoice(text string, options []string) (string, bool) {
	msg := strings.TrimSpace(text)
	if msg == "" || len(options) == 0 {
		return "", false
	}

	if idx, ok := keycapIndex[msg]; ok && idx < len(options) {
		return options[idx], true
	}

	if isDigits(msg) {
		if n, err := strconv.Atoi(msg); err == nil && n >= 1 && n <= len(options) {
			return options[n-1], true
		}
	}

	normalized := Normalize(msg)
	if normalized == "" {
		return "", false
	}
	for _, opt := range options {
		if Normalize(opt) == normalized {
			return opt, true
		}
	}
	for _, opt := range options {
		n := Normalize(opt)
		if strings.Contains(normalized, n) || strings.Contains(n, normalized) {
			return opt, true
		}
	}
	return "", false
}

// ParseLikert accepts a literal 1-5 (digit, keycap or face emoji) or a keyword.
func ParseLikert(text string) (int, bool) {
	msg := strings.TrimSpace(text)
	if v, ok := likertLiterals[msg]; ok {
		return v, true
	}

	normalized := Normalize(msg)
	if normalized == "" {
		return 0, false
	}
	for _, tier := range likertTiers {
		for _, b := range tier {
			for _, kw := range b.keywords {
				if ContainsWord(normalized, kw) {
					return b.value, true
				}
			}
		}
	}
	return 0, false
}

// ParseText accepts any non-empty reply, truncated to MaxTextLength runes.
func ParseText(text string) (string, bool) {
	msg := strings.TrimSpace(text)
	if msg == "" {
		return "", false
	}
	return Truncate(msg, MaxTextLength), true
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// ContainsWord reports whether phrase occurs in normalized text on word
// boundaries. Both arguments are expected to be normalized already.
func ContainsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	from := 0
	for {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(phrase)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		from = start + 1
	}
}

// ContainsAnyWord reports whether any keyword occurs in text as a word.
// text is normalized here; keywords are normalized too.
func ContainsAnyWord(text string, keywords []string) bool {
	normalized := Normalize(text)
	for _, kw := range keywords {
		if ContainsWord(normalized, Normalize(kw)) {
			return true
		}
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
