package correct

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const defaultMinScore = 0.82

// PhoneticCorrector replaces words that phonetically match an entry in the
// user's vocabulary. Matching is two-stage: Double Metaphone codes gate the
// candidates, Jaro-Winkler similarity on the original strings ranks them. A
// word is only replaced when the best candidate shares a phonetic code AND
// scores at least the configured minimum — plain string similarity alone is
// not enough to overwrite what the model heard.
//
// The corrector is read-only after construction and safe for concurrent use.
type PhoneticCorrector struct {
	vocabulary []string
	codes      []map[string]struct{}
	minScore   float64
}

// PhoneticOption is a functional option for configuring a PhoneticCorrector.
type PhoneticOption func(*PhoneticCorrector)

// WithMinScore sets the minimum Jaro-Winkler score for a replacement.
// Default: 0.82.
func WithMinScore(score float64) PhoneticOption {
	return func(c *PhoneticCorrector) { c.minScore = score }
}

// NewPhonetic builds a corrector over the given vocabulary. Empty entries
// are skipped. An empty vocabulary yields a corrector that never rewrites.
func NewPhonetic(vocabulary []string, opts ...PhoneticOption) *PhoneticCorrector {
	c := &PhoneticCorrector{minScore: defaultMinScore}
	for _, o := range opts {
		o(c)
	}
	for _, entry := range vocabulary {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		c.vocabulary = append(c.vocabulary, entry)
		c.codes = append(c.codes, metaphoneCodes(entry))
	}
	return c
}

// Correct rewrites text word by word. Words that already appear in the
// vocabulary (case-insensitive) are left alone; punctuation attached to a
// word survives the replacement.
func (c *PhoneticCorrector) Correct(text string) string {
	if len(c.vocabulary) == 0 || text == "" {
		return text
	}

	fields := strings.Fields(text)
	changed := false
	for i, field := range fields {
		core, prefix, suffix := splitPunct(field)
		if core == "" {
			continue
		}
		if replacement, ok := c.match(core); ok {
			fields[i] = prefix + replacement + suffix
			changed = true
		}
	}
	if !changed {
		return text
	}
	return strings.Join(fields, " ")
}

// match finds the best vocabulary replacement for word, if any.
func (c *PhoneticCorrector) match(word string) (string, bool) {
	lower := strings.ToLower(word)
	wordCodes := metaphoneCodes(lower)

	var (
		best      string
		bestScore float64
	)
	for i, entry := range c.vocabulary {
		if strings.EqualFold(entry, word) {
			// Already correct; nothing to do.
			return "", false
		}
		if !codesOverlap(wordCodes, c.codes[i]) {
			continue
		}
		score := matchr.JaroWinkler(lower, strings.ToLower(entry), false)
		if score >= c.minScore && score > bestScore {
			best = entry
			bestScore = score
		}
	}
	return best, best != ""
}

// metaphoneCodes returns the Double Metaphone code set of every token in s.
func metaphoneCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		p, secondary := matchr.DoubleMetaphone(tok)
		if p != "" {
			codes[p] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// splitPunct separates leading and trailing punctuation from a word so that
// "Eldrinacks," corrects to "Eldrinax," rather than missing the match.
func splitPunct(field string) (core, prefix, suffix string) {
	start := 0
	for start < len(field) && !isWordRune(rune(field[start])) {
		start++
	}
	end := len(field)
	for end > start && !isWordRune(rune(field[end-1])) {
		end--
	}
	return field[start:end], field[:start], field[end:]
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-'
}

// Compile-time assertion that PhoneticCorrector satisfies Corrector.
var _ Corrector = (*PhoneticCorrector)(nil)
