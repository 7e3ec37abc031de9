package chat

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks censored words, matching through leet substitutions, case and
// punctuation while leaving the original spacing intact.
type Moderator struct {
	matcher *goahocorasick.Machine
	mask    rune
}

// NewModerator builds the automaton. With no words every message passes through.
func NewModerator(words []string, mask rune) (*Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		if p := normalizeRunes([]rune(w)); len(p) > 0 {
			patterns = append(patterns, p)
		}
	}
	m := &Moderator{mask: mask}
	if len(patterns) == 0 {
		return m, nil
	}
	m.matcher = new(goahocorasick.Machine)
	if err := m.matcher.Build(patterns); err != nil {
		return nil, err
	}
	return m, nil
}

// Censor returns the masked text and whether anything was masked.
func (m *Moderator) Censor(original string) (string, bool) {
	if m == nil || m.matcher == nil {
		return original, false
	}
	norm, origIdx := normalize(original)
	if len(norm) == 0 {
		return original, false
	}
	spans := m.matcher.MultiPatternSearch(norm, false)
	if len(spans) == 0 {
		return original, false
	}

	out := []rune(original)
	for _, span := range spans {
		start, end := span.Pos, span.Pos+len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			out[i] = m.mask
		}
	}
	return string(out), true
}

// normalize drops noise runes and records where each kept rune came from.
func normalize(input string) ([]rune, []int) {
	runes := []rune(input)
	norm := make([]rune, 0, len(runes))
	idx := make([]int, 0, len(runes))
	for i, r := range runes {
		c := simplifyRune(r)
		if isNoise(c) {
			continue
		}
		norm = append(norm, unicode.ToLower(c))
		idx = append(idx, i)
	}
	return norm, idx
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		c := simplifyRune(r)
		if isNoise(c) {
			continue
		}
		out = append(out, unicode.ToLower(c))
	}
	return out
}

// leet
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
