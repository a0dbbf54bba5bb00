// Package moderation censors configured words in user submissions before
// they are persisted. Matching is accent- and case-insensitive and
// ignores separator noise, so "b.a.d" still matches "bad".
package moderation

import (
	apperrors "chat-bridge/errors"

	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

// NewModerator builds the Aho-Corasick automaton over the normalized
// word list.
func NewModerator(censoredWords []string, censoredChar rune) (*Moderator, error) {
	if len(censoredWords) == 0 {
		return nil, apperrors.ErrEmptyWords
	}
	patterns := make([][]rune, len(censoredWords))
	for i, word := range censoredWords {
		patterns[i] = normalizeRunes([]rune(word))
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, censoredChar: censoredChar}, nil
}

// Censor replaces every matched span of the original text with the
// censor character, preserving length and spacing of the untouched rest.
func (m *Moderator) Censor(original string) string {
	origRunes := []rune(original)
	normalized, origIdx := m.normalize(origRunes)
	if len(normalized) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			origRunes[i] = m.censoredChar
		}
	}
	return string(origRunes)
}

// normalize lowercases and strips noise runes, keeping a mapping from
// normalized positions back to the original rune positions.
func (m *Moderator) normalize(origRunes []rune) ([]rune, []int) {
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))
	for i, r := range origRunes {
		if isNoise(r) {
			continue
		}
		norm = append(norm, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}

func normalizeRunes(runes []rune) []rune {
	norm := make([]rune, 0, len(runes))
	for _, r := range runes {
		if isNoise(r) {
			continue
		}
		norm = append(norm, unicode.ToLower(r))
	}
	return norm
}

func isNoise(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}
