package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks banned words in feedback and discussion text.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

// NewModerator builds an Aho-Corasick automaton over the lower-cased banned words.
// An empty list yields a moderator that returns text unchanged.
func NewModerator(bannedWords []string, censoredChar rune) (*Moderator, error) {
	patterns := make([][]rune, 0, len(bannedWords))
	for _, word := range bannedWords {
		normalized := normalize([]rune(word))
		if len(normalized) == 0 {
			continue
		}
		patterns = append(patterns, normalized)
	}
	if len(patterns) == 0 {
		return &Moderator{censoredChar: censoredChar}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, censoredChar: censoredChar}, nil
}

// Censor replaces every whole-word match with the censored rune, keeping length.
func (m *Moderator) Censor(original string) string {
	if m.matcher == nil || original == "" {
		return original
	}
	runes := []rune(original)
	terms := m.matcher.MultiPatternSearch(normalize(runes), false)
	if len(terms) == 0 {
		return original
	}

	for _, term := range terms {
		start, end := term.Pos, term.Pos+len(term.Word)
		if start < 0 || end > len(runes) || !isWordBoundary(runes, start, end) {
			continue
		}
		for i := start; i < end; i++ {
			runes[i] = m.censoredChar
		}
	}
	return string(runes)
}

// normalize lower-cases rune by rune so positions map 1:1 onto the original.
func normalize(input []rune) []rune {
	out := make([]rune, len(input))
	for i, r := range input {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func isWordBoundary(runes []rune, start, end int) bool {
	if start > 0 && isWordRune(runes[start-1]) {
		return false
	}
	if end < len(runes) && isWordRune(runes[end]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
