// Package moderation screens outbound messages against a blacklist using
// an Aho-Corasick automaton. Matching is resilient to casing, accents,
// leet-speak substitutions and injected punctuation.
package moderation

import (
	"fmt"
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"

	"groupmeet/errors"
)

const MaskRune = '*'

type Screener struct {
	log     *slog.Logger
	matcher *goahocorasick.Machine
	words   int
}

// NewScreener builds the automaton over the normalized blacklist. The
// word list is fixed for the life of the screener.
func NewScreener(log *slog.Logger, blacklist []string) (*Screener, error) {
	patterns := make([][]rune, 0, len(blacklist))
	for _, word := range blacklist {
		normalized := normalize([]rune(word))
		if len(normalized) == 0 {
			continue
		}
		patterns = append(patterns, normalized)
	}

	matcher := new(goahocorasick.Machine)
	if len(patterns) > 0 {
		if err := matcher.Build(patterns); err != nil {
			return nil, fmt.Errorf("building blacklist automaton: %w", err)
		}
	}
	log.Debug("Moderation screener ready", "words", len(patterns))
	return &Screener{log: log, matcher: matcher, words: len(patterns)}, nil
}

// Review rejects text containing any blacklisted word. The outbound send
// path calls this before the message leaves the client.
func (s *Screener) Review(text string) error {
	if s.words == 0 {
		return nil
	}
	normalized, _ := index(text)
	if len(normalized) == 0 {
		return nil
	}
	if hits := s.matcher.MultiPatternSearch(normalized, true); len(hits) > 0 {
		s.log.Info("Outbound message blocked", "word", string(hits[0].Word))
		return fmt.Errorf("%w: %s", errors.ErrMessageRejected, string(hits[0].Word))
	}
	return nil
}

// Censor masks every blacklisted span in text, keeping spacing and
// punctuation intact. Used for displaying messages from before a word
// joined the blacklist.
func (s *Screener) Censor(text string) string {
	if s.words == 0 {
		return text
	}
	normalized, positions := index(text)
	if len(normalized) == 0 {
		return text
	}
	hits := s.matcher.MultiPatternSearch(normalized, false)
	if len(hits) == 0 {
		return text
	}

	runes := []rune(text)
	for _, hit := range hits {
		start := hit.Pos
		end := start + len(hit.Word)
		if start < 0 || end > len(positions) {
			continue
		}
		// Mask the full original span, punctuation inside included.
		for i := positions[start]; i <= positions[end-1]; i++ {
			runes[i] = MaskRune
		}
	}
	return string(runes)
}

// index produces the searchable form of text together with the original
// rune position of every kept rune.
func index(text string) ([]rune, []int) {
	runes := []rune(text)
	normalized := make([]rune, 0, len(runes))
	positions := make([]int, 0, len(runes))
	for i, r := range runes {
		plain := unleet(r)
		if skippable(plain) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(plain))
		positions = append(positions, i)
	}
	return normalized, positions
}

func normalize(runes []rune) []rune {
	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		plain := unleet(r)
		if skippable(plain) {
			continue
		}
		out = append(out, unicode.ToLower(plain))
	}
	return out
}

// unleet maps common character substitutions back to their letter.
func unleet(r rune) rune {
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

// skippable marks separator characters ignored during matching.
func skippable(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
