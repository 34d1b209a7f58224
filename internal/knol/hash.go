// Package knol derives stable content identities for deck cards, so that
// reformatting a deck file never resets a card's review schedule.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/studyforge/studyforge/internal/domain"
)

// Normalize flattens a card's content into a canonical string: each part is
// lowercased, trimmed and newline-normalized, then the parts are joined with
// newlines. Quiz options follow the question/answer/context triple, with the
// correct option prefixed by "*" so that changing which option is correct
// changes the identity.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	// Joining with newlines keeps the fields separated; "question" and
	// "answer" must never collapse into "questionanswer".
	parts := []string{
		normalizePart(card.Question),
		normalizePart(card.Answer),
		normalizePart(card.Context),
	}
	for _, option := range card.Options {
		o := normalizePart(option)
		if o == normalizePart(card.CorrectOption) {
			o = "*" + o
		}
		parts = append(parts, o)
	}
	return strings.Join(parts, "\n")
}

// Hash takes a card, normalizes it, and returns its SHA-256 hash as a hex string.
func Hash(card domain.Card) string {
	normalized := Normalize(card)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
