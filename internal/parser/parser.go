// Package parser extracts flashcards from markdown deck files.
//
// A deck file is a sequence of cards separated by "---" lines. Each card has
// labeled sections:
//
//	Q: question text (required; may continue on following lines)
//	A: free-form answer
//	C: optional context
//	O: quiz option; the correct one is marked with a leading "*"
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/studyforge/studyforge/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	optionPrefix   = "O:"
	separator      = "---"
	correctMarker  = "*"
)

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. Blocks without a
// question are skipped; a malformed block never aborts the whole file.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)

	var cards []domain.Card
	var block []string

	flush := func() {
		if card, ok := parseBlock(block); ok {
			cards = append(cards, card)
		}
		block = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == separator {
			flush()
			continue
		}
		// A new Q: line starts a new card even without a separator.
		if strings.HasPrefix(line, questionPrefix) && blockHasQuestion(block) {
			flush()
		}
		block = append(block, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func blockHasQuestion(block []string) bool {
	for _, line := range block {
		if strings.HasPrefix(line, questionPrefix) {
			return true
		}
	}
	return false
}

// parseBlock assembles one card from the lines of a block. Lines without a
// label continue the section opened by the most recent label.
func parseBlock(block []string) (domain.Card, bool) {
	var card domain.Card
	var section *string

	appendTo := func(dst *string, text string) {
		if *dst == "" {
			*dst = text
		} else {
			*dst += "\n" + text
		}
	}

	for _, line := range block {
		switch {
		case strings.HasPrefix(line, questionPrefix):
			section = &card.Question
			appendTo(section, labelContent(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			section = &card.Answer
			appendTo(section, labelContent(line, answerPrefix))
		case strings.HasPrefix(line, contextPrefix):
			section = &card.Context
			appendTo(section, labelContent(line, contextPrefix))
		case strings.HasPrefix(line, optionPrefix):
			option := labelContent(line, optionPrefix)
			if rest, ok := strings.CutPrefix(option, correctMarker); ok {
				option = strings.TrimSpace(rest)
				card.CorrectOption = option
			}
			card.Options = append(card.Options, option)
			section = nil
		case section != nil:
			appendTo(section, line)
		}
	}

	return card, card.Question != ""
}

// labelContent strips the label and a single following space, preserving
// any further indentation.
func labelContent(line, prefix string) string {
	content := line[len(prefix):]
	return strings.TrimPrefix(content, " ")
}
