// Package parser extracts question, answer and context cards from markdown notes.
//
// A card starts at a line beginning with "Q:". Lines beginning with "A:" and "C:" open
// the answer and context. Lines without a prefix continue the field above them, and a
// line holding only "---" closes the current card.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const separator = "---"

type field int

const (
	none field = iota
	question
	answer
	context
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", question},
	{"A:", answer},
	{"C:", context},
}

// maxLine bounds a single line; long answers are usually pasted code.
const maxLine = 1 << 20

// ParseFile reads the cards of one markdown file.
func ParseFile(path string) ([]domain.Card, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cards, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cards, nil
}

// Parse reads cards from r. Only Question, Answer and Context are set on the result.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	var b builder
	for scanner.Scan() {
		b.feed(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}
	b.closeCard()
	return b.cards, nil
}

type builder struct {
	cards   []domain.Card
	current domain.Card
	field   field
	block   []string
}

func (b *builder) feed(line string) {
	if strings.TrimSpace(line) == separator {
		b.closeCard()
		return
	}
	if f, rest, ok := splitPrefix(line); ok {
		b.closeField()
		// A new question always starts a new card.
		if f == question && b.field != none {
			b.closeCard()
		}
		b.field = f
		b.block = append(b.block, rest)
		return
	}
	if b.field != none {
		b.block = append(b.block, line)
	}
}

// closeField stores the collected block in the current field. Trailing blank lines are dropped.
func (b *builder) closeField() {
	if len(b.block) == 0 {
		return
	}
	content := strings.TrimRight(strings.Join(b.block, "\n"), " \t\n")
	b.block = nil
	switch b.field {
	case question:
		b.current.Question = content
	case answer:
		b.current.Answer = content
	case context:
		b.current.Context = content
	}
}

func (b *builder) closeCard() {
	b.closeField()
	if b.current.Question != "" {
		b.cards = append(b.cards, b.current)
	}
	b.current = domain.Card{}
	b.field = none
}

func splitPrefix(line string) (field, string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p.prefix) {
			return p.field, strings.TrimPrefix(line[len(p.prefix):], " "), true
		}
	}
	return none, "", false
}
