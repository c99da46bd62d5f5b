package cards

import (
	"bufio"
	"io"
	"strings"

	"github.com/google/uuid"
)

// BlankMarker is the character used to denote a fill-in slot on a prompt card.
const BlankMarker = '_'

type PromptCard struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	BlankCount int    `json:"blankCount"`
}

type ResponseCard struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// BlankCount counts maximal runs of BlankMarker in text. "___ and ___" has two
// blanks regardless of how long each run is.
func BlankCount(text string) int {
	count := 0
	inRun := false
	for _, r := range text {
		if r == BlankMarker {
			if !inRun {
				count++
				inRun = true
			}
			continue
		}
		inRun = false
	}
	return count
}

// NewPromptCard builds a prompt from a raw line. Every prompt has at least one blank.
func NewPromptCard(line string) PromptCard {
	text := strings.TrimSpace(line)
	blanks := BlankCount(text)
	if blanks == 0 {
		blanks = 1
	}
	return PromptCard{ID: uuid.NewString(), Text: text, BlankCount: blanks}
}

func NewResponseCard(line string) ResponseCard {
	return ResponseCard{ID: uuid.NewString(), Text: strings.TrimSpace(line)}
}

// ParsePrompts reads one prompt per line, skipping blank lines.
func ParsePrompts(r io.Reader) ([]PromptCard, error) {
	var out []PromptCard
	err := eachLine(r, func(line string) {
		out = append(out, NewPromptCard(line))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseResponses reads one response per line, skipping blank lines.
func ParseResponses(r io.Reader) ([]ResponseCard, error) {
	var out []ResponseCard
	err := eachLine(r, func(line string) {
		out = append(out, NewResponseCard(line))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// eachLine calls fn for every non-blank line. Lines have no length limit.
func eachLine(r io.Reader, fn func(line string)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			fn(line)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
