package ai

import (
    "context"
    "errors"
    "fmt"
    "math/rand/v2"
    "regexp"
    "strconv"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/developers-against-humanity/dah/internal/cards"
)

var ErrEmptyHand = errors.New("empty hand")

const DefaultSystemPrompt = "You are playing a party card game for software developers. " +
    "Pick the funniest response card for the prompt. Reply with the number of the card only."

var firstNumber = regexp.MustCompile(`\d+`)

// Picker chooses the card a bot plays. Without a provider it picks uniformly at random.
type Picker struct {
    Provider     Provider
    Model        string
    SystemPrompt string
    Timeout      time.Duration
}

func NewPicker(p Provider, model, systemPrompt string) *Picker {
    if systemPrompt == "" {
        systemPrompt = DefaultSystemPrompt
    }
    return &Picker{Provider: p, Model: model, SystemPrompt: systemPrompt, Timeout: 15 * time.Second}
}

// Choose returns one card from hand for the given prompt. Provider failures
// fall back to a random card and are only logged.
func (p *Picker) Choose(ctx context.Context, prompt cards.PromptCard, hand []cards.ResponseCard) (cards.ResponseCard, error) {
    if len(hand) == 0 {
        return cards.ResponseCard{}, ErrEmptyHand
    }
    if p == nil || p.Provider == nil {
        return hand[rand.IntN(len(hand))], nil
    }

    if p.Timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, p.Timeout)
        defer cancel()
    }
    reply, err := p.Provider.CompleteWithSystem(ctx, p.Model, p.SystemPrompt, BuildPrompt(prompt, hand))
    if err != nil {
        log.Warn().Err(err).Str("model", p.Model).Msg("bot provider failed, picking at random")
        return hand[rand.IntN(len(hand))], nil
    }
    i, ok := ParseChoice(reply, len(hand))
    if !ok {
        log.Warn().Str("reply", reply).Msg("bot reply had no usable card number, picking at random")
        return hand[rand.IntN(len(hand))], nil
    }
    return hand[i], nil
}

// BuildPrompt lists the hand as a numbered menu, starting at 1.
func BuildPrompt(prompt cards.PromptCard, hand []cards.ResponseCard) string {
    var sb strings.Builder
    fmt.Fprintf(&sb, "Prompt: %s\n\nYour cards:\n", prompt.Text)
    for i, c := range hand {
        fmt.Fprintf(&sb, "%d. %s\n", i+1, c.Text)
    }
    sb.WriteString("\nWhich card do you play?")
    return sb.String()
}

// ParseChoice returns the zero-based index of the first 1-based number in reply
// that falls inside the hand.
func ParseChoice(reply string, n int) (int, bool) {
    for _, m := range firstNumber.FindAllString(reply, -1) {
        v, err := strconv.Atoi(m)
        if err != nil {
            continue
        }
        if v >= 1 && v <= n {
            return v - 1, true
        }
    }
    return 0, false
}
