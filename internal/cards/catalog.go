package cards

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrNoCards = errors.New("no cards available")

// Catalog holds the prompt and response cards loaded at startup. The card
// lists are never mutated after construction, so readers need no locking;
// only the shared random generator is guarded.
type Catalog struct {
	prompts   []PromptCard
	responses []ResponseCard
	byID      map[string]ResponseCard

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Catalog)

// WithRand replaces the crypto-seeded generator, mostly for tests.
func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) { c.rng = r }
}

// New builds a catalog from cards that are already in memory.
func New(prompts []PromptCard, responses []ResponseCard, opts ...Option) *Catalog {
	c := &Catalog{
		prompts:   slices.Clone(prompts),
		responses: slices.Clone(responses),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = newRand()
	}
	c.index()
	return c
}

// Load reads the prompt and response files from fsys. It never fails: a
// missing file leaves that deck empty and any other read error stops loading,
// keeping whatever decks were already read.
func Load(fsys fs.FS, promptPath, responsePath string, opts ...Option) *Catalog {
	c := New(nil, nil, opts...)
	if err := c.load(fsys, promptPath, responsePath); err != nil {
		log.Error().Err(err).Msg("error loading cards")
	}
	c.index()
	return c
}

func (c *Catalog) load(fsys fs.FS, promptPath, responsePath string) error {
	prompts, err := readDeck(fsys, promptPath, ParsePrompts)
	if err != nil {
		return fmt.Errorf("prompt cards %s: %w", promptPath, err)
	}
	if prompts != nil {
		c.prompts = prompts
		log.Info().Int("count", len(c.prompts)).Str("file", promptPath).Msg("loaded prompt cards")
	}

	responses, err := readDeck(fsys, responsePath, ParseResponses)
	if err != nil {
		return fmt.Errorf("response cards %s: %w", responsePath, err)
	}
	if responses != nil {
		c.responses = responses
		log.Info().Int("count", len(c.responses)).Str("file", responsePath).Msg("loaded response cards")
	}
	return nil
}

// readDeck returns (nil, nil) when the file does not exist.
func readDeck[T any](fsys fs.FS, path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := fsys.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("file", path).Msg("card file not found")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cards, err := parse(f)
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []T{}
	}
	return cards, nil
}

func (c *Catalog) index() {
	c.byID = make(map[string]ResponseCard, len(c.responses))
	for _, r := range c.responses {
		c.byID[r.ID] = r
	}
}

// AllPromptCards returns a copy of the prompt deck in file order.
func (c *Catalog) AllPromptCards() []PromptCard { return slices.Clone(c.prompts) }

// AllResponseCards returns a copy of the response deck in file order.
func (c *Catalog) AllResponseCards() []ResponseCard { return slices.Clone(c.responses) }

func (c *Catalog) PromptCount() int   { return len(c.prompts) }
func (c *Catalog) ResponseCount() int { return len(c.responses) }

// ResponseCard looks a response card up by ID.
func (c *Catalog) ResponseCard(id string) (ResponseCard, bool) {
	r, ok := c.byID[id]
	return r, ok
}

func (c *Catalog) RandomPromptCard() (PromptCard, error) {
	if len(c.prompts) == 0 {
		return PromptCard{}, fmt.Errorf("prompt deck: %w", ErrNoCards)
	}
	return c.prompts[c.intN(len(c.prompts))], nil
}

func (c *Catalog) RandomResponseCard() (ResponseCard, error) {
	if len(c.responses) == 0 {
		return ResponseCard{}, fmt.Errorf("response deck: %w", ErrNoCards)
	}
	return c.responses[c.intN(len(c.responses))], nil
}

// Shuffle permutes n elements with the catalog's generator.
func (c *Catalog) Shuffle(n int, swap func(i, j int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rng.Shuffle(n, swap)
}

func (c *Catalog) intN(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.IntN(n)
}

func newRand() *rand.Rand {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])))
}
