package cards

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestBlankCount(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"What's the secret to a good party? ___.", 1},
		{"Q: ___ and ___.", 2},
		{"No blanks here.", 0},
		{"_", 1},
		{"__ x _____ y _", 3},
		{"___ ___", 2},
		{"", 0},
	}
	for _, tc := range cases {
		if got := BlankCount(tc.text); got != tc.want {
			t.Fatalf("BlankCount(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestNewPromptCardHasAtLeastOneBlank(t *testing.T) {
	p := NewPromptCard("  Why can't I sleep at night?  ")
	if p.BlankCount != 1 {
		t.Fatalf("expected blank count 1, got %d", p.BlankCount)
	}
	if p.Text != "Why can't I sleep at night?" {
		t.Fatalf("expected trimmed text, got %q", p.Text)
	}
	if p.ID == "" {
		t.Fatal("prompt card should have an id")
	}
}

func TestLoadParsesBothFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"black-cards.txt": {Data: []byte("What's the secret to a good party? ___.\n\nQ: ___ and ___.\n   \n")},
		"white-cards.txt": {Data: []byte("Puppies.\n\nChaos.\n")},
	}

	c := Load(fsys, "black-cards.txt", "white-cards.txt")

	prompts := c.AllPromptCards()
	if len(prompts) != 2 {
		t.Fatalf("expected 2 prompt cards, got %d", len(prompts))
	}
	if prompts[0].BlankCount != 1 || prompts[1].BlankCount != 2 {
		t.Fatalf("unexpected blank counts: %d, %d", prompts[0].BlankCount, prompts[1].BlankCount)
	}

	responses := c.AllResponseCards()
	if len(responses) != 2 {
		t.Fatalf("expected 2 response cards, got %d", len(responses))
	}
	if responses[0].Text != "Puppies." || responses[1].Text != "Chaos." {
		t.Fatalf("responses out of order: %+v", responses)
	}
	if _, ok := c.ResponseCard(responses[1].ID); !ok {
		t.Fatal("response card should be indexed by id")
	}
}

func TestLoadVeryLongLines(t *testing.T) {
	long := "L: " + strings.Repeat("x", 2<<20) + " ___."
	fsys := fstest.MapFS{
		"black-cards.txt": {Data: []byte("Q: ___.\n" + long + "\nR: ___.")},
		"white-cards.txt": {Data: []byte("Puppies.\r\nChaos.")},
	}

	c := Load(fsys, "black-cards.txt", "white-cards.txt")

	prompts := c.AllPromptCards()
	if len(prompts) != 3 {
		t.Fatalf("expected 3 prompt cards, got %d", len(prompts))
	}
	if prompts[1].Text != long || prompts[2].Text != "R: ___." {
		t.Fatal("long line or unterminated last line not kept intact")
	}
	responses := c.AllResponseCards()
	if len(responses) != 2 || responses[0].Text != "Puppies." || responses[1].Text != "Chaos." {
		t.Fatalf("unexpected responses %+v", responses)
	}
}

func TestLoadMissingPromptFileKeepsResponses(t *testing.T) {
	fsys := fstest.MapFS{
		"white-cards.txt": {Data: []byte("Puppies.\nChaos.\nA windmill full of corpses.\n")},
	}

	c := Load(fsys, "black-cards.txt", "white-cards.txt")

	if c.PromptCount() != 0 {
		t.Fatalf("expected no prompt cards, got %d", c.PromptCount())
	}
	if c.ResponseCount() != 3 {
		t.Fatalf("expected 3 response cards, got %d", c.ResponseCount())
	}
	if _, err := c.RandomPromptCard(); !errors.Is(err, ErrNoCards) {
		t.Fatalf("expected ErrNoCards, got %v", err)
	}
}

func TestLoadReadErrorAbortsRemainingFiles(t *testing.T) {
	fsys := brokenFS{
		MapFS: fstest.MapFS{
			"black-cards.txt": {Data: []byte("Q: ___.\n")},
			"white-cards.txt": {Data: []byte("Puppies.\n")},
		},
		broken: "black-cards.txt",
	}

	c := Load(fsys, "black-cards.txt", "white-cards.txt")

	if c.PromptCount() != 0 || c.ResponseCount() != 0 {
		t.Fatalf("expected empty catalog after early abort, got %d prompts, %d responses", c.PromptCount(), c.ResponseCount())
	}
}

func TestLoadReadErrorKeepsEarlierDeck(t *testing.T) {
	fsys := brokenFS{
		MapFS: fstest.MapFS{
			"black-cards.txt": {Data: []byte("Q: ___.\nA: ___ ___.\n")},
			"white-cards.txt": {Data: []byte("Puppies.\n")},
		},
		broken: "white-cards.txt",
	}

	c := Load(fsys, "black-cards.txt", "white-cards.txt")

	if c.PromptCount() != 2 {
		t.Fatalf("expected prompts loaded before the failure, got %d", c.PromptCount())
	}
	if c.ResponseCount() != 0 {
		t.Fatalf("expected no responses, got %d", c.ResponseCount())
	}
}

func TestRandomDrawsComeFromDeck(t *testing.T) {
	c := New(
		[]PromptCard{NewPromptCard("A ___."), NewPromptCard("B ___.")},
		[]ResponseCard{NewResponseCard("x"), NewResponseCard("y"), NewResponseCard("z")},
		WithRand(rand.New(rand.NewPCG(1, 2))),
	)

	prompts := map[string]bool{}
	for _, p := range c.AllPromptCards() {
		prompts[p.ID] = true
	}
	for i := 0; i < 50; i++ {
		p, err := c.RandomPromptCard()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !prompts[p.ID] {
			t.Fatalf("drew prompt %q not in deck", p.Text)
		}
		r, err := c.RandomResponseCard()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := c.ResponseCard(r.ID); !ok {
			t.Fatalf("drew response %q not in deck", r.Text)
		}
	}
}

func TestRandomOnEmptyCatalog(t *testing.T) {
	c := New(nil, nil)
	if _, err := c.RandomPromptCard(); !errors.Is(err, ErrNoCards) {
		t.Fatalf("expected ErrNoCards for prompts, got %v", err)
	}
	if _, err := c.RandomResponseCard(); !errors.Is(err, ErrNoCards) {
		t.Fatalf("expected ErrNoCards for responses, got %v", err)
	}
}

func TestAllCardsReturnsCopy(t *testing.T) {
	c := New([]PromptCard{NewPromptCard("A ___.")}, []ResponseCard{NewResponseCard("x")})

	prompts := c.AllPromptCards()
	prompts[0].Text = "mutated"
	responses := c.AllResponseCards()
	responses[0].Text = "mutated"

	if c.AllPromptCards()[0].Text != "A ___." {
		t.Fatal("caller mutation leaked into prompt deck")
	}
	if c.AllResponseCards()[0].Text != "x" {
		t.Fatal("caller mutation leaked into response deck")
	}
}

// brokenFS fails every read of one file.
type brokenFS struct {
	fstest.MapFS
	broken string
}

func (b brokenFS) Open(name string) (fs.File, error) {
	if name == b.broken {
		return brokenFile{name: name}, nil
	}
	return b.MapFS.Open(name)
}

type brokenFile struct{ name string }

func (f brokenFile) Stat() (fs.FileInfo, error) { return brokenInfo{name: f.name}, nil }
func (f brokenFile) Read([]byte) (int, error)   { return 0, errors.New("disk on fire") }
func (f brokenFile) Close() error               { return nil }

type brokenInfo struct{ name string }

func (i brokenInfo) Name() string       { return i.name }
func (i brokenInfo) Size() int64        { return 0 }
func (i brokenInfo) Mode() fs.FileMode  { return 0o444 }
func (i brokenInfo) ModTime() time.Time { return time.Time{} }
func (i brokenInfo) IsDir() bool        { return false }
func (i brokenInfo) Sys() any           { return nil }
