package game

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportRound(t *testing.T) {
	tb := newTable(t, RoomConfig{WinningScore: 2}, "Alice", "Bob", "Charlie")
	s := tb.s
	filename := filepath.Join(t.TempDir(), "exports", "rounds.txt")

	if err := ExportRound(s, filename); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase in lobby, got %v", err)
	}

	_ = s.Start(tb.tokens["Alice"])
	bobCard := tb.firstCard(t, "Bob")
	_ = s.Submit(tb.tokens["Bob"], bobCard)
	_ = s.Submit(tb.tokens["Charlie"], tb.firstCard(t, "Charlie"))
	_, _ = s.Pick(tb.tokens["Alice"], bobCard)

	if err := ExportRound(s, filename); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"Room " + s.Code,
		"Round 1:",
		"Judge: Alice",
		"- Bob: ",
		"<- winner",
		"- Bob: 1 points",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("export missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Game over") {
		t.Fatal("game is not over yet")
	}

	_ = s.NextRound(tb.tokens["Alice"])
	aliceCard := tb.firstCard(t, "Alice")
	bobCard = tb.firstCard(t, "Bob")
	_ = s.Submit(tb.tokens["Alice"], aliceCard)
	_ = s.Submit(tb.tokens["Charlie"], tb.firstCard(t, "Charlie"))
	_, _ = s.Pick(tb.tokens["Bob"], aliceCard)
	_ = s.NextRound(tb.tokens["Alice"])
	_ = s.Submit(tb.tokens["Alice"], tb.firstCard(t, "Alice"))
	_ = s.Submit(tb.tokens["Bob"], bobCard)
	_, _ = s.Pick(tb.tokens["Charlie"], bobCard)

	if s.Phase() != PhaseGameOver {
		t.Fatalf("expected %s, got %s", PhaseGameOver, s.Phase())
	}
	if err := ExportRound(s, filename); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, _ = os.ReadFile(filename)
	out = string(data)
	if strings.Count(out, "Players:") != 1 {
		t.Fatalf("header should be written once per game:\n%s", out)
	}
	if !strings.Contains(out, "Round 3:") || !strings.Contains(out, "winner: Bob") {
		t.Fatalf("expected final round and winner:\n%s", out)
	}
}
