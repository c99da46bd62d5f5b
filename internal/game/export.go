package game

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ExportRound appends the result of the round that just finished to a text file.
func ExportRound(s *Session, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Room.Phase != PhaseRoundOver && s.Room.Phase != PhaseGameOver {
		return ErrInvalidPhase
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fileExists := false
	if _, err := os.Stat(filename); err == nil {
		fileExists = true
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder

	if !fileExists || s.round == 1 {
		if fileExists {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("Developers Against Humanity - Room %s\n", s.Code))
		sb.WriteString(fmt.Sprintf("Started: %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05")))
		sb.WriteString(strings.Repeat("=", 50) + "\n\n")

		sb.WriteString("Players:\n")
		for _, p := range s.Room.Players {
			name := p.Name
			if p.IsBot {
				name += " (bot)"
			}
			sb.WriteString(fmt.Sprintf("- %s\n", name))
		}
		sb.WriteString("\n")
	}

	prompt := ""
	if s.Room.CurrentPrompt != nil {
		prompt = s.Room.CurrentPrompt.Text
	}
	sb.WriteString(fmt.Sprintf("Round %d: \"%s\"\n", s.round, prompt))
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	if judge := s.Room.Judge(); judge != nil {
		sb.WriteString(fmt.Sprintf("Judge: %s\n", judge.Name))
	}

	for _, pid := range s.Room.SubmissionOrder {
		name := "Unknown"
		if p := s.Room.Player(pid); p != nil {
			name = p.Name
		}
		marker := ""
		if pid == s.roundWinnerID {
			marker = "  <- winner"
		}
		sb.WriteString(fmt.Sprintf("- %s: \"%s\"%s\n", name, s.played[pid].Text, marker))
	}

	type playerScore struct {
		Name  string
		Score int
	}
	scores := make([]playerScore, 0, len(s.Room.Players))
	for _, p := range s.Room.Players {
		scores = append(scores, playerScore{Name: p.Name, Score: p.Score})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	sb.WriteString("\nScores after this round:\n")
	for _, ps := range scores {
		sb.WriteString(fmt.Sprintf("- %s: %d points\n", ps.Name, ps.Score))
	}
	sb.WriteString("\n")

	if s.Room.Phase == PhaseGameOver {
		winner := s.Room.WinningPlayerID
		if p := s.Room.Player(winner); p != nil {
			winner = p.Name
		}
		sb.WriteString(fmt.Sprintf("Game over at %s, winner: %s\n", time.Now().Format("2006-01-02 15:04:05"), winner))
		sb.WriteString(strings.Repeat("=", 50) + "\n")
	}

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
