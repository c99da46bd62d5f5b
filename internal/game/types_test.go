package game

import "testing"

func TestNewRoomDefaults(t *testing.T) {
	r := NewRoom("ROOM1", DefaultRoomConfig())

	if r.Phase != PhaseLobby {
		t.Fatalf("expected phase %s, got %s", PhaseLobby, r.Phase)
	}
	if len(r.Players) != 0 {
		t.Fatalf("expected no players, got %d", len(r.Players))
	}
	if r.CurrentPrompt != nil {
		t.Fatal("expected no prompt before the first round")
	}
	if r.Submissions == nil || len(r.Submissions) != 0 {
		t.Fatal("expected an empty submissions map")
	}
	if r.Config.WinningScore != 7 {
		t.Fatalf("expected winning score 7, got %d", r.Config.WinningScore)
	}
	if r.Config.MaxPlayers != 10 {
		t.Fatalf("expected max players 10, got %d", r.Config.MaxPlayers)
	}
	if r.WinningPlayerID != "" {
		t.Fatal("expected no winner")
	}
	if r.Judge() != nil {
		t.Fatal("empty room has no judge")
	}
}

func TestPhaseTransitions(t *testing.T) {
	cases := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseLobby, PhasePlaying, true},
		{PhasePlaying, PhaseJudging, true},
		{PhaseJudging, PhaseRoundOver, true},
		{PhaseRoundOver, PhasePlaying, true},
		{PhaseRoundOver, PhaseGameOver, true},
		{PhaseGameOver, PhaseLobby, true},
		{PhaseLobby, PhaseJudging, false},
		{PhasePlaying, PhaseRoundOver, false},
		{PhaseJudging, PhaseGameOver, false},
		{PhaseGameOver, PhasePlaying, false},
		{PhaseLobby, PhaseGameOver, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRoomConfigNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   RoomConfig
		want RoomConfig
	}{
		{"zero uses defaults", RoomConfig{}, DefaultRoomConfig()},
		{"min players at least two", RoomConfig{MinPlayers: 1}, RoomConfig{MaxPlayers: 10, WinningScore: 7, MinPlayers: 2, HandSize: 10}},
		{"min players capped by max", RoomConfig{MaxPlayers: 4, MinPlayers: 6}, RoomConfig{MaxPlayers: 4, WinningScore: 7, MinPlayers: 4, HandSize: 10}},
		{"room fits a judge and a player", RoomConfig{MaxPlayers: 1}, RoomConfig{MaxPlayers: 2, WinningScore: 7, MinPlayers: 2, HandSize: 10}},
		{"bot flag kept", RoomConfig{Bot: true}, RoomConfig{MaxPlayers: 10, WinningScore: 7, MinPlayers: 3, HandSize: 10, Bot: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Normalize(); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestNextHumanSkipsBots(t *testing.T) {
	r := NewRoom("ROOM1", DefaultRoomConfig())
	r.Players = []*Player{{ID: "a"}, {ID: "bot", IsBot: true}, {ID: "c"}}

	if got := r.nextHuman(1); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := r.nextHuman(3); got != 0 {
		t.Fatalf("expected wrap to 0, got %d", got)
	}
}
