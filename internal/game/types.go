package game

import (
    "time"

    "github.com/developers-against-humanity/dah/internal/cards"
)

type Phase string

const (
    PhaseLobby     Phase = "Lobby"
    PhasePlaying   Phase = "Playing"
    PhaseJudging   Phase = "Judging"
    PhaseRoundOver Phase = "RoundOver"
    PhaseGameOver  Phase = "GameOver"
)

var transitions = map[Phase][]Phase{
    PhaseLobby:     {PhasePlaying},
    PhasePlaying:   {PhaseJudging, PhasePlaying, PhaseLobby},
    PhaseJudging:   {PhaseRoundOver, PhasePlaying, PhaseLobby},
    PhaseRoundOver: {PhasePlaying, PhaseGameOver, PhaseLobby},
    PhaseGameOver:  {PhaseLobby},
}

// CanTransitionTo reports whether the orchestrator may move a room from p to next.
// Playing→Playing and Judging→Playing restart a round after the judge leaves;
// the Lobby edges fire when too few players remain.
func (p Phase) CanTransitionTo(next Phase) bool {
    for _, allowed := range transitions[p] {
        if allowed == next {
            return true
        }
    }
    return false
}

// InRound reports whether a round is being played or judged.
func (p Phase) InRound() bool {
    return p == PhasePlaying || p == PhaseJudging || p == PhaseRoundOver
}

const (
    DefaultMaxPlayers   = 10
    DefaultWinningScore = 7
    DefaultMinPlayers   = 3
    DefaultHandSize     = 10
)

type RoomConfig struct {
    MaxPlayers   int  `json:"maxPlayers"`
    WinningScore int  `json:"winningScore"`
    MinPlayers   int  `json:"minPlayers"`
    HandSize     int  `json:"handSize"`
    Bot          bool `json:"bot"` // seat a random-card bot player
}

func DefaultRoomConfig() RoomConfig {
    return RoomConfig{
        MaxPlayers:   DefaultMaxPlayers,
        WinningScore: DefaultWinningScore,
        MinPlayers:   DefaultMinPlayers,
        HandSize:     DefaultHandSize,
    }
}

// Normalize fills zero or nonsensical values with defaults.
func (c RoomConfig) Normalize() RoomConfig {
    if c.MaxPlayers <= 0 {
        c.MaxPlayers = DefaultMaxPlayers
    }
    // a round needs a judge and at least one player submitting
    if c.MaxPlayers < 2 {
        c.MaxPlayers = 2
    }
    if c.WinningScore <= 0 {
        c.WinningScore = DefaultWinningScore
    }
    if c.MinPlayers <= 0 {
        c.MinPlayers = DefaultMinPlayers
    }
    if c.MinPlayers < 2 {
        c.MinPlayers = 2
    }
    if c.MinPlayers > c.MaxPlayers {
        c.MinPlayers = c.MaxPlayers
    }
    if c.HandSize <= 0 {
        c.HandSize = DefaultHandSize
    }
    return c
}

type Player struct {
    ID       string               `json:"id"`
    Name     string               `json:"name"`
    Score    int                  `json:"score"`
    Hand     []cards.ResponseCard `json:"-"`
    IsHost   bool                 `json:"isHost"`
    IsBot    bool                 `json:"isBot"`
    JoinedAt time.Time            `json:"joinedAt"`
}

// Room is the authoritative shape of one game. It has no locking of its own;
// Session serializes every mutation.
type Room struct {
    ID              string
    Players         []*Player
    CurrentPrompt   *cards.PromptCard
    Submissions     map[string]string // playerID -> response card ID
    SubmissionOrder []string          // playerIDs in the order they submitted
    Phase           Phase
    JudgeIndex      int
    WinningPlayerID string
    Config          RoomConfig
}

func NewRoom(id string, cfg RoomConfig) *Room {
    return &Room{
        ID:          id,
        Players:     []*Player{},
        Submissions: make(map[string]string),
        Phase:       PhaseLobby,
        Config:      cfg,
    }
}

// Judge returns the player at JudgeIndex, or nil for an empty room.
func (r *Room) Judge() *Player {
    if len(r.Players) == 0 || r.JudgeIndex < 0 || r.JudgeIndex >= len(r.Players) {
        return nil
    }
    return r.Players[r.JudgeIndex]
}

func (r *Room) PlayerIndex(id string) int {
    for i, p := range r.Players {
        if p.ID == id {
            return i
        }
    }
    return -1
}

func (r *Room) Player(id string) *Player {
    if i := r.PlayerIndex(id); i >= 0 {
        return r.Players[i]
    }
    return nil
}

func (r *Room) humanCount() int {
    n := 0
    for _, p := range r.Players {
        if !p.IsBot {
            n++
        }
    }
    return n
}

// nextHuman returns the first non-bot index at or after start, wrapping.
func (r *Room) nextHuman(start int) int {
    n := len(r.Players)
    if n == 0 {
        return 0
    }
    for i := 0; i < n; i++ {
        j := ((start+i)%n + n) % n
        if !r.Players[j].IsBot {
            return j
        }
    }
    return ((start % n) + n) % n
}
