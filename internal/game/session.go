package game

import (
    "fmt"
    "slices"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/developers-against-humanity/dah/internal/cards"
)

// Session drives one Room through its rounds. Every exported method takes the
// session lock, so concurrent player actions on the same room are serialized.
type Session struct {
    Code      string
    CreatedAt time.Time
    Room      *Room

    catalog *cards.Catalog
    deck    []cards.ResponseCard            // draw pile, refilled from the catalog
    tokens  map[string]string               // player token -> player ID
    played  map[string]cards.ResponseCard   // playerID -> card submitted this round

    round         int
    roundWinnerID string
    lastActive    time.Time

    mu sync.Mutex
}

func newSession(code string, cfg RoomConfig, catalog *cards.Catalog) *Session {
    now := time.Now().UTC()
    return &Session{
        Code:       code,
        CreatedAt:  now,
        Room:       NewRoom(code, cfg.Normalize()),
        catalog:    catalog,
        tokens:     make(map[string]string),
        played:     make(map[string]cards.ResponseCard),
        lastActive: now,
    }
}

func (s *Session) touch() { s.lastActive = time.Now().UTC() }

func (s *Session) LastActive() time.Time {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.lastActive
}

func (s *Session) Phase() Phase {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.Room.Phase
}

func (s *Session) Round() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.round
}

// PlayerID resolves a token, returning "" when unknown.
func (s *Session) PlayerID(token string) string {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.tokens[token]
}

func (s *Session) setPhase(next Phase) {
    if !s.Room.Phase.CanTransitionTo(next) {
        log.Error().Str("code", s.Code).Str("from", string(s.Room.Phase)).Str("to", string(next)).Msg("illegal phase transition")
    }
    s.Room.Phase = next
}

func (s *Session) playerByToken(token string) (*Player, error) {
    id, ok := s.tokens[token]
    if !ok {
        return nil, ErrUnknownPlayer
    }
    p := s.Room.Player(id)
    if p == nil {
        return nil, ErrUnknownPlayer
    }
    return p, nil
}

func (s *Session) host(token string) (*Player, error) {
    p, err := s.playerByToken(token)
    if err != nil {
        return nil, err
    }
    if !p.IsHost {
        return nil, ErrNotHost
    }
    return p, nil
}

func (s *Session) Join(name string) (playerID, token string, err error) {
    return s.join(name, false)
}

// AddBot seats a bot player. Bots never host and never judge.
func (s *Session) AddBot(name string) (playerID, token string, err error) {
    return s.join(name, true)
}

func (s *Session) join(name string, bot bool) (string, string, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.touch()

    name = strings.TrimSpace(name)
    if name == "" {
        return "", "", ErrInvalidName
    }
    if s.Room.Phase != PhaseLobby {
        return "", "", ErrInvalidPhase
    }
    if len(s.Room.Players) >= s.Room.Config.MaxPlayers {
        return "", "", ErrRoomFull
    }
    for _, p := range s.Room.Players {
        if strings.EqualFold(p.Name, name) {
            return "", "", ErrNameTaken
        }
    }

    p := &Player{ID: uuid.NewString(), Name: name, IsBot: bot, JoinedAt: time.Now().UTC()}
    if !bot && s.currentHost() == nil {
        p.IsHost = true
    }
    token := uuid.NewString()
    s.Room.Players = append(s.Room.Players, p)
    s.tokens[token] = p.ID
    return p.ID, token, nil
}

func (s *Session) currentHost() *Player {
    for _, p := range s.Room.Players {
        if p.IsHost {
            return p
        }
    }
    return nil
}

// Start deals hands, draws the first prompt and opens round one.
func (s *Session) Start(token string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.touch()

    if _, err := s.host(token); err != nil {
        return err
    }
    if s.Room.Phase != PhaseLobby {
        return ErrInvalidPhase
    }
    if len(s.Room.Players) < s.Room.Config.MinPlayers || s.Room.humanCount() == 0 {
        return ErrNotEnoughPlayers
    }
    if s.catalog.ResponseCount() == 0 {
        return fmt.Errorf("deal hands: response deck: %w", cards.ErrNoCards)
    }
    prompt, err := s.catalog.RandomPromptCard()
    if err != nil {
        return fmt.Errorf("draw prompt: %w", err)
    }

    s.deck = nil
    s.round = 0
    s.Room.WinningPlayerID = ""
    for _, p := range s.Room.Players {
        p.Score = 0
        p.Hand = nil
    }
    s.dealAll()
    s.Room.JudgeIndex = s.Room.nextHuman(0)
    s.beginRound(prompt, false)
    return nil
}

// Submit plays one card from the caller's hand for the current round.
func (s *Session) Submit(token, cardID string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.touch()

    p, err := s.playerByToken(token)
    if err != nil {
        return err
    }
    if s.Room.Phase != PhasePlaying {
        return ErrInvalidPhase
    }
    if judge := s.Room.Judge(); judge != nil && judge.ID == p.ID {
        return ErrJudgeCannotSubmit
    }
    if _, ok := s.Room.Submissions[p.ID]; ok {
        return ErrAlreadySubmitted
    }
    i := slices.IndexFunc(p.Hand, func(c cards.ResponseCard) bool { return c.ID == cardID })
    if i < 0 {
        return ErrCardNotInHand
    }

    card := p.Hand[i]
    p.Hand = slices.Delete(p.Hand, i, i+1)
    s.Room.Submissions[p.ID] = card.ID
    s.Room.SubmissionOrder = append(s.Room.SubmissionOrder, p.ID)
    s.played[p.ID] = card

    if s.allSubmitted() {
        s.setPhase(PhaseJudging)
    }
    return nil
}

func (s *Session) allSubmitted() bool {
    judge := s.Room.Judge()
    for _, p := range s.Room.Players {
        if judge != nil && p.ID == judge.ID {
            continue
        }
        if _, ok := s.Room.Submissions[p.ID]; !ok {
            return false
        }
    }
    return true
}

// Pick awards the round to whoever played cardID. It returns the winning
// player's ID.
func (s *Session) Pick(token, cardID string) (string, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.touch()

    p, err := s.playerByToken(token)
    if err != nil {
        return "", err
    }
    if s.Room.Phase != PhaseJudging {
        return "", ErrInvalidPhase
    }
    if judge := s.Room.Judge(); judge == nil || judge.ID != p.ID {
        return "", ErrNotJudge
    }

    var winner *Player
    for _, pid := range s.Room.SubmissionOrder {
        if s.Room.Submissions[pid] == cardID {
            winner = s.Room.Player(pid)
            break
        }
    }
    if winner == nil {
        return "", ErrNoSubmission
    }

    winner.Score++
    s.roundWinnerID = winner.ID
    s.setPhase(PhaseRoundOver)
    if winner.Score >= s.Room.Config.WinningScore {
        s.setPhase(PhaseGameOver)
        s.Room.WinningPlayerID = winner.ID
    }
    return winner.ID, nil
}

// NextRound rotates the judge, tops hands back up and draws a new prompt.
func (s *Session) NextRound(token string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.touch()

    if _, err := s.host(token); err != nil {
        return err
    }
    if s.Room.Phase != PhaseRoundOver {
        return ErrInvalidPhase
    }
    prompt, err := s.catalog.RandomPromptCard()
    if err != nil {
        return fmt.Errorf("draw prompt: %w", err)
    }

    s.Room.JudgeIndex = s.Room.nextHuman(s.Room.JudgeIndex + 1)
    s.dealAll()
    s.beginRound(prompt, false)
    return nil
}

// Reset returns a finished game to the lobby so the same players can go again.
func (s *Session) Reset(token string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.touch()

    if _, err := s.host(token); err != nil {
        return err
    }
    if s.Room.Phase != PhaseGameOver {
        return ErrInvalidPhase
    }
    s.toLobby()
    return nil
}

// Leave removes the caller and repairs the round around the gap.
func (s *Session) Leave(token string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.touch()

    p, err := s.playerByToken(token)
    if err != nil {
        return err
    }
    delete(s.tokens, token)

    idx := s.Room.PlayerIndex(p.ID)
    wasJudge := s.Room.Phase.InRound() && idx == s.Room.JudgeIndex

    s.Room.Players = slices.Delete(s.Room.Players, idx, idx+1)
    s.dropSubmission(p.ID)

    if p.IsHost {
        for _, other := range s.Room.Players {
            if !other.IsBot {
                other.IsHost = true
                break
            }
        }
    }

    n := len(s.Room.Players)
    if n == 0 {
        s.toLobby()
        return nil
    }
    if idx < s.Room.JudgeIndex {
        s.Room.JudgeIndex--
    }
    if s.Room.JudgeIndex >= n {
        s.Room.JudgeIndex = 0
    }

    if !s.Room.Phase.InRound() {
        return nil
    }
    if n < s.Room.Config.MinPlayers || s.Room.humanCount() == 0 {
        log.Info().Str("code", s.Code).Int("players", n).Msg("not enough players, back to lobby")
        s.toLobby()
        return nil
    }

    switch s.Room.Phase {
    case PhasePlaying, PhaseJudging:
        if wasJudge {
            // JudgeIndex already points at the seat after the leaver.
            s.Room.JudgeIndex = s.Room.nextHuman(s.Room.JudgeIndex)
            s.returnPlayedCards()
            s.beginRound(*s.Room.CurrentPrompt, true)
            return nil
        }
        if s.Room.Phase == PhaseJudging && len(s.Room.Submissions) == 0 {
            s.beginRound(*s.Room.CurrentPrompt, true)
            return nil
        }
        if s.Room.Phase == PhasePlaying && s.allSubmitted() {
            s.setPhase(PhaseJudging)
        }
    case PhaseRoundOver:
        if wasJudge {
            // NextRound advances by one; land on the seat after the leaver.
            s.Room.JudgeIndex = (s.Room.JudgeIndex - 1 + n) % n
        }
    }
    return nil
}

func (s *Session) dropSubmission(playerID string) {
    delete(s.Room.Submissions, playerID)
    delete(s.played, playerID)
    s.Room.SubmissionOrder = slices.DeleteFunc(s.Room.SubmissionOrder, func(id string) bool { return id == playerID })
}

func (s *Session) returnPlayedCards() {
    for pid, card := range s.played {
        if p := s.Room.Player(pid); p != nil {
            p.Hand = append(p.Hand, card)
        }
    }
}

// beginRound opens a Playing phase. A restart replays the current round
// without counting a new one.
func (s *Session) beginRound(prompt cards.PromptCard, restart bool) {
    s.Room.CurrentPrompt = &prompt
    s.Room.Submissions = make(map[string]string)
    s.Room.SubmissionOrder = nil
    s.played = make(map[string]cards.ResponseCard)
    s.roundWinnerID = ""
    if !restart {
        s.round++
    }
    s.setPhase(PhasePlaying)
}

func (s *Session) toLobby() {
    if s.Room.Phase != PhaseLobby {
        s.setPhase(PhaseLobby)
    }
    s.Room.CurrentPrompt = nil
    s.Room.Submissions = make(map[string]string)
    s.Room.SubmissionOrder = nil
    s.Room.JudgeIndex = 0
    s.Room.WinningPlayerID = ""
    s.played = make(map[string]cards.ResponseCard)
    s.roundWinnerID = ""
    s.round = 0
    s.deck = nil
    for _, p := range s.Room.Players {
        p.Score = 0
        p.Hand = nil
    }
}

// dealAll tops every hand up to HandSize.
func (s *Session) dealAll() {
    for _, p := range s.Room.Players {
        for len(p.Hand) < s.Room.Config.HandSize {
            c, ok := s.draw()
            if !ok {
                break
            }
            p.Hand = append(p.Hand, c)
        }
    }
}

// draw pops the draw pile, reshuffling every catalog card not currently held
// when it runs dry.
func (s *Session) draw() (cards.ResponseCard, bool) {
    if len(s.deck) == 0 {
        held := make(map[string]bool)
        for _, p := range s.Room.Players {
            for _, c := range p.Hand {
                held[c.ID] = true
            }
        }
        for _, c := range s.played {
            held[c.ID] = true
        }
        pile := slices.DeleteFunc(s.catalog.AllResponseCards(), func(c cards.ResponseCard) bool { return held[c.ID] })
        s.catalog.Shuffle(len(pile), func(i, j int) { pile[i], pile[j] = pile[j], pile[i] })
        s.deck = pile
    }
    if len(s.deck) == 0 {
        return cards.ResponseCard{}, false
    }
    c := s.deck[len(s.deck)-1]
    s.deck = s.deck[:len(s.deck)-1]
    return c, true
}

type Reveal struct {
    CardID   string `json:"cardId"`
    Text     string `json:"text"`
    PlayerID string `json:"playerId,omitempty"` // hidden while judging
}

// RevealedSubmissions lists the round's cards in submission order. Authors are
// attached once the judge has picked.
func (s *Session) RevealedSubmissions() []Reveal {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.revealedLocked()
}

func (s *Session) revealedLocked() []Reveal {
    switch s.Room.Phase {
    case PhaseJudging, PhaseRoundOver, PhaseGameOver:
    default:
        return nil
    }
    showAuthors := s.Room.Phase != PhaseJudging
    out := make([]Reveal, 0, len(s.Room.SubmissionOrder))
    for _, pid := range s.Room.SubmissionOrder {
        c := s.played[pid]
        r := Reveal{CardID: c.ID, Text: c.Text}
        if showAuthors {
            r.PlayerID = pid
        }
        out = append(out, r)
    }
    return out
}

type PlayerView struct {
    ID        string `json:"id"`
    Name      string `json:"name"`
    Score     int    `json:"score"`
    IsHost    bool   `json:"isHost"`
    IsBot     bool   `json:"isBot"`
    Submitted bool   `json:"submitted"`
}

type You struct {
    PlayerID string               `json:"playerId"`
    IsHost   bool                 `json:"isHost"`
    IsJudge  bool                 `json:"isJudge"`
    Hand     []cards.ResponseCard `json:"hand"`
}

type View struct {
    RoomCode        string            `json:"roomCode"`
    Phase           Phase             `json:"phase"`
    Round           int               `json:"round"`
    Config          RoomConfig        `json:"config"`
    Players         []PlayerView      `json:"players"`
    Prompt          *cards.PromptCard `json:"prompt,omitempty"`
    JudgeID         string            `json:"judgeId,omitempty"`
    Revealed        []Reveal          `json:"revealed,omitempty"`
    RoundWinnerID   string            `json:"roundWinnerId,omitempty"`
    WinningPlayerID string            `json:"winningPlayerId,omitempty"`
    You             *You              `json:"you,omitempty"`
}

// View snapshots the room for one player. An unknown or empty token yields the
// public view without a hand.
func (s *Session) View(token string) View {
    s.mu.Lock()
    defer s.mu.Unlock()

    v := View{
        RoomCode:        s.Code,
        Phase:           s.Room.Phase,
        Round:           s.round,
        Config:          s.Room.Config,
        Players:         make([]PlayerView, 0, len(s.Room.Players)),
        Revealed:        s.revealedLocked(),
        RoundWinnerID:   s.roundWinnerID,
        WinningPlayerID: s.Room.WinningPlayerID,
    }
    if s.Room.CurrentPrompt != nil {
        prompt := *s.Room.CurrentPrompt
        v.Prompt = &prompt
    }
    var judgeID string
    if s.Room.Phase.InRound() {
        if j := s.Room.Judge(); j != nil {
            judgeID = j.ID
        }
    }
    v.JudgeID = judgeID
    for _, p := range s.Room.Players {
        _, submitted := s.Room.Submissions[p.ID]
        v.Players = append(v.Players, PlayerView{
            ID: p.ID, Name: p.Name, Score: p.Score, IsHost: p.IsHost, IsBot: p.IsBot, Submitted: submitted,
        })
    }
    if p, err := s.playerByToken(token); err == nil {
        v.You = &You{
            PlayerID: p.ID,
            IsHost:   p.IsHost,
            IsJudge:  p.ID == judgeID,
            Hand:     slices.Clone(p.Hand),
        }
    }
    return v
}

type BotTurn struct {
    Token    string
    PlayerID string
    Prompt   cards.PromptCard
    Hand     []cards.ResponseCard
}

// PendingBots lists bots that still owe a card this round.
func (s *Session) PendingBots() []BotTurn {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.Room.Phase != PhasePlaying || s.Room.CurrentPrompt == nil {
        return nil
    }
    var out []BotTurn
    for token, pid := range s.tokens {
        p := s.Room.Player(pid)
        if p == nil || !p.IsBot {
            continue
        }
        if _, ok := s.Room.Submissions[pid]; ok {
            continue
        }
        out = append(out, BotTurn{Token: token, PlayerID: pid, Prompt: *s.Room.CurrentPrompt, Hand: slices.Clone(p.Hand)})
    }
    return out
}
