package game

import (
    "context"
    "errors"
    "math/rand/v2"
    "sync"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/developers-against-humanity/dah/internal/cards"
)

var (
    ErrRoomNotFound      = errors.New("room not found")
    ErrUnknownPlayer     = errors.New("unknown player")
    ErrNotHost           = errors.New("not host")
    ErrNotJudge          = errors.New("not judge")
    ErrInvalidPhase      = errors.New("invalid phase for action")
    ErrInvalidName       = errors.New("invalid name")
    ErrNameTaken         = errors.New("name taken")
    ErrRoomFull          = errors.New("room full")
    ErrNotEnoughPlayers  = errors.New("not enough players")
    ErrJudgeCannotSubmit = errors.New("judge cannot submit")
    ErrAlreadySubmitted  = errors.New("already submitted")
    ErrCardNotInHand     = errors.New("card not in hand")
    ErrNoSubmission      = errors.New("no such submission")
)

var errorCodes = []struct {
    err  error
    code string
}{
    {ErrRoomNotFound, "room_not_found"},
    {ErrUnknownPlayer, "unauthorized"},
    {ErrNotHost, "not_host"},
    {ErrNotJudge, "not_judge"},
    {ErrInvalidPhase, "invalid_phase"},
    {ErrInvalidName, "invalid_name"},
    {ErrNameTaken, "name_taken"},
    {ErrRoomFull, "room_full"},
    {ErrNotEnoughPlayers, "not_enough_players"},
    {ErrJudgeCannotSubmit, "judge_cannot_submit"},
    {ErrAlreadySubmitted, "already_submitted"},
    {ErrCardNotInHand, "card_not_in_hand"},
    {ErrNoSubmission, "no_submission"},
    {cards.ErrNoCards, "no_cards"},
}

// ErrorCode maps err to the stable snake_case code sent to clients.
func ErrorCode(err error) string {
    for _, ec := range errorCodes {
        if errors.Is(err, ec.err) {
            return ec.code
        }
    }
    return "bad_request"
}

// BotName is the house-rule bot seated when RoomConfig.Bot is set.
const BotName = "Rando Cardrissian"

type RoomManager struct {
    mu       sync.RWMutex
    sessions map[string]*Session
    catalog  *cards.Catalog
    defaults RoomConfig
}

func NewRoomManager(catalog *cards.Catalog, defaults RoomConfig) *RoomManager {
    return &RoomManager{
        sessions: make(map[string]*Session),
        catalog:  catalog,
        defaults: defaults.Normalize(),
    }
}

// CreateRoom opens a new lobby. Zero fields in cfg fall back to the manager defaults.
func (rm *RoomManager) CreateRoom(cfg RoomConfig) (string, *Session) {
    cfg = rm.merge(cfg)

    rm.mu.Lock()
    code := randomCode(5)
    for rm.sessions[code] != nil {
        code = randomCode(5)
    }
    s := newSession(code, cfg, rm.catalog)
    rm.sessions[code] = s
    rm.mu.Unlock()

    if cfg.Bot {
        if _, _, err := s.AddBot(BotName); err != nil {
            log.Warn().Err(err).Str("code", code).Msg("could not seat bot")
        }
    }
    return code, s
}

func (rm *RoomManager) merge(cfg RoomConfig) RoomConfig {
    if cfg.MaxPlayers == 0 {
        cfg.MaxPlayers = rm.defaults.MaxPlayers
    }
    if cfg.WinningScore == 0 {
        cfg.WinningScore = rm.defaults.WinningScore
    }
    if cfg.MinPlayers == 0 {
        cfg.MinPlayers = rm.defaults.MinPlayers
    }
    if cfg.HandSize == 0 {
        cfg.HandSize = rm.defaults.HandSize
    }
    return cfg.Normalize()
}

func (rm *RoomManager) Get(code string) (*Session, error) {
    rm.mu.RLock()
    defer rm.mu.RUnlock()
    s := rm.sessions[code]
    if s == nil {
        return nil, ErrRoomNotFound
    }
    return s, nil
}

func (rm *RoomManager) Remove(code string) {
    rm.mu.Lock()
    defer rm.mu.Unlock()
    delete(rm.sessions, code)
}

func (rm *RoomManager) Len() int {
    rm.mu.RLock()
    defer rm.mu.RUnlock()
    return len(rm.sessions)
}

// Reap removes rooms with no activity for longer than idle and returns their codes.
func (rm *RoomManager) Reap(idle time.Duration) []string {
    cutoff := time.Now().UTC().Add(-idle)
    rm.mu.Lock()
    defer rm.mu.Unlock()
    var removed []string
    for code, s := range rm.sessions {
        if s.LastActive().Before(cutoff) {
            delete(rm.sessions, code)
            removed = append(removed, code)
        }
    }
    return removed
}

// Run reaps idle rooms until ctx is done.
func (rm *RoomManager) Run(ctx context.Context, idle time.Duration) {
    if idle <= 0 {
        return
    }
    ticker := time.NewTicker(idle / 2)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            for _, code := range rm.Reap(idle) {
                log.Info().Str("code", code).Msg("reaped idle room")
            }
        }
    }
}

func randomCode(n int) string {
    letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
    b := make([]rune, n)
    for i := range b {
        b[i] = letters[rand.IntN(len(letters))]
    }
    return string(b)
}
