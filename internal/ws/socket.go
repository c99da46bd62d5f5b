package ws

import (
    "context"
    "net/http"
    "strings"
    "sync"

    "github.com/gin-gonic/gin"
    socketio "github.com/googollee/go-socket.io"
    "github.com/rs/zerolog/log"

    "github.com/developers-against-humanity/dah/internal/ai"
    "github.com/developers-against-humanity/dah/internal/config"
    "github.com/developers-against-humanity/dah/internal/game"
)

type ConnCtx struct {
    Code  string
    Token string
}

type Server struct {
    RM     *game.RoomManager
    picker *ai.Picker
    export config.ExportConfig

    mu       sync.Mutex
    members  map[string]map[string]socketio.Conn // roomCode -> socketID -> Conn
    thinking map[string]bool                     // roomCode/playerID of bots waiting on the picker
}

func New(rm *game.RoomManager, picker *ai.Picker, export config.ExportConfig) *Server {
    return &Server{RM: rm, picker: picker, export: export, members: make(map[string]map[string]socketio.Conn), thinking: make(map[string]bool)}
}

type roomPayload struct {
    RoomCode string `json:"roomCode"`
    Name     string `json:"name"`
    Token    string `json:"token"`
}

type cardPayload struct {
    CardID string `json:"cardId"`
}

// Mount attaches Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
    io := socketio.NewServer(nil)

    io.OnConnect("/", func(s socketio.Conn) error {
        s.SetContext(&ConnCtx{})
        log.Info().Str("sid", s.ID()).Msg("socket connected")
        return nil
    })

    // room:create opens a lobby and seats the caller as host
    io.OnEvent("/", "room:create", func(s socketio.Conn, payload struct {
        Name   string          `json:"name"`
        Config game.RoomConfig `json:"config"`
    }) map[string]any {
        code, sess := srv.RM.CreateRoom(payload.Config)
        playerID, token, err := sess.Join(payload.Name)
        if err != nil {
            srv.RM.Remove(code)
            return srv.fail(s, err)
        }
        srv.attach(s, code, token)
        log.Info().Str("sid", s.ID()).Str("code", code).Str("playerId", playerID).Msg("room:create")
        srv.emitStateTo(code)
        return map[string]any{"roomCode": code, "playerId": playerID, "playerToken": token}
    })

    io.OnEvent("/", "room:join", srv.join)

    // room:resume (reconnection)
    io.OnEvent("/", "room:resume", srv.resume)

    io.OnEvent("/", "room:leave", func(s socketio.Conn) map[string]any {
        ctx, sess, err := srv.session(s)
        if err != nil {
            return srv.fail(s, err)
        }
        before := sess.Phase()
        if err := sess.Leave(ctx.Token); err != nil {
            return srv.fail(s, err)
        }
        srv.detach(s, ctx.Code)
        log.Info().Str("code", ctx.Code).Str("from", string(before)).Str("to", string(sess.Phase())).Msg("room:leave")
        srv.emitStateTo(ctx.Code)
        srv.playBots(ctx.Code, sess)
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "game:start", func(s socketio.Conn) map[string]any {
        ctx, sess, err := srv.session(s)
        if err != nil {
            return srv.fail(s, err)
        }
        if err := sess.Start(ctx.Token); err != nil {
            return srv.fail(s, err)
        }
        log.Info().Str("code", ctx.Code).Msg("game:start")
        srv.emitStateTo(ctx.Code)
        srv.playBots(ctx.Code, sess)
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "game:submit", func(s socketio.Conn, payload cardPayload) map[string]any {
        ctx, sess, err := srv.session(s)
        if err != nil {
            return srv.fail(s, err)
        }
        if err := sess.Submit(ctx.Token, payload.CardID); err != nil {
            return srv.fail(s, err)
        }
        log.Info().Str("code", ctx.Code).Str("cardId", payload.CardID).Msg("game:submit")
        srv.emitStateTo(ctx.Code)
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "game:pick", func(s socketio.Conn, payload cardPayload) map[string]any {
        ctx, sess, err := srv.session(s)
        if err != nil {
            return srv.fail(s, err)
        }
        winnerID, err := sess.Pick(ctx.Token, payload.CardID)
        if err != nil {
            return srv.fail(s, err)
        }
        log.Info().Str("code", ctx.Code).Str("playerId", winnerID).Str("phase", string(sess.Phase())).Msg("game:pick")
        srv.exportRound(ctx.Code, sess)
        srv.emitStateTo(ctx.Code)
        return map[string]any{"ok": true, "winnerId": winnerID}
    })

    io.OnEvent("/", "game:next", func(s socketio.Conn) map[string]any {
        ctx, sess, err := srv.session(s)
        if err != nil {
            return srv.fail(s, err)
        }
        if err := sess.NextRound(ctx.Token); err != nil {
            return srv.fail(s, err)
        }
        log.Info().Str("code", ctx.Code).Int("round", sess.Round()).Msg("game:next")
        srv.emitStateTo(ctx.Code)
        srv.playBots(ctx.Code, sess)
        return map[string]any{"ok": true}
    })

    io.OnEvent("/", "game:reset", func(s socketio.Conn) map[string]any {
        ctx, sess, err := srv.session(s)
        if err != nil {
            return srv.fail(s, err)
        }
        if err := sess.Reset(ctx.Token); err != nil {
            return srv.fail(s, err)
        }
        log.Info().Str("code", ctx.Code).Msg("game:reset")
        srv.emitStateTo(ctx.Code)
        return map[string]any{"ok": true}
    })

    io.OnError("/", func(s socketio.Conn, e error) {
        log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
    })
    io.OnDisconnect("/", func(s socketio.Conn, reason string) {
        if ctx, ok := s.Context().(*ConnCtx); ok && ctx.Code != "" {
            srv.removeMember(ctx.Code, s)
        }
        log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
    })

    go func() {
        if err := io.Serve(); err != nil {
            log.Error().Err(err).Msg("socket.io serve")
        }
    }()

    r.GET("/socket.io/*any", gin.WrapH(io))
    r.POST("/socket.io/*any", gin.WrapH(io))

    // Basic CORS preflight for Socket.IO POST
    r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
        c.Header("Access-Control-Allow-Origin", "*")
        c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
        c.Header("Access-Control-Allow-Headers", "Content-Type")
        c.Status(http.StatusNoContent)
    })

    return io
}

func (srv *Server) join(s socketio.Conn, payload roomPayload) map[string]any {
    code := strings.ToUpper(strings.TrimSpace(payload.RoomCode))
    sess, err := srv.RM.Get(code)
    if err != nil {
        return srv.fail(s, err)
    }
    playerID, token, err := sess.Join(payload.Name)
    if err != nil {
        return srv.fail(s, err)
    }
    srv.attach(s, code, token)
    log.Info().Str("sid", s.ID()).Str("code", code).Str("playerId", playerID).Msg("room:join")
    srv.emitStateTo(code)
    return map[string]any{"roomCode": code, "playerId": playerID, "playerToken": token}
}

func (srv *Server) resume(s socketio.Conn, payload roomPayload) map[string]any {
    code := strings.ToUpper(strings.TrimSpace(payload.RoomCode))
    sess, err := srv.RM.Get(code)
    if err != nil {
        return srv.fail(s, err)
    }
    playerID := sess.PlayerID(payload.Token)
    if playerID == "" {
        return srv.fail(s, game.ErrUnknownPlayer)
    }
    srv.attach(s, code, payload.Token)
    log.Info().Str("sid", s.ID()).Str("code", code).Str("playerId", playerID).Msg("room:resume")
    s.Emit("room:state", sess.View(payload.Token))
    return map[string]any{"ok": true, "roomCode": code, "playerId": playerID}
}

func (srv *Server) attach(s socketio.Conn, code, token string) {
    if prev, ok := s.Context().(*ConnCtx); ok && prev.Code != "" && prev.Code != code {
        srv.detach(s, prev.Code)
    }
    s.SetContext(&ConnCtx{Code: code, Token: token})
    s.Join(code)
    srv.addMember(code, s)
}

func (srv *Server) detach(s socketio.Conn, code string) {
    s.Leave(code)
    srv.removeMember(code, s)
    s.SetContext(&ConnCtx{})
}

func (srv *Server) session(s socketio.Conn) (*ConnCtx, *game.Session, error) {
    ctx, ok := s.Context().(*ConnCtx)
    if !ok || ctx.Code == "" {
        return nil, nil, game.ErrRoomNotFound
    }
    sess, err := srv.RM.Get(ctx.Code)
    if err != nil {
        return nil, nil, err
    }
    return ctx, sess, nil
}

func (srv *Server) addMember(code string, c socketio.Conn) {
    srv.mu.Lock()
    defer srv.mu.Unlock()
    if srv.members[code] == nil {
        srv.members[code] = make(map[string]socketio.Conn)
    }
    srv.members[code][c.ID()] = c
}

func (srv *Server) removeMember(code string, c socketio.Conn) {
    srv.mu.Lock()
    defer srv.mu.Unlock()
    if m := srv.members[code]; m != nil {
        delete(m, c.ID())
        if len(m) == 0 {
            delete(srv.members, code)
        }
    }
}

func (srv *Server) conns(code string) []socketio.Conn {
    srv.mu.Lock()
    defer srv.mu.Unlock()
    out := make([]socketio.Conn, 0, len(srv.members[code]))
    for _, c := range srv.members[code] {
        out = append(out, c)
    }
    return out
}

// emitStateTo sends every connection in the room its own view.
func (srv *Server) emitStateTo(code string) {
    sess, err := srv.RM.Get(code)
    if err != nil {
        return
    }
    for _, c := range srv.conns(code) {
        token := ""
        if ctx, ok := c.Context().(*ConnCtx); ok {
            token = ctx.Token
        }
        c.Emit("room:state", sess.View(token))
    }
}

// playBots submits a card for every bot still owing one, in the background.
// A bot already waiting on the picker is not asked again.
func (srv *Server) playBots(code string, sess *game.Session) {
    turns := srv.claimBotTurns(code, sess.PendingBots())
    if len(turns) == 0 {
        return
    }
    go func() {
        for _, turn := range turns {
            srv.playBot(code, sess, turn)
        }
        srv.emitStateTo(code)
    }()
}

func (srv *Server) claimBotTurns(code string, turns []game.BotTurn) []game.BotTurn {
    srv.mu.Lock()
    defer srv.mu.Unlock()
    out := turns[:0]
    for _, turn := range turns {
        key := code + "/" + turn.PlayerID
        if srv.thinking[key] {
            continue
        }
        srv.thinking[key] = true
        out = append(out, turn)
    }
    return out
}

func (srv *Server) playBot(code string, sess *game.Session, turn game.BotTurn) {
    defer func() {
        srv.mu.Lock()
        delete(srv.thinking, code+"/"+turn.PlayerID)
        srv.mu.Unlock()
    }()
    card, err := srv.picker.Choose(context.Background(), turn.Prompt, turn.Hand)
    if err != nil {
        log.Warn().Err(err).Str("code", code).Str("playerId", turn.PlayerID).Msg("bot could not choose")
        return
    }
    if err := sess.Submit(turn.Token, card.ID); err != nil {
        // the round moved on while the bot was thinking
        log.Debug().Err(err).Str("code", code).Str("playerId", turn.PlayerID).Msg("bot submit skipped")
        return
    }
    log.Info().Str("code", code).Str("playerId", turn.PlayerID).Msg("bot:submit")
}

func (srv *Server) exportRound(code string, sess *game.Session) {
    if !srv.export.Enabled {
        return
    }
    if err := game.ExportRound(sess, srv.export.File); err != nil {
        log.Error().Err(err).Str("code", code).Msg("failed to export round")
        return
    }
    log.Info().Str("code", code).Str("file", srv.export.File).Msg("exported round")
}

func (srv *Server) fail(s socketio.Conn, err error) map[string]any {
    code := game.ErrorCode(err)
    s.Emit("error", map[string]any{"code": code, "message": err.Error()})
    return map[string]any{"error": code}
}
