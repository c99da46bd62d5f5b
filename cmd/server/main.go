package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "strconv"
    "strings"
    "syscall"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
    zerologlog "github.com/rs/zerolog/log"
    "github.com/spf13/cobra"

    "github.com/developers-against-humanity/dah/internal/ai"
    "github.com/developers-against-humanity/dah/internal/api"
    "github.com/developers-against-humanity/dah/internal/cards"
    "github.com/developers-against-humanity/dah/internal/config"
    "github.com/developers-against-humanity/dah/internal/game"
    "github.com/developers-against-humanity/dah/internal/ws"
)

const version = "v0.1.0-dev"

func main() {
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    if err := newCmd().ExecuteContext(ctx); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}

func newCmd() *cobra.Command {
    var configPath string

    cmd := &cobra.Command{
        Use:           "dah",
        Short:         "Developers Against Humanity game server",
        Long:          "Developers Against Humanity game server.\n\nEvery setting can also be given as an environment variable (PORT, CARDS_DIR, LOG_LEVEL, AI_PROVIDER, ...)\nor in a YAML/TOML/JSON file passed with --config.",
        Args:          cobra.NoArgs,
        Version:       version,
        SilenceErrors: true,
        SilenceUsage:  true,
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := config.Load(configPath)
            if err != nil {
                return err
            }
            if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
                return err
            }
            if err := cfg.Validate(); err != nil {
                return err
            }
            setupLogging(cfg.LogLevel, cfg.LogFormat)
            return serve(cmd.Context(), cfg)
        },
    }

    fs := cmd.Flags()
    fs.StringVarP(&configPath, "config", "c", "", "path to a config file (yaml, toml or json)")
    fs.IntP("port", "p", 8080, "port to listen on (env: PORT)")
    fs.String("cards-dir", "cards", "directory holding the card files (env: CARDS_DIR)")
    fs.String("log-level", "info", "log level: debug, info, warn, error (env: LOG_LEVEL)")
    fs.BoolP("verbose", "v", false, "shorthand for --log-level debug")

    cmd.CompletionOptions.HiddenDefaultCmd = true
    cmd.SetHelpCommand(&cobra.Command{Hidden: true})
    cmd.SetVersionTemplate("dah {{.Version}}\n")
    return cmd
}

func setupLogging(level, format string) {
    zerolog.TimeFieldFormat = time.RFC3339
    lvl, err := zerolog.ParseLevel(strings.ToLower(level))
    if err != nil || lvl == zerolog.NoLevel {
        lvl = zerolog.InfoLevel
    }
    zerolog.SetGlobalLevel(lvl)
    if strings.EqualFold(format, "json") {
        zerologlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
        return
    }
    cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
    zerologlog.Logger = zerologlog.Output(cw)
}

func serve(ctx context.Context, cfg config.Config) error {
    catalog := cards.Load(os.DirFS(cfg.Cards.Dir), cfg.Cards.PromptFile, cfg.Cards.ResponseFile)

    picker, err := ai.PickerFromConfig(ai.Config{
        Provider:      cfg.AI.Provider,
        Model:         cfg.AI.Model,
        SystemPrompt:  cfg.AI.SystemPrompt,
        OpenAIKey:     cfg.AI.OpenAIKey,
        OpenAIBaseURL: cfg.AI.OpenAIBaseURL,
        OllamaHost:    cfg.AI.OllamaHost,
    })
    if err != nil {
        return err
    }

    rm := game.NewRoomManager(catalog, game.RoomConfig{
        MaxPlayers:   cfg.Room.MaxPlayers,
        WinningScore: cfg.Room.WinningScore,
        MinPlayers:   cfg.Room.MinPlayers,
        HandSize:     cfg.Room.HandSize,
    })
    go rm.Run(ctx, cfg.Room.IdleTimeout)

    gin.SetMode(gin.ReleaseMode)
    r := api.New(rm, catalog, cfg.PublicURL).NewEngine()
    io := ws.New(rm, picker, cfg.Export).Mount(r)
    defer io.Close()

    srv := &http.Server{
        Addr:              ":" + strconv.Itoa(cfg.Port),
        Handler:           r,
        ReadHeaderTimeout: 10 * time.Second,
        IdleTimeout:       10 * time.Minute,
    }

    errc := make(chan error, 1)
    go func() {
        zerologlog.Info().
            Str("addr", srv.Addr).
            Int("prompts", catalog.PromptCount()).
            Int("responses", catalog.ResponseCount()).
            Str("ai", cfg.AI.Provider).
            Msg("listening")
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            errc <- err
        }
        close(errc)
    }()

    select {
    case err := <-errc:
        return err
    case <-ctx.Done():
    }
    zerologlog.Info().Msg("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    return srv.Shutdown(shutdownCtx)
}
