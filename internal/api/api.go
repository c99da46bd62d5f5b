package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/developers-against-humanity/dah/internal/cards"
	"github.com/developers-against-humanity/dah/internal/game"
)

type API struct {
	RM        *game.RoomManager
	Catalog   *cards.Catalog
	PublicURL string
}

func New(rm *game.RoomManager, catalog *cards.Catalog, publicURL string) *API {
	return &API{RM: rm, Catalog: catalog, PublicURL: strings.TrimRight(publicURL, "/")}
}

// NewEngine returns a gin engine with recovery, request logging and the API routes.
func (a *API) NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	a.Register(r)
	return r
}

// RequestLogger logs one line per request, skipping socket.io polling noise.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().Str("method", c.Request.Method).Str("path", path).Int("status", c.Writer.Status()).Dur("dur", time.Since(start)).Msg("http")
	}
}

func (a *API) Register(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	cg := r.Group("/api/cards")
	cg.GET("/prompts", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.Catalog.AllPromptCards())
	})
	cg.GET("/responses", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.Catalog.AllResponseCards())
	})
	cg.GET("/prompts/random", func(c *gin.Context) {
		card, err := a.Catalog.RandomPromptCard()
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, card)
	})
	cg.GET("/responses/random", func(c *gin.Context) {
		card, err := a.Catalog.RandomResponseCard()
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, card)
	})

	rg := r.Group("/api/rooms")
	type createReq struct {
		Config game.RoomConfig `json:"config"`
	}
	rg.POST("", func(c *gin.Context) {
		var req createReq
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_config"})
				return
			}
		}
		code, _ := a.RM.CreateRoom(req.Config)
		log.Info().Str("code", code).Msg("room created")
		c.JSON(http.StatusCreated, gin.H{"roomCode": code})
	})
	rg.GET("/:code", func(c *gin.Context) {
		sess, err := a.RM.Get(strings.ToUpper(strings.TrimSpace(c.Param("code"))))
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sess.View(""))
	})
	rg.GET("/:code/qr", func(c *gin.Context) {
		code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
		if _, err := a.RM.Get(code); err != nil {
			a.fail(c, err)
			return
		}
		png, err := qrcode.Encode(a.JoinURL(code), qrcode.Medium, 320)
		if err != nil {
			log.Error().Err(err).Str("code", code).Msg("failed to encode qr code")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr_failed"})
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/png", png)
	})
}

// JoinURL is the link players follow to join a room.
func (a *API) JoinURL(code string) string {
	return fmt.Sprintf("%s/rooms/%s", a.PublicURL, code)
}

func (a *API) fail(c *gin.Context, err error) {
	code := game.ErrorCode(err)
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cards.ErrNoCards):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": code})
}
