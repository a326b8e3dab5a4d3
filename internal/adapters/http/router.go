package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetd/internal/adapters/widget"
	"github.com/dkeye/meetd/internal/app/orch"
	"github.com/dkeye/meetd/internal/config"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags the UI shell with a stable cookie so logs can
// correlate requests from one shell instance.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, bridge *widget.Bridge) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("MeetSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	h := &Handlers{Orch: o}

	api := r.Group("/api")

	api.GET("/rooms", h.ListRooms)
	api.POST("/rooms", h.CreateRoom)
	api.POST("/rooms/refresh", h.RefreshRooms)
	api.POST("/rooms/dismiss-error", h.DismissCatalogError)
	api.DELETE("/rooms/:name", h.DeleteRoom)

	api.POST("/session/join", h.JoinByCode)
	api.GET("/session", h.Session)
	api.GET("/session/link", h.MeetingLink)
	api.POST("/session/minimize", h.Minimize)
	api.POST("/session/maximize", h.Maximize)
	api.DELETE("/session", h.EndMeeting)

	api.POST("/session/participants/:id/audio", h.SetParticipantAudio)
	api.DELETE("/session/participants/:id", h.RemoveParticipant)

	r.GET("/ws/widget", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("widget host endpoint hit")
		bridge.HandleHost(ctx, c)
	})

	return r
}
