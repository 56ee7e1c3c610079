package http

import (
	"context"

	"github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/auth"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SetupRouter(ctx context.Context, cfg config.ServerConfig, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	ctrl := signal.NewSignalWSController(orch, signal.Options{
		ReadLimit:    cfg.ReadLimit,
		PingPeriod:   cfg.PingPeriod,
		SendBuffer:   cfg.SendBuffer,
		RateLimit:    cfg.RateLimit,
		RateInterval: cfg.RateInterval,
	})
	rooms := &roomHandlers{orch: orch}

	api := r.Group("/api")
	api.Use(auth.Middleware(cfg.Secret))

	api.GET("/rooms", rooms.list)
	api.POST("/rooms", rooms.create)
	api.POST("/rooms/:id/join", rooms.join)
	api.POST("/rooms/:id/leave", rooms.leave)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
