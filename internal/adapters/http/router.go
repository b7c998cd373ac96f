package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nstepura/Ring/internal/adapters/signal"
	"github.com/nstepura/Ring/internal/config"
)

func SetupRouter(cfg *config.Config, ctl *signal.Controller, api *API) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	index := func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	}
	// Client-side routed pages all serve the same shell.
	r.GET("/", index)
	r.GET("/call/:room_id", index)
	r.GET("/init_private", index)

	r.GET("/ws/tg/:room_id/:init_data", ctl.HandleAuthenticated)
	r.GET("/ws/private/:room_id", ctl.HandlePrivate)

	r.POST("/create_private_room", api.CreatePrivateRoom)
	r.GET("/history/:init_data", api.GetHistory)
	r.POST("/history/:init_data", api.AppendHistory)
	r.POST("/log", api.ClientLog)

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
