package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nexuschat/nexus-relay/internal/auth"
	"github.com/nexuschat/nexus-relay/internal/config"
	"github.com/nexuschat/nexus-relay/internal/core"
	"github.com/nexuschat/nexus-relay/internal/store"
)

// NewServer builds the HTTP server: health, REST history fetch and the
// WebSocket relay endpoint.
func NewServer(registry *core.Registry, authCfg *auth.Config, st store.MessageStore, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	historyHandlers := NewHistoryHandlers(st, logger)
	api := router.Group("/api")
	api.Use(AuthMiddleware(authCfg, logger))
	api.GET("/history", historyHandlers.GetHistory)

	wsHandler := NewWSHandler(registry, authCfg, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
