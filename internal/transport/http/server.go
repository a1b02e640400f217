package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/causalchat/server/internal/auth"
	"github.com/causalchat/server/internal/config"
	"github.com/causalchat/server/internal/core"
	"github.com/causalchat/server/internal/store"
)

// NewServer builds the HTTP server: the causal-chat websocket endpoint plus
// the REST surface around it (auth, room listing, user search).
func NewServer(hub *core.Hub, authService *auth.Service, userStore store.UserStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, logger, cfg.RateLimitPerSecond, cfg.RateLimitBurst)))

	apiHandlers := NewAPIHandlers(authService, logger)
	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)
		api.POST("/guest", apiHandlers.GuestLogin)
	}

	roomHandlers := NewRoomHandlers(hub, logger)
	userHandlers := NewUserHandlers(userStore, logger)
	authed := router.Group("/api")
	authed.Use(AuthMiddleware(authService, logger))
	{
		authed.GET("/rooms", roomHandlers.ListRooms)
		authed.POST("/rooms", roomHandlers.CreateRoom)
		authed.GET("/users/search", userHandlers.SearchUsers)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
