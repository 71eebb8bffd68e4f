package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mapin/internal/infra/config"
	"mapin/internal/infra/obs"
	"mapin/internal/infra/ratelimit"
)

type Handlers struct {
	Auth           AuthHTTP
	Chat           ChatHTTP
	Event          EventHTTP
	Media          MediaHTTP
	Link           LinkHTTP
	Social         SocialHTTP
	WS             WSHTTP
	AuthMiddleware gin.HandlerFunc
	Limiter        *ratelimit.Limiter
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sendLimit := h.Limiter.Middleware("send_message", ratelimit.Limit{Requests: 30, Window: time.Minute}, principalKey)
	uploadLimit := h.Limiter.Middleware("media_upload", ratelimit.Limit{Requests: 10, Window: time.Minute}, principalKey)

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.GET("/auth/me", h.Auth.Me)
		api.PUT("/auth/me", h.Auth.UpdateProfile)
		api.GET("/users/:id", h.Auth.Profile)
	}
	if h.Chat != nil {
		chatGroup := api.Group("/conversations")
		chatGroup.GET("", h.Chat.ListMyConversations)
		chatGroup.POST("", h.Chat.CreateConversation)
		chatGroup.GET("/:id", h.Chat.GetConversation)
		chatGroup.POST("/:id/join", h.Chat.JoinConversation)
		chatGroup.POST("/:id/leave", h.Chat.LeaveConversation)
		chatGroup.GET("/:id/messages", h.Chat.ListMessages)
		chatGroup.POST("/:id/messages", sendLimit, h.Chat.SendMessage)
	}
	if h.Event != nil {
		eventGroup := api.Group("/events")
		eventGroup.GET("", h.Event.List)
		eventGroup.POST("", h.Event.Create)
		eventGroup.GET("/:id", h.Event.Get)
		eventGroup.POST("/:id/join", h.Event.Join)
		eventGroup.POST("/:id/leave", h.Event.Leave)
		eventGroup.GET("/:id/route", h.Event.Route)
	}
	if h.Media != nil {
		api.POST("/media", uploadLimit, h.Media.Upload)
	}
	if h.Link != nil {
		api.GET("/links/resolve", h.Link.Resolve)
	}
	if h.Social != nil {
		socialGroup := api.Group("/friends")
		socialGroup.POST("/requests", h.Social.SendRequest)
		socialGroup.POST("/requests/:id/accept", h.Social.Accept)
		socialGroup.POST("/requests/:id/decline", h.Social.Decline)
		socialGroup.GET("/requests", h.Social.Incoming)
		socialGroup.GET("", h.Social.Friends)
	}
	if h.WS != nil {
		ws := router.Group("/ws")
		ws.GET("/conversations", h.WS.ObserveConversations)
		ws.GET("/conversations/:id/messages", h.WS.ObserveMessages)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

// principalKey buckets rate limits by user when authenticated, client IP
// otherwise.
func principalKey(c *gin.Context) string {
	if p, ok := currentPrincipal(c); ok {
		return p.ID
	}
	return c.ClientIP()
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
