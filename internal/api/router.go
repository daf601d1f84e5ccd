package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codecurser/park-vision-control-system/internal/api/handler"
	"github.com/codecurser/park-vision-control-system/internal/api/middleware"
	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/metrics"
	"github.com/codecurser/park-vision-control-system/internal/service"
)

func SetupRouter(as *service.AuthService, es *service.EntryService, lprService *service.LPRService,
	authMw *middleware.AuthMiddleware, wsManager *handler.WebSocketManager, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(m.GinMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "entries": es.Log().Len()})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// dashboards subscribe without a token
	wsHandler := handler.NewWebSocketHandler(wsManager)
	r.GET("/ws", wsHandler.HandleWebSocket)

	authHandler := handler.NewAuthHandler(as)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		v1.GET("/me", authHandler.Me)

		captureH := handler.NewCaptureHandler(lprService)
		captureRoutes := v1.Group("/captures")
		captureRoutes.Use(authMw.AuthorizeRole(domain.RoleAdmin, domain.RoleOperator))
		{
			captureRoutes.POST("", captureH.Capture)
			captureRoutes.POST("/preview", captureH.Preview)
		}

		entryH := handler.NewEntryHandler(es)
		entryRoutes := v1.Group("/entries")
		{
			entryRoutes.GET("", entryH.List)
			entryRoutes.GET("/summary", entryH.Summary)
			entryRoutes.GET("/export", entryH.Export)
			entryRoutes.POST("/refresh", authMw.AuthorizeRole(domain.RoleAdmin), entryH.Refresh)
		}
	}
	return r
}
