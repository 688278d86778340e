// Package api is the HTTP surface: Gin routes, bearer-token auth, and
// the JSON wire shapes the frontend consumes.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"querydeck/internal/auth"
	"querydeck/internal/chat"
	"querydeck/internal/config"
	"querydeck/internal/project"
	"querydeck/internal/queue"
)

type Deps struct {
	Config   *config.Config
	Identity *auth.Client
	Verifier *auth.Verifier
	Denylist *auth.Denylist
	Projects *project.Service
	Chat     *chat.Orchestrator
	Limiter  *queue.RateLimiter
	Logger   zerolog.Logger
}

func SetupRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(d.Logger))

	corsCfg := cors.DefaultConfig()
	if len(d.Config.HTTP.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = d.Config.HTTP.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsCfg))

	router.GET(d.Config.HTTP.HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET(d.Config.HTTP.MetricsPath, gin.WrapH(promhttp.Handler()))

	authHandler := NewAuthHandler(d.Identity, d.Denylist, d.Logger)
	projectHandler := NewProjectHandler(d.Projects, d.Logger)
	chatHandler := NewChatHandler(d.Chat, d.Limiter, d.Logger)

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/signup", authHandler.SignUp)
		authRoutes.POST("/login", authHandler.SignIn)
	}

	v1 := router.Group("/api/v1")
	v1.Use(RequireAuth(d.Verifier, d.Denylist, d.Logger))
	{
		v1.POST("/auth/logout", authHandler.SignOut)

		v1.GET("/projects", projectHandler.List)
		v1.POST("/projects", projectHandler.Create)
		v1.GET("/projects/:id", projectHandler.Get)
		v1.DELETE("/projects/:id", projectHandler.Delete)
		v1.GET("/projects/:id/connection", projectHandler.Connection)
		v1.PATCH("/projects/:id/columns/:column", projectHandler.ToggleColumn)
		v1.PUT("/projects/:id/card-design", projectHandler.SaveCardDesign)

		v1.POST("/projects/:id/chat", chatHandler.Ask)
	}

	return router
}
