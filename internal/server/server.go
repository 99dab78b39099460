// Package server exposes the sync layer over HTTP. Routing and handlers use
// Gin; every dependency is carried on the [Server] struct so nothing reaches
// for globals.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/bookboard-app/bookboard/internal/auth"
	"github.com/bookboard-app/bookboard/internal/images"
	"github.com/bookboard-app/bookboard/internal/sync"
)

// Server bundles the services the HTTP handlers dispatch to.
type Server struct {
	auth     *auth.Service
	posts    *sync.PostService
	profiles *sync.ProfileService
	images   images.Store
	log      *slog.Logger
}

// New creates a Server. images may be nil, in which case upload endpoints
// return 503.
func New(authSvc *auth.Service, posts *sync.PostService, profiles *sync.ProfileService, imgStore images.Store, logger *slog.Logger) *Server {
	return &Server{
		auth:     authSvc,
		posts:    posts,
		profiles: profiles,
		images:   imgStore,
		log:      logger,
	}
}

// Router builds the Gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:8080"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/api/signup", s.signup)
	router.POST("/api/login", s.login)

	protected := router.Group("/api")
	protected.Use(s.requireAuth())

	protected.GET("/posts", s.listPosts)
	protected.POST("/posts", s.createPost)
	protected.POST("/posts/refresh", s.refreshPosts)
	protected.GET("/posts/mine", s.myPosts)
	protected.GET("/posts/:id", s.getPost)
	protected.PUT("/posts/:id", s.updatePost)
	protected.DELETE("/posts/:id", s.deletePost)

	protected.GET("/me", s.getMe)
	protected.PUT("/me", s.updateMe)
	protected.GET("/users/:id", s.getProfile)

	protected.POST("/images", s.uploadImage)
	protected.DELETE("/images", s.deleteImage)

	return router
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
