// Package server assembles the HTTP API of a world.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/roster/pkg/roster/actors"
	"github.com/mikepea/roster/pkg/roster/admin"
	"github.com/mikepea/roster/pkg/roster/auth"
	"github.com/mikepea/roster/pkg/roster/config"
	"github.com/mikepea/roster/pkg/roster/documents"
	"github.com/mikepea/roster/pkg/roster/group"
	"github.com/mikepea/roster/pkg/roster/groups"
	"github.com/mikepea/roster/pkg/roster/importexport"
	"github.com/mikepea/roster/pkg/roster/sessions"
	"github.com/mikepea/roster/pkg/roster/settings"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Server holds the services behind the API.
type Server struct {
	DB       *gorm.DB
	Sessions *sessions.Registry
	Store    *documents.Store
	Settings *settings.Store
	Tokens   *auth.Tokens
	Imports  *importexport.Service

	logger *zap.Logger
	engine *gin.Engine
}

// New wires the services and routes for one world.
func New(db *gorm.DB, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := sessions.NewRegistry()
	prefs := settings.NewStore(db)
	store := documents.NewStore(db, registry, logger.Named("documents"))
	store.OnUpdate(group.PrimaryPartyReaction(prefs, registry, logger.Named("primary-party")))

	s := &Server{
		DB:       db,
		Sessions: registry,
		Store:    store,
		Settings: prefs,
		Tokens:   auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Imports:  importexport.NewService(store, logger.Named("import")),
		logger:   logger,
	}
	s.engine = s.routes(cfg.Debug)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(requestLogger(s.logger), recovery(s.logger))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":   "ok",
				"service":  "roster",
				"sessions": len(s.Sessions.List()),
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(s.DB, s.Tokens, s.Sessions)
		authHandler.RegisterRoutes(api.Group("/auth"))

		authenticated := api.Group("", auth.AuthMiddleware(s.Tokens, s.Sessions))

		actorsHandler := actors.NewHandler(s.DB)
		actorsHandler.RegisterRoutes(authenticated.Group("/actors"))

		groupsHandler := groups.NewHandler(s.DB, s.Store, s.Settings, s.logger.Named("groups"))
		groupsHandler.RegisterRoutes(authenticated.Group("/groups"))
		groupsHandler.RegisterSettingsRoutes(authenticated.Group("/settings"))

		importExportHandler := importexport.NewHandler(s.Imports, s.logger.Named("import"))
		importExportHandler.RegisterRoutes(authenticated)

		// Admin routes (gamemaster only)
		adminHandler := admin.NewHandler(s.DB, s.Sessions)
		adminHandler.RegisterRoutes(authenticated.Group("/admin", auth.RequireGamemaster()))
	}

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if sessionID, ok := auth.GetSessionID(c); ok {
			fields = append(fields, zap.String("session", sessionID))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		logger.Error("panic serving request", zap.String("path", c.Request.URL.Path), zap.Any("panic", err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}
