package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cdhsearch/internal/config"
	DB "cdhsearch/internal/db"
	"cdhsearch/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	router *gin.Engine
	db     *DB.DB
	conf   *config.Config
	http   *http.Server
}

// New creates a new server instance
func New(db *DB.DB, conf *config.Config) *Server {
	if conf.Server.Mode != "" {
		gin.SetMode(conf.Server.Mode)
	}
	s := &Server{
		db:     db,
		conf:   conf,
		router: gin.New(),
	}
	s.router.MaxMultipartMemory = conf.Server.MaxUploadMB << 20
	s.router.Use(gin.Recovery(), requestLogger(), s.limitBody())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHealthCheck())

	s.router.GET("/v1/dataset", s.handleGetDataset())
	s.router.POST("/v1/dataset", s.handleLoadDataset())
	s.router.DELETE("/v1/dataset", s.handleResetDataset())
	s.router.POST("/v1/dataset/images", s.handleAddImage())

	s.router.POST("/v1/search", s.handleSearch())
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("http server shutting down")
		return s.http.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infow("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

func (s *Server) limitBody() gin.HandlerFunc {
	limit := s.conf.Server.MaxUploadMB << 20
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
