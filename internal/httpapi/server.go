package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/monorkin/nightscout-watch-monitor/internal/models"
)

const (
	REQUEST_TIMEOUT  = 10 * time.Second
	SHUTDOWN_TIMEOUT = 10 * time.Second
)

// Store is the read side of the reading database.
type Store interface {
	FindSite(identifier string) (*models.Site, error)
	ListSites() ([]models.Site, error)
	LatestReading(siteID uint) (*models.Reading, error)
	ReadingsBetween(siteID uint, from, to time.Time) ([]models.Reading, error)
}

// Server bundles the router and its dependencies.
type Server struct {
	addr   string
	store  Store
	engine *gin.Engine
	clock  func() time.Time
	logger *logrus.Entry
}

func New(addr string, store Store, logger *logrus.Entry) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	if logger != nil {
		engine.Use(requestLogger(logger))
	}

	server := &Server{
		addr:   addr,
		store:  store,
		engine: engine,
		clock:  time.Now,
		logger: logger,
	}
	server.registerRoutes()

	return server
}

// Engine exposes the gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if s.logger != nil {
		s.logger.WithField("addr", s.addr).Info("HTTP API listening")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/sites", s.handleListSites)
		v1.GET("/sites/:site/watch", s.handleLatestWatchEntry)
		v1.GET("/sites/:site/readings", s.handleReadings)
	}
}

func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("HTTP request")
	}
}
