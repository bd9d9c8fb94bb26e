package service

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the identifier of a request, generated when the
// client did not provide one.
const RequestIDHeader = "X-Request-ID"

// server is the HTTP plumbing shared by the Gateway and the IndexService.
type server struct {
	bindAddress string
	engine      *gin.Engine
	httpServer  *http.Server
	logger      *logrus.Entry
}

func newServer(bindAddress string, logger *logrus.Entry) *server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), cors(), accessLog(logger))

	return &server{
		bindAddress: bindAddress,
		engine:      engine,
		httpServer: &http.Server{
			Addr:    bindAddress,
			Handler: engine,
		},
		logger: logger,
	}
}

// Handler returns the http.Handler serving the API.
func (s *server) Handler() http.Handler {
	return s.engine
}

// Serve calls ListenAndServe. This is a blocking call. It returns nil after
// Shutdown.
func (s *server) Serve() error {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for the active ones.
func (s *server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}

func accessLog(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).Nanoseconds(),
		}).Debug("Served request")
	}
}
