// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api serves the protocol translation layer over HTTP so the web
// dashboard can decode frames and build commands without knowing which
// device generation it is talking to.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ecoplant/ecostat/internal/gateway"
	"github.com/ecoplant/ecostat/internal/monitor"
)

// Options configures the API server
type Options struct {
	Addr        string
	BearerToken string
	// Executor sends built commands when a request asks for it. Nil disables sending.
	Executor gateway.Executor
	// Metrics is optional
	Metrics *monitor.Metrics
}

// Server bundles the router and its dependencies
type Server struct {
	opts   Options
	engine *gin.Engine
}

// New constructs a server with routes and middleware
func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(corsMiddleware())

	s := &Server{opts: opts, engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("API listening on %s", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/v1")
	if s.opts.BearerToken != "" {
		v1.Use(bearerAuthMiddleware(s.opts.BearerToken))
	}
	{
		v1.POST("/decode", s.handleDecode)
		v1.POST("/commands", s.handleBuildCommand)
		v1.POST("/schedule", s.handleSchedule)
		v1.POST("/bulk", s.handleBulk)
		v1.POST("/version", s.handleVersion)
		v1.POST("/reconcile", s.handleReconcile)
		v1.GET("/queries/:generation", s.handleQueries)
		v1.POST("/devices/:id/commands", s.handleSend)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("request")
	}
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
