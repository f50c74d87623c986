package server

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// mountStatic serves the compiled board UI from the configured directory.
// Unknown non-API paths fall back to index.html so client-side routes
// (board, calendar, settings) survive a reload.
func (s *Server) mountStatic() {
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	if s.staticDir == "" {
		s.logger.Warn("static directory not configured; API only mode")
		return
	}
	info, err := os.Stat(s.staticDir)
	if err != nil || !info.IsDir() {
		s.logger.Warn("static directory missing", slog.String("path", s.staticDir), slog.Any("error", err))
		return
	}

	if indexPath, ok := s.staticFile("index.html"); ok {
		serveIndex := func(c *gin.Context) {
			c.Header("Cache-Control", "no-cache")
			c.File(indexPath)
		}
		s.engine.GET("/", serveIndex)
		s.engine.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.Method != http.MethodGet {
				c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
				return
			}
			serveIndex(c)
		})
	}

	// Vite fingerprints asset names, so they can be cached for good.
	if assetsDir, ok := s.staticFile("assets"); ok {
		assets := s.engine.Group("/assets", func(c *gin.Context) {
			c.Header("Cache-Control", "public, max-age=31536000, immutable")
		})
		assets.StaticFS("/", gin.Dir(assetsDir, false))
	}

	if favicon, ok := s.staticFile("favicon.ico"); ok {
		s.engine.StaticFile("/favicon.ico", favicon)
	}
}

// staticFile resolves name inside the static directory, logging when absent.
func (s *Server) staticFile(name string) (string, bool) {
	path := filepath.Join(s.staticDir, name)
	if _, err := os.Stat(path); err != nil {
		s.logger.Debug("static entry not found", slog.String("path", path))
		return "", false
	}
	return path, true
}
