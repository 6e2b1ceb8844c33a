package httpapi

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger logs one line per request, at error level for 5xx.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// corsMiddleware answers preflight requests and sets CORS headers for
// allowed origins. An empty list allows any origin.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0 || slices.Contains(allowed, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(allowed, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// spaHandler serves files from webDir for unmatched GET requests outside
// /api, falling back to index.html so client-side routes resolve. Without
// a webDir every unmatched path is a JSON 404.
func spaHandler(webDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		method := c.Request.Method
		if webDir == "" || strings.HasPrefix(p, "/api/") || (method != http.MethodGet && method != http.MethodHead) {
			abort(c, http.StatusNotFound, "not found")
			return
		}

		file := filepath.Join(webDir, filepath.FromSlash(path.Clean("/"+p)))
		if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
			c.File(file)
			return
		}
		index := filepath.Join(webDir, "index.html")
		if _, err := os.Stat(index); err != nil {
			abort(c, http.StatusNotFound, "not found")
			return
		}
		c.File(index)
	}
}
