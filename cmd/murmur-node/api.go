package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MurmurLink/murmur-core/pkg/storage"
)

var startTime = time.Now()

// newAPIServer builds the diagnostics HTTP server: health, status and
// store statistics. It exposes no message content.
func newAPIServer(store *storage.DB, logger *zap.Logger, port int) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		v1.GET("/status", func(c *gin.Context) {
			stats, err := store.Stats()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"account_id": store.UserPublicKey(),
				"uptime_sec": int(time.Since(startTime).Seconds()),
				"store":      stats,
			})
		})
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("api request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
