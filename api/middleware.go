package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const slowRequestThreshold = 10 * time.Second

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		requestLogger := s.logger.WithFields(map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"size":     c.Writer.Size(),
			"duration": duration.Milliseconds(),
		})

		logFn := requestLogger.Debugf
		if duration > slowRequestThreshold {
			logFn = requestLogger.Warningf
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logFn = requestLogger.Errorf
		}

		logFn("%v %v (%v) in %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), duration)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.Errorf(
					"panic recovered on [%v %v]: [%v]",
					c.Request.Method,
					c.Request.URL.Path,
					recovered,
				)

				c.AbortWithStatusJSON(
					http.StatusInternalServerError,
					errorResponse{Error: "internal error"},
				)
			}
		}()

		c.Next()
	}
}
