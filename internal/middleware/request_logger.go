package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	ua "github.com/mssola/user_agent"
	"github.com/sirupsen/logrus"

	"tourbus/internal/metrics"
)

// RequestLogger logs every completed request with device details and records
// the request in the HTTP metrics.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, route, status, latency)

		fields := logrus.Fields{
			"request_id": GetRequestID(c),
			"status":     status,
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
		}
		for k, v := range deviceFields(c.Request.UserAgent()) {
			fields[k] = v
		}
		if claims := ClaimsFrom(c); claims != nil {
			fields["user_id"] = claims.UserID
			fields["role"] = claims.Role
		}

		entry := logger.WithFields(fields)
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Error("Request failed with errors")
			return
		}
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

func deviceFields(userAgent string) logrus.Fields {
	if userAgent == "" {
		return logrus.Fields{"device": "unknown"}
	}

	parser := ua.New(userAgent)
	browser, version := parser.Browser()
	device := "desktop"
	if parser.Mobile() {
		device = "mobile"
	}
	if parser.Bot() {
		device = "bot"
	}

	return logrus.Fields{
		"device":  device,
		"browser": browser + " " + version,
		"os":      parser.OS(),
		"bot":     parser.Bot(),
	}
}
