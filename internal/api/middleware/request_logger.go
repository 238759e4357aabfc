package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Context keys handlers may set so the access log can tie a request to a chat exchange.
const (
	ConversationIDKey = "conversation_id"
	RunIDKey          = "run_id"
)

func RequestLogger(l logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-Id", reqID)
		c.Set("request_id", reqID)

		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fields := logrus.Fields{
			"request_id": reqID,
			"method":     c.Request.Method,
			"path":       path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
		}
		if v := c.GetString("user_id"); v != "" {
			fields["user_id"] = v
		}
		if v := c.GetString(ConversationIDKey); v != "" {
			fields[ConversationIDKey] = v
		}
		if v := c.GetString(RunIDKey); v != "" {
			fields[RunIDKey] = v
		}
		// latency of a streamed reply covers the whole stream
		if c.IsWebsocket() || strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream") {
			fields["stream"] = true
		}

		entry := l.WithFields(fields)
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
