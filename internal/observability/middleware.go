package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Context keys scene handlers set for the request logger and metrics.
const (
	KeyFrameBytes = "cadview.frame_bytes"
	KeyFrames     = "cadview.frames"
	KeyDispatched = "cadview.dispatched"
)

// Transport labels for frame metrics.
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		upgrade := websocket.IsWebSocketUpgrade(c.Request)
		c.Next()

		status := effectiveStatus(c, upgrade)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event := logger.Debug()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if upgrade {
			event = event.Bool("websocket", true).Int("frames", c.GetInt(KeyFrames))
		}
		if _, ok := c.Get(KeyFrameBytes); ok {
			event = event.Int("frame_bytes", c.GetInt(KeyFrameBytes))
		}
		if _, ok := c.Get(KeyDispatched); ok {
			event = event.Bool("dispatched", c.GetBool(KeyDispatched))
		}
		event.Msg("transport.http request")
	}
}

// RequestMetricsMiddleware records every request and the size of a scene
// frame posted over plain HTTP. Websocket frames are recorded per frame by
// the handler.
func RequestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		upgrade := websocket.IsWebSocketUpgrade(c.Request)
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if _, ok := c.Get(KeyFrameBytes); ok && !upgrade {
			RecordFrame(TransportHTTP, c.GetInt(KeyFrameBytes))
		}
		RecordHTTPRequest(c.Request.Method, path, effectiveStatus(c, upgrade), time.Since(start))
	}
}

// effectiveStatus reports 101 for an accepted upgrade; gin never sees the
// status written on the hijacked connection.
func effectiveStatus(c *gin.Context, upgrade bool) int {
	status := c.Writer.Status()
	if upgrade && status == http.StatusOK {
		return http.StatusSwitchingProtocols
	}
	return status
}
