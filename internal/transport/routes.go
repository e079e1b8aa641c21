package transport

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/cadview/internal/observability"
	"github.com/danmuck/cadview/internal/protocol"
	"github.com/danmuck/cadview/internal/render"
	"github.com/danmuck/cadview/internal/scene"
)

// Ack answers one dispatched frame or POST.
type Ack struct {
	Kind        string         `json:"kind"`
	Dispatched  bool           `json:"dispatched"`
	Error       string         `json:"error,omitempty"`
	FieldErrors int            `json:"field_errors"`
	Summary     *scene.Summary `json:"summary,omitempty"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": "cadview",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/scene", func(c *gin.Context) {
		root := s.scenes.Current()
		if root == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no scene rendered yet"})
			return
		}
		defer root.Release()
		c.JSON(http.StatusOK, scene.Summarize(root))
	})

	s.router.POST("/scene", func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, s.maxFrame+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if int64(len(body)) > s.maxFrame {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "frame too large"})
			return
		}
		c.Set(observability.KeyFrameBytes, len(body))
		ack := s.dispatch(c, body)
		c.Set(observability.KeyDispatched, ack.Dispatched)
		status := http.StatusOK
		if ack.Error != "" {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, ack)
	})

	s.router.GET("/ws", s.serveWebsocket)
}

func (s *Server) serveWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("transport.Server.serveWebsocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.maxFrame)
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("transport.Server.serveWebsocket connected")

	frames := 0
	defer func() { c.Set(observability.KeyFrames, frames) }()
	for {
		mt, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("transport.Server.serveWebsocket read failed")
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		frames++
		observability.RecordFrame(observability.TransportWS, len(frame))
		ack := s.dispatch(c, frame)
		if err := conn.WriteJSON(ack); err != nil {
			log.Warn().Err(err).Msg("transport.Server.serveWebsocket write failed")
			return
		}
	}
}

func (s *Server) dispatch(c *gin.Context, frame []byte) Ack {
	res, dispatched, err := s.dispatcher.DispatchFrame(c.Request.Context(), frame)
	ack := Ack{Kind: "ack", Dispatched: dispatched}
	if err != nil {
		ack.Error = err.Error()
	}
	if res != nil {
		ack.FieldErrors = res.Report.Len()
	}
	if err == nil && res != nil {
		sum := res.Summary
		ack.Summary = &sum
	}
	if err != nil && !errors.Is(err, protocol.ErrEnvelope) && !errors.Is(err, render.ErrRender) {
		log.Error().Err(err).Msg("transport.Server.dispatch unexpected error")
	}
	return ack
}
