package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	pokeEventHello     = "hello"
	pokeEventPoke      = "poke"
	pokeEventHeartbeat = "heartbeat"
)

// handlePoke holds a long-lived SSE connection bound to one poke channel.
// It emits a hello event on connect, a poke event whenever the channel is
// published, and periodic heartbeats so idle connections survive
// transport-level timeouts. Event IDs increase per connection.
func (h *httpHandler) handlePoke(c *gin.Context) {
	channel := strings.TrimSpace(c.Query("channel"))
	if channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_channel"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream;charset=utf-8")
	c.Writer.Header().Set("Cache-Control", "no-cache, no-transform")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	signal, cleanup := h.notifier.Subscribe(c.Request.Context(), channel)
	defer cleanup()

	var eventID int64
	writeEvent := func(w io.Writer, event, data string) {
		eventID++
		if err := sse.Encode(w, sse.Event{
			Id:    strconv.FormatInt(eventID, 10),
			Event: event,
			Data:  data,
		}); err != nil {
			h.logger.Debug("poke stream write failed", zap.Error(err))
		}
	}

	writeEvent(c.Writer, pokeEventHello, "hello")
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-signal:
			writeEvent(w, pokeEventPoke, "poke")
			return true
		case <-heartbeat.C:
			writeEvent(w, pokeEventHeartbeat, "beat")
			return true
		}
	})
}
