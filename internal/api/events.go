package api

import (
	"net/http"
	"strconv"
	"time"

	"audioscribe/internal/events"
	"audioscribe/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	maxPollWait = 30 * time.Second
	writeWait   = 10 * time.Second
	pingPeriod  = 25 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// pollEvents returns events after ?since=. With ?wait= it long-polls until
// something is published.
func (s *Server) pollEvents(c *gin.Context) {
	since, err := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil || since < 0 {
		utils.Error(c, http.StatusBadRequest, "since must be a non-negative integer")
		return
	}
	var wait time.Duration
	if v := c.Query("wait"); v != "" {
		if wait, err = time.ParseDuration(v); err != nil {
			utils.Error(c, http.StatusBadRequest, "wait must be a duration such as 20s")
			return
		}
		if wait > maxPollWait {
			wait = maxPollWait
		}
	}

	changed := s.bus.Changed()
	list := s.bus.Since(since)
	if len(list) == 0 && wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-changed:
			list = s.bus.Since(since)
		case <-timer.C:
		case <-c.Request.Context().Done():
			return
		}
	}
	if list == nil {
		list = []events.Event{}
	}
	utils.Success(c, gin.H{
		"events":   list,
		"last_seq": s.bus.LastSeq(),
	})
}

// streamEvents pushes bus events over a websocket, starting after ?since=.
func (s *Server) streamEvents(c *gin.Context) {
	since, _ := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	ctx := c.Request.Context()
	last := since
	for {
		changed := s.bus.Changed()
		for _, ev := range s.bus.Since(last) {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
			last = ev.Seq
		}
		select {
		case <-changed:
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			return
		}
	}
}
