package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"bj-service/internal/service/round"
	"bj-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler streams round snapshots to the UI. The socket is push-only apart
// from ping and an explicit state re-request; all game actions go through
// the HTTP API.
type Handler struct {
	roundSvc *round.Service
}

func NewHandler(roundSvc *round.Service) *Handler {
	return &Handler{roundSvc: roundSvc}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (h *Handler) HandleRoundWS(c *gin.Context) {
	player := c.Param("address")
	sess, err := h.roundSvc.SessionFor(player)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid player address"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	logger.Log.Info("New WebSocket connection", zap.String("player", player))

	client := newClient(conn, sess)
	client.run()
}

type client struct {
	conn      *websocket.Conn
	sess      *round.Session
	subID     int64
	outbound  <-chan round.Snapshot
	done      chan struct{}
	pingEvery time.Duration
}

func newClient(conn *websocket.Conn, sess *round.Session) *client {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	subID, outbound := sess.Subscribe()
	return &client{
		conn:      conn,
		sess:      sess,
		subID:     subID,
		outbound:  outbound,
		done:      make(chan struct{}),
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.sess.Unsubscribe(c.subID)
		c.conn.Close()
	}()

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("WS read error", zap.Error(err))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var incoming struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.safeWrite(envelope{Type: "error", Data: gin.H{"message": "invalid payload"}})
			continue
		}

		switch incoming.Type {
		case "ping":
			c.safeWrite(envelope{Type: "pong", Data: gin.H{"message": "pong"}})
		case "state":
			c.safeWrite(envelope{Type: "state", Data: c.sess.State()})
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case snap, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(envelope{Type: "state", Data: snap}); err != nil {
				logger.Log.Info("WS write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) safeWrite(msg envelope) {
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.Log.Info("WS write error", zap.Error(err))
	}
}
