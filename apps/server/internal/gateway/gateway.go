package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/desireevl/quantum-catsweeper/apps/server/internal/auth"
	"github.com/desireevl/quantum-catsweeper/apps/server/internal/lobby"
	"github.com/desireevl/quantum-catsweeper/apps/server/internal/session"
	"github.com/desireevl/quantum-catsweeper/codec"
	"github.com/desireevl/quantum-catsweeper/sweeper"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Error codes carried in error frames.
const (
	CodeBadMessage int32 = iota + 1
	CodeSessionFailed
	CodeNoSession
	CodeClickRejected
	CodeInternal
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connection is one websocket client.
type Connection struct {
	ID      string
	UserID  uint64
	Conn    *websocket.Conn
	Send    chan []byte
	Gateway *Gateway

	// owned by readPump
	session *session.Session
}

// Gateway manages websocket connections and routes frames to sessions.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	userConns   map[uint64]*Connection
	nextConnID  uint64
	lobby       *lobby.Lobby
	auth        auth.Service
}

func New(lby *lobby.Lobby, authService auth.Service) *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		userConns:   make(map[uint64]*Connection),
		lobby:       lby,
		auth:        authService,
	}
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:      fmt.Sprintf("conn_%d", g.nextConnID),
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Gateway: g,
	}
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.WithField("conn", c.ID).Infof("[Gateway] Client connected, total: %d", total)

	go c.writePump()
	go c.readPump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithField("conn", c.ID).Warnf("[Gateway] Read error: %v", err)
			}
			return
		}
		if messageType == websocket.BinaryMessage {
			c.handleMessage(message)
		}
	}
}

func (c *Connection) handleMessage(data []byte) {
	env, err := codec.UnmarshalClient(data)
	if err != nil {
		c.sendError(CodeBadMessage, "invalid message format")
		return
	}
	log.WithFields(log.Fields{"conn": c.ID, "user": c.UserID}).Debugf("[Gateway] Received %s", env.Type)

	if env.Type == codec.TypeHello {
		c.handleHello(env.Token)
		return
	}
	// clients that skip hello play as a fresh guest
	if c.UserID == 0 {
		c.handleHello("")
	}

	switch env.Type {
	case codec.TypeNewGame:
		c.submit(session.Event{Type: session.EventNewGame})
	case codec.TypeClickCell:
		c.submit(session.Event{Type: session.EventClick, Row: env.Row, Col: env.Col})
	case codec.TypeGetSnapshot:
		c.submit(session.Event{Type: session.EventSnapshot})
	case codec.TypeLeave:
		c.Gateway.lobby.Close(c.UserID)
		c.session = nil
	default:
		c.sendError(CodeBadMessage, "unknown message type "+env.Type)
	}
}

func (c *Connection) handleHello(token string) {
	player, sessionToken, reused := c.Gateway.auth.ResolveOrCreateGuest(token)
	if player.ID == 0 {
		c.sendError(CodeInternal, "account unavailable")
		return
	}
	c.Gateway.bindUser(c, player.ID)
	c.sendDirect(codec.TypeWelcome, codec.WelcomePayload(player.ID, sessionToken, player.Guest))

	log.WithFields(log.Fields{"conn": c.ID, "user": player.ID, "reused": reused}).Info("[Gateway] Hello")

	if _, err := c.openSession(); err != nil {
		return
	}
	c.submit(session.Event{Type: session.EventSnapshot})
}

func (c *Connection) openSession() (*session.Session, error) {
	if c.session != nil && !c.session.IsClosed() {
		return c.session, nil
	}
	s, _, err := c.Gateway.lobby.Open(c.UserID, c.Gateway.sendToUser)
	if err != nil {
		log.WithField("user", c.UserID).Errorf("[Gateway] Open session failed: %v", err)
		c.sendError(CodeSessionFailed, err.Error())
		return nil, err
	}
	c.session = s
	return s, nil
}

func (c *Connection) submit(e session.Event) {
	s, err := c.openSession()
	if err != nil {
		return
	}
	err = s.SubmitEvent(e)
	if errors.Is(err, session.ErrSessionClosed) {
		// reaped between frames: start over once
		c.session = nil
		if s, err = c.openSession(); err != nil {
			return
		}
		err = s.SubmitEvent(e)
	}
	if err != nil {
		c.sendError(errorCode(err), err.Error())
	}
}

func errorCode(err error) int32 {
	var invalid sweeper.InvalidStateError
	switch {
	case errors.Is(err, sweeper.ErrGameOver),
		errors.Is(err, sweeper.ErrOutOfBounds),
		errors.Is(err, sweeper.ErrAlreadyRevealed),
		errors.As(err, &invalid):
		return CodeClickRejected
	case errors.Is(err, session.ErrSessionClosed):
		return CodeNoSession
	default:
		return CodeInternal
	}
}

// sendDirect writes a frame that belongs to no session.
func (c *Connection) sendDirect(kind string, payload map[string]any) {
	data, err := codec.MarshalServer(codec.WrapServerEnvelope("", 0, kind, payload))
	if err != nil {
		log.WithField("conn", c.ID).Errorf("[Gateway] Failed to marshal %s: %v", kind, err)
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Connection) sendError(code int32, msg string) {
	c.sendDirect(codec.TypeError, codec.ErrorPayload(code, msg))
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// bindUser routes the user's frames to c. An older connection for the
// same user is closed.
func (g *Gateway) bindUser(c *Connection, userID uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c.UserID != 0 && c.UserID != userID && g.userConns[c.UserID] == c {
		delete(g.userConns, c.UserID)
		c.session = nil
	}
	if old := g.userConns[userID]; old != nil && old != c {
		log.WithFields(log.Fields{"user": userID, "conn": old.ID}).Info("[Gateway] Replacing older connection")
		old.Conn.Close()
	}
	c.UserID = userID
	g.userConns[userID] = c
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.connections[c.ID]; !ok {
		return
	}
	delete(g.connections, c.ID)
	if g.userConns[c.UserID] == c {
		delete(g.userConns, c.UserID)
	}
	close(c.Send)
	log.WithField("conn", c.ID).Infof("[Gateway] Client disconnected, total: %d", len(g.connections))
}

// sendToUser delivers a session frame to the user's current connection.
// Frames are dropped when the user is offline or the buffer is full.
func (g *Gateway) sendToUser(userID uint64, data []byte) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := g.userConns[userID]
	if c == nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.WithField("user", userID).Warn("[Gateway] Send buffer full, dropping frame")
	}
}

func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}
