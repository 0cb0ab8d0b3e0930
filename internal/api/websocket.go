package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rpm-monitor/backend/internal/session"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing        = "ping"
	MsgTypePointerDown = "pointer:down"
	MsgTypePointerMove = "pointer:move"
	MsgTypePointerUp   = "pointer:up"
	MsgTypeWheel       = "wheel"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeState     = "state"
	MsgTypeSync      = "sync"
	MsgTypePong      = "pong"
	MsgTypeError     = "error"
)

// WSMessage is the envelope of every websocket frame.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSSyncPayload reports whether a save is in flight.
type WSSyncPayload struct {
	Syncing bool `json:"syncing"`
}

// WebSocket error response
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler pushes session snapshots to connected clients and accepts
// high-frequency pointer events.
type WebSocketHandler struct {
	handler        *Handler
	upgrader       websocket.Upgrader
	maxMessageSize int64
}

// NewWebSocketHandler creates a websocket handler. maxMessageSize <= 0 keeps
// the library default.
func NewWebSocketHandler(h *Handler, maxMessageSize int64) *WebSocketHandler {
	return &WebSocketHandler{
		handler: h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		maxMessageSize: maxMessageSize,
	}
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msgType, id string, payload interface{}) error {
	msg := WSMessage{Type: msgType, ID: id, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		msg.Payload = mustJSON(payload)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// HandleWebSocket upgrades the connection and streams the caller's session.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ctrl := wsh.handler.controller(c)
	log := wsh.handler.log.With("user", ctrl.UserID())

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	if wsh.maxMessageSize > 0 {
		ws.SetReadLimit(wsh.maxMessageSize)
	}
	conn := &wsConn{ws: ws}

	log.Debug("websocket connected")
	snaps, unsubscribe := ctrl.Subscribe()

	if err := conn.send(MsgTypeConnected, "", ctrl.Snapshot()); err != nil {
		unsubscribe()
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wsh.pushLoop(conn, snaps)
	}()

	wsh.readLoop(conn, ctrl)
	unsubscribe()
	<-done

	log.Debug("websocket disconnected")
	return nil
}

// pushLoop forwards snapshots until the subscription closes. A separate sync
// frame is sent whenever the saving flag flips.
func (wsh *WebSocketHandler) pushLoop(conn *wsConn, snaps <-chan session.Snapshot) {
	syncing := false
	for snap := range snaps {
		if err := conn.send(MsgTypeState, "", snap); err != nil {
			break
		}
		if snap.Syncing != syncing {
			syncing = snap.Syncing
			if err := conn.send(MsgTypeSync, "", WSSyncPayload{Syncing: syncing}); err != nil {
				break
			}
		}
	}
	// Unblocks readLoop when the session was closed under us.
	conn.ws.Close()
	for range snaps {
	}
}

func (wsh *WebSocketHandler) readLoop(conn *wsConn, ctrl *session.Controller) {
	log := wsh.handler.log
	for {
		var msg WSMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read failed", "error", err)
			}
			return
		}

		var err error
		switch msg.Type {
		case MsgTypePing:
			err = conn.send(MsgTypePong, msg.ID, nil)
			if err != nil {
				return
			}
			continue
		case MsgTypePointerDown, MsgTypePointerMove:
			var req pointerRequest
			if err = json.Unmarshal(msg.Payload, &req); err != nil {
				conn.sendError(msg.ID, "invalid pointer payload: "+err.Error(), "INVALID_PAYLOAD")
				continue
			}
			if msg.Type == MsgTypePointerDown {
				_, err = ctrl.PointerDown(req.event())
			} else {
				err = ctrl.PointerMove(req.event())
			}
		case MsgTypePointerUp:
			_, err = ctrl.PointerUp()
		case MsgTypeWheel:
			var req wheelRequest
			if err = json.Unmarshal(msg.Payload, &req); err != nil {
				conn.sendError(msg.ID, "invalid wheel payload: "+err.Error(), "INVALID_PAYLOAD")
				continue
			}
			err = ctrl.Wheel(req.DeltaY)
		default:
			conn.sendError(msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
			continue
		}

		if err != nil {
			apiErr := FromDomainError(err)
			conn.sendError(msg.ID, apiErr.Message, apiErr.Code)
		}
	}
}

func (c *wsConn) sendError(id, message, code string) {
	_ = c.send(MsgTypeError, id, WSErrorResponse{Message: message, Code: code})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
