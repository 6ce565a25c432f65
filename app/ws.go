package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/warasin/roomsync/core"
	"github.com/warasin/roomsync/metrics"
	"github.com/warasin/roomsync/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	writeStreamSize = 100
)

// Client frame types.
const (
	frameOpen = "open"
	frameSend = "send"
)

// Server frame types.
const (
	frameHistory = "history"
	frameMessage = "message"
	frameError   = "error"
)

type clientFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id,omitempty"`
	Content string `json:"content,omitempty"`
}

type messageFrame struct {
	Message core.Message `json:"message"`
	Author  string       `json:"author"`
}

type serverFrame struct {
	Type    string         `json:"type"`
	RoomID  string         `json:"room_id,omitempty"`
	History []messageFrame `json:"history,omitempty"`
	Message *messageFrame  `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// WSHandler upgrades authenticated requests and runs one ChatSession per
// connection. The browser opens a room, the session reconciles history with
// the push stream, and every appended message is relayed down the socket
// with its resolved author label.
type WSHandler struct {
	context  context.Context
	wg       *sync.WaitGroup
	messages core.MessageStore
	profiles core.ProfileStore
	realtime core.Realtime
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(
	ctx context.Context,
	wg *sync.WaitGroup,
	messages core.MessageStore,
	profiles core.ProfileStore,
	realtime core.Realtime,
	logger *slog.Logger,
) *WSHandler {
	return &WSHandler{
		context:  ctx,
		wg:       wg,
		messages: messages,
		profiles: profiles,
		realtime: realtime,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) error {
	s := core.SessionFromRequest(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return nil
	}

	metrics.WsConnections.Inc()
	defer metrics.WsConnections.Dec()

	state := core.NewSessionState()
	state.Set(&s)

	chat := session.NewChatSession(h.context, h.messages, h.profiles, h.realtime, state, h.logger)
	defer chat.Close()

	out := make(chan serverFrame, writeStreamSize)

	chat.OnMessage(func(m core.Message) {
		frame := serverFrame{
			Type:    frameMessage,
			RoomID:  m.RoomID,
			Message: &messageFrame{Message: m, Author: chat.AuthorLabel(m.UserID)},
		}
		select {
		case out <- frame:
		default:
			h.logger.Warn("dropping ws frame, slow client",
				slog.String("user_id", s.UserID),
				slog.String("room_id", m.RoomID))
		}
	})

	// Closed by writeLoop on exit so the read loop never blocks sending
	// frames to a writer that is gone.
	writerDone := make(chan struct{})

	h.wg.Add(1)
	go h.writeLoop(conn, out, writerDone)

	h.readLoop(conn, chat, out, writerDone, s.UserID)
	// Close the session before the outbound channel: Close waits for the
	// event loop to drain, so no callback can fire on a closed channel.
	chat.Close()
	close(out)
	return nil
}

// sendFrame enqueues a frame for the write loop. It reports false when the
// writer has exited or the app is shutting down.
func (h *WSHandler) sendFrame(out chan<- serverFrame, writerDone <-chan struct{}, frame serverFrame) bool {
	select {
	case out <- frame:
		return true
	case <-writerDone:
		return false
	case <-h.context.Done():
		return false
	}
}

func (h *WSHandler) readLoop(conn *websocket.Conn, chat *session.ChatSession, out chan<- serverFrame, writerDone <-chan struct{}, userID string) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("ws read", slog.String("user_id", userID), slog.String("error", err.Error()))
			}
			return
		}

		switch frame.Type {
		case frameOpen:
			if err := chat.Open(h.context, frame.RoomID); err != nil {
				if !h.sendFrame(out, writerDone, serverFrame{Type: frameError, RoomID: frame.RoomID, Error: err.Error()}) {
					return
				}
				continue
			}
			history := make([]messageFrame, 0)
			for _, m := range chat.Messages() {
				history = append(history, messageFrame{Message: m, Author: chat.AuthorLabel(m.UserID)})
			}
			if !h.sendFrame(out, writerDone, serverFrame{Type: frameHistory, RoomID: frame.RoomID, History: history}) {
				return
			}
		case frameSend:
			if err := chat.Send(h.context, frame.Content); err != nil {
				if !h.sendFrame(out, writerDone, serverFrame{Type: frameError, RoomID: chat.RoomID(), Error: err.Error()}) {
					return
				}
			}
		default:
			if !h.sendFrame(out, writerDone, serverFrame{Type: frameError, Error: "unknown frame type"}) {
				return
			}
		}
	}
}

func (h *WSHandler) writeLoop(conn *websocket.Conn, out <-chan serverFrame, writerDone chan<- struct{}) {
	defer h.wg.Done()
	defer close(writerDone)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case frame, ok := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(frame)
			if err != nil {
				h.logger.Error("marshal ws frame", slog.String("error", err.Error()))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-h.context.Done():
			return
		}
	}
}
