package ws

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/Sagnify/peergo/internal/logging"
	"github.com/Sagnify/peergo/pkg/errors"
	"github.com/Sagnify/peergo/pkg/signaling"
	"github.com/gorilla/websocket"
)

// ServerOptions represents websocket server configuration options
type ServerOptions struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int
}

// DefaultServerOptions returns default options
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		MaxMessageSize:  512 * 1024, // 512KB
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendQueueSize:   64,
	}
}

// Server speaks the offer/candidate/leave operations over one websocket
// connection per client, as an alternative to the HTTP endpoints.
type Server struct {
	manager  *signaling.Manager
	upgrader websocket.Upgrader
	logger   *logging.Logger
	options  ServerOptions
}

// NewServer creates a new websocket signaling server
func NewServer(manager *signaling.Manager, logger *logging.Logger, options ServerOptions) *Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  options.ReadBufferSize,
		WriteBufferSize: options.WriteBufferSize,
	}

	return &Server{
		manager:  manager,
		upgrader: upgrader,
		logger:   logger,
		options:  options,
	}
}

// Handle upgrades the request and serves signaling until the peer hangs up
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	s.logger.Info("websocket connection established", "remote", conn.RemoteAddr().String())

	c := &connection{
		server:   s,
		conn:     conn,
		sendChan: make(chan []byte, s.options.SendQueueSize),
		done:     make(chan struct{}),
	}

	go c.writePump()
	c.readPump()
}

type connection struct {
	server   *Server
	conn     *websocket.Conn
	sendChan chan []byte
	done     chan struct{}
}

func (c *connection) readPump() {
	s := c.server

	defer func() {
		close(c.done)
		c.conn.Close()
		s.logger.Info("websocket connection closed", "remote", c.conn.RemoteAddr().String())
	}()

	c.conn.SetReadLimit(s.options.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
		return nil
	})

	for {
		wsType, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("websocket unexpected close error", "error", err)
			}
			return
		}

		if wsType != websocket.TextMessage && wsType != websocket.BinaryMessage {
			continue
		}

		var message Message
		if err := json.Unmarshal(rawMessage, &message); err != nil {
			s.logger.Error("failed to unmarshal message", "error", err)
			continue
		}

		c.route(&message)
	}
}

func (c *connection) writePump() {
	s := c.server

	for {
		select {
		case <-c.done:
			return
		case message := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Error("websocket write error", "error", err)
				return
			}
		}
	}
}

func (c *connection) route(msg *Message) {
	s := c.server

	switch msg.Type {
	case MessageTypeOffer:
		var payload OfferPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.replyError(err)
			return
		}

		answer, err := s.manager.Offer(payload.Room, payload.PeerID, payload.Offer, payload.Info)
		if err != nil {
			c.replyError(err)
			return
		}

		c.reply(MessageTypeAnswer, AnswerPayload{
			Room:   payload.Room,
			PeerID: payload.PeerID,
			Answer: answer,
		})

	case MessageTypeCandidate:
		var payload CandidatePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.replyError(err)
			return
		}

		if err := s.manager.Candidate(payload.Room, payload.PeerID, payload.Candidate); err != nil {
			c.replyError(err)
			return
		}

		c.reply(MessageTypeAck, map[string]string{"status": "ok"})

	case MessageTypeLeave:
		var payload LeavePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.replyError(err)
			return
		}

		if err := s.manager.Leave(payload.Room, payload.PeerID); err != nil {
			c.replyError(err)
			return
		}

		c.reply(MessageTypeAck, map[string]string{"status": "ok"})

	case MessageTypeRoomStatus:
		var payload RoomStatusPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.replyError(err)
			return
		}

		peers, err := s.manager.RoomPeers(payload.Room)
		if err != nil {
			c.replyError(err)
			return
		}

		c.reply(MessageTypeRoomStatus, map[string]any{
			"room":  payload.Room,
			"peers": peers,
			"count": len(peers),
		})

	default:
		s.logger.Warn("unknown message type", "type", msg.Type)
	}
}

func (c *connection) reply(messageType MessageType, payload any) {
	message, err := NewMessage(messageType, payload)
	if err != nil {
		c.server.logger.Error("failed to build message", "error", err)
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		c.server.logger.Error("failed to marshal message", "error", err)
		return
	}

	select {
	case c.sendChan <- data:
	case <-c.done:
	default:
		c.server.logger.Error("send queue full, dropping message", "type", messageType)
	}
}

func (c *connection) replyError(err error) {
	c.reply(MessageTypeError, ErrorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
	})
}

// errorCode maps err to its wire code, unwrapping as needed
func errorCode(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return errors.CodeInternal
}
