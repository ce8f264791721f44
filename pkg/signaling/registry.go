package signaling

import (
	"sync"

	"github.com/Sagnify/peergo/internal/logging"
)

// MessageHandler receives application messages arriving from a room
type MessageHandler func(roomName, senderID, message string)

// PeerHandler receives peer lifecycle notifications
type PeerHandler func(roomName, peerID string, info PeerInfo)

// HandlerRegistry holds the application callbacks, one slot per event kind.
// Registering a callback replaces any previous one. Populate the registry
// before the manager starts serving; dispatch runs on the engine goroutine
// and a panicking callback is contained and logged, never propagated.
type HandlerRegistry struct {
	mu           sync.RWMutex
	onMessage    MessageHandler
	onPeerJoined PeerHandler
	onPeerLeft   PeerHandler
	logger       *logging.Logger
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry(logger *logging.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		logger: logger,
	}
}

// OnMessage registers the message callback, replacing any previous one
func (r *HandlerRegistry) OnMessage(handler MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMessage = handler
}

// OnPeerJoined registers the peer-joined callback, replacing any previous one
func (r *HandlerRegistry) OnPeerJoined(handler PeerHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPeerJoined = handler
}

// OnPeerLeft registers the peer-left callback, replacing any previous one
func (r *HandlerRegistry) OnPeerLeft(handler PeerHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPeerLeft = handler
}

func (r *HandlerRegistry) dispatchMessage(roomName, senderID, message string) {
	r.mu.RLock()
	handler := r.onMessage
	r.mu.RUnlock()

	if handler == nil {
		return
	}

	r.invoke("message", func() {
		handler(roomName, senderID, message)
	})
}

func (r *HandlerRegistry) dispatchPeerJoined(roomName string, info PeerInfo) {
	r.mu.RLock()
	handler := r.onPeerJoined
	r.mu.RUnlock()

	if handler == nil {
		return
	}

	r.invoke("peer_joined", func() {
		handler(roomName, info.PeerID, info)
	})
}

func (r *HandlerRegistry) dispatchPeerLeft(roomName string, info PeerInfo) {
	r.mu.RLock()
	handler := r.onPeerLeft
	r.mu.RUnlock()

	if handler == nil {
		return
	}

	r.invoke("peer_left", func() {
		handler(roomName, info.PeerID, info)
	})
}

// invoke runs a callback to completion, containing panics at the dispatch
// boundary.
func (r *HandlerRegistry) invoke(kind string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked", "handler", kind, "panic", rec)
		}
	}()

	fn()
}
