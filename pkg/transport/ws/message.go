package ws

import (
	"encoding/json"
	"time"

	"github.com/rs/xid"
)

// MessageType represents the type of signaling message
type MessageType string

const (
	MessageTypeOffer      MessageType = "offer"
	MessageTypeAnswer     MessageType = "answer"
	MessageTypeCandidate  MessageType = "candidate"
	MessageTypeLeave      MessageType = "leave"
	MessageTypeRoomStatus MessageType = "room_status"
	MessageTypeAck        MessageType = "ack"
	MessageTypeError      MessageType = "error"
)

// Message represents a signaling envelope
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewMessage creates an envelope with a fresh ID around payload
func NewMessage(messageType MessageType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        xid.New().String(),
		Type:      messageType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// OfferPayload carries an SDP offer for a room peer
type OfferPayload struct {
	Room   string         `json:"room"`
	PeerID string         `json:"peer_id"`
	Offer  string         `json:"offer"`
	Info   map[string]any `json:"info,omitempty"`
}

// AnswerPayload carries the SDP answer back to the caller
type AnswerPayload struct {
	Room   string `json:"room"`
	PeerID string `json:"peer_id"`
	Answer string `json:"answer"`
}

// CandidatePayload carries a trickled ICE candidate
type CandidatePayload struct {
	Room      string `json:"room"`
	PeerID    string `json:"peer_id"`
	Candidate string `json:"candidate"`
}

// LeavePayload announces a peer leaving a room
type LeavePayload struct {
	Room   string `json:"room"`
	PeerID string `json:"peer_id"`
}

// RoomStatusPayload requests a room snapshot
type RoomStatusPayload struct {
	Room string `json:"room"`
}

// ErrorPayload reports a failed operation
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
