package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sagnify/peergo/internal/logging"
	"github.com/Sagnify/peergo/pkg/signaling"
	"github.com/Sagnify/peergo/pkg/transport/ws"
	"github.com/Sagnify/peergo/pkg/webrtc"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTransport struct{}

func (stubTransport) Answer(offerSDP string) (string, error) { return "answer:" + offerSDP, nil }
func (stubTransport) AddCandidate(candidate string) error    { return nil }
func (stubTransport) Send(data []byte) error                 { return nil }
func (stubTransport) OnOpen(fn func())                       {}
func (stubTransport) OnClose(fn func())                      {}
func (stubTransport) OnMessage(fn func(data []byte))         {}
func (stubTransport) Close() error                           { return nil }

func dialTestServer(t *testing.T) *websocket.Conn {
	t.Helper()

	logger := logging.New(logging.Config{Level: "error", Format: "text"})
	manager := signaling.NewManager(signaling.ManagerOptions{
		Logger: logger,
		TransportFactory: func(peerID string) (webrtc.Transport, error) {
			return stubTransport{}, nil
		},
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, manager.Start(context.Background()))
	t.Cleanup(func() { manager.Stop() })

	server := ws.NewServer(manager, logger, ws.DefaultServerOptions())
	srv := httptest.NewServer(http.HandlerFunc(server.Handle))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, messageType ws.MessageType, payload any) {
	t.Helper()

	message, err := ws.NewMessage(messageType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(message))
}

func receive(t *testing.T, conn *websocket.Conn) *ws.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var message ws.Message
	require.NoError(t, conn.ReadJSON(&message))
	return &message
}

func TestOfferOverWebSocket(t *testing.T) {
	conn := dialTestServer(t)

	send(t, conn, ws.MessageTypeOffer, ws.OfferPayload{
		Room:   "lobby",
		PeerID: "A",
		Offer:  "v=0 fake-sdp",
	})

	reply := receive(t, conn)
	require.Equal(t, ws.MessageTypeAnswer, reply.Type)
	assert.NotEmpty(t, reply.ID)

	var payload ws.AnswerPayload
	require.NoError(t, json.Unmarshal(reply.Data, &payload))
	assert.Equal(t, "lobby", payload.Room)
	assert.Equal(t, "A", payload.PeerID)
	assert.Equal(t, "answer:v=0 fake-sdp", payload.Answer)
}

func TestOfferValidationErrorOverWebSocket(t *testing.T) {
	conn := dialTestServer(t)

	send(t, conn, ws.MessageTypeOffer, ws.OfferPayload{Room: "lobby"})

	reply := receive(t, conn)
	require.Equal(t, ws.MessageTypeError, reply.Type)

	var payload ws.ErrorPayload
	require.NoError(t, json.Unmarshal(reply.Data, &payload))
	assert.Equal(t, "INVALID_REQUEST", payload.Code)
	assert.NotEmpty(t, payload.Message)
}

func TestCandidateAndLeaveAcked(t *testing.T) {
	conn := dialTestServer(t)

	send(t, conn, ws.MessageTypeOffer, ws.OfferPayload{
		Room: "lobby", PeerID: "A", Offer: "v=0",
	})
	require.Equal(t, ws.MessageTypeAnswer, receive(t, conn).Type)

	send(t, conn, ws.MessageTypeCandidate, ws.CandidatePayload{
		Room:      "lobby",
		PeerID:    "A",
		Candidate: "candidate:1 1 UDP 2130706431 127.0.0.1 54400 typ host",
	})
	require.Equal(t, ws.MessageTypeAck, receive(t, conn).Type)

	send(t, conn, ws.MessageTypeLeave, ws.LeavePayload{Room: "lobby", PeerID: "A"})
	require.Equal(t, ws.MessageTypeAck, receive(t, conn).Type)
}

func TestRoomStatusOverWebSocket(t *testing.T) {
	conn := dialTestServer(t)

	for _, id := range []string{"A", "B"} {
		send(t, conn, ws.MessageTypeOffer, ws.OfferPayload{
			Room: "lobby", PeerID: id, Offer: "v=0",
		})
		require.Equal(t, ws.MessageTypeAnswer, receive(t, conn).Type)
	}

	send(t, conn, ws.MessageTypeRoomStatus, ws.RoomStatusPayload{Room: "lobby"})

	reply := receive(t, conn)
	require.Equal(t, ws.MessageTypeRoomStatus, reply.Type)

	var payload struct {
		Room  string               `json:"room"`
		Peers []signaling.PeerInfo `json:"peers"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &payload))
	assert.Equal(t, "lobby", payload.Room)
	assert.Equal(t, 2, payload.Count)
	require.Len(t, payload.Peers, 2)
	assert.True(t, payload.Peers[0].IsHost)
}

func TestUnknownMessageTypeIgnored(t *testing.T) {
	conn := dialTestServer(t)

	send(t, conn, ws.MessageType("bogus"), map[string]string{})

	// The connection stays usable afterwards
	send(t, conn, ws.MessageTypeOffer, ws.OfferPayload{
		Room: "lobby", PeerID: "A", Offer: "v=0",
	})
	require.Equal(t, ws.MessageTypeAnswer, receive(t, conn).Type)
}
