package webrtc

import (
	"testing"

	"github.com/Sagnify/peergo/internal/logging"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text"})
}

// newTestTransport builds a transport with no STUN servers so tests stay on
// host candidates and never touch the network.
func newTestTransport(t *testing.T) *PeerTransport {
	t.Helper()

	transport, err := NewPeerTransport("test-peer", PeerTransportOptions{Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { transport.Close() })
	return transport
}

// newClientOffer drives a local pion peer connection through the browser side
// of the handshake and returns its gathered offer SDP.
func newClientOffer(t *testing.T) (*webrtc.PeerConnection, string) {
	t.Helper()

	client, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	_, err = client.CreateDataChannel("chat", nil)
	require.NoError(t, err)

	offer, err := client.CreateOffer(nil)
	require.NoError(t, err)

	gatherComplete := webrtc.GatheringCompletePromise(client)
	require.NoError(t, client.SetLocalDescription(offer))
	<-gatherComplete

	return client, client.LocalDescription().SDP
}

func TestAnswerProducesAcceptableSDP(t *testing.T) {
	transport := newTestTransport(t)
	client, offerSDP := newClientOffer(t)

	answer, err := transport.Answer(offerSDP)
	require.NoError(t, err)
	require.NotEmpty(t, answer)

	// The client accepts the answer, which proves it is a complete,
	// well-formed session description.
	err = client.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	})
	require.NoError(t, err)
}

func TestAnswerRejectsEmptyOffer(t *testing.T) {
	transport := newTestTransport(t)

	_, err := transport.Answer("   ")
	assert.ErrorIs(t, err, ErrInvalidSDP)
}

func TestAnswerRejectsGarbageOffer(t *testing.T) {
	transport := newTestTransport(t)

	_, err := transport.Answer("not an sdp")
	require.Error(t, err)
}

func TestAddCandidateQueuesBeforeRemoteDescription(t *testing.T) {
	transport := newTestTransport(t)

	err := transport.AddCandidate("candidate:1 1 UDP 2130706431 127.0.0.1 54400 typ host")
	require.NoError(t, err)

	transport.candidatesMu.Lock()
	queued := len(transport.pendingCandidates)
	transport.candidatesMu.Unlock()
	assert.Equal(t, 1, queued)
}

func TestAddCandidateRejectsEmpty(t *testing.T) {
	transport := newTestTransport(t)

	err := transport.AddCandidate("  ")
	assert.ErrorIs(t, err, ErrInvalidICECandidate)
}

func TestSendWithoutOpenChannel(t *testing.T) {
	transport := newTestTransport(t)

	err := transport.Send([]byte("hello"))
	assert.ErrorIs(t, err, ErrDataChannelNotOpen)
}

func TestParseCandidateBareString(t *testing.T) {
	init, err := parseCandidate("candidate:1 1 UDP 2130706431 127.0.0.1 54400 typ host")
	require.NoError(t, err)
	assert.Equal(t, "candidate:1 1 UDP 2130706431 127.0.0.1 54400 typ host", init.Candidate)
}

func TestParseCandidateBrowserJSON(t *testing.T) {
	raw := `{"candidate": "candidate:2 1 UDP 1694498815 203.0.113.5 54401 typ srflx", "sdpMid": "0", "sdpMLineIndex": 0}`

	init, err := parseCandidate(raw)
	require.NoError(t, err)
	assert.Equal(t, "candidate:2 1 UDP 1694498815 203.0.113.5 54401 typ srflx", init.Candidate)
	require.NotNil(t, init.SDPMid)
	assert.Equal(t, "0", *init.SDPMid)
}

func TestParseCandidateRejectsBadJSON(t *testing.T) {
	_, err := parseCandidate("{not json")
	assert.ErrorIs(t, err, ErrInvalidICECandidate)
}

func TestDefaultPeerTransportOptions(t *testing.T) {
	opts := DefaultPeerTransportOptions(testLogger())
	require.Len(t, opts.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, opts.ICEServers[0].URLs)
}
