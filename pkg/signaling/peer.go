package signaling

import (
	"time"

	"github.com/Sagnify/peergo/internal/logging"
	"github.com/Sagnify/peergo/pkg/webrtc"
)

// State represents a peer's negotiation phase
type State int

const (
	// StatePending means the peer exists but no description has been exchanged
	StatePending State = iota
	// StateNegotiating means the offer was applied and the answer returned
	StateNegotiating
	// StateConnected means the data channel is open
	StateConnected
	// StateClosed is terminal; a reused peer ID gets a brand-new peer
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PeerInfo is the caller-visible snapshot of one peer
type PeerInfo struct {
	PeerID   string         `json:"peer_id"`
	JoinedAt time.Time      `json:"joined_at"`
	IsHost   bool           `json:"is_host"`
	State    string         `json:"state"`
	Info     map[string]any `json:"info,omitempty"`
}

// Peer tracks one peer's negotiation state and its transport. All fields are
// owned by the manager's engine goroutine; no locking here.
type Peer struct {
	id        string
	state     State
	joinedAt  time.Time
	info      map[string]any
	isHost    bool
	transport webrtc.Transport

	remoteApplied     bool
	pendingCandidates []string
	appliedCandidates map[string]struct{}
	joinAnnounced     bool
}

func newPeer(id string, info map[string]any, transport webrtc.Transport) *Peer {
	return &Peer{
		id:                id,
		state:             StatePending,
		joinedAt:          time.Now(),
		info:              info,
		transport:         transport,
		appliedCandidates: make(map[string]struct{}),
	}
}

// ID returns the peer's identifier
func (p *Peer) ID() string {
	return p.id
}

// State returns the peer's negotiation phase
func (p *Peer) State() State {
	return p.state
}

func (p *Peer) snapshot() PeerInfo {
	return PeerInfo{
		PeerID:   p.id,
		JoinedAt: p.joinedAt,
		IsHost:   p.isHost,
		State:    p.state.String(),
		Info:     p.info,
	}
}

// bufferCandidate queues a candidate that arrived ahead of the remote description
func (p *Peer) bufferCandidate(candidate string) {
	p.pendingCandidates = append(p.pendingCandidates, candidate)
}

// applyCandidate hands a candidate to the engine, once per distinct value
func (p *Peer) applyCandidate(candidate string) error {
	if _, seen := p.appliedCandidates[candidate]; seen {
		return nil
	}

	if err := p.transport.AddCandidate(candidate); err != nil {
		return err
	}

	p.appliedCandidates[candidate] = struct{}{}
	return nil
}

// flushCandidates replays buffered candidates in arrival order. Failures are
// logged per candidate and do not stop the replay.
func (p *Peer) flushCandidates(logger *logging.Logger) {
	pending := p.pendingCandidates
	p.pendingCandidates = nil

	for _, candidate := range pending {
		if err := p.applyCandidate(candidate); err != nil {
			logger.Error("failed to apply buffered candidate", "peer_id", p.id, "error", err)
		}
	}
}
