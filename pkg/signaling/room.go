package signaling

// RoomInfo is an operational summary of one room
type RoomInfo struct {
	PeerCount int      `json:"peer_count"`
	HostID    string   `json:"host_id"`
	PeerIDs   []string `json:"peer_ids"`
}

// Room owns a set of peers and tracks which one is the host. Owned by the
// manager's engine goroutine; no locking here. A room never outlives its
// last peer.
type Room struct {
	name   string
	peers  map[string]*Peer
	order  []string // peer IDs in join order
	hostID string
}

func newRoom(name string) *Room {
	return &Room{
		name:  name,
		peers: make(map[string]*Peer),
	}
}

// Name returns the room's name
func (r *Room) Name() string {
	return r.name
}

// HostID returns the current host's peer ID, or "" when the room is empty
func (r *Room) HostID() string {
	return r.hostID
}

func (r *Room) addPeer(p *Peer) {
	r.peers[p.id] = p
	r.order = append(r.order, p.id)
}

func (r *Room) removePeer(id string) (*Peer, bool) {
	p, ok := r.peers[id]
	if !ok {
		return nil, false
	}

	delete(r.peers, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return p, true
}

func (r *Room) peer(id string) (*Peer, bool) {
	p, ok := r.peers[id]
	return p, ok
}

func (r *Room) size() int {
	return len(r.peers)
}

// peerIDs returns peer IDs in join order
func (r *Room) peerIDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

func (r *Room) snapshot() []PeerInfo {
	infos := make([]PeerInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.peers[id].snapshot())
	}
	return infos
}

func (r *Room) info() RoomInfo {
	return RoomInfo{
		PeerCount: len(r.peers),
		HostID:    r.hostID,
		PeerIDs:   r.peerIDs(),
	}
}

// electHost keeps the host slot pointing at a present peer: if the current
// host is gone (or none was ever set), the earliest-joined remaining peer is
// promoted. Returns the host ID and whether it changed.
func (r *Room) electHost() (string, bool) {
	if r.hostID != "" {
		if _, present := r.peers[r.hostID]; present {
			return r.hostID, false
		}
	}

	if len(r.order) == 0 {
		changed := r.hostID != ""
		r.hostID = ""
		return "", changed
	}

	r.hostID = r.order[0]
	for _, p := range r.peers {
		p.isHost = p.id == r.hostID
	}

	return r.hostID, true
}
