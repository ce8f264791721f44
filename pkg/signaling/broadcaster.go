package signaling

// Broadcaster fans an application message out to every connected peer of a
// room. Safe to call from any goroutine: it hands the work to the manager's
// engine and does not wait for per-peer delivery.
type Broadcaster struct {
	manager *Manager
}

// NewBroadcaster creates a broadcaster on top of a manager
func NewBroadcaster(manager *Manager) *Broadcaster {
	return &Broadcaster{
		manager: manager,
	}
}

// Broadcast sends message to every connected peer in the room. Delivery is
// best effort; per-peer failures are logged, never returned.
func (b *Broadcaster) Broadcast(roomName, message string) {
	b.manager.submit("broadcast", func() {
		b.manager.broadcastMessage(roomName, message)
	})
}
