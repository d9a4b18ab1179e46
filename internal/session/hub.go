package session

import "sync"

// Subscriber receives snapshots of one room.
type Subscriber struct {
	UserID string
	Send   chan Snapshot

	last uint64 // highest Seq queued; guarded by Hub.mu
}

// Hub fans committed room snapshots out to connected clients.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers a client for a room's snapshots.
func (h *Hub) Subscribe(code, userID string) *Subscriber {
	sub := &Subscriber{UserID: userID, Send: make(chan Snapshot, 64)}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[code]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		h.rooms[code] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(code string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[code]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.Send)
	if len(subs) == 0 {
		delete(h.rooms, code)
	}
}

// Broadcast sends a snapshot to every subscriber of the room. A subscriber
// never receives a snapshot older than one already queued for it.
func (h *Hub) Broadcast(code string, snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.rooms[code] {
		h.offer(sub, snap)
	}
}

// Deliver queues a snapshot for a single subscriber.
func (h *Hub) Deliver(code string, sub *Subscriber, snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[code][sub]; !ok {
		return
	}
	h.offer(sub, snap)
}

func (h *Hub) offer(sub *Subscriber, snap Snapshot) {
	if snap.Seq < sub.last {
		return
	}
	select {
	case sub.Send <- snap:
		sub.last = snap.Seq
	default:
		// drop message if buffer full
	}
}

// Count returns the number of subscribers of a room.
func (h *Hub) Count(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}
