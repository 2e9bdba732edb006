package ws

import "sync"

// Hub maintains the set of active Clients and the canvas rooms they joined.
// A client is in at most one room.
type Hub struct {
	// Registered Clients, mapped to their room ("" when not joined).
	clients map[*Client]string
	// Canvas id to the Clients in that room.
	rooms map[string]map[*Client]struct{}
	// Session id to the registered Client that owns it.
	sessions map[string]*Client
	mu       sync.RWMutex

	// Register requests from the Clients.
	Register chan *Client

	// Unregister requests from Clients.
	Unregister chan *Client

	// OnDrop is called after a client was removed because its send queue
	// overflowed.
	OnDrop func(client *Client)
}

type HubStats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
	Joined      int `json:"joined"`
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]string),
		rooms:      make(map[string]map[*Client]struct{}),
		sessions:   make(map[string]*Client),
	}
}

// Run serves Register and Unregister until both channels are closed.
func (h *Hub) Run() {
	register, unregister := h.Register, h.Unregister
	for register != nil || unregister != nil {
		select {
		case client, ok := <-register:
			if !ok {
				register = nil
				continue
			}
			h.register(client)
		case client, ok := <-unregister:
			if !ok {
				unregister = nil
				continue
			}
			h.unregister(client)
		}
	}
}

func (h *Hub) register(client *Client) {
	if client == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		h.clients[client] = ""
		h.sessions[client.SessionId] = client
	}
}

func (h *Hub) unregister(client *Client) {
	if client == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

// removeLocked drops the client from its room and closes its send queue.
// Callers hold the write lock.
func (h *Hub) removeLocked(client *Client) bool {
	room, ok := h.clients[client]
	if !ok {
		return false
	}
	h.leaveLocked(client, room)
	delete(h.clients, client)
	if h.sessions[client.SessionId] == client {
		delete(h.sessions, client.SessionId)
	}
	close(client.Send)
	return true
}

func (h *Hub) leaveLocked(client *Client, room string) {
	if room == "" {
		return
	}
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.clients[client] = ""
}

// JoinRoom moves the client into room and returns the room it left, if any.
func (h *Hub) JoinRoom(client *Client, room string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	previous := h.clients[client]
	if previous == room {
		if _, ok := h.rooms[room][client]; ok {
			return ""
		}
	}
	h.leaveLocked(client, previous)

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}
	h.clients[client] = room

	if previous == room {
		return ""
	}
	return previous
}

// LeaveRoom removes the client from its room and returns the room it was in.
func (h *Hub) LeaveRoom(client *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.clients[client]
	if !ok {
		return ""
	}
	h.leaveLocked(client, room)
	return room
}

func (h *Hub) RoomOf(client *Client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[client]
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomClients returns a snapshot of the clients in room.
func (h *Hub) RoomClients(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		clients = append(clients, client)
	}
	return clients
}

// ClientBySession finds the connection that owns sessionId.
func (h *Hub) ClientBySession(sessionId string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[sessionId]
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	joined := 0
	for _, members := range h.rooms {
		joined += len(members)
	}
	return HubStats{
		Rooms:       len(h.rooms),
		Connections: len(h.clients),
		Joined:      joined,
	}
}

// SendTo queues message for a single client.
func (h *Hub) SendTo(client *Client, message []byte) {
	h.mu.RLock()
	_, registered := h.clients[client]
	delivered := !registered || trySend(client, message)
	h.mu.RUnlock()

	if !delivered {
		h.drop(client)
	}
}

// BroadcastToRoom queues message for every client in room except skip,
// which may be nil. A client whose queue is full is dropped without
// affecting the others.
func (h *Hub) BroadcastToRoom(room string, message []byte, skip *Client) {
	var overflowed []*Client

	h.mu.RLock()
	for client := range h.rooms[room] {
		if client == skip {
			continue
		}
		if !trySend(client, message) {
			overflowed = append(overflowed, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range overflowed {
		h.drop(client)
	}
}

func trySend(client *Client, message []byte) bool {
	select {
	case client.Send <- message:
		return true
	default:
		return false
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	removed := h.removeLocked(client)
	h.mu.Unlock()

	if removed {
		if client.Conn != nil {
			client.Conn.Close()
		}
		if h.OnDrop != nil {
			h.OnDrop(client)
		}
	}
}
