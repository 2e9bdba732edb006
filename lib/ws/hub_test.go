package ws

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHubClient(hub *Hub, sessionId string, buffer int) *Client {
	return &Client{
		Hub:       hub,
		Conn:      NewMockWebSocketConn(),
		Send:      make(chan []byte, buffer),
		SessionId: sessionId,
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(func() {
		close(hub.Register)
		close(hub.Unregister)
	})
	return hub
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	require.NotNil(t, hub)
	assert.NotNil(t, hub.Register)
	assert.NotNil(t, hub.Unregister)
	assert.Equal(t, HubStats{}, hub.Stats())
}

func TestHub_RegisterClient(t *testing.T) {
	hub := startHub(t)
	client := newHubClient(hub, "session123", 256)

	hub.Register <- client

	assert.Eventually(t, func() bool {
		return hub.Stats().Connections == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "", hub.RoomOf(client))
	assert.Same(t, client, hub.ClientBySession("session123"))
}

func TestHub_UnregisterClient(t *testing.T) {
	hub := startHub(t)
	client := newHubClient(hub, "session123", 256)

	hub.Register <- client
	hub.JoinRoom(client, "canvas-1")
	hub.Unregister <- client

	assert.Eventually(t, func() bool {
		return hub.Stats().Connections == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.RoomSize("canvas-1"))

	_, ok := <-client.Send
	assert.False(t, ok, "Send channel should be closed")

	// unregistering twice must not close the channel again
	hub.Unregister <- client
	assert.Nil(t, hub.ClientBySession("session123"))
}

func TestHub_ClientBySessionIndex(t *testing.T) {
	hub := NewHub()
	clients := make([]*Client, 0, 50)
	for i := 0; i < 50; i++ {
		client := newHubClient(hub, "session-"+strconv.Itoa(i), 1)
		hub.register(client)
		clients = append(clients, client)
	}

	for i, client := range clients {
		assert.Same(t, client, hub.ClientBySession("session-"+strconv.Itoa(i)))
	}
	assert.Nil(t, hub.ClientBySession("session-unknown"))

	hub.unregister(clients[7])
	assert.Nil(t, hub.ClientBySession("session-7"))
	assert.Same(t, clients[8], hub.ClientBySession("session-8"))
	assert.Len(t, hub.sessions, 49)
}

func TestHub_ClientBySessionKeepsNewerOwner(t *testing.T) {
	hub := NewHub()
	first := newHubClient(hub, "shared", 1)
	hub.register(first)
	hub.unregister(first)

	second := newHubClient(hub, "shared", 1)
	hub.register(second)
	// a late unregister of the old connection must not drop the new one
	hub.unregister(first)

	assert.Same(t, second, hub.ClientBySession("shared"))
}

func TestHub_JoinRoomMovesClient(t *testing.T) {
	hub := NewHub()
	client := newHubClient(hub, "session1", 8)
	hub.register(client)

	assert.Equal(t, "", hub.JoinRoom(client, "canvas-1"))
	assert.Equal(t, "", hub.JoinRoom(client, "canvas-1"))
	assert.Equal(t, 1, hub.RoomSize("canvas-1"))

	assert.Equal(t, "canvas-1", hub.JoinRoom(client, "canvas-2"))
	assert.Equal(t, 0, hub.RoomSize("canvas-1"))
	assert.Equal(t, 1, hub.RoomSize("canvas-2"))
	assert.Equal(t, "canvas-2", hub.RoomOf(client))

	assert.Equal(t, "canvas-2", hub.LeaveRoom(client))
	assert.Equal(t, "", hub.LeaveRoom(client))
	assert.Equal(t, HubStats{Rooms: 0, Connections: 1, Joined: 0}, hub.Stats())
}

func TestHub_BroadcastToRoom(t *testing.T) {
	hub := NewHub()
	sender := newHubClient(hub, "session1", 8)
	peer := newHubClient(hub, "session2", 8)
	outsider := newHubClient(hub, "session3", 8)
	for _, client := range []*Client{sender, peer, outsider} {
		hub.register(client)
	}
	hub.JoinRoom(sender, "canvas-1")
	hub.JoinRoom(peer, "canvas-1")
	hub.JoinRoom(outsider, "canvas-2")

	testMessage := []byte(`{"event":"test","data":"hello"}`)
	hub.BroadcastToRoom("canvas-1", testMessage, nil)

	assert.Equal(t, testMessage, <-sender.Send)
	assert.Equal(t, testMessage, <-peer.Send)
	assert.Len(t, outsider.Send, 0)

	hub.BroadcastToRoom("canvas-1", testMessage, sender)
	assert.Len(t, sender.Send, 0)
	assert.Len(t, peer.Send, 1)
}

func TestHub_BroadcastToFullChannel(t *testing.T) {
	hub := NewHub()
	slow := newHubClient(hub, "slow", 1)
	fast := newHubClient(hub, "fast", 8)
	hub.register(slow)
	hub.register(fast)
	hub.JoinRoom(slow, "canvas-1")
	hub.JoinRoom(fast, "canvas-1")

	var dropped []*Client
	hub.OnDrop = func(client *Client) {
		dropped = append(dropped, client)
	}

	hub.BroadcastToRoom("canvas-1", []byte("first message"), nil)
	hub.BroadcastToRoom("canvas-1", []byte("second message that causes overflow"), nil)

	assert.Equal(t, []*Client{slow}, dropped)
	assert.Nil(t, hub.ClientBySession("slow"))
	assert.Equal(t, 1, hub.RoomSize("canvas-1"))
	assert.True(t, slow.Conn.(*MockWebSocketConn).IsClosed())
	assert.Len(t, fast.Send, 2)
}

func TestHub_SendToUnknownClient(t *testing.T) {
	hub := NewHub()
	client := newHubClient(hub, "session1", 1)

	hub.SendTo(client, []byte("ignored"))

	assert.Len(t, client.Send, 0)
}

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := startHub(t)

	const numClients = 10
	const numMessages = 5

	var wg sync.WaitGroup
	clients := make([]*Client, numClients)

	wg.Add(numClients)
	for i := 0; i < numClients; i++ {
		go func(index int) {
			defer wg.Done()
			clients[index] = newHubClient(hub, "session"+strconv.Itoa(index), 256)
			hub.Register <- clients[index]
			hub.JoinRoom(clients[index], "canvas-1")
		}(i)
	}
	wg.Wait()

	wg.Add(numMessages)
	for i := 0; i < numMessages; i++ {
		go func(msgIndex int) {
			defer wg.Done()
			hub.BroadcastToRoom("canvas-1", []byte(`{"event":"test","data":`+strconv.Itoa(msgIndex)+`}`), nil)
		}(i)
	}
	wg.Wait()

	for i, client := range clients {
		assert.Len(t, client.Send, numMessages, "Client %d should receive all messages", i)
	}
	assert.Equal(t, HubStats{Rooms: 1, Connections: numClients, Joined: numClients}, hub.Stats())
}

func TestHub_MultipleRooms(t *testing.T) {
	hub := NewHub()
	client1 := newHubClient(hub, "session1", 8)
	client2 := newHubClient(hub, "session2", 8)
	hub.register(client1)
	hub.register(client2)
	hub.JoinRoom(client1, "canvas-1")
	hub.JoinRoom(client2, "canvas-2")

	hub.BroadcastToRoom("canvas-1", []byte("only canvas-1"), nil)

	assert.Len(t, client1.Send, 1)
	assert.Len(t, client2.Send, 0)
	assert.ElementsMatch(t, []*Client{client1}, hub.RoomClients("canvas-1"))
	assert.Equal(t, 2, hub.Stats().Rooms)
}
