package api

import (
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ActionEvent describes websocket payloads emitted while a predict or fetch
// action runs.
type ActionEvent struct {
	Type      string    `json:"type"`
	Tab       string    `json:"tab"`
	Message   string    `json:"message,omitempty"`
	ViewerKey string    `json:"viewer_key,omitempty"`
	PLDDT     *float64  `json:"plddt,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn    *websocket.Conn
	session string
	mu      sync.Mutex
}

type statusKey struct {
	session string
	tab     string
}

// ActionNotifier fans action events out to the websocket clients of the
// session that triggered them.
type ActionNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus map[statusKey]ActionEvent
}

// NewActionNotifier constructs a notifier instance.
func NewActionNotifier() *ActionNotifier {
	return &ActionNotifier{
		clients:    make(map[*wsClient]struct{}),
		lastStatus: make(map[statusKey]ActionEvent),
	}
}

// Register attaches a websocket connection for session and replays the last
// status of each of its tabs, oldest first.
func (n *ActionNotifier) Register(session string, conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn, session: session}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	var replay []ActionEvent
	for key, event := range n.lastStatus {
		if key.session == session {
			replay = append(replay, event)
		}
	}
	n.mu.Unlock()

	sort.Slice(replay, func(i, j int) bool {
		return replay[i].Timestamp.Before(replay[j].Timestamp)
	})
	for _, event := range replay {
		if err := client.writeJSON(event); err != nil {
			break
		}
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *ActionNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends event to every client registered for session.
func (n *ActionNotifier) Broadcast(session string, event ActionEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	n.lastStatus[statusKey{session: session, tab: event.Tab}] = event
	for client := range n.clients {
		if client.session != session {
			continue
		}
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// LastStatus returns the most recent event for the session's tab.
func (n *ActionNotifier) LastStatus(session, tab string) (ActionEvent, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	event, ok := n.lastStatus[statusKey{session: session, tab: tab}]
	return event, ok
}

// Forget drops the remembered status of the session's tab.
func (n *ActionNotifier) Forget(session, tab string) {
	n.mu.Lock()
	delete(n.lastStatus, statusKey{session: session, tab: tab})
	n.mu.Unlock()
}

// ForgetBefore drops every remembered status older than cutoff and returns
// how many were removed.
func (n *ActionNotifier) ForgetBefore(cutoff time.Time) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	removed := 0
	for key, event := range n.lastStatus {
		if event.Timestamp.Before(cutoff) {
			delete(n.lastStatus, key)
			removed++
		}
	}
	return removed
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
