package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/circuit-led/playback"
)

const (
	writeWait   = 5 * time.Second
	publishSize = 32
)

// Broadcaster manages connected WebSocket renderers and pushes playback
// snapshots to them.
type Broadcaster struct {
	sync.RWMutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	outbox   chan []byte
}

// NewBroadcaster creates a broadcaster. Call Run to start delivery.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			// renderers are served from anywhere on the local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		outbox: make(chan []byte, publishSize),
	}
}

// Publish queues snap for every client. It never blocks; when renderers fall
// behind the snapshot is dropped.
func (b *Broadcaster) Publish(snap playback.Snapshot) {
	msg, err := json.Marshal(newPlaybackView(snap))
	if err != nil {
		log.Errorf("encode snapshot: %v", err)
		return
	}
	select {
	case b.outbox <- msg:
	default:
		log.Debugf("renderers behind, dropping snapshot of frame %d", snap.FrameIndex)
	}
}

// Run delivers published snapshots until ctx ends, then closes all clients.
func (b *Broadcaster) Run(ctx context.Context) {
	defer b.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.outbox:
			b.Broadcast(msg)
		}
	}
}

// HandleConnections upgrades the request, sends initial and keeps the client
// registered until it disconnects.
func (b *Broadcaster) HandleConnections(w http.ResponseWriter, r *http.Request, initial []byte) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	defer func() { _ = conn.Close() }()

	// register while holding the lock so Broadcast cannot interleave with
	// the initial write
	b.Lock()
	if initial != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
			b.Unlock()
			log.Warnf("initial snapshot to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
	b.clients[conn] = true
	total := len(b.clients)
	b.Unlock()
	log.Infof("renderer connected: %s, %d total", conn.RemoteAddr(), total)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	b.Lock()
	delete(b.clients, conn)
	total = len(b.clients)
	b.Unlock()
	log.Infof("renderer disconnected: %s, %d total", conn.RemoteAddr(), total)
}

// Broadcast writes message to every connected client. Writes happen outside
// the lock so a stalled renderer does not hold up connects and disconnects;
// a client whose write fails is dropped. Run is the only caller; it must not
// run concurrently with itself.
func (b *Broadcaster) Broadcast(message []byte) {
	b.RLock()
	clients := make([]*websocket.Conn, 0, len(b.clients))
	for client := range b.clients {
		clients = append(clients, client)
	}
	b.RUnlock()

	for _, client := range clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Warnf("dropping renderer %s: %v", client.RemoteAddr(), err)
			b.remove(client)
		}
	}
}

// remove unregisters client and closes it, which ends its read loop.
func (b *Broadcaster) remove(client *websocket.Conn) {
	b.Lock()
	delete(b.clients, client)
	b.Unlock()
	_ = client.Close()
}

// Clients returns the number of connected renderers.
func (b *Broadcaster) Clients() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) closeAll() {
	b.Lock()
	defer b.Unlock()
	for client := range b.clients {
		_ = client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = client.Close()
	}
}
