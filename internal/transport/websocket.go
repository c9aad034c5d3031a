package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	applog "barviz/internal/log"

	"github.com/gorilla/websocket"
)

// BandsPath is the route clients connect to.
const BandsPath = "/bands"

const (
	broadcastBuffer = 64
	writeTimeout    = time.Second
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: closed")

// WebSocketTransport implements the Transport interface by broadcasting each
// frame as JSON to every connected WebSocket client. Frames are dropped
// rather than queued without bound when clients fall behind.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	server    *http.Server
	dropped   uint64
}

// NewWebSocketTransport creates a transport and starts its broadcast
// goroutine. It does not listen; call ListenAndServe or mount Handler.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Browser clients are served from anywhere
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastBuffer),
		done:      make(chan struct{}),
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Handler returns the HTTP handler serving BandsPath.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(BandsPath, wst.handleWebSocket)
	return mux
}

// ListenAndServe binds addr and serves clients in the background. Bind
// errors are returned synchronously.
func (wst *WebSocketTransport) ListenAndServe() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return fmt.Errorf("transport: listen on %s: %w", wst.addr, err)
	}

	wst.server = &http.Server{
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		applog.Infof("WebSocketTransport: Serving ws://%s%s", ln.Addr(), BandsPath)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()
	return nil
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients only listen; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.removeClient(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends queued frames to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for {
		select {
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteJSON(data); err != nil {
					applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		case <-wst.done:
			return
		}
	}
}

// Send queues data for broadcast. It never blocks: when the queue is full
// the frame is dropped.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}

	select {
	case wst.broadcast <- data:
	default:
		wst.clientsMu.Lock()
		wst.dropped++
		wst.clientsMu.Unlock()
		applog.Debugf("WebSocketTransport: Queue full, dropping frame")
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Dropped returns the number of frames discarded because the queue was full.
func (wst *WebSocketTransport) Dropped() uint64 {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return wst.dropped
}

// Close stops broadcasting, disconnects every client and shuts the server.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)
		wst.wg.Wait()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
