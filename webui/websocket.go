package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lulu_studio/logging"
	"lulu_studio/metrics"
)

// WebSocketBroadcaster fans state messages out to every connected browser.
// A single loop owns client registration; each client has its own write
// pump, which is the only goroutine writing to that connection.
type WebSocketBroadcaster struct {
	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*wsClient

	broadcast  chan WSMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once

	upgrader websocket.Upgrader

	pingInterval   time.Duration
	pongWait       time.Duration
	writeWait      time.Duration
	maxMessageSize int64
	sendBuffer     int

	// initial builds the first message a client receives, if set.
	initial func() WSMessage

	logger *logging.Logger
}

type wsClient struct {
	connectedAt time.Time
	remoteAddr  string
	send        chan []byte
}

// BroadcasterConfig configures a WebSocketBroadcaster.
type BroadcasterConfig struct {
	PingInterval         time.Duration
	PongWait             time.Duration
	WriteWait            time.Duration
	MaxMessageSize       int64
	BroadcastBufferSize  int
	ClientSendBufferSize int
	Logger               *logging.Logger
}

// DefaultBroadcasterConfig returns the production settings.
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		PingInterval:         30 * time.Second,
		PongWait:             60 * time.Second,
		WriteWait:            10 * time.Second,
		MaxMessageSize:       512,
		BroadcastBufferSize:  256,
		ClientSendBufferSize: 64,
	}
}

// NewWebSocketBroadcaster returns a broadcaster with default settings.
func NewWebSocketBroadcaster(logger *logging.Logger) *WebSocketBroadcaster {
	cfg := DefaultBroadcasterConfig()
	cfg.Logger = logger
	return NewWebSocketBroadcasterWithConfig(cfg)
}

// NewWebSocketBroadcasterWithConfig returns a broadcaster. Call Start to run it.
func NewWebSocketBroadcasterWithConfig(cfg BroadcasterConfig) *WebSocketBroadcaster {
	def := DefaultBroadcasterConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.BroadcastBufferSize <= 0 {
		cfg.BroadcastBufferSize = def.BroadcastBufferSize
	}
	if cfg.ClientSendBufferSize <= 0 {
		cfg.ClientSendBufferSize = def.ClientSendBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	return &WebSocketBroadcaster{
		clients:        make(map[*websocket.Conn]*wsClient),
		broadcast:      make(chan WSMessage, cfg.BroadcastBufferSize),
		register:       make(chan *websocket.Conn),
		unregister:     make(chan *websocket.Conn),
		done:           make(chan struct{}),
		pingInterval:   cfg.PingInterval,
		pongWait:       cfg.PongWait,
		writeWait:      cfg.WriteWait,
		maxMessageSize: cfg.MaxMessageSize,
		sendBuffer:     cfg.ClientSendBufferSize,
		logger:         cfg.Logger.Named("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameOrigin,
		},
	}
}

// SetInitialState sets the builder of the message sent on connect. It must
// be called before Start.
func (b *WebSocketBroadcaster) SetInitialState(fn func() WSMessage) {
	b.initial = fn
}

// Start runs the registration and broadcast loop until ctx is cancelled or
// Close is called.
func (b *WebSocketBroadcaster) Start(ctx context.Context) {
	b.logger.Debug("Broadcaster started")
	defer b.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case conn := <-b.register:
			b.addClient(conn)
		case conn := <-b.unregister:
			b.removeClient(conn)
		case msg := <-b.broadcast:
			b.broadcastToAll(msg)
		}
	}
}

func (b *WebSocketBroadcaster) stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.closeAllClients()
		b.logger.Debug("Broadcaster stopped")
	})
}

// HandleConnection upgrades the request and registers the client.
func (b *WebSocketBroadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	conn.SetReadLimit(b.maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(b.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.pongWait))
	})

	select {
	case b.register <- conn:
	case <-b.done:
		conn.Close()
		return
	}
	go b.readPump(conn)
}

// BroadcastMessage queues msg for every client. It never blocks; when the
// queue is full the message is dropped.
func (b *WebSocketBroadcaster) BroadcastMessage(msg WSMessage) {
	select {
	case b.broadcast <- msg:
	default:
		b.logger.Warn("Broadcast queue full, dropping message", zap.String("type", msg.Type))
	}
}

// RecordTask implements metrics.TaskRecorder by pushing a task update.
func (b *WebSocketBroadcaster) RecordTask(task metrics.TaskRecord) {
	b.BroadcastMessage(NewTaskUpdateMessage(task))
}

// ClientCount returns the number of connected clients.
func (b *WebSocketBroadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client and stops the loop.
func (b *WebSocketBroadcaster) Close() {
	b.stop()
}

// encode marshals msg. A message that cannot be encoded is replaced by an
// error message so clients learn that an update was lost.
func (b *WebSocketBroadcaster) encode(msg WSMessage) []byte {
	data, err := json.Marshal(msg)
	if err == nil {
		return data
	}
	b.logger.Error("Failed to encode message", zap.String("type", msg.Type), zap.Error(err))
	if msg.Type == MessageTypeError {
		return nil
	}
	data, err = json.Marshal(NewErrorMessage("encode_failed", fmt.Sprintf("%s update could not be encoded", msg.Type)))
	if err != nil {
		return nil
	}
	return data
}

// addClient runs on the loop goroutine. The initial state is taken here so
// that any change after it is still queued behind this registration.
func (b *WebSocketBroadcaster) addClient(conn *websocket.Conn) {
	client := &wsClient{
		connectedAt: time.Now(),
		remoteAddr:  conn.RemoteAddr().String(),
		send:        make(chan []byte, b.sendBuffer),
	}
	if b.initial != nil {
		if data := b.encode(b.initial()); data != nil {
			client.send <- data
		}
	}

	b.clientsMu.Lock()
	select {
	case <-b.done:
		b.clientsMu.Unlock()
		conn.Close()
		return
	default:
	}
	b.clients[conn] = client
	total := len(b.clients)
	b.clientsMu.Unlock()

	go b.writePump(conn, client.send)
	b.logger.Debug("Client connected",
		zap.String("remote_addr", client.remoteAddr),
		zap.Int("clients", total),
	)
}

func (b *WebSocketBroadcaster) removeClient(conn *websocket.Conn) {
	b.clientsMu.Lock()
	client, ok := b.clients[conn]
	if ok {
		delete(b.clients, conn)
		close(client.send)
	}
	total := len(b.clients)
	b.clientsMu.Unlock()

	if ok {
		b.logger.Debug("Client disconnected",
			zap.String("remote_addr", client.remoteAddr),
			zap.Duration("connected_for", time.Since(client.connectedAt)),
			zap.Int("clients", total),
		)
	}
}

// broadcastToAll runs on the loop goroutine. A client whose buffer is full
// is dropped; the browser reconnects and receives a fresh initial state.
func (b *WebSocketBroadcaster) broadcastToAll(msg WSMessage) {
	data := b.encode(msg)
	if data == nil {
		return
	}

	var slow []*websocket.Conn
	b.clientsMu.RLock()
	for conn, client := range b.clients {
		select {
		case client.send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	b.clientsMu.RUnlock()

	for _, conn := range slow {
		b.logger.Warn("Client too slow, disconnecting", zap.String("remote_addr", conn.RemoteAddr().String()))
		b.removeClient(conn)
	}
}

func (b *WebSocketBroadcaster) closeAllClients() {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()
	for conn, client := range b.clients {
		close(client.send)
		delete(b.clients, conn)
	}
}

// readPump discards client messages; it exists to process pongs and to
// notice the connection going away.
func (b *WebSocketBroadcaster) readPump(conn *websocket.Conn) {
	defer func() {
		select {
		case b.unregister <- conn:
		case <-b.done:
		}
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				b.logger.Debug("Unexpected close", zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer of conn. It exits when send is closed.
func (b *WebSocketBroadcaster) writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(b.pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(b.writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(b.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ metrics.TaskRecorder = (*WebSocketBroadcaster)(nil)
