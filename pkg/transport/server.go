package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rcctl/avrcp-go/pkg/log"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address to listen on (e.g. "127.0.0.1:7300").
	Address string

	// MaxFrameSize bounds a single frame (default: DefaultMaxFrameSize).
	MaxFrameSize uint32

	// ProtocolLogger captures frames and connection state (optional).
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	Logger *slog.Logger

	// OnConnect is called for each accepted connection before its read loop
	// starts. It returns the handler for inbound messages.
	OnConnect func(conn *ServerConn) Handler

	// OnDisconnect is called after a connection's read loop exits.
	OnDisconnect func(conn *ServerConn)
}

// Server accepts stream connections and wraps each one in a StreamTransport.
type Server struct {
	config   ServerConfig
	listener net.Listener

	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ServerConn is an accepted connection.
type ServerConn struct {
	*StreamTransport
	connID string
}

// ConnID returns the connection's unique ID.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// NewServer creates a server. Call Start to listen.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if config.OnConnect == nil {
		return nil, fmt.Errorf("OnConnect is required")
	}
	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}, nil
}

// Start listens and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and all connections.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	s.listener.Close()

	s.connsMu.RLock()
	for c := range s.conns {
		c.Close()
	}
	s.connsMu.RUnlock()

	s.wg.Wait()
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				s.debugLog("transport: accept failed", "error", err)
			}
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	peer := conn.RemoteAddr().String()
	st := NewStreamTransport(conn, StreamConfig{
		Peer:         peer,
		MaxFrameSize: s.config.MaxFrameSize,
		Logger:       s.config.Logger,
	})
	if s.config.ProtocolLogger != nil {
		st.SetProtocolLogger(s.config.ProtocolLogger, connID)
	}
	sconn := &ServerConn{StreamTransport: st, connID: connID}

	s.logState(connID, peer, "", "CONNECTED")

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	handler := s.config.OnConnect(sconn)
	if err := st.Start(s.ctx, handler); err != nil {
		st.Close()
	}
	<-st.Done()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	s.logState(connID, peer, "CONNECTED", "DISCONNECTED")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

func (s *Server) logState(connID, peer, oldState, newState string) {
	if s.config.ProtocolLogger == nil {
		return
	}
	s.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		LocalRole:    log.RoleTarget,
		PeerAddr:     peer,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

func (s *Server) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}

// Dial connects to a Server and returns an unstarted StreamTransport.
func Dial(ctx context.Context, address string, config StreamConfig) (*StreamTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	if config.Peer == "" {
		config.Peer = conn.RemoteAddr().String()
	}
	return NewStreamTransport(conn, config), nil
}
