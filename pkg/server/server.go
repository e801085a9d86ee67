package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/seilige/messenger/pkg/protocol"
	"github.com/seilige/messenger/pkg/store"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	TCPHost            string
	TCPPort            int
	HTTPAddr           string
	MaxMessageLength   uint32
	OutboundQueueSize  int
	TakeoverCloseDelay time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() ServerConfig {
	return ServerConfig{
		TCPHost:            "127.0.0.1",
		TCPPort:            60000,
		HTTPAddr:           ":8080",
		MaxMessageLength:   protocol.MaxMessageTextSize,
		OutboundQueueSize:  256,
		TakeoverCloseDelay: 100 * time.Millisecond,
	}
}

// inboundEvent is one unit of work for the dispatcher. A nil frame marks
// a disconnect.
type inboundEvent struct {
	sessionID uint32
	frame     *protocol.Frame
}

// Server accepts client connections and routes their frames through a
// single dispatcher goroutine, so handler code never races with itself.
type Server struct {
	users    *store.UserStore
	chats    *store.ChatLogStore
	sessions *SessionManager
	registry *Registry
	config   ServerConfig
	metrics  *Metrics

	listener   net.Listener
	httpServer *http.Server
	inbound    chan inboundEvent
	shutdown   chan struct{}
	wg         sync.WaitGroup
}

// NewServer creates a new server instance backed by JSON stores in dataDir.
func NewServer(dataDir string, config ServerConfig) (*Server, error) {
	chats, err := store.OpenChatLogStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat store: %w", err)
	}
	users, err := store.OpenUserStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open user store: %w", err)
	}

	s := &Server{
		users:    users,
		chats:    chats,
		sessions: NewSessionManager(config.OutboundQueueSize),
		registry: NewRegistry(),
		config:   config,
		inbound:  make(chan inboundEvent, 1024),
		shutdown: make(chan struct{}),
	}
	return s, nil
}

// SetMetrics attaches metrics to the server and its session manager.
func (s *Server) SetMetrics(metrics *Metrics) {
	s.metrics = metrics
	s.sessions.SetMetrics(metrics)
}

// Start starts the TCP listener, the dispatcher, and the HTTP endpoint.
func (s *Server) Start() error {
	// Loopback by default; set tcp_host = "0.0.0.0" to expose the port.
	addr := fmt.Sprintf("%s:%d", s.config.TCPHost, s.config.TCPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	log.Printf("TCP server listening on %s", addr)

	s.wg.Add(1)
	go s.dispatchLoop()

	s.wg.Add(1)
	go s.acceptLoop()

	if s.config.HTTPAddr != "" {
		s.startHTTP()
	}

	return nil
}

// startHTTP serves Prometheus metrics and the WebSocket transport.
func (s *Server) startHTTP() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.HandleWebSocket)

	s.httpServer = &http.Server{
		Addr:    s.config.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", s.config.HTTPAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorLog.Printf("HTTP server error: %v", err)
		}
	}()
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	close(s.shutdown)

	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	if s.httpServer != nil {
		s.httpServer.Close()
		s.httpServer = nil
	}

	s.wg.Wait()
	s.sessions.CloseAll()
	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				log.Printf("Accept error: %v", err)
				continue
			}
		}

		go s.handleConnection(conn)
	}
}

// handleConnection validates a new client and runs its read loop.
func (s *Server) handleConnection(conn net.Conn) {
	// Disable Nagle's algorithm for immediate sends
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	if err := s.validateClient(conn); err != nil {
		debugLog.Printf("Handshake failed for %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	sess := s.sessions.CreateSession(conn)
	log.Printf("New connection from %s (session %d)", conn.RemoteAddr(), sess.ID)

	s.sendAccept(sess)
	s.sendNotice(sess, fmt.Sprintf("Welcome to the server! You are client #%d", sess.ID))
	s.sendNotice(sess, "Please register or log in to get access to server features")

	s.readLoop(sess)
}

// validateClient runs the challenge/response handshake before any frames
// are exchanged. The reply must be the scrambled challenge.
func (s *Server) validateClient(conn net.Conn) error {
	challenge := protocol.NewChallenge()

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	defer conn.SetDeadline(time.Time{})

	if err := protocol.WriteHandshake(conn, challenge); err != nil {
		return fmt.Errorf("send challenge: %w", err)
	}
	reply, err := protocol.ReadHandshake(conn)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if reply != protocol.Scramble(challenge) {
		return errors.New("challenge response mismatch")
	}
	return nil
}

// readLoop decodes frames off the socket and feeds them to the dispatcher.
func (s *Server) readLoop(sess *Session) {
	for {
		frame, err := protocol.DecodeFrame(sess.Conn)
		if err != nil {
			if err == io.EOF || sess.Closed() {
				debugLog.Printf("Session %d disconnected", sess.ID)
			} else {
				debugLog.Printf("Session %d read error: %v", sess.ID, err)
			}
			s.enqueue(inboundEvent{sessionID: sess.ID})
			return
		}

		if s.metrics != nil {
			s.metrics.RecordFrameReceived(protocol.KindName(frame.Kind))
		}
		s.enqueue(inboundEvent{sessionID: sess.ID, frame: frame})
	}
}

func (s *Server) enqueue(ev inboundEvent) {
	select {
	case s.inbound <- ev:
	case <-s.shutdown:
	}
}

// dispatchLoop is the single goroutine that mutates chat state. All
// handlers run here.
func (s *Server) dispatchLoop() {
	defer s.wg.Done()

	for {
		select {
		case ev := <-s.inbound:
			sess, ok := s.sessions.GetSession(ev.sessionID)
			if !ok {
				continue
			}
			if ev.frame == nil {
				s.handleDisconnect(sess)
				continue
			}
			s.handleFrame(sess, ev.frame)
		case <-s.shutdown:
			return
		}
	}
}

// handleDisconnect unbinds the session and tells everyone else.
func (s *Server) handleDisconnect(sess *Session) {
	username, wasBound := s.registry.Detach(sess.ID)
	s.sessions.RemoveSession(sess.ID)

	if wasBound {
		s.users.SetOnline(username, false)
		if s.metrics != nil {
			s.metrics.RecordAuthenticatedSessions(s.registry.Count())
		}
		s.broadcastNotice(fmt.Sprintf("User %s disconnected", username), sess.ID)
		log.Printf("Session %d (%s) disconnected", sess.ID, username)
	} else {
		log.Printf("Session %d disconnected", sess.ID)
	}
}

// sendFrame queues a frame on a session, disconnecting it when the queue
// is full or the session is gone.
func (s *Server) sendFrame(sess *Session, kind uint32, msg interface{ Encode() ([]byte, error) }) {
	var frame *protocol.Frame
	if msg == nil {
		frame = &protocol.Frame{Kind: kind}
	} else {
		var err error
		frame, err = protocol.NewFrame(kind, msg)
		if err != nil {
			errorLog.Printf("Session %d: encode %s: %v", sess.ID, protocol.KindName(kind), err)
			return
		}
	}

	if err := sess.Send(frame); err != nil {
		debugLog.Printf("Session %d: send %s failed: %v", sess.ID, protocol.KindName(kind), err)
		sess.Close()
	}
}

// sendAccept sends the transport-level acceptance (empty body).
func (s *Server) sendAccept(sess *Session) {
	s.sendFrame(sess, protocol.KindServerAccept, nil)
}

// sendAcceptWithID sends the post-authentication acceptance carrying the
// permanent user id.
func (s *Server) sendAcceptWithID(sess *Session, userID uint32) {
	s.sendFrame(sess, protocol.KindServerAccept, &protocol.ServerAcceptMessage{HasUserID: true, UserID: userID})
}

// sendNotice sends a textual server notice to one session.
func (s *Server) sendNotice(sess *Session, text string) {
	s.sendFrame(sess, protocol.KindServerMessage, &protocol.ServerTextMessage{Text: text})
}

// broadcastNotice sends a server notice to every authenticated session
// except the one identified by exceptID.
func (s *Server) broadcastNotice(text string, exceptID uint32) {
	for _, sess := range s.sessions.GetAllSessions() {
		if sess.ID == exceptID {
			continue
		}
		if !s.registry.Authenticated(sess.ID) {
			continue
		}
		s.sendNotice(sess, text)
	}
}
