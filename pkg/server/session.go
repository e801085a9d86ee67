package server

import (
	"errors"
	"net"
	"sync"

	"github.com/seilige/messenger/pkg/protocol"
)

// ErrQueueFull is returned by Send when a session's outbound queue is at
// capacity. The dispatcher treats this as a dead client.
var ErrQueueFull = errors.New("outbound queue full")

// Session represents an active client connection. Frames queued via Send
// are written to the socket by a dedicated writer goroutine, so handlers
// never block on a slow client.
type Session struct {
	ID   uint32
	Conn net.Conn

	outbound  chan *protocol.Frame
	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(id uint32, conn net.Conn, queueSize int) *Session {
	return &Session{
		ID:       id,
		Conn:     conn,
		outbound: make(chan *protocol.Frame, queueSize),
		closed:   make(chan struct{}),
	}
}

// Send queues a frame for delivery. It never blocks: a full queue returns
// ErrQueueFull and a closed session returns net.ErrClosed.
func (s *Session) Send(frame *protocol.Frame) error {
	select {
	case <-s.closed:
		return net.ErrClosed
	default:
	}

	select {
	case s.outbound <- frame:
		return nil
	case <-s.closed:
		return net.ErrClosed
	default:
		return ErrQueueFull
	}
}

// Close shuts the session down. Safe to call more than once and from any
// goroutine; the writer drains and the reader unblocks via the socket close.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.Conn.Close()
	})
}

// Closed reports whether the session has been shut down.
func (s *Session) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// writeLoop drains the outbound queue onto the socket. Runs until the
// session closes or a write fails.
func (s *Session) writeLoop(metrics *Metrics) {
	for {
		select {
		case frame := <-s.outbound:
			if err := protocol.EncodeFrame(s.Conn, frame); err != nil {
				debugLog.Printf("Session %d: write failed (%s): %v", s.ID, protocol.KindName(frame.Kind), err)
				s.Close()
				return
			}
			if metrics != nil {
				metrics.RecordFrameSent(protocol.KindName(frame.Kind))
			}
		case <-s.closed:
			return
		}
	}
}

// SessionManager tracks all live sessions and hands out connection ids.
type SessionManager struct {
	mu        sync.RWMutex
	sessions  map[uint32]*Session
	nextID    uint32
	queueSize int
	metrics   *Metrics
}

// NewSessionManager creates a new session manager. Connection ids start
// at 10000 so they are visually distinct from user ids in logs.
func NewSessionManager(queueSize int) *SessionManager {
	return &SessionManager{
		sessions:  make(map[uint32]*Session),
		nextID:    10000,
		queueSize: queueSize,
	}
}

// SetMetrics attaches metrics to the session manager
func (sm *SessionManager) SetMetrics(metrics *Metrics) {
	sm.metrics = metrics
}

// CreateSession registers a connection and starts its writer goroutine.
func (sm *SessionManager) CreateSession(conn net.Conn) *Session {
	sm.mu.Lock()
	id := sm.nextID
	sm.nextID++
	sess := newSession(id, conn, sm.queueSize)
	sm.sessions[id] = sess
	count := len(sm.sessions)
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.RecordActiveSessions(count)
		sm.metrics.RecordSessionCreated()
	}

	go sess.writeLoop(sm.metrics)
	return sess
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(sessionID uint32) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sess, ok := sm.sessions[sessionID]
	return sess, ok
}

// GetAllSessions returns all active sessions
func (sm *SessionManager) GetAllSessions() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// RemoveSession removes a session and closes the connection
func (sm *SessionManager) RemoveSession(sessionID uint32) {
	sm.mu.Lock()
	sess, ok := sm.sessions[sessionID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	delete(sm.sessions, sessionID)
	count := len(sm.sessions)
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.RecordActiveSessions(count)
		sm.metrics.RecordSessionDisconnected()
	}

	sess.Close()
}

// CountSessions returns the number of live sessions.
func (sm *SessionManager) CountSessions() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return len(sm.sessions)
}

// CloseAll closes all sessions
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, sess := range sm.sessions {
		sess.Close()
	}
	sm.sessions = make(map[uint32]*Session)
}
