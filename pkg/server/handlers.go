package server

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/seilige/messenger/pkg/protocol"
	"github.com/seilige/messenger/pkg/store"
)

// handleFrame dispatches a decoded frame to the appropriate handler. All
// handlers run on the dispatcher goroutine.
func (s *Server) handleFrame(sess *Session, frame *protocol.Frame) {
	switch frame.Kind {
	case protocol.KindRegisterRequest:
		s.handleRegisterRequest(sess, frame.Body)
	case protocol.KindLoginRequest:
		s.handleLoginRequest(sess, frame.Body)
	case protocol.KindRequestClientList:
		s.handleClientListRequest(sess)
	case protocol.KindDirectMessage:
		s.handleDirectMessage(sess, frame.Body)
	case protocol.KindChatRequest:
		s.handleChatRequest(sess, frame.Body)
	case protocol.KindChatResponse:
		s.handleChatResponse(sess, frame.Body)
	case protocol.KindChatHistoryRequest:
		s.handleChatHistoryRequest(sess, frame.Body)
	case protocol.KindGlobalMessage:
		s.handleGlobalMessage(sess, frame.Body)
	case protocol.KindGlobalChatHistoryRequest:
		s.handleGlobalChatHistoryRequest(sess)
	default:
		debugLog.Printf("Session %d: unknown frame kind %d", sess.ID, frame.Kind)
	}
}

// requireAuth returns the session's username, or sends the per-operation
// error notice and reports false.
func (s *Server) requireAuth(sess *Session, action string) (string, bool) {
	username, ok := s.registry.Username(sess.ID)
	if !ok {
		s.sendNotice(sess, "Error: You must be logged in to "+action)
		return "", false
	}
	return username, true
}

// bindUser records a successful authentication for a session: registry
// binding, presence, the id-bearing acceptance, and the login broadcast.
func (s *Server) bindUser(sess *Session, username string, userID uint32, announce bool) {
	s.registry.Attach(sess.ID, username)
	s.users.SetOnline(username, true)
	if s.metrics != nil {
		s.metrics.RecordAuthenticatedSessions(s.registry.Count())
	}

	s.sendAcceptWithID(sess, userID)
	log.Printf("Session %d: user %s authenticated with permanent ID=%d", sess.ID, username, userID)

	if announce {
		s.broadcastNotice(fmt.Sprintf("User %s has logged in", username), sess.ID)
	}
}

// displaceSession notifies an earlier session that its account was opened
// elsewhere and closes it after a short grace period so the notice can
// still be delivered.
func (s *Server) displaceSession(oldConnID uint32) {
	oldSess, ok := s.sessions.GetSession(oldConnID)
	if !ok {
		return
	}

	s.sendNotice(oldSess, "You have been disconnected because your account was opened from another device")
	if s.metrics != nil {
		s.metrics.RecordSessionTakeover()
	}

	time.AfterFunc(s.config.TakeoverCloseDelay, func() {
		oldSess.Close()
	})
}

func (s *Server) handleRegisterRequest(sess *Session, body []byte) {
	var req protocol.RegisterRequestMessage
	if err := req.Decode(body); err != nil {
		debugLog.Printf("Session %d: bad RegisterRequest: %v", sess.ID, err)
		return
	}

	log.Printf("Session %d: registration/login attempt for username: %s", sess.ID, req.Username)

	if s.users.Exists(req.Username) {
		// Existing account: treat registration as a login attempt.
		userID, err := s.users.Authenticate(req.Username, req.Password)
		if err != nil {
			s.sendFrame(sess, protocol.KindRegisterResponse, &protocol.RegisterResponseMessage{
				Success: false,
				Text:    "User already exists, but password is incorrect. Please try again.",
			})
			return
		}

		if oldConnID, online := s.registry.Conn(req.Username); online && oldConnID != sess.ID {
			s.sendFrame(sess, protocol.KindRegisterResponse, &protocol.RegisterResponseMessage{
				Success: true,
				Text: fmt.Sprintf("User %s is already authorized from another client (#%d). Previous session will be terminated.",
					req.Username, oldConnID),
			})
			s.bindUser(sess, req.Username, userID, false)
			s.displaceSession(oldConnID)
			return
		}

		s.sendFrame(sess, protocol.KindRegisterResponse, &protocol.RegisterResponseMessage{
			Success: true,
			Text:    fmt.Sprintf("User already exists. Automatic login performed. Welcome, %s!", req.Username),
		})
		s.bindUser(sess, req.Username, userID, true)
		return
	}

	userID, err := s.users.Register(req.Username, req.Password, req.Email)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordStoreError("register")
		}
		s.sendFrame(sess, protocol.KindRegisterResponse, &protocol.RegisterResponseMessage{
			Success: false,
			Text:    "Registration failed. " + err.Error(),
		})
		return
	}

	s.sendFrame(sess, protocol.KindRegisterResponse, &protocol.RegisterResponseMessage{
		Success: true,
		Text:    fmt.Sprintf("Registration successful. Welcome, %s!", req.Username),
	})
	s.bindUser(sess, req.Username, userID, true)
}

func (s *Server) handleLoginRequest(sess *Session, body []byte) {
	var req protocol.LoginRequestMessage
	if err := req.Decode(body); err != nil {
		debugLog.Printf("Session %d: bad LoginRequest: %v", sess.ID, err)
		return
	}

	log.Printf("Session %d: login attempt for username: %s", sess.ID, req.Username)

	userID, err := s.users.Authenticate(req.Username, req.Password)
	if err != nil {
		s.sendFrame(sess, protocol.KindLoginResponse, &protocol.LoginResponseMessage{
			Success: false,
			Text:    "Login failed. Invalid username or password.",
		})
		return
	}

	oldConnID, online := s.registry.Conn(req.Username)
	if online && oldConnID != sess.ID {
		s.sendFrame(sess, protocol.KindLoginResponse, &protocol.LoginResponseMessage{
			Success: true,
			Text: fmt.Sprintf("User %s already logged in from another client (#%d). Previous session will be terminated.",
				req.Username, oldConnID),
		})
		s.bindUser(sess, req.Username, userID, true)
		s.displaceSession(oldConnID)
		return
	}

	s.sendFrame(sess, protocol.KindLoginResponse, &protocol.LoginResponseMessage{
		Success: true,
		Text:    fmt.Sprintf("Login successful. Welcome back, %s!", req.Username),
	})
	s.bindUser(sess, req.Username, userID, true)
}

// handleClientListRequest works without authentication: every connected
// session is listed, with a username suffix for the authenticated ones.
func (s *Server) handleClientListRequest(sess *Session) {
	sessions := s.sessions.GetAllSessions()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

	var sb strings.Builder
	sb.WriteString("Connected clients:")
	for _, other := range sessions {
		sb.WriteString(fmt.Sprintf(" #%d", other.ID))
		if username, ok := s.registry.Username(other.ID); ok {
			sb.WriteString(" (" + username + ")")
		}
		sb.WriteString(",")
	}

	list := strings.TrimSuffix(sb.String(), ",")
	s.sendNotice(sess, list)
}

// capHistory bounds a transcript to the per-kind payload limit.
func capHistory(text string) string {
	if len(text) > protocol.MaxHistorySize {
		return text[:protocol.MaxHistorySize]
	}
	return text
}

// resolveOnlineUser maps a permanent user id to its live session.
func (s *Server) resolveOnlineUser(userID uint32) (*Session, string, bool) {
	username, err := s.users.GetUsername(userID)
	if err != nil {
		return nil, "", false
	}
	connID, ok := s.registry.Conn(username)
	if !ok {
		return nil, "", false
	}
	peer, ok := s.sessions.GetSession(connID)
	if !ok {
		return nil, "", false
	}
	return peer, username, true
}

func (s *Server) handleDirectMessage(sess *Session, body []byte) {
	senderName, ok := s.requireAuth(sess, "send private messages")
	if !ok {
		return
	}

	var msg protocol.DirectMessageMessage
	if err := msg.Decode(body); err != nil {
		debugLog.Printf("Session %d: bad DirectMessage: %v", sess.ID, err)
		return
	}
	if uint32(len(msg.Text)) > s.config.MaxMessageLength {
		debugLog.Printf("Session %d: direct message too large: %d", sess.ID, len(msg.Text))
		return
	}

	senderID, err := s.users.GetUserID(senderName)
	if err != nil {
		errorLog.Printf("Session %d: no user id for %s: %v", sess.ID, senderName, err)
		return
	}
	if msg.RecipientUserID == senderID {
		s.sendNotice(sess, "Error: You cannot send a message to yourself")
		return
	}

	recipient, recipientName, online := s.resolveOnlineUser(msg.RecipientUserID)
	if !online {
		s.sendNotice(sess, fmt.Sprintf("Error: User with ID #%d not found or offline", msg.RecipientUserID))
		return
	}

	if err := s.chats.AppendDirect(senderName, senderID, recipientName, msg.RecipientUserID, msg.Text); err != nil {
		if s.metrics != nil {
			s.metrics.RecordStoreError("append_direct")
		}
		errorLog.Printf("Session %d: persist direct message: %v", sess.ID, err)
	}

	s.sendFrame(recipient, protocol.KindDirectMessage, &protocol.DirectDeliveryMessage{
		SenderUserID: senderID,
		Text:         msg.Text,
	})
	s.sendNotice(sess, "Your message has been delivered to "+recipientName)
}

func (s *Server) handleChatRequest(sess *Session, body []byte) {
	senderName, ok := s.requireAuth(sess, "send chat requests")
	if !ok {
		return
	}

	var req protocol.ChatRequestMessage
	if err := req.Decode(body); err != nil {
		debugLog.Printf("Session %d: bad ChatRequest: %v", sess.ID, err)
		return
	}

	recipient, recipientName, online := s.resolveOnlineUser(req.PeerUserID)
	if !online {
		s.sendNotice(sess, fmt.Sprintf("Error: User with ID #%d not found or offline", req.PeerUserID))
		return
	}

	senderID, err := s.users.GetUserID(senderName)
	if err != nil {
		errorLog.Printf("Session %d: no user id for %s: %v", sess.ID, senderName, err)
		return
	}

	// Forwarded with the sender's id so the recipient knows who is asking.
	s.sendFrame(recipient, protocol.KindChatRequest, &protocol.ChatRequestMessage{PeerUserID: senderID})
	s.sendNotice(sess, "Chat request sent to "+recipientName)
}

func (s *Server) handleChatResponse(sess *Session, body []byte) {
	responderName, ok := s.requireAuth(sess, "respond to chat requests")
	if !ok {
		return
	}

	var resp protocol.ChatResponseMessage
	if err := resp.Decode(body); err != nil {
		debugLog.Printf("Session %d: bad ChatResponse: %v", sess.ID, err)
		return
	}

	requester, requesterName, online := s.resolveOnlineUser(resp.PeerUserID)
	if !online {
		s.sendNotice(sess, fmt.Sprintf("Error: User with ID #%d not found or offline", resp.PeerUserID))
		return
	}

	responderID, err := s.users.GetUserID(responderName)
	if err != nil {
		errorLog.Printf("Session %d: no user id for %s: %v", sess.ID, responderName, err)
		return
	}

	s.sendFrame(requester, protocol.KindChatResponse, &protocol.ChatResponseMessage{
		PeerUserID: responderID,
		Accepted:   resp.Accepted,
	})

	if resp.Accepted {
		// Both parties receive the shared transcript when a chat opens.
		history := capHistory(store.FormatConversation(responderName, requesterName,
			s.chats.LoadConversation(responderName, requesterName)))

		s.sendFrame(sess, protocol.KindChatHistoryResponse, &protocol.ChatHistoryResponseMessage{
			OtherUserID: resp.PeerUserID,
			Text:        history,
		})
		s.sendFrame(requester, protocol.KindChatHistoryResponse, &protocol.ChatHistoryResponseMessage{
			OtherUserID: responderID,
			Text:        history,
		})

		s.sendNotice(sess, "You accepted chat request from "+requesterName)
	} else {
		s.sendNotice(sess, "You declined chat request from "+requesterName)
	}
}

func (s *Server) handleChatHistoryRequest(sess *Session, body []byte) {
	requesterName, ok := s.requireAuth(sess, "request chat history")
	if !ok {
		return
	}

	var req protocol.ChatHistoryRequestMessage
	if err := req.Decode(body); err != nil {
		debugLog.Printf("Session %d: bad ChatHistoryRequest: %v", sess.ID, err)
		return
	}

	// The peer only needs to exist; offline users still have history.
	otherName, err := s.users.GetUsername(req.OtherUserID)
	if err != nil {
		s.sendNotice(sess, fmt.Sprintf("Error: User with ID #%d not found", req.OtherUserID))
		return
	}

	history := capHistory(store.FormatConversation(requesterName, otherName,
		s.chats.LoadConversation(requesterName, otherName)))

	s.sendFrame(sess, protocol.KindChatHistoryResponse, &protocol.ChatHistoryResponseMessage{
		OtherUserID: req.OtherUserID,
		Text:        history,
	})
}

func (s *Server) handleGlobalMessage(sess *Session, body []byte) {
	senderName, ok := s.requireAuth(sess, "send global messages")
	if !ok {
		return
	}

	var msg protocol.GlobalMessageMessage
	if err := msg.Decode(body); err != nil {
		debugLog.Printf("Session %d: bad GlobalMessage: %v", sess.ID, err)
		return
	}
	if uint32(len(msg.Text)) > s.config.MaxMessageLength {
		debugLog.Printf("Session %d: global message too large: %d", sess.ID, len(msg.Text))
		return
	}

	senderID, err := s.users.GetUserID(senderName)
	if err != nil {
		errorLog.Printf("Session %d: no user id for %s: %v", sess.ID, senderName, err)
		return
	}

	if err := s.chats.AppendGlobal(senderName, senderID, msg.Text); err != nil {
		if s.metrics != nil {
			s.metrics.RecordStoreError("append_global")
		}
		errorLog.Printf("Session %d: persist global message: %v", sess.ID, err)
	}

	delivery, err := protocol.NewFrame(protocol.KindGlobalMessage, &protocol.GlobalDeliveryMessage{
		SenderUserID: senderID,
		Text:         msg.Text,
	})
	if err != nil {
		errorLog.Printf("Session %d: encode global delivery: %v", sess.ID, err)
		return
	}

	fanout := 0
	for _, other := range s.sessions.GetAllSessions() {
		if other.ID == sess.ID {
			continue
		}
		if !s.registry.Authenticated(other.ID) {
			continue
		}
		if err := other.Send(delivery); err != nil {
			debugLog.Printf("Session %d: global delivery failed: %v", other.ID, err)
			other.Close()
			continue
		}
		fanout++
	}
	if s.metrics != nil {
		s.metrics.RecordGlobalBroadcast(fanout)
	}

	s.sendNotice(sess, "Your global message has been sent to all users")
}

func (s *Server) handleGlobalChatHistoryRequest(sess *Session) {
	_, ok := s.requireAuth(sess, "request global chat history")
	if !ok {
		return
	}

	history := capHistory(store.FormatGlobal(s.chats.LoadGlobal()))
	s.sendFrame(sess, protocol.KindGlobalChatHistoryResponse, &protocol.GlobalChatHistoryResponseMessage{
		Text: history,
	})
}
