package protocol

import (
	"bytes"
	"io"
)

// Frame kinds. The numeric values are a wire contract with existing
// clients; several slots (ServerPing, MessageAll, KeyPress, ClientInfo*)
// are reserved by the protocol but carry no server behaviour.
const (
	KindServerAccept uint32 = iota
	KindServerDeny
	KindServerPing
	KindMessageAll
	KindServerMessage
	KindKeyPress
	KindDirectMessage
	KindRequestClientList
	KindRegisterRequest
	KindRegisterResponse
	KindLoginRequest
	KindLoginResponse
	KindChatRequest
	KindChatResponse
	KindClientInfoRequest
	KindClientInfoResponse
	KindChatHistoryRequest
	KindChatHistoryResponse
	KindGlobalMessage
	KindGlobalChatHistoryRequest
	KindGlobalChatHistoryResponse
)

// Per-kind body caps enforced by the dispatcher.
const (
	// MaxMessageTextSize bounds direct and global message text.
	MaxMessageTextSize = 8192

	// MaxHistorySize bounds formatted chat history payloads.
	MaxHistorySize = 50000
)

// KindName returns a printable name for a frame kind, for logs and metrics.
func KindName(kind uint32) string {
	switch kind {
	case KindServerAccept:
		return "ServerAccept"
	case KindServerDeny:
		return "ServerDeny"
	case KindServerPing:
		return "ServerPing"
	case KindMessageAll:
		return "MessageAll"
	case KindServerMessage:
		return "ServerMessage"
	case KindKeyPress:
		return "KeyPress"
	case KindDirectMessage:
		return "DirectMessage"
	case KindRequestClientList:
		return "RequestClientList"
	case KindRegisterRequest:
		return "RegisterRequest"
	case KindRegisterResponse:
		return "RegisterResponse"
	case KindLoginRequest:
		return "LoginRequest"
	case KindLoginResponse:
		return "LoginResponse"
	case KindChatRequest:
		return "ChatRequest"
	case KindChatResponse:
		return "ChatResponse"
	case KindClientInfoRequest:
		return "ClientInfoRequest"
	case KindClientInfoResponse:
		return "ClientInfoResponse"
	case KindChatHistoryRequest:
		return "ChatHistoryRequest"
	case KindChatHistoryResponse:
		return "ChatHistoryResponse"
	case KindGlobalMessage:
		return "GlobalMessage"
	case KindGlobalChatHistoryRequest:
		return "GlobalChatHistoryRequest"
	case KindGlobalChatHistoryResponse:
		return "GlobalChatHistoryResponse"
	default:
		return "Unknown"
	}
}

// ServerAcceptMessage (KindServerAccept) - sent twice per connection: with
// an empty body on transport accept, and with the permanent user id after
// authentication. Receivers distinguish the two by body length.
type ServerAcceptMessage struct {
	HasUserID bool
	UserID    uint32
}

func (m *ServerAcceptMessage) EncodeTo(w io.Writer) error {
	if !m.HasUserID {
		return nil
	}
	return WriteUint32(w, m.UserID)
}

func (m *ServerAcceptMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ServerAcceptMessage) Decode(payload []byte) error {
	if len(payload) == 0 {
		m.HasUserID = false
		m.UserID = 0
		return nil
	}
	userID, err := ReadUint32(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	m.HasUserID = true
	m.UserID = userID
	return nil
}

// ServerTextMessage (KindServerMessage) - textual notice to a single client
type ServerTextMessage struct {
	Text string
}

func (m *ServerTextMessage) EncodeTo(w io.Writer) error {
	return WriteString(w, m.Text)
}

func (m *ServerTextMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ServerTextMessage) Decode(payload []byte) error {
	text, err := ReadString(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	m.Text = text
	return nil
}

// RegisterRequestMessage (KindRegisterRequest) - register a new account, or
// log in when the username already exists
type RegisterRequestMessage struct {
	Username string
	Password string
	Email    string
}

func (m *RegisterRequestMessage) EncodeTo(w io.Writer) error {
	if err := WriteString(w, m.Username); err != nil {
		return err
	}
	if err := WriteString(w, m.Password); err != nil {
		return err
	}
	return WriteString(w, m.Email)
}

func (m *RegisterRequestMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *RegisterRequestMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	username, err := ReadString(buf)
	if err != nil {
		return err
	}
	password, err := ReadString(buf)
	if err != nil {
		return err
	}
	email, err := ReadString(buf)
	if err != nil {
		return err
	}

	m.Username = username
	m.Password = password
	m.Email = email
	return nil
}

// RegisterResponseMessage (KindRegisterResponse) - registration/auto-login result
type RegisterResponseMessage struct {
	Success bool
	Text    string
}

func (m *RegisterResponseMessage) EncodeTo(w io.Writer) error {
	if err := WriteBool(w, m.Success); err != nil {
		return err
	}
	return WriteString(w, m.Text)
}

func (m *RegisterResponseMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *RegisterResponseMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	success, err := ReadBool(buf)
	if err != nil {
		return err
	}
	text, err := ReadString(buf)
	if err != nil {
		return err
	}

	m.Success = success
	m.Text = text
	return nil
}

// LoginRequestMessage (KindLoginRequest) - authenticate an existing account
type LoginRequestMessage struct {
	Username string
	Password string
}

func (m *LoginRequestMessage) EncodeTo(w io.Writer) error {
	if err := WriteString(w, m.Username); err != nil {
		return err
	}
	return WriteString(w, m.Password)
}

func (m *LoginRequestMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *LoginRequestMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	username, err := ReadString(buf)
	if err != nil {
		return err
	}
	password, err := ReadString(buf)
	if err != nil {
		return err
	}

	m.Username = username
	m.Password = password
	return nil
}

// LoginResponseMessage (KindLoginResponse) - login result
type LoginResponseMessage struct {
	Success bool
	Text    string
}

func (m *LoginResponseMessage) EncodeTo(w io.Writer) error {
	if err := WriteBool(w, m.Success); err != nil {
		return err
	}
	return WriteString(w, m.Text)
}

func (m *LoginResponseMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *LoginResponseMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	success, err := ReadBool(buf)
	if err != nil {
		return err
	}
	text, err := ReadString(buf)
	if err != nil {
		return err
	}

	m.Success = success
	m.Text = text
	return nil
}

// DirectMessageMessage (KindDirectMessage, client → server) - send a
// private message to the user with the given id
type DirectMessageMessage struct {
	RecipientUserID uint32
	Text            string
}

func (m *DirectMessageMessage) EncodeTo(w io.Writer) error {
	if err := WriteUint32(w, m.RecipientUserID); err != nil {
		return err
	}
	return WriteString(w, m.Text)
}

func (m *DirectMessageMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *DirectMessageMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	recipientID, err := ReadUint32(buf)
	if err != nil {
		return err
	}
	text, err := ReadString(buf)
	if err != nil {
		return err
	}

	m.RecipientUserID = recipientID
	m.Text = text
	return nil
}

// DirectDeliveryMessage (KindDirectMessage, server → client) - a private
// message delivered to its recipient, tagged with the sender's id
type DirectDeliveryMessage struct {
	SenderUserID uint32
	Text         string
}

func (m *DirectDeliveryMessage) EncodeTo(w io.Writer) error {
	if err := WriteUint32(w, m.SenderUserID); err != nil {
		return err
	}
	return WriteString(w, m.Text)
}

func (m *DirectDeliveryMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *DirectDeliveryMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	senderID, err := ReadUint32(buf)
	if err != nil {
		return err
	}
	text, err := ReadString(buf)
	if err != nil {
		return err
	}

	m.SenderUserID = senderID
	m.Text = text
	return nil
}

// ChatRequestMessage (KindChatRequest) - invitation to a private chat.
// Client → server it names the peer to invite; server → client the peer id
// is rewritten to the inviter's id.
type ChatRequestMessage struct {
	PeerUserID uint32
}

func (m *ChatRequestMessage) EncodeTo(w io.Writer) error {
	return WriteUint32(w, m.PeerUserID)
}

func (m *ChatRequestMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ChatRequestMessage) Decode(payload []byte) error {
	peerID, err := ReadUint32(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	m.PeerUserID = peerID
	return nil
}

// ChatResponseMessage (KindChatResponse) - accept/decline a chat request.
// The peer id is rewritten the same way as in ChatRequestMessage.
type ChatResponseMessage struct {
	PeerUserID uint32
	Accepted   bool
}

func (m *ChatResponseMessage) EncodeTo(w io.Writer) error {
	if err := WriteUint32(w, m.PeerUserID); err != nil {
		return err
	}
	return WriteBool(w, m.Accepted)
}

func (m *ChatResponseMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ChatResponseMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	peerID, err := ReadUint32(buf)
	if err != nil {
		return err
	}
	accepted, err := ReadBool(buf)
	if err != nil {
		return err
	}

	m.PeerUserID = peerID
	m.Accepted = accepted
	return nil
}

// ChatHistoryRequestMessage (KindChatHistoryRequest) - ask for the
// transcript of the conversation with another user
type ChatHistoryRequestMessage struct {
	OtherUserID uint32
}

func (m *ChatHistoryRequestMessage) EncodeTo(w io.Writer) error {
	return WriteUint32(w, m.OtherUserID)
}

func (m *ChatHistoryRequestMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ChatHistoryRequestMessage) Decode(payload []byte) error {
	otherID, err := ReadUint32(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	m.OtherUserID = otherID
	return nil
}

// ChatHistoryResponseMessage (KindChatHistoryResponse) - formatted
// transcript for the conversation with the named user
type ChatHistoryResponseMessage struct {
	OtherUserID uint32
	Text        string
}

func (m *ChatHistoryResponseMessage) EncodeTo(w io.Writer) error {
	if err := WriteUint32(w, m.OtherUserID); err != nil {
		return err
	}
	return WriteString(w, m.Text)
}

func (m *ChatHistoryResponseMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *ChatHistoryResponseMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	otherID, err := ReadUint32(buf)
	if err != nil {
		return err
	}
	text, err := ReadString(buf)
	if err != nil {
		return err
	}

	m.OtherUserID = otherID
	m.Text = text
	return nil
}

// GlobalMessageMessage (KindGlobalMessage, client → server) - post to the
// global channel
type GlobalMessageMessage struct {
	Text string
}

func (m *GlobalMessageMessage) EncodeTo(w io.Writer) error {
	return WriteString(w, m.Text)
}

func (m *GlobalMessageMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *GlobalMessageMessage) Decode(payload []byte) error {
	text, err := ReadString(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	m.Text = text
	return nil
}

// GlobalDeliveryMessage (KindGlobalMessage, server → client) - a global
// message fanned out to the other authenticated sessions
type GlobalDeliveryMessage struct {
	SenderUserID uint32
	Text         string
}

func (m *GlobalDeliveryMessage) EncodeTo(w io.Writer) error {
	if err := WriteUint32(w, m.SenderUserID); err != nil {
		return err
	}
	return WriteString(w, m.Text)
}

func (m *GlobalDeliveryMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *GlobalDeliveryMessage) Decode(payload []byte) error {
	buf := bytes.NewReader(payload)
	senderID, err := ReadUint32(buf)
	if err != nil {
		return err
	}
	text, err := ReadString(buf)
	if err != nil {
		return err
	}

	m.SenderUserID = senderID
	m.Text = text
	return nil
}

// GlobalChatHistoryResponseMessage (KindGlobalChatHistoryResponse) -
// formatted transcript of the global channel
type GlobalChatHistoryResponseMessage struct {
	Text string
}

func (m *GlobalChatHistoryResponseMessage) EncodeTo(w io.Writer) error {
	return WriteString(w, m.Text)
}

func (m *GlobalChatHistoryResponseMessage) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *GlobalChatHistoryResponseMessage) Decode(payload []byte) error {
	text, err := ReadString(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	m.Text = text
	return nil
}
