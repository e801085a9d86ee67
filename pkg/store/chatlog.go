package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	globalChatFileName = "global_chat.json"

	timestampLayout = "2006-01-02 15:04:05"
)

// ChatMessage is a single persisted message. Recipient fields are left
// empty for global messages.
type ChatMessage struct {
	MessageID         int64  `json:"message_id"`
	SenderUsername    string `json:"sender_username"`
	SenderUserID      uint32 `json:"sender_user_id"`
	RecipientUsername string `json:"recipient_username,omitempty"`
	RecipientUserID   uint32 `json:"recipient_user_id,omitempty"`
	MessageText       string `json:"message_text"`
	Timestamp         string `json:"timestamp"`
	MessageType       string `json:"message_type"`
}

type conversationFile struct {
	ConversationID string        `json:"conversation_id"`
	Participants   []string      `json:"participants"`
	CreatedDate    string        `json:"created_date"`
	Messages       []ChatMessage `json:"messages"`
}

type globalChatFile struct {
	ChatType    string        `json:"chat_type"`
	CreatedDate string        `json:"created_date"`
	Messages    []ChatMessage `json:"messages"`
}

// ChatLogStore appends and reads per-conversation and global chat history
// files in the data directory.
type ChatLogStore struct {
	mu  sync.Mutex
	dir string
}

// OpenChatLogStore prepares a chat log store rooted at dataDir.
func OpenChatLogStore(dataDir string) (*ChatLogStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &ChatLogStore{dir: dataDir}, nil
}

// ConversationID derives the canonical id for a pair of usernames. The
// two names are ordered lexicographically so both directions map to the
// same conversation.
func ConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

func (s *ChatLogStore) conversationPath(a, b string) string {
	return filepath.Join(s.dir, "chat_"+ConversationID(a, b)+".json")
}

func (s *ChatLogStore) globalPath() string {
	return filepath.Join(s.dir, globalChatFileName)
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// nextMessageID allocates a millisecond id that never repeats within a
// single file even when two messages land in the same millisecond.
func nextMessageID(messages []ChatMessage) int64 {
	id := time.Now().UnixMilli()
	if n := len(messages); n > 0 && messages[n-1].MessageID >= id {
		id = messages[n-1].MessageID + 1
	}
	return id
}

// AppendDirect records a private message between two users. A conversation
// file that cannot be parsed is replaced with a fresh one so a single
// corrupted file never blocks new messages.
func (s *ChatLogStore) AppendDirect(senderName string, senderID uint32, recipientName string, recipientID uint32, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.conversationPath(senderName, recipientName)
	now := time.Now()

	var file conversationFile
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err != nil || json.Unmarshal(data, &file) != nil {
		a, b := senderName, recipientName
		if b < a {
			a, b = b, a
		}
		file = conversationFile{
			ConversationID: ConversationID(senderName, recipientName),
			Participants:   []string{a, b},
			CreatedDate:    now.Format(timestampLayout),
		}
	}

	file.Messages = append(file.Messages, ChatMessage{
		MessageID:         nextMessageID(file.Messages),
		SenderUsername:    senderName,
		SenderUserID:      senderID,
		RecipientUsername: recipientName,
		RecipientUserID:   recipientID,
		MessageText:       text,
		Timestamp:         now.Format(timestampLayout),
		MessageType:       "direct_message",
	})
	return writeJSONFile(path, &file)
}

// AppendGlobal records a message on the global channel.
func (s *ChatLogStore) AppendGlobal(senderName string, senderID uint32, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.globalPath()
	now := time.Now()

	var file globalChatFile
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err != nil || json.Unmarshal(data, &file) != nil {
		file = globalChatFile{
			ChatType:    "global_chat",
			CreatedDate: now.Format(timestampLayout),
		}
	}

	file.Messages = append(file.Messages, ChatMessage{
		MessageID:      nextMessageID(file.Messages),
		SenderUsername: senderName,
		SenderUserID:   senderID,
		MessageText:    text,
		Timestamp:      now.Format(timestampLayout),
		MessageType:    "global_message",
	})
	return writeJSONFile(path, &file)
}

// LoadConversation returns the stored messages between two users, oldest
// first. A missing or unreadable file yields an empty history.
func (s *ChatLogStore) LoadConversation(a, b string) []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.conversationPath(a, b))
	if err != nil {
		return nil
	}
	var file conversationFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil
	}
	return file.Messages
}

// LoadGlobal returns the stored global channel messages, oldest first.
func (s *ChatLogStore) LoadGlobal() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.globalPath())
	if err != nil {
		return nil
	}
	var file globalChatFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil
	}
	return file.Messages
}

// FormatConversation renders a private history transcript for delivery.
func FormatConversation(a, b string, messages []ChatMessage) string {
	var sb strings.Builder
	sb.WriteString("=== CHAT HISTORY ===\n")
	if len(messages) == 0 {
		sb.WriteString("No previous messages found.\n")
		sb.WriteString("=== END OF HISTORY ===")
		return sb.String()
	}
	sb.WriteString("Conversation: " + ConversationID(a, b) + "\n")
	for _, m := range messages {
		fmt.Fprintf(&sb, "[%s] %s -> %s: %s\n", m.Timestamp, m.SenderUsername, m.RecipientUsername, m.MessageText)
	}
	sb.WriteString("=== END OF HISTORY ===")
	return sb.String()
}

// FormatGlobal renders the global channel transcript for delivery.
func FormatGlobal(messages []ChatMessage) string {
	var sb strings.Builder
	sb.WriteString("=== Global Chat History ===\n")
	for _, m := range messages {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", m.Timestamp, m.SenderUsername, m.MessageText)
	}
	sb.WriteString("=== End of History ===")
	return sb.String()
}
