package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationID(t *testing.T) {
	// Both directions map to the same conversation
	assert.Equal(t, "alice_bob", ConversationID("alice", "bob"))
	assert.Equal(t, "alice_bob", ConversationID("bob", "alice"))
	assert.Equal(t, "Zed_alice", ConversationID("alice", "Zed"))
}

func TestAppendDirectCreatesCanonicalFile(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenChatLogStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.AppendDirect("bob", 10002, "alice", 10001, "hi alice"))

	// File name uses the lexicographically ordered pair regardless of
	// who sent first
	path := filepath.Join(dir, "chat_alice_bob.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var file struct {
		ConversationID string        `json:"conversation_id"`
		Participants   []string      `json:"participants"`
		CreatedDate    string        `json:"created_date"`
		Messages       []ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &file))

	assert.Equal(t, "alice_bob", file.ConversationID)
	assert.Equal(t, []string{"alice", "bob"}, file.Participants)
	assert.NotEmpty(t, file.CreatedDate)
	require.Len(t, file.Messages, 1)

	m := file.Messages[0]
	assert.Equal(t, "bob", m.SenderUsername)
	assert.Equal(t, uint32(10002), m.SenderUserID)
	assert.Equal(t, "alice", m.RecipientUsername)
	assert.Equal(t, uint32(10001), m.RecipientUserID)
	assert.Equal(t, "hi alice", m.MessageText)
	assert.Equal(t, "direct_message", m.MessageType)
	assert.NotZero(t, m.MessageID)
	assert.NotEmpty(t, m.Timestamp)
}

func TestAppendDirectBothDirectionsShareFile(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenChatLogStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.AppendDirect("alice", 10001, "bob", 10002, "one"))
	require.NoError(t, s.AppendDirect("bob", 10002, "alice", 10001, "two"))

	messages := s.LoadConversation("bob", "alice")
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].MessageText)
	assert.Equal(t, "two", messages[1].MessageText)
}

func TestMessageIDsStrictlyIncrease(t *testing.T) {
	s, err := OpenChatLogStore(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendDirect("alice", 10001, "bob", 10002, "msg"))
	}

	messages := s.LoadConversation("alice", "bob")
	require.Len(t, messages, 5)
	for i := 1; i < len(messages); i++ {
		assert.Greater(t, messages[i].MessageID, messages[i-1].MessageID)
	}
}

func TestAppendGlobal(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenChatLogStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.AppendGlobal("alice", 10001, "hello all"))

	data, err := os.ReadFile(filepath.Join(dir, "global_chat.json"))
	require.NoError(t, err)

	var file struct {
		ChatType string        `json:"chat_type"`
		Messages []ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &file))

	assert.Equal(t, "global_chat", file.ChatType)
	require.Len(t, file.Messages, 1)
	assert.Equal(t, "global_message", file.Messages[0].MessageType)
	assert.Empty(t, file.Messages[0].RecipientUsername)
}

func TestCorruptedFileIsReplaced(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenChatLogStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "chat_alice_bob.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	// Corrupted history reads as empty
	assert.Empty(t, s.LoadConversation("alice", "bob"))

	// A new append starts a fresh file rather than failing
	require.NoError(t, s.AppendDirect("alice", 10001, "bob", 10002, "fresh start"))

	messages := s.LoadConversation("alice", "bob")
	require.Len(t, messages, 1)
	assert.Equal(t, "fresh start", messages[0].MessageText)
}

func TestLoadMissingHistory(t *testing.T) {
	s, err := OpenChatLogStore(t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, s.LoadConversation("alice", "bob"))
	assert.Empty(t, s.LoadGlobal())
}

func TestFormatConversation(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := FormatConversation("alice", "bob", nil)
		assert.Equal(t, "=== CHAT HISTORY ===\nNo previous messages found.\n=== END OF HISTORY ===", got)
	})

	t.Run("with messages", func(t *testing.T) {
		messages := []ChatMessage{
			{
				SenderUsername:    "alice",
				RecipientUsername: "bob",
				MessageText:       "hi bob",
				Timestamp:         "2025-06-01 10:00:00",
			},
			{
				SenderUsername:    "bob",
				RecipientUsername: "alice",
				MessageText:       "hi alice",
				Timestamp:         "2025-06-01 10:00:05",
			},
		}

		got := FormatConversation("bob", "alice", messages)
		lines := strings.Split(got, "\n")
		require.Len(t, lines, 5)
		assert.Equal(t, "=== CHAT HISTORY ===", lines[0])
		assert.Equal(t, "Conversation: alice_bob", lines[1])
		assert.Equal(t, "[2025-06-01 10:00:00] alice -> bob: hi bob", lines[2])
		assert.Equal(t, "[2025-06-01 10:00:05] bob -> alice: hi alice", lines[3])
		assert.Equal(t, "=== END OF HISTORY ===", lines[4])
	})
}

func TestFormatGlobal(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := FormatGlobal(nil)
		assert.Equal(t, "=== Global Chat History ===\n=== End of History ===", got)
	})

	t.Run("with messages", func(t *testing.T) {
		messages := []ChatMessage{
			{SenderUsername: "alice", MessageText: "hello", Timestamp: "2025-06-01 10:00:00"},
		}

		got := FormatGlobal(messages)
		lines := strings.Split(got, "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "=== Global Chat History ===", lines[0])
		assert.Equal(t, "[2025-06-01 10:00:00] alice: hello", lines[1])
		assert.Equal(t, "=== End of History ===", lines[2])
	})
}
