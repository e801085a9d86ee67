package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindValues(t *testing.T) {
	// The numeric values are a wire contract; a reorder of the const block
	// would silently break existing clients.
	assert.Equal(t, uint32(0), KindServerAccept)
	assert.Equal(t, uint32(1), KindServerDeny)
	assert.Equal(t, uint32(4), KindServerMessage)
	assert.Equal(t, uint32(6), KindDirectMessage)
	assert.Equal(t, uint32(7), KindRequestClientList)
	assert.Equal(t, uint32(8), KindRegisterRequest)
	assert.Equal(t, uint32(10), KindLoginRequest)
	assert.Equal(t, uint32(12), KindChatRequest)
	assert.Equal(t, uint32(16), KindChatHistoryRequest)
	assert.Equal(t, uint32(18), KindGlobalMessage)
	assert.Equal(t, uint32(20), KindGlobalChatHistoryResponse)
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "ServerAccept", KindName(KindServerAccept))
	assert.Equal(t, "DirectMessage", KindName(KindDirectMessage))
	assert.Equal(t, "GlobalChatHistoryResponse", KindName(KindGlobalChatHistoryResponse))
	assert.Equal(t, "Unknown", KindName(999))
}

func TestServerAcceptMessage(t *testing.T) {
	t.Run("empty body means transport accept", func(t *testing.T) {
		msg := &ServerAcceptMessage{}
		body, err := msg.Encode()
		require.NoError(t, err)
		assert.Equal(t, 0, len(body))

		var decoded ServerAcceptMessage
		require.NoError(t, decoded.Decode(body))
		assert.False(t, decoded.HasUserID)
	})

	t.Run("four byte body carries user id", func(t *testing.T) {
		msg := &ServerAcceptMessage{HasUserID: true, UserID: 10001}
		body, err := msg.Encode()
		require.NoError(t, err)
		assert.Equal(t, 4, len(body))

		var decoded ServerAcceptMessage
		require.NoError(t, decoded.Decode(body))
		assert.True(t, decoded.HasUserID)
		assert.Equal(t, uint32(10001), decoded.UserID)
	})
}

func TestRegisterRequestMessage(t *testing.T) {
	msg := &RegisterRequestMessage{
		Username: "alice",
		Password: "secret1",
		Email:    "alice@example.com",
	}
	body, err := msg.Encode()
	require.NoError(t, err)

	var decoded RegisterRequestMessage
	require.NoError(t, decoded.Decode(body))
	assert.Equal(t, msg.Username, decoded.Username)
	assert.Equal(t, msg.Password, decoded.Password)
	assert.Equal(t, msg.Email, decoded.Email)
}

func TestRegisterRequestMessageTruncated(t *testing.T) {
	msg := &RegisterRequestMessage{Username: "alice", Password: "secret1", Email: "a@b.c"}
	body, err := msg.Encode()
	require.NoError(t, err)

	var decoded RegisterRequestMessage
	err = decoded.Decode(body[:len(body)-3])
	assert.Equal(t, ErrIncompleteBody, err)
}

func TestLoginMessages(t *testing.T) {
	req := &LoginRequestMessage{Username: "bob", Password: "hunter22"}
	body, err := req.Encode()
	require.NoError(t, err)

	var decodedReq LoginRequestMessage
	require.NoError(t, decodedReq.Decode(body))
	assert.Equal(t, req.Username, decodedReq.Username)
	assert.Equal(t, req.Password, decodedReq.Password)

	resp := &LoginResponseMessage{Success: true, Text: "Login successful. Welcome back, bob!"}
	body, err = resp.Encode()
	require.NoError(t, err)

	var decodedResp LoginResponseMessage
	require.NoError(t, decodedResp.Decode(body))
	assert.True(t, decodedResp.Success)
	assert.Equal(t, resp.Text, decodedResp.Text)
}

func TestDirectMessageRoundTrip(t *testing.T) {
	msg := &DirectMessageMessage{RecipientUserID: 10002, Text: "hey there"}
	body, err := msg.Encode()
	require.NoError(t, err)

	var decoded DirectMessageMessage
	require.NoError(t, decoded.Decode(body))
	assert.Equal(t, msg.RecipientUserID, decoded.RecipientUserID)
	assert.Equal(t, msg.Text, decoded.Text)

	// The delivery form has the same wire layout with the peer id swapped
	// for the sender's. A delivery must decode from a message body.
	var delivery DirectDeliveryMessage
	require.NoError(t, delivery.Decode(body))
	assert.Equal(t, msg.RecipientUserID, delivery.SenderUserID)
	assert.Equal(t, msg.Text, delivery.Text)
}

func TestChatRequestResponseRoundTrip(t *testing.T) {
	req := &ChatRequestMessage{PeerUserID: 10005}
	body, err := req.Encode()
	require.NoError(t, err)

	var decodedReq ChatRequestMessage
	require.NoError(t, decodedReq.Decode(body))
	assert.Equal(t, req.PeerUserID, decodedReq.PeerUserID)

	resp := &ChatResponseMessage{PeerUserID: 10005, Accepted: true}
	body, err = resp.Encode()
	require.NoError(t, err)

	var decodedResp ChatResponseMessage
	require.NoError(t, decodedResp.Decode(body))
	assert.Equal(t, resp.PeerUserID, decodedResp.PeerUserID)
	assert.True(t, decodedResp.Accepted)
}

func TestChatHistoryMessages(t *testing.T) {
	req := &ChatHistoryRequestMessage{OtherUserID: 10003}
	body, err := req.Encode()
	require.NoError(t, err)

	var decodedReq ChatHistoryRequestMessage
	require.NoError(t, decodedReq.Decode(body))
	assert.Equal(t, req.OtherUserID, decodedReq.OtherUserID)

	resp := &ChatHistoryResponseMessage{
		OtherUserID: 10003,
		Text:        "=== CHAT HISTORY ===\nNo previous messages found.\n=== END OF HISTORY ===",
	}
	body, err = resp.Encode()
	require.NoError(t, err)

	var decodedResp ChatHistoryResponseMessage
	require.NoError(t, decodedResp.Decode(body))
	assert.Equal(t, resp.OtherUserID, decodedResp.OtherUserID)
	assert.Equal(t, resp.Text, decodedResp.Text)
}

func TestGlobalMessages(t *testing.T) {
	msg := &GlobalMessageMessage{Text: "hello everyone"}
	body, err := msg.Encode()
	require.NoError(t, err)

	var decoded GlobalMessageMessage
	require.NoError(t, decoded.Decode(body))
	assert.Equal(t, msg.Text, decoded.Text)

	delivery := &GlobalDeliveryMessage{SenderUserID: 10001, Text: "hello everyone"}
	body, err = delivery.Encode()
	require.NoError(t, err)

	var decodedDelivery GlobalDeliveryMessage
	require.NoError(t, decodedDelivery.Decode(body))
	assert.Equal(t, delivery.SenderUserID, decodedDelivery.SenderUserID)
	assert.Equal(t, delivery.Text, decodedDelivery.Text)
}

func TestStringEncodingHandlesArbitraryBytes(t *testing.T) {
	// Message text is raw bytes on the wire: no NUL termination and no
	// UTF-8 validation.
	msg := &ServerTextMessage{Text: "bin\x00ary\xff\xfe"}
	body, err := msg.Encode()
	require.NoError(t, err)

	var decoded ServerTextMessage
	require.NoError(t, decoded.Decode(body))
	assert.Equal(t, msg.Text, decoded.Text)
}
