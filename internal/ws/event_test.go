package ws

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoomReq(t *testing.T) {
	t.Run("正常负载", func(t *testing.T) {
		req, err := parseRoomReq(json.RawMessage(`{"conversation_id": 42}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(42), req.ConversationID)
	})

	t.Run("缺少会话 ID", func(t *testing.T) {
		_, err := parseRoomReq(json.RawMessage(`{}`))
		assert.ErrorIs(t, err, errInvalidPayload)
	})

	t.Run("非法 JSON", func(t *testing.T) {
		_, err := parseRoomReq(json.RawMessage(`{broken`))
		assert.ErrorIs(t, err, errInvalidPayload)
	})
}

func TestParseSendMessageReq(t *testing.T) {
	t.Run("按会话 ID 发送", func(t *testing.T) {
		req, err := parseSendMessageReq(json.RawMessage(`{"conversation_id": 1, "content": "你好"}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), req.ConversationID)
		assert.Equal(t, "你好", req.Content)
	})

	t.Run("按对方 ID 发送", func(t *testing.T) {
		req, err := parseSendMessageReq(json.RawMessage(`{"recipient_id": 2, "content": "首条"}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(2), req.RecipientID)
	})

	t.Run("两个 ID 都缺失", func(t *testing.T) {
		_, err := parseSendMessageReq(json.RawMessage(`{"content": "没有目标"}`))
		assert.ErrorIs(t, err, errInvalidPayload)
	})
}

func TestParseEditDeleteReq(t *testing.T) {
	t.Run("编辑缺消息 ID", func(t *testing.T) {
		_, err := parseEditMessageReq(json.RawMessage(`{"new_content": "x"}`))
		assert.ErrorIs(t, err, errInvalidPayload)
	})

	t.Run("编辑正常负载", func(t *testing.T) {
		req, err := parseEditMessageReq(json.RawMessage(`{"message_id": "abc", "new_content": "改"}`))
		require.NoError(t, err)
		assert.Equal(t, "abc", req.MessageID)
	})

	t.Run("删除缺消息 ID", func(t *testing.T) {
		_, err := parseDeleteMessageReq(json.RawMessage(`{}`))
		assert.ErrorIs(t, err, errInvalidPayload)
	})
}

func TestFrameRoundTrip(t *testing.T) {
	raw := `{"event":"sendMessage","ack_id":7,"data":{"conversation_id":1,"content":"hi"}}`

	var frame Frame
	require.NoError(t, json.Unmarshal([]byte(raw), &frame))
	assert.Equal(t, EventSendMessage, frame.Event)
	assert.Equal(t, uint64(7), frame.AckID)

	req, err := parseSendMessageReq(frame.Data)
	require.NoError(t, err)
	assert.Equal(t, "hi", req.Content)
}
