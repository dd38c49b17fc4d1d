package ws

import (
	"Tutorlink/internal/api/dto"
	"errors"

	"github.com/goccy/go-json"
)

// 客户端 → 服务端事件
const (
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventTyping            = "typing"
	EventSendMessage       = "sendMessage"
	EventEditMessage       = "editMessage"
	EventDeleteMessage     = "deleteMessage"
	EventMarkAsRead        = "markAsRead"
	EventGetUnreadCount    = "getUnreadCount"
	EventGetOnlineUsers    = "getOnlineUsers"
)

// 服务端 → 客户端事件
const (
	EventAck            = "ack"
	EventOnlineUsers    = "onlineUsers"
	EventNewMessage     = "newMessage"
	EventMessageEdited  = "messageEdited"
	EventMessageDeleted = "messageDeleted"
	EventMessagesRead   = "messagesRead"
	EventNotification   = "notification"
)

var (
	errUnknownEvent   = errors.New("未知事件类型")
	errInvalidPayload = errors.New("事件参数错误")
)

// Frame 入站帧：事件名 + 可选应答 ID + 原始负载
// 负载与 HTTP Body 同等对待：先解析校验，再进业务
type Frame struct {
	Event string          `json:"event"`
	AckID uint64          `json:"ack_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutFrame 出站帧
type OutFrame struct {
	Event string      `json:"event"`
	AckID uint64      `json:"ack_id,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// AckData 应答负载，失败时 Error 给出原因，错误只回发起方从不进房间
type AckData struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// RoomReq joinConversation / leaveConversation / markAsRead 负载
type RoomReq struct {
	ConversationID uint64 `json:"conversation_id"`
}

func parseRoomReq(data json.RawMessage) (*RoomReq, error) {
	var req RoomReq
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == 0 {
		return nil, errInvalidPayload
	}
	return &req, nil
}

// TypingReq typing 负载
type TypingReq struct {
	ConversationID uint64 `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

func parseTypingReq(data json.RawMessage) (*TypingReq, error) {
	var req TypingReq
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == 0 {
		return nil, errInvalidPayload
	}
	return &req, nil
}

// SendMessageReq sendMessage 负载
// 发送者身份一律取通道绑定的 userID，负载里的任何 ID 不作数
type SendMessageReq struct {
	ConversationID uint64 `json:"conversation_id"`
	RecipientID    uint64 `json:"recipient_id"`
	Content        string `json:"content"`
}

func parseSendMessageReq(data json.RawMessage) (*SendMessageReq, error) {
	var req SendMessageReq
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errInvalidPayload
	}
	if req.ConversationID == 0 && req.RecipientID == 0 {
		return nil, errInvalidPayload
	}
	return &req, nil
}

// EditMessageReq editMessage 负载
type EditMessageReq struct {
	MessageID  string `json:"message_id"`
	NewContent string `json:"new_content"`
}

func parseEditMessageReq(data json.RawMessage) (*EditMessageReq, error) {
	var req EditMessageReq
	if err := json.Unmarshal(data, &req); err != nil || req.MessageID == "" {
		return nil, errInvalidPayload
	}
	return &req, nil
}

// DeleteMessageReq deleteMessage 负载
type DeleteMessageReq struct {
	MessageID string `json:"message_id"`
}

func parseDeleteMessageReq(data json.RawMessage) (*DeleteMessageReq, error) {
	var req DeleteMessageReq
	if err := json.Unmarshal(data, &req); err != nil || req.MessageID == "" {
		return nil, errInvalidPayload
	}
	return &req, nil
}

// TypingEvent 打字状态广播（纯瞬态，不落库）
type TypingEvent struct {
	ConversationID uint64 `json:"conversation_id"`
	UserID         uint64 `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// MessagesReadEvent 轻量已读广播，客户端本地更新已读态
type MessagesReadEvent struct {
	ConversationID uint64 `json:"conversation_id"`
	UserID         uint64 `json:"user_id"`
}

// NotificationEvent 绕过房间、直达接收者在线会话的新消息提醒
type NotificationEvent struct {
	Type           string          `json:"type"`
	ConversationID uint64          `json:"conversation_id"`
	Message        *dto.MessageDTO `json:"message"`
}

// OnlineUsersEvent 在线用户快照广播
type OnlineUsersEvent struct {
	UserIDs []uint64 `json:"user_ids"`
}
