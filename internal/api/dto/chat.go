package dto

import "time"

// StartConversationReq 发起（或复用）会话请求体
type StartConversationReq struct {
	RecipientID uint64 `json:"recipient_id" binding:"required"`
}

// SendMessageReq 发送消息请求体
// conversation_id 与 recipient_id 二选一：前者缺省时按对方 ID 找或建会话
type SendMessageReq struct {
	ConversationID uint64 `json:"conversation_id"`
	RecipientID    uint64 `json:"recipient_id"`
	Content        string `json:"content" binding:"required"`
}

// EditMessageReq 编辑消息请求体
type EditMessageReq struct {
	NewContent string `json:"new_content" binding:"required"`
}

// MessageDTO 消息明细响应
type MessageDTO struct {
	ID             string         `json:"id"`
	ConversationID uint64         `json:"conversation_id"`
	SenderID       uint64         `json:"sender_id"`
	Sender         *UserSimpleDTO `json:"sender,omitempty"`
	Content        string         `json:"content"`
	IsRead         bool           `json:"is_read"`
	IsEdited       bool           `json:"is_edited"`
	EditedAt       *time.Time     `json:"edited_at,omitempty"`
	IsDeleted      bool           `json:"is_deleted"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ConversationDTO 会话列表项响应
type ConversationDTO struct {
	ConversationID uint64           `json:"conversation_id"`
	Participants   []*UserSimpleDTO `json:"participants"`
	LastMessage    *MessageDTO      `json:"last_message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// UnreadCountDTO 单会话未读数
type UnreadCountDTO struct {
	ConversationID uint64 `json:"conversation_id"`
	Unread         int64  `json:"unread"`
}

// UnreadSummaryDTO 未读汇总（仅统计未归档会话）
type UnreadSummaryDTO struct {
	PerConversation []*UnreadCountDTO `json:"per_conversation"`
	TotalUnread     int64             `json:"total_unread"`
}
