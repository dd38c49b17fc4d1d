package model

import "time"

// Conversation 会话主表（严格两人会话）
type Conversation struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PeerKey   string    `gorm:"uniqueIndex;type:varchar(64)" json:"peerKey"` // uid1_uid2，小 ID 在前
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"` // 每条新消息都会推高，驱动收件箱排序

	Participants []Participant `gorm:"foreignKey:ConversationID;references:ID" json:"participants"`
}

func (Conversation) TableName() string { return "conversations" }

// Participant 会话成员表，每个 (会话, 用户) 对恰好一行
type Participant struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64     `gorm:"uniqueIndex:idx_conv_user" json:"conversationId"`
	UserID         uint64     `gorm:"uniqueIndex:idx_conv_user;index" json:"userId"`
	IsArchived     bool       `gorm:"not null;default:0;index" json:"isArchived"` // 仅影响本人的会话列表可见性
	ArchivedAt     *time.Time `json:"archivedAt"`
	JoinedAt       time.Time  `json:"joinedAt"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;references:ID" json:"conversation"`
}

func (Participant) TableName() string { return "conversation_participants" }
