package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message MongoDB 消息明细模型
// _id 在入库前预先生成：定长十六进制字符串的字节序等于 ObjectID 的
// 时间戳序，因此 _id 同时充当分页游标和 created_at 相同时的次级排序键
type Message struct {
	ID             string     `bson:"_id" json:"id"`
	ConversationID uint64     `bson:"conversation_id" json:"conversationId"` // 关联 MySQL 的会话 ID
	SenderID       uint64     `bson:"sender_id" json:"senderId"`
	Content        string     `bson:"content" json:"content"` // 删除后清空（墓碑）
	IsRead         bool       `bson:"is_read" json:"isRead"`  // 仅接收方视角
	IsEdited       bool       `bson:"is_edited" json:"isEdited"`
	EditedAt       *time.Time `bson:"edited_at,omitempty" json:"editedAt,omitempty"`
	IsDeleted      bool       `bson:"is_deleted" json:"isDeleted"`
	DeletedAt      *time.Time `bson:"deleted_at,omitempty" json:"deletedAt,omitempty"`
	CreatedAt      time.Time  `bson:"created_at" json:"createdAt"`
}

// NewMessageID 预生成消息 ID，保证写失败重试时幂等
func NewMessageID() string {
	return primitive.NewObjectID().Hex()
}
