package repository

import (
	"Tutorlink/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

type ConversationRepo interface {
	CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.Participant) error
	GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error)
	GetConversationByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error)
	IsParticipant(ctx context.Context, convID uint64, userID uint64) (bool, error)
	GetParticipants(ctx context.Context, convID uint64) ([]*model.Participant, error)

	TouchUpdatedAt(ctx context.Context, convID uint64, at time.Time) error
	SetArchived(ctx context.Context, convID, userID uint64, archived bool, at *time.Time) (int64, error)

	GetUserParticipantList(ctx context.Context, userID uint64) ([]*model.Participant, error)
}

type conversationRepoImpl struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepoImpl{db: db}
}

// CreateConversation 开启事务创建会话及两名初始成员
func (s *conversationRepoImpl) CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.Participant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, m := range members {
			m.ConversationID = conv.ID
			m.JoinedAt = time.Now()
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetConversation 根据会话 ID 获取会话及成员
func (s *conversationRepoImpl) GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Preload("Participants").
		First(&conv, convID).Error
	return &conv, err
}

// GetConversationByPeerKey 根据会话标识获取会话
func (s *conversationRepoImpl) GetConversationByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Preload("Participants").
		Where("peer_key = ?", peerKey).First(&conv).Error
	return &conv, err
}

// IsParticipant 检查用户是否是会话成员
func (s *conversationRepoImpl) IsParticipant(ctx context.Context, convID uint64, userID uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Participant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Count(&count).Error
	return count > 0, err
}

// GetParticipants 获取会话全部成员（两人会话固定两行）
func (s *conversationRepoImpl) GetParticipants(ctx context.Context, convID uint64) ([]*model.Participant, error) {
	var members []*model.Participant
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Find(&members).Error
	return members, err
}

// TouchUpdatedAt 新消息落库时推高会话时间戳，驱动收件箱排序
func (s *conversationRepoImpl) TouchUpdatedAt(ctx context.Context, convID uint64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Update("updated_at", at).Error
}

// SetArchived 切换本人的归档状态，返回受影响行数供上层判断成员是否存在
func (s *conversationRepoImpl) SetArchived(ctx context.Context, convID, userID uint64, archived bool, at *time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Participant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Updates(map[string]interface{}{
			"is_archived": archived,
			"archived_at": at,
		})
	return res.RowsAffected, res.Error
}

// GetUserParticipantList 联表查询本人未归档的会话，按会话活跃时间倒序
// 使用 Conversation__ 别名配合 GORM 的嵌套填充特性
func (s *conversationRepoImpl) GetUserParticipantList(ctx context.Context, userID uint64) ([]*model.Participant, error) {
	var members []*model.Participant
	err := s.db.WithContext(ctx).Table("conversation_participants p").
		Select("p.*, "+
			"c.id AS `Conversation__id`, c.peer_key AS `Conversation__peer_key`, "+
			"c.created_at AS `Conversation__created_at`, "+
			"c.updated_at AS `Conversation__updated_at`").
		Joins("JOIN conversations c ON p.conversation_id = c.id").
		Where("p.user_id = ? AND p.is_archived = 0", userID).
		Order("c.updated_at DESC").
		Find(&members).Error
	return members, err
}
