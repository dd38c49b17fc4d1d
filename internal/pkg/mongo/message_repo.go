package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNoDocuments 供上层判断"未找到"，避免 service 直接依赖驱动包
var ErrNoDocuments = mongo.ErrNoDocuments

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	GetPage(ctx context.Context, convID uint64, cursor string, limit int) ([]*Message, error)
	MarkConversationRead(ctx context.Context, convID uint64, readerID uint64) (int64, error)
	UpdateContent(ctx context.Context, id string, content string, editedAt time.Time) (*Message, error)
	Tombstone(ctx context.Context, id string, deletedAt time.Time) (*Message, error)
	UnreadCounts(ctx context.Context, convIDs []uint64, userID uint64) (map[uint64]int64, error)
	LatestByConversation(ctx context.Context, convIDs []uint64) (map[uint64]*Message, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection("message"),
	}
}

// SaveMessage 将消息存入 MongoDB
// _id 由调用方预生成，按 _id upsert 使重试写入天然幂等
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": msg.ID}, msg, opts)
	return err
}

// GetMessage 按 ID 精确查询
func (s *messageRepoImpl) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg Message
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetPage 游标分页查询
// cursor 为当前页面最旧一条消息的 ID，首页传空字符串。
// 返回降序结果（最新的在前），由 service 层反转为时间升序。
func (s *messageRepoImpl) GetPage(ctx context.Context, convID uint64, cursor string, limit int) ([]*Message, error) {
	filter := bson.M{"conversation_id": convID}

	// 游标过滤：找比当前最旧一条更早的消息
	if cursor != "" {
		filter["_id"] = bson.M{"$lt": cursor}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	mCursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = mCursor.Close(ctx)
	}()

	var messages []*Message
	if err := mCursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkConversationRead 批量已读：只翻转对方发的、未删除的未读消息
func (s *messageRepoImpl) MarkConversationRead(ctx context.Context, convID uint64, readerID uint64) (int64, error) {
	filter := bson.M{
		"conversation_id": convID,
		"sender_id":       bson.M{"$ne": readerID},
		"is_read":         false,
		"is_deleted":      false,
	}
	res, err := s.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// UpdateContent 编辑消息内容，返回更新后的文档
func (s *messageRepoImpl) UpdateContent(ctx context.Context, id string, content string, editedAt time.Time) (*Message, error) {
	update := bson.M{"$set": bson.M{
		"content":   content,
		"is_edited": true,
		"edited_at": editedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Tombstone 软删除：置删除标记并清空内容，之后不再暴露原文
func (s *messageRepoImpl) Tombstone(ctx context.Context, id string, deletedAt time.Time) (*Message, error) {
	update := bson.M{"$set": bson.M{
		"is_deleted": true,
		"deleted_at": deletedAt,
		"content":    "",
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UnreadCounts 按会话聚合未读数（对方发的、未读、未删除）
func (s *messageRepoImpl) UnreadCounts(ctx context.Context, convIDs []uint64, userID uint64) (map[uint64]int64, error) {
	res := make(map[uint64]int64)
	if len(convIDs) == 0 {
		return res, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"conversation_id": bson.M{"$in": convIDs},
			"sender_id":       bson.M{"$ne": userID},
			"is_read":         false,
			"is_deleted":      false,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$conversation_id",
			"unread": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var rows []struct {
		ConversationID uint64 `bson:"_id"`
		Unread         int64  `bson:"unread"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	for _, r := range rows {
		res[r.ConversationID] = r.Unread
	}
	return res, nil
}

// LatestByConversation 批量取每个会话的最新一条消息（会话列表预览）
func (s *messageRepoImpl) LatestByConversation(ctx context.Context, convIDs []uint64) (map[uint64]*Message, error) {
	res := make(map[uint64]*Message)
	if len(convIDs) == 0 {
		return res, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"conversation_id": bson.M{"$in": convIDs}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": "$conversation_id",
			"doc": bson.M{"$first": "$$ROOT"},
		}}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var rows []struct {
		ConversationID uint64  `bson:"_id"`
		Doc            Message `bson:"doc"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	for i := range rows {
		res[rows[i].ConversationID] = &rows[i].Doc
	}
	return res, nil
}

// CountCreatedBetween 统计时间窗内新增消息数（指标任务用）
func (s *messageRepoImpl) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	return s.col.CountDocuments(ctx, bson.M{
		"created_at": bson.M{"$gte": from, "$lt": to},
	})
}
