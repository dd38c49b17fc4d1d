package service

import (
	"Tutorlink/internal/api/dto"
	"Tutorlink/internal/model"
	"Tutorlink/internal/pkg/consts"
	"Tutorlink/internal/pkg/mongo"
	"Tutorlink/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ChatService 会话与消息服务接口定义
// 纯业务层，REST 与 WebSocket 两条链路共用，保证单一数据源
type ChatService interface {
	StartOrGetConversation(ctx context.Context, userA, userB uint64) (*dto.ConversationDTO, error)
	SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	GetMessages(ctx context.Context, convID, userID uint64, limit int, cursor string) ([]*dto.MessageDTO, error)
	MarkAsRead(ctx context.Context, convID, userID uint64) (int64, error)
	EditMessage(ctx context.Context, messageID string, userID uint64, newContent string) (*dto.MessageDTO, error)
	DeleteMessageByID(ctx context.Context, messageID string, userID uint64) (*dto.MessageDTO, error)
	ArchiveConversationByID(ctx context.Context, convID, userID uint64) error
	UnarchiveConversationByID(ctx context.Context, convID, userID uint64) error
	GetUserConversationsList(ctx context.Context, userID uint64) ([]*dto.ConversationDTO, error)
	GetUnreadCountsList(ctx context.Context, userID uint64) (*dto.UnreadSummaryDTO, error)
	GetRecipientUserIDs(ctx context.Context, convID, senderID uint64) ([]uint64, error)
	Close()
}

type chatServiceImpl struct {
	convRepo    repository.ConversationRepo
	messageRepo mongo.MessageRepo
	userService UserService
	retryChan   chan *mongo.Message
	wg          sync.WaitGroup
	stopChan    chan struct{}
}

// NewChatService 构造函数：初始化服务并启动异步校准工作池
func NewChatService(convRepo repository.ConversationRepo, messageRepo mongo.MessageRepo, userService UserService) ChatService {
	s := &chatServiceImpl{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		userService: userService,
		retryChan:   make(chan *mongo.Message, 2048),
		stopChan:    make(chan struct{}),
	}

	workerCount := 5
	s.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go s.calibrationWorker()
	}

	return s
}

// StartOrGetConversation 针对两人会话：获取或创建，无序对幂等
func (s *chatServiceImpl) StartOrGetConversation(ctx context.Context, userA, userB uint64) (*dto.ConversationDTO, error) {
	if userA == 0 || userB == 0 {
		return nil, ErrParamInvalid
	}
	if userA == userB {
		return nil, ErrSelfConversation
	}

	conv, err := s.findOrCreateConversation(ctx, userA, userB)
	if err != nil {
		return nil, err
	}

	return s.toConversationDTO(ctx, conv, nil), nil
}

// SendMessage 发送消息
func (s *chatServiceImpl) SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrContentEmpty
	}

	// 1. 确定会话 ID：显式指定 或 按对方 ID 找/建
	convID := req.ConversationID
	if convID == 0 {
		if req.RecipientID == 0 {
			return nil, ErrParamInvalid
		}
		if req.RecipientID == senderID {
			return nil, ErrSelfConversation
		}
		conv, err := s.findOrCreateConversation(ctx, senderID, req.RecipientID)
		if err != nil {
			return nil, err
		}
		convID = conv.ID
	} else {
		// 校验成员权限：通道层身份不可信任何 payload 字段
		isMember, err := s.convRepo.IsParticipant(ctx, convID, senderID)
		if err != nil {
			return nil, err
		}
		if !isMember {
			return nil, ErrNotParticipant
		}
	}

	// 2. MySQL 推高会话时间戳（收件箱排序依据），再写消息明细
	now := time.Now()
	if err := s.convRepo.TouchUpdatedAt(ctx, convID, now); err != nil {
		return nil, err
	}

	msgModel := &mongo.Message{
		ID:             mongo.NewMessageID(),
		ConversationID: convID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      now,
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.messageRepo.SaveMessage(writeCtx, msgModel); err != nil {
		log.ErrorContext(ctx, "消息写入失败，进入补偿队列", "message_id", msgModel.ID, "err", err)
		select {
		case s.retryChan <- msgModel:
		default:
		}
	}

	d := s.toMessageDTO(msgModel)
	if sender, err := s.userService.GetPublicProfile(ctx, senderID); err == nil {
		d.Sender = sender
	}
	return d, nil
}

// GetMessages 游标分页拉取历史，返回时间升序
func (s *chatServiceImpl) GetMessages(ctx context.Context, convID, userID uint64, limit int, cursor string) ([]*dto.MessageDTO, error) {
	isMember, err := s.convRepo.IsParticipant(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrAccessDenied
	}

	if limit <= 0 {
		limit = consts.DefaultPageSize
	}
	if limit > consts.MaxPageSize {
		limit = consts.MaxPageSize
	}

	models, err := s.messageRepo.GetPage(ctx, convID, cursor, limit)
	if err != nil {
		return nil, err
	}

	// 仓储返回降序（最新在前），反转为升序交给调用方
	res := make([]*dto.MessageDTO, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		res = append(res, s.toMessageDTO(models[i]))
	}

	s.attachSenders(ctx, res)
	return res, nil
}

// MarkAsRead 标记已读：只翻转对方发的未读消息，返回翻转条数
func (s *chatServiceImpl) MarkAsRead(ctx context.Context, convID, userID uint64) (int64, error) {
	isMember, err := s.convRepo.IsParticipant(ctx, convID, userID)
	if err != nil {
		return 0, err
	}
	if !isMember {
		return 0, ErrAccessDenied
	}

	return s.messageRepo.MarkConversationRead(ctx, convID, userID)
}

// EditMessage 编辑自己发送的消息；删除是终态，墓碑不可再编辑
func (s *chatServiceImpl) EditMessage(ctx context.Context, messageID string, userID uint64, newContent string) (*dto.MessageDTO, error) {
	content := strings.TrimSpace(newContent)
	if content == "" {
		return nil, ErrContentEmpty
	}

	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, ErrNotMessageOwner
	}
	if msg.IsDeleted {
		return nil, ErrMessageDeleted
	}

	updated, err := s.messageRepo.UpdateContent(ctx, messageID, content, time.Now())
	if err != nil {
		return nil, err
	}
	return s.toMessageDTO(updated), nil
}

// DeleteMessageByID 软删除自己发送的消息，重复删除幂等
func (s *chatServiceImpl) DeleteMessageByID(ctx context.Context, messageID string, userID uint64) (*dto.MessageDTO, error) {
	msg, err := s.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, ErrNotMessageOwner
	}
	if msg.IsDeleted {
		return s.toMessageDTO(msg), nil
	}

	deleted, err := s.messageRepo.Tombstone(ctx, messageID, time.Now())
	if err != nil {
		return nil, err
	}
	return s.toMessageDTO(deleted), nil
}

// ArchiveConversationByID 归档只影响本人的会话列表
func (s *chatServiceImpl) ArchiveConversationByID(ctx context.Context, convID, userID uint64) error {
	now := time.Now()
	rows, err := s.convRepo.SetArchived(ctx, convID, userID, true, &now)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

func (s *chatServiceImpl) UnarchiveConversationByID(ctx context.Context, convID, userID uint64) error {
	rows, err := s.convRepo.SetArchived(ctx, convID, userID, false, nil)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// GetUserConversationsList 获取本人未归档会话列表，按活跃时间倒序
func (s *chatServiceImpl) GetUserConversationsList(ctx context.Context, userID uint64) ([]*dto.ConversationDTO, error) {
	members, err := s.convRepo.GetUserParticipantList(ctx, userID)
	if err != nil {
		return nil, err
	}

	convIDs := make([]uint64, 0, len(members))
	for _, m := range members {
		convIDs = append(convIDs, m.ConversationID)
	}

	latest, err := s.messageRepo.LatestByConversation(ctx, convIDs)
	if err != nil {
		return nil, err
	}

	// 汇总两侧参与者 ID，一次性取公开资料
	userIDSet := make(map[uint64]struct{})
	for _, m := range members {
		u1, u2, err := parsePeerKey(m.Conversation.PeerKey)
		if err != nil {
			continue
		}
		userIDSet[u1] = struct{}{}
		userIDSet[u2] = struct{}{}
	}
	allIDs := make([]uint64, 0, len(userIDSet))
	for id := range userIDSet {
		allIDs = append(allIDs, id)
	}
	profiles, err := s.userService.GetPublicProfiles(ctx, allIDs)
	if err != nil {
		profiles = map[uint64]*dto.UserSimpleDTO{}
	}

	res := make([]*dto.ConversationDTO, 0, len(members))
	for _, m := range members {
		d := &dto.ConversationDTO{
			ConversationID: m.ConversationID,
			CreatedAt:      m.Conversation.CreatedAt,
			UpdatedAt:      m.Conversation.UpdatedAt,
		}

		u1, u2, err := parsePeerKey(m.Conversation.PeerKey)
		if err == nil {
			for _, uid := range []uint64{u1, u2} {
				if p, ok := profiles[uid]; ok {
					d.Participants = append(d.Participants, p)
				} else {
					d.Participants = append(d.Participants, &dto.UserSimpleDTO{UserID: uid})
				}
			}
		}

		if lm, ok := latest[m.ConversationID]; ok {
			md := s.toMessageDTO(lm)
			if p, ok := profiles[lm.SenderID]; ok {
				md.Sender = p
			}
			d.LastMessage = md
		}
		res = append(res, d)
	}
	return res, nil
}

// GetUnreadCountsList 未读汇总，仅统计未归档会话
// 总数由逐会话计数求和得出，两者天然一致
func (s *chatServiceImpl) GetUnreadCountsList(ctx context.Context, userID uint64) (*dto.UnreadSummaryDTO, error) {
	members, err := s.convRepo.GetUserParticipantList(ctx, userID)
	if err != nil {
		return nil, err
	}

	convIDs := make([]uint64, 0, len(members))
	for _, m := range members {
		convIDs = append(convIDs, m.ConversationID)
	}

	counts, err := s.messageRepo.UnreadCounts(ctx, convIDs, userID)
	if err != nil {
		return nil, err
	}

	summary := &dto.UnreadSummaryDTO{
		PerConversation: make([]*dto.UnreadCountDTO, 0, len(convIDs)),
	}
	for _, convID := range convIDs {
		n := counts[convID]
		summary.PerConversation = append(summary.PerConversation, &dto.UnreadCountDTO{
			ConversationID: convID,
			Unread:         n,
		})
		summary.TotalUnread += n
	}
	return summary, nil
}

// GetRecipientUserIDs 返回会话中除发送者外的成员 ID，供实时推送定向
// 调用方必须是会话成员，通道层的进房校验也依赖这一点
func (s *chatServiceImpl) GetRecipientUserIDs(ctx context.Context, convID, senderID uint64) ([]uint64, error) {
	members, err := s.convRepo.GetParticipants(ctx, convID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrConversationNotFound
	}

	isMember := false
	res := make([]uint64, 0, len(members))
	for _, m := range members {
		if m.UserID == senderID {
			isMember = true
			continue
		}
		res = append(res, m.UserID)
	}
	if !isMember {
		return nil, ErrNotParticipant
	}
	return res, nil
}

func (s *chatServiceImpl) Close() {
	close(s.stopChan)
	s.wg.Wait()
	log.Info("ChatService shut down gracefully")
}

// findOrCreateConversation 按排序对键查找，缺失则建；
// 并发撞唯一索引时回查复用已有会话
func (s *chatServiceImpl) findOrCreateConversation(ctx context.Context, userA, userB uint64) (*model.Conversation, error) {
	key := peerKey(userA, userB)

	conv, err := s.convRepo.GetConversationByPeerKey(ctx, key)
	if err == nil {
		return conv, nil
	}

	newConv := &model.Conversation{PeerKey: key}
	members := []*model.Participant{
		{UserID: userA, JoinedAt: time.Now()},
		{UserID: userB, JoinedAt: time.Now()},
	}

	if err := s.convRepo.CreateConversation(ctx, newConv, members); err != nil {
		// 并发双方同时首建，输掉唯一索引的一方回查复用
		if isDuplicateError(err) {
			if existing, err2 := s.convRepo.GetConversationByPeerKey(ctx, key); err2 == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	for _, m := range members {
		newConv.Participants = append(newConv.Participants, *m)
	}
	return newConv, nil
}

// attachSenders 批量装配消息的发送者公开资料
func (s *chatServiceImpl) attachSenders(ctx context.Context, messages []*dto.MessageDTO) {
	idSet := make(map[uint64]struct{})
	for _, m := range messages {
		idSet[m.SenderID] = struct{}{}
	}
	ids := make([]uint64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	profiles, err := s.userService.GetPublicProfiles(ctx, ids)
	if err != nil {
		return
	}
	for _, m := range messages {
		if p, ok := profiles[m.SenderID]; ok {
			m.Sender = p
		}
	}
}

func (s *chatServiceImpl) toConversationDTO(ctx context.Context, conv *model.Conversation, lastMsg *mongo.Message) *dto.ConversationDTO {
	d := &dto.ConversationDTO{
		ConversationID: conv.ID,
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
	}

	ids := make([]uint64, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		ids = append(ids, p.UserID)
	}
	profiles, err := s.userService.GetPublicProfiles(ctx, ids)
	if err != nil {
		profiles = map[uint64]*dto.UserSimpleDTO{}
	}
	for _, uid := range ids {
		if p, ok := profiles[uid]; ok {
			d.Participants = append(d.Participants, p)
		} else {
			d.Participants = append(d.Participants, &dto.UserSimpleDTO{UserID: uid})
		}
	}

	if lastMsg != nil {
		d.LastMessage = s.toMessageDTO(lastMsg)
	}
	return d
}

func (s *chatServiceImpl) toMessageDTO(m *mongo.Message) *dto.MessageDTO {
	return &dto.MessageDTO{
		ID: m.ID, ConversationID: m.ConversationID, SenderID: m.SenderID,
		Content: m.Content, IsRead: m.IsRead,
		IsEdited: m.IsEdited, EditedAt: m.EditedAt,
		IsDeleted: m.IsDeleted, DeletedAt: m.DeletedAt,
		CreatedAt: m.CreatedAt,
	}
}

// calibrationWorker 消费补偿队列，指数退避重写 MongoDB
func (s *chatServiceImpl) calibrationWorker() {
	defer s.wg.Done()
	for {
		select {
		case msg := <-s.retryChan:
			backoff := time.Second
			for i := 0; i < 3; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := s.messageRepo.SaveMessage(ctx, msg)
				cancel()
				if err == nil {
					break
				}
				time.Sleep(backoff)
				backoff *= 2
			}
		case <-s.stopChan:
			return
		}
	}
}

func isDuplicateError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	return false
}

// peerKey 生成两人会话的唯一键，小 ID 在前
func peerKey(userA, userB uint64) string {
	if userA < userB {
		return fmt.Sprintf("%d_%d", userA, userB)
	}
	return fmt.Sprintf("%d_%d", userB, userA)
}

func parsePeerKey(key string) (uint64, uint64, error) {
	var u1, u2 uint64
	if _, err := fmt.Sscanf(key, "%d_%d", &u1, &u2); err != nil {
		return 0, 0, err
	}
	return u1, u2, nil
}
