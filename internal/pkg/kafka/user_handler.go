package kafka

import (
	"Tutorlink/internal/model"
	"Tutorlink/internal/pkg/consts"
	"Tutorlink/internal/pkg/redis"
	"Tutorlink/internal/repository"
	"context"
	log "log/slog"
	"strconv"

	"github.com/IBM/sarama"
)

// UserHandler 消费主站 users 表的 Canal 变更，维护本地用户读模型
// 资料展示不跨服务调用，变更落地后顺手失效缓存
type UserHandler struct {
	userRepo repository.UserRepo
}

func NewUserHandler(userRepo repository.UserRepo) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

func (s *UserHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("user consumer setup")
	return nil
}

func (s *UserHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("user consumer cleanup")
	return nil
}

func (s *UserHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("topic-user consume claim")
	err := pullMessageBatch(session, claim, s.logic)
	if err != nil {
		log.Error("topic-user process batch error", "err", err)
		return err
	}
	log.Info("topic-user consume claim end")
	return nil
}

func (s *UserHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	canalMsg, err := ToCanalMessage(msg, "users")
	if err != nil {
		return err
	}

	row := canalMsg.Data[0]
	userID := StrToUint64(row["id"])
	if userID == 0 {
		log.Warn("canal 行缺少用户主键，跳过", "table", canalMsg.Table)
		return nil
	}

	switch canalMsg.Type {
	case INSERT, UPDATE:
		if StrToBool(row["is_deleted"]) {
			if err := s.userRepo.MarkUserDeleted(ctx, userID); err != nil {
				return err
			}
		} else {
			user := &model.User{
				ID:        userID,
				Nickname:  StrToString(row["nickname"]),
				AvatarURL: StrToString(row["avatar_url"]),
			}
			if err := s.userRepo.UpsertUser(ctx, user); err != nil {
				return err
			}
		}
	case DELETE:
		if err := s.userRepo.MarkUserDeleted(ctx, userID); err != nil {
			return err
		}
	default:
		return nil
	}

	// 变更已落库，旧缓存直接删除，下次读取回源
	return redis.DeleteKey(ctx, consts.UserSimpleInfoKey+strconv.FormatUint(userID, 10))
}
