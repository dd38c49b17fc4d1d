package job

import (
	"Tutorlink/internal/pkg/consts"
	"Tutorlink/internal/pkg/mongo"
	"Tutorlink/internal/pkg/redis"
	"context"
	log "log/slog"
	"time"
)

// ChatMetricJob 每日统计前一天的消息量，写入 Redis 供运营侧拉取
type ChatMetricJob struct {
	messageRepo mongo.MessageRepo
}

func NewChatMetricJob(messageRepo mongo.MessageRepo) *ChatMetricJob {
	return &ChatMetricJob{messageRepo: messageRepo}
}

func (s *ChatMetricJob) Run() {
	ctx := context.Background()
	log.Info("start chat metric job")

	now := time.Now()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := end.AddDate(0, 0, -1)

	count, err := s.messageRepo.CountCreatedBetween(ctx, start, end)
	if err != nil {
		log.Error("count daily messages failed", "err", err)
		return
	}

	key := consts.IMDailyMetricKey + start.Format("2006-01-02")
	if err := redis.SetWithExpiration(ctx, key, count, 90*24*time.Hour); err != nil {
		log.Error("save daily metric failed", "key", key, "err", err)
		return
	}

	log.Info("chat metric job finished", "date", start.Format("2006-01-02"), "messages", count)
}
