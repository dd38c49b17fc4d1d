package service

import (
	"Tutorlink/internal/api/dto"
	"Tutorlink/internal/model"
	"Tutorlink/internal/pkg/consts"
	"Tutorlink/internal/pkg/profile"
	"Tutorlink/internal/pkg/redis"
	"Tutorlink/internal/repository"
	"context"
	log "log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jinzhu/copier"
)

const profileCacheTTL = 30 * time.Minute

// UserService 用户公开资料查询：Redis 缓存 → 本地副本 → 主站回源
type UserService interface {
	GetPublicProfile(ctx context.Context, userID uint64) (*dto.UserSimpleDTO, error)
	GetPublicProfiles(ctx context.Context, userIDs []uint64) (map[uint64]*dto.UserSimpleDTO, error)
}

type userServiceImpl struct {
	userRepo     repository.UserRepo
	marketClient *profile.Client
}

func NewUserService(userRepo repository.UserRepo, marketClient *profile.Client) UserService {
	return &userServiceImpl{
		userRepo:     userRepo,
		marketClient: marketClient,
	}
}

// GetPublicProfile 获取单个用户公开资料
func (s *userServiceImpl) GetPublicProfile(ctx context.Context, userID uint64) (*dto.UserSimpleDTO, error) {
	cacheKey := consts.UserSimpleInfoKey + strconv.FormatUint(userID, 10)

	// 1. 读缓存
	if cached, err := redis.GetValue(ctx, cacheKey); err == nil && cached != "" {
		var d dto.UserSimpleDTO
		if err := json.Unmarshal([]byte(cached), &d); err == nil {
			return &d, nil
		}
	}

	// 2. 读本地副本
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var d *dto.UserSimpleDTO
	if user != nil && !user.IsDeleted {
		d = s.toSimpleDTO(user)
	} else {
		// 3. CDC 尚未同步到的新用户，回源主站
		d, err = s.marketClient.GetUserSimple(ctx, userID)
		if err != nil {
			log.WarnContext(ctx, "用户资料回源失败", "user_id", userID, "err", err)
			return nil, ErrUserNotFound
		}
	}

	if data, err := json.Marshal(d); err == nil {
		_ = redis.SetWithExpiration(ctx, cacheKey, string(data), profileCacheTTL)
	}

	return d, nil
}

// GetPublicProfiles 批量获取，缺失的用户直接跳过不报错
func (s *userServiceImpl) GetPublicProfiles(ctx context.Context, userIDs []uint64) (map[uint64]*dto.UserSimpleDTO, error) {
	res := make(map[uint64]*dto.UserSimpleDTO, len(userIDs))
	missed := make([]uint64, 0, len(userIDs))

	for _, id := range userIDs {
		cacheKey := consts.UserSimpleInfoKey + strconv.FormatUint(id, 10)
		if cached, err := redis.GetValue(ctx, cacheKey); err == nil && cached != "" {
			var d dto.UserSimpleDTO
			if err := json.Unmarshal([]byte(cached), &d); err == nil {
				res[id] = &d
				continue
			}
		}
		missed = append(missed, id)
	}

	if len(missed) == 0 {
		return res, nil
	}

	users, err := s.userRepo.GetUserByIDs(ctx, missed)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.IsDeleted {
			continue
		}
		d := s.toSimpleDTO(u)
		res[u.ID] = d

		cacheKey := consts.UserSimpleInfoKey + strconv.FormatUint(u.ID, 10)
		if data, err := json.Marshal(d); err == nil {
			_ = redis.SetWithExpiration(ctx, cacheKey, string(data), profileCacheTTL)
		}
	}

	return res, nil
}

func (s *userServiceImpl) toSimpleDTO(user *model.User) *dto.UserSimpleDTO {
	d := &dto.UserSimpleDTO{UserID: user.ID}
	_ = copier.Copy(d, user)
	if d.AvatarURL == "" {
		d.AvatarURL = consts.DefaultAvatarURL
	}
	return d
}
