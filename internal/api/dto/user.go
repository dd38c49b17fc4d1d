package dto

// UserSimpleDTO 用户公开资料（嵌入消息/会话响应）
type UserSimpleDTO struct {
	UserID    uint64 `json:"user_id"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url"`
}
