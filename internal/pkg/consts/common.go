package consts

const (
	// SessionCookieName 前端登录后种下的会话 Cookie
	SessionCookieName = "tutorlink_session"
)

const (
	DefaultAvatarURL = "default_avatar.png"
)

const (
	// DefaultPageSize 历史消息分页默认条数
	DefaultPageSize = 20
	MaxPageSize     = 100
)
