package security

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	// JWTSecret 与主站签发服务共享的对称密钥
	JWTSecret string = "Tutorlink"
)

// UserClaims 会话凭据中携带的业务信息（签发方在主站，本服务只校验）
type UserClaims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}
