package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("参数错误")
	ErrSelfConversation     = errors.New("不能和自己发起会话")
	ErrContentEmpty         = errors.New("消息内容不能为空")
	ErrNotParticipant       = errors.New("不是该会话的成员")
	ErrAccessDenied         = errors.New("无权访问该会话")
	ErrConversationNotFound = errors.New("会话不存在")
	ErrMessageNotFound      = errors.New("消息不存在")
	ErrNotMessageOwner      = errors.New("只能操作自己发送的消息")
	ErrMessageDeleted       = errors.New("消息已删除，不能再编辑")
	ErrParticipantNotFound  = errors.New("会话成员不存在")
	ErrUserNotFound         = errors.New("用户不存在")
	UnauthorizedError       = errors.New("权限不足")
	UnExpectedError         = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrSelfConversation:     BadRequest,
	ErrContentEmpty:         BadRequest,
	ErrNotParticipant:       Forbidden,
	ErrAccessDenied:         Forbidden,
	ErrConversationNotFound: NotFound,
	ErrMessageNotFound:      NotFound,
	ErrNotMessageOwner:      Forbidden,
	ErrMessageDeleted:       BadRequest,
	ErrParticipantNotFound:  NotFound,
	ErrUserNotFound:         NotFound,
	UnauthorizedError:       Unauthorized,
	UnExpectedError:         InternalServerError,
}
