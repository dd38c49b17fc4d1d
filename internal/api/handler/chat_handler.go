package handler

import (
	"Tutorlink/internal/api/dto"
	"Tutorlink/internal/pkg/consts"
	"Tutorlink/internal/pkg/response"
	"Tutorlink/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// StartConversation 发起（或复用）与指定用户的会话
func (s *ChatHandler) StartConversation(c *gin.Context) {
	var req dto.StartConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	res, err := s.chatService.StartOrGetConversation(c.Request.Context(), userID, req.RecipientID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetConversations 获取当前用户的会话列表
func (s *ChatHandler) GetConversations(c *gin.Context) {
	userID := c.GetUint64("user_id")

	res, err := s.chatService.GetUserConversationsList(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ArchiveConversation 归档会话，只影响当前用户视图
func (s *ChatHandler) ArchiveConversation(c *gin.Context) {
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.ArchiveConversationByID(c.Request.Context(), convID, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// UnarchiveConversation 取消归档
func (s *ChatHandler) UnarchiveConversation(c *gin.Context) {
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	if err := s.chatService.UnarchiveConversationByID(c.Request.Context(), convID, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkAsRead 标记会话内他人消息为已读
func (s *ChatHandler) MarkAsRead(c *gin.Context) {
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	count, err := s.chatService.MarkAsRead(c.Request.Context(), convID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, map[string]int64{"count": count})
}

// GetMessages 游标分页拉取历史消息，按时间升序返回
func (s *ChatHandler) GetMessages(c *gin.Context) {
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(consts.DefaultPageSize)))
	cursor := c.Query("cursor")

	userID := c.GetUint64("user_id")

	res, err := s.chatService.GetMessages(c.Request.Context(), convID, userID, limit, cursor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// SendMessage 发送消息接口
func (s *ChatHandler) SendMessage(c *gin.Context) {
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	req.ConversationID = convID

	senderID := c.GetUint64("user_id")

	res, err := s.chatService.SendMessage(c.Request.Context(), senderID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// EditMessage 编辑自己发送的消息
func (s *ChatHandler) EditMessage(c *gin.Context) {
	messageID := c.Param("messageId")

	var req dto.EditMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64("user_id")

	res, err := s.chatService.EditMessage(c.Request.Context(), messageID, userID, req.NewContent)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// DeleteMessage 删除自己发送的消息，保留墓碑
func (s *ChatHandler) DeleteMessage(c *gin.Context) {
	messageID := c.Param("messageId")

	userID := c.GetUint64("user_id")

	res, err := s.chatService.DeleteMessageByID(c.Request.Context(), messageID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetUnreadCounts 获取未读统计
func (s *ChatHandler) GetUnreadCounts(c *gin.Context) {
	userID := c.GetUint64("user_id")

	res, err := s.chatService.GetUnreadCountsList(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
