package ws

import (
	"Tutorlink/internal/api/dto"
	"Tutorlink/internal/service"
	"context"
	log "log/slog"
	"sync"
)

// Hub 实时通道网关核心：维护房间订阅并把入站事件翻译为 Service 调用
// 持久连接绕过了常规请求中间件，因此每个事件都用通道绑定身份重做鉴权
type Hub struct {
	chatService service.ChatService
	presence    *Registry

	mu    sync.RWMutex
	rooms map[uint64]map[Session]struct{} // convID -> sessions
	joins map[Session]map[uint64]struct{} // 反向索引，断开时清房间
}

func NewHub(chatService service.ChatService) *Hub {
	return &Hub{
		chatService: chatService,
		presence:    NewRegistry(),
		rooms:       make(map[uint64]map[Session]struct{}),
		joins:       make(map[Session]map[uint64]struct{}),
	}
}

func (h *Hub) Presence() *Registry {
	return h.presence
}

// Connect 连接完成鉴权后登记在线状态并广播在线列表
// 同一用户重连时顶掉旧会话
func (h *Hub) Connect(s Session) {
	if old := h.presence.Register(s.UserID(), s); old != nil {
		h.removeFromAllRooms(old)
		old.Close()
	}
	h.broadcastOnlineUsers()
	log.Info("用户实时通道已建立", "user_id", s.UserID())
}

// Disconnect 断开清理：房间成员关系随连接生命周期结束
func (h *Hub) Disconnect(s Session) {
	h.removeFromAllRooms(s)
	if h.presence.Unregister(s) {
		h.broadcastOnlineUsers()
	}
	log.Info("用户实时通道已断开", "user_id", s.UserID())
}

// HandleFrame 入站事件分发
func (h *Hub) HandleFrame(ctx context.Context, s Session, f Frame) {
	switch f.Event {
	case EventJoinConversation:
		h.handleJoin(ctx, s, f)
	case EventLeaveConversation:
		h.handleLeave(s, f)
	case EventTyping:
		h.handleTyping(s, f)
	case EventSendMessage:
		h.handleSendMessage(ctx, s, f)
	case EventEditMessage:
		h.handleEditMessage(ctx, s, f)
	case EventDeleteMessage:
		h.handleDeleteMessage(ctx, s, f)
	case EventMarkAsRead:
		h.handleMarkAsRead(ctx, s, f)
	case EventGetUnreadCount:
		h.handleGetUnreadCount(ctx, s, f)
	case EventGetOnlineUsers:
		h.ack(s, f.AckID, AckData{Success: true, Result: OnlineUsersEvent{UserIDs: h.presence.OnlineUserIDs()}})
	default:
		h.fail(s, f.AckID, errUnknownEvent)
	}
}

// handleJoin 进房前校验成员资格，房间只对会话成员开放
func (h *Hub) handleJoin(ctx context.Context, s Session, f Frame) {
	req, err := parseRoomReq(f.Data)
	if err != nil {
		h.fail(s, f.AckID, err)
		return
	}

	if _, err := h.chatService.GetRecipientUserIDs(ctx, req.ConversationID, s.UserID()); err != nil {
		h.fail(s, f.AckID, err)
		return
	}

	h.mu.Lock()
	room, ok := h.rooms[req.ConversationID]
	if !ok {
		room = make(map[Session]struct{})
		h.rooms[req.ConversationID] = room
	}
	room[s] = struct{}{}

	joined, ok := h.joins[s]
	if !ok {
		joined = make(map[uint64]struct{})
		h.joins[s] = joined
	}
	joined[req.ConversationID] = struct{}{}
	h.mu.Unlock()

	h.ack(s, f.AckID, AckData{Success: true})
}

func (h *Hub) handleLeave(s Session, f Frame) {
	req, err := parseRoomReq(f.Data)
	if err != nil {
		h.fail(s, f.AckID, err)
		return
	}

	h.mu.Lock()
	if room, ok := h.rooms[req.ConversationID]; ok {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, req.ConversationID)
		}
	}
	if joined, ok := h.joins[s]; ok {
		delete(joined, req.ConversationID)
	}
	h.mu.Unlock()

	h.ack(s, f.AckID, AckData{Success: true})
}

// handleTyping 纯瞬态转发：不落库、不应答、尽力而为
// 发送者必须已在房间内，未入房间的帧直接丢弃
func (h *Hub) handleTyping(s Session, f Frame) {
	req, err := parseTypingReq(f.Data)
	if err != nil {
		return
	}

	h.mu.RLock()
	_, inRoom := h.rooms[req.ConversationID][s]
	h.mu.RUnlock()
	if !inRoom {
		return
	}

	h.broadcastToRoom(req.ConversationID, OutFrame{
		Event: EventTyping,
		Data: TypingEvent{
			ConversationID: req.ConversationID,
			UserID:         s.UserID(),
			IsTyping:       req.IsTyping,
		},
	}, s)
}

// handleSendMessage 落库成功后才广播，广播用已提交的规范记录
// 房间广播排除发送者本人（结果走 ack），另向接收者在线会话直推提醒
func (h *Hub) handleSendMessage(ctx context.Context, s Session, f Frame) {
	req, err := parseSendMessageReq(f.Data)
	if err != nil {
		h.fail(s, f.AckID, err)
		return
	}

	msg, err := h.chatService.SendMessage(ctx, s.UserID(), &dto.SendMessageReq{
		ConversationID: req.ConversationID,
		RecipientID:    req.RecipientID,
		Content:        req.Content,
	})
	if err != nil {
		h.fail(s, f.AckID, err)
		return
	}

	h.ack(s, f.AckID, AckData{Success: true, Result: msg})

	h.broadcastToRoom(msg.ConversationID, OutFrame{Event: EventNewMessage, Data: msg}, s)

	// 直推提醒不依赖房间：接收者可能还没进入会话视图
	recipients, err := h.chatService.GetRecipientUserIDs(ctx, msg.ConversationID, s.UserID())
	if err != nil {
		log.WarnContext(ctx, "获取推送目标失败", "conversation_id", msg.ConversationID, "err", err)
		return
	}
	for _, uid := range recipients {
		if target := h.presence.Lookup(uid); target != nil {
			target.Send(OutFrame{
				Event: EventNotification,
				Data: NotificationEvent{
					Type:           EventNewMessage,
					ConversationID: msg.ConversationID,
					Message:        msg,
				},
			})
		}
	}
}

// handleEditMessage 编辑结果广播给整个房间（含操作者），各端视图收敛一致
func (h *Hub) handleEditMessage(ctx context.Context, s Session, f Frame) {
	req, err := parseEditMessageReq(f.Data)
	if err != nil {
		h.fail(s, f.AckID, err)
		return
	}

	msg, err := h.chatService.EditMessage(ctx, req.MessageID, s.UserID(), req.NewContent)
	if err != nil {
		h.fail(s, f.AckID, err)
		return
	}

	h.ack(s, f.AckID, AckData{Success: true, Result: msg})
	h.broadcastToRoom(msg.ConversationID, OutFrame{Event: EventMessageEdited, Data: msg}, nil)
}

func (h *Hub) handleDeleteMessage(ctx context.Context, s Session, f Frame) {
	req, err := parseDeleteMessageReq(f.Data)
	if err != nil {
		h.fail(s, f.AckID, err)
		return
	}

	msg, err := h.chatService.DeleteMessageByID(ctx, req.MessageID, s.UserID())
	if err != nil {
		h.fail(s, f.AckID, err)
		return
	}

	h.ack(s, f.AckID, AckData{Success: true, Result: msg})
	h.broadcastToRoom(msg.ConversationID, OutFrame{Event: EventMessageDeleted, Data: msg}, nil)
}

// handleMarkAsRead 应答翻转条数，向房间广播轻量已读事件
func (h *Hub) handleMarkAsRead(ctx context.Context, s Session, f Frame) {
	req, err := parseRoomReq(f.Data)
	if err != nil {
		h.fail(s, f.AckID, err)
		return
	}

	count, err := h.chatService.MarkAsRead(ctx, req.ConversationID, s.UserID())
	if err != nil {
		h.fail(s, f.AckID, err)
		return
	}

	h.ack(s, f.AckID, AckData{Success: true, Result: map[string]int64{"count": count}})
	h.broadcastToRoom(req.ConversationID, OutFrame{
		Event: EventMessagesRead,
		Data: MessagesReadEvent{
			ConversationID: req.ConversationID,
			UserID:         s.UserID(),
		},
	}, s)
}

// handleGetUnreadCount 只查通道绑定身份自己的未读数，忽略负载
func (h *Hub) handleGetUnreadCount(ctx context.Context, s Session, f Frame) {
	summary, err := h.chatService.GetUnreadCountsList(ctx, s.UserID())
	if err != nil {
		h.fail(s, f.AckID, err)
		return
	}
	h.ack(s, f.AckID, AckData{Success: true, Result: summary})
}

// RoomSessions 房间内会话快照
func (h *Hub) RoomSessions(convID uint64) []Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[convID]
	if !ok {
		return nil
	}
	res := make([]Session, 0, len(room))
	for s := range room {
		res = append(res, s)
	}
	return res
}

// broadcastToRoom 向房间广播，exclude 非空时跳过该会话
func (h *Hub) broadcastToRoom(convID uint64, frame OutFrame, exclude Session) {
	for _, s := range h.RoomSessions(convID) {
		if s == exclude {
			continue
		}
		if !s.Send(frame) {
			log.Warn("会话发送缓冲已满，丢弃广播帧", "user_id", s.UserID(), "event", frame.Event)
		}
	}
}

func (h *Hub) broadcastOnlineUsers() {
	frame := OutFrame{
		Event: EventOnlineUsers,
		Data:  OnlineUsersEvent{UserIDs: h.presence.OnlineUserIDs()},
	}
	for _, s := range h.presence.Sessions() {
		s.Send(frame)
	}
}

func (h *Hub) removeFromAllRooms(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for convID := range h.joins[s] {
		if room, ok := h.rooms[convID]; ok {
			delete(room, s)
			if len(room) == 0 {
				delete(h.rooms, convID)
			}
		}
	}
	delete(h.joins, s)
}

func (h *Hub) ack(s Session, ackID uint64, data AckData) {
	if ackID == 0 {
		return
	}
	s.Send(OutFrame{Event: EventAck, AckID: ackID, Data: data})
}

// fail 失败只应答发起方，从不广播
func (h *Hub) fail(s Session, ackID uint64, err error) {
	h.ack(s, ackID, AckData{Success: false, Error: err.Error()})
}
