package ws

import (
	"Tutorlink/internal/api/dto"
	"Tutorlink/internal/service"
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatService 只实现 Hub 用到的行为，其余方法返回零值
type fakeChatService struct {
	// convID -> 成员 ID
	participants map[uint64][]uint64
	sendErr      error
	markCount    int64
}

func newFakeChatService() *fakeChatService {
	return &fakeChatService{participants: make(map[uint64][]uint64)}
}

func (s *fakeChatService) isMember(convID, userID uint64) bool {
	for _, id := range s.participants[convID] {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *fakeChatService) StartOrGetConversation(context.Context, uint64, uint64) (*dto.ConversationDTO, error) {
	return nil, nil
}

func (s *fakeChatService) SendMessage(_ context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	if !s.isMember(req.ConversationID, senderID) {
		return nil, service.ErrNotParticipant
	}
	return &dto.MessageDTO{
		ID:             "msg-1",
		ConversationID: req.ConversationID,
		SenderID:       senderID,
		Content:        req.Content,
	}, nil
}

func (s *fakeChatService) GetMessages(context.Context, uint64, uint64, int, string) ([]*dto.MessageDTO, error) {
	return nil, nil
}

func (s *fakeChatService) MarkAsRead(_ context.Context, convID, userID uint64) (int64, error) {
	if !s.isMember(convID, userID) {
		return 0, service.ErrAccessDenied
	}
	return s.markCount, nil
}

func (s *fakeChatService) EditMessage(_ context.Context, messageID string, userID uint64, newContent string) (*dto.MessageDTO, error) {
	return &dto.MessageDTO{ID: messageID, ConversationID: 1, SenderID: userID, Content: newContent, IsEdited: true}, nil
}

func (s *fakeChatService) DeleteMessageByID(_ context.Context, messageID string, userID uint64) (*dto.MessageDTO, error) {
	return &dto.MessageDTO{ID: messageID, ConversationID: 1, SenderID: userID, IsDeleted: true}, nil
}

func (s *fakeChatService) ArchiveConversationByID(context.Context, uint64, uint64) error   { return nil }
func (s *fakeChatService) UnarchiveConversationByID(context.Context, uint64, uint64) error { return nil }

func (s *fakeChatService) GetUserConversationsList(context.Context, uint64) ([]*dto.ConversationDTO, error) {
	return nil, nil
}

func (s *fakeChatService) GetUnreadCountsList(context.Context, uint64) (*dto.UnreadSummaryDTO, error) {
	return &dto.UnreadSummaryDTO{TotalUnread: 5}, nil
}

func (s *fakeChatService) GetRecipientUserIDs(_ context.Context, convID, senderID uint64) ([]uint64, error) {
	if !s.isMember(convID, senderID) {
		return nil, service.ErrNotParticipant
	}
	var res []uint64
	for _, id := range s.participants[convID] {
		if id != senderID {
			res = append(res, id)
		}
	}
	return res, nil
}

func (s *fakeChatService) Close() {}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func joinRoom(t *testing.T, h *Hub, s Session, convID uint64) {
	t.Helper()
	h.HandleFrame(context.Background(), s, Frame{
		Event: EventJoinConversation,
		AckID: 99,
		Data:  mustJSON(t, RoomReq{ConversationID: convID}),
	})
}

func lastAck(t *testing.T, s *fakeSession) AckData {
	t.Helper()
	acks := s.framesByEvent(EventAck)
	require.NotEmpty(t, acks)
	return acks[len(acks)-1].Data.(AckData)
}

func TestHubConnect(t *testing.T) {
	t.Run("上线后广播在线列表", func(t *testing.T) {
		chat := newFakeChatService()
		h := NewHub(chat)
		s1 := newFakeSession(1)
		s2 := newFakeSession(2)

		h.Connect(s1)
		h.Connect(s2)

		// 第二人上线时双方都收到快照
		frames := s1.framesByEvent(EventOnlineUsers)
		require.NotEmpty(t, frames)
		latest := frames[len(frames)-1].Data.(OnlineUsersEvent)
		assert.Equal(t, []uint64{1, 2}, latest.UserIDs)
	})

	t.Run("同一用户重连关闭旧连接", func(t *testing.T) {
		chat := newFakeChatService()
		h := NewHub(chat)
		old := newFakeSession(1)
		h.Connect(old)

		fresh := newFakeSession(1)
		h.Connect(fresh)

		assert.True(t, old.isClosed())
		assert.Same(t, fresh, h.Presence().Lookup(1).(*fakeSession))
	})

	t.Run("断开后从在线列表消失", func(t *testing.T) {
		chat := newFakeChatService()
		h := NewHub(chat)
		s := newFakeSession(1)
		h.Connect(s)
		h.Disconnect(s)

		assert.Nil(t, h.Presence().Lookup(1))
	})
}

func TestHubJoinConversation(t *testing.T) {
	t.Run("成员进房成功", func(t *testing.T) {
		chat := newFakeChatService()
		chat.participants[10] = []uint64{1, 2}
		h := NewHub(chat)
		s := newFakeSession(1)
		h.Connect(s)

		joinRoom(t, h, s, 10)

		ack := lastAck(t, s)
		assert.True(t, ack.Success)
		assert.Len(t, h.RoomSessions(10), 1)
	})

	t.Run("非成员进房被拒", func(t *testing.T) {
		chat := newFakeChatService()
		chat.participants[10] = []uint64{1, 2}
		h := NewHub(chat)
		s := newFakeSession(99)
		h.Connect(s)

		joinRoom(t, h, s, 10)

		ack := lastAck(t, s)
		assert.False(t, ack.Success)
		assert.NotEmpty(t, ack.Error)
		assert.Empty(t, h.RoomSessions(10))
	})

	t.Run("离房后不再收广播", func(t *testing.T) {
		chat := newFakeChatService()
		chat.participants[10] = []uint64{1, 2}
		h := NewHub(chat)
		s := newFakeSession(1)
		h.Connect(s)
		joinRoom(t, h, s, 10)

		h.HandleFrame(context.Background(), s, Frame{
			Event: EventLeaveConversation,
			AckID: 100,
			Data:  mustJSON(t, RoomReq{ConversationID: 10}),
		})

		assert.Empty(t, h.RoomSessions(10))
	})
}

func TestHubSendMessage(t *testing.T) {
	setup := func(t *testing.T) (*Hub, *fakeChatService, *fakeSession, *fakeSession) {
		chat := newFakeChatService()
		chat.participants[10] = []uint64{1, 2}
		h := NewHub(chat)
		sender := newFakeSession(1)
		peer := newFakeSession(2)
		h.Connect(sender)
		h.Connect(peer)
		joinRoom(t, h, sender, 10)
		joinRoom(t, h, peer, 10)
		return h, chat, sender, peer
	}

	t.Run("发送者收应答房间其他人收广播", func(t *testing.T) {
		h, _, sender, peer := setup(t)

		h.HandleFrame(context.Background(), sender, Frame{
			Event: EventSendMessage,
			AckID: 1,
			Data:  mustJSON(t, SendMessageReq{ConversationID: 10, Content: "早上好"}),
		})

		ack := lastAck(t, sender)
		assert.True(t, ack.Success)
		msg := ack.Result.(*dto.MessageDTO)
		assert.Equal(t, "早上好", msg.Content)

		// 发送者不收 newMessage 广播
		assert.Empty(t, sender.framesByEvent(EventNewMessage))
		peerMsgs := peer.framesByEvent(EventNewMessage)
		require.Len(t, peerMsgs, 1)
		assert.Equal(t, "早上好", peerMsgs[0].Data.(*dto.MessageDTO).Content)
	})

	t.Run("接收者在线即收提醒与进房无关", func(t *testing.T) {
		chat := newFakeChatService()
		chat.participants[10] = []uint64{1, 2}
		h := NewHub(chat)
		sender := newFakeSession(1)
		peer := newFakeSession(2) // 在线但没进房
		h.Connect(sender)
		h.Connect(peer)
		joinRoom(t, h, sender, 10)

		h.HandleFrame(context.Background(), sender, Frame{
			Event: EventSendMessage,
			AckID: 1,
			Data:  mustJSON(t, SendMessageReq{ConversationID: 10, Content: "在吗"}),
		})

		notifs := peer.framesByEvent(EventNotification)
		require.Len(t, notifs, 1)
		n := notifs[0].Data.(NotificationEvent)
		assert.Equal(t, EventNewMessage, n.Type)
		assert.Equal(t, uint64(10), n.ConversationID)

		// 没进房就不收房间广播
		assert.Empty(t, peer.framesByEvent(EventNewMessage))
	})

	t.Run("业务失败只回失败应答不广播", func(t *testing.T) {
		h, chat, sender, peer := setup(t)
		chat.sendErr = service.ErrContentEmpty

		h.HandleFrame(context.Background(), sender, Frame{
			Event: EventSendMessage,
			AckID: 2,
			Data:  mustJSON(t, SendMessageReq{ConversationID: 10, Content: " "}),
		})

		ack := lastAck(t, sender)
		assert.False(t, ack.Success)
		assert.Equal(t, service.ErrContentEmpty.Error(), ack.Error)
		assert.Empty(t, peer.framesByEvent(EventNewMessage))
		assert.Empty(t, peer.framesByEvent(EventNotification))
	})
}

func TestHubTyping(t *testing.T) {
	chat := newFakeChatService()
	chat.participants[10] = []uint64{1, 2}
	h := NewHub(chat)
	sender := newFakeSession(1)
	peer := newFakeSession(2)
	h.Connect(sender)
	h.Connect(peer)
	joinRoom(t, h, sender, 10)
	joinRoom(t, h, peer, 10)

	h.HandleFrame(context.Background(), sender, Frame{
		Event: EventTyping,
		Data:  mustJSON(t, TypingReq{ConversationID: 10, IsTyping: true}),
	})

	// 打字状态只转发给房间里的其他人
	assert.Empty(t, sender.framesByEvent(EventTyping))
	events := peer.framesByEvent(EventTyping)
	require.Len(t, events, 1)
	ev := events[0].Data.(TypingEvent)
	assert.Equal(t, uint64(1), ev.UserID)
	assert.True(t, ev.IsTyping)

	// 没进过房间的连接乱报会话号，typing 帧直接丢弃
	outsider := newFakeSession(99)
	h.Connect(outsider)
	h.HandleFrame(context.Background(), outsider, Frame{
		Event: EventTyping,
		Data:  mustJSON(t, TypingReq{ConversationID: 10, IsTyping: true}),
	})
	assert.Len(t, peer.framesByEvent(EventTyping), 1)
	assert.Empty(t, sender.framesByEvent(EventTyping))
}

func TestHubMarkAsRead(t *testing.T) {
	chat := newFakeChatService()
	chat.participants[10] = []uint64{1, 2}
	chat.markCount = 3
	h := NewHub(chat)
	reader := newFakeSession(2)
	peer := newFakeSession(1)
	h.Connect(reader)
	h.Connect(peer)
	joinRoom(t, h, reader, 10)
	joinRoom(t, h, peer, 10)

	h.HandleFrame(context.Background(), reader, Frame{
		Event: EventMarkAsRead,
		AckID: 5,
		Data:  mustJSON(t, RoomReq{ConversationID: 10}),
	})

	ack := lastAck(t, reader)
	assert.True(t, ack.Success)
	assert.Equal(t, int64(3), ack.Result.(map[string]int64)["count"])

	events := peer.framesByEvent(EventMessagesRead)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(2), events[0].Data.(MessagesReadEvent).UserID)
}

func TestHubMisc(t *testing.T) {
	t.Run("查询在线用户", func(t *testing.T) {
		chat := newFakeChatService()
		h := NewHub(chat)
		s := newFakeSession(1)
		h.Connect(s)

		h.HandleFrame(context.Background(), s, Frame{Event: EventGetOnlineUsers, AckID: 1})

		ack := lastAck(t, s)
		assert.True(t, ack.Success)
		assert.Equal(t, []uint64{1}, ack.Result.(OnlineUsersEvent).UserIDs)
	})

	t.Run("查询本人未读数", func(t *testing.T) {
		chat := newFakeChatService()
		h := NewHub(chat)
		s := newFakeSession(1)
		h.Connect(s)

		h.HandleFrame(context.Background(), s, Frame{Event: EventGetUnreadCount, AckID: 2})

		ack := lastAck(t, s)
		assert.True(t, ack.Success)
		assert.Equal(t, int64(5), ack.Result.(*dto.UnreadSummaryDTO).TotalUnread)
	})

	t.Run("未知事件回失败应答", func(t *testing.T) {
		chat := newFakeChatService()
		h := NewHub(chat)
		s := newFakeSession(1)
		h.Connect(s)

		h.HandleFrame(context.Background(), s, Frame{Event: "teleport", AckID: 3})

		ack := lastAck(t, s)
		assert.False(t, ack.Success)
		assert.Equal(t, errUnknownEvent.Error(), ack.Error)
	})

	t.Run("断开后房间成员同步清理", func(t *testing.T) {
		chat := newFakeChatService()
		chat.participants[10] = []uint64{1, 2}
		h := NewHub(chat)
		s := newFakeSession(1)
		h.Connect(s)
		joinRoom(t, h, s, 10)
		require.Len(t, h.RoomSessions(10), 1)

		h.Disconnect(s)
		assert.Empty(t, h.RoomSessions(10))
	})
}
