package ws

import (
	"sort"
	"sync"
)

// Session 在线会话句柄：Client 的最小抽象，注册表与 Hub 只依赖它
type Session interface {
	UserID() uint64
	Send(frame OutFrame) bool
	Close()
}

// Registry 进程级在线状态注册表，"谁在线"的唯一事实来源
// 单用户单会话：重连覆盖旧会话（last writer wins）；不落盘，
// 进程重启后由活跃连接重建
type Registry struct {
	mu     sync.RWMutex
	byUser map[uint64]Session
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[uint64]Session),
	}
}

// Register 登记用户会话，返回被顶替的旧会话（调用方负责关闭）
func (r *Registry) Register(userID uint64, s Session) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.byUser[userID]
	r.byUser[userID] = s
	if old == s {
		return nil
	}
	return old
}

// Unregister 注销会话
// 仅当注册表中记录的仍是该会话时才移除：迟到的旧连接断开事件
// 不能把新连接顶下线
func (r *Registry) Unregister(s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byUser[s.UserID()]
	if !ok || current != s {
		return false
	}
	delete(r.byUser, s.UserID())
	return true
}

// Lookup 查找用户的在线会话，离线返回 nil
func (r *Registry) Lookup(userID uint64) Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userID]
}

// OnlineUserIDs 在线用户 ID 快照，升序
func (r *Registry) OnlineUserIDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint64, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Sessions 全部在线会话快照（广播用）
func (r *Registry) Sessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]Session, 0, len(r.byUser))
	for _, s := range r.byUser {
		res = append(res, s)
	}
	return res
}
