package ws

import (
	"context"
	log "log/slog"
	"net"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufSize    = 64
)

// Client 封装一条 websocket 连接，读写各一个协程
// 出站帧经 egress 缓冲解耦，慢消费者丢帧而不阻塞广播方
type Client struct {
	userID uint64
	conn   *websocket.Conn
	hub    *Hub
	egress chan OutFrame

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func NewClient(userID uint64, conn *websocket.Conn, hub *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		userID: userID,
		conn:   conn,
		hub:    hub,
		egress: make(chan OutFrame, sendBufSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Client) UserID() uint64 {
	return c.userID
}

// Send 非阻塞入队，缓冲满返回 false 由调用方决定日志策略
func (c *Client) Send(frame OutFrame) bool {
	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

// Serve 登记连接并阻塞在读循环，连接关闭后返回
func (c *Client) Serve() {
	c.hub.Connect(c)
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				log.Warn("连接异常关闭", "user_id", c.userID, "err", err)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.Info("连接心跳超时", "user_id", c.userID)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn("入站帧解析失败", "user_id", c.userID, "err", err)
			continue
		}
		c.hub.HandleFrame(c.ctx, c, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case frame := <-c.egress:
			body, err := json.Marshal(frame)
			if err != nil {
				log.Error("出站帧序列化失败", "user_id", c.userID, "err", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
