package handler

import (
	"Tutorlink/internal/api/middleware"
	"Tutorlink/internal/pkg/response"
	"Tutorlink/internal/pkg/security"
	"Tutorlink/internal/service"
	"Tutorlink/internal/ws"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WsHandler struct {
	hub *ws.Hub
}

func NewWsHandler(hub *ws.Hub) *WsHandler {
	return &WsHandler{hub: hub}
}

// Connect 实时通道入口：鉴权、升级、阻塞伺服直至连接关闭
func (s *WsHandler) Connect(c *gin.Context) {
	// 鉴权：浏览器 websocket 不能带自定义 Header，支持 query 兜底
	token := middleware.ExtractToken(c)
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		response.Error(c, service.UnauthorizedError)
		return
	}
	// 与 REST 中间件同一套校验：签名取键、黑名单、验签缺一不可
	signature, err := security.ExtractSignature(token)
	if err != nil {
		log.Warn("WS 鉴权失败", "err", err)
		response.Error(c, service.UnauthorizedError)
		return
	}
	if err := middleware.CheckTokenRevoked(c.Request.Context(), signature); err != nil {
		log.Warn("WS 鉴权失败", "err", err)
		response.Error(c, service.UnauthorizedError)
		return
	}
	claims, err := security.ValidateToken(token)
	if err != nil {
		log.Warn("WS 鉴权失败", "err", err)
		response.Error(c, service.UnauthorizedError)
		return
	}

	// 升级 Websocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WS 协议升级失败", "err", err)
		return
	}

	client := ws.NewClient(claims.UserID, conn, s.hub)
	client.Serve()
}
