package handler

import (
	"Tutorlink/internal/api/dto"
	"Tutorlink/internal/pkg/response"
	"Tutorlink/internal/ws"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 握手阶段凭据不过关必须在升级前就拒绝
func TestWsConnectRejectsInvalidCredential(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWsHandler(ws.NewHub(nil))
	r := gin.New()
	r.GET("/api/im", h.Connect)

	cases := []struct {
		name  string
		query string
	}{
		{"缺失令牌", ""},
		{"残缺令牌取不出签名", "?token=not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/im"+tc.query, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			var body dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, response.Unauthorized, body.Code)
		})
	}
}
