package profile

import (
	"Tutorlink/internal/api/config"
	"Tutorlink/internal/api/dto"
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Client 主站用户资料回源客户端
// 本地只读副本未命中时调用主站 /api/user/:id/simple 兜底
type Client struct {
	http *resty.Client
}

func NewClient(cfg config.MarketConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3
	}
	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(time.Duration(timeout) * time.Second),
	}
}

type simpleInfoResp struct {
	Code    int                `json:"code"`
	Message string             `json:"message"`
	Data    *dto.UserSimpleDTO `json:"data"`
}

// GetUserSimple 拉取单个用户的公开资料
func (c *Client) GetUserSimple(ctx context.Context, userID uint64) (*dto.UserSimpleDTO, error) {
	var res simpleInfoResp
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&res).
		Get("/api/user/" + strconv.FormatUint(userID, 10) + "/simple")
	if err != nil {
		return nil, errors.Wrap(err, "请求主站用户资料接口失败")
	}
	if resp.IsError() || res.Code != 200 || res.Data == nil {
		return nil, errors.Errorf("主站用户资料接口异常: status=%d code=%d", resp.StatusCode(), res.Code)
	}
	return res.Data, nil
}
