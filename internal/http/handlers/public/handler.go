package public

import "github.com/cartline-next/internal/provider"

// Handler 前台/公开接口处理器入口
// 说明：购物车与结算接口同时服务登录用户和游客。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
