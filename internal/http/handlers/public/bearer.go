package public

import (
	"net/http"

	"github.com/cartline-next/internal/config"
	"github.com/cartline-next/internal/service"

	"github.com/gin-gonic/gin"
)

// cookieBearer 基于 Cookie 的匿名身份载体
type cookieBearer struct {
	c   *gin.Context
	cfg config.CartConfig
}

// Read 读取匿名身份 Cookie
func (b *cookieBearer) Read() (string, bool) {
	value, err := b.c.Cookie(b.cfg.CookieName)
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}

// Write 下发匿名身份 Cookie
func (b *cookieBearer) Write(anonymousID string) error {
	maxAge := b.cfg.CookieTTLDays * 24 * 3600
	b.c.SetSameSite(http.SameSiteLaxMode)
	b.c.SetCookie(b.cfg.CookieName, anonymousID, maxAge, "/", "", b.cfg.CookieSecure, true)
	return nil
}

// resolveCart 汇集请求中的身份信号并解析出当前购物车
// 信号优先级由解析器决定，这里只负责采集：显式令牌、Cookie、
// 缓存镜像中的身份槽位、中间件注入的登录用户。
func (h *Handler) resolveCart(c *gin.Context) (*service.Resolution, error) {
	bearer := &cookieBearer{c: c, cfg: h.Config.Cart}
	sessionKey := c.GetHeader("X-Client-Id")
	rc := service.NewResolutionContext(c.Request.Context(), bearer, sessionKey)

	signals := service.IdentitySignals{
		OverrideToken: overrideToken(c),
		UserID:        optionalUserID(c),
	}
	if id, ok := bearer.Read(); ok {
		signals.CookieAnonymousID = id
	}
	if sessionKey != "" && h.MirrorStore != nil {
		if id, ok := h.MirrorStore.GetBearer(c.Request.Context(), sessionKey); ok {
			signals.MirrorAnonymousID = id
		}
	}
	return h.Resolver.Resolve(rc, signals)
}

func overrideToken(c *gin.Context) string {
	if token := c.GetHeader("X-Cart-Token"); token != "" {
		return token
	}
	return c.Query("cart_token")
}
