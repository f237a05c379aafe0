package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cartline-next/internal/models"
)

const (
	mirrorViewKeyPrefix   = "cart:mirror"
	mirrorBearerKeyPrefix = "cart:bearer"
	defaultMirrorTTL      = 24 * time.Hour
)

// CartMirrorStore 客户端购物车镜像缓存（Redis 实现）
// 镜像永不作为权威数据，读取失败一律按未命中处理。
type CartMirrorStore struct {
	ttl time.Duration
}

// NewCartMirrorStore 创建镜像缓存
func NewCartMirrorStore(ttlHours int) *CartMirrorStore {
	ttl := defaultMirrorTTL
	if ttlHours > 0 {
		ttl = time.Duration(ttlHours) * time.Hour
	}
	return &CartMirrorStore{ttl: ttl}
}

// GetView 读取购物车镜像视图
func (s *CartMirrorStore) GetView(ctx context.Context, token string) (*models.MirrorView, bool) {
	if token == "" {
		return nil, false
	}
	var view models.MirrorView
	hit, err := GetJSON(ctx, mirrorViewKey(token), &view)
	if err != nil || !hit {
		return nil, false
	}
	return &view, true
}

// PutView 写入购物车镜像视图
func (s *CartMirrorStore) PutView(ctx context.Context, view models.MirrorView) error {
	if view.Token == "" {
		return nil
	}
	view.UpdatedAt = time.Now()
	return SetJSON(ctx, mirrorViewKey(view.Token), view, s.ttl)
}

// InvalidateView 失效购物车镜像视图
func (s *CartMirrorStore) InvalidateView(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return Del(ctx, mirrorViewKey(token))
}

// GetBearer 读取镜像中的匿名持有者标识
func (s *CartMirrorStore) GetBearer(ctx context.Context, sessionKey string) (string, bool) {
	if sessionKey == "" {
		return "", false
	}
	var anonymousID string
	hit, err := GetJSON(ctx, mirrorBearerKey(sessionKey), &anonymousID)
	if err != nil || !hit || anonymousID == "" {
		return "", false
	}
	return anonymousID, true
}

// PutBearer 写回镜像中的匿名持有者标识
func (s *CartMirrorStore) PutBearer(ctx context.Context, sessionKey, anonymousID string) error {
	if sessionKey == "" || anonymousID == "" {
		return nil
	}
	return SetJSON(ctx, mirrorBearerKey(sessionKey), anonymousID, s.ttl)
}

func mirrorViewKey(token string) string {
	return fmt.Sprintf("%s:%s", mirrorViewKeyPrefix, token)
}

func mirrorBearerKey(sessionKey string) string {
	return fmt.Sprintf("%s:%s", mirrorBearerKeyPrefix, sessionKey)
}
