package service

import (
	"context"

	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/queue"
	"github.com/cartline-next/internal/repository"
)

// OwnerKey 归属身份：已登录用户ID或匿名持有者标识，二选一
type OwnerKey struct {
	UserID      uint
	AnonymousID string
}

// IsZero 是否为空身份
func (k OwnerKey) IsZero() bool {
	return k.UserID == 0 && k.AnonymousID == ""
}

// Filter 转换为仓库过滤条件
func (k OwnerKey) Filter() repository.OwnerFilter {
	return repository.OwnerFilter{UserID: k.UserID, AnonymousID: k.AnonymousID}
}

// CartMirror 客户端购物车镜像缓存接口
// 镜像只作为回退信号读取或作为副作用失效，永不作为金额计算依据。
type CartMirror interface {
	GetView(ctx context.Context, token string) (*models.MirrorView, bool)
	PutView(ctx context.Context, view models.MirrorView) error
	InvalidateView(ctx context.Context, token string) error
	GetBearer(ctx context.Context, sessionKey string) (string, bool)
	PutBearer(ctx context.Context, sessionKey, anonymousID string) error
}

// BearerChannel 匿名持有者标识通道（cookie 等价物），请求作用域
// 写入失败不得中断调用方操作。
type BearerChannel interface {
	Read() (string, bool)
	Write(anonymousID string) error
}

// Notifier 购物车变更通知，fire-and-forget
type Notifier interface {
	NotifyCartChanged(cartID uint, token string, itemCount int64) error
}

// ConsolidationScheduler 归并任务调度
type ConsolidationScheduler interface {
	EnqueueConsolidation(payload queue.CartConsolidatePayload) error
}
