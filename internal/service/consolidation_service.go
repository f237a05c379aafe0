package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cartline-next/internal/constants"
	"github.com/cartline-next/internal/logger"
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/repository"

	"gorm.io/gorm"
)

// ConsolidationService 购物车归并引擎
// 幂等，可并发、可重试：逐项迁移，每项的累加写入与来源删除同事务提交，
// 来源购物车在全部项确认迁移后才翻状态，
// 因此中途失败后的重跑不会重复累计数量。
type ConsolidationService struct {
	cartRepo repository.CartRepository
	itemRepo repository.CartItemRepository
	mirror   CartMirror
	notifier Notifier
}

// NewConsolidationService 创建归并引擎
func NewConsolidationService(cartRepo repository.CartRepository, itemRepo repository.CartItemRepository, mirror CartMirror, notifier Notifier) *ConsolidationService {
	return &ConsolidationService{
		cartRepo: cartRepo,
		itemRepo: itemRepo,
		mirror:   mirror,
		notifier: notifier,
	}
}

// Consolidate 将同一归属身份下的多个 active 购物车归并为一个
// 成功后该身份只剩一个 active 购物车，且每个合并键的数量总和不变；
// 非主购物车标记为 consolidated，永不删除（留作审计）。
func (s *ConsolidationService) Consolidate(owner OwnerKey) error {
	if owner.IsZero() {
		return ErrInvalidOwner
	}

	carts, err := s.cartRepo.ListActiveByOwner(owner.Filter())
	if err != nil {
		return err
	}
	if len(carts) <= 1 {
		return nil
	}

	primary := choosePrimaryCart(carts)
	now := time.Now()
	for i := range carts {
		cart := &carts[i]
		if cart.ID == primary.ID {
			continue
		}
		if err := s.migrateCart(primary, cart, now); err != nil {
			return fmt.Errorf("migrate cart %d into %d: %w", cart.ID, primary.ID, err)
		}
	}

	if err := s.cartRepo.Touch(primary.ID, now); err != nil {
		logger.Warnw("cart_consolidation_touch_failed", "cart_id", primary.ID, "error", err)
	}
	s.afterConsolidate(primary)
	return nil
}

// migrateCart 将来源购物车的全部项迁入主购物车，然后翻状态
func (s *ConsolidationService) migrateCart(primary, source *models.Cart, now time.Time) error {
	items, err := s.itemRepo.ListByCart(source.ID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.migrateItem(primary.ID, item, now); err != nil {
			return err
		}
	}
	return s.cartRepo.UpdateStatus(source.ID, constants.CartStatusConsolidated, now)
}

// migrateItem 迁移单个购物车项
// 累加写入与来源删除在同一事务内提交：任一侧失败整体回滚，
// 重试时来源项要么已消失、要么数量尚未累计，不会重复计入。
func (s *ConsolidationService) migrateItem(primaryID uint, item models.CartItem, now time.Time) error {
	return models.DB.Transaction(func(tx *gorm.DB) error {
		itemRepo := s.itemRepo.WithTx(tx)
		migrated := &models.CartItem{
			CartID:    primaryID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := itemRepo.UpsertAdd(migrated); err != nil {
			return err
		}
		return itemRepo.DeleteByID(item.ID)
	})
}

// afterConsolidate 归并完成的副作用：失效镜像、发送变更通知（尽力而为）
func (s *ConsolidationService) afterConsolidate(primary *models.Cart) {
	ctx := context.Background()
	if s.mirror != nil {
		if err := s.mirror.InvalidateView(ctx, primary.Token); err != nil {
			logger.Warnw("cart_consolidation_mirror_invalidate_failed", "cart_id", primary.ID, "error", err)
		}
	}
	if s.notifier != nil {
		count, err := s.itemRepo.SumQuantityByCart(primary.ID)
		if err != nil {
			logger.Warnw("cart_consolidation_count_failed", "cart_id", primary.ID, "error", err)
			return
		}
		if err := s.notifier.NotifyCartChanged(primary.ID, primary.Token, count); err != nil {
			logger.Warnw("cart_changed_notify_failed", "cart_id", primary.ID, "error", err)
		}
	}
}

// choosePrimaryCart 确定归并主购物车：
// 商品项最多者优先；并列取最近更新；再并列取最早创建（稳定排序）。
func choosePrimaryCart(carts []models.Cart) *models.Cart {
	sorted := make([]*models.Cart, len(carts))
	for i := range carts {
		sorted[i] = &carts[i]
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		if len(sorted[a].Items) != len(sorted[b].Items) {
			return len(sorted[a].Items) > len(sorted[b].Items)
		}
		if !sorted[a].UpdatedAt.Equal(sorted[b].UpdatedAt) {
			return sorted[a].UpdatedAt.After(sorted[b].UpdatedAt)
		}
		return sorted[a].CreatedAt.Before(sorted[b].CreatedAt)
	})
	return sorted[0]
}
