package service

import (
	"context"

	"github.com/cartline-next/internal/logger"
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/repository"

	"github.com/shopspring/decimal"
)

// ReconcileService 购物车镜像校验器
// 缓存视图与权威存储的数量出现分歧时，存储永远获胜；
// 镜像仅被失效并重建，绝不参与金额计算。
type ReconcileService struct {
	itemRepo repository.CartItemRepository
	mirror   CartMirror
}

// NewReconcileService 创建镜像校验器
func NewReconcileService(itemRepo repository.CartItemRepository, mirror CartMirror) *ReconcileService {
	return &ReconcileService{itemRepo: itemRepo, mirror: mirror}
}

// Reconcile 比对缓存视图与权威存储，返回权威项列表与是否失真
func (s *ReconcileService) Reconcile(ctx context.Context, cartID uint, cached []models.MirrorItem) ([]models.CartItem, bool, error) {
	authoritative, err := s.itemRepo.ListByCart(cartID)
	if err != nil {
		return nil, false, err
	}
	return authoritative, viewDiverged(cached, authoritative), nil
}

// ReconcileCart 读取镜像视图并与权威存储比对；
// 失真时失效镜像并用权威数据重建。
func (s *ReconcileService) ReconcileCart(ctx context.Context, cart *models.Cart) ([]models.CartItem, bool, error) {
	if cart == nil {
		return nil, false, ErrCartNotFound
	}
	authoritative, err := s.itemRepo.ListByCart(cart.ID)
	if err != nil {
		return nil, false, err
	}
	if s.mirror == nil {
		return authoritative, false, nil
	}

	view, hit := s.mirror.GetView(ctx, cart.Token)
	stale := hit && viewDiverged(view.Items, authoritative)
	if stale {
		logger.Infow("cart_mirror_stale",
			"cart_id", cart.ID,
			"cached_items", len(view.Items),
			"authoritative_items", len(authoritative),
		)
		if err := s.mirror.InvalidateView(ctx, cart.Token); err != nil {
			logger.Warnw("cart_mirror_invalidate_failed", "cart_id", cart.ID, "error", err)
		}
	}
	if stale || !hit {
		fresh := models.MirrorView{
			Token:     cart.Token,
			Items:     models.MirrorItemsFromCartItems(authoritative),
			ItemCount: sumQuantities(authoritative),
		}
		if err := s.mirror.PutView(ctx, fresh); err != nil {
			logger.Warnw("cart_mirror_refresh_failed", "cart_id", cart.ID, "error", err)
		}
	}
	return authoritative, stale, nil
}

// Subtotal 权威项小计：sum(quantity * unit_price)
func Subtotal(items []models.CartItem) models.Money {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return models.NewMoneyFromDecimal(total)
}

// viewDiverged 按合并键比对数量（任一侧多出或数量不等都算失真）
func viewDiverged(cached []models.MirrorItem, authoritative []models.CartItem) bool {
	if cached == nil {
		return false
	}
	expected := make(map[models.ItemKey]int, len(authoritative))
	for _, item := range authoritative {
		expected[item.MergeKey()] += item.Quantity
	}
	seen := make(map[models.ItemKey]int, len(cached))
	for _, item := range cached {
		seen[models.ItemKey{ProductID: item.ProductID, VariantID: item.VariantID}] += item.Quantity
	}
	if len(expected) != len(seen) {
		return true
	}
	for key, quantity := range expected {
		if seen[key] != quantity {
			return true
		}
	}
	return false
}

func sumQuantities(items []models.CartItem) int64 {
	var total int64
	for _, item := range items {
		total += int64(item.Quantity)
	}
	return total
}
