package service

import (
	"context"
	"time"

	"github.com/cartline-next/internal/logger"
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/repository"
)

// CartItemDetail 购物车项详情（用于响应）
type CartItemDetail struct {
	ProductID uint            `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice models.Money    `json:"unit_price"`
	LineTotal models.Money    `json:"line_total"`
	Product   *models.Product `json:"product,omitempty"`
}

// AddCartItemInput 添加购物车项输入
type AddCartItemInput struct {
	ProductID uint
	VariantID string
	Quantity  int
}

// CartService 购物车服务
type CartService struct {
	cartRepo    repository.CartRepository
	itemRepo    repository.CartItemRepository
	productRepo repository.ProductRepository
	mirror      CartMirror
	notifier    Notifier
}

// NewCartService 创建购物车服务
func NewCartService(cartRepo repository.CartRepository, itemRepo repository.CartItemRepository, productRepo repository.ProductRepository, mirror CartMirror, notifier Notifier) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		itemRepo:    itemRepo,
		productRepo: productRepo,
		mirror:      mirror,
		notifier:    notifier,
	}
}

// ListItems 获取购物车项详情
func (s *CartService) ListItems(cart *models.Cart) ([]CartItemDetail, error) {
	if cart == nil {
		return nil, ErrCartNotFound
	}
	items, err := s.itemRepo.ListByCart(cart.ID)
	if err != nil {
		return nil, err
	}
	details := make([]CartItemDetail, 0, len(items))
	for _, item := range items {
		details = append(details, CartItemDetail{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.UnitPrice.MulInt(item.Quantity),
			Product:   item.Product,
		})
	}
	return details, nil
}

// AddItem 添加购物车项：同一合并键已存在时数量累加，绝不并排存两条
func (s *CartService) AddItem(ctx context.Context, cart *models.Cart, input AddCartItemInput) error {
	if cart == nil {
		return ErrCartNotFound
	}
	if input.ProductID == 0 || input.Quantity < 1 {
		return ErrInvalidQuantity
	}
	product, err := s.productRepo.GetByID(input.ProductID)
	if err != nil {
		return err
	}
	if product == nil || !product.IsActive {
		return ErrProductNotAvailable
	}
	if input.VariantID != "" && !variantAllowed(product, input.VariantID) {
		return ErrVariantInvalid
	}

	now := time.Now()
	item := &models.CartItem{
		CartID:    cart.ID,
		ProductID: input.ProductID,
		VariantID: input.VariantID,
		Quantity:  input.Quantity,
		UnitPrice: product.PriceAmount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.itemRepo.UpsertAdd(item); err != nil {
		return err
	}
	s.afterChange(ctx, cart, now)
	return nil
}

// SetItemQuantity 覆盖购物车项数量；0 及以下视为删除
func (s *CartService) SetItemQuantity(ctx context.Context, cart *models.Cart, key models.ItemKey, quantity int) error {
	if cart == nil {
		return ErrCartNotFound
	}
	if quantity < 1 {
		return s.RemoveItem(ctx, cart, key)
	}
	existing, err := s.itemRepo.GetByKey(cart.ID, key)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrCartItemNotFound
	}
	now := time.Now()
	if err := s.itemRepo.SetQuantity(cart.ID, key, quantity, now); err != nil {
		return err
	}
	s.afterChange(ctx, cart, now)
	return nil
}

// RemoveItem 删除购物车项
func (s *CartService) RemoveItem(ctx context.Context, cart *models.Cart, key models.ItemKey) error {
	if cart == nil {
		return ErrCartNotFound
	}
	if key.ProductID == 0 {
		return ErrCartItemNotFound
	}
	if err := s.itemRepo.DeleteByKey(cart.ID, key); err != nil {
		return err
	}
	s.afterChange(ctx, cart, time.Now())
	return nil
}

// ItemCount 购物车内商品总数量
func (s *CartService) ItemCount(cartID uint) (int64, error) {
	return s.itemRepo.SumQuantityByCart(cartID)
}

// afterChange 内容变更后的副作用：刷新时间戳、重建镜像、发送变更通知。
// 副作用全部尽力而为，失败只记日志，不影响主操作结果。
func (s *CartService) afterChange(ctx context.Context, cart *models.Cart, now time.Time) {
	if err := s.cartRepo.Touch(cart.ID, now); err != nil {
		logger.Warnw("cart_touch_failed", "cart_id", cart.ID, "error", err)
	}

	items, err := s.itemRepo.ListByCart(cart.ID)
	if err != nil {
		logger.Warnw("cart_after_change_list_failed", "cart_id", cart.ID, "error", err)
		return
	}
	count := int64(0)
	for _, item := range items {
		count += int64(item.Quantity)
	}

	if s.mirror != nil {
		view := models.MirrorView{
			Token:     cart.Token,
			Items:     models.MirrorItemsFromCartItems(items),
			ItemCount: count,
		}
		if err := s.mirror.PutView(ctx, view); err != nil {
			logger.Warnw("cart_mirror_put_failed", "cart_id", cart.ID, "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyCartChanged(cart.ID, cart.Token, count); err != nil {
			logger.Warnw("cart_changed_notify_failed", "cart_id", cart.ID, "error", err)
		}
	}
}

func variantAllowed(product *models.Product, variantID string) bool {
	for _, v := range product.Variants {
		if v == variantID {
			return true
		}
	}
	return false
}
