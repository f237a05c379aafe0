package repository

import (
	"errors"
	"time"

	"github.com/cartline-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartItemRepository 购物车项数据访问接口
type CartItemRepository interface {
	ListByCart(cartID uint) ([]models.CartItem, error)
	GetByKey(cartID uint, key models.ItemKey) (*models.CartItem, error)
	UpsertAdd(item *models.CartItem) error
	SetQuantity(cartID uint, key models.ItemKey, quantity int, now time.Time) error
	DeleteByKey(cartID uint, key models.ItemKey) error
	DeleteByID(id uint) error
	CountByCart(cartID uint) (int64, error)
	SumQuantityByCart(cartID uint) (int64, error)
	WithTx(tx *gorm.DB) *GormCartItemRepository
}

// GormCartItemRepository GORM 实现
type GormCartItemRepository struct {
	db *gorm.DB
}

// NewCartItemRepository 创建购物车项仓库
func NewCartItemRepository(db *gorm.DB) *GormCartItemRepository {
	return &GormCartItemRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartItemRepository) WithTx(tx *gorm.DB) *GormCartItemRepository {
	if tx == nil {
		return r
	}
	return &GormCartItemRepository{db: tx}
}

// ListByCart 获取购物车项（含商品，按更新时间倒序）
func (r *GormCartItemRepository) ListByCart(cartID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.Preload("Product").
		Where("cart_id = ?", cartID).
		Order("updated_at desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetByKey 按合并键获取购物车项
func (r *GormCartItemRepository) GetByKey(cartID uint, key models.ItemKey) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.Where("cart_id = ? AND product_id = ? AND variant_id = ?",
		cartID, key.ProductID, key.VariantID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpsertAdd 按合并键写入购物车项：已存在则数量累加，否则新建。
// 累加在数据库侧借合并键唯一索引的冲突子句原子完成，
// 并发加购不丢增量，也不会把唯一约束错误抛给调用方。
func (r *GormCartItemRepository) UpsertAdd(item *models.CartItem) error {
	if item == nil {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}, {Name: "variant_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", item.Quantity),
			"updated_at": item.UpdatedAt,
		}),
	}).Create(item).Error
}

// SetQuantity 按合并键覆盖数量
func (r *GormCartItemRepository) SetQuantity(cartID uint, key models.ItemKey, quantity int, now time.Time) error {
	return r.db.Model(&models.CartItem{}).
		Where("cart_id = ? AND product_id = ? AND variant_id = ?", cartID, key.ProductID, key.VariantID).
		Updates(map[string]interface{}{
			"quantity":   quantity,
			"updated_at": now,
		}).Error
}

// DeleteByKey 按合并键删除购物车项
// 物理删除：合并键上有唯一索引，软删除残留会挡住同键重新加入。
func (r *GormCartItemRepository) DeleteByKey(cartID uint, key models.ItemKey) error {
	return r.db.Unscoped().Where("cart_id = ? AND product_id = ? AND variant_id = ?",
		cartID, key.ProductID, key.VariantID).Delete(&models.CartItem{}).Error
}

// DeleteByID 按 ID 删除购物车项（归并迁移后清理来源项）
func (r *GormCartItemRepository) DeleteByID(id uint) error {
	return r.db.Unscoped().Delete(&models.CartItem{}, id).Error
}

// CountByCart 统计购物车项条数
func (r *GormCartItemRepository) CountByCart(cartID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.CartItem{}).Where("cart_id = ?", cartID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumQuantityByCart 统计购物车内商品总数量
func (r *GormCartItemRepository) SumQuantityByCart(cartID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.CartItem{}).
		Where("cart_id = ?", cartID).
		Select("COALESCE(SUM(quantity), 0)").Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
