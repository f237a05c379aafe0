package models

import (
	"time"

	"gorm.io/gorm"
)

// CartItem 购物车项
// 同一购物车内 (product_id, variant_id) 唯一，重复添加必须合并数量。
type CartItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`                                                      // 主键
	CartID    uint           `gorm:"not null;uniqueIndex:idx_cart_product_variant" json:"cart_id"`              // 购物车ID
	ProductID uint           `gorm:"not null;uniqueIndex:idx_cart_product_variant" json:"product_id"`           // 商品ID
	VariantID string         `gorm:"type:varchar(64);not null;default:'';uniqueIndex:idx_cart_product_variant" json:"variant_id,omitempty"` // 规格ID（无规格为空串）
	Quantity  int            `gorm:"not null" json:"quantity"`                                                  // 数量（>= 1）
	UnitPrice Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`                   // 加入时单价
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                                                   // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                                                   // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                                            // 软删除时间

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // 关联商品
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}

// MergeKey 返回合并键 (product_id, variant_id)
func (i CartItem) MergeKey() ItemKey {
	return ItemKey{ProductID: i.ProductID, VariantID: i.VariantID}
}

// ItemKey 购物车项合并键
type ItemKey struct {
	ProductID uint
	VariantID string
}
