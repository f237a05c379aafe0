package models

import (
	"time"

	"gorm.io/gorm"
)

// Cart 购物车表
// 同一归属身份在归并完成后最多只允许存在一个 active 购物车；
// 并发窗口内允许短暂多个，由归并引擎收敛。
type Cart struct {
	ID          uint           `gorm:"primarykey" json:"id"`                               // 主键
	Token       string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"` // 对外购物车标识（uuid）
	UserID      uint           `gorm:"index:idx_cart_owner" json:"user_id,omitempty"`      // 用户ID（匿名购物车为 0）
	AnonymousID string         `gorm:"type:varchar(64);index:idx_cart_owner" json:"anonymous_id,omitempty"` // 匿名持有者标识（uuid，用户购物车为空）
	Status      string         `gorm:"type:varchar(20);index;not null;default:'active'" json:"status"`      // 状态（active/consolidated/merged/completed）
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                            // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                     // 软删除时间

	Items []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"` // 购物车项
}

// TableName 指定表名
func (Cart) TableName() string {
	return "carts"
}

// IsAnonymous 是否匿名购物车
func (c *Cart) IsAnonymous() bool {
	return c != nil && c.UserID == 0
}
