package models

import (
	"time"

	"gorm.io/gorm"
)

// CheckoutSession 结算会话表
// 每个 (cart_id, user_id) 组合最多一条会话（get-or-create）；
// 任一可见边界处满足 total = subtotal + shipping_cost + tax。
type CheckoutSession struct {
	ID              uint           `gorm:"primarykey" json:"id"`                                       // 主键
	CartID          uint           `gorm:"not null;uniqueIndex:idx_session_cart_user" json:"cart_id"`  // 购物车ID
	UserID          uint           `gorm:"not null;default:0;uniqueIndex:idx_session_cart_user" json:"user_id,omitempty"` // 用户ID（游客会话为 0）
	GuestEmail      string         `gorm:"type:varchar(200);index" json:"guest_email,omitempty"`       // 游客邮箱
	ShippingAddress JSON           `gorm:"type:json" json:"shipping_address,omitempty"`                // 收货地址
	BillingAddress  JSON           `gorm:"type:json" json:"billing_address,omitempty"`                 // 账单地址
	ShippingOption  string         `gorm:"type:varchar(50)" json:"shipping_option,omitempty"`          // 运费选项
	PaymentMethod   string         `gorm:"type:varchar(50)" json:"payment_method,omitempty"`           // 支付方式（仅记录选择）
	CurrentStep     string         `gorm:"type:varchar(20);not null;default:'information'" json:"current_step"` // 当前步骤
	Subtotal        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`      // 商品小计
	ShippingCost    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_cost"` // 运费
	Tax             Money          `gorm:"type:decimal(20,2);not null;default:0" json:"tax"`           // 税额
	Total           Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total"`         // 合计
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt       time.Time      `gorm:"index" json:"updated_at"`                                    // 更新时间
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                                             // 软删除时间
}

// TableName 指定表名
func (CheckoutSession) TableName() string {
	return "checkout_sessions"
}

// IsTerminal 会话是否已到达确认步骤
func (s *CheckoutSession) IsTerminal() bool {
	return s != nil && s.CurrentStep == "confirmation"
}
