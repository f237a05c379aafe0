package service

import "errors"

// 业务错误定义
// 处理器通过 errors.Is 匹配并映射为响应码。
var (
	// 未找到类：本地通过下一级解析策略或重建恢复
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrSessionNotFound  = errors.New("checkout session not found")

	// 校验类：直接拒绝，不做静默纠正
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrInvalidOwner        = errors.New("owner identity required")
	ErrProductNotAvailable = errors.New("product not available")
	ErrVariantInvalid      = errors.New("variant not available for product")

	// 冲突类：并发解析/归并产生多个 active 购物车，重跑归并即可恢复
	ErrCartConflict = errors.New("multiple active carts for owner")

	// 降级类：持久化不可用，回退为未持久化身份
	ErrStoreDegraded = errors.New("store unavailable, degraded resolution")

	// 结算类
	ErrEmptyCart                = errors.New("cart has no items")
	ErrInvalidStep              = errors.New("unknown checkout step")
	ErrStepOrder                = errors.New("checkout step out of order")
	ErrShippingAddressRequired  = errors.New("shipping address required")
	ErrShippingOptionInvalid    = errors.New("shipping option invalid")
	ErrPaymentMethodRequired    = errors.New("payment method required")
	ErrCheckoutNotConfirmed     = errors.New("checkout session not confirmed")
	ErrDegradedCartNotPersisted = errors.New("degraded cart cannot enter checkout")
)
