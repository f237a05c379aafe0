package constants

// 购物车状态常量
const (
	CartStatusActive       = "active"
	CartStatusConsolidated = "consolidated"
	CartStatusMerged       = "merged"
	CartStatusCompleted    = "completed"
)

// 结算步骤常量（线性推进）
const (
	CheckoutStepInformation  = "information"
	CheckoutStepShipping     = "shipping"
	CheckoutStepPayment      = "payment"
	CheckoutStepReview       = "review"
	CheckoutStepConfirmation = "confirmation"
)

// CheckoutStepOrder 结算步骤顺序
var CheckoutStepOrder = []string{
	CheckoutStepInformation,
	CheckoutStepShipping,
	CheckoutStepPayment,
	CheckoutStepReview,
	CheckoutStepConfirmation,
}

// 身份信号来源常量
const (
	SignalSourceOverride = "override"
	SignalSourceContext  = "context"
	SignalSourceCookie   = "cookie"
	SignalSourceMirror   = "mirror"
	SignalSourceUser     = "user"
	SignalSourceCreate   = "create"
	SignalSourceFallback = "fallback"
)

// 队列常量
const (
	QueueDefault = "default"

	TaskCartChanged     = "cart:changed"
	TaskCartConsolidate = "cart:consolidate"
)
