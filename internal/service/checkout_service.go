package service

import (
	"context"
	"time"

	"github.com/cartline-next/internal/config"
	"github.com/cartline-next/internal/constants"
	"github.com/cartline-next/internal/logger"
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/repository"

	"github.com/shopspring/decimal"
)

// subtotalEpsilon 小计允许的漂移阈值（一分钱），超过即回写纠正
var subtotalEpsilon = decimal.NewFromFloat(0.01)

// AdvanceInput 结算步骤推进输入
type AdvanceInput struct {
	TargetStep      string
	GuestEmail      string
	ShippingAddress models.JSON
	BillingAddress  models.JSON
	ShippingOption  string
	PaymentMethod   string
}

// CheckoutService 结算会话状态机
// 步骤线性推进（information → shipping → payment → review → confirmation），
// 不允许向前跳步；每次转移用权威购物车项重算金额。
type CheckoutService struct {
	sessionRepo     repository.CheckoutSessionRepository
	cartRepo        repository.CartRepository
	reconcile       *ReconcileService
	mirror          CartMirror
	notifier        Notifier
	taxRate         decimal.Decimal
	shippingOptions map[string]models.Money
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(sessionRepo repository.CheckoutSessionRepository, cartRepo repository.CartRepository, reconcile *ReconcileService, mirror CartMirror, notifier Notifier, cfg config.CheckoutConfig) *CheckoutService {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil || taxRate.IsNegative() {
		taxRate = decimal.Zero
	}
	options := make(map[string]models.Money, len(cfg.ShippingOptions))
	for code, amount := range cfg.ShippingOptions {
		options[code] = models.NewMoneyFromString(amount)
	}
	return &CheckoutService{
		sessionRepo:     sessionRepo,
		cartRepo:        cartRepo,
		reconcile:       reconcile,
		mirror:          mirror,
		notifier:        notifier,
		taxRate:         taxRate,
		shippingOptions: options,
	}
}

// GetOrCreateSession 按 (cart_id, user_id) 获取或创建结算会话
// 幂等：已有会话按当前步骤原样返回（金额重算后），不会重复创建。
func (s *CheckoutService) GetOrCreateSession(ctx context.Context, cartID, userID uint, guestEmail string) (*models.CheckoutSession, error) {
	cart, err := s.cartRepo.GetByID(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}

	existing, err := s.sessionRepo.GetByCartAndUser(cartID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.refreshTotals(ctx, cart, existing)
	}

	now := time.Now()
	session := &models.CheckoutSession{
		CartID:      cartID,
		UserID:      userID,
		GuestEmail:  guestEmail,
		CurrentStep: constants.CheckoutStepInformation,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		// 并发 get-or-create 撞上唯一索引：读回已创建的会话
		raced, getErr := s.sessionRepo.GetByCartAndUser(cartID, userID)
		if getErr != nil || raced == nil {
			return nil, err
		}
		session = raced
	}
	return s.refreshTotals(ctx, cart, session)
}

// Advance 推进结算会话到目标步骤
// 目标必须是当前步骤（表单重提交）或紧随其后的下一步；
// 重新渲染 information 时若存储步骤已在后方，则强制回卷当前步骤
// 而不向前重定向，避免来回振荡，已录入的地址/运费数据保持不动。
func (s *CheckoutService) Advance(ctx context.Context, sessionID uint, input AdvanceInput) (*models.CheckoutSession, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	targetIdx, ok := stepIndex(input.TargetStep)
	if !ok {
		return nil, ErrInvalidStep
	}
	currentIdx, ok := stepIndex(session.CurrentStep)
	if !ok {
		currentIdx = 0
	}

	cart, err := s.cartRepo.GetByID(session.CartID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	s.applyPayload(session, input, updates)

	// 回卷规则：防止 information 页与后续步骤之间的重定向循环
	if input.TargetStep == constants.CheckoutStepInformation && currentIdx > 0 {
		logger.Infow("checkout_step_rewound",
			"session_id", session.ID,
			"from", session.CurrentStep,
		)
		session.CurrentStep = constants.CheckoutStepInformation
		updates["current_step"] = session.CurrentStep
		return s.persistAndRefresh(ctx, cart, session, updates)
	}

	if targetIdx != currentIdx && targetIdx != currentIdx+1 {
		return nil, ErrStepOrder
	}

	if targetIdx > 0 {
		if cart == nil {
			return nil, ErrEmptyCart
		}
		count, err := s.reconcile.itemRepo.CountByCart(cart.ID)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrEmptyCart
		}
	}

	if err := s.checkPrerequisites(session, input.TargetStep); err != nil {
		return nil, err
	}

	session.CurrentStep = input.TargetStep
	updates["current_step"] = session.CurrentStep
	return s.persistAndRefresh(ctx, cart, session, updates)
}

// Complete 订单落成交接：会话到达 confirmation 后，把购物车翻为 completed。
// 订单创建本身由外部协作方负责，本服务的职责到翻状态为止。
func (s *CheckoutService) Complete(ctx context.Context, sessionID uint) (*models.CheckoutSession, error) {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.CurrentStep != constants.CheckoutStepConfirmation {
		return nil, ErrCheckoutNotConfirmed
	}

	cart, err := s.cartRepo.GetByID(session.CartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}

	now := time.Now()
	if err := s.cartRepo.UpdateStatus(cart.ID, constants.CartStatusCompleted, now); err != nil {
		return nil, err
	}
	if s.mirror != nil {
		if err := s.mirror.InvalidateView(ctx, cart.Token); err != nil {
			logger.Warnw("checkout_mirror_invalidate_failed", "cart_id", cart.ID, "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyCartChanged(cart.ID, cart.Token, 0); err != nil {
			logger.Warnw("cart_changed_notify_failed", "cart_id", cart.ID, "error", err)
		}
	}
	return session, nil
}

// ShippingOptionCost 查询运费选项金额
func (s *CheckoutService) ShippingOptionCost(code string) (models.Money, bool) {
	cost, ok := s.shippingOptions[code]
	return cost, ok
}

// applyPayload 将步骤载荷写入会话（只覆盖提供的字段）
func (s *CheckoutService) applyPayload(session *models.CheckoutSession, input AdvanceInput, updates map[string]interface{}) {
	if input.GuestEmail != "" {
		session.GuestEmail = input.GuestEmail
		updates["guest_email"] = input.GuestEmail
	}
	if input.ShippingAddress != nil {
		session.ShippingAddress = input.ShippingAddress
		updates["shipping_address"] = input.ShippingAddress
	}
	if input.BillingAddress != nil {
		session.BillingAddress = input.BillingAddress
		updates["billing_address"] = input.BillingAddress
	}
	if input.ShippingOption != "" {
		if cost, ok := s.shippingOptions[input.ShippingOption]; ok {
			session.ShippingOption = input.ShippingOption
			session.ShippingCost = cost
			updates["shipping_option"] = input.ShippingOption
			updates["shipping_cost"] = cost
		}
	}
	if input.PaymentMethod != "" {
		session.PaymentMethod = input.PaymentMethod
		updates["payment_method"] = input.PaymentMethod
	}
}

// checkPrerequisites 目标步骤的前置数据校验
func (s *CheckoutService) checkPrerequisites(session *models.CheckoutSession, targetStep string) error {
	switch targetStep {
	case constants.CheckoutStepShipping:
		if len(session.ShippingAddress) == 0 {
			return ErrShippingAddressRequired
		}
	case constants.CheckoutStepPayment:
		if len(session.ShippingAddress) == 0 {
			return ErrShippingAddressRequired
		}
		if session.ShippingOption == "" {
			return ErrShippingOptionInvalid
		}
	case constants.CheckoutStepReview, constants.CheckoutStepConfirmation:
		if len(session.ShippingAddress) == 0 {
			return ErrShippingAddressRequired
		}
		if session.ShippingOption == "" {
			return ErrShippingOptionInvalid
		}
		if session.PaymentMethod == "" {
			return ErrPaymentMethodRequired
		}
	}
	return nil
}

// persistAndRefresh 落库步骤变更后重算金额
func (s *CheckoutService) persistAndRefresh(ctx context.Context, cart *models.Cart, session *models.CheckoutSession, updates map[string]interface{}) (*models.CheckoutSession, error) {
	updates["updated_at"] = time.Now()
	if err := s.sessionRepo.Updates(session.ID, updates); err != nil {
		return nil, err
	}
	if cart == nil {
		return session, nil
	}
	return s.refreshTotals(ctx, cart, session)
}

// refreshTotals 用权威购物车项重算 subtotal/tax/total
// 存储的小计漂移超过阈值时回写纠正；任何可见边界处都满足
// total = subtotal + shipping_cost + tax。
func (s *CheckoutService) refreshTotals(ctx context.Context, cart *models.Cart, session *models.CheckoutSession) (*models.CheckoutSession, error) {
	items, _, err := s.reconcile.ReconcileCart(ctx, cart)
	if err != nil {
		return nil, err
	}

	subtotal := Subtotal(items)
	tax := models.NewMoneyFromDecimal(subtotal.Decimal.Mul(s.taxRate))
	total := subtotal.Add(session.ShippingCost).Add(tax)

	drift := session.Subtotal.Decimal.Sub(subtotal.Decimal).Abs()
	if drift.GreaterThan(subtotalEpsilon) {
		logger.Infow("checkout_subtotal_corrected",
			"session_id", session.ID,
			"stored", session.Subtotal.String(),
			"computed", subtotal.String(),
		)
	}

	session.Subtotal = subtotal
	session.Tax = tax
	session.Total = total
	err = s.sessionRepo.Updates(session.ID, map[string]interface{}{
		"subtotal":   subtotal,
		"tax":        tax,
		"total":      total,
		"updated_at": time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// stepIndex 步骤在线性顺序中的下标
func stepIndex(step string) (int, bool) {
	for i, name := range constants.CheckoutStepOrder {
		if name == step {
			return i, true
		}
	}
	return 0, false
}
