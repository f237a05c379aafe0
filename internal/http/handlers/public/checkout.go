package public

import (
	"github.com/cartline-next/internal/http/response"
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutAdvanceRequest 结算步骤推进请求
type CheckoutAdvanceRequest struct {
	TargetStep      string      `json:"target_step" binding:"required"`
	GuestEmail      string      `json:"guest_email"`
	ShippingAddress models.JSON `json:"shipping_address"`
	BillingAddress  models.JSON `json:"billing_address"`
	ShippingOption  string      `json:"shipping_option"`
	PaymentMethod   string      `json:"payment_method"`
}

// CheckoutSessionResponse 结算会话响应
type CheckoutSessionResponse struct {
	ID              uint         `json:"id"`
	CartID          uint         `json:"cart_id"`
	CurrentStep     string       `json:"current_step"`
	GuestEmail      string       `json:"guest_email"`
	ShippingAddress models.JSON  `json:"shipping_address"`
	BillingAddress  models.JSON  `json:"billing_address"`
	ShippingOption  string       `json:"shipping_option"`
	PaymentMethod   string       `json:"payment_method"`
	Subtotal        models.Money `json:"subtotal"`
	ShippingCost    models.Money `json:"shipping_cost"`
	Tax             models.Money `json:"tax"`
	Total           models.Money `json:"total"`
}

// GetCheckoutSession 获取（或创建）当前购物车的结算会话
func (h *Handler) GetCheckoutSession(c *gin.Context) {
	session, ok := h.currentSession(c, "")
	if !ok {
		return
	}
	response.Success(c, buildSessionResponse(session))
}

// AdvanceCheckout 推进结算会话步骤
func (h *Handler) AdvanceCheckout(c *gin.Context) {
	var req CheckoutAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	session, ok := h.currentSession(c, req.GuestEmail)
	if !ok {
		return
	}

	updated, err := h.Checkout.Advance(c.Request.Context(), session.ID, service.AdvanceInput{
		TargetStep:      req.TargetStep,
		GuestEmail:      req.GuestEmail,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		ShippingOption:  req.ShippingOption,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, buildSessionResponse(updated))
}

// CompleteCheckout 完成结算，购物车翻为 completed
func (h *Handler) CompleteCheckout(c *gin.Context) {
	session, ok := h.currentSession(c, "")
	if !ok {
		return
	}

	completed, err := h.Checkout.Complete(c.Request.Context(), session.ID)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, gin.H{
		"completed": true,
		"session":   buildSessionResponse(completed),
	})
}

// currentSession 解析当前购物车并取回其结算会话
func (h *Handler) currentSession(c *gin.Context, guestEmail string) (*models.CheckoutSession, bool) {
	res, err := h.resolveCart(c)
	if err != nil {
		respondError(c, response.CodeInternal, "error.cart_resolve_failed", err)
		return nil, false
	}
	if res.Degraded || res.Cart == nil {
		respondCheckoutError(c, service.ErrDegradedCartNotPersisted)
		return nil, false
	}

	session, err := h.Checkout.GetOrCreateSession(c.Request.Context(), res.Cart.ID, optionalUserID(c), guestEmail)
	if err != nil {
		respondCheckoutError(c, err)
		return nil, false
	}
	return session, true
}

func buildSessionResponse(session *models.CheckoutSession) CheckoutSessionResponse {
	return CheckoutSessionResponse{
		ID:              session.ID,
		CartID:          session.CartID,
		CurrentStep:     session.CurrentStep,
		GuestEmail:      session.GuestEmail,
		ShippingAddress: session.ShippingAddress,
		BillingAddress:  session.BillingAddress,
		ShippingOption:  session.ShippingOption,
		PaymentMethod:   session.PaymentMethod,
		Subtotal:        session.Subtotal,
		ShippingCost:    session.ShippingCost,
		Tax:             session.Tax,
		Total:           session.Total,
	}
}
