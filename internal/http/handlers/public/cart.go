package public

import (
	"strconv"

	"github.com/cartline-next/internal/http/response"
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CartItemRequest 购物车项请求
type CartItemRequest struct {
	ProductID uint   `json:"product_id" binding:"required"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// CartProduct 购物车商品摘要
type CartProduct struct {
	ID            uint               `json:"id"`
	Slug          string             `json:"slug"`
	Title         models.JSON        `json:"title"`
	PriceAmount   models.Money       `json:"price_amount"`
	PriceCurrency string             `json:"price_currency"`
	Variants      models.StringArray `json:"variants"`
	IsActive      bool               `json:"is_active"`
}

// CartItemResponse 购物车项响应
type CartItemResponse struct {
	ProductID uint         `json:"product_id"`
	VariantID string       `json:"variant_id"`
	Quantity  int          `json:"quantity"`
	UnitPrice models.Money `json:"unit_price"`
	LineTotal models.Money `json:"line_total"`
	Product   *CartProduct `json:"product,omitempty"`
}

// CartResponse 购物车响应
type CartResponse struct {
	Token     string             `json:"token"`
	Source    string             `json:"source"`
	Degraded  bool               `json:"degraded"`
	Items     []CartItemResponse `json:"items"`
	ItemCount int64              `json:"item_count"`
	Subtotal  models.Money       `json:"subtotal"`
}

// GetCart 获取当前购物车
// 身份解析后用权威存储装载明细，顺带校验并修复缓存镜像。
func (h *Handler) GetCart(c *gin.Context) {
	res, err := h.resolveCart(c)
	if err != nil {
		respondError(c, response.CodeInternal, "error.cart_resolve_failed", err)
		return
	}
	if res.Degraded || res.Cart == nil {
		response.Success(c, CartResponse{
			Token:    res.Token,
			Source:   res.Source,
			Degraded: res.Degraded,
			Items:    []CartItemResponse{},
		})
		return
	}

	items, _, err := h.Reconcile.ReconcileCart(c.Request.Context(), res.Cart)
	if err != nil {
		respondError(c, response.CodeInternal, "error.cart_fetch_failed", err)
		return
	}
	response.Success(c, buildCartResponse(res, items))
}

// UpsertCartItem 添加购物车项
// 数量在已有行上累加；数量小于等于 0 视为移除。
func (h *Handler) UpsertCartItem(c *gin.Context) {
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	res, err := h.resolveCart(c)
	if err != nil {
		respondError(c, response.CodeInternal, "error.cart_resolve_failed", err)
		return
	}
	if res.Degraded || res.Cart == nil {
		respondCartWriteError(c, service.ErrDegradedCartNotPersisted)
		return
	}

	key := models.ItemKey{ProductID: req.ProductID, VariantID: req.VariantID}
	if req.Quantity <= 0 {
		if err := h.CartService.RemoveItem(c.Request.Context(), res.Cart, key); err != nil {
			respondCartWriteError(c, err)
			return
		}
		response.Success(c, gin.H{"updated": true, "token": res.Token})
		return
	}

	err = h.CartService.AddItem(c.Request.Context(), res.Cart, service.AddCartItemInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondCartWriteError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": true, "token": res.Token})
}

// UpdateCartItem 覆盖购物车项数量
func (h *Handler) UpdateCartItem(c *gin.Context) {
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	res, err := h.resolveCart(c)
	if err != nil {
		respondError(c, response.CodeInternal, "error.cart_resolve_failed", err)
		return
	}
	if res.Degraded || res.Cart == nil {
		respondCartWriteError(c, service.ErrDegradedCartNotPersisted)
		return
	}

	key := models.ItemKey{ProductID: req.ProductID, VariantID: req.VariantID}
	if err := h.CartService.SetItemQuantity(c.Request.Context(), res.Cart, key, req.Quantity); err != nil {
		respondCartWriteError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": true, "token": res.Token})
}

// DeleteCartItem 删除购物车项
func (h *Handler) DeleteCartItem(c *gin.Context) {
	rawID := c.Param("product_id")
	productID, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || productID == 0 {
		respondError(c, response.CodeBadRequest, "error.cart_item_invalid", nil)
		return
	}

	res, err := h.resolveCart(c)
	if err != nil {
		respondError(c, response.CodeInternal, "error.cart_resolve_failed", err)
		return
	}
	if res.Degraded || res.Cart == nil {
		respondCartWriteError(c, service.ErrDegradedCartNotPersisted)
		return
	}

	key := models.ItemKey{ProductID: uint(productID), VariantID: c.Query("variant_id")}
	if err := h.CartService.RemoveItem(c.Request.Context(), res.Cart, key); err != nil {
		respondCartWriteError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true, "token": res.Token})
}

// ConsolidateCarts 手动触发同一归属下重复购物车的合并
func (h *Handler) ConsolidateCarts(c *gin.Context) {
	res, err := h.resolveCart(c)
	if err != nil {
		respondError(c, response.CodeInternal, "error.cart_resolve_failed", err)
		return
	}
	if res.Degraded {
		respondCartWriteError(c, service.ErrDegradedCartNotPersisted)
		return
	}

	owner := service.OwnerKey{
		UserID:      optionalUserID(c),
		AnonymousID: res.AnonymousID,
	}
	if err := h.Consolidation.Consolidate(owner); err != nil {
		respondCartWriteError(c, err)
		return
	}
	response.Success(c, gin.H{"consolidated": true, "token": res.Token})
}

func buildCartResponse(res *service.Resolution, items []models.CartItem) CartResponse {
	respItems := make([]CartItemResponse, 0, len(items))
	count := int64(0)
	subtotal := models.Money{}
	for _, item := range items {
		lineTotal := item.UnitPrice.MulInt(item.Quantity)
		respItem := CartItemResponse{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: lineTotal,
		}
		if item.Product != nil {
			respItem.Product = &CartProduct{
				ID:            item.Product.ID,
				Slug:          item.Product.Slug,
				Title:         item.Product.TitleJSON,
				PriceAmount:   item.Product.PriceAmount,
				PriceCurrency: item.Product.PriceCurrency,
				Variants:      item.Product.Variants,
				IsActive:      item.Product.IsActive,
			}
		}
		respItems = append(respItems, respItem)
		count += int64(item.Quantity)
		subtotal = subtotal.Add(lineTotal)
	}
	return CartResponse{
		Token:     res.Token,
		Source:    res.Source,
		Degraded:  res.Degraded,
		Items:     respItems,
		ItemCount: count,
		Subtotal:  subtotal,
	}
}
