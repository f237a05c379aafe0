package public

import (
	"errors"

	"github.com/cartline-next/internal/http/response"
	"github.com/cartline-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

var cartWriteErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidQuantity, code: response.CodeBadRequest, key: "error.cart_quantity_invalid"},
	{target: service.ErrProductNotAvailable, code: response.CodeBadRequest, key: "error.product_not_available"},
	{target: service.ErrVariantInvalid, code: response.CodeBadRequest, key: "error.variant_invalid"},
	{target: service.ErrCartItemNotFound, code: response.CodeNotFound, key: "error.cart_item_not_found"},
	{target: service.ErrCartNotFound, code: response.CodeNotFound, key: "error.cart_not_found"},
	{target: service.ErrDegradedCartNotPersisted, code: response.CodeDegraded, key: "error.cart_degraded"},
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrCartNotFound, code: response.CodeNotFound, key: "error.cart_not_found"},
	{target: service.ErrSessionNotFound, code: response.CodeNotFound, key: "error.checkout_session_not_found"},
	{target: service.ErrEmptyCart, code: response.CodeBadRequest, key: "error.cart_empty"},
	{target: service.ErrInvalidStep, code: response.CodeBadRequest, key: "error.checkout_step_invalid"},
	{target: service.ErrStepOrder, code: response.CodeConflict, key: "error.checkout_step_order"},
	{target: service.ErrShippingAddressRequired, code: response.CodeBadRequest, key: "error.shipping_address_required"},
	{target: service.ErrShippingOptionInvalid, code: response.CodeBadRequest, key: "error.shipping_option_invalid"},
	{target: service.ErrPaymentMethodRequired, code: response.CodeBadRequest, key: "error.payment_method_required"},
	{target: service.ErrCheckoutNotConfirmed, code: response.CodeConflict, key: "error.checkout_not_confirmed"},
	{target: service.ErrDegradedCartNotPersisted, code: response.CodeDegraded, key: "error.cart_degraded"},
}

func respondCartWriteError(c *gin.Context, err error) {
	respondWithMappedError(c, err, cartWriteErrorRules, response.CodeInternal, "error.cart_update_failed")
}

func respondCheckoutError(c *gin.Context, err error) {
	respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "error.checkout_failed")
}
