package public

import (
	"errors"
	"strconv"

	"github.com/cartline-next/internal/http/response"
	"github.com/cartline-next/internal/repository"
	"github.com/cartline-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListProducts 商品列表
func (h *Handler) ListProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	products, total, err := h.Products.List(repository.ProductListFilter{
		Page:       page,
		PageSize:   pageSize,
		Search:     c.Query("search"),
		OnlyActive: true,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.product_list_failed", err)
		return
	}

	totalPage := (total + int64(pageSize) - 1) / int64(pageSize)
	response.SuccessWithPage(c, gin.H{"products": products}, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// GetProduct 商品详情
func (h *Handler) GetProduct(c *gin.Context) {
	slug := c.Param("slug")
	if slug == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	product, err := h.Products.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, service.ErrProductNotAvailable) {
			respondError(c, response.CodeNotFound, "error.product_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.product_fetch_failed", err)
		return
	}
	response.Success(c, gin.H{"product": product})
}
