package service

import (
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/repository"
)

// ProductService 商品目录查询
type ProductService struct {
	productRepo repository.ProductRepository
}

// NewProductService 创建商品服务
func NewProductService(productRepo repository.ProductRepository) *ProductService {
	return &ProductService{productRepo: productRepo}
}

// List 分页查询商品列表
func (s *ProductService) List(filter repository.ProductListFilter) ([]models.Product, int64, error) {
	return s.productRepo.List(filter)
}

// GetBySlug 按 slug 查询商品
func (s *ProductService) GetBySlug(slug string) (*models.Product, error) {
	product, err := s.productRepo.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotAvailable
	}
	return product, nil
}
