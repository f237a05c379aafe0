package repository

import (
	"errors"
	"time"

	"github.com/cartline-next/internal/models"

	"gorm.io/gorm"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	Create(cart *models.Cart) error
	GetByID(id uint) (*models.Cart, error)
	GetActiveByToken(token string) (*models.Cart, error)
	ListActiveByOwner(filter OwnerFilter) ([]models.Cart, error)
	UpdateStatus(id uint, status string, now time.Time) error
	Touch(id uint, now time.Time) error
	WithTx(tx *gorm.DB) *GormCartRepository
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) *GormCartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

// Create 创建购物车
func (r *GormCartRepository) Create(cart *models.Cart) error {
	if cart == nil {
		return nil
	}
	return r.db.Create(cart).Error
}

// GetByID 根据 ID 获取购物车（含购物车项）
func (r *GormCartRepository) GetByID(id uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.Preload("Items").First(&cart, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetActiveByToken 根据对外标识获取 active 购物车
func (r *GormCartRepository) GetActiveByToken(token string) (*models.Cart, error) {
	if token == "" {
		return nil, nil
	}
	var cart models.Cart
	err := r.db.Preload("Items").
		Where("token = ? AND status = ?", token, "active").
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// ListActiveByOwner 列出归属身份下所有 active 购物车（按更新时间倒序）
func (r *GormCartRepository) ListActiveByOwner(filter OwnerFilter) ([]models.Cart, error) {
	if filter.IsZero() {
		return nil, nil
	}
	query := r.db.Preload("Items").Where("status = ?", "active")
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	} else {
		query = query.Where("anonymous_id = ?", filter.AnonymousID)
	}
	var carts []models.Cart
	if err := query.Order("updated_at desc, created_at asc").Find(&carts).Error; err != nil {
		return nil, err
	}
	return carts, nil
}

// UpdateStatus 更新购物车状态
func (r *GormCartRepository) UpdateStatus(id uint, status string, now time.Time) error {
	return r.db.Model(&models.Cart{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}).Error
}

// Touch 刷新购物车更新时间
func (r *GormCartRepository) Touch(id uint, now time.Time) error {
	return r.db.Model(&models.Cart{}).Where("id = ?", id).
		Update("updated_at", now).Error
}
