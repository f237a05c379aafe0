package repository

import (
	"errors"

	"github.com/cartline-next/internal/models"

	"gorm.io/gorm"
)

// CheckoutSessionRepository 结算会话数据访问接口
type CheckoutSessionRepository interface {
	Create(session *models.CheckoutSession) error
	GetByID(id uint) (*models.CheckoutSession, error)
	GetByCartAndUser(cartID, userID uint) (*models.CheckoutSession, error)
	Updates(id uint, updates map[string]interface{}) error
	WithTx(tx *gorm.DB) *GormCheckoutSessionRepository
}

// GormCheckoutSessionRepository GORM 实现
type GormCheckoutSessionRepository struct {
	db *gorm.DB
}

// NewCheckoutSessionRepository 创建结算会话仓库
func NewCheckoutSessionRepository(db *gorm.DB) *GormCheckoutSessionRepository {
	return &GormCheckoutSessionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCheckoutSessionRepository) WithTx(tx *gorm.DB) *GormCheckoutSessionRepository {
	if tx == nil {
		return r
	}
	return &GormCheckoutSessionRepository{db: tx}
}

// Create 创建结算会话
func (r *GormCheckoutSessionRepository) Create(session *models.CheckoutSession) error {
	if session == nil {
		return nil
	}
	return r.db.Create(session).Error
}

// GetByID 根据 ID 获取结算会话
func (r *GormCheckoutSessionRepository) GetByID(id uint) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetByCartAndUser 按 (cart_id, user_id) 获取结算会话
func (r *GormCheckoutSessionRepository) GetByCartAndUser(cartID, userID uint) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.Where("cart_id = ? AND user_id = ?", cartID, userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Updates 更新结算会话字段
func (r *GormCheckoutSessionRepository) Updates(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.CheckoutSession{}).Where("id = ?", id).Updates(updates).Error
}
