package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/queue"
	"github.com/cartline-next/internal/repository"

	"gorm.io/gorm"
)

// memoryMirror 进程内镜像缓存，替代测试中的 redis
type memoryMirror struct {
	mu          sync.Mutex
	views       map[string]models.MirrorView
	bearers     map[string]string
	invalidated []string
}

func newMemoryMirror() *memoryMirror {
	return &memoryMirror{
		views:   make(map[string]models.MirrorView),
		bearers: make(map[string]string),
	}
}

func (m *memoryMirror) GetView(ctx context.Context, token string) (*models.MirrorView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, ok := m.views[token]
	if !ok {
		return nil, false
	}
	return &view, true
}

func (m *memoryMirror) PutView(ctx context.Context, view models.MirrorView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[view.Token] = view
	return nil
}

func (m *memoryMirror) InvalidateView(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, token)
	m.invalidated = append(m.invalidated, token)
	return nil
}

func (m *memoryMirror) GetBearer(ctx context.Context, sessionKey string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bearers[sessionKey]
	return id, ok
}

func (m *memoryMirror) PutBearer(ctx context.Context, sessionKey, anonymousID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bearers[sessionKey] = anonymousID
	return nil
}

// recordingNotifier 记录变更通知
type recordingNotifier struct {
	cartIDs []uint
	counts  []int64
}

func (n *recordingNotifier) NotifyCartChanged(cartID uint, token string, itemCount int64) error {
	n.cartIDs = append(n.cartIDs, cartID)
	n.counts = append(n.counts, itemCount)
	return nil
}

// recordingScheduler 记录归并调度
type recordingScheduler struct {
	mu       sync.Mutex
	payloads []queue.CartConsolidatePayload
}

func (s *recordingScheduler) EnqueueConsolidation(payload queue.CartConsolidatePayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *recordingScheduler) recorded() []queue.CartConsolidatePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queue.CartConsolidatePayload(nil), s.payloads...)
}

// staticBearer 内存 cookie 通道
type staticBearer struct {
	value string
}

func (b *staticBearer) Read() (string, bool) {
	return b.value, b.value != ""
}

func (b *staticBearer) Write(anonymousID string) error {
	b.value = anonymousID
	return nil
}

// failingCartRepo 所有操作都失败的购物车仓库，用于降级路径
type failingCartRepo struct{}

var errStoreDown = errors.New("store down")

func (r *failingCartRepo) Create(cart *models.Cart) error { return errStoreDown }

func (r *failingCartRepo) GetByID(id uint) (*models.Cart, error) { return nil, errStoreDown }

func (r *failingCartRepo) GetActiveByToken(token string) (*models.Cart, error) {
	return nil, errStoreDown
}

func (r *failingCartRepo) ListActiveByOwner(filter repository.OwnerFilter) ([]models.Cart, error) {
	return nil, errStoreDown
}

func (r *failingCartRepo) UpdateStatus(id uint, status string, now time.Time) error {
	return errStoreDown
}

func (r *failingCartRepo) Touch(id uint, now time.Time) error { return errStoreDown }

func (r *failingCartRepo) WithTx(tx *gorm.DB) *repository.GormCartRepository { return nil }
