package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cartline-next/internal/constants"
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupConsolidationServiceTest(t *testing.T) (*ConsolidationService, *gorm.DB, *memoryMirror, *recordingNotifier) {
	t.Helper()
	dsn := fmt.Sprintf("file:consolidation_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.CheckoutSession{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	mirror := newMemoryMirror()
	notifier := &recordingNotifier{}
	cartRepo := repository.NewCartRepository(db)
	itemRepo := repository.NewCartItemRepository(db)
	return NewConsolidationService(cartRepo, itemRepo, mirror, notifier), db, mirror, notifier
}

func activeCartCount(t *testing.T, db *gorm.DB, anonymousID string) int64 {
	t.Helper()
	var count int64
	err := db.Model(&models.Cart{}).
		Where("anonymous_id = ? AND status = ?", anonymousID, constants.CartStatusActive).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count carts failed: %v", err)
	}
	return count
}

func itemQuantity(t *testing.T, db *gorm.DB, cartID, productID uint, variantID string) int {
	t.Helper()
	var item models.CartItem
	err := db.Where("cart_id = ? AND product_id = ? AND variant_id = ?", cartID, productID, variantID).
		First(&item).Error
	if err != nil {
		t.Fatalf("load item failed: %v", err)
	}
	return item.Quantity
}

func TestConsolidateMergesDuplicateCarts(t *testing.T) {
	svc, db, _, _ := setupConsolidationServiceTest(t)
	older := createActiveCart(t, db, 0, "anon-dup")
	newer := createActiveCart(t, db, 0, "anon-dup")
	createCartItem(t, db, older.ID, 1, "", 3, "10.00")
	createCartItem(t, db, newer.ID, 1, "", 1, "10.00")
	createCartItem(t, db, newer.ID, 3, "red", 3, "5.00")

	owner := OwnerKey{AnonymousID: "anon-dup"}
	if err := svc.Consolidate(owner); err != nil {
		t.Fatalf("consolidate failed: %v", err)
	}

	if got := activeCartCount(t, db, "anon-dup"); got != 1 {
		t.Fatalf("expected 1 active cart, got %d", got)
	}
	// 项数多的购物车被选为主，来源项逐键累加
	if got := itemQuantity(t, db, newer.ID, 1, ""); got != 4 {
		t.Fatalf("expected quantity 4 for product 1, got %d", got)
	}
	if got := itemQuantity(t, db, newer.ID, 3, "red"); got != 3 {
		t.Fatalf("expected quantity 3 for product 3, got %d", got)
	}

	var source models.Cart
	if err := db.First(&source, older.ID).Error; err != nil {
		t.Fatalf("load source cart failed: %v", err)
	}
	if source.Status != constants.CartStatusConsolidated {
		t.Fatalf("expected source cart consolidated, got %s", source.Status)
	}
	var leftovers int64
	if err := db.Model(&models.CartItem{}).Where("cart_id = ?", older.ID).Count(&leftovers).Error; err != nil {
		t.Fatalf("count leftovers failed: %v", err)
	}
	if leftovers != 0 {
		t.Fatalf("expected source items migrated away, got %d", leftovers)
	}
}

func TestConsolidateIdempotentRerun(t *testing.T) {
	svc, db, _, _ := setupConsolidationServiceTest(t)
	a := createActiveCart(t, db, 0, "anon-rerun")
	b := createActiveCart(t, db, 0, "anon-rerun")
	createCartItem(t, db, a.ID, 1, "", 3, "10.00")
	createCartItem(t, db, b.ID, 1, "", 1, "10.00")
	createCartItem(t, db, b.ID, 3, "", 3, "5.00")

	owner := OwnerKey{AnonymousID: "anon-rerun"}
	if err := svc.Consolidate(owner); err != nil {
		t.Fatalf("first consolidate failed: %v", err)
	}
	if err := svc.Consolidate(owner); err != nil {
		t.Fatalf("rerun consolidate failed: %v", err)
	}

	// 重跑不得重复累计数量
	if got := itemQuantity(t, db, b.ID, 1, ""); got != 4 {
		t.Fatalf("expected quantity 4 after rerun, got %d", got)
	}
	if got := itemQuantity(t, db, b.ID, 3, ""); got != 3 {
		t.Fatalf("expected quantity 3 after rerun, got %d", got)
	}
	if got := activeCartCount(t, db, "anon-rerun"); got != 1 {
		t.Fatalf("expected 1 active cart after rerun, got %d", got)
	}
}

func TestConsolidateRetryAfterPartialFailure(t *testing.T) {
	svc, db, _, _ := setupConsolidationServiceTest(t)
	primary := createActiveCart(t, db, 0, "anon-retry")
	source := createActiveCart(t, db, 0, "anon-retry")
	createCartItem(t, db, primary.ID, 1, "", 3, "10.00")
	createCartItem(t, db, primary.ID, 2, "", 1, "4.00")
	createCartItem(t, db, source.ID, 1, "", 1, "10.00")

	// 第一次删除来源项时失败，模拟迁移中途崩溃
	interrupted := errors.New("delete interrupted")
	fired := false
	err := db.Callback().Delete().Before("gorm:delete").Register("consolidate_fail_once", func(tx *gorm.DB) {
		if !fired {
			fired = true
			tx.AddError(interrupted)
		}
	})
	if err != nil {
		t.Fatalf("register callback failed: %v", err)
	}

	owner := OwnerKey{AnonymousID: "anon-retry"}
	if err := svc.Consolidate(owner); !errors.Is(err, interrupted) {
		t.Fatalf("expected interrupted consolidation, got %v", err)
	}
	// 事务回滚后主购物车数量不变，来源项仍在
	if got := itemQuantity(t, db, primary.ID, 1, ""); got != 3 {
		t.Fatalf("expected rollback to quantity 3, got %d", got)
	}
	if got := itemQuantity(t, db, source.ID, 1, ""); got != 1 {
		t.Fatalf("expected source item intact, got %d", got)
	}

	// 任务重试：数量恰好累计一次
	if err := svc.Consolidate(owner); err != nil {
		t.Fatalf("retry consolidate failed: %v", err)
	}
	if got := itemQuantity(t, db, primary.ID, 1, ""); got != 4 {
		t.Fatalf("expected quantity 4 after retry, got %d", got)
	}
	if got := activeCartCount(t, db, "anon-retry"); got != 1 {
		t.Fatalf("expected 1 active cart after retry, got %d", got)
	}
}

func TestConsolidateSingleCartNoop(t *testing.T) {
	svc, db, mirror, notifier := setupConsolidationServiceTest(t)
	cart := createActiveCart(t, db, 0, "anon-single")
	createCartItem(t, db, cart.ID, 1, "", 2, "10.00")

	if err := svc.Consolidate(OwnerKey{AnonymousID: "anon-single"}); err != nil {
		t.Fatalf("consolidate failed: %v", err)
	}
	if len(mirror.invalidated) != 0 || len(notifier.cartIDs) != 0 {
		t.Fatal("single cart must not trigger side effects")
	}
}

func TestConsolidateRequiresOwner(t *testing.T) {
	svc, _, _, _ := setupConsolidationServiceTest(t)
	if err := svc.Consolidate(OwnerKey{}); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("expected ErrInvalidOwner, got %v", err)
	}
}

func TestConsolidateSideEffects(t *testing.T) {
	svc, db, mirror, notifier := setupConsolidationServiceTest(t)
	a := createActiveCart(t, db, 9, "")
	b := createActiveCart(t, db, 9, "")
	createCartItem(t, db, a.ID, 1, "", 2, "10.00")
	createCartItem(t, db, a.ID, 2, "", 1, "4.00")
	createCartItem(t, db, b.ID, 1, "", 5, "10.00")

	if err := svc.Consolidate(OwnerKey{UserID: 9}); err != nil {
		t.Fatalf("consolidate failed: %v", err)
	}

	if len(mirror.invalidated) != 1 || mirror.invalidated[0] != a.Token {
		t.Fatalf("expected primary mirror invalidated, got %v", mirror.invalidated)
	}
	if len(notifier.cartIDs) != 1 || notifier.cartIDs[0] != a.ID {
		t.Fatalf("expected change notification for primary %d, got %v", a.ID, notifier.cartIDs)
	}
	// 通知带归并后的总数量：2+1+5
	if notifier.counts[0] != 8 {
		t.Fatalf("expected item count 8, got %d", notifier.counts[0])
	}
}
