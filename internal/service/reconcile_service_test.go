package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupReconcileServiceTest(t *testing.T) (*ReconcileService, *gorm.DB, *memoryMirror) {
	t.Helper()
	dsn := fmt.Sprintf("file:reconcile_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	itemRepo := repository.NewCartItemRepository(db)
	return NewReconcileService(itemRepo, mirror), db, mirror
}

func TestReconcileCartStaleMirror(t *testing.T) {
	svc, db, mirror := setupReconcileServiceTest(t)
	ctx := context.Background()
	cart := createActiveCart(t, db, 0, "anon-reconcile")
	createCartItem(t, db, cart.ID, 1, "", 2, "10.00")

	// 镜像里残留的是数量 1 的旧视图
	mirror.PutView(ctx, models.MirrorView{
		Token:     cart.Token,
		Items:     []models.MirrorItem{{ProductID: 1, Quantity: 1}},
		ItemCount: 1,
	})

	items, stale, err := svc.ReconcileCart(ctx, cart)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !stale {
		t.Fatal("expected stale mirror detected")
	}
	// 权威存储获胜
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("expected authoritative quantity 2, got %+v", items)
	}
	// 镜像被权威数据重建
	view, ok := mirror.GetView(ctx, cart.Token)
	if !ok {
		t.Fatal("expected mirror rebuilt")
	}
	if view.ItemCount != 2 || len(view.Items) != 1 || view.Items[0].Quantity != 2 {
		t.Fatalf("expected rebuilt view quantity 2, got %+v", view)
	}
}

func TestReconcileCartSeedsMissingMirror(t *testing.T) {
	svc, db, mirror := setupReconcileServiceTest(t)
	ctx := context.Background()
	cart := createActiveCart(t, db, 0, "anon-seed")
	createCartItem(t, db, cart.ID, 2, "blue", 3, "4.50")

	items, stale, err := svc.ReconcileCart(ctx, cart)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if stale {
		t.Fatal("cache miss is not staleness")
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 authoritative item, got %d", len(items))
	}
	view, ok := mirror.GetView(ctx, cart.Token)
	if !ok {
		t.Fatal("expected mirror seeded on miss")
	}
	if view.ItemCount != 3 {
		t.Fatalf("expected item count 3, got %d", view.ItemCount)
	}
}

func TestReconcileCartMatchingMirror(t *testing.T) {
	svc, db, mirror := setupReconcileServiceTest(t)
	ctx := context.Background()
	cart := createActiveCart(t, db, 0, "anon-match")
	createCartItem(t, db, cart.ID, 1, "", 2, "10.00")
	mirror.PutView(ctx, models.MirrorView{
		Token:     cart.Token,
		Items:     []models.MirrorItem{{ProductID: 1, Quantity: 2}},
		ItemCount: 2,
	})

	_, stale, err := svc.ReconcileCart(ctx, cart)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if stale {
		t.Fatal("matching view must not be marked stale")
	}
	if len(mirror.invalidated) != 0 {
		t.Fatalf("matching view must not be invalidated, got %v", mirror.invalidated)
	}
}

func TestReconcileCartNil(t *testing.T) {
	svc, _, _ := setupReconcileServiceTest(t)
	if _, _, err := svc.ReconcileCart(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil cart")
	}
}

func TestSubtotal(t *testing.T) {
	items := []models.CartItem{
		{Quantity: 2, UnitPrice: models.NewMoneyFromString("10.00")},
		{Quantity: 3, UnitPrice: models.NewMoneyFromString("4.50")},
	}
	if got := Subtotal(items).String(); got != "33.50" {
		t.Fatalf("expected subtotal 33.50, got %s", got)
	}
	if got := Subtotal(nil).String(); got != "0.00" {
		t.Fatalf("expected zero subtotal, got %s", got)
	}
}

func TestViewDiverged(t *testing.T) {
	authoritative := []models.CartItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, VariantID: "blue", Quantity: 1},
	}
	matching := []models.MirrorItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, VariantID: "blue", Quantity: 1},
	}
	if viewDiverged(matching, authoritative) {
		t.Fatal("matching view reported as diverged")
	}
	if viewDiverged(nil, authoritative) {
		t.Fatal("absent view is not divergence")
	}
	if !viewDiverged([]models.MirrorItem{{ProductID: 1, Quantity: 1}}, authoritative) {
		t.Fatal("quantity mismatch not detected")
	}
	extra := append(matching, models.MirrorItem{ProductID: 9, Quantity: 1})
	if !viewDiverged(extra, authoritative) {
		t.Fatal("extra cached item not detected")
	}
}
