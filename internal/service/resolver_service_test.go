package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cartline-next/internal/constants"
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupResolverServiceTest(t *testing.T) (*ResolverService, *gorm.DB, *memoryMirror, *recordingScheduler) {
	t.Helper()
	dsn := fmt.Sprintf("file:resolver_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	scheduler := &recordingScheduler{}
	cartRepo := repository.NewCartRepository(db)
	return NewResolverService(cartRepo, mirror, scheduler), db, mirror, scheduler
}

func createActiveCart(t *testing.T, db *gorm.DB, userID uint, anonymousID string) *models.Cart {
	t.Helper()
	now := time.Now()
	cart := &models.Cart{
		Token:       uuid.NewString(),
		UserID:      userID,
		AnonymousID: anonymousID,
		Status:      constants.CartStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(cart).Error; err != nil {
		t.Fatalf("create cart failed: %v", err)
	}
	return cart
}

func createCartItem(t *testing.T, db *gorm.DB, cartID, productID uint, variantID string, quantity int, unitPrice string) *models.CartItem {
	t.Helper()
	now := time.Now()
	product := &models.Product{
		ID:            productID,
		Slug:          fmt.Sprintf("product-%d", productID),
		TitleJSON:     models.JSON{"en": fmt.Sprintf("product %d", productID)},
		PriceAmount:   models.NewMoneyFromString(unitPrice),
		PriceCurrency: "USD",
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.Where("id = ?", productID).FirstOrCreate(product).Error; err != nil {
		t.Fatalf("ensure product failed: %v", err)
	}
	item := &models.CartItem{
		CartID:    cartID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: models.NewMoneyFromString(unitPrice),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("create cart item failed: %v", err)
	}
	return item
}

func TestResolveOverrideTokenWins(t *testing.T) {
	svc, db, _, _ := setupResolverServiceTest(t)
	target := createActiveCart(t, db, 0, "anon-override")
	other := createActiveCart(t, db, 0, "anon-cookie")

	rc := NewResolutionContext(context.Background(), nil, "")
	res, err := svc.Resolve(rc, IdentitySignals{
		OverrideToken:     target.Token,
		CookieAnonymousID: other.AnonymousID,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Cart == nil || res.Cart.ID != target.ID {
		t.Fatalf("expected override cart %d, got %+v", target.ID, res.Cart)
	}
	if res.Source != constants.SignalSourceOverride {
		t.Fatalf("expected source override, got %s", res.Source)
	}
}

func TestResolveUnknownOverrideFallsThrough(t *testing.T) {
	svc, db, _, _ := setupResolverServiceTest(t)
	cart := createActiveCart(t, db, 0, "anon-fallthrough")

	rc := NewResolutionContext(context.Background(), nil, "")
	res, err := svc.Resolve(rc, IdentitySignals{
		OverrideToken:     "no-such-token",
		CookieAnonymousID: cart.AnonymousID,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Cart == nil || res.Cart.ID != cart.ID {
		t.Fatalf("expected cookie cart %d, got %+v", cart.ID, res.Cart)
	}
	if res.Source != constants.SignalSourceCookie {
		t.Fatalf("expected source cookie, got %s", res.Source)
	}
}

func TestResolveContextMemoized(t *testing.T) {
	svc, db, _, _ := setupResolverServiceTest(t)
	cart := createActiveCart(t, db, 0, "anon-memo")

	rc := NewResolutionContext(context.Background(), nil, "")
	first, err := svc.Resolve(rc, IdentitySignals{CookieAnonymousID: cart.AnonymousID})
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}

	// 同一上下文再次解析不回存储，也不会重复创建
	second, err := svc.Resolve(rc, IdentitySignals{})
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if second.Token != first.Token {
		t.Fatalf("expected memoized token %s, got %s", first.Token, second.Token)
	}
	var count int64
	if err := db.Model(&models.Cart{}).Count(&count).Error; err != nil {
		t.Fatalf("count carts failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 cart, got %d", count)
	}
}

func TestResolveCookieBeatsMirror(t *testing.T) {
	svc, db, _, _ := setupResolverServiceTest(t)
	cookieCart := createActiveCart(t, db, 0, "anon-from-cookie")
	mirrorCart := createActiveCart(t, db, 0, "anon-from-mirror")

	rc := NewResolutionContext(context.Background(), nil, "")
	res, err := svc.Resolve(rc, IdentitySignals{
		CookieAnonymousID: cookieCart.AnonymousID,
		MirrorAnonymousID: mirrorCart.AnonymousID,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Cart == nil || res.Cart.ID != cookieCart.ID {
		t.Fatalf("expected cookie cart %d, got %+v", cookieCart.ID, res.Cart)
	}
	if res.Source != constants.SignalSourceCookie {
		t.Fatalf("expected source cookie, got %s", res.Source)
	}
}

func TestResolveMirrorFallback(t *testing.T) {
	svc, db, _, _ := setupResolverServiceTest(t)
	cart := createActiveCart(t, db, 0, "anon-mirror-only")

	rc := NewResolutionContext(context.Background(), nil, "")
	res, err := svc.Resolve(rc, IdentitySignals{MirrorAnonymousID: cart.AnonymousID})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Cart == nil || res.Cart.ID != cart.ID {
		t.Fatalf("expected mirror cart %d, got %+v", cart.ID, res.Cart)
	}
	if res.Source != constants.SignalSourceMirror {
		t.Fatalf("expected source mirror, got %s", res.Source)
	}
}

func TestResolveUserCart(t *testing.T) {
	svc, db, _, _ := setupResolverServiceTest(t)
	cart := createActiveCart(t, db, 7, "")

	rc := NewResolutionContext(context.Background(), nil, "")
	res, err := svc.Resolve(rc, IdentitySignals{UserID: 7})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Cart == nil || res.Cart.ID != cart.ID {
		t.Fatalf("expected user cart %d, got %+v", cart.ID, res.Cart)
	}
	if res.Source != constants.SignalSourceUser {
		t.Fatalf("expected source user, got %s", res.Source)
	}
}

func TestResolveCreatesCartForGuest(t *testing.T) {
	svc, db, mirror, _ := setupResolverServiceTest(t)

	bearer := &staticBearer{}
	rc := NewResolutionContext(context.Background(), bearer, "client-1")
	res, err := svc.Resolve(rc, IdentitySignals{})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Cart == nil || res.Degraded {
		t.Fatalf("expected persisted cart, got %+v", res)
	}
	if res.Source != constants.SignalSourceCreate {
		t.Fatalf("expected source create, got %s", res.Source)
	}
	if res.AnonymousID == "" {
		t.Fatal("expected anonymous id for guest cart")
	}

	var stored models.Cart
	if err := db.Where("token = ?", res.Token).First(&stored).Error; err != nil {
		t.Fatalf("created cart not found: %v", err)
	}
	if stored.Status != constants.CartStatusActive {
		t.Fatalf("expected active status, got %s", stored.Status)
	}
	// 匿名标识同步回 cookie 通道与镜像槽位
	if bearer.value != res.AnonymousID {
		t.Fatalf("expected bearer sync %s, got %s", res.AnonymousID, bearer.value)
	}
	if id, ok := mirror.GetBearer(context.Background(), "client-1"); !ok || id != res.AnonymousID {
		t.Fatalf("expected mirror bearer sync %s, got %s", res.AnonymousID, id)
	}
}

func TestResolveCreatesCartForUser(t *testing.T) {
	svc, db, _, _ := setupResolverServiceTest(t)

	rc := NewResolutionContext(context.Background(), nil, "")
	res, err := svc.Resolve(rc, IdentitySignals{UserID: 42})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Cart == nil || res.Cart.UserID != 42 {
		t.Fatalf("expected user cart, got %+v", res.Cart)
	}
	if res.AnonymousID != "" {
		t.Fatalf("user cart should not carry anonymous id, got %s", res.AnonymousID)
	}

	var stored models.Cart
	if err := db.Where("user_id = ?", 42).First(&stored).Error; err != nil {
		t.Fatalf("created cart not found: %v", err)
	}
}

func TestResolveDegradedWhenStoreUnavailable(t *testing.T) {
	svc := NewResolverService(&failingCartRepo{}, nil, nil)

	rc := NewResolutionContext(context.Background(), nil, "")
	res, err := svc.Resolve(rc, IdentitySignals{CookieAnonymousID: "anon-down"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !res.Degraded {
		t.Fatal("expected degraded resolution")
	}
	if res.Cart != nil {
		t.Fatal("degraded resolution must not carry a cart")
	}
	if res.Token == "" {
		t.Fatal("degraded resolution still needs a token")
	}
	if res.Source != constants.SignalSourceFallback {
		t.Fatalf("expected source fallback, got %s", res.Source)
	}
}

func TestResolveCreateAdoptsSignalledAnonymousID(t *testing.T) {
	svc, db, _, _ := setupResolverServiceTest(t)

	rc := NewResolutionContext(context.Background(), nil, "")
	res, err := svc.Resolve(rc, IdentitySignals{CookieAnonymousID: "anon-known"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.AnonymousID != "anon-known" {
		t.Fatalf("expected cart attached to anon-known, got %s", res.AnonymousID)
	}
	var stored models.Cart
	if err := db.Where("anonymous_id = ?", "anon-known").First(&stored).Error; err != nil {
		t.Fatalf("created cart not found: %v", err)
	}
}

func TestResolveConcurrentConvergesToOneCart(t *testing.T) {
	svc, db, _, _ := setupResolverServiceTest(t)

	const resolvers = 10
	results := make([]*Resolution, resolvers)
	errs := make([]error, resolvers)
	var wg sync.WaitGroup
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rc := NewResolutionContext(context.Background(), nil, "")
			results[i], errs[i] = svc.Resolve(rc, IdentitySignals{CookieAnonymousID: "anon-burst"})
		}(i)
	}
	wg.Wait()

	for i := 0; i < resolvers; i++ {
		if errs[i] != nil {
			t.Fatalf("resolve %d failed: %v", i, errs[i])
		}
		if results[i].Degraded {
			t.Fatalf("resolve %d degraded unexpectedly", i)
		}
		if results[i].AnonymousID != "anon-burst" {
			t.Fatalf("resolve %d lost identity, got %s", i, results[i].AnonymousID)
		}
	}

	// 并发窗口内允许短暂重复创建，归并后只剩一个 active 购物车
	cartRepo := repository.NewCartRepository(db)
	itemRepo := repository.NewCartItemRepository(db)
	consolidation := NewConsolidationService(cartRepo, itemRepo, nil, nil)
	if err := consolidation.Consolidate(OwnerKey{AnonymousID: "anon-burst"}); err != nil {
		t.Fatalf("consolidate failed: %v", err)
	}
	var active int64
	err := db.Model(&models.Cart{}).
		Where("anonymous_id = ? AND status = ?", "anon-burst", constants.CartStatusActive).
		Count(&active).Error
	if err != nil {
		t.Fatalf("count carts failed: %v", err)
	}
	if active != 1 {
		t.Fatalf("expected exactly 1 active cart, got %d", active)
	}
}

func TestResolvePrefersCartWithItems(t *testing.T) {
	svc, db, _, scheduler := setupResolverServiceTest(t)
	empty := createActiveCart(t, db, 0, "anon-multi")
	filled := createActiveCart(t, db, 0, "anon-multi")
	createCartItem(t, db, filled.ID, 1, "", 2, "9.99")
	// 让空购物车成为最近更新，验证有商品者仍然优先
	if err := db.Model(&models.Cart{}).Where("id = ?", empty.ID).
		Update("updated_at", time.Now().Add(time.Hour)).Error; err != nil {
		t.Fatalf("touch cart failed: %v", err)
	}

	rc := NewResolutionContext(context.Background(), nil, "")
	res, err := svc.Resolve(rc, IdentitySignals{CookieAnonymousID: "anon-multi"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Cart == nil || res.Cart.ID != filled.ID {
		t.Fatalf("expected cart with items %d, got %+v", filled.ID, res.Cart)
	}
	// 多个 active 购物车触发归并调度
	enqueued := scheduler.recorded()
	if len(enqueued) != 1 {
		t.Fatalf("expected 1 consolidation enqueue, got %d", len(enqueued))
	}
	if enqueued[0].AnonymousID != "anon-multi" {
		t.Fatalf("unexpected enqueue payload %+v", enqueued[0])
	}
}
