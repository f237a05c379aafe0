package service

import (
	"context"
	"time"

	"github.com/cartline-next/internal/constants"
	"github.com/cartline-next/internal/logger"
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/queue"
	"github.com/cartline-next/internal/repository"

	"github.com/google/uuid"
)

// IdentitySignals 身份信号集合（按优先级降序）
type IdentitySignals struct {
	OverrideToken     string // 上游显式指定的购物车标识
	CookieAnonymousID string // cookie 中的匿名持有者标识
	MirrorAnonymousID string // 镜像缓存中的匿名持有者标识
	UserID            uint   // 已登录用户ID（由上游鉴权注入）
}

// Resolution 身份解析结果
type Resolution struct {
	Cart        *models.Cart // 降级时为 nil
	Token       string       // 对外购物车标识
	Source      string       // 命中的信号来源
	AnonymousID string       // 解析后生效的匿名持有者标识（用户购物车为空）
	Degraded    bool         // 持久化不可用，Token 未落库
}

// ResolutionContext 单次逻辑操作的解析上下文
// 解析结果缓存在此对象上、随调用链传递，避免跨请求泄漏。
type ResolutionContext struct {
	ctx        context.Context
	bearer     BearerChannel // 可为 nil（无 cookie 通道的调用方）
	sessionKey string        // 镜像缓存 bearer 槽位键（客户端标识）
	resolved   *Resolution
}

// NewResolutionContext 创建解析上下文
func NewResolutionContext(ctx context.Context, bearer BearerChannel, sessionKey string) *ResolutionContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ResolutionContext{ctx: ctx, bearer: bearer, sessionKey: sessionKey}
}

// Context 返回底层 context
func (rc *ResolutionContext) Context() context.Context {
	if rc == nil || rc.ctx == nil {
		return context.Background()
	}
	return rc.ctx
}

// Resolved 返回已缓存的解析结果
func (rc *ResolutionContext) Resolved() *Resolution {
	if rc == nil {
		return nil
	}
	return rc.resolved
}

// ResolverService 购物车身份解析服务
type ResolverService struct {
	cartRepo  repository.CartRepository
	mirror    CartMirror
	scheduler ConsolidationScheduler
}

// NewResolverService 创建身份解析服务
func NewResolverService(cartRepo repository.CartRepository, mirror CartMirror, scheduler ConsolidationScheduler) *ResolverService {
	return &ResolverService{
		cartRepo:  cartRepo,
		mirror:    mirror,
		scheduler: scheduler,
	}
}

type resolverStrategy struct {
	source  string
	resolve func(rc *ResolutionContext, signals IdentitySignals) (*Resolution, bool, error)
}

// Resolve 将一组模糊身份信号解析为唯一的 active 购物车
// 策略链按优先级迭代，首个命中即返回；同一上下文内幂等。
// 读失败降级到下一策略，创建失败返回未持久化的降级标识，绝不阻塞调用方。
func (s *ResolverService) Resolve(rc *ResolutionContext, signals IdentitySignals) (*Resolution, error) {
	if rc == nil {
		rc = NewResolutionContext(context.Background(), nil, "")
	}

	strategies := []resolverStrategy{
		{constants.SignalSourceOverride, s.resolveOverride},
		{constants.SignalSourceContext, s.resolveContext},
		{constants.SignalSourceCookie, s.resolveBearer},
		{constants.SignalSourceUser, s.resolveUser},
		{constants.SignalSourceCreate, s.resolveCreate},
	}

	for _, strategy := range strategies {
		resolution, ok, err := strategy.resolve(rc, signals)
		if err != nil {
			// 存储读失败不终止整个解析，降级到下一优先级信号
			logger.Warnw("cart_resolve_strategy_failed",
				"source", strategy.source,
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}
		if resolution.Source == "" {
			resolution.Source = strategy.source
		}
		rc.resolved = resolution
		s.syncBearer(rc, resolution)
		return resolution, nil
	}

	// 策略链兜底是创建，理论上不可达；不退回任何硬编码记录
	return nil, ErrCartNotFound
}

// resolveOverride 显式指定标识：必须指向 active 购物车
func (s *ResolverService) resolveOverride(rc *ResolutionContext, signals IdentitySignals) (*Resolution, bool, error) {
	if signals.OverrideToken == "" {
		return nil, false, nil
	}
	cart, err := s.cartRepo.GetActiveByToken(signals.OverrideToken)
	if err != nil {
		return nil, false, err
	}
	if cart == nil {
		return nil, false, nil
	}
	return &Resolution{Cart: cart, Token: cart.Token, AnonymousID: cart.AnonymousID}, true, nil
}

// resolveContext 同一逻辑操作内命中已缓存的解析结果，避免重复存储往返
func (s *ResolverService) resolveContext(rc *ResolutionContext, signals IdentitySignals) (*Resolution, bool, error) {
	if rc.resolved == nil {
		return nil, false, nil
	}
	return rc.resolved, true, nil
}

// resolveBearer 匿名持有者标识：cookie 优先于镜像，两者解析后回写同步
func (s *ResolverService) resolveBearer(rc *ResolutionContext, signals IdentitySignals) (*Resolution, bool, error) {
	anonymousID := signals.CookieAnonymousID
	source := constants.SignalSourceCookie
	if anonymousID == "" {
		anonymousID = signals.MirrorAnonymousID
		source = constants.SignalSourceMirror
	}
	if anonymousID == "" {
		return nil, false, nil
	}

	carts, err := s.cartRepo.ListActiveByOwner(repository.OwnerFilter{AnonymousID: anonymousID})
	if err != nil {
		return nil, false, err
	}
	cart := pickPreferredCart(carts)
	if cart == nil {
		return nil, false, nil
	}
	s.scheduleSweepIfAmbiguous(carts, OwnerKey{AnonymousID: anonymousID})
	return &Resolution{Cart: cart, Token: cart.Token, Source: source, AnonymousID: anonymousID}, true, nil
}

// resolveUser 已登录用户购物车
func (s *ResolverService) resolveUser(rc *ResolutionContext, signals IdentitySignals) (*Resolution, bool, error) {
	if signals.UserID == 0 {
		return nil, false, nil
	}
	carts, err := s.cartRepo.ListActiveByOwner(repository.OwnerFilter{UserID: signals.UserID})
	if err != nil {
		return nil, false, err
	}
	cart := pickPreferredCart(carts)
	if cart == nil {
		return nil, false, nil
	}
	s.scheduleSweepIfAmbiguous(carts, OwnerKey{UserID: signals.UserID})
	return &Resolution{Cart: cart, Token: cart.Token}, true, nil
}

// resolveCreate 无任何信号命中时创建新购物车
// 创建失败时返回本地生成、未持久化的降级标识，让调用方的动作不被阻塞。
func (s *ResolverService) resolveCreate(rc *ResolutionContext, signals IdentitySignals) (*Resolution, bool, error) {
	now := time.Now()
	cart := &models.Cart{
		Token:     uuid.NewString(),
		Status:    constants.CartStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := OwnerKey{}
	if signals.UserID != 0 {
		cart.UserID = signals.UserID
		owner.UserID = signals.UserID
	} else {
		// 匿名标识沿用已持有的信号（cookie 优先），没有才新生成；
		// 并发创建因此落在同一归属身份上，归并引擎才有收敛的依据。
		anonymousID := signals.CookieAnonymousID
		if anonymousID == "" {
			anonymousID = signals.MirrorAnonymousID
		}
		if anonymousID == "" {
			anonymousID = uuid.NewString()
		}
		cart.AnonymousID = anonymousID
		owner.AnonymousID = anonymousID
	}

	if err := s.cartRepo.Create(cart); err != nil {
		logger.Errorw("cart_create_failed_degraded",
			"user_id", signals.UserID,
			"error", err,
		)
		return &Resolution{
			Token:       uuid.NewString(),
			Source:      constants.SignalSourceFallback,
			AnonymousID: cart.AnonymousID,
			Degraded:    true,
		}, true, nil
	}

	// 并发解析可能各自判定「无购物车」而重复创建，交给归并引擎收敛
	if carts, err := s.cartRepo.ListActiveByOwner(owner.Filter()); err == nil {
		s.scheduleSweepIfAmbiguous(carts, owner)
	}

	return &Resolution{Cart: cart, Token: cart.Token, AnonymousID: cart.AnonymousID}, true, nil
}

// syncBearer 解析成功后同步匿名标识到 cookie 与镜像（尽力而为）
func (s *ResolverService) syncBearer(rc *ResolutionContext, resolution *Resolution) {
	if resolution == nil || resolution.AnonymousID == "" {
		return
	}
	if rc.bearer != nil {
		if err := rc.bearer.Write(resolution.AnonymousID); err != nil {
			logger.Warnw("cart_bearer_write_failed", "error", err)
		}
	}
	if s.mirror != nil && rc.sessionKey != "" {
		if err := s.mirror.PutBearer(rc.Context(), rc.sessionKey, resolution.AnonymousID); err != nil {
			logger.Warnw("cart_mirror_bearer_write_failed", "error", err)
		}
	}
}

// scheduleSweepIfAmbiguous 观察到同一身份多个 active 购物车时调度归并
func (s *ResolverService) scheduleSweepIfAmbiguous(carts []models.Cart, owner OwnerKey) {
	if len(carts) <= 1 || s.scheduler == nil || owner.IsZero() {
		return
	}
	err := s.scheduler.EnqueueConsolidation(queue.CartConsolidatePayload{
		UserID:      owner.UserID,
		AnonymousID: owner.AnonymousID,
	})
	if err != nil {
		logger.Warnw("cart_consolidation_enqueue_failed",
			"user_id", owner.UserID,
			"error", err,
		)
	}
}

// pickPreferredCart 在多个 active 购物车中选择优先返回者：
// 优先有商品的购物车；并列时取最近更新（列表已按 updated_at 倒序）。
func pickPreferredCart(carts []models.Cart) *models.Cart {
	if len(carts) == 0 {
		return nil
	}
	for i := range carts {
		if len(carts[i].Items) > 0 {
			return &carts[i]
		}
	}
	return &carts[0]
}
