package provider

import (
	"github.com/cartline-next/internal/cache"
	"github.com/cartline-next/internal/config"
	"github.com/cartline-next/internal/logger"
	"github.com/cartline-next/internal/models"
	"github.com/cartline-next/internal/queue"
	"github.com/cartline-next/internal/repository"
	"github.com/cartline-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	MirrorStore *cache.CartMirrorStore

	// Repositories
	ProductRepo  repository.ProductRepository
	CartRepo     repository.CartRepository
	CartItemRepo repository.CartItemRepository
	SessionRepo  repository.CheckoutSessionRepository

	// Services
	Resolver      *service.ResolverService
	Consolidation *service.ConsolidationService
	Reconcile     *service.ReconcileService
	CartService   *service.CartService
	Checkout      *service.CheckoutService
	Products      *service.ProductService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		MirrorStore: cache.NewCartMirrorStore(cfg.Cart.MirrorTTLHours),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.ProductRepo = repository.NewProductRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.CartItemRepo = repository.NewCartItemRepository(db)
	c.SessionRepo = repository.NewCheckoutSessionRepository(db)
}

func (c *Container) initServices() {
	c.Resolver = service.NewResolverService(c.CartRepo, c.MirrorStore, c.QueueClient)
	c.Consolidation = service.NewConsolidationService(c.CartRepo, c.CartItemRepo, c.MirrorStore, c.QueueClient)
	c.Reconcile = service.NewReconcileService(c.CartItemRepo, c.MirrorStore)
	c.CartService = service.NewCartService(c.CartRepo, c.CartItemRepo, c.ProductRepo, c.MirrorStore, c.QueueClient)
	c.Checkout = service.NewCheckoutService(c.SessionRepo, c.CartRepo, c.Reconcile, c.MirrorStore, c.QueueClient, c.Config.Checkout)
	c.Products = service.NewProductService(c.ProductRepo)
}
