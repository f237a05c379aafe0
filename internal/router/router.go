package router

import (
	"fmt"
	"strings"

	"github.com/cartline-next/internal/cache"
	"github.com/cartline-next/internal/config"
	publichandlers "github.com/cartline-next/internal/http/handlers/public"
	"github.com/cartline-next/internal/logger"
	"github.com/cartline-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "cl"
	}
	redisClient := cache.Client()
	cartWriteRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:cart_write", redisPrefix),
		WindowSeconds: cfg.Security.CartWriteRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CartWriteRateLimit.MaxRequests,
		Message:       "error.rate_limited",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/products", publicHandler.ListProducts)
			public.GET("/products/:slug", publicHandler.GetProduct)
		}

		// 购物车与结算接口：登录与游客共用，JWT 为可选身份信号
		cart := apiV1.Group("")
		cart.Use(OptionalUserJWTMiddleware(cfg.UserJWT.SecretKey))
		{
			cart.GET("/cart", publicHandler.GetCart)
			cart.POST("/cart/items", RateLimitMiddleware(redisClient, cartWriteRule, KeyByClientIdentity), publicHandler.UpsertCartItem)
			cart.PUT("/cart/items", RateLimitMiddleware(redisClient, cartWriteRule, KeyByClientIdentity), publicHandler.UpdateCartItem)
			cart.DELETE("/cart/items/:product_id", publicHandler.DeleteCartItem)
			cart.POST("/cart/consolidate", publicHandler.ConsolidateCarts)

			cart.GET("/checkout/session", publicHandler.GetCheckoutSession)
			cart.POST("/checkout/advance", publicHandler.AdvanceCheckout)
			cart.POST("/checkout/complete", publicHandler.CompleteCheckout)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
