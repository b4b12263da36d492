package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"freshstock-system/internal/gateway/handlers"
	"freshstock-system/internal/gateway/middleware"
)

type routerDeps struct {
	db        *gorm.DB
	redis     *redis.Client
	stock     *handlers.StockHandler
	catalog   *handlers.CatalogHandler
	users     *handlers.UserHandler
	dashboard *handlers.DashboardHandler
}

func newRouter(deps routerDeps) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit())

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/login", deps.users.Login)
		}
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth())
	{
		protected.GET("/inventory", deps.stock.GetInventory)
		protected.GET("/history", deps.stock.GetHistory)

		stock := protected.Group("/stock")
		{
			stock.POST("/receive", deps.stock.ReceiveStock)
			stock.POST("/withdraw", deps.stock.WithdrawStock)
			stock.POST("/purge-expired", deps.stock.PurgeExpired)
		}

		products := protected.Group("/products")
		{
			products.GET("", deps.catalog.ListProducts)
			products.GET("/available", deps.catalog.ListAvailableProducts)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.ManagerOnly())
		{
			admin.GET("/dashboard", deps.dashboard.GetStats)
			admin.POST("/reseed-stock", deps.dashboard.ReseedStock)

			admin.GET("/users", deps.users.ListUsers)
			admin.POST("/users", deps.users.CreateUser)
			admin.PUT("/users/:id", deps.users.UpdateUser)
			admin.DELETE("/users/:id", deps.users.DeleteUser)

			admin.GET("/products", deps.catalog.ListProductsAdmin)
			admin.POST("/products", deps.catalog.CreateProduct)
			admin.PUT("/products/:id", deps.catalog.UpdateProduct)
			admin.DELETE("/products/:id", deps.catalog.DeleteProduct)
		}
	}

	r.GET("/health", healthCheckHandler(deps))

	return r
}

func healthCheckHandler(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		status := "healthy"
		httpStatus := http.StatusOK
		checks := gin.H{"database": "ok", "redis": "ok"}

		if sqlDB, err := deps.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unreachable"
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
		if deps.redis == nil || deps.redis.Ping(ctx).Err() != nil {
			checks["redis"] = "unreachable"
			status = "degraded"
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now(),
		})
	}
}
