package main

import (
	"net/http"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/bamboo-bazaar/storefront-api/config"
	"github.com/bamboo-bazaar/storefront-api/controllers"
	"github.com/bamboo-bazaar/storefront-api/middleware"
	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/bamboo-bazaar/storefront-api/repository"
	"github.com/bamboo-bazaar/storefront-api/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// application holds everything the router needs
type application struct {
	cfg       *config.Config
	logger    *logrus.Logger
	db        *gorm.DB
	store     *repository.GormStore
	orders    *services.OrderService
	validator *validator.Validator
}

// setupRouter registers middleware and routes
func setupRouter(app *application) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(app.logger))
	router.Use(middleware.Metrics())
	router.Use(cors.New(corsConfig(app.cfg)))

	production := app.cfg.IsProduction()
	orderController := controllers.NewOrderController(app.orders, app.logger, production)
	paymentController := controllers.NewPaymentController(app.orders, app.logger, production)
	userController := controllers.NewUserController(app.store.Users(), app.logger, production)

	router.GET("/metrics", middleware.MetricsHandler())

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus(app.db))

		authenticated := v1.Group("")
		authenticated.Use(middleware.EnsureValidToken(app.validator, app.logger))
		authenticated.Use(middleware.RequestTimeout(app.cfg.RequestTimeout))
		{
			// First sign-in, so no stored profile is required yet
			authenticated.POST("/users", userController.CreateUser)

			protected := authenticated.Group("")
			protected.Use(middleware.RequireUser(app.store.Users(), app.logger))
			{
				protected.GET("/users/me", userController.GetMyProfile)

				orders := protected.Group("/orders")
				{
					orders.POST("", orderController.CreateOrder)
					orders.GET("", orderController.ListMyOrders)
					orders.GET("/admin/all", middleware.RequireRole(models.RoleAdmin), orderController.ListAllOrders)
					orders.POST("/verify-otp", orderController.VerifyDeliveryOTP)
					orders.GET("/:id", orderController.GetOrder)
					orders.PATCH("/:id/status", middleware.RequireRole(models.RoleAdmin), orderController.UpdateOrderStatus)
					orders.POST("/:id/cancel", orderController.CancelOrder)
				}

				payment := protected.Group("/payment")
				{
					payment.POST("/create-order", paymentController.CreatePaymentOrder)
					payment.POST("/verify-payment", paymentController.VerifyPayment)
				}
			}
		}
	}

	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	return corsCfg
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Bamboo Bazaar API is running",
	})
}

// databaseStatus checks database connectivity
func databaseStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to get database instance",
				},
			})
			return
		}

		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_CONNECTION_ERROR",
					"message": "Database connection failed",
				},
			})
			return
		}

		stats := sqlDB.Stats()
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Database connected",
			"data": gin.H{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
			},
		})
	}
}
