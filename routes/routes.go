package routes

import (
	"github.com/DarkStars1922/zcpt/configs"
	"github.com/DarkStars1922/zcpt/controllers"
	"github.com/DarkStars1922/zcpt/entity"
	"github.com/DarkStars1922/zcpt/middlewares"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, cfg *configs.Config) {
	r.Use(middlewares.CORSMiddleware())
	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	db := configs.DB()

	// Controllers
	authCtrl := controllers.NewAuthController(db, cfg)
	appCtrl := controllers.NewApplicationController(db, cfg)
	reviewCtrl := controllers.NewReviewController(db)
	tokenCtrl := controllers.NewTokenController(db)

	// Auth (public)
	a := r.Group("/auth")
	{
		a.POST("/register", authCtrl.Register)
		a.POST("/login", authCtrl.Login)
	}

	// Auth (protected)
	aAuth := a.Group("", middlewares.AuthMiddleware(cfg.JWTSecret))
	{
		aAuth.GET("/me", authCtrl.Me)
	}

	// Applications (students own their claims; detail also serves teachers/admins)
	apps := r.Group("/applications", middlewares.AuthMiddleware(cfg.JWTSecret))
	{
		apps.POST("", appCtrl.Create)
		apps.GET("/my", appCtrl.ListMine)
		apps.GET("/my/category-summary", appCtrl.CategorySummary)
		apps.GET("/my/by-category", appCtrl.ByCategory)
		apps.GET("/:id", appCtrl.Detail)
		apps.PUT("/:id", appCtrl.Update)
		apps.POST("/:id/withdraw", appCtrl.Withdraw)
		apps.DELETE("/:id", appCtrl.Delete)
	}

	// Reviews (scope resolution happens in the service)
	reviews := r.Group("/reviews", middlewares.AuthMiddleware(cfg.JWTSecret))
	{
		reviews.GET("/pending", reviewCtrl.Pending)
		reviews.GET("/pending/by-category", reviewCtrl.PendingByCategory)
		reviews.GET("/pending/category-summary", reviewCtrl.PendingSummary)
		reviews.GET("/pending/count", reviewCtrl.PendingCount)
		reviews.GET("/history", reviewCtrl.History)
		reviews.GET("/:id", reviewCtrl.Detail)
		reviews.POST("/:id/decision", reviewCtrl.Decide)
		reviews.POST("/batch-decision", reviewCtrl.BatchDecide)
	}

	// Reviewer tokens
	tokens := r.Group("/tokens", middlewares.AuthMiddleware(cfg.JWTSecret))
	{
		tokens.POST("/reviewer", tokenCtrl.Create)
		tokens.POST("/reviewer/activate", tokenCtrl.Activate)
		tokens.GET("", tokenCtrl.List)
		tokens.POST("/:id/revoke", tokenCtrl.Revoke)
	}

	// Admin (AI screening write-back)
	admin := r.Group("/admin", middlewares.AuthMiddleware(cfg.JWTSecret, entity.RoleAdmin))
	{
		admin.POST("/applications/:id/ai-result", appCtrl.AIResult)
	}
}
