package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/clinigo/clinic-platform/shared/config"
	"github.com/clinigo/clinic-platform/shared/middleware"
	"github.com/clinigo/clinic-platform/shared/tenant"
	"github.com/clinigo/clinic-platform/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	if err := utils.InitRedis(); err != nil {
		logrus.Warnf("Failed to connect to Redis, remote cache invalidation disabled: %v", err)
	}
	defer utils.CloseRedis()

	central, err := config.ConnectCentralDatabase()
	if err != nil {
		log.Fatal("Failed to connect to central database:", err)
	}

	model, err := config.ConnectModelDatabase()
	if err != nil {
		log.Fatal("Failed to connect to model database:", err)
	}

	platform := config.GetPlatformConfig()
	modelCfg := config.GetModelDatabaseConfig()

	directory := tenant.NewDirectory(central)
	builder := tenant.NewBuilder(model, modelCfg, config.GetCentralDatabaseConfig())
	cache := tenant.NewCache(directory, builder, platform).
		WithMonitor(tenant.NewMonitor(central, utils.GetRedisClient()))
	cache.StartSweeper()
	if rdb := utils.GetRedisClient(); rdb != nil {
		cache.ListenInvalidations(rdb)
	}
	defer cache.Stop()

	guard := middleware.NewTenantGuard(tenant.NewResolver(platform), cache)
	clinicAPI := NewServiceClient(os.Getenv("CLINIC_API_URL"))

	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Gateway is healthy", gin.H{"cached_connections": cache.Len()})
	})

	// Everything else requires a resolved clinic and is forwarded with
	// explicit clinic headers. NoRoute keeps the catch-all from clashing
	// with /health.
	router.NoRoute(guard.Middleware(), clinicAPI.ProxyRequest)

	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "8080"
	}

	logrus.Infof("Gateway starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start gateway:", err)
	}
}
