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

	// Redis propagates cache invalidations to the serving instances;
	// the console still works without it.
	if err := utils.InitRedis(); err != nil {
		logrus.Warnf("Failed to connect to Redis, cache invalidation broadcast disabled: %v", err)
	}
	defer utils.CloseRedis()

	// Central administrative store
	db, err := config.ConnectCentralDatabase()
	if err != nil {
		log.Fatal("Failed to connect to central database:", err)
	}

	// Kafka publisher hands provisioning requests to the background worker
	publisher, err := NewProvisionPublisher(config.GetKafkaConfig())
	if err != nil {
		log.Fatal("Failed to initialize provisioning publisher:", err)
	}
	defer publisher.Close()

	store := tenant.NewGormClinicStore(db)
	provisioner := tenant.NewProvisioner(store, publisher, nil, utils.GetRedisClient())

	authMiddleware, err := middleware.NewAuthMiddleware()
	if err != nil {
		log.Fatal("Failed to initialize auth middleware:", err)
	}

	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Admin service is healthy", nil)
	})

	// Clinic directory management (platform admins only)
	clinics := router.Group("/clinics")
	clinics.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole("admin"))
	{
		clinics.POST("/", handleCreateClinic(provisioner))
		clinics.GET("/", handleGetClinics(db))
		clinics.GET("/:id", handleGetClinic(db))
		clinics.PUT("/:id/status", handleUpdateClinicStatus(db))
		clinics.POST("/:id/provision", handleRetryProvision(db, publisher))
		clinics.GET("/:id/monitoring", handleGetMonitoring(db))
	}

	port := os.Getenv("ADMIN_SERVICE_PORT")
	if port == "" {
		port = "8002"
	}

	logrus.Infof("Admin service starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start admin service:", err)
	}
}
