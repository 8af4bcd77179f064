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

	dataRouter := tenant.NewRouter(central, model)
	guard := middleware.NewTenantGuard(tenant.NewResolver(platform), cache)

	router := gin.Default()

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Clinic API is healthy", gin.H{"cached_connections": cache.Len()})
	})

	// Everything below requires a resolved clinic context
	api := router.Group("/")
	api.Use(guard.Middleware())
	{
		api.GET("/clinic", handleGetClinicInfo())

		api.GET("/pacientes", handleListPatients(dataRouter))
		api.POST("/pacientes", handleCreatePatient(dataRouter))
		api.GET("/pacientes/:id", handleGetPatient(dataRouter))

		api.GET("/agendamentos", handleListAppointments(dataRouter))
		api.POST("/agendamentos", handleCreateAppointment(dataRouter))
	}

	port := os.Getenv("CLINIC_API_PORT")
	if port == "" {
		port = "8003"
	}

	logrus.Infof("Clinic API starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start clinic API:", err)
	}
}
