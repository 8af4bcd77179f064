package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/clinigo/clinic-platform/shared/config"
	"github.com/clinigo/clinic-platform/shared/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	if err := utils.InitRedis(); err != nil {
		logrus.Warnf("Failed to connect to Redis, cache invalidation broadcast disabled: %v", err)
	}
	defer utils.CloseRedis()

	db, err := config.ConnectCentralDatabase()
	if err != nil {
		log.Fatal("Failed to connect to central database:", err)
	}

	pcfg := config.GetProvisionerConfig()
	platform := config.GetPlatformConfig()

	var mailer *Mailer
	mailer, err = NewMailer(pcfg.AWSRegion, pcfg.FromAddress, platform.BaseDomain)
	if err != nil {
		logrus.Warnf("SES mailer unavailable, welcome emails disabled: %v", err)
		mailer = nil
	}

	client := NewProvisionClient(pcfg.Endpoint)
	worker := NewWorker(db, client, mailer, utils.GetRedisClient())

	consumer := NewProvisionConsumer(config.GetKafkaConfig(), worker)
	defer consumer.Close()

	retryLoop := NewRetryLoop(db, worker, pcfg.MaxRetries, pcfg.RetryInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go consumer.Run(ctx)
	go retryLoop.Run(ctx)

	// Minimal HTTP surface for orchestrator health checks
	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		utils.OKResponse(c, "Provisioner is healthy", gin.H{
			"circuit_breaker": client.breaker.GetState(),
		})
	})

	port := os.Getenv("PROVISIONER_PORT")
	if port == "" {
		port = "8004"
	}

	logrus.Infof("Provisioner starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start provisioner:", err)
	}
}
