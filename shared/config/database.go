package config

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// GetCentralDatabaseConfig returns configuration for the central
// administrative store (clinic directory, billing, monitoring, audit)
func GetCentralDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:     getEnv("CENTRAL_DB_HOST", "localhost"),
		Port:     getEnv("CENTRAL_DB_PORT", "5432"),
		User:     getEnv("CENTRAL_DB_USER", "postgres"),
		Password: getEnv("CENTRAL_DB_PASSWORD", "password"),
		DBName:   getEnv("CENTRAL_DB_NAME", "clinigo_central"),
		SSLMode:  getEnv("CENTRAL_DB_SSL_MODE", "disable"),
	}
}

// GetModelDatabaseConfig returns configuration for the shared model store
// that serves clinics without an isolated database (row-level tenancy)
func GetModelDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:     getEnv("MODEL_DB_HOST", "localhost"),
		Port:     getEnv("MODEL_DB_PORT", "5432"),
		User:     getEnv("MODEL_DB_USER", "postgres"),
		Password: getEnv("MODEL_DB_PASSWORD", "password"),
		DBName:   getEnv("MODEL_DB_NAME", "clinigo_modelo"),
		SSLMode:  getEnv("MODEL_DB_SSL_MODE", "disable"),
	}
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Connect establishes a connection to the configured database with
// pool settings sized for one service instance
func (c *DatabaseConfig) Connect() (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(c.GetDSN()), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", c.DBName, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	// Central + model + per-tenant pools share the server's connection
	// budget, so keep each pool small.
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database %s: %w", c.DBName, err)
	}

	return db, nil
}

// ConnectCentralDatabase connects to the central administrative store
func ConnectCentralDatabase() (*gorm.DB, error) {
	return GetCentralDatabaseConfig().Connect()
}

// ConnectModelDatabase connects to the shared model store
func ConnectModelDatabase() (*gorm.DB, error) {
	return GetModelDatabaseConfig().Connect()
}
