package config

import (
	"os"
	"strings"
	"time"
)

// PlatformConfig holds tenant-resolution settings shared by every service
type PlatformConfig struct {
	// BaseDomain is the production domain clinics hang off of
	// (e.g. "clinigo.app" serves tenants as "<subdomain>.clinigo.app").
	BaseDomain string

	// DefaultClinicKey is the subdomain used for local development and as
	// the fallback for hosts that match no tenant pattern.
	DefaultClinicKey string

	// LocalHostMarkers are substrings that identify development or preview
	// hosts; any host containing one resolves to DefaultClinicKey.
	LocalHostMarkers []string

	// CacheTTL is how long a resolved connection descriptor is trusted
	// before the directory is consulted again.
	CacheTTL time.Duration

	// SweepInterval is how often the cache sweeper evicts stale descriptors.
	SweepInterval time.Duration
}

// GetPlatformConfig returns platform configuration from environment variables
func GetPlatformConfig() *PlatformConfig {
	markers := strings.Split(getEnv("LOCAL_HOST_MARKERS", "localhost,127.0.0.1,.local,-preview."), ",")
	for i := range markers {
		markers[i] = strings.TrimSpace(markers[i])
	}

	return &PlatformConfig{
		BaseDomain:       getEnv("BASE_DOMAIN", "clinigo.app"),
		DefaultClinicKey: getEnv("DEFAULT_CLINIC_KEY", "modelo"),
		LocalHostMarkers: markers,
		CacheTTL:         getDurationEnv("CONNECTION_CACHE_TTL", 30*time.Minute),
		SweepInterval:    getDurationEnv("CONNECTION_CACHE_SWEEP", 5*time.Minute),
	}
}

// KafkaConfig holds the broker address and topic names
type KafkaConfig struct {
	Broker            string
	ProvisioningTopic string
}

// GetKafkaConfig returns Kafka configuration from environment variables
func GetKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Broker:            getEnv("KAFKA_BROKER", "localhost:9092"),
		ProvisioningTopic: getEnv("KAFKA_PROVISIONING_TOPIC", "clinic-provisioning"),
	}
}

// ProvisionerConfig holds settings for the background provisioning worker
type ProvisionerConfig struct {
	// Endpoint is the external project-provisioning API.
	Endpoint string
	// FromAddress is the sender for welcome emails.
	FromAddress string
	// AWSRegion is used for the SES client.
	AWSRegion string
	// MaxRetries caps how many times a failed provision is retried.
	MaxRetries int
	// RetryInterval is the poll interval of the retry loop.
	RetryInterval time.Duration
}

// GetProvisionerConfig returns provisioner configuration from environment variables
func GetProvisionerConfig() *ProvisionerConfig {
	return &ProvisionerConfig{
		Endpoint:      getEnv("PROVISIONER_ENDPOINT", "http://localhost:9000"),
		FromAddress:   getEnv("WELCOME_EMAIL_FROM", "onboarding@clinigo.app"),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		MaxRetries:    8,
		RetryInterval: getDurationEnv("PROVISION_RETRY_INTERVAL", 30*time.Second),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable with a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
