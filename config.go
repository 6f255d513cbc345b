package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	awspkg "github.com/xturavaina/nacento-connector/pkg/aws"
)

// Config holds all configuration for the connector.
type Config struct {
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string

	// Media storage. Driver "local" checks existence on disk under MediaRoot
	// and never produces fingerprints; "aws-s3" checks and fingerprints
	// against the bucket.
	MediaDriver    string
	MediaRoot      string
	MediaBucket    string
	S3UsePathStyle bool
	S3HeadTimeout  time.Duration
	PingObjectKey  string

	AWSRegion    string
	AWSEndpoint  string
	AWSAccessKey string
	AWSSecretKey string

	SQSQueueURL string
	SNSTopicARN string
	RedisURL    string
}

// PostgresDSN builds the GORM connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode,
	)
}

// AWSOptions maps the config onto the client loader options.
func (c *Config) AWSOptions() awspkg.Options {
	return awspkg.Options{
		Region:    c.AWSRegion,
		Endpoint:  c.AWSEndpoint,
		AccessKey: c.AWSAccessKey,
		SecretKey: c.AWSSecretKey,
	}
}

// LoadConfig reads configuration from environment variables with optional
// Secrets Manager override.
func LoadConfig() (*Config, error) {
	headTimeout := 5 * time.Second
	if v := os.Getenv("S3_HEAD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			headTimeout = d
		}
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8095"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MediaDriver:    getEnv("MEDIA_DRIVER", "local"),
		MediaRoot:      getEnv("MEDIA_ROOT", "pub/media"),
		MediaBucket:    os.Getenv("MEDIA_BUCKET"),
		S3UsePathStyle: getEnv("S3_USE_PATH_STYLE", "true") == "true",
		S3HeadTimeout:  headTimeout,
		PingObjectKey:  os.Getenv("S3_PING_OBJECT_KEY"),

		AWSRegion:    getEnv("AWS_REGION", "auto"),
		AWSEndpoint:  os.Getenv("AWS_ENDPOINT"),
		AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),

		SQSQueueURL: os.Getenv("SQS_QUEUE_URL"),
		SNSTopicARN: os.Getenv("GALLERY_SNS_TOPIC_ARN"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}

	// Override DB credentials from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := awspkg.LoadConfig(context.Background(), cfg.AWSOptions()); err == nil {
			sm := awspkg.NewSecretsClient(awsCfg)
			if dbjson, err := sm.GetSecret(context.Background(), "nacento/DB_CREDENTIALS"); err == nil && dbjson != "" {
				var m map[string]string
				if err := json.Unmarshal([]byte(dbjson), &m); err == nil {
					if v, ok := m["POSTGRES_USER"]; ok && v != "" {
						cfg.PostgresUser = v
					}
					if v, ok := m["POSTGRES_PASSWORD"]; ok && v != "" {
						cfg.PostgresPassword = v
					}
					if v, ok := m["POSTGRES_DB"]; ok && v != "" {
						cfg.PostgresDB = v
					}
					if v, ok := m["POSTGRES_HOST"]; ok && v != "" {
						cfg.PostgresHost = v
					}
					if v, ok := m["POSTGRES_PORT"]; ok && v != "" {
						cfg.PostgresPort = v
					}
				}
			}
		}
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if cfg.MediaDriver != "local" && cfg.MediaDriver != "aws-s3" {
		return nil, fmt.Errorf("unsupported MEDIA_DRIVER %q", cfg.MediaDriver)
	}
	if cfg.MediaDriver == "aws-s3" && cfg.MediaBucket == "" {
		return nil, fmt.Errorf("MEDIA_BUCKET is required with the aws-s3 driver")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
