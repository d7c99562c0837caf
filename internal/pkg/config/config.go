package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig 聚合运行时配置：先读 YAML 文件（CONFIG_FILE 指定，缺省跳过），
// 再用环境变量覆盖，保证容器环境可以不带文件启动。
type AppConfig struct {
	HTTPAddr string `yaml:"httpAddr"`

	// MySQL DSN，gorm 直接消费
	DatabaseDSN string `yaml:"databaseDSN"`

	RedisAddr        string        `yaml:"redisAddr"`
	RedisDB          int           `yaml:"redisDB"`
	PriceCacheTTL    time.Duration `yaml:"priceCacheTTL"`
	PriceCacheEnable bool          `yaml:"priceCacheEnable"`

	// Kafka 集群地址（逗号分隔）与状态事件 Topic
	KafkaBrokers []string `yaml:"kafkaBrokers"`
	KafkaTopic   string   `yaml:"kafkaTopic"`

	JaegerEndpoint string `yaml:"jaegerEndpoint"`

	// 下游服务地址
	ProductServiceURL string `yaml:"productServiceURL"`
	BillingServiceURL string `yaml:"billingServiceURL"`
	LicenseServiceURL string `yaml:"licenseServiceURL"`
}

// Load 读取并校验配置，缺失项使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:         ":8080",
		DatabaseDSN:      "root:root@tcp(localhost:3306)/oms?charset=utf8mb4&parseTime=True&loc=Local",
		RedisAddr:        "localhost:6379",
		RedisDB:          0,
		PriceCacheTTL:    5 * time.Minute,
		PriceCacheEnable: true,
		KafkaBrokers:     []string{"localhost:9092"},
		KafkaTopic:       "order-status-changes",
		JaegerEndpoint:   "http://localhost:14268/api/traces",

		ProductServiceURL: "http://localhost:8081",
		BillingServiceURL: "http://localhost:8082",
		LicenseServiceURL: "http://localhost:8083",
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return AppConfig{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", cfg.JaegerEndpoint)
	cfg.ProductServiceURL = getEnv("PRODUCT_SERVICE_URL", cfg.ProductServiceURL)
	cfg.BillingServiceURL = getEnv("BILLING_SERVICE_URL", cfg.BillingServiceURL)
	cfg.LicenseServiceURL = getEnv("LICENSE_SERVICE_URL", cfg.LicenseServiceURL)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = splitCSV(brokers)
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	ttlSec, err := getEnvInt("PRICE_CACHE_TTL_SEC", int(cfg.PriceCacheTTL.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid PRICE_CACHE_TTL_SEC: %w", err)
	}
	if ttlSec <= 0 {
		return AppConfig{}, fmt.Errorf("PRICE_CACHE_TTL_SEC must be > 0")
	}
	cfg.PriceCacheTTL = time.Duration(ttlSec) * time.Second

	if cfg.DatabaseDSN == "" {
		return AppConfig{}, fmt.Errorf("DATABASE_DSN must not be empty")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	for name, url := range map[string]string{
		"PRODUCT_SERVICE_URL": cfg.ProductServiceURL,
		"BILLING_SERVICE_URL": cfg.BillingServiceURL,
		"LICENSE_SERVICE_URL": cfg.LicenseServiceURL,
	} {
		if url == "" {
			return AppConfig{}, fmt.Errorf("%s must not be empty", name)
		}
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
