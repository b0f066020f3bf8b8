// Package config assembles the runtime configuration of the symbio binaries.
package config

import (
	"fmt"
	"strings"
	"time"

	"symbio/pkg/circuitbreaker"
	"symbio/pkg/config"
)

// PaymentConfig 支付网关熔断配置
type PaymentConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// Breaker 返回熔断器配置，未设置的字段使用默认值
func (p PaymentConfig) Breaker() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig()
	if p.FailureThreshold > 0 {
		cfg.FailureThreshold = p.FailureThreshold
	}
	if p.SuccessThreshold > 0 {
		cfg.SuccessThreshold = p.SuccessThreshold
	}
	if p.OpenTimeout > 0 {
		cfg.Timeout = p.OpenTimeout
	}
	return cfg
}

// DeliveryConfig worker 推送配置
type DeliveryConfig struct {
	Queue    string        `yaml:"queue"`
	DedupTTL time.Duration `yaml:"dedup_ttl"`
}

type Config struct {
	DB        config.DBConfig        `yaml:"db"`
	MQ        config.MQConfig        `yaml:"mq"`
	Redis     config.RedisConfig     `yaml:"redis"`
	JWT       config.JWTConfig       `yaml:"jwt"`
	Server    config.ServerConfig    `yaml:"server"`
	Scoring   config.ScoringConfig   `yaml:"scoring"`
	Outbox    config.OutboxConfig    `yaml:"outbox"`
	Telemetry config.TelemetryConfig `yaml:"telemetry"`
	Log       config.LogConfig       `yaml:"log"`
	Payment   PaymentConfig          `yaml:"payment"`
	Delivery  DeliveryConfig         `yaml:"delivery"`
}

// Load 使用统一配置中心：base.yaml + <env>.yaml + secrets.env，环境变量优先级最高
func Load() (*Config, error) {
	return LoadFrom(config.GetConfigEnv(), config.GetConfigDir())
}

func LoadFrom(env, dir string) (*Config, error) {
	var cfg Config
	if err := config.LoadInto(env, dir, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideTelemetryFromEnv(&cfg.Telemetry)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// unresolved 占位符没有对应环境变量时按未设置处理
func unresolved(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return ""
	}
	return s
}

func (c *Config) validate() error {
	c.DB.Password = unresolved(c.DB.Password)
	c.JWT.Secret = unresolved(c.JWT.Secret)
	c.Server.AdminToken = unresolved(c.Server.AdminToken)

	switch c.DB.Driver {
	case "postgres":
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("config: db.path is required for sqlite")
		}
	default:
		return fmt.Errorf("config: unknown db.driver %q", c.DB.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	if c.Delivery.Queue == "" {
		c.Delivery.Queue = "notification.created.q"
	}
	if c.Delivery.DedupTTL <= 0 {
		c.Delivery.DedupTTL = 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return nil
}
