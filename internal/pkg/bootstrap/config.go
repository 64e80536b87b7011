// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是履约服务的全部配置，先读 YAML 文件，再由环境变量覆盖。
type Config struct {
	App         AppConfig         `yaml:"app"`
	Store       StoreConfig       `yaml:"store"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Payment     PaymentConfig     `yaml:"payment"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Nacos       NacosConfig       `yaml:"nacos"`
	Seed        SeedConfig        `yaml:"seed"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// StoreConfig 选择存储：memory 为进程内事务存储，mysql 走 GORM
type StoreConfig struct {
	Driver      string        `yaml:"driver"`
	DSN         string        `yaml:"dsn"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// KafkaConfig 的 Brokers 为空时不导出订单，也不消费支付回调
type KafkaConfig struct {
	Brokers       string `yaml:"brokers"`
	ExportTopic   string `yaml:"export_topic"`
	CallbackTopic string `yaml:"callback_topic"`
	GroupID       string `yaml:"group_id"`
}

// RedisConfig 的 Addr 为空时幂等键保存在进程内
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type IdempotencyConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// PaymentConfig 选择支付网关：simulator 在进程内模拟回调，http 把请求转发给外部网关
type PaymentConfig struct {
	Mode         string        `yaml:"mode"`
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	SuccessRatio float64       `yaml:"success_ratio"`
	Delay        time.Duration `yaml:"delay"`
}

type TracingConfig struct {
	JaegerEndpoint string  `yaml:"jaeger_endpoint"`
	SampleRatio    float64 `yaml:"sample_ratio"`
}

type NacosConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
}

// SeedConfig 是启动时写入的初始数据，已存在的记录会被跳过
type SeedConfig struct {
	Users    []SeedUser    `yaml:"users"`
	Products []SeedProduct `yaml:"products"`
	Coupons  []SeedCoupon  `yaml:"coupons"`
}

type SeedUser struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Points int64  `yaml:"points"`
}

type SeedProduct struct {
	ID    int64  `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Stock int64  `yaml:"stock"`
}

// SeedCoupon 的 Type 为 FIXED_AMOUNT 时 Value 是金额，为 FIXED_RATE 时是百分比
type SeedCoupon struct {
	UserID         string        `yaml:"user_id"`
	Name           string        `yaml:"name"`
	Type           string        `yaml:"type"`
	Value          string        `yaml:"value"`
	MaxAmount      string        `yaml:"max_amount"`
	MinOrderAmount string        `yaml:"min_order_amount"`
	ValidFor       time.Duration `yaml:"valid_for"`
}

const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"

	GatewaySimulator = "simulator"
	GatewayHTTP      = "http"
)

// DefaultConfig 返回可以直接在本机运行的配置：内存存储和模拟网关
func DefaultConfig() *Config {
	return &Config{
		App:         AppConfig{Name: "fulfillment-service", Port: 8080, LogLevel: "info"},
		Store:       StoreConfig{Driver: StoreMemory, LockTimeout: 3 * time.Second},
		Kafka:       KafkaConfig{ExportTopic: "order-export", CallbackTopic: "payment-callback", GroupID: "fulfillment-service"},
		Idempotency: IdempotencyConfig{TTL: 24 * time.Hour},
		Payment:     PaymentConfig{Mode: GatewaySimulator, Timeout: 5 * time.Second, SuccessRatio: 0.7, Delay: time.Second},
		Tracing:     TracingConfig{SampleRatio: 1},
		Nacos:       NacosConfig{Addrs: "localhost:8848", Group: "DEFAULT_GROUP"},
	}
}

// LoadConfig 读取配置文件并应用环境变量覆盖，path 为空时只使用默认值
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.App.Port = getEnvInt("APP_PORT", c.App.Port)
	c.App.LogLevel = getEnv("LOG_LEVEL", c.App.LogLevel)
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("MYSQL_DSN", c.Store.DSN)
	c.Kafka.Brokers = getEnv("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Payment.Mode = getEnv("PAYMENT_GATEWAY_MODE", c.Payment.Mode)
	c.Payment.URL = getEnv("PAYMENT_GATEWAY_URL", c.Payment.URL)
	c.Tracing.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", c.Tracing.JaegerEndpoint)
	c.Nacos.Addrs = getEnv("NACOS_SERVER_ADDRS", c.Nacos.Addrs)
	c.Nacos.Namespace = getEnv("NACOS_NAMESPACE", c.Nacos.Namespace)
	c.Nacos.Group = getEnv("NACOS_GROUP", c.Nacos.Group)

	if v, ok := os.LookupEnv("NACOS_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "NACOS_ENABLED=%q", v)
		}
		c.Nacos.Enabled = enabled
	}
	if v, ok := os.LookupEnv("STORE_LOCK_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "STORE_LOCK_TIMEOUT=%q", v)
		}
		c.Store.LockTimeout = d
	}
	return nil
}

// Validate 检查配置之间的依赖关系
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StoreMySQL:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", StoreMySQL)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.LockTimeout <= 0 {
		return fmt.Errorf("store.lock_timeout must be positive")
	}

	switch c.Payment.Mode {
	case GatewaySimulator:
		if c.Payment.SuccessRatio < 0 || c.Payment.SuccessRatio > 1 {
			return fmt.Errorf("payment.success_ratio must be within [0, 1]: %v", c.Payment.SuccessRatio)
		}
	case GatewayHTTP:
		if c.Payment.URL == "" {
			return fmt.Errorf("payment.url is required for mode %q", GatewayHTTP)
		}
	default:
		return fmt.Errorf("unknown payment.mode %q", c.Payment.Mode)
	}

	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port out of range: %d", c.App.Port)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]: %v", c.Tracing.SampleRatio)
	}
	return nil
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
