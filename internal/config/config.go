package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/viper"
)

// Config はアプリケーション設定を表す
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Hold      HoldConfig      `mapstructure:"hold"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Messaging MessagingConfig `mapstructure:"messaging"`
}

// AppConfig はログ出力などの共通設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	URL          string `mapstructure:"url"` // 指定時は個別項目より優先
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HoldConfig は保留の有効期限の設定
type HoldConfig struct {
	CheckoutTTL      time.Duration `mapstructure:"checkout_ttl"`
	ReservationTTL   time.Duration `mapstructure:"reservation_ttl"`
	OrganizerHoldTTL time.Duration `mapstructure:"organizer_hold_ttl"`
	MaxTTL           time.Duration `mapstructure:"max_ttl"`
}

// SweeperConfig は期限切れ保留の掃除設定
type SweeperConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

// PricingConfig は手数料率（ベーシスポイント）
type PricingConfig struct {
	PlatformFeeBP   int64 `mapstructure:"platform_fee_bp"`
	ProcessingFeeBP int64 `mapstructure:"processing_fee_bp"`
}

// CacheConfig は在庫表示キャッシュの設定
type CacheConfig struct {
	AvailabilityTTL time.Duration `mapstructure:"availability_ttl"`
}

// MetricsConfig は /metrics の Basic 認証設定。どちらかが空なら認証しない
type MetricsConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// IsAuthEnabled は認証が有効かどうかを返す
func (c *MetricsConfig) IsAuthEnabled() bool {
	return c.User != "" && c.Password != ""
}

// TracingConfig は OpenTelemetry の設定
type TracingConfig struct {
	ServiceName    string  `mapstructure:"service_name"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// MessagingConfig は保留イベントの配信設定
type MessagingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// 設定キーと環境変数の対応
var envBindings = map[string]string{
	"app.env":                   "APP_ENV",
	"app.log_level":             "LOG_LEVEL",
	"server.port":               "PORT",
	"server.read_timeout":       "SERVER_READ_TIMEOUT",
	"server.write_timeout":      "SERVER_WRITE_TIMEOUT",
	"server.shutdown_timeout":   "SERVER_SHUTDOWN_TIMEOUT",
	"database.url":              "DATABASE_URL",
	"database.host":             "DB_HOST",
	"database.port":             "DB_PORT",
	"database.user":             "DB_USER",
	"database.password":         "DB_PASSWORD",
	"database.name":             "DB_NAME",
	"database.sslmode":          "DB_SSLMODE",
	"database.max_open_conns":   "DB_MAX_OPEN_CONNS",
	"database.max_idle_conns":   "DB_MAX_IDLE_CONNS",
	"redis.enabled":             "REDIS_ENABLED",
	"redis.host":                "REDIS_HOST",
	"redis.port":                "REDIS_PORT",
	"redis.password":            "REDIS_PASSWORD",
	"redis.db":                  "REDIS_DB",
	"hold.checkout_ttl":         "HOLD_CHECKOUT_TTL",
	"hold.reservation_ttl":      "HOLD_RESERVATION_TTL",
	"hold.organizer_hold_ttl":   "HOLD_ORGANIZER_TTL",
	"hold.max_ttl":              "HOLD_MAX_TTL",
	"sweeper.enabled":           "SWEEPER_ENABLED",
	"sweeper.interval":          "SWEEPER_INTERVAL",
	"sweeper.batch_size":        "SWEEPER_BATCH_SIZE",
	"sweeper.lock_ttl":          "SWEEPER_LOCK_TTL",
	"pricing.platform_fee_bp":   "PRICING_PLATFORM_FEE_BP",
	"pricing.processing_fee_bp": "PRICING_PROCESSING_FEE_BP",
	"cache.availability_ttl":    "CACHE_AVAILABILITY_TTL",
	"metrics.user":              "METRICS_USER",
	"metrics.password":          "METRICS_PASSWORD",
	"tracing.service_name":      "TRACING_SERVICE_NAME",
	"tracing.jaeger_endpoint":   "TRACING_JAEGER_ENDPOINT",
	"tracing.sample_ratio":      "TRACING_SAMPLE_RATIO",
	"messaging.enabled":         "MESSAGING_ENABLED",
	"messaging.topic_prefix":    "MESSAGING_TOPIC_PREFIX",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "ticket_holds")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("hold.checkout_ttl", 15*time.Minute)
	v.SetDefault("hold.reservation_ttl", 24*time.Hour)
	v.SetDefault("hold.organizer_hold_ttl", 72*time.Hour)
	v.SetDefault("hold.max_ttl", 30*24*time.Hour)

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", 30*time.Second)
	v.SetDefault("sweeper.batch_size", 500)
	v.SetDefault("sweeper.lock_ttl", 25*time.Second)

	v.SetDefault("pricing.platform_fee_bp", 0)
	v.SetDefault("pricing.processing_fee_bp", 0)

	v.SetDefault("cache.availability_ttl", 5*time.Second)

	v.SetDefault("metrics.user", "")
	v.SetDefault("metrics.password", "")

	v.SetDefault("tracing.service_name", "ticket-holds")
	v.SetDefault("tracing.jaeger_endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("messaging.enabled", false)
	v.SetDefault("messaging.topic_prefix", "holds")
}

// Load は既定値、設定ファイル (path が空でなければ)、環境変数の順に設定を読み込む
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("環境変数のバインドに失敗 (%s): %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定のデコードに失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値の整合性を検証する
func (c *Config) Validate() error {
	var errs []error
	if c.Hold.CheckoutTTL <= 0 || c.Hold.ReservationTTL <= 0 || c.Hold.OrganizerHoldTTL <= 0 {
		errs = append(errs, errors.New("hold の TTL は正の値である必要があります"))
	}
	if c.Hold.MaxTTL < c.Hold.CheckoutTTL {
		errs = append(errs, errors.New("hold.max_ttl は checkout_ttl 以上である必要があります"))
	}
	if c.Sweeper.Interval <= 0 {
		errs = append(errs, errors.New("sweeper.interval は正の値である必要があります"))
	}
	if c.Sweeper.BatchSize <= 0 {
		errs = append(errs, errors.New("sweeper.batch_size は1以上である必要があります"))
	}
	if c.Pricing.PlatformFeeBP < 0 || c.Pricing.ProcessingFeeBP < 0 {
		errs = append(errs, errors.New("手数料率は0以上である必要があります"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("tracing.sample_ratio は0から1の範囲である必要があります"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("設定が不正です: %w", errors.Join(errs...))
	}
	return nil
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}
