package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Clicks   ClicksConfig   `mapstructure:"clicks"`
	Stats    StatsConfig    `mapstructure:"stats"`
	Presence PresenceConfig `mapstructure:"presence"`
	Log      LogConfig      `mapstructure:"log"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // postgres | sqlite
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret    string `mapstructure:"jwt_secret"`
	Issuer       string `mapstructure:"issuer"`
	AdminRole    string `mapstructure:"admin_role"`
	AdminKeyHash string `mapstructure:"admin_key_hash"` // bcrypt
}

// ClicksConfig 点击限流：服务端窗口是正确性边界，客户端冷却只用于抑制重复提交
type ClicksConfig struct {
	Window         time.Duration `mapstructure:"window"`
	ClientCooldown time.Duration `mapstructure:"client_cooldown"`
}

type StatsConfig struct {
	PageSize          int           `mapstructure:"page_size"`
	ScanCap           int           `mapstructure:"scan_cap"`
	TotalTTL          time.Duration `mapstructure:"total_ttl"`
	UserTTL           time.Duration `mapstructure:"user_ttl"`
	LeaderboardTTL    time.Duration `mapstructure:"leaderboard_ttl"`
	LeaderboardMax    int           `mapstructure:"leaderboard_max"`
	ProfileChunkSize  int           `mapstructure:"profile_chunk_size"`
	MemoryCacheSize   int           `mapstructure:"memory_cache_size"`
	UseRedisSnapshots bool          `mapstructure:"use_redis_snapshots"`
	FillTimeout       time.Duration `mapstructure:"fill_timeout"`
}

type PresenceConfig struct {
	DefaultRoom string        `mapstructure:"default_room"`
	QueueSize   int           `mapstructure:"queue_size"`
	Workers     int           `mapstructure:"workers"`
	StateTTL    time.Duration `mapstructure:"state_ttl"`
	RetractWait time.Duration `mapstructure:"retract_wait"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
}

type CatalogConfig struct {
	SeedDefaults bool `mapstructure:"seed_defaults"`
}

// Load 读取 config.yaml 与 CLICKER_ 前缀的环境变量
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CLICKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回不读取任何文件的默认配置（测试与基准使用）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "clicker.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.admin_role", "admin")

	v.SetDefault("clicks.window", time.Second)
	v.SetDefault("clicks.client_cooldown", 250*time.Millisecond)

	v.SetDefault("stats.page_size", 2000)
	v.SetDefault("stats.scan_cap", 300000)
	v.SetDefault("stats.total_ttl", 3*time.Second)
	v.SetDefault("stats.user_ttl", 3*time.Second)
	v.SetDefault("stats.leaderboard_ttl", 8*time.Second)
	v.SetDefault("stats.leaderboard_max", 100)
	v.SetDefault("stats.profile_chunk_size", 100)
	v.SetDefault("stats.memory_cache_size", 4096)
	v.SetDefault("stats.use_redis_snapshots", true)
	v.SetDefault("stats.fill_timeout", 30*time.Second)

	v.SetDefault("presence.default_room", "global")
	v.SetDefault("presence.queue_size", 10000)
	v.SetDefault("presence.workers", 4)
	v.SetDefault("presence.state_ttl", 2*time.Minute)
	v.SetDefault("presence.retract_wait", 2*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.service_name", "clicker")
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("catalog.seed_defaults", true)
}
