package lotterysim

import (
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// Config 配置结构
type Config struct {
	Game           *GameConfig           `mapstructure:"game"`
	Fetch          *FetchConfig          `mapstructure:"fetch"`
	Sources        map[string]DataSource `mapstructure:"sources"`
	CircuitBreaker *CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Redis          *RedisConfig          `mapstructure:"redis"`
	Metrics        *MetricsConfig        `mapstructure:"metrics"`
	Server         *ServerConfig         `mapstructure:"server"`
}

// GameConfig 游戏默认设置, 供示例程序使用
type GameConfig struct {
	ID         string `mapstructure:"id"`
	Multiplier bool   `mapstructure:"multiplier"`
	QuickPicks int    `mapstructure:"quick_picks"`
}

// FetchConfig 抓取配置
type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	Backoff           time.Duration `mapstructure:"backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
}

// RetryPolicy 返回抓取重试策略
func (c *FetchConfig) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: c.MaxAttempts,
		Backoff:     c.Backoff,
		Multiplier:  c.BackoffMultiplier,
		MaxBackoff:  c.MaxBackoff,
	}
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`

	// 连接配置
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 连接池配置
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	// 超时配置
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	MaxRequests   uint32        `mapstructure:"max_requests"`
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FailureRatio  float64       `mapstructure:"failure_ratio"`
	MinRequests   uint32        `mapstructure:"min_requests"`
	OnStateChange bool          `mapstructure:"on_state_change"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Game == nil || c.Fetch == nil || c.CircuitBreaker == nil || c.Redis == nil || c.Metrics == nil || c.Server == nil {
		return ErrConfigInvalid.WithDetails("missing configuration section")
	}

	// 验证游戏配置
	if _, ok := BuiltinProfiles()[c.Game.ID]; !ok {
		return ErrConfigInvalid.WithCause(ErrUnknownGame.WithDetails(c.Game.ID))
	}
	if c.Game.QuickPicks < 0 || c.Game.QuickPicks > MaxPlaysPerRound {
		return ErrConfigInvalid.WithDetailsf("game.quick_picks must be in [0, %d]", MaxPlaysPerRound)
	}

	// 验证抓取配置
	if c.Fetch.Timeout <= 0 {
		return ErrConfigInvalid.WithDetails("fetch.timeout must be positive")
	}
	if err := c.Fetch.RetryPolicy().Validate(); err != nil {
		return err
	}

	// 验证数据源
	if len(c.Sources) == 0 {
		return ErrConfigInvalid.WithDetails("at least one source is required")
	}
	for id, source := range c.Sources {
		if err := source.Validate(); err != nil {
			return ErrConfigInvalid.WithCause(err).WithDetailsf("sources.%s", id)
		}
	}
	if _, ok := c.Sources[c.Game.ID]; !ok {
		return ErrConfigInvalid.WithDetailsf("no source configured for game %s", c.Game.ID)
	}

	// 验证熔断器配置
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureRatio <= 0 || c.CircuitBreaker.FailureRatio > 1 {
			return ErrConfigInvalid.WithDetails("circuit_breaker.failure_ratio must be in (0, 1]")
		}
	}

	// 验证 Redis 配置
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return ErrConfigInvalid.WithDetails("redis address is required")
		}
		if c.Redis.PoolSize <= 0 {
			return ErrConfigInvalid.WithDetails("redis pool size must be positive")
		}
	}

	if c.Server.Addr == "" {
		return ErrConfigInvalid.WithDetails("server.addr is required")
	}
	return nil
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:       true,
		Name:          DefaultCircuitBreakerName,
		MaxRequests:   DefaultCircuitBreakerMaxRequests,
		Interval:      DefaultCircuitBreakerInterval,
		Timeout:       DefaultCircuitBreakerTimeout,
		FailureRatio:  DefaultCircuitBreakerFailureRatio,
		MinRequests:   DefaultCircuitBreakerMinRequests,
		OnStateChange: DefaultCircuitBreakerOnStateChange,
	}
}

// DefaultRedisConfig 返回默认的Redis配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Enabled:      false,
		TTL:          DefaultRoundTTL,
		Addr:         DefaultRedisAddr,
		Password:     DefaultRedisPassword,
		DB:           DefaultRedisDB,
		PoolSize:     DefaultRedisPoolSize,
		MinIdleConns: DefaultRedisMinIdleConns,
		MaxRetries:   DefaultRedisMaxRetries,
		DialTimeout:  DefaultRedisDialTimeout,
		ReadTimeout:  DefaultRedisReadTimeout,
		WriteTimeout: DefaultRedisWriteTimeout,
		PoolTimeout:  DefaultRedisPoolTimeout,
	}
}

// DefaultConfig 返回完整的默认配置
func DefaultConfig() *Config {
	return &Config{
		Game: &GameConfig{ID: DefaultGameID, QuickPicks: 1},
		Fetch: &FetchConfig{
			Timeout:           DefaultFetchTimeout,
			MaxAttempts:       DefaultFetchMaxAttempts,
			Backoff:           DefaultFetchBackoff,
			BackoffMultiplier: DefaultFetchBackoffMultiplier,
			MaxBackoff:        DefaultFetchMaxBackoff,
		},
		Sources:        DefaultSources(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Redis:          DefaultRedisConfig(),
		Metrics:        &MetricsConfig{Enabled: true, Namespace: DefaultMetricsNamespace},
		Server:         &ServerConfig{Addr: DefaultServerAddr},
	}
}

// NewRedisClientFromConfig 从配置创建Redis客户端
func NewRedisClientFromConfig(config *RedisConfig) *redis.Client {
	if config == nil {
		config = DefaultRedisConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
	})
}

// ConfigManager 配置管理器
type ConfigManager struct {
	viper  *viper.Viper
	logger Logger

	mu     sync.RWMutex
	config *Config
}

// NewConfigManager 创建配置管理器
func NewConfigManager(logger Logger) *ConfigManager {
	v := viper.New()

	// 设置配置文件名和路径
	v.SetConfigName("lotterysim")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lotterysim")
	v.AddConfigPath("$HOME/.lotterysim")

	// 设置环境变量前缀
	v.SetEnvPrefix("LOTTERYSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cm := &ConfigManager{viper: v, logger: loggerOrSilent(logger)}
	cm.setDefaults()
	return cm
}

// SetConfigFile 指定配置文件路径, 跳过搜索路径
func (cm *ConfigManager) SetConfigFile(path string) {
	cm.viper.SetConfigFile(path)
}

// LoadConfig 加载配置
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	// 读取配置文件
	if err := cm.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, ErrConfigInvalid.WithCause(err).WithDetails("failed to read config file")
		}
		// 配置文件不存在时使用默认配置
		cm.logger.Debug("No config file found, using defaults")
	} else {
		cm.logger.Info("Loaded config from %s", cm.viper.ConfigFileUsed())
	}

	config, err := cm.decode()
	if err != nil {
		return nil, err
	}

	cm.mu.Lock()
	cm.config = config
	cm.mu.Unlock()
	return config, nil
}

func (cm *ConfigManager) decode() (*Config, error) {
	config := DefaultConfig()
	if err := cm.viper.Unmarshal(config); err != nil {
		return nil, ErrConfigInvalid.WithCause(err).WithDetails("failed to unmarshal config")
	}

	// 数据源名称默认取其键名
	for id, source := range config.Sources {
		if source.Name == "" {
			source.Name = id
			config.Sources[id] = source
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults 设置默认配置值
func (cm *ConfigManager) setDefaults() {
	d := DefaultConfig()

	// 游戏默认配置
	cm.viper.SetDefault("game.id", d.Game.ID)
	cm.viper.SetDefault("game.multiplier", d.Game.Multiplier)
	cm.viper.SetDefault("game.quick_picks", d.Game.QuickPicks)

	// 抓取默认配置
	cm.viper.SetDefault("fetch.timeout", d.Fetch.Timeout)
	cm.viper.SetDefault("fetch.user_agent", "")
	cm.viper.SetDefault("fetch.max_attempts", d.Fetch.MaxAttempts)
	cm.viper.SetDefault("fetch.backoff", d.Fetch.Backoff)
	cm.viper.SetDefault("fetch.backoff_multiplier", d.Fetch.BackoffMultiplier)
	cm.viper.SetDefault("fetch.max_backoff", d.Fetch.MaxBackoff)

	// 数据源默认配置
	for id, source := range d.Sources {
		prefix := "sources." + id + "."
		cm.viper.SetDefault(prefix+"name", source.Name)
		cm.viper.SetDefault(prefix+"url", source.URL)
		cm.viper.SetDefault(prefix+"jackpot_selector.element", source.JackpotSelector.Element)
		cm.viper.SetDefault(prefix+"jackpot_selector.class_contains", source.JackpotSelector.ClassContains)
		cm.viper.SetDefault(prefix+"draw_date_selector.element", source.DrawDateSelector.Element)
		cm.viper.SetDefault(prefix+"draw_date_selector.class_contains", source.DrawDateSelector.ClassContains)
		cm.viper.SetDefault(prefix+"markup_offset", source.MarkupOffset)
		cm.viper.SetDefault(prefix+"amount_scale", source.AmountScale)
	}

	// 熔断器默认配置
	cm.viper.SetDefault("circuit_breaker.enabled", d.CircuitBreaker.Enabled)
	cm.viper.SetDefault("circuit_breaker.name", d.CircuitBreaker.Name)
	cm.viper.SetDefault("circuit_breaker.max_requests", d.CircuitBreaker.MaxRequests)
	cm.viper.SetDefault("circuit_breaker.interval", d.CircuitBreaker.Interval)
	cm.viper.SetDefault("circuit_breaker.timeout", d.CircuitBreaker.Timeout)
	cm.viper.SetDefault("circuit_breaker.failure_ratio", d.CircuitBreaker.FailureRatio)
	cm.viper.SetDefault("circuit_breaker.min_requests", d.CircuitBreaker.MinRequests)
	cm.viper.SetDefault("circuit_breaker.on_state_change", d.CircuitBreaker.OnStateChange)

	// Redis 默认配置
	cm.viper.SetDefault("redis.enabled", d.Redis.Enabled)
	cm.viper.SetDefault("redis.ttl", d.Redis.TTL)
	cm.viper.SetDefault("redis.addr", d.Redis.Addr)
	cm.viper.SetDefault("redis.password", d.Redis.Password)
	cm.viper.SetDefault("redis.db", d.Redis.DB)
	cm.viper.SetDefault("redis.pool_size", d.Redis.PoolSize)
	cm.viper.SetDefault("redis.min_idle_conns", d.Redis.MinIdleConns)
	cm.viper.SetDefault("redis.max_retries", d.Redis.MaxRetries)
	cm.viper.SetDefault("redis.dial_timeout", d.Redis.DialTimeout)
	cm.viper.SetDefault("redis.read_timeout", d.Redis.ReadTimeout)
	cm.viper.SetDefault("redis.write_timeout", d.Redis.WriteTimeout)
	cm.viper.SetDefault("redis.pool_timeout", d.Redis.PoolTimeout)

	// 指标与服务默认配置
	cm.viper.SetDefault("metrics.enabled", d.Metrics.Enabled)
	cm.viper.SetDefault("metrics.namespace", d.Metrics.Namespace)
	cm.viper.SetDefault("server.addr", d.Server.Addr)
}

// WatchConfig 监听配置变化
func (cm *ConfigManager) WatchConfig(callback func(*Config)) {
	cm.viper.OnConfigChange(func(e fsnotify.Event) {
		config, err := cm.decode()
		if err != nil {
			// 记录错误但不中断服务
			cm.logger.Error("Ignoring invalid config change from %s: %v", e.Name, err)
			return
		}

		cm.mu.Lock()
		cm.config = config
		cm.mu.Unlock()

		cm.logger.Info("Config reloaded from %s", e.Name)
		if callback != nil {
			callback(config)
		}
	})
	cm.viper.WatchConfig()
}

// GetConfig 获取当前配置
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Source 返回指定游戏的数据源
func (c *Config) Source(game string) (DataSource, error) {
	source, ok := c.Sources[game]
	if !ok {
		return DataSource{}, ErrUnknownGame.WithDetailsf("no source for %q", game)
	}
	return source, nil
}
