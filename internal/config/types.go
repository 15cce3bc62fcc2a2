package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/teecache/internal/cache"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级行为：监听、日志、缓存目录与回源参数。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	CacheEnabled    bool     `mapstructure:"CacheEnabled"`
	CacheRoot       string   `mapstructure:"CacheRoot"`
	PurgeWorkers    int      `mapstructure:"PurgeWorkers"`
	HitCounter      bool     `mapstructure:"HitCounter"`
	StagingMaxAge   Duration `mapstructure:"StagingMaxAge"`
	JanitorSchedule string   `mapstructure:"JanitorSchedule"`
	MaxRetries      int      `mapstructure:"MaxRetries"`
	InitialBackoff  Duration `mapstructure:"InitialBackoff"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// UpstreamConfig 描述缓存未命中时回源的对象存储。
type UpstreamConfig struct {
	URL        string `mapstructure:"URL"`
	Proxy      string `mapstructure:"Proxy"`
	Username   string `mapstructure:"Username"`
	Password   string `mapstructure:"Password"`
	NameHeader string `mapstructure:"NameHeader"`
}

// HasCredentials 表示是否需要向上游发送 Basic 认证。
func (u UpstreamConfig) HasCredentials() bool {
	return u.Username != "" && u.Password != ""
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig   `mapstructure:",squash"`
	Upstream UpstreamConfig `mapstructure:"Upstream"`
}

// CacheConfig 导出缓存核心需要的最小配置。
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Enabled: c.Global.CacheEnabled,
		Root:    c.Global.CacheRoot,
	}
}

// CacheOptions 根据配置生成缓存可选项。
func (c *Config) CacheOptions() []cache.Option {
	opts := []cache.Option{cache.WithPurgeWorkers(c.Global.PurgeWorkers)}
	if c.Global.HitCounter {
		opts = append(opts, cache.WithHitCounter())
	}
	return opts
}
