package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别: "+g.LogLevel)
	}
	if g.CacheEnabled && g.CacheRoot == "" {
		return newFieldError("Global.CacheRoot", "启用缓存时不能为空")
	}
	if g.PurgeWorkers < 0 {
		return newFieldError("Global.PurgeWorkers", "不能为负数")
	}
	if g.StagingMaxAge.DurationValue() < 0 {
		return newFieldError("Global.StagingMaxAge", "不能为负数")
	}
	if g.JanitorSchedule != "" {
		if g.StagingMaxAge.DurationValue() <= 0 {
			return newFieldError("Global.JanitorSchedule", "需要同时设置 StagingMaxAge")
		}
		if _, err := cron.ParseStandard(g.JanitorSchedule); err != nil {
			return newFieldError("Global.JanitorSchedule", err.Error())
		}
	}
	if g.MaxRetries < 0 {
		return newFieldError("Global.MaxRetries", "不能为负数")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Global.InitialBackoff", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	u := c.Upstream
	if err := validateUpstream(u.URL); err != nil {
		return fmt.Errorf("Upstream.URL: %w", err)
	}
	if u.Proxy != "" {
		if err := validateUpstream(u.Proxy); err != nil {
			return fmt.Errorf("Upstream.Proxy: %w", err)
		}
	}
	if (u.Username == "") != (u.Password == "") {
		return newFieldError("Upstream.Username/Password", "必须同时提供或同时留空")
	}

	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
