package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/teecache/internal/cache"
	"github.com/any-hub/teecache/internal/config"
)

// ErrObjectNotFound 表示上游也不存在该对象。
var ErrObjectNotFound = errors.New("upstream object not found")

// StatusError 携带上游非 2xx 状态码。
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.URL, e.StatusCode)
}

// Retryable 只有 5xx 值得重试。
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// Response 是一次成功回源的结果，调用方负责关闭 Body。
type Response struct {
	Object      cache.Object
	Size        int64
	ContentType string
	Header      http.Header
	Body        io.ReadCloser
}

// Client 通过 GET <base>/<id> 从对象存储读取对象。
type Client struct {
	http       *http.Client
	base       *url.URL
	username   string
	password   string
	nameHeader string
	attempts   uint
	backoff    time.Duration
	logger     *logrus.Logger
}

// NewClient 根据配置构造回源客户端。
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	base, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	var proxyURL *url.URL
	if cfg.Upstream.Proxy != "" {
		proxyURL, err = url.Parse(cfg.Upstream.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream proxy: %w", err)
		}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	nameHeader := cfg.Upstream.NameHeader
	if nameHeader == "" {
		nameHeader = config.DefaultNameHeader
	}

	return &Client{
		http:       NewHTTPClient(cfg.Global.UpstreamTimeout.DurationValue(), proxyURL),
		base:       base,
		username:   cfg.Upstream.Username,
		password:   cfg.Upstream.Password,
		nameHeader: nameHeader,
		attempts:   uint(cfg.Global.MaxRetries) + 1,
		backoff:    cfg.Global.InitialBackoff.DurationValue(),
		logger:     logger,
	}, nil
}

// ObjectURL 返回对象在上游的地址。
func (c *Client) ObjectURL(id string) *url.URL {
	return c.base.JoinPath(url.PathEscape(id))
}

// Fetch 读取对象。连接错误与 5xx 会按指数退避重试；404 返回 ErrObjectNotFound。
func (c *Client) Fetch(ctx context.Context, id string) (*Response, error) {
	target := c.ObjectURL(id).String()

	resp, err := retry.DoWithData(
		func() (*http.Response, error) {
			return c.get(ctx, target)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.backoff),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WithFields(logrus.Fields{
				"action":    "upstream_retry",
				"object_id": id,
				"upstream":  target,
				"attempt":   n + 1,
			}).WithError(err).Warn("upstream fetch failed, retrying")
		}),
	)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(resp.Header.Get(c.nameHeader))
	if name == "" {
		name = id
	}
	return &Response{
		Object:      cache.Object{ID: id, Name: name},
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Body:        resp.Body,
	}, nil
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound:
		drain(resp.Body)
		return nil, ErrObjectNotFound
	default:
		drain(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: target}
	}
}

func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	if errors.Is(err, ErrObjectNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	body.Close()
}
