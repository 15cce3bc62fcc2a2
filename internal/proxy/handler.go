package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/teecache/internal/cache"
	"github.com/any-hub/teecache/internal/logging"
	"github.com/any-hub/teecache/internal/server"
	"github.com/any-hub/teecache/internal/upstream"
)

const defaultContentType = "application/octet-stream"

// Fetcher 抽象回源读取，测试中可替换为假实现。
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*upstream.Response, error)
}

// Handler 负责 orchestrate “缓存命中 → 直接返回；未命中 → 回源并 tee 写缓存” 的全流程。
type Handler struct {
	fetcher Fetcher
	logger  *logrus.Logger
	store   *cache.Store
}

// NewHandler constructs a proxy handler with shared fetcher/logger/store.
func NewHandler(fetcher Fetcher, logger *logrus.Logger, store *cache.Store) *Handler {
	return &Handler{
		fetcher: fetcher,
		logger:  logger,
		store:   store,
	}
}

// Handle 实现 server.ProxyHandler，任何阶段出错都会输出结构化日志。
func (h *Handler) Handle(c fiber.Ctx, objectID string) error {
	started := time.Now()
	requestID := server.RequestID(c)

	if err := cache.ValidateID(objectID); err != nil {
		h.logResult(objectID, requestID, fiber.StatusBadRequest, false, started, err)
		return h.writeError(c, fiber.StatusBadRequest, "invalid_object_id")
	}

	if h.store.Enabled() {
		sess, err := h.store.Open(cache.Object{ID: objectID}, cache.ModeRead)
		switch {
		case err == nil:
			return h.serveCache(c, sess, requestID, started)
		case errors.Is(err, cache.ErrNotFound):
			// miss, continue
		default:
			h.logger.WithError(err).
				WithFields(logging.ObjectFields(objectID, false)).
				Warn("cache_get_failed")
		}
	}

	return h.fetchAndStream(c, objectID, requestID, started)
}

func (h *Handler) serveCache(c fiber.Ctx, sess *cache.Session, requestID string, started time.Time) error {
	c.Set(fiber.HeaderContentType, defaultContentType)
	c.Set("X-Cache-Hit", "true")
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(fiber.StatusOK)

	c.Response().Header.SetContentLength(int(sess.Size()))

	if c.Method() == http.MethodHead {
		err := sess.Close()
		h.logResult(sess.ID(), requestID, fiber.StatusOK, true, started, err)
		return nil
	}

	_, err := io.Copy(c.Response().BodyWriter(), sess)
	if closeErr := sess.Close(); err == nil {
		err = closeErr
	}
	h.logResult(sess.ID(), requestID, fiber.StatusOK, true, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("read cache failed: %v", err))
	}
	return nil
}

func (h *Handler) fetchAndStream(c fiber.Ctx, objectID, requestID string, started time.Time) error {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := h.fetcher.Fetch(ctx, objectID)
	if err != nil {
		if errors.Is(err, upstream.ErrObjectNotFound) {
			h.logResult(objectID, requestID, fiber.StatusNotFound, false, started, nil)
			return h.writeError(c, fiber.StatusNotFound, "object_not_found")
		}
		h.logResult(objectID, requestID, fiber.StatusBadGateway, false, started, err)
		return h.writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}
	defer resp.Body.Close()

	copyResponseHeaders(c, resp.Header)
	if resp.ContentType == "" {
		c.Set(fiber.HeaderContentType, defaultContentType)
	}
	c.Set("X-Cache-Hit", "false")
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(fiber.StatusOK)

	if c.Method() == http.MethodHead {
		if resp.Size >= 0 {
			c.Response().Header.SetContentLength(int(resp.Size))
		}
		h.logResult(objectID, requestID, fiber.StatusOK, false, started, nil)
		return nil
	}

	_, err = h.store.Fill(ctx, resp.Object, resp.Body, c.Response().BodyWriter())
	h.logResult(objectID, requestID, fiber.StatusOK, false, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("proxy stream failed: %v", err))
	}
	return nil
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	objectID string,
	requestID string,
	status int,
	cacheHit bool,
	started time.Time,
	err error,
) {
	fields := logging.ObjectFields(objectID, cacheHit)
	fields["action"] = "proxy"
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if upstream.IsHopByHopHeader(key) || key == fiber.HeaderContentLength {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}
}
