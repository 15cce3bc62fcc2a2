package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ObjectRoute 是对象读取接口的路由模板。
const ObjectRoute = "/v1/objects/:id"

// ProxyHandler describes the component responsible for serving one object,
// either from the local cache or from the upstream store. It allows
// injecting fake handlers during tests.
type ProxyHandler interface {
	Handle(c fiber.Ctx, objectID string) error
}

// ProxyHandlerFunc adapts a function to the ProxyHandler interface.
type ProxyHandlerFunc func(fiber.Ctx, string) error

// Handle makes ProxyHandlerFunc satisfy ProxyHandler.
func (f ProxyHandlerFunc) Handle(c fiber.Ctx, objectID string) error {
	return f(c, objectID)
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Proxy      ProxyHandler
	ListenPort int
}

const contextKeyRequestID = "_teecache_request_id"

// NewApp builds a Fiber application with request-ID middleware, the object
// route, and a JSON 404 for everything outside /v1/objects and /-/.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.Add([]string{fiber.MethodGet, fiber.MethodHead}, ObjectRoute, func(c fiber.Ctx) error {
		return opts.Proxy.Handle(c, c.Params("id"))
	})

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		return renderRouteNotFound(c, opts.Logger, opts.ListenPort)
	})

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID 并写回 X-Request-ID。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func renderRouteNotFound(c fiber.Ctx, logger *logrus.Logger, port int) error {
	fields := logrus.Fields{
		"action":     "route_lookup",
		"method":     c.Method(),
		"path":       string(c.Request().URI().Path()),
		"port":       port,
		"request_id": RequestID(c),
	}
	logger.WithFields(fields).Warn("route not found")

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "route_not_found",
	})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
