package routes

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/teecache/internal/cache"
	"github.com/any-hub/teecache/internal/server"
)

// RegisterCacheRoutes 暴露 /-/cache 诊断与运维接口：列出条目、统计、查询与清理。
func RegisterCacheRoutes(app *fiber.App, store *cache.Store, logger *logrus.Logger) {
	if app == nil || store == nil {
		return
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	app.Get("/-/cache/stats", func(c fiber.Ctx) error {
		stats, err := store.Stats()
		if err != nil {
			return renderCacheError(c, logger, "cache_stats", "", err)
		}
		return c.JSON(statsPayload{
			Enabled:    store.Enabled(),
			Root:       store.Config().Root,
			Entries:    stats.Entries,
			TotalBytes: stats.TotalBytes,
		})
	})

	app.Get("/-/cache/entries", func(c fiber.Ctx) error {
		entries, err := store.Describe()
		if err != nil {
			return renderCacheError(c, logger, "cache_list", "", err)
		}
		if entries == nil {
			entries = []cache.EntryInfo{}
		}
		return c.JSON(fiber.Map{
			"enabled": store.Enabled(),
			"entries": entries,
		})
	})

	app.Add([]string{fiber.MethodGet, fiber.MethodHead}, "/-/cache/entries/:id", func(c fiber.Ctx) error {
		id := c.Params("id")
		entry, err := store.Lookup(id)
		if err != nil {
			return renderCacheError(c, logger, "cache_lookup", id, err)
		}
		if c.Method() == fiber.MethodHead {
			return c.SendStatus(fiber.StatusOK)
		}
		return c.JSON(entry)
	})

	app.Delete("/-/cache/entries/:id", func(c fiber.Ctx) error {
		id := c.Params("id")
		if err := store.Purge(id); err != nil {
			return renderCacheError(c, logger, "cache_purge", id, err)
		}
		logAdmin(c, logger, "cache_purge", id)
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Delete("/-/cache/entries", func(c fiber.Ctx) error {
		if err := store.PurgeAll(); err != nil {
			return renderCacheError(c, logger, "cache_purge_all", "", err)
		}
		logAdmin(c, logger, "cache_purge_all", "")
		return c.SendStatus(fiber.StatusNoContent)
	})
}

type statsPayload struct {
	Enabled    bool   `json:"enabled"`
	Root       string `json:"root,omitempty"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"total_bytes"`
}

func renderCacheError(c fiber.Ctx, logger *logrus.Logger, action, id string, err error) error {
	switch {
	case errors.Is(err, cache.ErrInvalidID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_object_id"})
	case errors.Is(err, cache.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "entry_not_found"})
	}
	logger.WithFields(adminFields(c, action, id)).WithError(err).Error("cache admin request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_error"})
}

func logAdmin(c fiber.Ctx, logger *logrus.Logger, action, id string) {
	logger.WithFields(adminFields(c, action, id)).Info("cache admin request completed")
}

func adminFields(c fiber.Ctx, action, id string) logrus.Fields {
	fields := logrus.Fields{"action": action}
	if id != "" {
		fields["object_id"] = id
	}
	if reqID := server.RequestID(c); reqID != "" {
		fields["request_id"] = reqID
	}
	return fields
}
