package handlers

import (
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"webbank/apperr"
	"webbank/metrics"
)

// AppOptions configures NewApp.
type AppOptions struct {
	BodyLimit int
	StaticDir string // UI build served with an index.html fallback; skipped when missing
}

// NewApp builds the fiber application with middleware, the API, the
// metrics endpoint and the optional UI.
func NewApp(h *Handler, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(RequestLogger(h.log))
	app.Use(metrics.Middleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	h.SetupRoutes(app)
	h.mountUI(app, opts.StaticDir)
	return app
}

func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	code := apperr.HTTPStatus(err)
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (h *Handler) mountUI(app *fiber.App, dir string) {
	if dir == "" {
		return
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		h.log.Info("UI build not found, serving API only", zap.String("dir", dir))
		return
	}
	app.Static("/", dir)
	app.Get("*", func(c *fiber.Ctx) error {
		return c.SendFile(index)
	})
}
