package handlers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"webbank/proxy"
	"webbank/storage"
)

// SavedPage serves an archived artifact. HTML is rewritten so relative
// references come back through this endpoint; PDFs stream inline; other
// files go out with a type derived from their extension.
func (h *Handler) SavedPage(c *fiber.Ctx) error {
	requested := c.Query("path")
	if requested == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "File path is required"})
	}

	path, ok := h.svc.Artifact(filepath.Clean(requested))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "File not found"})
	}

	switch {
	case storage.IsPDFName(path):
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, "inline")
		return h.sendRaw(c, requested, path)
	case storage.IsHTMLName(path):
		return h.sendHTML(c, requested, path)
	default:
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
			c.Type(ext)
		} else {
			c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		}
		return h.sendRaw(c, requested, path)
	}
}

func (h *Handler) sendHTML(c *fiber.Ctx, requested, path string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	content, err := os.ReadFile(path)
	if err != nil {
		h.log.Warn("Could not read page for rewriting, sending raw file", zap.String("path", path), zap.Error(err))
		return h.sendRaw(c, requested, path)
	}
	out, err := proxy.Rewrite(content, filepath.Dir(path))
	if err != nil {
		h.log.Warn("Link rewrite failed, sending raw file", zap.String("path", path), zap.Error(err))
		return c.Send(content)
	}
	return c.Send(out)
}

func (h *Handler) sendRaw(c *fiber.Ctx, requested, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return h.serveError(c, requested, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return h.serveError(c, requested, err)
	}
	return c.SendStream(f, int(info.Size()))
}

func (h *Handler) serveError(c *fiber.Ctx, requested string, err error) error {
	h.log.Error("Error serving file", zap.String("path", requested), zap.Error(err))
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Error serving file",
		"details": err.Error(),
		"path":    requested,
	})
}
