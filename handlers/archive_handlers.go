package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"webbank/apperr"
	"webbank/archiver"
	"webbank/models"
)

// Archiver is the service surface the handlers call.
type Archiver interface {
	Save(ctx context.Context, link string) (*models.ArchivedPage, error)
	List(ctx context.Context) ([]models.PageListing, error)
	Delete(ctx context.Context, id uint) error
	RenameTitle(ctx context.Context, id uint, title string) (*models.ArchivedPage, error)
	Upload(ctx context.Context, files []archiver.UploadFile) ([]archiver.UploadResult, error)
	Artifact(path string) (string, bool)
}

// Handler serves the archive API.
type Handler struct {
	svc Archiver
	log *zap.Logger
}

// New builds a Handler.
func New(svc Archiver, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

// SaveLinkPayload is the body of POST /api/save-link.
type SaveLinkPayload struct {
	Link string `json:"link"`
}

// UpdateTitlePayload is the body of PUT /api/website/:id/update-title.
type UpdateTitlePayload struct {
	Title string `json:"title"`
}

// SaveLink captures and archives a link.
func (h *Handler) SaveLink(c *fiber.Ctx) error {
	payload := new(SaveLinkPayload)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Cannot parse JSON payload",
		})
	}
	link := strings.TrimSpace(payload.Link)
	if link == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Link is required",
		})
	}

	page, err := h.svc.Save(c.UserContext(), link)
	if err != nil {
		return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{
			"message": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Link saved: %s", link),
		"website": page,
	})
}

// GetLinks lists every archived page with its existence flag.
func (h *Handler) GetLinks(c *fiber.Ctx) error {
	pages, err := h.svc.List(c.UserContext())
	if err != nil {
		h.log.Error("Failed to fetch websites", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to fetch websites",
			"details": err.Error(),
		})
	}
	return c.JSON(pages)
}

// UpdateTitle renames an archived page.
func (h *Handler) UpdateTitle(c *fiber.Ctx) error {
	payload := new(UpdateTitlePayload)
	if err := c.BodyParser(payload); err != nil || strings.TrimSpace(payload.Title) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title is required",
		})
	}
	id, ok := parseID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid website ID",
		})
	}

	page, err := h.svc.RenameTitle(c.UserContext(), id, payload.Title)
	if err != nil {
		return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{
			"error":   "Failed to update website title",
			"details": err.Error(),
		})
	}
	return c.JSON(page)
}

// DeleteWebsite removes a record and its artifact.
func (h *Handler) DeleteWebsite(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid website ID",
		})
	}

	if err := h.svc.Delete(c.UserContext(), id); err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "Website not found",
				"details": err.Error(),
			})
		}
		h.log.Error("Error deleting website", zap.Uint("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "An error occurred while deleting the website",
			"details": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"message":   "Website successfully deleted",
		"deletedId": id,
	})
}

// UploadFiles imports HTML and PDF files sent as multipart field "files".
func (h *Handler) UploadFiles(c *fiber.Ctx) error {
	fail := func(err error) error {
		h.log.Error("Upload error", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "File upload failed",
			"details": err.Error(),
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fail(err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return fail(errors.New("no files uploaded"))
	}

	files := make([]archiver.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFile(fh))
	}
	results, err := h.svc.Upload(c.UserContext(), files)
	if err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{
		"message": "Files uploaded successfully",
		"results": results,
	})
}

func uploadFile(fh *multipart.FileHeader) archiver.UploadFile {
	return archiver.UploadFile{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// SetupRoutes configures the API routes for the application.
func (h *Handler) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	api.Post("/save-link", h.SaveLink)
	api.Get("/get-links", h.GetLinks)
	api.Get("/saved-page", h.SavedPage)
	api.Put("/website/:id/update-title", h.UpdateTitle)
	api.Delete("/delete-website/:id", h.DeleteWebsite)
	api.Post("/upload-files", h.UploadFiles)
}
