package handlers

import (
	"log"

	"lifelog/internal/middleware"
	"lifelog/internal/models"
	"lifelog/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// EntryHandler handles HTTP requests for diary entries.
type EntryHandler struct {
	service  *services.EntryService
	validate *validator.Validate
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(service *services.EntryService) *EntryHandler {
	return &EntryHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the entry routes, all behind the session guard.
// The literal routes go first so "/all" never matches ":id".
func (h *EntryHandler) RegisterRoutes(router fiber.Router, guard fiber.Handler) {
	entryRoutes := router.Group("/entry", guard)
	entryRoutes.Post("/create", h.HandleCreateEntry)
	entryRoutes.Get("/all", h.HandleGetEntries)
	entryRoutes.Put("/edit/:id", h.HandleEditEntry)
	entryRoutes.Get("/:id", h.HandleGetEntryByID)
	entryRoutes.Delete("/:id", h.HandleDeleteEntry)
}

func currentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(middleware.UserKey).(*models.User)
	return user, ok
}

// CreateEntryRequest represents the request body for creating an entry.
// Images are base64 payloads, not references.
type CreateEntryRequest struct {
	Title   string   `json:"title" validate:"required"`
	Content string   `json:"content" validate:"required"`
	Images  []string `json:"images"`
}

// HandleCreateEntry creates a new entry for the authenticated caller.
func (h *EntryHandler) HandleCreateEntry(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	}

	var req CreateEntryRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create-entry request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Fill title and content",
		})
	}

	entry, err := h.service.Create(c.Context(), user.ID, req.Title, req.Content, req.Images)
	if err != nil {
		log.Printf("Error creating entry for user %s: %v", user.ID, err)
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}

// HandleGetEntries lists the caller's entries, newest first.
func (h *EntryHandler) HandleGetEntries(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	}

	entries, err := h.service.List(c.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing entries for user %s: %v", user.ID, err)
		return respondError(c, err)
	}
	return c.JSON(entries)
}

// HandleGetEntryByID returns a single owned entry.
func (h *EntryHandler) HandleGetEntryByID(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	}

	entry, err := h.service.GetByID(c.Context(), user.ID, c.Params("id"))
	if err != nil {
		log.Printf("Error fetching entry %s for user %s: %v", c.Params("id"), user.ID, err)
		return respondError(c, err)
	}
	return c.JSON(entry)
}

// EditEntryRequest represents the request body for editing an entry. Every
// field is optional; omitted or empty means "keep existing".
type EditEntryRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

// HandleEditEntry updates an owned entry.
func (h *EntryHandler) HandleEditEntry(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	}

	var req EditEntryRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing edit-entry request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	entry, err := h.service.Update(c.Context(), user.ID, c.Params("id"), req.Title, req.Content, req.Images)
	if err != nil {
		log.Printf("Error editing entry %s for user %s: %v", c.Params("id"), user.ID, err)
		return respondError(c, err)
	}
	return c.JSON(entry)
}

// HandleDeleteEntry deletes an owned entry and releases its images.
func (h *EntryHandler) HandleDeleteEntry(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unauthorized"})
	}

	if err := h.service.Delete(c.Context(), user.ID, c.Params("id")); err != nil {
		log.Printf("Error deleting entry %s for user %s: %v", c.Params("id"), user.ID, err)
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Memory deleted successfully!",
	})
}
