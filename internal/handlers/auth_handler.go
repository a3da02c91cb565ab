package handlers

import (
	"log"
	"time"

	"lifelog/internal/apperr"
	"lifelog/internal/middleware"
	"lifelog/internal/models"
	"lifelog/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for accounts and sessions.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the account routes. guard protects the
// profile routes; signup, login and logout stay public.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, guard fiber.Handler) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/signup", h.HandleSignup)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/logout", h.HandleLogout)
	authRoutes.Get("/profile", guard, h.HandleGetProfile)
	authRoutes.Put("/update-profile", guard, h.HandleUpdateProfile)
	authRoutes.Get("/check-auth", guard, h.HandleCheckAuth)
}

// setSessionCookie delivers the session token the way the SPA expects it:
// HTTP-only, secure, usable cross-site, scoped to the whole API.
func setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     services.SessionCookie,
		Value:    token,
		MaxAge:   int(services.SessionDuration.Seconds()),
		Expires:  time.Now().Add(services.SessionDuration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteNoneMode,
		Path:     "/",
	})
}

func clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     services.SessionCookie,
		Value:    "",
		MaxAge:   -1,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteNoneMode,
		Path:     "/",
	})
}

func respondError(c *fiber.Ctx, err error) error {
	return c.Status(apperr.Status(err)).JSON(fiber.Map{
		"message": apperr.Message(err),
	})
}

// SignupRequest represents the request body for signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleSignup registers a new account and opens a session for it.
func (h *AuthHandler) HandleSignup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing signup request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "All fields are required",
		})
	}

	user, err := h.authService.Signup(req.Username, req.Email, req.Password)
	if err != nil {
		log.Printf("Error during signup: %v", err)
		return respondError(c, err)
	}

	token, err := h.authService.IssueToken(user.ID)
	if err != nil {
		log.Printf("Error issuing session after signup: %v", err)
		return respondError(c, err)
	}
	setSessionCookie(c, token)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Signup successful!",
		"user":    user.Public(),
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin authenticates a user and opens a session. Bad credentials come
// back as 400 with one generic message, whichever field was wrong.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing login request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid credentials",
		})
	}

	user, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		log.Printf("Error during login for %s: %v", req.Email, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid credentials",
		})
	}

	token, err := h.authService.IssueToken(user.ID)
	if err != nil {
		log.Printf("Error issuing session after login: %v", err)
		return respondError(c, err)
	}
	setSessionCookie(c, token)

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user":    user.Public(),
	})
}

// HandleLogout clears the session cookie. Idempotent, always succeeds.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	clearSessionCookie(c)
	return c.JSON(fiber.Map{
		"message": "Logged out successfully",
	})
}

// HandleGetProfile returns the authenticated caller's public profile.
func (h *AuthHandler) HandleGetProfile(c *fiber.Ctx) error {
	user, ok := c.Locals(middleware.UserKey).(*models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}
	return c.JSON(user.Public())
}

// UpdateProfileRequest represents the request body for a profile update. An
// empty ProfilePic removes the current avatar.
type UpdateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

// HandleUpdateProfile sets or removes the caller's avatar.
func (h *AuthHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	user, ok := c.Locals(middleware.UserKey).(*models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Unauthorized",
		})
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing update-profile request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	updated, err := h.authService.UpdateProfile(c.Context(), user.ID, req.ProfilePic)
	if err != nil {
		log.Printf("Error updating profile for user %s: %v", user.ID, err)
		return respondError(c, err)
	}

	return c.JSON(updated.Public())
}

// HandleCheckAuth reports whether the caller holds a valid session.
func (h *AuthHandler) HandleCheckAuth(c *fiber.Ctx) error {
	user, ok := c.Locals(middleware.UserKey).(*models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"valid": false,
		})
	}
	return c.JSON(fiber.Map{
		"valid": true,
		"user":  user.Public(),
	})
}
