package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"tourmail/storage"
	"tourmail/utils"
)

// AuthHandler signs operators in and out of the mail center.
type AuthHandler struct {
	operators *storage.OperatorStorage
	jwtSecret string
	tokenTTL  time.Duration
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(operators *storage.OperatorStorage, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	if tokenTTL == 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AuthHandler{
		operators: operators,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies credentials and sets the session cookie.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("invalid login payload", err)
	}
	if req.Email == "" || req.Password == "" {
		return utils.BadRequestError("email and password are required", nil)
	}

	op, err := h.operators.VerifyPassword(req.Email, req.Password)
	if err != nil {
		utils.Log.Warn("failed login attempt for %s", req.Email)
		return utils.UnauthorizedError("invalid credentials", nil)
	}

	token, err := IssueToken(h.jwtSecret, op.Email, op.DisplayName, h.tokenTTL)
	if err != nil {
		return utils.InternalServerError("failed to issue session token", err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     "session",
		Value:    token,
		Expires:  time.Now().Add(h.tokenTTL),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	utils.Log.Info("operator %s logged in", op.Email)
	return c.JSON(fiber.Map{
		"token":        token,
		"email":        op.Email,
		"display_name": op.DisplayName,
		"language":     op.Language,
	})
}

// HandleLogout clears the session cookie.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "session",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.JSON(fiber.Map{"status": "logged_out"})
}
