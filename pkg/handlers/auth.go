package handlers

import (
	"time"

	"p7s/pkg/models"
	"p7s/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	auth services.AuthService
}

func NewAuth(auth services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (ah *AuthHandler) setRefreshCookie(c *fiber.Ctx, token string, expiry time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    token,
		Expires:  expiry,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "None",
		Path:     "/",
	})
}

func (ah *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "None",
		Path:     "/",
	})
}

func (ah *AuthHandler) respond(c *fiber.Ctx, resp models.AuthResponse, status int) error {
	ah.setRefreshCookie(c, resp.RefreshToken, time.Now().Add(30*24*time.Hour))
	return c.Status(status).JSON(resp)
}

func (ah *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}

	resp, err := ah.auth.Register(req, c.Get("User-Agent"), c.IP())
	if err != nil {
		return badRequest(c, err.Error())
	}
	return ah.respond(c, resp, 201)
}

func (ah *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}

	resp, err := ah.auth.Login(req, c.Get("User-Agent"), c.IP())
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"erro": err.Error()})
	}
	return ah.respond(c, resp, 200)
}

func (ah *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.BodyParser(&req)
	if req.RefreshToken == "" {
		req.RefreshToken = c.Cookies("refresh_token")
	}

	resp, err := ah.auth.Refresh(req.RefreshToken)
	if err != nil {
		ah.clearRefreshCookie(c)
		return c.Status(401).JSON(fiber.Map{"erro": err.Error()})
	}
	return ah.respond(c, resp, 200)
}

func (ah *AuthHandler) Me(c *fiber.Ctx) error {
	userID, _ := identity(c)
	user, err := ah.auth.Me(userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

func (ah *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, _ := identity(c)
	refresh := c.Cookies("refresh_token")
	if refresh == "" {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.BodyParser(&req)
		refresh = req.RefreshToken
	}
	_ = ah.auth.Logout(refresh, userID)
	ah.clearRefreshCookie(c)
	return c.JSON(fiber.Map{"mensagem": "Sessão encerrada"})
}

func (ah *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	userID, _ := identity(c)
	if err := ah.auth.LogoutAll(userID); err != nil {
		return fail(c, err)
	}
	ah.clearRefreshCookie(c)
	return c.JSON(fiber.Map{"mensagem": "Todas as sessões encerradas"})
}

func (ah *AuthHandler) Sessions(c *fiber.Ctx) error {
	userID, _ := identity(c)
	sessions, err := ah.auth.Sessions(userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}
