package middleware

import (
	"os"
	"strings"

	"p7s/pkg/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func jwtSecret() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-key-change-in-production"
	}
	return secret
}

// AuthMiddleware validates the bearer token and injects user_id and role
// into the request locals.
func AuthMiddleware(c *fiber.Ctx) error {
	auth := c.Get("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		return c.Status(401).JSON(fiber.Map{"erro": "Token não informado"})
	}

	tokenStr := auth[7:]
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret()), nil
	})
	if err != nil || !token.Valid {
		return c.Status(401).JSON(fiber.Map{"erro": "Token inválido"})
	}

	claims := token.Claims.(*jwt.MapClaims)
	userID, _ := (*claims)["user_id"].(string)
	role, _ := (*claims)["role"].(string)
	if userID == "" {
		return c.Status(401).JSON(fiber.Map{"erro": "Token inválido"})
	}

	c.Locals("user_id", userID)
	c.Locals("role", models.UserRole(role))

	return c.Next()
}

// AdminMiddleware exige um papel administrativo. Sempre depois do
// AuthMiddleware na cadeia.
func AdminMiddleware(c *fiber.Ctx) error {
	role, _ := c.Locals("role").(models.UserRole)
	if !role.IsAdmin() {
		return c.Status(403).JSON(fiber.Map{"erro": "Acesso restrito à administração"})
	}
	return c.Next()
}

// RequireRole restricts the route to one exact role.
func RequireRole(want models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(models.UserRole)
		if role != want {
			return c.Status(403).JSON(fiber.Map{"erro": "Acesso negado para este papel"})
		}
		return c.Next()
	}
}
