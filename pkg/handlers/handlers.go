package handlers

import (
	"log"
	"time"

	"p7s/pkg/apperrors"
	"p7s/pkg/models"

	"github.com/gofiber/fiber/v2"
)

// fail traduz uma falha de negócio no status e corpo padrão da API.
// Erros fora do catálogo viram 500 sem vazar detalhe interno.
func fail(c *fiber.Ctx, err error) error {
	status := apperrors.StatusCode(err)
	if status == 500 {
		log.Printf("[API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(500).JSON(fiber.Map{"erro": "Erro interno"})
	}
	return c.Status(status).JSON(fiber.Map{
		"erro": err.Error(),
		"kind": apperrors.Kind(err),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(400).JSON(fiber.Map{"erro": msg})
}

func identity(c *fiber.Ctx) (string, models.UserRole) {
	userID, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(models.UserRole)
	return userID, role
}

func limitParam(c *fiber.Ctx, def int) int {
	n := c.QueryInt("limit", def)
	if n <= 0 || n > 200 {
		return def
	}
	return n
}

// daysParam lê uma janela em dias (?days=N) como duração.
func daysParam(c *fiber.Ctx, def int) time.Duration {
	n := c.QueryInt("days", def)
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * 24 * time.Hour
}
