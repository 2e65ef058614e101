package handlers

import (
	"p7s/pkg/models"
	"p7s/pkg/services"

	"github.com/gofiber/fiber/v2"
)

// PricingHandler expõe a administração da matriz de preços. Todas as
// rotas ficam atrás do AdminMiddleware.
type PricingHandler struct {
	pricing services.PricingService
}

func NewPricing(pricing services.PricingService) *PricingHandler {
	return &PricingHandler{pricing: pricing}
}

func (ph *PricingHandler) GetConfig(c *fiber.Ctx) error {
	cfg, err := ph.pricing.GetConfig()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(cfg)
}

func (ph *PricingHandler) UpdateConfig(c *fiber.Ctx) error {
	var cfg models.PricingConfig
	if err := c.BodyParser(&cfg); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if err := ph.pricing.UpdateConfig(cfg); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Configuração de preço atualizada"})
}

func (ph *PricingHandler) ListRules(c *fiber.Ctx) error {
	rules, err := ph.pricing.ListRules()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"rules": rules})
}

func (ph *PricingHandler) UpsertRule(c *fiber.Ctx) error {
	var rule models.PriceRule
	if err := c.BodyParser(&rule); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if rule.StartRegion == "" || rule.EndRegion == "" {
		return badRequest(c, "Regiões de origem e destino obrigatórias")
	}
	if err := ph.pricing.UpsertRule(rule); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Regra salva"})
}

func (ph *PricingHandler) DeleteRule(c *fiber.Ctx) error {
	if err := ph.pricing.DeleteRule(c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Regra removida"})
}

func (ph *PricingHandler) ListKeywords(c *fiber.Ctx) error {
	keywords, err := ph.pricing.ListKeywords()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"keywords": keywords})
}

func (ph *PricingHandler) UpsertKeyword(c *fiber.Ctx) error {
	var kw models.LocationKeyword
	if err := c.BodyParser(&kw); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if kw.Keyword == "" || kw.RegionID == "" {
		return badRequest(c, "Palavra-chave e região obrigatórias")
	}
	if err := ph.pricing.UpsertKeyword(kw); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Palavra-chave salva"})
}

func (ph *PricingHandler) DeleteKeyword(c *fiber.Ctx) error {
	if err := ph.pricing.DeleteKeyword(c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Palavra-chave removida"})
}
