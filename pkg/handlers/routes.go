package handlers

import (
	"p7s/pkg/models"
	"p7s/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type RouteHandler struct {
	routes services.RouteService
}

func NewRoutes(routes services.RouteService) *RouteHandler {
	return &RouteHandler{routes: routes}
}

func (rh *RouteHandler) Create(c *fiber.Ctx) error {
	var rt models.OfficialRoute
	if err := c.BodyParser(&rt); err != nil {
		return badRequest(c, "JSON inválido")
	}
	created, err := rh.routes.CreateRoute(c.Context(), rt)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(created)
}

func (rh *RouteHandler) Join(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req struct {
		PassengersCount int `json:"passengersCount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if req.PassengersCount == 0 {
		req.PassengersCount = 1
	}
	order, err := rh.routes.Join(c.Context(), c.Params("id"), userID, req.PassengersCount)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(order)
}

func (rh *RouteHandler) Leave(c *fiber.Ctx) error {
	userID, role := identity(c)
	if err := rh.routes.Leave(c.Context(), c.Params("orderId"), userID, role); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Reserva cancelada"})
}

func (rh *RouteHandler) AdvanceStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.OfficialRouteStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if err := rh.routes.AdvanceStatus(c.Context(), c.Params("id"), req.Status); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Status atualizado"})
}

func (rh *RouteHandler) Get(c *fiber.Ctx) error {
	rt, err := rh.routes.GetRoute(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rt)
}

func (rh *RouteHandler) ListOpen(c *fiber.Ctx) error {
	routes, err := rh.routes.ListOpenRoutes(limitParam(c, 50))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"routes": routes})
}

func (rh *RouteHandler) List(c *fiber.Ctx) error {
	routes, err := rh.routes.ListRoutes(limitParam(c, 50))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"routes": routes})
}
