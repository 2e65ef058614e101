package handlers

import (
	"p7s/pkg/models"
	"p7s/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type OrderHandler struct {
	orders  services.OrderService
	pricing services.PricingService
}

func NewOrders(orders services.OrderService, pricing services.PricingService) *OrderHandler {
	return &OrderHandler{orders: orders, pricing: pricing}
}

// Quote devolve a estimativa sem criar nada. O preço real congela na
// criação do pedido.
func (oh *OrderHandler) Quote(c *fiber.Ctx) error {
	var req struct {
		Pickup  models.LocationData `json:"pickup"`
		Dropoff models.LocationData `json:"dropoff"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	quote, err := oh.pricing.Quote(req.Pickup, req.Dropoff)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(quote)
}

func (oh *OrderHandler) Create(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req models.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	order, err := oh.orders.Create(c.Context(), userID, req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(order)
}

func (oh *OrderHandler) Accept(c *fiber.Ctx) error {
	userID, _ := identity(c)
	if err := oh.orders.Accept(c.Context(), c.Params("id"), userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Pedido aceito"})
}

func (oh *OrderHandler) Start(c *fiber.Ctx) error {
	userID, _ := identity(c)
	if err := oh.orders.Start(c.Context(), c.Params("id"), userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Viagem iniciada"})
}

func (oh *OrderHandler) Complete(c *fiber.Ctx) error {
	userID, role := identity(c)
	if err := oh.orders.Complete(c.Context(), c.Params("id"), userID, role); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Viagem concluída"})
}

func (oh *OrderHandler) Cancel(c *fiber.Ctx) error {
	userID, role := identity(c)
	if err := oh.orders.Cancel(c.Context(), c.Params("id"), userID, role); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Pedido cancelado"})
}

func (oh *OrderHandler) Get(c *fiber.Ctx) error {
	order, err := oh.orders.GetOrder(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(order)
}

// ListOpen é o mural dos motoristas: pedidos ainda sem dono.
func (oh *OrderHandler) ListOpen(c *fiber.Ctx) error {
	orders, err := oh.orders.ListOpen(limitParam(c, 50))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"orders": orders})
}

func (oh *OrderHandler) ListMine(c *fiber.Ctx) error {
	userID, role := identity(c)
	var (
		orders []models.Order
		err    error
	)
	if role == models.RoleDriver {
		orders, err = oh.orders.ListByDriver(userID, limitParam(c, 50))
	} else {
		orders, err = oh.orders.ListByPassenger(userID, limitParam(c, 50))
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"orders": orders})
}
