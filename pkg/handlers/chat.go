package handlers

import (
	"p7s/pkg/models"
	"p7s/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type ChatHandler struct {
	chat services.ChatService
}

func NewChat(chat services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (ch *ChatHandler) Send(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req services.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	msg, err := ch.chat.Send(c.Context(), userID, req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(msg)
}

func (ch *ChatHandler) Broadcast(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	msg, err := ch.chat.Broadcast(c.Context(), userID, req.Content)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(msg)
}

func (ch *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req struct {
		ConvKey string `json:"convKey"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if err := ch.chat.MarkRead(c.Context(), req.ConvKey, userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Conversa marcada como lida"})
}

func (ch *ChatHandler) ListConversation(c *fiber.Ctx) error {
	msgs, err := ch.chat.ListConversation(c.Params("key"), limitParam(c, 100))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (ch *ChatHandler) ListMine(c *fiber.Ctx) error {
	userID, _ := identity(c)
	msgs, err := ch.chat.ListForUser(userID, limitParam(c, 100))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (ch *ChatHandler) Conversations(c *fiber.Ctx) error {
	userID, _ := identity(c)
	convs, err := ch.chat.ListConversations(userID, limitParam(c, 50))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

func (ch *ChatHandler) Unread(c *fiber.Ctx) error {
	userID, _ := identity(c)
	n, err := ch.chat.CountUnread(userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"unread": n})
}

func (ch *ChatHandler) CreateTicket(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req struct {
		Category string `json:"category"`
		Subject  string `json:"subject"`
		OrderID  string `json:"orderId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	ticket, err := ch.chat.CreateTicket(c.Context(), userID, req.Category, req.Subject, req.OrderID)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(ticket)
}

func (ch *ChatHandler) ClaimTicket(c *fiber.Ctx) error {
	userID, _ := identity(c)
	if err := ch.chat.ClaimTicket(c.Context(), c.Params("id"), userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Chamado assumido"})
}

func (ch *ChatHandler) ResolveTicket(c *fiber.Ctx) error {
	userID, _ := identity(c)
	if err := ch.chat.ResolveTicket(c.Context(), c.Params("id"), userID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Chamado resolvido"})
}

func (ch *ChatHandler) ListTickets(c *fiber.Ctx) error {
	status := models.TicketStatus(c.Query("status", string(models.TicketOpen)))
	tickets, err := ch.chat.ListTickets(status, limitParam(c, 50))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"tickets": tickets})
}
