package handlers

import (
	"p7s/pkg/models"
	"p7s/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	users services.UserService
}

func NewUsers(users services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// SubmitDoc recebe o documento de onboarding com o preview inline. A
// resposta volta antes do upload permanente terminar.
func (uh *UserHandler) SubmitDoc(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req struct {
		DocType    string `json:"docType"`
		Number     string `json:"number"`
		ExpiryDate string `json:"expiryDate"`
		FileData   string `json:"fileData"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if req.DocType == "" {
		return badRequest(c, "Tipo de documento obrigatório")
	}
	if err := uh.users.SubmitDoc(c.Context(), userID, req.DocType, req.Number, req.ExpiryDate, req.FileData); err != nil {
		return fail(c, err)
	}
	return c.Status(202).JSON(fiber.Map{"mensagem": "Documento recebido, em análise"})
}

func (uh *UserHandler) Get(c *fiber.Ctx) error {
	user, err := uh.users.GetUser(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

func (uh *UserHandler) List(c *fiber.Ctx) error {
	users, err := uh.users.ListUsers(limitParam(c, 100))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

func (uh *UserHandler) ListDrivers(c *fiber.Ctx) error {
	drivers, err := uh.users.ListDrivers(limitParam(c, 100))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"drivers": drivers})
}

func (uh *UserHandler) SetAccountStatus(c *fiber.Ctx) error {
	adminID, _ := identity(c)
	var req struct {
		Status models.AccountStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if err := uh.users.SetAccountStatus(c.Context(), adminID, c.Params("id"), req.Status); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Status da conta atualizado"})
}

func (uh *UserHandler) Delete(c *fiber.Ctx) error {
	adminID, _ := identity(c)
	if err := uh.users.DeleteUser(c.Context(), adminID, c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Conta removida"})
}

func (uh *UserHandler) ReviewDoc(c *fiber.Ctx) error {
	adminID, _ := identity(c)
	var req struct {
		DocType string `json:"docType"`
		Approve bool   `json:"approve"`
		Reason  string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if err := uh.users.ReviewDoc(c.Context(), adminID, c.Params("id"), req.DocType, req.Approve, req.Reason); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Documento revisado"})
}

func (uh *UserHandler) ApproveDriver(c *fiber.Ctx) error {
	adminID, _ := identity(c)
	if err := uh.users.ApproveDriver(c.Context(), adminID, c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Motorista aprovado"})
}

func (uh *UserHandler) RejectDriver(c *fiber.Ctx) error {
	adminID, _ := identity(c)
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&req)
	if err := uh.users.RejectDriver(c.Context(), adminID, c.Params("id"), req.Reason); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Cadastro de motorista rejeitado"})
}

// Merge funde a conta duplicada na principal (pontos somados, duplicada
// removida). Usado pelo suporte quando o mesmo telefone gerou duas contas.
func (uh *UserHandler) Merge(c *fiber.Ctx) error {
	if err := uh.users.MergeAccounts(c.Context(), c.Params("id"), c.Params("dupId")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Contas fundidas"})
}

func (uh *UserHandler) CleanupGhosts(c *fiber.Ctx) error {
	removed, err := uh.users.CleanupGhosts(c.Context(), daysParam(c, 30))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"removidas": removed})
}

func (uh *UserHandler) CleanupDuplicates(c *fiber.Ctx) error {
	merged, err := uh.users.CleanupDuplicatePhones(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"fundidas": merged})
}

func (uh *UserHandler) Archive(c *fiber.Ctx) error {
	moved, err := uh.users.ArchiveTerminal(c.Context(), daysParam(c, 90))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"arquivados": moved})
}
