package handlers

import (
	"p7s/pkg/models"
	"p7s/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type WalletHandler struct {
	wallet services.WalletService
}

func NewWallet(wallet services.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

type amountRequest struct {
	Amount int64  `json:"amount"`
	Note   string `json:"note"`
}

func (wh *WalletHandler) Mint(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if err := wh.wallet.Mint(c.Context(), userID, req.Amount, req.Note); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Pontos emitidos"})
}

func (wh *WalletHandler) Grant(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if err := wh.wallet.Grant(c.Context(), userID, c.Params("userId"), req.Amount, req.Note); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Pontos concedidos"})
}

func (wh *WalletHandler) Transfer(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req struct {
		amountRequest
		TargetUserID string `json:"targetUserId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if err := wh.wallet.Transfer(c.Context(), userID, req.TargetUserID, req.Amount, req.Note); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Transferência concluída"})
}

func (wh *WalletHandler) Purchase(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	if err := wh.wallet.Purchase(c.Context(), userID, req.Amount, req.Note); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"mensagem": "Recarga concluída"})
}

func (wh *WalletHandler) IssueVoucher(c *fiber.Ctx) error {
	userID, _ := identity(c)
	var req struct {
		TargetUserID string             `json:"targetUserId"`
		Type         models.VoucherType `json:"type"`
		Amount       int64              `json:"amount"`
		Title        string             `json:"title"`
		DaysValid    int                `json:"daysValid"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "JSON inválido")
	}
	voucher, err := wh.wallet.IssueVoucher(c.Context(), userID, req.TargetUserID, req.Type, req.Amount, req.Title, req.DaysValid)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(voucher)
}

func (wh *WalletHandler) Treasury(c *fiber.Ctx) error {
	balance, err := wh.wallet.TreasuryBalance()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"balance": balance})
}

func (wh *WalletHandler) Logs(c *fiber.Ctx) error {
	logs, err := wh.wallet.ListLogs(limitParam(c, 100))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"logs": logs})
}

func (wh *WalletHandler) MyLogs(c *fiber.Ctx) error {
	userID, _ := identity(c)
	logs, err := wh.wallet.ListLogsByUser(userID, limitParam(c, 100))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"logs": logs})
}

func (wh *WalletHandler) MyVouchers(c *fiber.Ctx) error {
	userID, _ := identity(c)
	vouchers, err := wh.wallet.ListActiveVouchers(userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"vouchers": vouchers})
}
