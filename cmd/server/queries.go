package main

import (
	"context"
	"strings"
	"time"

	"p7s/pkg/apperrors"
	"p7s/pkg/hub"
	"p7s/pkg/models"
	"p7s/pkg/repository"
)

func viewerRole(v hub.Viewer) models.UserRole {
	return models.UserRole(v.Role)
}

func subLimit(sub hub.Subscription, def int) int {
	if sub.Limit > 0 && sub.Limit <= 200 {
		return sub.Limit
	}
	return def
}

// registerQueries liga cada coleção assinável à sua query no banco. A
// visibilidade é decidida aqui, pelo Viewer da conexão; o filtro do
// cliente só recorta dentro do que ele já pode ver.
func registerQueries(h *hub.Hub, repos struct {
	Orders  repository.OrderRepository
	Routes  repository.RouteRepository
	Users   repository.AuthRepository
	Wallet  repository.WalletRepository
	Chat    repository.ChatRepository
	Pricing repository.PricingRepository
}) {
	h.RegisterQuery("orders", func(ctx context.Context, v hub.Viewer, sub hub.Subscription) (interface{}, error) {
		limit := subLimit(sub, 50)
		role := viewerRole(v)
		switch {
		case sub.Filter["scope"] == "open":
			return repos.Orders.ListOpenOrders(limit)
		case role.IsAdmin():
			if status := sub.Filter["status"]; status != "" {
				return repos.Orders.ListOrdersByStatus(models.OrderStatus(status), limit)
			}
			return repos.Orders.ListOpenOrders(limit)
		case role == models.RoleDriver:
			return repos.Orders.ListOrdersByDriver(v.UserID, limit)
		default:
			return repos.Orders.ListOrdersByPassenger(v.UserID, limit)
		}
	})

	h.RegisterQuery("official_routes", func(ctx context.Context, v hub.Viewer, sub hub.Subscription) (interface{}, error) {
		limit := subLimit(sub, 50)
		if viewerRole(v).IsAdmin() {
			if status := sub.Filter["status"]; status != "" {
				return repos.Routes.ListRoutesByStatus(models.OfficialRouteStatus(status), limit)
			}
			return repos.Routes.ListRoutes(limit)
		}
		return repos.Routes.ListOpenRoutes(limit)
	})

	h.RegisterQuery("messages", func(ctx context.Context, v hub.Viewer, sub hub.Subscription) (interface{}, error) {
		if v.UserID == "" {
			return nil, apperrors.ErrUnauthorized
		}
		limit := subLimit(sub, 100)
		if convKey := sub.Filter["convKey"]; convKey != "" {
			// Só participantes (ou atendentes) leem a conversa.
			if !viewerRole(v).IsAdmin() && !strings.Contains(convKey, v.UserID) {
				return nil, apperrors.ErrUnauthorized
			}
			return repos.Chat.ListMessagesByConv(convKey, limit)
		}
		return repos.Chat.ListMessagesForUser(v.UserID, limit)
	})

	h.RegisterQuery("conversations", func(ctx context.Context, v hub.Viewer, sub hub.Subscription) (interface{}, error) {
		if v.UserID == "" {
			return nil, apperrors.ErrUnauthorized
		}
		return repos.Chat.ListConversationsForUser(v.UserID, subLimit(sub, 50))
	})

	h.RegisterQuery("users", func(ctx context.Context, v hub.Viewer, sub hub.Subscription) (interface{}, error) {
		role := viewerRole(v)
		if role.IsAdmin() {
			if r := sub.Filter["role"]; r != "" {
				return repos.Users.ListUsersByRole(models.UserRole(r), subLimit(sub, 100))
			}
			return repos.Users.ListUsers(subLimit(sub, 100))
		}
		if v.UserID == "" {
			return nil, apperrors.ErrUnauthorized
		}
		// Fora da administração a coleção degenera para o próprio perfil:
		// serve para acompanhar saldo e status de documentos ao vivo.
		u, err := repos.Users.GetUserByID(v.UserID)
		if err != nil {
			return nil, err
		}
		return []models.User{u}, nil
	})

	h.RegisterQuery("wallet_logs", func(ctx context.Context, v hub.Viewer, sub hub.Subscription) (interface{}, error) {
		if v.UserID == "" {
			return nil, apperrors.ErrUnauthorized
		}
		if viewerRole(v).IsAdmin() {
			return repos.Wallet.ListLogs(subLimit(sub, 100))
		}
		return repos.Wallet.ListLogsByUser(v.UserID, subLimit(sub, 100))
	})

	h.RegisterQuery("vouchers", func(ctx context.Context, v hub.Viewer, sub hub.Subscription) (interface{}, error) {
		if v.UserID == "" {
			return nil, apperrors.ErrUnauthorized
		}
		userID := v.UserID
		if viewerRole(v).IsAdmin() && sub.Filter["userId"] != "" {
			userID = sub.Filter["userId"]
		}
		return repos.Wallet.ListActiveVouchers(userID, time.Now())
	})

	h.RegisterQuery("tickets", func(ctx context.Context, v hub.Viewer, sub hub.Subscription) (interface{}, error) {
		if v.UserID == "" {
			return nil, apperrors.ErrUnauthorized
		}
		limit := subLimit(sub, 50)
		if viewerRole(v).IsAdmin() {
			status := models.TicketStatus(sub.Filter["status"])
			if status == "" {
				status = models.TicketOpen
			}
			return repos.Chat.ListTicketsByStatus(status, limit)
		}
		return repos.Chat.ListTicketsByCreator(v.UserID, limit)
	})
}
