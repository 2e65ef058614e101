package services

import (
	"context"
	"log"
	"time"

	"p7s/pkg/apperrors"
	"p7s/pkg/models"
	"p7s/pkg/repository"

	"github.com/google/uuid"
)

type OrderService interface {
	Create(ctx context.Context, passengerID string, req models.CreateOrderRequest) (models.Order, error)
	Accept(ctx context.Context, orderID, driverID string) error
	Start(ctx context.Context, orderID, driverID string) error
	Complete(ctx context.Context, orderID, actorID string, actorRole models.UserRole) error
	Cancel(ctx context.Context, orderID, actorID string, actorRole models.UserRole) error
	GetOrder(id string) (models.Order, error)
	ListOpen(limit int) ([]models.Order, error)
	ListByPassenger(passengerID string, limit int) ([]models.Order, error)
	ListByDriver(driverID string, limit int) ([]models.Order, error)
}

type orderService struct {
	runner   repository.Runner
	orders   repository.OrderRepository
	pricing  PricingService
	notifier ChangeNotifier
}

func NewOrderService(runner repository.Runner, orders repository.OrderRepository, pricing PricingService, notifier ChangeNotifier) OrderService {
	return &orderService{runner: runner, orders: orders, pricing: pricing, notifier: notifier}
}

// Create cota o preço na hora e grava o pedido como PENDING. O preço fica
// congelado no documento; recotação depois disso não muda nada.
func (s *orderService) Create(ctx context.Context, passengerID string, req models.CreateOrderRequest) (models.Order, error) {
	if req.PassengersCount <= 0 {
		req.PassengersCount = 1
	}
	quote, err := s.pricing.Quote(req.Pickup, req.Dropoff)
	if err != nil {
		return models.Order{}, err
	}

	order := models.Order{
		ID:              uuid.NewString(),
		PassengerID:     passengerID,
		Type:            req.Type,
		Pickup:          req.Pickup,
		Dropoff:         req.Dropoff,
		Status:          models.OrderPending,
		Price:           quote.TotalPrice,
		PlatformFee:     quote.OrderFee,
		Date:            req.Date,
		PassengersCount: req.PassengersCount,
		Notes:           req.Notes,
		CreatedAt:       time.Now(),
	}
	if order.Type == "" {
		order.Type = models.OrderCharter
	}

	err = s.runner.InTx(ctx, func(store repository.Store) error {
		return store.InsertOrder(ctx, order)
	})
	if err != nil {
		return models.Order{}, err
	}

	log.Printf("[ORDER] Criado: id=%s passageiro=%s preço=%d taxa=%d", order.ID, passengerID, order.Price, order.PlatformFee)
	s.notifier.PublishChange("orders", order.ID)
	return order, nil
}

// Accept é a disputa entre motoristas: só um vence. A checagem de status,
// o débito da comissão e a atribuição comitam juntos; quem perde a corrida
// recebe OrderUnavailable explícito.
func (s *orderService) Accept(ctx context.Context, orderID, driverID string) error {
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		o, err := store.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != models.OrderPending && o.Status != models.OrderWaitingForDriver {
			return apperrors.ErrOrderUnavailable
		}
		if o.DriverID != "" {
			return apperrors.ErrAlreadyAssigned
		}

		driver, err := store.UserForUpdate(ctx, driverID)
		if err != nil {
			return err
		}
		if driver.Role != models.RoleDriver || driver.Status != models.AccountActive ||
			driver.DriverStatus != models.DriverApproved {
			return apperrors.ErrUnauthorized
		}
		if driver.Points < o.PlatformFee {
			return apperrors.ErrInsufficientBalance
		}

		if o.PlatformFee > 0 {
			if err := store.AdjustUserPoints(ctx, driverID, -o.PlatformFee); err != nil {
				return err
			}
			if err := store.AdjustTreasury(ctx, o.PlatformFee); err != nil {
				return err
			}
			logEntry := models.WalletLog{
				ID:           uuid.NewString(),
				Type:         models.LogCommission,
				UserID:       driverID,
				UserName:     driver.Name,
				OperatorID:   driverID,
				OperatorName: driver.Name,
				Amount:       -o.PlatformFee,
				Note:         "Comissão do pedido " + orderID,
				CreatedAt:    time.Now(),
			}
			if err := store.InsertWalletLog(ctx, logEntry); err != nil {
				return err
			}
		}
		return store.AssignDriver(ctx, orderID, driverID)
	})
	if err != nil {
		return err
	}

	log.Printf("[ORDER] Aceito: id=%s motorista=%s", orderID, driverID)
	s.notifier.PublishChange("orders", orderID)
	s.notifier.PublishChange("users", driverID)
	s.notifier.PublishChange("wallet_logs", "")
	return nil
}

// Start marca o início da viagem pelo motorista atribuído.
func (s *orderService) Start(ctx context.Context, orderID, driverID string) error {
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		o, err := store.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.DriverID != driverID {
			return apperrors.ErrUnauthorized
		}
		if o.Status != models.OrderAccepted {
			return apperrors.ErrInvalidState
		}
		return store.SetOrderStatus(ctx, orderID, models.OrderOnTheWay, nil)
	})
	if err != nil {
		return err
	}
	s.notifier.PublishChange("orders", orderID)
	return nil
}

func (s *orderService) Complete(ctx context.Context, orderID, actorID string, actorRole models.UserRole) error {
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		o, err := store.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.DriverID != actorID && !actorRole.IsAdmin() {
			return apperrors.ErrUnauthorized
		}
		if !o.Status.CanTransition(models.OrderCompleted) || o.Status.Terminal() {
			return apperrors.ErrInvalidState
		}
		now := time.Now()
		return store.SetOrderStatus(ctx, orderID, models.OrderCompleted, &now)
	})
	if err != nil {
		return err
	}
	log.Printf("[ORDER] Concluído: id=%s por=%s", orderID, actorID)
	s.notifier.PublishChange("orders", orderID)
	return nil
}

// Cancel do passageiro só antes de ter motorista; depois disso vai para o
// suporte (ou um admin cancela direto). Pedido de fretado devolve os
// assentos na mesma transação.
func (s *orderService) Cancel(ctx context.Context, orderID, actorID string, actorRole models.UserRole) error {
	var routeID, droppedDriver string
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		o, err := store.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		droppedDriver = o.DriverID
		isOwner := o.PassengerID == actorID || o.DriverID == actorID
		if !isOwner && !actorRole.IsAdmin() {
			return apperrors.ErrUnauthorized
		}
		if o.Status.Terminal() {
			return apperrors.ErrInvalidState
		}
		if o.PassengerID == actorID && o.DriverID != "" && !actorRole.IsAdmin() {
			return apperrors.ErrAlreadyAssigned
		}
		if o.OfficialRouteID != "" {
			if _, err := store.RouteForUpdate(ctx, o.OfficialRouteID); err != nil {
				return err
			}
			if err := store.AdjustRouteSeats(ctx, o.OfficialRouteID, -o.PassengersCount); err != nil {
				return err
			}
			routeID = o.OfficialRouteID
		}
		return store.SetOrderStatus(ctx, orderID, models.OrderCancelled, nil)
	})
	if err != nil {
		return err
	}

	// A atribuição desfeita fica registrada aqui; o documento cancelado
	// sai sem motorista.
	log.Printf("[ORDER] Cancelado: id=%s por=%s motorista_anterior=%q", orderID, actorID, droppedDriver)
	if routeID != "" {
		s.notifier.PublishChange("official_routes", routeID)
	}
	s.notifier.PublishChange("orders", orderID)
	return nil
}

func (s *orderService) GetOrder(id string) (models.Order, error) {
	return s.orders.GetOrderByID(id)
}

// ListOpen é público: visitantes sem login veem o mural de pedidos abertos.
func (s *orderService) ListOpen(limit int) ([]models.Order, error) {
	return s.orders.ListOpenOrders(limit)
}

func (s *orderService) ListByPassenger(passengerID string, limit int) ([]models.Order, error) {
	return s.orders.ListOrdersByPassenger(passengerID, limit)
}

func (s *orderService) ListByDriver(driverID string, limit int) ([]models.Order, error) {
	return s.orders.ListOrdersByDriver(driverID, limit)
}
