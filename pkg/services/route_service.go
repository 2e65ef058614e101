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

type RouteService interface {
	CreateRoute(ctx context.Context, rt models.OfficialRoute) (models.OfficialRoute, error)
	Join(ctx context.Context, routeID, passengerID string, paxCount int) (models.Order, error)
	Leave(ctx context.Context, orderID, actorID string, actorRole models.UserRole) error
	AdvanceStatus(ctx context.Context, routeID string, to models.OfficialRouteStatus) error
	GetRoute(id string) (models.OfficialRoute, error)
	ListOpenRoutes(limit int) ([]models.OfficialRoute, error)
	ListRoutes(limit int) ([]models.OfficialRoute, error)
}

type routeService struct {
	runner   repository.Runner
	routes   repository.RouteRepository
	notifier ChangeNotifier
}

func NewRouteService(runner repository.Runner, routes repository.RouteRepository, notifier ChangeNotifier) RouteService {
	return &routeService{runner: runner, routes: routes, notifier: notifier}
}

func (s *routeService) CreateRoute(ctx context.Context, rt models.OfficialRoute) (models.OfficialRoute, error) {
	if rt.TotalSeats <= 0 {
		return models.OfficialRoute{}, apperrors.ErrInvalidState
	}
	rt.ID = uuid.NewString()
	rt.Status = models.RouteCollecting
	rt.OccupiedSeats = 0
	rt.CreatedAt = time.Now()
	if err := s.routes.CreateRoute(rt); err != nil {
		return models.OfficialRoute{}, err
	}
	s.notifier.PublishChange("official_routes", rt.ID)
	return rt, nil
}

// Join reserva assentos e cria o pedido CARPOOL na mesma transação. Ou o
// contador sobe e o pedido existe, ou nada acontece.
func (s *routeService) Join(ctx context.Context, routeID, passengerID string, paxCount int) (models.Order, error) {
	if paxCount <= 0 {
		return models.Order{}, apperrors.ErrInvalidState
	}

	var order models.Order
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		rt, err := store.RouteForUpdate(ctx, routeID)
		if err != nil {
			return err
		}
		if rt.Status == models.RouteCompleted || rt.Status == models.RouteCancelled {
			return apperrors.ErrInvalidState
		}
		if rt.OccupiedSeats+paxCount > rt.TotalSeats {
			return apperrors.ErrCapacityExceeded
		}
		if err := store.AdjustRouteSeats(ctx, routeID, paxCount); err != nil {
			return err
		}

		order = models.Order{
			ID:              uuid.NewString(),
			PassengerID:     passengerID,
			OfficialRouteID: routeID,
			Type:            models.OrderCarpool,
			Pickup:          rt.Pickup,
			Dropoff:         rt.Dropoff,
			Status:          models.OrderWaitingForDriver,
			Price:           rt.PricePerSeat * int64(paxCount),
			Date:            rt.Date,
			PassengersCount: paxCount,
			IsOfficial:      true,
			CreatedAt:       time.Now(),
		}
		return store.InsertOrder(ctx, order)
	})
	if err != nil {
		return models.Order{}, err
	}

	log.Printf("[ROUTE] Join: rota=%s passageiro=%s pax=%d pedido=%s", routeID, passengerID, paxCount, order.ID)
	s.notifier.PublishChange("official_routes", routeID)
	s.notifier.PublishChange("orders", order.ID)
	return order, nil
}

// Leave devolve os assentos e cancela o pedido. Com motorista já
// atribuído o cancelamento vira caso de suporte manual.
func (s *routeService) Leave(ctx context.Context, orderID, actorID string, actorRole models.UserRole) error {
	var routeID string
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		o, err := store.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.PassengerID != actorID && !actorRole.IsAdmin() {
			return apperrors.ErrUnauthorized
		}
		if o.Status.Terminal() {
			return apperrors.ErrInvalidState
		}
		if o.DriverID != "" {
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

	log.Printf("[ROUTE] Leave: pedido=%s por=%s", orderID, actorID)
	if routeID != "" {
		s.notifier.PublishChange("official_routes", routeID)
	}
	s.notifier.PublishChange("orders", orderID)
	return nil
}

// AdvanceStatus só aceita transições do grafo COLLECTING→...→terminal.
func (s *routeService) AdvanceStatus(ctx context.Context, routeID string, to models.OfficialRouteStatus) error {
	err := s.runner.InTx(ctx, func(store repository.Store) error {
		rt, err := store.RouteForUpdate(ctx, routeID)
		if err != nil {
			return err
		}
		if !rt.Status.CanTransition(to) {
			return apperrors.ErrInvalidState
		}
		return store.SetRouteStatus(ctx, routeID, to)
	})
	if err != nil {
		return err
	}
	s.notifier.PublishChange("official_routes", routeID)
	return nil
}

func (s *routeService) GetRoute(id string) (models.OfficialRoute, error) {
	return s.routes.GetRouteByID(id)
}

func (s *routeService) ListOpenRoutes(limit int) ([]models.OfficialRoute, error) {
	return s.routes.ListOpenRoutes(limit)
}

func (s *routeService) ListRoutes(limit int) ([]models.OfficialRoute, error) {
	return s.routes.ListRoutes(limit)
}
