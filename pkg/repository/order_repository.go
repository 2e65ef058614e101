package repository

import (
	"database/sql"
	"time"

	"p7s/pkg/apperrors"
	"p7s/pkg/models"
)

type OrderRepository interface {
	GetOrderByID(id string) (models.Order, error)
	ListOrdersByPassenger(passengerID string, limit int) ([]models.Order, error)
	ListOrdersByDriver(driverID string, limit int) ([]models.Order, error)
	ListOrdersByStatus(status models.OrderStatus, limit int) ([]models.Order, error)
	ListOpenOrders(limit int) ([]models.Order, error)
	ListOrdersByRoute(routeID string) ([]models.Order, error)
	ListTerminalOrdersBefore(cutoff time.Time) ([]models.Order, error)
	ArchiveOrder(id string) error
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) GetOrderByID(id string) (models.Order, error) {
	o, err := scanOrder(r.db.QueryRow(
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return o, apperrors.ErrOrderUnavailable
	}
	return o, err
}

func (r *orderRepository) listOrders(query string, args ...interface{}) ([]models.Order, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *orderRepository) ListOrdersByPassenger(passengerID string, limit int) ([]models.Order, error) {
	return r.listOrders(
		`SELECT `+orderColumns+` FROM orders WHERE passenger_id = $1 ORDER BY created_at DESC LIMIT $2`,
		passengerID, limit)
}

func (r *orderRepository) ListOrdersByDriver(driverID string, limit int) ([]models.Order, error) {
	return r.listOrders(
		`SELECT `+orderColumns+` FROM orders WHERE driver_id = $1 ORDER BY created_at DESC LIMIT $2`,
		driverID, limit)
}

func (r *orderRepository) ListOrdersByStatus(status models.OrderStatus, limit int) ([]models.Order, error) {
	return r.listOrders(
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		status, limit)
}

// ListOpenOrders é o mural que os motoristas veem: pedidos ainda sem
// motorista, mais recentes primeiro.
func (r *orderRepository) ListOpenOrders(limit int) ([]models.Order, error) {
	return r.listOrders(
		`SELECT `+orderColumns+` FROM orders
		 WHERE status IN ($1, $2) ORDER BY created_at DESC LIMIT $3`,
		models.OrderPending, models.OrderWaitingForDriver, limit)
}

func (r *orderRepository) ListOrdersByRoute(routeID string) ([]models.Order, error) {
	return r.listOrders(
		`SELECT `+orderColumns+` FROM orders WHERE official_route_id = $1 ORDER BY created_at`, routeID)
}

func (r *orderRepository) ListTerminalOrdersBefore(cutoff time.Time) ([]models.Order, error) {
	return r.listOrders(
		`SELECT `+orderColumns+` FROM orders
		 WHERE status IN ($1, $2) AND created_at < $3`,
		models.OrderCompleted, models.OrderCancelled, cutoff)
}

// ArchiveOrder move o pedido para a tabela fria na mesma transação, junto
// com as mensagens das conversas dele.
func (r *orderRepository) ArchiveOrder(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO archived_orders SELECT * FROM orders WHERE id = $1
		 ON CONFLICT (id) DO NOTHING`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO archived_messages SELECT * FROM messages WHERE order_id = $1
		 ON CONFLICT (id) DO NOTHING`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE order_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM orders WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}
