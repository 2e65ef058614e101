package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"p7s/pkg/apperrors"
	"p7s/pkg/database"
	"p7s/pkg/models"
)

// Store é a visão transacional que os ledgers usam. Todas as leituras e
// escritas de uma chamada a InTx fazem parte da mesma unidade atômica:
// ou tudo comita, ou nada é observável.
type Store interface {
	UserForUpdate(ctx context.Context, id string) (models.User, error)
	AdjustUserPoints(ctx context.Context, id string, delta int64) error

	RouteForUpdate(ctx context.Context, id string) (models.OfficialRoute, error)
	AdjustRouteSeats(ctx context.Context, id string, delta int) error
	SetRouteStatus(ctx context.Context, id string, status models.OfficialRouteStatus) error

	OrderForUpdate(ctx context.Context, id string) (models.Order, error)
	InsertOrder(ctx context.Context, o models.Order) error
	AssignDriver(ctx context.Context, orderID, driverID string) error
	SetOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, completedAt *time.Time) error

	TreasuryForUpdate(ctx context.Context) (int64, error)
	AdjustTreasury(ctx context.Context, delta int64) error

	InsertWalletLog(ctx context.Context, l models.WalletLog) error
	InsertVoucher(ctx context.Context, v models.Voucher) error

	InsertMessage(ctx context.Context, m models.Message) error
	UpsertConversation(ctx context.Context, c models.Conversation) error
}

// Runner abre a transação e entrega um Store preso a ela. No Postgres a
// unidade roda SERIALIZABLE com retry automático em conflito.
type Runner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

type sqlRunner struct {
	db *sql.DB
}

func NewRunner(db *sql.DB) Runner {
	return &sqlRunner{db: db}
}

func (r *sqlRunner) InTx(ctx context.Context, fn func(Store) error) error {
	return database.Serializable(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&sqlStore{tx: tx})
	})
}

type sqlStore struct {
	tx *sql.Tx
}

func (s *sqlStore) UserForUpdate(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return u, apperrors.ErrUserNotFound
	}
	return u, err
}

func (s *sqlStore) AdjustUserPoints(ctx context.Context, id string, delta int64) error {
	res, err := s.tx.ExecContext(ctx, `
		UPDATE users SET points = points + $2, updated_at = now() WHERE id = $1
	`, id, delta)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (s *sqlStore) RouteForUpdate(ctx context.Context, id string) (models.OfficialRoute, error) {
	rt, err := scanRoute(s.tx.QueryRowContext(ctx,
		`SELECT `+routeColumns+` FROM official_routes WHERE id = $1 FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return rt, apperrors.ErrInvalidState
	}
	return rt, err
}

func (s *sqlStore) AdjustRouteSeats(ctx context.Context, id string, delta int) error {
	_, err := s.tx.ExecContext(ctx, `
		UPDATE official_routes SET occupied_seats = occupied_seats + $2 WHERE id = $1
	`, id, delta)
	return err
}

func (s *sqlStore) SetRouteStatus(ctx context.Context, id string, status models.OfficialRouteStatus) error {
	_, err := s.tx.ExecContext(ctx, `
		UPDATE official_routes SET status = $2 WHERE id = $1
	`, id, status)
	return err
}

func (s *sqlStore) OrderForUpdate(ctx context.Context, id string) (models.Order, error) {
	o, err := scanOrder(s.tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return o, apperrors.ErrOrderUnavailable
	}
	return o, err
}

func (s *sqlStore) InsertOrder(ctx context.Context, o models.Order) error {
	pickup, _ := json.Marshal(o.Pickup)
	dropoff, _ := json.Marshal(o.Dropoff)
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO orders (id, passenger_id, driver_id, official_route_id, type, pickup, dropoff,
		                    status, price, platform_fee, date, passengers_count, notes, is_official, created_at)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, o.ID, o.PassengerID, o.DriverID, o.OfficialRouteID, o.Type, pickup, dropoff,
		o.Status, o.Price, o.PlatformFee, o.Date, o.PassengersCount, o.Notes, o.IsOfficial, o.CreatedAt)
	return err
}

func (s *sqlStore) AssignDriver(ctx context.Context, orderID, driverID string) error {
	_, err := s.tx.ExecContext(ctx, `
		UPDATE orders SET driver_id = $2, status = $3 WHERE id = $1
	`, orderID, driverID, models.OrderAccepted)
	return err
}

func (s *sqlStore) SetOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, completedAt *time.Time) error {
	// Cancelamento desfaz a atribuição: pedido cancelado nunca fica com
	// motorista pendurado no documento.
	if status == models.OrderCancelled {
		_, err := s.tx.ExecContext(ctx, `
			UPDATE orders SET status = $2, driver_id = NULL WHERE id = $1
		`, orderID, status)
		return err
	}
	_, err := s.tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, completed_at = COALESCE($3, completed_at) WHERE id = $1
	`, orderID, status, completedAt)
	return err
}

func (s *sqlStore) TreasuryForUpdate(ctx context.Context) (int64, error) {
	var total int64
	err := s.tx.QueryRowContext(ctx, `
		SELECT total_points FROM platform_wallet WHERE singleton FOR UPDATE
	`).Scan(&total)
	return total, err
}

func (s *sqlStore) AdjustTreasury(ctx context.Context, delta int64) error {
	_, err := s.tx.ExecContext(ctx, `
		UPDATE platform_wallet SET total_points = total_points + $1, updated_at = now() WHERE singleton
	`, delta)
	return err
}

func (s *sqlStore) InsertWalletLog(ctx context.Context, l models.WalletLog) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO wallet_logs (id, type, user_id, user_name, operator_id, operator_name, amount, note, voucher_id, created_at)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, NULLIF($9,''), $10)
	`, l.ID, l.Type, l.UserID, l.UserName, l.OperatorID, l.OperatorName, l.Amount, l.Note, l.VoucherID, l.CreatedAt)
	return err
}

func (s *sqlStore) InsertVoucher(ctx context.Context, v models.Voucher) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO vouchers (id, user_id, type, title, amount, balance, expiry_date, status, issuer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, v.ID, v.UserID, v.Type, v.Title, v.Amount, v.Balance, v.ExpiryDate, v.Status, v.IssuerID, v.CreatedAt)
	return err
}

func (s *sqlStore) InsertMessage(ctx context.Context, m models.Message) error {
	meta, _ := json.Marshal(m.Metadata)
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO messages (id, conv_key, sender_id, real_sender_id, receiver_id, type, content,
		                      image_url, order_id, ticket_id, is_read, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9,''), NULLIF($10,''), $11, $12, $13)
	`, m.ID, m.ConvKey, m.SenderID, m.RealSenderID, m.ReceiverID, m.Type, m.Content,
		m.ImageURL, m.OrderID, m.TicketID, m.IsRead, meta, m.Timestamp)
	return err
}

func (s *sqlStore) UpsertConversation(ctx context.Context, c models.Conversation) error {
	_, err := s.tx.ExecContext(ctx, `
		INSERT INTO conversations (key, participants, order_id, last_message, last_sender_id, updated_at)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6)
		ON CONFLICT (key) DO UPDATE
		SET last_message = EXCLUDED.last_message,
		    last_sender_id = EXCLUDED.last_sender_id,
		    updated_at = EXCLUDED.updated_at
	`, c.Key, pq.Array(c.Participants), c.OrderID, c.LastMessage, c.LastSenderID, c.UpdatedAt)
	return err
}
