package repository

import (
	"database/sql"
	"encoding/json"

	"p7s/pkg/models"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// userColumns é a lista canônica usada em todo SELECT de users.
const userColumns = `id, phone, email, name, role, status, points, driver_status, rejection_reason, docs, created_at, updated_at`

func scanUser(rs rowScanner) (models.User, error) {
	var u models.User
	var docsRaw []byte
	var driverStatus, rejection sql.NullString
	var updatedAt sql.NullTime
	err := rs.Scan(&u.ID, &u.Phone, &u.Email, &u.Name, &u.Role, &u.Status, &u.Points,
		&driverStatus, &rejection, &docsRaw, &u.CreatedAt, &updatedAt)
	if err != nil {
		return u, err
	}
	u.DriverStatus = models.DriverStatus(driverStatus.String)
	u.RejectionReason = rejection.String
	if updatedAt.Valid {
		t := updatedAt.Time
		u.UpdatedAt = &t
	}
	if len(docsRaw) > 0 {
		json.Unmarshal(docsRaw, &u.Docs)
	}
	return u, nil
}

const orderColumns = `id, passenger_id, driver_id, official_route_id, type, pickup, dropoff, status, price, platform_fee, date, passengers_count, notes, is_official, created_at, completed_at`

func scanOrder(rs rowScanner) (models.Order, error) {
	var o models.Order
	var pickup, dropoff []byte
	var driverID, routeID sql.NullString
	var completedAt sql.NullTime
	err := rs.Scan(&o.ID, &o.PassengerID, &driverID, &routeID, &o.Type, &pickup, &dropoff,
		&o.Status, &o.Price, &o.PlatformFee, &o.Date, &o.PassengersCount, &o.Notes,
		&o.IsOfficial, &o.CreatedAt, &completedAt)
	if err != nil {
		return o, err
	}
	o.DriverID = driverID.String
	o.OfficialRouteID = routeID.String
	if completedAt.Valid {
		t := completedAt.Time
		o.CompletedAt = &t
	}
	json.Unmarshal(pickup, &o.Pickup)
	json.Unmarshal(dropoff, &o.Dropoff)
	return o, nil
}

const routeColumns = `id, pickup, dropoff, date, status, total_seats, occupied_seats, price_per_seat, charter_price, driver_id, admin_note, created_at`

func scanRoute(rs rowScanner) (models.OfficialRoute, error) {
	var rt models.OfficialRoute
	var pickup, dropoff []byte
	var driverID sql.NullString
	err := rs.Scan(&rt.ID, &pickup, &dropoff, &rt.Date, &rt.Status, &rt.TotalSeats,
		&rt.OccupiedSeats, &rt.PricePerSeat, &rt.CharterPrice, &driverID, &rt.AdminNote, &rt.CreatedAt)
	if err != nil {
		return rt, err
	}
	rt.DriverID = driverID.String
	json.Unmarshal(pickup, &rt.Pickup)
	json.Unmarshal(dropoff, &rt.Dropoff)
	return rt, nil
}

const messageColumns = `id, conv_key, sender_id, real_sender_id, receiver_id, type, content, image_url, order_id, ticket_id, is_read, metadata, timestamp`

func scanMessage(rs rowScanner) (models.Message, error) {
	var m models.Message
	var orderID, ticketID sql.NullString
	var metaRaw []byte
	err := rs.Scan(&m.ID, &m.ConvKey, &m.SenderID, &m.RealSenderID, &m.ReceiverID, &m.Type,
		&m.Content, &m.ImageURL, &orderID, &ticketID, &m.IsRead, &metaRaw, &m.Timestamp)
	if err != nil {
		return m, err
	}
	m.OrderID = orderID.String
	m.TicketID = ticketID.String
	if len(metaRaw) > 0 {
		json.Unmarshal(metaRaw, &m.Metadata)
	}
	return m, nil
}
