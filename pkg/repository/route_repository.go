package repository

import (
	"database/sql"
	"encoding/json"

	"p7s/pkg/apperrors"
	"p7s/pkg/models"
)

type RouteRepository interface {
	CreateRoute(rt models.OfficialRoute) error
	GetRouteByID(id string) (models.OfficialRoute, error)
	ListRoutes(limit int) ([]models.OfficialRoute, error)
	ListRoutesByStatus(status models.OfficialRouteStatus, limit int) ([]models.OfficialRoute, error)
	ListOpenRoutes(limit int) ([]models.OfficialRoute, error)
	SetRouteDriver(id, driverID string) error
	SetAdminNote(id, note string) error
}

type routeRepository struct {
	db *sql.DB
}

func NewRouteRepository(db *sql.DB) RouteRepository {
	return &routeRepository{db: db}
}

func (r *routeRepository) CreateRoute(rt models.OfficialRoute) error {
	pickup, _ := json.Marshal(rt.Pickup)
	dropoff, _ := json.Marshal(rt.Dropoff)
	_, err := r.db.Exec(
		`INSERT INTO official_routes (id, pickup, dropoff, date, status, total_seats, occupied_seats,
		                              price_per_seat, charter_price, driver_id, admin_note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10,''), $11, $12)`,
		rt.ID, pickup, dropoff, rt.Date, rt.Status, rt.TotalSeats, rt.OccupiedSeats,
		rt.PricePerSeat, rt.CharterPrice, rt.DriverID, rt.AdminNote, rt.CreatedAt,
	)
	return err
}

func (r *routeRepository) GetRouteByID(id string) (models.OfficialRoute, error) {
	rt, err := scanRoute(r.db.QueryRow(
		`SELECT `+routeColumns+` FROM official_routes WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return rt, apperrors.ErrInvalidState
	}
	return rt, err
}

func (r *routeRepository) listRoutes(query string, args ...interface{}) ([]models.OfficialRoute, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	routes := []models.OfficialRoute{}
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

func (r *routeRepository) ListRoutes(limit int) ([]models.OfficialRoute, error) {
	return r.listRoutes(
		`SELECT `+routeColumns+` FROM official_routes ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *routeRepository) ListRoutesByStatus(status models.OfficialRouteStatus, limit int) ([]models.OfficialRoute, error) {
	return r.listRoutes(
		`SELECT `+routeColumns+` FROM official_routes WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		status, limit)
}

// ListOpenRoutes: fretados ainda aceitando reservas.
func (r *routeRepository) ListOpenRoutes(limit int) ([]models.OfficialRoute, error) {
	return r.listRoutes(
		`SELECT `+routeColumns+` FROM official_routes
		 WHERE status IN ($1, $2) ORDER BY date, created_at LIMIT $3`,
		models.RouteCollecting, models.RouteConfirmed, limit)
}

func (r *routeRepository) SetRouteDriver(id, driverID string) error {
	_, err := r.db.Exec(
		`UPDATE official_routes SET driver_id = NULLIF($2,'') WHERE id = $1`, id, driverID)
	return err
}

func (r *routeRepository) SetAdminNote(id, note string) error {
	_, err := r.db.Exec(
		`UPDATE official_routes SET admin_note = $2 WHERE id = $1`, id, note)
	return err
}
