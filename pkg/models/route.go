package models

import "time"

// Region é a classificação geográfica grosseira usada nas tabelas de preço
// fixo origem/destino.
type Region string

const (
	RegionHKIsland         Region = "HK_ISLAND"
	RegionHKKowloon        Region = "HK_KOWLOON"
	RegionHKNewTerritories Region = "HK_NEW_TERRITORIES"
	RegionHKAirport        Region = "HK_AIRPORT"
	RegionHKDisney         Region = "HK_DISNEY"
	RegionSZBayPort        Region = "SZ_BAY_PORT"
	RegionSZCityMain       Region = "SZ_CITY_MAIN"
	RegionSZBaoanWest      Region = "SZ_BAOAN_WEST"
	RegionGZCity           Region = "GZ_CITY"
	RegionGZRemote         Region = "GZ_REMOTE"
	RegionZHCity           Region = "ZH_CITY"
	RegionMOMacau          Region = "MO_MACAU"
	RegionDGCity           Region = "DG_CITY"
	RegionHZCity           Region = "HZ_CITY"
	RegionUnknown          Region = "UNKNOWN"
)

type LocationData struct {
	PlaceName string  `json:"placeName"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	RegionID  Region  `json:"regionId,omitempty"`
}

type OfficialRouteStatus string

const (
	RouteCollecting  OfficialRouteStatus = "COLLECTING"
	RouteConfirmed   OfficialRouteStatus = "CONFIRMED"
	RouteDispatching OfficialRouteStatus = "DISPATCHING"
	RouteActive      OfficialRouteStatus = "ACTIVE"
	RouteCompleted   OfficialRouteStatus = "COMPLETED"
	RouteCancelled   OfficialRouteStatus = "CANCELLED"
)

var routeTransitions = map[OfficialRouteStatus][]OfficialRouteStatus{
	RouteCollecting:  {RouteConfirmed, RouteCancelled},
	RouteConfirmed:   {RouteDispatching, RouteCancelled},
	RouteDispatching: {RouteActive, RouteCancelled},
	RouteActive:      {RouteCompleted, RouteCancelled},
	RouteCompleted:   {},
	RouteCancelled:   {},
}

func (s OfficialRouteStatus) CanTransition(to OfficialRouteStatus) bool {
	if s == to {
		return true
	}
	for _, n := range routeTransitions[s] {
		if n == to {
			return true
		}
	}
	return false
}

// OfficialRoute é um fretado agendado com assentos fixos que vários
// passageiros reservam de forma independente.
// Invariante: 0 <= occupiedSeats <= totalSeats, sempre dentro de transação.
type OfficialRoute struct {
	ID            string              `json:"id"`
	Pickup        LocationData        `json:"pickup"`
	Dropoff       LocationData        `json:"dropoff"`
	Date          string              `json:"date"`
	Status        OfficialRouteStatus `json:"status"`
	TotalSeats    int                 `json:"totalSeats"`
	OccupiedSeats int                 `json:"occupiedSeats"`
	PricePerSeat  int64               `json:"pricePerSeat"`
	CharterPrice  int64               `json:"charterPrice,omitempty"`
	DriverID      string              `json:"driverId,omitempty"`
	AdminNote     string              `json:"adminNote,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}
