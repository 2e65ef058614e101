package models

import "time"

type OrderStatus string

const (
	OrderPending          OrderStatus = "PENDING"
	OrderWaitingForDriver OrderStatus = "WAITING_FOR_DRIVER"
	OrderAccepted         OrderStatus = "ACCEPTED"
	OrderOnTheWay         OrderStatus = "ON_THE_WAY"
	OrderCompleted        OrderStatus = "COMPLETED"
	OrderCancelled        OrderStatus = "CANCELLED"
)

type OrderType string

const (
	OrderCarpool OrderType = "CARPOOL"
	OrderCharter OrderType = "CHARTER"
)

// orderTransitions é o grafo de fluxos permitidos. Estados terminais não
// saem de lugar nenhum.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:          {OrderAccepted, OrderCancelled},
	OrderWaitingForDriver: {OrderAccepted, OrderCancelled},
	OrderAccepted:         {OrderOnTheWay, OrderCompleted, OrderCancelled},
	OrderOnTheWay:         {OrderCompleted, OrderCancelled},
	OrderCompleted:        {},
	OrderCancelled:        {},
}

func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s == to {
		return true
	}
	for _, n := range orderTransitions[s] {
		if n == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// HasDriver: estados em que driverId deve estar preenchido.
func (s OrderStatus) HasDriver() bool {
	return s == OrderAccepted || s == OrderOnTheWay || s == OrderCompleted
}

type Order struct {
	ID              string       `json:"id"`
	PassengerID     string       `json:"passengerId"`
	DriverID        string       `json:"driverId,omitempty"`
	OfficialRouteID string       `json:"officialRouteId,omitempty"`
	Type            OrderType    `json:"type"`
	Pickup          LocationData `json:"pickup"`
	Dropoff         LocationData `json:"dropoff"`
	Status          OrderStatus  `json:"status"`
	Price           int64        `json:"price"`
	PlatformFee     int64        `json:"platformFee"`
	Date            string       `json:"date"`
	PassengersCount int          `json:"passengersCount"`
	Notes           string       `json:"notes,omitempty"`
	IsOfficial      bool         `json:"isOfficial,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	CompletedAt     *time.Time   `json:"completedAt,omitempty"`
}

type CreateOrderRequest struct {
	Pickup          LocationData `json:"pickup"`
	Dropoff         LocationData `json:"dropoff"`
	Type            OrderType    `json:"type"`
	Date            string       `json:"date"`
	PassengersCount int          `json:"passengersCount"`
	Notes           string       `json:"notes"`
}
