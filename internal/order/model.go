package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusInProcess Status = "InProcess"
	StatusDelivered Status = "Delivered"
)

func (s Status) String() string {
	return string(s)
}

// Line is an immutable copy of a basket line taken when the order was
// placed. Rating and InitialRating are set once the user rates the dish.
type Line struct {
	ID            uuid.UUID       `json:"id"`
	OrderID       uuid.UUID       `json:"order_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	Image         string          `json:"image"`
	Rating        *int            `json:"rating,omitempty"`
	InitialRating *float64        `json:"initial_rating,omitempty"`
}

func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID           uuid.UUID       `json:"id"`
	UserID       string          `json:"-"`
	DeliveryTime time.Time       `json:"delivery_time"`
	OrderTime    time.Time       `json:"order_time"`
	Status       Status          `json:"status"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Address      string          `json:"address"`
	Lines        []Line          `json:"lines,omitempty"`
}
