package catalog

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Dish is a catalog entry. Rating is the aggregate of user scores, 0 while unrated.
type Dish struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Image       string          `json:"image" db:"image"`
	Vegetarian  bool            `json:"vegetarian" db:"vegetarian"`
	Category    string          `json:"category" db:"category"`
	Rating      float64         `json:"rating" db:"rating"`
}
