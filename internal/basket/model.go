package basket

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Line is one dish in a user's basket. Lines are merged by (UserID, Name) and
// Total always equals Price * Quantity.
type Line struct {
	ID       uuid.UUID       `json:"id"`
	UserID   string          `json:"-"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
	Image    string          `json:"image"`
}

func lineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}
