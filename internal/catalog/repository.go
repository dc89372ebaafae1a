package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrDishNotFound = errors.New("dish not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Dish, error)
	List(ctx context.Context) ([]Dish, error)
}

type sqlxRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlxRepository{db: db}
}

const dishColumns = `id, name, description, price, image, vegetarian, category, rating`

func (r *sqlxRepository) GetByID(ctx context.Context, id uuid.UUID) (*Dish, error) {
	var dish Dish
	err := r.db.GetContext(ctx, &dish, `SELECT `+dishColumns+` FROM dishes WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDishNotFound
		}
		return nil, fmt.Errorf("repository: failed to select dish by id %s: %w", id, err)
	}

	return &dish, nil
}

func (r *sqlxRepository) List(ctx context.Context) ([]Dish, error) {
	dishes := make([]Dish, 0)
	err := r.db.SelectContext(ctx, &dishes, `SELECT `+dishColumns+` FROM dishes ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list dishes: %w", err)
	}

	return dishes, nil
}
