package rating

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vasiliy-maslov/food-delivery/internal/catalog"
	"github.com/vasiliy-maslov/food-delivery/internal/db"
)

type DishState struct {
	ID     uuid.UUID
	Name   string
	Rating float64
}

// RatedLine is the order line that carries a user's rating for a dish name.
type RatedLine struct {
	ID     uuid.UUID
	Rating *int
}

type Repository interface {
	LockDish(ctx context.Context, dishID uuid.UUID) (*DishState, error)
	HasPurchased(ctx context.Context, userID, name string) (bool, error)
	// LockUserLine picks the user's line for the dish name, preferring one
	// that is already rated, then the most recent order.
	LockUserLine(ctx context.Context, userID, name string) (*RatedLine, error)
	SetFirstRating(ctx context.Context, lineID uuid.UUID, score int, initial float64) error
	SetRating(ctx context.Context, lineID uuid.UUID, score int) error
	RatingTotals(ctx context.Context, name string) (sum, count int64, err error)
	UpdateDishRating(ctx context.Context, dishID uuid.UUID, rating float64) error
}

type postgresRepository struct {
	db *db.Postgres
}

func NewRepository(db *db.Postgres) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) LockDish(ctx context.Context, dishID uuid.UUID) (*DishState, error) {
	var dish DishState
	err := r.db.Q(ctx).QueryRow(ctx,
		`SELECT id, name, rating FROM dishes WHERE id = $1 FOR UPDATE`, dishID,
	).Scan(&dish.ID, &dish.Name, &dish.Rating)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrDishNotFound
		}
		return nil, fmt.Errorf("repository: failed to lock dish %s: %w", dishID, err)
	}
	return &dish, nil
}

func (r *postgresRepository) HasPurchased(ctx context.Context, userID, name string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM order_lines ol
			JOIN orders o ON o.id = ol.order_id
			WHERE o.user_id = $1 AND ol.name = $2
		)
	`
	var exists bool
	if err := r.db.Q(ctx).QueryRow(ctx, query, userID, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("repository: failed to check purchase of %q by user %s: %w", name, userID, err)
	}
	return exists, nil
}

func (r *postgresRepository) LockUserLine(ctx context.Context, userID, name string) (*RatedLine, error) {
	query := `
		SELECT ol.id, ol.rating
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.user_id = $1 AND ol.name = $2
		ORDER BY ol.rating IS NULL, o.order_time DESC
		LIMIT 1
		FOR UPDATE OF ol
	`
	var line RatedLine
	err := r.db.Q(ctx).QueryRow(ctx, query, userID, name).Scan(&line.ID, &line.Rating)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotEligible
		}
		return nil, fmt.Errorf("repository: failed to lock order line %q for user %s: %w", name, userID, err)
	}
	return &line, nil
}

func (r *postgresRepository) SetFirstRating(ctx context.Context, lineID uuid.UUID, score int, initial float64) error {
	return r.exec(ctx, lineID,
		`UPDATE order_lines SET rating = $1, initial_rating = $2 WHERE id = $3`,
		score, initial, lineID)
}

func (r *postgresRepository) SetRating(ctx context.Context, lineID uuid.UUID, score int) error {
	return r.exec(ctx, lineID, `UPDATE order_lines SET rating = $1 WHERE id = $2`, score, lineID)
}

func (r *postgresRepository) exec(ctx context.Context, lineID uuid.UUID, query string, args ...any) error {
	cmdTag, err := r.db.Q(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repository: failed to store rating on order line %s: %w", lineID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("repository: order line %s disappeared while rating", lineID)
	}
	return nil
}

func (r *postgresRepository) RatingTotals(ctx context.Context, name string) (int64, int64, error) {
	var sum, count int64
	err := r.db.Q(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(rating), 0), COUNT(rating) FROM order_lines WHERE name = $1 AND rating IS NOT NULL`,
		name,
	).Scan(&sum, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("repository: failed to total ratings for %q: %w", name, err)
	}
	return sum, count, nil
}

func (r *postgresRepository) UpdateDishRating(ctx context.Context, dishID uuid.UUID, rating float64) error {
	cmdTag, err := r.db.Q(ctx).Exec(ctx, `UPDATE dishes SET rating = $1 WHERE id = $2`, rating, dishID)
	if err != nil {
		return fmt.Errorf("repository: failed to update rating of dish %s: %w", dishID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return catalog.ErrDishNotFound
	}
	return nil
}
