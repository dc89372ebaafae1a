package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/food-delivery/internal/db"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository interface {
	Create(ctx context.Context, order *Order) error
	// GetForUser returns the order only when it belongs to userID.
	GetForUser(ctx context.Context, orderID uuid.UUID, userID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	GetStatusForUpdate(ctx context.Context, orderID uuid.UUID) (Status, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error
}

type postgresRepository struct {
	db *db.Postgres
}

func NewRepository(db *db.Postgres) Repository {
	return &postgresRepository{db: db}
}

// Create inserts the order and its lines. IDs must already be assigned.
func (r *postgresRepository) Create(ctx context.Context, order *Order) error {
	q := r.db.Q(ctx)

	queryOrder := `
		INSERT INTO orders (id, user_id, delivery_time, order_time, status, total_price, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.Exec(ctx, queryOrder,
		order.ID,
		order.UserID,
		order.DeliveryTime,
		order.OrderTime,
		string(order.Status),
		order.TotalPrice,
		order.Address,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryLine := `
		INSERT INTO order_lines (id, order_id, name, price, quantity, image)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, line := range order.Lines {
		_, err = q.Exec(ctx, queryLine,
			line.ID,
			order.ID,
			line.Name,
			line.Price,
			line.Quantity,
			line.Image,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order line for order %s: %w", order.ID, err)
		}
	}

	return nil
}

func (r *postgresRepository) GetForUser(ctx context.Context, orderID uuid.UUID, userID string) (*Order, error) {
	q := r.db.Q(ctx)

	queryOrder := `
		SELECT id, user_id, delivery_time, order_time, status, total_price, address
		FROM orders
		WHERE id = $1 AND user_id = $2
	`

	var order Order
	err := q.QueryRow(ctx, queryOrder, orderID, userID).Scan(
		&order.ID,
		&order.UserID,
		&order.DeliveryTime,
		&order.OrderTime,
		&order.Status,
		&order.TotalPrice,
		&order.Address,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	queryLines := `
		SELECT id, order_id, name, price, quantity, image, rating, initial_rating
		FROM order_lines
		WHERE order_id = $1
		ORDER BY name
	`
	rows, err := q.Query(ctx, queryLines, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order lines for order id %s: %w", orderID, err)
	}
	defer rows.Close()

	order.Lines = make([]Line, 0)
	for rows.Next() {
		var line Line
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.Name,
			&line.Price,
			&line.Quantity,
			&line.Image,
			&line.Rating,
			&line.InitialRating,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order line for order id %s: %w", orderID, err)
		}
		order.Lines = append(order.Lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order lines for order id %s: %w", orderID, err)
	}

	return &order, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	query := `
		SELECT id, user_id, delivery_time, order_time, status, total_price, address
		FROM orders
		WHERE user_id = $1
		ORDER BY order_time DESC
	`

	rows, err := r.db.Q(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var order Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.DeliveryTime,
			&order.OrderTime,
			&order.Status,
			&order.TotalPrice,
			&order.Address,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed scan order for user id %s: %w", userID, err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders for user id %s: %w", userID, err)
	}

	return orders, nil
}

func (r *postgresRepository) GetStatusForUpdate(ctx context.Context, orderID uuid.UUID) (Status, error) {
	var status Status
	err := r.db.Q(ctx).QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("repository: failed to lock order %s: %w", orderID, err)
	}
	return status, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error {
	cmdTag, err := r.db.Q(ctx).Exec(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(newStatus), orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("repository: order not found for status update")
		return ErrOrderNotFound
	}

	return nil
}
