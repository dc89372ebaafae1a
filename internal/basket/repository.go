package basket

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/food-delivery/internal/catalog"
	"github.com/vasiliy-maslov/food-delivery/internal/db"
)

var ErrLineNotFound = errors.New("dish is not in the basket")

type Repository interface {
	// AddOne creates the (user, dish name) line with quantity 1 or increments
	// the existing one in a single statement.
	AddOne(ctx context.Context, userID string, dish *catalog.Dish) (*Line, error)
	GetForUpdate(ctx context.Context, userID, name string) (*Line, error)
	UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity int, total decimal.Decimal) error
	Delete(ctx context.Context, lineID uuid.UUID) error
	ListByUser(ctx context.Context, userID string) ([]Line, error)
	// LockByUser returns the user's lines locked until the surrounding
	// transaction ends.
	LockByUser(ctx context.Context, userID string) ([]Line, error)
	// DeleteLines removes the given lines of the user and reports how many
	// were deleted. Lines added after the ids were read are left alone.
	DeleteLines(ctx context.Context, userID string, lineIDs []uuid.UUID) (int64, error)
}

type postgresRepository struct {
	db *db.Postgres
}

func NewRepository(db *db.Postgres) Repository {
	return &postgresRepository{db: db}
}

const lineColumns = `id, user_id, name, price, quantity, total, image`

func scanLine(row pgx.Row) (*Line, error) {
	var line Line
	err := row.Scan(
		&line.ID,
		&line.UserID,
		&line.Name,
		&line.Price,
		&line.Quantity,
		&line.Total,
		&line.Image,
	)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *postgresRepository) AddOne(ctx context.Context, userID string, dish *catalog.Dish) (*Line, error) {
	lineID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate basket line ID: %w", err)
	}

	query := `
		INSERT INTO basket_lines (id, user_id, name, price, quantity, total, image)
		VALUES ($1, $2, $3, $4, 1, $4, $5)
		ON CONFLICT (user_id, name) DO UPDATE
		SET quantity = basket_lines.quantity + 1,
		    total = basket_lines.price * (basket_lines.quantity + 1)
		RETURNING ` + lineColumns

	line, err := scanLine(r.db.Q(ctx).QueryRow(ctx, query, lineID, userID, dish.Name, dish.Price, dish.Image))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to upsert basket line %q for user %s: %w", dish.Name, userID, err)
	}

	return line, nil
}

func (r *postgresRepository) GetForUpdate(ctx context.Context, userID, name string) (*Line, error) {
	query := `SELECT ` + lineColumns + ` FROM basket_lines WHERE user_id = $1 AND name = $2 FOR UPDATE`

	line, err := scanLine(r.db.Q(ctx).QueryRow(ctx, query, userID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("repository: failed to select basket line %q for user %s: %w", name, userID, err)
	}

	return line, nil
}

func (r *postgresRepository) UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity int, total decimal.Decimal) error {
	cmdTag, err := r.db.Q(ctx).Exec(ctx,
		`UPDATE basket_lines SET quantity = $1, total = $2 WHERE id = $3`,
		quantity, total, lineID,
	)
	if err != nil {
		log.Error().Err(err).Stringer("line_id", lineID).Msg("repository: failed to update basket line quantity")
		return fmt.Errorf("repository: failed to update basket line %s: %w", lineID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrLineNotFound
	}

	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, lineID uuid.UUID) error {
	cmdTag, err := r.db.Q(ctx).Exec(ctx, `DELETE FROM basket_lines WHERE id = $1`, lineID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete basket line %s: %w", lineID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrLineNotFound
	}

	return nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID string) ([]Line, error) {
	return r.list(ctx, `SELECT `+lineColumns+` FROM basket_lines WHERE user_id = $1 ORDER BY name`, userID)
}

func (r *postgresRepository) LockByUser(ctx context.Context, userID string) ([]Line, error) {
	return r.list(ctx, `SELECT `+lineColumns+` FROM basket_lines WHERE user_id = $1 ORDER BY name FOR UPDATE`, userID)
}

func (r *postgresRepository) list(ctx context.Context, query, userID string) ([]Line, error) {
	rows, err := r.db.Q(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query basket lines for user %s: %w", userID, err)
	}
	defer rows.Close()

	lines := make([]Line, 0)
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan basket line for user %s: %w", userID, err)
		}
		lines = append(lines, *line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating basket lines for user %s: %w", userID, err)
	}

	return lines, nil
}

func (r *postgresRepository) DeleteLines(ctx context.Context, userID string, lineIDs []uuid.UUID) (int64, error) {
	ids := make([]string, 0, len(lineIDs))
	for _, id := range lineIDs {
		ids = append(ids, id.String())
	}

	cmdTag, err := r.db.Q(ctx).Exec(ctx,
		`DELETE FROM basket_lines WHERE user_id = $1 AND id = ANY($2::uuid[])`,
		userID, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to clear basket for user %s: %w", userID, err)
	}
	return cmdTag.RowsAffected(), nil
}
