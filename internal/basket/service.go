package basket

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/food-delivery/internal/catalog"
	"github.com/vasiliy-maslov/food-delivery/internal/db"
)

// DishFinder reads dishes from the catalog store. Basket lines copy the
// current price, so cached dishes are not used here.
type DishFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*catalog.Dish, error)
}

type Service interface {
	AddDish(ctx context.Context, userID string, dishID uuid.UUID) (*Line, error)
	// ModifyBasket removes one unit of the dish when decrement is true and
	// the whole line otherwise. A line whose quantity would reach zero is deleted.
	ModifyBasket(ctx context.Context, userID string, dishID uuid.UUID, decrement bool) error
	GetBasket(ctx context.Context, userID string) ([]Line, error)
}

type service struct {
	repo   Repository
	dishes DishFinder
	tx     db.Transactor
}

func NewService(repo Repository, dishes DishFinder, tx db.Transactor) Service {
	return &service{repo: repo, dishes: dishes, tx: tx}
}

func (s *service) AddDish(ctx context.Context, userID string, dishID uuid.UUID) (*Line, error) {
	dish, err := s.dishes.GetByID(ctx, dishID)
	if err != nil {
		if errors.Is(err, catalog.ErrDishNotFound) {
			return nil, catalog.ErrDishNotFound
		}
		return nil, fmt.Errorf("service: failed to look up dish: %w", err)
	}

	line, err := s.repo.AddOne(ctx, userID, dish)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Stringer("dish_id", dishID).Msg("service: failed to add dish to basket")
		return nil, fmt.Errorf("service: failed to add dish to basket: %w", err)
	}

	log.Info().Str("user_id", userID).Str("dish", line.Name).Int("quantity", line.Quantity).Msg("service: dish added to basket")
	return line, nil
}

func (s *service) ModifyBasket(ctx context.Context, userID string, dishID uuid.UUID, decrement bool) error {
	dish, err := s.dishes.GetByID(ctx, dishID)
	if err != nil {
		if errors.Is(err, catalog.ErrDishNotFound) {
			return catalog.ErrDishNotFound
		}
		return fmt.Errorf("service: failed to look up dish: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		line, err := s.repo.GetForUpdate(ctx, userID, dish.Name)
		if err != nil {
			return err
		}

		if decrement && line.Quantity > 1 {
			quantity := line.Quantity - 1
			return s.repo.UpdateQuantity(ctx, line.ID, quantity, lineTotal(line.Price, quantity))
		}

		return s.repo.Delete(ctx, line.ID)
	})
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			log.Warn().Str("user_id", userID).Stringer("dish_id", dishID).Msg("service: dish not in basket")
			return ErrLineNotFound
		}
		if errors.Is(err, db.ErrConflict) {
			return err
		}
		log.Error().Err(err).Str("user_id", userID).Stringer("dish_id", dishID).Msg("service: failed to modify basket")
		return fmt.Errorf("service: failed to modify basket: %w", err)
	}

	return nil
}

func (s *service) GetBasket(ctx context.Context, userID string) ([]Line, error) {
	lines, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("service: failed to fetch basket in repository")
		return nil, fmt.Errorf("service: failed to fetch basket: %w", err)
	}
	return lines, nil
}
