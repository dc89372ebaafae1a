package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	GetDish(ctx context.Context, id uuid.UUID) (*Dish, error)
	ListDishes(ctx context.Context) ([]Dish, error)
	Forget(ctx context.Context, id uuid.UUID)
}

type service struct {
	repo  Repository
	cache Cache
}

func NewService(repo Repository, cache Cache) Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &service{repo: repo, cache: cache}
}

// GetDish reads through the cache. Cache failures are logged and fall back to
// the database.
func (s *service) GetDish(ctx context.Context, id uuid.UUID) (*Dish, error) {
	cached, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		log.Warn().Err(err).Stringer("dish_id", id).Msg("service: dish cache read failed")
	}
	if ok {
		return cached, nil
	}

	dish, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDishNotFound) {
			log.Warn().Stringer("dish_id", id).Msg("service: dish not found by id")
			return nil, ErrDishNotFound
		}
		log.Error().Err(err).Stringer("dish_id", id).Msg("service: failed to fetch dish in repository")
		return nil, fmt.Errorf("service: failed to fetch dish: %w", err)
	}

	if err := s.cache.Set(ctx, dish); err != nil {
		log.Warn().Err(err).Stringer("dish_id", id).Msg("service: dish cache write failed")
	}

	return dish, nil
}

func (s *service) ListDishes(ctx context.Context) ([]Dish, error) {
	dishes, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list dishes in repository")
		return nil, fmt.Errorf("service: failed to list dishes: %w", err)
	}
	return dishes, nil
}

// Forget drops the cached copy of a dish after its rating changed.
func (s *service) Forget(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.Warn().Err(err).Stringer("dish_id", id).Msg("service: dish cache invalidation failed")
	}
}
