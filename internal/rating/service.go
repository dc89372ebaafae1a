package rating

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/food-delivery/internal/catalog"
	"github.com/vasiliy-maslov/food-delivery/internal/db"
	"github.com/vasiliy-maslov/food-delivery/internal/events"
)

var (
	ErrInvalidScore = fmt.Errorf("rating score must be between %d and %d", MinScore, MaxScore)
	ErrNotEligible  = errors.New("dish was never ordered by this user")
)

type DishCatalog interface {
	GetDish(ctx context.Context, id uuid.UUID) (*catalog.Dish, error)
	Forget(ctx context.Context, id uuid.UUID)
}

type Result struct {
	DishID    uuid.UUID `json:"dish_id"`
	Score     int       `json:"score"`
	Rating    float64   `json:"rating"`
	FirstTime bool      `json:"first_time"`
}

type Service interface {
	// CheckEligibility reports whether any order of the user, in any status,
	// contains a line with the dish's name.
	CheckEligibility(ctx context.Context, userID string, dishID uuid.UUID) (bool, error)
	SubmitRating(ctx context.Context, userID string, dishID uuid.UUID, score int) (*Result, error)
}

type service struct {
	repo      Repository
	dishes    DishCatalog
	tx        db.Transactor
	publisher events.Publisher
}

func NewService(repo Repository, dishes DishCatalog, tx db.Transactor, publisher events.Publisher) Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &service{repo: repo, dishes: dishes, tx: tx, publisher: publisher}
}

func (s *service) CheckEligibility(ctx context.Context, userID string, dishID uuid.UUID) (bool, error) {
	dish, err := s.dishes.GetDish(ctx, dishID)
	if err != nil {
		if errors.Is(err, catalog.ErrDishNotFound) {
			return false, catalog.ErrDishNotFound
		}
		return false, fmt.Errorf("service: failed to look up dish: %w", err)
	}

	ok, err := s.repo.HasPurchased(ctx, userID, dish.Name)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Stringer("dish_id", dishID).Msg("service: failed to check rating eligibility")
		return false, fmt.Errorf("service: failed to check eligibility: %w", err)
	}

	return ok, nil
}

func (s *service) SubmitRating(ctx context.Context, userID string, dishID uuid.UUID, score int) (*Result, error) {
	if !validScore(score) {
		log.Warn().Str("user_id", userID).Int("score", score).Msg("service: rating score out of range")
		return nil, ErrInvalidScore
	}

	result := &Result{DishID: dishID, Score: score}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		dish, err := s.repo.LockDish(ctx, dishID)
		if err != nil {
			return err
		}

		line, err := s.repo.LockUserLine(ctx, userID, dish.Name)
		if err != nil {
			return err
		}

		if line.Rating == nil {
			result.FirstTime = true
			result.Rating, err = s.applyFirstRating(ctx, dish, line, score)
		} else {
			result.Rating, err = s.applyRatingUpdate(ctx, dish, line, score)
		}
		if err != nil {
			return err
		}

		return s.repo.UpdateDishRating(ctx, dish.ID, result.Rating)
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrDishNotFound):
			log.Warn().Stringer("dish_id", dishID).Msg("service: dish not found for rating")
			return nil, catalog.ErrDishNotFound
		case errors.Is(err, ErrNotEligible):
			log.Warn().Str("user_id", userID).Stringer("dish_id", dishID).Msg("service: user is not eligible to rate dish")
			return nil, ErrNotEligible
		case errors.Is(err, db.ErrConflict):
			return nil, err
		}
		log.Error().Err(err).Str("user_id", userID).Stringer("dish_id", dishID).Msg("service: failed to submit rating")
		return nil, fmt.Errorf("service: failed to submit rating: %w", err)
	}

	s.dishes.Forget(ctx, dishID)

	log.Info().Str("user_id", userID).Stringer("dish_id", dishID).Int("score", score).Float64("rating", result.Rating).Msg("service: dish rated")

	events.PublishAfterCommit(ctx, s.publisher, events.Event{
		Type: events.DishRated,
		Key:  dishID.String(),
		Payload: map[string]any{
			"dish_id":    dishID,
			"user_id":    userID,
			"score":      score,
			"rating":     result.Rating,
			"first_time": result.FirstTime,
		},
	})

	return result, nil
}

// applyFirstRating records the aggregate seen before this score as the
// line's initial rating.
func (s *service) applyFirstRating(ctx context.Context, dish *DishState, line *RatedLine, score int) (float64, error) {
	if err := s.repo.SetFirstRating(ctx, line.ID, score, dish.Rating); err != nil {
		return 0, err
	}
	return firstRatingAverage(dish.Rating, score), nil
}

// applyRatingUpdate overwrites the user's score and recomputes the mean over
// every recorded rating for the dish name.
func (s *service) applyRatingUpdate(ctx context.Context, dish *DishState, line *RatedLine, score int) (float64, error) {
	sum, count, err := s.repo.RatingTotals(ctx, dish.Name)
	if err != nil {
		return 0, err
	}

	if err := s.repo.SetRating(ctx, line.ID, score); err != nil {
		return 0, err
	}

	return recomputedAverage(sum, count, *line.Rating, score), nil
}
