package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/food-delivery/internal/basket"
	"github.com/vasiliy-maslov/food-delivery/internal/db"
	"github.com/vasiliy-maslov/food-delivery/internal/events"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusInProcess: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
}

var (
	ErrInvalidDeliveryTime = errors.New("invalid delivery time")
	ErrEmptyBasket         = errors.New("the basket is empty, cannot create an order")
	ErrNoOrders            = errors.New("user has no orders")
	ErrInvalidTransition   = errors.New("order is not in process")
)

// BasketStore is the part of the basket storage an order is built from.
type BasketStore interface {
	LockByUser(ctx context.Context, userID string) ([]basket.Line, error)
	DeleteLines(ctx context.Context, userID string, lineIDs []uuid.UUID) (int64, error)
}

type Service interface {
	CreateOrder(ctx context.Context, userID string, deliveryTime time.Time, address string) (*Order, error)
	GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, userID string) ([]Order, error)
	// AdvanceStatus moves an order from InProcess to Delivered. Any
	// authenticated caller may advance any order.
	AdvanceStatus(ctx context.Context, orderID uuid.UUID) error
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

type service struct {
	repo      Repository
	baskets   BasketStore
	tx        db.Transactor
	publisher events.Publisher
	minLead   time.Duration
	now       func() time.Time
}

func NewService(repo Repository, baskets BasketStore, tx db.Transactor, publisher events.Publisher, minLead time.Duration, opts ...Option) Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &service{
		repo:      repo,
		baskets:   baskets,
		tx:        tx,
		publisher: publisher,
		minLead:   minLead,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateOrder(ctx context.Context, userID string, deliveryTime time.Time, address string) (*Order, error) {
	now := s.now().UTC()
	if !deliveryTime.After(now.Add(s.minLead)) {
		log.Warn().Str("user_id", userID).Time("delivery_time", deliveryTime).Msg("service: delivery time too early")
		return nil, fmt.Errorf("%w: delivery time must be more than %s after the current time", ErrInvalidDeliveryTime, formatLead(s.minLead))
	}

	var created *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lines, err := s.baskets.LockByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyBasket
		}

		order, err := snapshot(userID, deliveryTime.UTC(), now, address, lines)
		if err != nil {
			return err
		}

		if err := s.repo.Create(ctx, order); err != nil {
			return err
		}

		lineIDs := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			lineIDs = append(lineIDs, line.ID)
		}
		deleted, err := s.baskets.DeleteLines(ctx, userID, lineIDs)
		if err != nil {
			return err
		}
		if deleted != int64(len(lines)) {
			return fmt.Errorf("%w: cleared %d of %d basket lines", db.ErrConflict, deleted, len(lines))
		}

		created = order
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmptyBasket) {
			log.Warn().Str("user_id", userID).Msg("service: attempt to create order from empty basket")
			return nil, ErrEmptyBasket
		}
		if errors.Is(err, db.ErrConflict) {
			log.Warn().Err(err).Str("user_id", userID).Msg("service: basket changed while creating order")
			return nil, err
		}
		log.Error().Err(err).Str("user_id", userID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", created.ID).Str("user_id", userID).Str("total", created.TotalPrice.String()).Msg("service: order created successfully")

	events.PublishAfterCommit(ctx, s.publisher, events.Event{
		Type: events.OrderCreated,
		Key:  created.ID.String(),
		Payload: map[string]any{
			"order_id":      created.ID,
			"user_id":       userID,
			"total_price":   created.TotalPrice,
			"delivery_time": created.DeliveryTime,
			"lines":         len(created.Lines),
		},
	})

	return created, nil
}

// snapshot copies the basket lines into a new InProcess order. The order
// total is the sum of the basket line totals at this moment.
func snapshot(userID string, deliveryTime, now time.Time, address string, lines []basket.Line) (*Order, error) {
	orderID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order ID: %w", err)
	}

	order := &Order{
		ID:           orderID,
		UserID:       userID,
		DeliveryTime: deliveryTime,
		OrderTime:    now,
		Status:       StatusInProcess,
		TotalPrice:   decimal.Zero,
		Address:      address,
		Lines:        make([]Line, 0, len(lines)),
	}

	for _, bl := range lines {
		lineID, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("service: failed to generate order line ID: %w", err)
		}
		order.Lines = append(order.Lines, Line{
			ID:       lineID,
			OrderID:  orderID,
			Name:     bl.Name,
			Price:    bl.Price,
			Quantity: bl.Quantity,
			Image:    bl.Image,
		})
		order.TotalPrice = order.TotalPrice.Add(bl.Total)
	}

	return order, nil
}

func (s *service) GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*Order, error) {
	order, err := s.repo.GetForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", orderID).Str("user_id", userID).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return order, nil
}

func (s *service) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	if len(orders) == 0 {
		return nil, ErrNoOrders
	}

	return orders, nil
}

func (s *service) AdvanceStatus(ctx context.Context, orderID uuid.UUID) error {
	var from Status
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetStatusForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		from = current

		if !allowedTransitions[current][StatusDelivered] {
			return ErrInvalidTransition
		}

		return s.repo.UpdateStatus(ctx, orderID, StatusDelivered)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			log.Warn().Stringer("order_id", orderID).Msg("service: order not found, cannot update status")
			return ErrOrderNotFound
		case errors.Is(err, ErrInvalidTransition):
			log.Warn().Stringer("order_id", orderID).Stringer("current_status", from).Msg("service: invalid status transition attempt")
			return ErrInvalidTransition
		case errors.Is(err, db.ErrConflict):
			return err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to update order status in repository")
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", from).Stringer("new_status", StatusDelivered).Msg("service: order status updated successfully")

	events.PublishAfterCommit(ctx, s.publisher, events.Event{
		Type:    events.OrderDelivered,
		Key:     orderID.String(),
		Payload: map[string]any{"order_id": orderID},
	})

	return nil
}

func formatLead(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
