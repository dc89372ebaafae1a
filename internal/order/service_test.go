package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/food-delivery/internal/basket"
	"github.com/vasiliy-maslov/food-delivery/internal/db"
	"github.com/vasiliy-maslov/food-delivery/internal/events"
	"github.com/vasiliy-maslov/food-delivery/internal/order"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockRepository) GetForUser(ctx context.Context, orderID uuid.UUID, userID string) (*order.Order, error) {
	args := m.Called(ctx, orderID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockRepository) GetStatusForUpdate(ctx context.Context, orderID uuid.UUID) (order.Status, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(order.Status), args.Error(1)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus order.Status) error {
	return m.Called(ctx, orderID, newStatus).Error(0)
}

type MockBasketStore struct {
	mock.Mock
}

func (m *MockBasketStore) LockByUser(ctx context.Context, userID string) ([]basket.Line, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]basket.Line), args.Error(1)
}

func (m *MockBasketStore) DeleteLines(ctx context.Context, userID string, lineIDs []uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID, lineIDs)
	return args.Get(0).(int64), args.Error(1)
}

type inlineTx struct{}

func (inlineTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

const userID = "user-1"

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newService(repo *MockRepository, baskets *MockBasketStore, pub events.Publisher) order.Service {
	return order.NewService(repo, baskets, inlineTx{}, pub, 60*time.Minute, order.WithClock(func() time.Time { return now }))
}

var (
	borschtLineID = uuid.Must(uuid.FromString("6f1c2d7e-0b8a-4c43-9a51-3c1d2f0e9a01"))
	pelmeniLineID = uuid.Must(uuid.FromString("6f1c2d7e-0b8a-4c43-9a51-3c1d2f0e9a02"))
	snapshotIDs   = []uuid.UUID{borschtLineID, pelmeniLineID}
)

func basketLines() []basket.Line {
	return []basket.Line{
		{ID: borschtLineID, Name: "Borscht", Price: decimal.RequireFromString("7.50"), Quantity: 2, Total: decimal.RequireFromString("15.00"), Image: "b.png"},
		{ID: pelmeniLineID, Name: "Pelmeni", Price: decimal.RequireFromString("9.25"), Quantity: 1, Total: decimal.RequireFromString("9.25"), Image: "p.png"},
	}
}

func TestService_CreateOrder_Snapshot(t *testing.T) {
	repo, baskets, pub := new(MockRepository), new(MockBasketStore), &recordingPublisher{}
	delivery := now.Add(2 * time.Hour)

	baskets.On("LockByUser", mock.Anything, userID).Return(basketLines(), nil).Once()
	repo.On("Create", mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil).Once()
	baskets.On("DeleteLines", mock.Anything, userID, snapshotIDs).Return(int64(2), nil).Once()

	created, err := newService(repo, baskets, pub).CreateOrder(context.Background(), userID, delivery, "Main st. 1")
	require.NoError(t, err)

	want := &order.Order{
		UserID:       userID,
		DeliveryTime: delivery,
		OrderTime:    now,
		Status:       order.StatusInProcess,
		TotalPrice:   decimal.RequireFromString("24.25"),
		Address:      "Main st. 1",
		Lines: []order.Line{
			{Name: "Borscht", Price: decimal.RequireFromString("7.50"), Quantity: 2, Image: "b.png"},
			{Name: "Pelmeni", Price: decimal.RequireFromString("9.25"), Quantity: 1, Image: "p.png"},
		},
	}
	opts := cmp.Options{
		cmpopts.IgnoreFields(order.Order{}, "ID"),
		cmpopts.IgnoreFields(order.Line{}, "ID", "OrderID"),
		cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
	}
	if diff := cmp.Diff(want, created, opts); diff != "" {
		t.Errorf("CreateOrder() mismatch (-want +got):\n%s", diff)
	}

	assert.NotEqual(t, uuid.Nil, created.ID)
	for _, line := range created.Lines {
		assert.Equal(t, created.ID, line.OrderID)
		assert.NotEqual(t, uuid.Nil, line.ID)
	}

	repo.AssertExpectations(t)
	baskets.AssertExpectations(t)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.OrderCreated, pub.events[0].Type)
	assert.Equal(t, created.ID.String(), pub.events[0].Key)
}

func TestService_CreateOrder_DeliveryTimeBoundary(t *testing.T) {
	tests := []struct {
		name     string
		delivery time.Time
		wantErr  bool
	}{
		{name: "in the past", delivery: now.Add(-time.Hour), wantErr: true},
		{name: "exactly sixty minutes", delivery: now.Add(60 * time.Minute), wantErr: true},
		{name: "sixty one minutes", delivery: now.Add(61 * time.Minute), wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, baskets := new(MockRepository), new(MockBasketStore)
			if !tt.wantErr {
				baskets.On("LockByUser", mock.Anything, userID).Return(basketLines(), nil).Once()
				repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
				baskets.On("DeleteLines", mock.Anything, userID, snapshotIDs).Return(int64(2), nil).Once()
			}

			_, err := newService(repo, baskets, nil).CreateOrder(context.Background(), userID, tt.delivery, "addr")
			if tt.wantErr {
				require.ErrorIs(t, err, order.ErrInvalidDeliveryTime)
				assert.Contains(t, err.Error(), "60 minutes")
				baskets.AssertNotCalled(t, "LockByUser", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestService_CreateOrder_EmptyBasket(t *testing.T) {
	repo, baskets, pub := new(MockRepository), new(MockBasketStore), &recordingPublisher{}
	baskets.On("LockByUser", mock.Anything, userID).Return([]basket.Line{}, nil).Once()

	_, err := newService(repo, baskets, pub).CreateOrder(context.Background(), userID, now.Add(3*time.Hour), "addr")
	require.ErrorIs(t, err, order.ErrEmptyBasket)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	baskets.AssertNotCalled(t, "DeleteLines", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, pub.events)
}

func TestService_CreateOrder_RepositoryFailure(t *testing.T) {
	repo, baskets, pub := new(MockRepository), new(MockBasketStore), &recordingPublisher{}
	baskets.On("LockByUser", mock.Anything, userID).Return(basketLines(), nil).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed")).Once()

	_, err := newService(repo, baskets, pub).CreateOrder(context.Background(), userID, now.Add(3*time.Hour), "addr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service: failed to create order")
	baskets.AssertNotCalled(t, "DeleteLines", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, pub.events)
}

func TestService_CreateOrder_BasketClearedPartially(t *testing.T) {
	repo, baskets, pub := new(MockRepository), new(MockBasketStore), &recordingPublisher{}
	baskets.On("LockByUser", mock.Anything, userID).Return(basketLines(), nil).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	baskets.On("DeleteLines", mock.Anything, userID, snapshotIDs).Return(int64(1), nil).Once()

	created, err := newService(repo, baskets, pub).CreateOrder(context.Background(), userID, now.Add(3*time.Hour), "addr")
	require.ErrorIs(t, err, db.ErrConflict)
	assert.Nil(t, created)
	assert.Empty(t, pub.events)
}

func TestService_GetOrder(t *testing.T) {
	repo := new(MockRepository)
	id := uuid.Must(uuid.NewV4())
	want := &order.Order{ID: id, UserID: userID, Status: order.StatusInProcess}
	repo.On("GetForUser", mock.Anything, id, userID).Return(want, nil).Once()
	repo.On("GetForUser", mock.Anything, id, "intruder").Return(nil, order.ErrOrderNotFound).Once()

	svc := newService(repo, new(MockBasketStore), nil)

	got, err := svc.GetOrder(context.Background(), userID, id)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.GetOrder(context.Background(), "intruder", id)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_ListOrders(t *testing.T) {
	t.Run("empty is not found", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("ListByUser", mock.Anything, userID).Return([]order.Order{}, nil).Once()

		_, err := newService(repo, new(MockBasketStore), nil).ListOrders(context.Background(), userID)
		assert.ErrorIs(t, err, order.ErrNoOrders)
	})

	t.Run("returns summaries", func(t *testing.T) {
		repo := new(MockRepository)
		orders := []order.Order{{ID: uuid.Must(uuid.NewV4())}, {ID: uuid.Must(uuid.NewV4())}}
		repo.On("ListByUser", mock.Anything, userID).Return(orders, nil).Once()

		got, err := newService(repo, new(MockBasketStore), nil).ListOrders(context.Background(), userID)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestService_AdvanceStatus(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	tests := []struct {
		name       string
		current    order.Status
		lookupErr  error
		wantErr    error
		wantUpdate bool
	}{
		{name: "in process to delivered", current: order.StatusInProcess, wantUpdate: true},
		{name: "already delivered", current: order.StatusDelivered, wantErr: order.ErrInvalidTransition},
		{name: "unknown order", lookupErr: order.ErrOrderNotFound, wantErr: order.ErrOrderNotFound},
		{name: "lock conflict", lookupErr: db.ErrConflict, wantErr: db.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, pub := new(MockRepository), &recordingPublisher{}
			repo.On("GetStatusForUpdate", mock.Anything, id).Return(tt.current, tt.lookupErr).Once()
			if tt.wantUpdate {
				repo.On("UpdateStatus", mock.Anything, id, order.StatusDelivered).Return(nil).Once()
			}

			err := newService(repo, new(MockBasketStore), pub).AdvanceStatus(context.Background(), id)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
				assert.Empty(t, pub.events)
				return
			}

			require.NoError(t, err)
			repo.AssertExpectations(t)
			require.Len(t, pub.events, 1)
			assert.Equal(t, events.OrderDelivered, pub.events[0].Type)
		})
	}
}
