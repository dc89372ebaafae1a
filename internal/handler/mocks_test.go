package handler_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/food-delivery/internal/basket"
	"github.com/vasiliy-maslov/food-delivery/internal/catalog"
	"github.com/vasiliy-maslov/food-delivery/internal/handler"
	"github.com/vasiliy-maslov/food-delivery/internal/order"
	"github.com/vasiliy-maslov/food-delivery/internal/rating"
)

const (
	testSecret = "test-secret"
	testUserID = "user-1"
)

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) GetDish(ctx context.Context, id uuid.UUID) (*catalog.Dish, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Dish), args.Error(1)
}

func (m *MockCatalogService) ListDishes(ctx context.Context) ([]catalog.Dish, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Dish), args.Error(1)
}

func (m *MockCatalogService) Forget(ctx context.Context, id uuid.UUID) {
	m.Called(ctx, id)
}

type MockRatingService struct {
	mock.Mock
}

func (m *MockRatingService) CheckEligibility(ctx context.Context, userID string, dishID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, dishID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRatingService) SubmitRating(ctx context.Context, userID string, dishID uuid.UUID, score int) (*rating.Result, error) {
	args := m.Called(ctx, userID, dishID, score)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rating.Result), args.Error(1)
}

type MockBasketService struct {
	mock.Mock
}

func (m *MockBasketService) AddDish(ctx context.Context, userID string, dishID uuid.UUID) (*basket.Line, error) {
	args := m.Called(ctx, userID, dishID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*basket.Line), args.Error(1)
}

func (m *MockBasketService) ModifyBasket(ctx context.Context, userID string, dishID uuid.UUID, decrement bool) error {
	return m.Called(ctx, userID, dishID, decrement).Error(0)
}

func (m *MockBasketService) GetBasket(ctx context.Context, userID string) ([]basket.Line, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]basket.Line), args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, userID string, deliveryTime time.Time, address string) (*order.Order, error) {
	args := m.Called(ctx, userID, deliveryTime, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ListOrders(ctx context.Context, userID string) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) AdvanceStatus(ctx context.Context, orderID uuid.UUID) error {
	return m.Called(ctx, orderID).Error(0)
}

// protectedRouter mounts routes behind the bearer token middleware the way
// the production router does.
func protectedRouter(register func(chi.Router)) *chi.Mux {
	router := chi.NewRouter()
	router.Route("/api", func(api chi.Router) {
		api.Use(handler.NewAuthenticator(testSecret).Middleware)
		register(api)
	})
	return router
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := handler.NewAuthenticator(testSecret).IssueToken(userID, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(t *testing.T, router http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", bearer(t, testUserID))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
