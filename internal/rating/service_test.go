package rating_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/food-delivery/internal/catalog"
	"github.com/vasiliy-maslov/food-delivery/internal/events"
	"github.com/vasiliy-maslov/food-delivery/internal/rating"
)

type storedLine struct {
	id      uuid.UUID
	userID  string
	name    string
	rating  *int
	initial *float64
}

// memoryRepository keeps dishes and purchased order lines in memory.
type memoryRepository struct {
	dishes map[uuid.UUID]*rating.DishState
	lines  []*storedLine
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{dishes: make(map[uuid.UUID]*rating.DishState)}
}

func (m *memoryRepository) addDish(name string) uuid.UUID {
	id := uuid.Must(uuid.NewV4())
	m.dishes[id] = &rating.DishState{ID: id, Name: name}
	return id
}

func (m *memoryRepository) purchase(userID, name string) {
	m.lines = append(m.lines, &storedLine{id: uuid.Must(uuid.NewV4()), userID: userID, name: name})
}

func (m *memoryRepository) line(id uuid.UUID) *storedLine {
	for _, l := range m.lines {
		if l.id == id {
			return l
		}
	}
	return nil
}

func (m *memoryRepository) LockDish(_ context.Context, id uuid.UUID) (*rating.DishState, error) {
	d, ok := m.dishes[id]
	if !ok {
		return nil, catalog.ErrDishNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memoryRepository) HasPurchased(_ context.Context, userID, name string) (bool, error) {
	for _, l := range m.lines {
		if l.userID == userID && l.name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepository) LockUserLine(_ context.Context, userID, name string) (*rating.RatedLine, error) {
	var pick *storedLine
	for _, l := range m.lines {
		if l.userID != userID || l.name != name {
			continue
		}
		if pick == nil || (pick.rating == nil && l.rating != nil) {
			pick = l
		}
	}
	if pick == nil {
		return nil, rating.ErrNotEligible
	}
	return &rating.RatedLine{ID: pick.id, Rating: pick.rating}, nil
}

func (m *memoryRepository) SetFirstRating(_ context.Context, lineID uuid.UUID, score int, initial float64) error {
	l := m.line(lineID)
	l.rating, l.initial = &score, &initial
	return nil
}

func (m *memoryRepository) SetRating(_ context.Context, lineID uuid.UUID, score int) error {
	m.line(lineID).rating = &score
	return nil
}

func (m *memoryRepository) RatingTotals(_ context.Context, name string) (int64, int64, error) {
	var sum, count int64
	for _, l := range m.lines {
		if l.name == name && l.rating != nil {
			sum += int64(*l.rating)
			count++
		}
	}
	return sum, count, nil
}

func (m *memoryRepository) UpdateDishRating(_ context.Context, id uuid.UUID, r float64) error {
	m.dishes[id].Rating = r
	return nil
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetDish(ctx context.Context, id uuid.UUID) (*catalog.Dish, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Dish), args.Error(1)
}

func (m *MockCatalog) Forget(ctx context.Context, id uuid.UUID) {
	m.Called(ctx, id)
}

type inlineTx struct{}

func (inlineTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func TestService_SubmitRating_AggregateScenario(t *testing.T) {
	repo, dishes, pub := newMemoryRepository(), new(MockCatalog), &recordingPublisher{}
	dishID := repo.addDish("Borscht")
	repo.purchase("u", "Borscht")
	repo.purchase("v", "Borscht")
	dishes.On("Forget", mock.Anything, dishID).Return()

	svc := rating.NewService(repo, dishes, inlineTx{}, pub)
	ctx := context.Background()

	res, err := svc.SubmitRating(ctx, "u", dishID, 8)
	require.NoError(t, err)
	assert.True(t, res.FirstTime)
	assert.InDelta(t, 8.0, res.Rating, 1e-9)

	res, err = svc.SubmitRating(ctx, "v", dishID, 4)
	require.NoError(t, err)
	assert.True(t, res.FirstTime)
	assert.InDelta(t, 6.0, res.Rating, 1e-9)

	res, err = svc.SubmitRating(ctx, "u", dishID, 10)
	require.NoError(t, err)
	assert.False(t, res.FirstTime)
	assert.InDelta(t, 7.0, res.Rating, 1e-9)
	assert.InDelta(t, 7.0, repo.dishes[dishID].Rating, 1e-9)

	require.Len(t, repo.lines, 2)
	assert.Equal(t, 10, *repo.lines[0].rating)
	assert.InDelta(t, 0.0, *repo.lines[0].initial, 1e-9, "initial rating keeps the aggregate seen at first rating")
	assert.InDelta(t, 8.0, *repo.lines[1].initial, 1e-9)

	require.Len(t, pub.events, 3)
	assert.Equal(t, events.DishRated, pub.events[2].Type)
	dishes.AssertNumberOfCalls(t, "Forget", 3)
}

func TestService_SubmitRating_OneLiveRatingPerUser(t *testing.T) {
	repo, dishes := newMemoryRepository(), new(MockCatalog)
	dishID := repo.addDish("Pelmeni")
	repo.purchase("u", "Pelmeni")
	repo.purchase("u", "Pelmeni")
	dishes.On("Forget", mock.Anything, dishID).Return()

	svc := rating.NewService(repo, dishes, inlineTx{}, nil)
	ctx := context.Background()

	_, err := svc.SubmitRating(ctx, "u", dishID, 6)
	require.NoError(t, err)
	res, err := svc.SubmitRating(ctx, "u", dishID, 2)
	require.NoError(t, err)
	assert.False(t, res.FirstTime)
	assert.InDelta(t, 2.0, res.Rating, 1e-9)

	rated := 0
	for _, l := range repo.lines {
		if l.rating != nil {
			rated++
		}
	}
	assert.Equal(t, 1, rated)
}

func TestService_SubmitRating_Errors(t *testing.T) {
	repo := newMemoryRepository()
	dishID := repo.addDish("Borscht")
	repo.purchase("u", "Borscht")

	tests := []struct {
		name    string
		userID  string
		dishID  uuid.UUID
		score   int
		wantErr error
	}{
		{name: "score too low", userID: "u", dishID: dishID, score: 0, wantErr: rating.ErrInvalidScore},
		{name: "score too high", userID: "u", dishID: dishID, score: 11, wantErr: rating.ErrInvalidScore},
		{name: "invalid score on unknown dish", userID: "u", dishID: uuid.Must(uuid.NewV4()), score: 42, wantErr: rating.ErrInvalidScore},
		{name: "unknown dish", userID: "u", dishID: uuid.Must(uuid.NewV4()), score: 5, wantErr: catalog.ErrDishNotFound},
		{name: "never purchased", userID: "stranger", dishID: dishID, score: 5, wantErr: rating.ErrNotEligible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dishes, pub := new(MockCatalog), &recordingPublisher{}
			_, err := rating.NewService(repo, dishes, inlineTx{}, pub).SubmitRating(context.Background(), tt.userID, tt.dishID, tt.score)
			require.ErrorIs(t, err, tt.wantErr)
			dishes.AssertNotCalled(t, "Forget", mock.Anything, mock.Anything)
			assert.Empty(t, pub.events)
		})
	}
	assert.Zero(t, repo.dishes[dishID].Rating)
}

func TestService_CheckEligibility(t *testing.T) {
	repo, dishes := newMemoryRepository(), new(MockCatalog)
	dish := &catalog.Dish{ID: uuid.Must(uuid.NewV4()), Name: "Borscht"}
	repo.purchase("u", "Borscht")
	dishes.On("GetDish", mock.Anything, dish.ID).Return(dish, nil)

	svc := rating.NewService(repo, dishes, inlineTx{}, nil)

	ok, err := svc.CheckEligibility(context.Background(), "u", dish.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CheckEligibility(context.Background(), "v", dish.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_CheckEligibility_UnknownDish(t *testing.T) {
	dishes := new(MockCatalog)
	id := uuid.Must(uuid.NewV4())
	dishes.On("GetDish", mock.Anything, id).Return(nil, catalog.ErrDishNotFound)

	_, err := rating.NewService(newMemoryRepository(), dishes, inlineTx{}, nil).CheckEligibility(context.Background(), "u", id)
	assert.ErrorIs(t, err, catalog.ErrDishNotFound)

	dishes2 := new(MockCatalog)
	dishes2.On("GetDish", mock.Anything, id).Return(nil, errors.New("db down"))
	_, err = rating.NewService(newMemoryRepository(), dishes2, inlineTx{}, nil).CheckEligibility(context.Background(), "u", id)
	require.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrDishNotFound)
}
