package mocks

import (
	"context"

	"fiction-server/internal/domain"
	"fiction-server/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockStoryStore is a mock type for the StoryStore type
type MockStoryStore struct {
	mock.Mock
}

// Load provides a mock function with given fields: ctx, id
func (_m *MockStoryStore) Load(ctx context.Context, id string) (domain.StoryState, error) {
	ret := _m.Called(ctx, id)

	var r0 domain.StoryState
	if rf, ok := ret.Get(0).(func(context.Context, string) domain.StoryState); ok {
		r0 = rf(ctx, id)
	} else {
		r0 = ret.Get(0).(domain.StoryState)
	}

	return r0, ret.Error(1)
}

// Save provides a mock function with given fields: ctx, id, state
func (_m *MockStoryStore) Save(ctx context.Context, id string, state domain.StoryState) error {
	ret := _m.Called(ctx, id, state)
	return ret.Error(0)
}

// Create provides a mock function with given fields: ctx, title, background
func (_m *MockStoryStore) Create(ctx context.Context, title string, background string) (string, error) {
	ret := _m.Called(ctx, title, background)
	return ret.String(0), ret.Error(1)
}

// List provides a mock function with given fields: ctx
func (_m *MockStoryStore) List(ctx context.Context) ([]domain.StorySummary, error) {
	ret := _m.Called(ctx)

	var r0 []domain.StorySummary
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.StorySummary)
	}

	return r0, ret.Error(1)
}

// NewMockStoryStore creates a new instance of MockStoryStore. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockStoryStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStoryStore {
	m := &MockStoryStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ repository.StoryStore = (*MockStoryStore)(nil)
