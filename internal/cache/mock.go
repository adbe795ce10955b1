package cache

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPresenceCache struct {
	mock.Mock
}

func (m *MockPresenceCache) SetOnline(ctx context.Context, userId int64) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}

func (m *MockPresenceCache) SetOffline(ctx context.Context, userId int64) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}

func (m *MockPresenceCache) IsOnline(ctx context.Context, userId int64) (bool, error) {
	args := m.Called(ctx, userId)
	return args.Bool(0), args.Error(1)
}

type MockUnreadCounter struct {
	mock.Mock
}

func (m *MockUnreadCounter) IncrDirect(ctx context.Context, userId, senderId int64) error {
	args := m.Called(ctx, userId, senderId)
	return args.Error(0)
}

func (m *MockUnreadCounter) DecrDirect(ctx context.Context, userId, senderId int64) error {
	args := m.Called(ctx, userId, senderId)
	return args.Error(0)
}

func (m *MockUnreadCounter) ResetDirect(ctx context.Context, userId, senderId int64) error {
	args := m.Called(ctx, userId, senderId)
	return args.Error(0)
}

func (m *MockUnreadCounter) IncrChannel(ctx context.Context, channelId, senderId int64, memberIds []int64) error {
	args := m.Called(ctx, channelId, senderId, memberIds)
	return args.Error(0)
}

func (m *MockUnreadCounter) ResetChannel(ctx context.Context, userId, channelId int64) error {
	args := m.Called(ctx, userId, channelId)
	return args.Error(0)
}
