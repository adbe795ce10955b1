package store

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockUserStore) GetUserById(ctx context.Context, id int64) (User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockUserStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockUserStore) UpdateOnlineStatus(ctx context.Context, userId int64, online bool) error {
	args := m.Called(ctx, userId, online)
	return args.Error(0)
}

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) SaveDirectMessage(ctx context.Context, params SaveDirectMessageParams) (DirectMessage, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(DirectMessage), args.Error(1)
}

func (m *MockMessageStore) GetConversation(ctx context.Context, userId, peerId int64, limit, offset int) ([]DirectMessage, error) {
	args := m.Called(ctx, userId, peerId, limit, offset)
	return args.Get(0).([]DirectMessage), args.Error(1)
}

func (m *MockMessageStore) GetConversations(ctx context.Context, userId int64) ([]Conversation, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]Conversation), args.Error(1)
}

func (m *MockMessageStore) MarkMessageRead(ctx context.Context, messageId, readerId int64) (int64, error) {
	args := m.Called(ctx, messageId, readerId)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageStore) MarkAllFromSenderRead(ctx context.Context, senderId, readerId int64) (int64, error) {
	args := m.Called(ctx, senderId, readerId)
	return args.Get(0).(int64), args.Error(1)
}

type MockChannelStore struct {
	mock.Mock
}

func (m *MockChannelStore) CreateChannel(ctx context.Context, params CreateChannelParams) (Channel, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Channel), args.Error(1)
}

func (m *MockChannelStore) GetChannelById(ctx context.Context, id int64) (Channel, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Channel), args.Error(1)
}

func (m *MockChannelStore) GetUserChannels(ctx context.Context, userId int64) ([]Channel, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]Channel), args.Error(1)
}

func (m *MockChannelStore) IsMember(ctx context.Context, channelId, userId int64) (bool, error) {
	args := m.Called(ctx, channelId, userId)
	return args.Bool(0), args.Error(1)
}

func (m *MockChannelStore) GetMemberRole(ctx context.Context, channelId, userId int64) (string, error) {
	args := m.Called(ctx, channelId, userId)
	return args.String(0), args.Error(1)
}

func (m *MockChannelStore) GetMemberIds(ctx context.Context, channelId int64) ([]int64, error) {
	args := m.Called(ctx, channelId)
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockChannelStore) AddMember(ctx context.Context, channelId, userId int64, role string) error {
	args := m.Called(ctx, channelId, userId, role)
	return args.Error(0)
}

func (m *MockChannelStore) RemoveMember(ctx context.Context, channelId, userId int64) error {
	args := m.Called(ctx, channelId, userId)
	return args.Error(0)
}

func (m *MockChannelStore) SaveChannelMessage(ctx context.Context, params SaveChannelMessageParams) (ChannelMessage, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(ChannelMessage), args.Error(1)
}

func (m *MockChannelStore) GetChannelMessages(ctx context.Context, channelId int64, limit, offset int) ([]ChannelMessage, error) {
	args := m.Called(ctx, channelId, limit, offset)
	return args.Get(0).([]ChannelMessage), args.Error(1)
}

func (m *MockChannelStore) MarkChannelMessagesRead(ctx context.Context, channelId, readerId int64) (int64, error) {
	args := m.Called(ctx, channelId, readerId)
	return args.Get(0).(int64), args.Error(1)
}
