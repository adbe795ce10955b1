package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/npinheiro/converse/internal/auth"
	"github.com/npinheiro/converse/internal/cache"
	"github.com/npinheiro/converse/internal/config"
	"github.com/npinheiro/converse/internal/server"
	"github.com/npinheiro/converse/internal/stats"
	"github.com/npinheiro/converse/internal/store"
	"github.com/npinheiro/converse/internal/testutil"
	"github.com/npinheiro/converse/internal/types"
)

type appFixture struct {
	app      *App
	users    *store.MockUserStore
	messages *store.MockMessageStore
	channels *store.MockChannelStore
	tokens   *auth.JWTManager
}

func newAppFixture(t *testing.T) *appFixture {
	f := &appFixture{
		users:    &store.MockUserStore{},
		messages: &store.MockMessageStore{},
		channels: &store.MockChannelStore{},
	}

	cfg, err := config.New("localhost:0", "test-dsn", "localhost:6379",
		base64.StdEncoding.EncodeToString([]byte("test-signing-secret")), nil)
	require.NoError(t, err)

	log := testutil.TestLogger(t)
	f.tokens = auth.NewJWTManager(cfg.SigningKey, time.Hour)

	statsUpdater := &stats.MockStatsUpdater{}
	statsUpdater.On("Incr", mock.Anything).Maybe()
	statsUpdater.On("Decr", mock.Anything).Maybe()
	statsUpdater.On("RegisterMetric", mock.Anything).Maybe()

	cs, err := server.NewChatServer(log, f.users, f.messages, f.channels,
		&cache.MockPresenceCache{}, &cache.MockUnreadCounter{}, statsUpdater, time.Second)
	require.NoError(t, err)

	f.app = NewApp(http.NewServeMux(), log, cs, f.users, f.messages, f.channels, f.tokens, cfg)
	return f
}

func (f *appFixture) do(t *testing.T, method, target string, body any, userId int64) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	if userId != 0 {
		token, err := f.tokens.Issue(userId, "tester")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.app.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestRegister(t *testing.T) {
	f := newAppFixture(t)

	f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(p store.CreateUserParams) bool {
		return p.Username == "alice" && p.EmailAddress == "alice@example.com" && p.PasswordHash != "secret"
	})).Return(store.User{Id: 1, Username: "alice", EmailAddress: "alice@example.com"}, nil)

	w := f.do(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "secret",
	}, 0)

	require.Equal(t, http.StatusCreated, w.Code)

	var u types.User
	require.NoError(t, json.NewDecoder(w.Body).Decode(&u))
	assert.Equal(t, int64(1), u.Id)
	assert.Equal(t, "alice", u.Username)
}

func TestRegister_MissingFields(t *testing.T) {
	f := newAppFixture(t)

	w := f.do(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Username: "alice",
	}, 0)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAppFixture(t)

	f.users.On("CreateUser", mock.Anything, mock.Anything).
		Return(store.User{}, store.ErrDuplicate)

	w := f.do(t, http.MethodPost, "/api/auth/register", RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "secret",
	}, 0)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin(t *testing.T) {
	f := newAppFixture(t)

	hash, err := hashPassword("secret")
	require.NoError(t, err)

	f.users.On("GetUserByEmail", mock.Anything, "alice@example.com").
		Return(store.User{Id: 1, Username: "alice", EmailAddress: "alice@example.com", PasswordHash: hash}, nil)

	w := f.do(t, http.MethodPost, "/api/auth/login", LoginRequest{
		Email: "alice@example.com", Password: "secret",
	}, 0)

	require.Equal(t, http.StatusOK, w.Code)

	var resp LoginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(1), resp.User.Id)

	identity, err := f.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), identity.UserId)
	assert.Equal(t, "alice", identity.Username)
}

func TestLogin_BadPassword(t *testing.T) {
	f := newAppFixture(t)

	hash, err := hashPassword("secret")
	require.NoError(t, err)

	f.users.On("GetUserByEmail", mock.Anything, "alice@example.com").
		Return(store.User{Id: 1, PasswordHash: hash}, nil)

	w := f.do(t, http.MethodPost, "/api/auth/login", LoginRequest{
		Email: "alice@example.com", Password: "wrong",
	}, 0)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newAppFixture(t)

	f.users.On("GetUserByEmail", mock.Anything, "ghost@example.com").
		Return(store.User{}, store.ErrNotFound)

	w := f.do(t, http.MethodPost, "/api/auth/login", LoginRequest{
		Email: "ghost@example.com", Password: "secret",
	}, 0)

	// indistinguishable from a bad password
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSession(t *testing.T) {
	f := newAppFixture(t)

	f.users.On("GetUserById", mock.Anything, int64(1)).
		Return(store.User{Id: 1, Username: "alice"}, nil)

	w := f.do(t, http.MethodGet, "/api/auth/session", nil, 1)

	require.Equal(t, http.StatusOK, w.Code)
	var u types.User
	require.NoError(t, json.NewDecoder(w.Body).Decode(&u))
	assert.Equal(t, "alice", u.Username)
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	f := newAppFixture(t)

	w := f.do(t, http.MethodGet, "/api/auth/session", nil, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RejectsGarbageToken(t *testing.T) {
	f := newAppFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	f.app.srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_AcceptsQueryToken(t *testing.T) {
	f := newAppFixture(t)

	f.users.On("GetUserById", mock.Anything, int64(1)).
		Return(store.User{Id: 1, Username: "alice"}, nil)

	token, err := f.tokens.Issue(1, "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session?token="+token, nil)
	w := httptest.NewRecorder()
	f.app.srv.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetMessages(t *testing.T) {
	f := newAppFixture(t)

	f.messages.On("GetConversation", mock.Anything, int64(1), int64(2), defaultPageSize, 0).
		Return([]store.DirectMessage{
			{Id: 100, SenderId: 2, ReceiverId: 1, Content: "hi"},
		}, nil)

	w := f.do(t, http.MethodGet, "/api/messages?user_id=2", nil, 1)

	require.Equal(t, http.StatusOK, w.Code)
	var msgs []types.DirectMessage
	require.NoError(t, json.NewDecoder(w.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestGetMessages_RequiresPeer(t *testing.T) {
	f := newAppFixture(t)

	w := f.do(t, http.MethodGet, "/api/messages", nil, 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMessages_BadPagination(t *testing.T) {
	f := newAppFixture(t)

	w := f.do(t, http.MethodGet, "/api/messages?user_id=2&limit=-1", nil, 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetConversations(t *testing.T) {
	f := newAppFixture(t)

	f.messages.On("GetConversations", mock.Anything, int64(1)).
		Return([]store.Conversation{
			{PeerId: 2, Username: "bob", UnreadCount: 3,
				LastMessage: store.DirectMessage{Id: 100, Content: "later"}},
		}, nil)

	w := f.do(t, http.MethodGet, "/api/conversations", nil, 1)

	require.Equal(t, http.StatusOK, w.Code)
	var convs []types.Conversation
	require.NoError(t, json.NewDecoder(w.Body).Decode(&convs))
	require.Len(t, convs, 1)
	assert.Equal(t, int64(2), convs[0].UserId)
	assert.Equal(t, 3, convs[0].UnreadCount)
}

func TestCreateChannel(t *testing.T) {
	f := newAppFixture(t)

	f.channels.On("CreateChannel", mock.Anything, store.CreateChannelParams{
		Name: "general", CreatorId: 1,
	}).Return(store.Channel{Id: 10, PublicId: "abc123", Name: "general", CreatorId: 1, Role: store.RoleAdmin}, nil)

	w := f.do(t, http.MethodPost, "/api/channels", CreateChannelRequest{Name: "general"}, 1)

	require.Equal(t, http.StatusCreated, w.Code)
	var ch types.Channel
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ch))
	assert.Equal(t, "abc123", ch.PublicId)
	assert.Equal(t, store.RoleAdmin, ch.Role)
}

func TestCreateChannel_RequiresName(t *testing.T) {
	f := newAppFixture(t)

	w := f.do(t, http.MethodPost, "/api/channels", CreateChannelRequest{}, 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetChannels(t *testing.T) {
	f := newAppFixture(t)

	f.channels.On("GetUserChannels", mock.Anything, int64(1)).
		Return([]store.Channel{{Id: 10, Name: "general", UnreadCount: 2}}, nil)

	w := f.do(t, http.MethodGet, "/api/channels", nil, 1)

	require.Equal(t, http.StatusOK, w.Code)
	var chs []types.Channel
	require.NoError(t, json.NewDecoder(w.Body).Decode(&chs))
	require.Len(t, chs, 1)
	assert.Equal(t, 2, chs[0].UnreadCount)
}

func TestGetChannelMessages(t *testing.T) {
	f := newAppFixture(t)

	f.channels.On("IsMember", mock.Anything, int64(10), int64(1)).Return(true, nil)
	f.channels.On("GetChannelMessages", mock.Anything, int64(10), defaultPageSize, 0).
		Return([]store.ChannelMessage{{Id: 200, ChannelId: 10, SenderId: 2, Content: "hi"}}, nil)

	w := f.do(t, http.MethodGet, "/api/channels/messages?channel_id=10", nil, 1)

	require.Equal(t, http.StatusOK, w.Code)
	var msgs []types.ChannelMessage
	require.NoError(t, json.NewDecoder(w.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
}

func TestGetChannelMessages_NonMemberForbidden(t *testing.T) {
	f := newAppFixture(t)

	f.channels.On("IsMember", mock.Anything, int64(10), int64(1)).Return(false, nil)

	w := f.do(t, http.MethodGet, "/api/channels/messages?channel_id=10", nil, 1)

	assert.Equal(t, http.StatusForbidden, w.Code)
	f.channels.AssertNotCalled(t, "GetChannelMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddMember(t *testing.T) {
	f := newAppFixture(t)

	f.channels.On("GetMemberRole", mock.Anything, int64(10), int64(1)).Return(store.RoleAdmin, nil)
	f.users.On("GetUserById", mock.Anything, int64(2)).Return(store.User{Id: 2}, nil)
	f.channels.On("AddMember", mock.Anything, int64(10), int64(2), store.RoleMember).Return(nil)

	w := f.do(t, http.MethodPost, "/api/channels/members", AddMemberRequest{ChannelId: 10, UserId: 2}, 1)

	assert.Equal(t, http.StatusNoContent, w.Code)
	f.channels.AssertExpectations(t)
}

func TestAddMember_RequiresAdmin(t *testing.T) {
	f := newAppFixture(t)

	f.channels.On("GetMemberRole", mock.Anything, int64(10), int64(1)).Return(store.RoleMember, nil)

	w := f.do(t, http.MethodPost, "/api/channels/members", AddMemberRequest{ChannelId: 10, UserId: 2}, 1)

	assert.Equal(t, http.StatusForbidden, w.Code)
	f.channels.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddMember_NonMemberForbidden(t *testing.T) {
	f := newAppFixture(t)

	f.channels.On("GetMemberRole", mock.Anything, int64(10), int64(1)).Return("", store.ErrNotFound)

	w := f.do(t, http.MethodPost, "/api/channels/members", AddMemberRequest{ChannelId: 10, UserId: 2}, 1)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAddMember_UnknownUser(t *testing.T) {
	f := newAppFixture(t)

	f.channels.On("GetMemberRole", mock.Anything, int64(10), int64(1)).Return(store.RoleAdmin, nil)
	f.users.On("GetUserById", mock.Anything, int64(2)).Return(store.User{}, store.ErrNotFound)

	w := f.do(t, http.MethodPost, "/api/channels/members", AddMemberRequest{ChannelId: 10, UserId: 2}, 1)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveMember_SelfLeave(t *testing.T) {
	f := newAppFixture(t)

	f.channels.On("RemoveMember", mock.Anything, int64(10), int64(1)).Return(nil)

	w := f.do(t, http.MethodDelete, "/api/channels/members?channel_id=10", nil, 1)

	assert.Equal(t, http.StatusNoContent, w.Code)
	// leaving your own channel needs no role check
	f.channels.AssertNotCalled(t, "GetMemberRole", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveMember_AdminRemovesOther(t *testing.T) {
	f := newAppFixture(t)

	f.channels.On("GetMemberRole", mock.Anything, int64(10), int64(1)).Return(store.RoleAdmin, nil)
	f.channels.On("RemoveMember", mock.Anything, int64(10), int64(2)).Return(nil)

	w := f.do(t, http.MethodDelete, "/api/channels/members?channel_id=10&user_id=2", nil, 1)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRemoveMember_NonAdminCannotRemoveOther(t *testing.T) {
	f := newAppFixture(t)

	f.channels.On("GetMemberRole", mock.Anything, int64(10), int64(1)).Return(store.RoleMember, nil)

	w := f.do(t, http.MethodDelete, "/api/channels/members?channel_id=10&user_id=2", nil, 1)

	assert.Equal(t, http.StatusForbidden, w.Code)
	f.channels.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}
