package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/npinheiro/converse/internal/store"
	"github.com/npinheiro/converse/internal/types"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type CreateChannelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	IsPrivate   bool   `json:"is_private"`
}

type AddMemberRequest struct {
	ChannelId int64 `json:"channel_id"`
	UserId    int64 `json:"user_id"`
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("json encode", zap.Error(err))
	}
}

func (s *App) requestCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

// getMessages returns the direct message history with one counterpart,
// newest first.
func (s *App) getMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	peerId, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || peerId <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	limit, offset, ok := s.parsePage(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.requestCtx(r)
	defer cancel()

	messages, err := s.messages.GetConversation(ctx, identity.UserId, peerId, limit, offset)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	out := make([]types.DirectMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, toApiDirectMessage(m))
	}

	s.writeJson(w, http.StatusOK, out)
}

// getConversations lists the caller's direct conversations: one entry
// per counterpart, carrying the latest message and the unread count.
func (s *App) getConversations(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ctx, cancel := s.requestCtx(r)
	defer cancel()

	convs, err := s.messages.GetConversations(ctx, identity.UserId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	out := make([]types.Conversation, 0, len(convs))
	for _, c := range convs {
		out = append(out, types.Conversation{
			UserId:      c.PeerId,
			Username:    c.Username,
			Online:      c.Online,
			LastMessage: toApiDirectMessage(c.LastMessage),
			UnreadCount: c.UnreadCount,
		})
	}

	s.writeJson(w, http.StatusOK, out)
}

func (s *App) createChannel(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ctx, cancel := s.requestCtx(r)
	defer cancel()

	ch, err := s.channels.CreateChannel(ctx, store.CreateChannelParams{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		CreatorId:   identity.UserId,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// If the creator has a live session, subscribe it to the new
	// channel's room right away.
	s.cs.SubscribeIdentity(identity.UserId, ch.Id)

	s.writeJson(w, http.StatusCreated, toApiChannel(ch))
}

func (s *App) getChannels(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ctx, cancel := s.requestCtx(r)
	defer cancel()

	channels, err := s.channels.GetUserChannels(ctx, identity.UserId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	out := make([]types.Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, toApiChannel(ch))
	}

	s.writeJson(w, http.StatusOK, out)
}

func (s *App) getChannelMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	channelId, err := strconv.ParseInt(r.URL.Query().Get("channel_id"), 10, 64)
	if err != nil || channelId <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	limit, offset, ok := s.parsePage(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.requestCtx(r)
	defer cancel()

	member, err := s.channels.IsMember(ctx, channelId, identity.UserId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !member {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.channels.GetChannelMessages(ctx, channelId, limit, offset)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	out := make([]types.ChannelMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, types.ChannelMessage{
			Id:        m.Id,
			ChannelId: m.ChannelId,
			SenderId:  m.SenderId,
			Content:   m.Content,
			Type:      m.Type,
			CreatedAt: m.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, out)
}

func (s *App) addMember(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelId <= 0 || req.UserId <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ctx, cancel := s.requestCtx(r)
	defer cancel()

	if !s.requireAdmin(ctx, w, req.ChannelId, identity.UserId) {
		return
	}

	if _, err := s.users.GetUserById(ctx, req.UserId); err != nil {
		var errResp *ApiError
		if errors.Is(err, store.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.channels.AddMember(ctx, req.ChannelId, req.UserId, store.RoleMember); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.SubscribeIdentity(req.UserId, req.ChannelId)

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *App) removeMember(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	channelId, err := strconv.ParseInt(r.URL.Query().Get("channel_id"), 10, 64)
	if err != nil || channelId <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// With no user_id the caller leaves the channel itself. Removing
	// anyone else requires the admin role.
	targetId := identity.UserId
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		targetId, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || targetId <= 0 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	ctx, cancel := s.requestCtx(r)
	defer cancel()

	if targetId != identity.UserId && !s.requireAdmin(ctx, w, channelId, identity.UserId) {
		return
	}

	if err := s.channels.RemoveMember(ctx, channelId, targetId); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.UnsubscribeIdentity(targetId, channelId)

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *App) requireAdmin(ctx context.Context, w http.ResponseWriter, channelId, userId int64) bool {
	role, err := s.channels.GetMemberRole(ctx, channelId, userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, store.ErrNotFound) {
			errResp = NewForbiddenError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return false
	}

	if role != store.RoleAdmin {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return false
	}

	return true
}

func (s *App) parsePage(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = defaultPageSize

	var err error
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return 0, 0, false
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return 0, 0, false
		}
	}

	return limit, offset, true
}

func toApiUser(u store.User) types.User {
	return types.User{
		Id:           u.Id,
		Username:     u.Username,
		EmailAddress: u.EmailAddress,
		Online:       u.Online,
		LastActive:   u.LastActive,
		CreatedAt:    u.CreatedAt,
	}
}

func toApiDirectMessage(m store.DirectMessage) types.DirectMessage {
	return types.DirectMessage{
		Id:         m.Id,
		SenderId:   m.SenderId,
		ReceiverId: m.ReceiverId,
		Content:    m.Content,
		Type:       m.Type,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}

func toApiChannel(ch store.Channel) types.Channel {
	return types.Channel{
		Id:          ch.Id,
		PublicId:    ch.PublicId,
		Name:        ch.Name,
		Description: ch.Description,
		Image:       ch.Image,
		CreatorId:   ch.CreatorId,
		IsPrivate:   ch.IsPrivate,
		Role:        ch.Role,
		UnreadCount: ch.UnreadCount,
		CreatedAt:   ch.CreatedAt,
	}
}
