package api

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/npinheiro/converse/internal/server"
	"github.com/npinheiro/converse/internal/store"
)

// serveWs upgrades an authenticated request to a websocket session and
// admits it to the chat server. Authentication already happened in the
// middleware; an invalid token never reaches the upgrade.
func (s *App) serveWs(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ctx, cancel := s.requestCtx(r)
	defer cancel()

	user, err := s.users.GetUserById(ctx, identity.UserId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, store.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients send no origin header
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade", zap.Error(err))
		return
	}

	client := server.NewClient(toApiUser(user), conn, s.cs, s.log)

	s.cs.Admit(client)
	go client.WriteLoop()
	go client.ReadLoop()
}
