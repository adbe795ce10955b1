package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/npinheiro/converse/internal/auth"
	"github.com/npinheiro/converse/internal/config"
	"github.com/npinheiro/converse/internal/server"
	"github.com/npinheiro/converse/internal/store"
)

// App is the HTTP surface: account endpoints, history reads, channel
// administration and the websocket entry point.
type App struct {
	log            *zap.Logger
	users          store.UserStore
	messages       store.MessageStore
	channels       store.ChannelStore
	cs             *server.ChatServer
	tokens         *auth.JWTManager
	verifier       auth.TokenVerifier
	srv            *http.Server
	allowedOrigins []string
	timeout        time.Duration
}

func NewApp(mux *http.ServeMux, log *zap.Logger, cs *server.ChatServer,
	users store.UserStore, messages store.MessageStore, channels store.ChannelStore,
	tokens *auth.JWTManager, cfg *config.Config) *App {
	s := &App{
		log:            log,
		users:          users,
		messages:       messages,
		channels:       channels,
		cs:             cs,
		tokens:         tokens,
		verifier:       tokens,
		allowedOrigins: cfg.AllowedOrigins,
		timeout:        time.Duration(cfg.StoreTimeout),
	}

	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("GET /api/conversations", s.authMiddleware(s.getConversations))
	mux.Handle("POST /api/channels", s.authMiddleware(s.createChannel))
	mux.Handle("GET /api/channels", s.authMiddleware(s.getChannels))
	mux.Handle("GET /api/channels/messages", s.authMiddleware(s.getChannelMessages))
	mux.Handle("POST /api/channels/members", s.authMiddleware(s.addMember))
	mux.Handle("DELETE /api/channels/members", s.authMiddleware(s.removeMember))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}
	return s
}

func (s *App) Start() error {
	s.log.Info("starting http server", zap.String("addr", s.srv.Addr))
	return s.srv.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
