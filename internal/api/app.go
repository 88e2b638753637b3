package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/alumnihub/messaging/internal/config"
	"github.com/alumnihub/messaging/internal/database"
	"github.com/alumnihub/messaging/internal/server"
	"github.com/alumnihub/messaging/internal/stats"
	"github.com/gorilla/handlers"
)

type MessagingApp struct {
	log            *log.Logger
	db             database.MessagingRepository
	mux            *http.Server
	cs             *server.ChatServer
	su             stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string
}

func NewMessagingApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.MessagingRepository, su stats.StatsProvider, cfg *config.Config) *MessagingApp {
	s := &MessagingApp{
		log:            logger,
		db:             db,
		cs:             cs,
		su:             su,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/messages/public", s.authMiddleware(s.getPublicMessages))
	mux.Handle("DELETE /api/messages/public/{id}", s.authMiddleware(s.deletePublicMessage))
	mux.Handle("GET /api/messages/inbox", s.authMiddleware(s.getInbox))
	mux.Handle("GET /api/messages/search", s.authMiddleware(s.searchMessages))
	mux.Handle("GET /api/conversations/{user_id}/messages", s.authMiddleware(s.getConversationMessages))
	mux.Handle("POST /api/admin/messaging/lock", s.authMiddleware(s.lockMessaging))
	mux.Handle("POST /api/admin/messaging/unlock", s.authMiddleware(s.unlockMessaging))
	mux.Handle("GET /api/admin/messaging/status", s.authMiddleware(s.getLockStatus))
	mux.Handle("GET /api/admin/messaging/statistics", s.authMiddleware(s.getStatistics))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *MessagingApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *MessagingApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Println("server shutdown complete")
	return nil
}
