package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/campushub/apiserver/config"
	"github.com/campushub/apiserver/internal/db"
	"github.com/campushub/apiserver/internal/handlers"
	"github.com/campushub/apiserver/internal/mailer"
	"github.com/campushub/apiserver/internal/mq"
	"github.com/campushub/apiserver/internal/services"
	"github.com/campushub/apiserver/internal/storage"
	"github.com/campushub/apiserver/internal/store"
	"github.com/campushub/apiserver/internal/token"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     mq.Backend
}

// New constructs a Server with all dependencies wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.New(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	var broker mq.Backend
	var publish mailer.PublishFunc
	if strings.EqualFold(cfg.Mail.Backend, "queue") {
		broker, err = mq.New(ctx, cfg)
		if err != nil {
			_ = dbConn.Close()
			return nil, err
		}
		publish = broker.Publish
	}

	mail, err := mailer.New(cfg, publish)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	departmentRepo := store.NewDepartmentRepository(dbConn)

	tokenService := token.NewService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	authService := services.NewAuthService(userRepo, departmentRepo, tokenService, mail, cfg.FrontendURL)
	userService := services.NewUserService(userRepo)
	departmentService := services.NewDepartmentService(departmentRepo)

	mw := handlers.NewMiddleware(tokenService, userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, mw)
	})
	router.Route("/departments", func(r chi.Router) {
		handlers.DepartmentRouter(r, departmentService, mw)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, objects, mw)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.broker != nil {
		_ = s.broker.Close()
	}
	return s.httpServer.Close()
}
