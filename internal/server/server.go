// Package server is the composition root: it opens the database, builds
// every service and handler, mounts the routes and runs the HTTP server
// until a shutdown signal arrives.
//
// DEPENDENCY FLOW:
//
//	config → sqlite.DB ─┬→ UserService ─→ UserHandler, GitHubHandler
//	                    ├→ TaskService ─→ TaskHandler
//	avatar store ───────┴→ AvatarService → AvatarHandler
//	email sender → notify.Dispatcher ↗ (UserService)
//
// SHUTDOWN ORDER:
// HTTP server (drain in-flight requests) → email dispatcher (drain queue)
// → database. Each step only starts once the previous one finished, so no
// request can enqueue an email or touch the database after it is closed.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/task-manager/internal/auth"
	"github.com/sakif/task-manager/internal/config"
	"github.com/sakif/task-manager/internal/handler"
	"github.com/sakif/task-manager/internal/middleware"
	"github.com/sakif/task-manager/internal/notify"
	"github.com/sakif/task-manager/internal/repository"
	sqliteRepo "github.com/sakif/task-manager/internal/repository/sqlite"
	"github.com/sakif/task-manager/internal/service"
	"github.com/sakif/task-manager/internal/storage"
	"github.com/sakif/task-manager/internal/storage/s3store"
)

// Deps is everything the router needs. GitHub may be nil, which leaves the
// /auth/github routes unmounted.
type Deps struct {
	Store       repository.Store
	Tokens      *auth.TokenService
	Users       *service.UserService
	Tasks       *service.TaskService
	Avatars     *service.AvatarService
	GitHub      handler.GitHubProvider
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter mounts every route.
//
//	GET    /healthz               public
//	POST   /users                 public   register
//	POST   /users/login           public
//	GET    /users/{id}/avatar     public   image/png
//	POST   /users/logout          auth
//	POST   /users/logoutAll       auth
//	GET    /users/me              auth
//	PATCH  /users/me              auth
//	DELETE /users/me              auth
//	POST   /users/me/avatar       auth     multipart field "avatar"
//	DELETE /users/me/avatar       auth
//	POST   /tasks                 auth
//	GET    /tasks                 auth     ?completed=&sortBy=&limit=&skip=
//	GET    /tasks/{id}            auth
//	PATCH  /tasks/{id}            auth
//	DELETE /tasks/{id}            auth
//	GET    /auth/github/login     public   when GitHub is configured
//	GET    /auth/github/callback  public   when GitHub is configured
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	users := handler.NewUserHandler(d.Users, d.Logger)
	tasks := handler.NewTaskHandler(d.Tasks, d.Logger)
	avatars := handler.NewAvatarHandler(d.Avatars, d.Logger)
	health := handler.NewHealthHandler(d.Store, d.Logger)

	r.Get("/healthz", health.HandleHealth)

	r.Post("/users", users.HandleRegister)
	r.Post("/users/login", users.HandleLogin)
	r.Get("/users/{id}/avatar", avatars.HandleGet)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.Tokens, d.Store, d.Logger))

		r.Post("/users/logout", users.HandleLogout)
		r.Post("/users/logoutAll", users.HandleLogoutAll)
		r.Get("/users/me", users.HandleMe)
		r.Patch("/users/me", users.HandleUpdateMe)
		r.Delete("/users/me", users.HandleDeleteMe)
		r.Post("/users/me/avatar", avatars.HandleUpload)
		r.Delete("/users/me/avatar", avatars.HandleDelete)

		r.Post("/tasks", tasks.HandleCreate)
		r.Get("/tasks", tasks.HandleList)
		r.Get("/tasks/{id}", tasks.HandleGet)
		r.Patch("/tasks/{id}", tasks.HandleUpdate)
		r.Delete("/tasks/{id}", tasks.HandleDelete)
	})

	if d.GitHub != nil {
		gh := handler.NewGitHubHandler(d.GitHub, d.Users, d.Logger)
		r.Get("/auth/github/login", gh.HandleLogin)
		r.Get("/auth/github/callback", gh.HandleCallback)
	}

	return r
}

// Server owns the long-lived resources: the database and the email
// dispatcher. Both are released in Start once the HTTP server has stopped.
type Server struct {
	router     http.Handler
	config     *config.Config
	logger     *slog.Logger
	db         *sqliteRepo.DB
	dispatcher *notify.Dispatcher
}

// New builds the whole dependency graph from cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s, err := build(ctx, cfg, logger, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sqliteRepo.DB) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, err
	}
	passwords, err := auth.NewPasswordService(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	avatarStore, err := newAvatarStore(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	dispatcher := notify.NewDispatcher(sender, logger, notify.Options{})

	users := service.NewUserService(db, tokens, passwords, dispatcher, avatarStore, logger)

	var github handler.GitHubProvider
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	} else {
		logger.Info("GitHub sign-in disabled: GITHUB_CLIENT_ID / GITHUB_CLIENT_SECRET not set")
	}

	router := NewRouter(Deps{
		Store:       db,
		Tokens:      tokens,
		Users:       users,
		Tasks:       service.NewTaskService(db, logger),
		Avatars:     service.NewAvatarService(db, avatarStore, logger),
		GitHub:      github,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Logger:      logger,
	})

	return &Server{
		router:     router,
		config:     cfg,
		logger:     logger,
		db:         db,
		dispatcher: dispatcher,
	}, nil
}

func newAvatarStore(ctx context.Context, cfg *config.Config, db *sqliteRepo.DB) (service.AvatarStore, error) {
	if cfg.AvatarStore != config.AvatarStoreS3 {
		return storage.NewDBStore(db), nil
	}
	store, err := s3store.New(ctx, s3store.Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating S3 avatar store: %w", err)
	}
	return store, nil
}

func newSender(cfg *config.Config, logger *slog.Logger) (notify.Sender, error) {
	if cfg.SendGridAPIKey == "" {
		logger.Warn("SENDGRID_API_KEY not set: account emails are only logged")
		return notify.NewLogSender(logger), nil
	}
	return notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT/SIGTERM, then shuts down in order: HTTP
// server, email dispatcher, database.
func (s *Server) Start() error {
	defer s.db.Close()

	s.dispatcher.Start()
	defer s.dispatcher.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("avatarStore", s.config.AvatarStore),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
