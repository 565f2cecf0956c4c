package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/sumire/bugtracker/internal/config"
	"github.com/sumire/bugtracker/internal/handler"
	"github.com/sumire/bugtracker/internal/mail"
	"github.com/sumire/bugtracker/internal/queue"
	"github.com/sumire/bugtracker/internal/repository"
	"github.com/sumire/bugtracker/internal/service"
	"github.com/sumire/bugtracker/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("database connected")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	txDB := repository.NewDB(db)
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	issueRepo := repository.NewIssueRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	emailQueue := queue.NewClient(rdb, cfg.EmailQueue)
	notifier := service.NewNotifier(mail.NewAsyncSender(emailQueue), cfg.EmailFrom, cfg.FrontendURL)
	files := storage.NewLocalStore(cfg.AttachmentsDir)

	authSvc := service.NewAuthService(userRepo, txDB, service.AuthConfig{
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GitHubClientID:     cfg.GitHubClientID,
		GitHubClientSecret: cfg.GitHubClientSecret,
		JWTSecret:          cfg.JWTSecret,
		FrontendURL:        cfg.FrontendURL,
	})
	projectSvc := service.NewProjectService(projectRepo, memberRepo, txDB, cfg.SubdomainCooldown)
	memberSvc := service.NewMemberService(memberRepo, userRepo, projectRepo, txDB, notifier, authSvc)
	issueSvc := service.NewIssueService(issueRepo, projectRepo, memberRepo, historyRepo, txDB, notifier)
	commentSvc := service.NewCommentService(commentRepo, issueRepo, historyRepo, txDB)
	attachmentSvc := service.NewAttachmentService(
		attachmentRepo, issueRepo, commentRepo, memberRepo, historyRepo,
		txDB, files, cfg.AttachmentMaxSize, cfg.AttachmentAllowedTypes,
	)
	historySvc := service.NewHistoryService(historyRepo)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewAppValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	e.Use(echomw.RequestID())
	e.Use(handler.RequestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType, cfg.TenantHeaderName},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api/v1")
	authed := handler.JWTAuth(authSvc)

	handler.NewAuthHandler(authSvc).Register(api.Group("/auth"), authed)

	projects := api.Group("/projects", authed)
	issues := api.Group("/issues", authed)

	handler.NewProjectHandler(projectSvc, cfg.TenantHeaderName).Register(projects)
	handler.NewMemberHandler(memberSvc).Register(projects)
	handler.NewIssueHandler(issueSvc).Register(projects, issues)
	handler.NewCommentHandler(commentSvc).Register(issues)
	handler.NewAttachmentHandler(attachmentSvc).Register(issues)
	handler.NewHistoryHandler(historySvc).Register(issues)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
