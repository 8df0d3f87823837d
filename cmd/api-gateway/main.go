package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-portal-api/api/swagger"
	"github.com/noah-isme/school-portal-api/internal/handler"
	"github.com/noah-isme/school-portal-api/internal/repository"
	"github.com/noah-isme/school-portal-api/internal/router"
	"github.com/noah-isme/school-portal-api/internal/service"
	"github.com/noah-isme/school-portal-api/pkg/cache"
	"github.com/noah-isme/school-portal-api/pkg/config"
	"github.com/noah-isme/school-portal-api/pkg/database"
	"github.com/noah-isme/school-portal-api/pkg/jobs"
	"github.com/noah-isme/school-portal-api/pkg/logger"
	"github.com/noah-isme/school-portal-api/pkg/mailer"
	"github.com/noah-isme/school-portal-api/pkg/storage"
	"github.com/noah-isme/school-portal-api/pkg/validation"
)

// @title School Portal API
// @version 1.0.0
// @description Registration, approval and role dashboards for the school portal
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close() //nolint:errcheck

	buckets, err := storage.NewBucketStorage(cfg.Storage.BaseDir)
	if err != nil {
		logr.Fatal("failed to prepare storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL, cfg.PublicBaseURL)
	uploadPolicy := service.UploadPolicy{MaxFileSize: cfg.Storage.MaxFileSizeBytes, AllowedMIMEs: cfg.Storage.AllowedMIMEs}
	validate := validation.New()

	users := repository.NewUserRepository(db)
	audits := repository.NewAuditRepository(db)
	registrations := repository.NewRegistrationRepository(db)
	announcements := repository.NewAnnouncementRepository(db)
	complaints := repository.NewComplaintRepository(db)
	materials := repository.NewMaterialRepository(db)
	marks := repository.NewMarkRepository(db)
	balances := repository.NewBalanceRepository(db)
	drafts := repository.NewDraftRepository(rdb, logr)

	metricsSvc := service.NewMetricsService()

	notifications := service.NewNotificationService(mailer.New(cfg.Mail, logr), logr)
	notifications.UseMetrics(metricsSvc)
	mailQueue := jobs.NewQueue("notifications", notifications.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.MaxRetries,
		RetryDelay: cfg.Mail.RetryDelay,
		Logger:     logr,
	})
	notifications.UseQueue(mailQueue)

	accounts := service.NewAccountService(users, audits, notifications, validate, logr, service.AccountConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenExpiry:   cfg.JWT.ResetExpiration,
		Issuer:             cfg.JWT.Issuer,
		ResetRedirect:      cfg.Registration.ResetRedirect,
	})
	submitter := service.NewRegistrationSubmitService(drafts, buckets, signer, accounts, registrations, notifications, audits, metricsSvc, logr)
	wizard := service.NewRegistrationWizardService(drafts, submitter, logr, service.WizardConfig{
		DraftTTL:      cfg.Registration.DraftTTL,
		SubmitLockTTL: cfg.Registration.SubmitLockTTL,
		Upload:        uploadPolicy,
	})
	access := service.NewAccessService(registrations, logr)
	dashboards := service.NewDashboardService(service.DashboardRepositories{
		Marks:         marks,
		Balances:      balances,
		Complaints:    complaints,
		Materials:     materials,
		Announcements: announcements,
		Registrations: registrations,
	}, service.DashboardConfig{PassMark: cfg.Dashboard.PassMark, AnnouncementLimit: cfg.Dashboard.AnnouncementLimit}, logr)
	reviews := service.NewReviewService(registrations, audits, metricsSvc, logr)

	engine := router.New(router.Dependencies{
		Config:  cfg,
		Logger:  logr,
		Tokens:  accounts,
		Gate:    access,
		Audit:   audits,
		Metrics: metricsSvc,
	}, router.Handlers{
		Auth:         handler.NewAuthHandler(accounts),
		Registration: handler.NewRegistrationHandler(wizard),
		Access:       handler.NewAccessHandler(access),
		Dashboard:    handler.NewDashboardHandler(dashboards),
		Review:       handler.NewReviewHandler(reviews),
		Portal: handler.NewPortalHandler(handler.PortalServices{
			Announcements: service.NewAnnouncementService(announcements, validate, logr),
			Complaints:    service.NewComplaintService(complaints, validate, logr),
			Materials:     service.NewMaterialService(materials, buckets, signer, uploadPolicy, validate, logr),
			Marks:         service.NewMarkService(marks, validate, logr),
			Balances:      service.NewBalanceService(balances, validate, logr),
			Mail:          service.NewMailService(notifications, audits, validate, logr),
		}),
		Files: handler.NewFileHandler(signer, buckets),
		Metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailQueue.Start(context.Background())
	defer mailQueue.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logr.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Error("could not stop server gracefully", zap.Error(err))
			_ = srv.Close()
		}
	}
}
