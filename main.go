package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/bamboo-bazaar/storefront-api/config"
	"github.com/bamboo-bazaar/storefront-api/middleware"
	"github.com/bamboo-bazaar/storefront-api/repository"
	"github.com/bamboo-bazaar/storefront-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := config.NewLogger(cfg)
	logger.WithField("env", cfg.GoEnv).Info("Starting Bamboo Bazaar API server...")

	gin.SetMode(cfg.GinMode())

	// Connect to database
	db, err := config.ConnectDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	if err := repository.AutoMigrate(db); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}
	logger.Info("Database migration completed successfully")

	tokenValidator, err := middleware.NewTokenValidator(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up token validation")
	}

	ctx := context.Background()
	deps, err := buildServiceDeps(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up services")
	}
	defer func() {
		if err := deps.Events.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close event publisher")
		}
	}()

	store := repository.NewGormStore(db)
	deps.Store = store
	app := &application{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		store:     store,
		orders:    services.NewOrderService(deps),
		validator: tokenValidator,
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server is running on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shut down")
	}
	logger.Info("Server stopped")
}

// buildServiceDeps picks the gateway, mailer, receipt store and event
// publisher from the configuration. Store is left for the caller.
func buildServiceDeps(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (services.OrderServiceDeps, error) {
	deps := services.OrderServiceDeps{
		Gateway: services.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayBaseURL, cfg.PaymentTimeout, logger),
		Logger:  logger,
	}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			loaded, err := services.LoadAWSConfig(ctx, cfg)
			if err != nil {
				return aws.Config{}, err
			}
			awsCfg = &loaded
		}
		return *awsCfg, nil
	}

	var mailer services.Mailer
	switch cfg.EmailProvider {
	case "ses":
		shared, err := loadAWS()
		if err != nil {
			return deps, err
		}
		mailer = services.NewSESMailer(shared, cfg.EmailFrom)
		logger.WithField("from", cfg.EmailFrom).Info("Sending email through SES")
	default:
		mailer = services.NewLogMailer(logger)
		logger.Info("Email delivery disabled, messages are logged")
	}
	if cfg.AdminEmail == "" {
		logger.Warn("ADMIN_EMAIL is not set, admin order alerts will not be sent")
	}
	deps.Notifier = services.NewNotifier(mailer, cfg.AdminEmail, cfg.NotificationTimeout, logger)

	if cfg.AWSS3Bucket != "" {
		shared, err := loadAWS()
		if err != nil {
			return deps, err
		}
		deps.Receipts = services.NewS3ReceiptStore(shared, cfg.AWSS3Bucket)
		logger.WithField("bucket", cfg.AWSS3Bucket).Info("Archiving receipts to S3")
	} else {
		deps.Receipts = services.NoopReceiptStore{}
	}

	if len(cfg.KafkaBrokers) > 0 {
		deps.Events = services.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		logger.WithFields(logrus.Fields{
			"brokers": cfg.KafkaBrokers,
			"topic":   cfg.KafkaTopic,
		}).Info("Publishing order events to Kafka")
	} else {
		deps.Events = services.NoopEventPublisher{}
	}

	return deps, nil
}
