package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codecurser/park-vision-control-system/internal/api"
	"github.com/codecurser/park-vision-control-system/internal/api/handler"
	"github.com/codecurser/park-vision-control-system/internal/api/middleware"
	"github.com/codecurser/park-vision-control-system/internal/config"
	"github.com/codecurser/park-vision-control-system/internal/events"
	"github.com/codecurser/park-vision-control-system/internal/iot"
	"github.com/codecurser/park-vision-control-system/internal/metrics"
	"github.com/codecurser/park-vision-control-system/internal/ocr"
	"github.com/codecurser/park-vision-control-system/internal/ocr/tesseract"
	"github.com/codecurser/park-vision-control-system/internal/plate"
	"github.com/codecurser/park-vision-control-system/internal/repository"
	"github.com/codecurser/park-vision-control-system/internal/repository/localstore"
	"github.com/codecurser/park-vision-control-system/internal/repository/postgresql"
	"github.com/codecurser/park-vision-control-system/internal/service"
)

func main() {
	// 1. Configuration and logging
	cfg := config.Load()
	setupLogging(cfg)
	log.Info().Str("component", "MAIN").Str("store", string(cfg.StoreBackend)).Str("ocr", cfg.OCREngine).Msg("configuration loaded")

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 2. Stores
	var (
		userRepo   repository.UserRepository
		entryStore repository.EntryStore
	)
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := postgresql.NewDB(cfg)
		if err != nil {
			log.Fatal().Err(err).Str("component", "MAIN").Msg("cannot connect to database")
		}
		defer db.Close()
		if err := postgresql.Migrate(rootCtx, db); err != nil {
			log.Fatal().Err(err).Str("component", "MAIN").Msg("migration failed")
		}
		userRepo = postgresql.NewPgUserRepository(db)
		entryStore = postgresql.NewPgParkingEntryRepository(db)
		log.Info().Str("component", "MAIN").Str("host", cfg.DBHost).Str("driver", cfg.DBDriver).Msg("database connected")
	case config.StoreLocal:
		store, err := localstore.Open(cfg.LocalStoreDir)
		if err != nil {
			log.Fatal().Err(err).Str("component", "MAIN").Msg("cannot open local store")
		}
		userRepo = localstore.NewUserRepository(store)
		entryStore = localstore.NewEntryStore(store)
		log.Info().Str("component", "MAIN").Str("dir", cfg.LocalStoreDir).Msg("local store opened")
	default:
		log.Fatal().Str("component", "MAIN").Str("backend", string(cfg.StoreBackend)).Msg("unknown STORE_BACKEND (want postgres or local)")
	}

	// 3. AWS clients, only when something needs them
	engine, err := ocr.ParseEngineType(cfg.OCREngine)
	if err != nil {
		log.Fatal().Err(err).Str("component", "MAIN").Msg("bad OCR_ENGINE")
	}
	var awsSDKCfg aws.Config
	needAWS := engine == ocr.EngineRekognition || cfg.SQSCaptureQueueURL != "" || cfg.IoTMQTTEndpoint != ""
	if needAWS {
		awsSDKCfg, err = awsgo_config.LoadDefaultConfig(rootCtx, awsgo_config.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatal().Err(err).Str("component", "MAIN").Msg("cannot load AWS SDK config")
		}
		log.Info().Str("component", "MAIN").Str("region", cfg.AWSRegion).Msg("AWS SDK config loaded")
	}

	// 4. OCR engine
	var recognizer ocr.TextRecognizer
	switch engine {
	case ocr.EngineRekognition:
		recognizer = ocr.NewRekognitionRecognizer(rekognition.NewFromConfig(awsSDKCfg))
	default:
		tr, err := tesseract.New(cfg.TesseractLanguage)
		if err != nil {
			log.Fatal().Err(err).Str("component", "MAIN").Msg("cannot start tesseract")
		}
		defer tr.Close()
		recognizer = tr
	}

	// 5. Services and notifiers
	m := metrics.New()
	webSocketManager := handler.NewWebSocketManager()
	go webSocketManager.Start(rootCtx)

	entryService := service.NewEntryService(entryStore, service.NewEntryLog(), m, webSocketManager)
	if cfg.IoTMQTTEndpoint != "" {
		iotDataPlaneClient := iotdataplane.NewFromConfig(awsSDKCfg, func(o *iotdataplane.Options) {
			endpointWithSchema := cfg.IoTMQTTEndpoint
			if !strings.HasPrefix(endpointWithSchema, "https://") && !strings.HasPrefix(endpointWithSchema, "http://") {
				endpointWithSchema = "https://" + endpointWithSchema
			}
			o.BaseEndpoint = aws.String(endpointWithSchema)
		})
		entryService.AddNotifier(iot.NewGatePublisher(iotDataPlaneClient, cfg.IoTTopicPrefix))
		log.Info().Str("component", "MAIN").Str("prefix", cfg.IoTTopicPrefix).Msg("gate publisher enabled")
	}
	if cfg.AMQPURL != "" {
		publisher, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Error().Err(err).Str("component", "MAIN").Msg("AMQP publisher disabled")
		} else {
			defer publisher.Close()
			entryService.AddNotifier(publisher)
		}
	}
	if err := entryService.Refresh(rootCtx); err != nil {
		log.Error().Err(err).Str("component", "MAIN").Msg("initial log load failed, starting empty")
	}

	lprService := service.NewLPRService(recognizer, plate.DefaultPolicy, entryService, m)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpirationHours)
	if err := authService.EnsureAdmin(rootCtx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Error().Err(err).Str("component", "MAIN").Msg("could not create admin account")
	}
	authMiddleware := middleware.NewAuthMiddleware(authService)

	// 6. Background workers
	var wg sync.WaitGroup
	if cfg.SQSCaptureQueueURL == "" {
		log.Warn().Str("component", "MAIN").Msg("SQS_CAPTURE_QUEUE_URL not set, SQS consumer disabled")
	} else {
		sqsConsumer := iot.NewSQSConsumer(sqs.NewFromConfig(awsSDKCfg), cfg.SQSCaptureQueueURL, lprService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sqsConsumer.Start(rootCtx)
			log.Info().Str("component", "SQS").Msg("consumer stopped")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		startLogRefreshJob(rootCtx, entryService, cfg.LogRefreshInterval)
	}()

	// 7. HTTP
	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(authService, entryService, lprService, authMiddleware, webSocketManager, m)
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Info().Str("component", "MAIN").Str("port", cfg.ServerPort).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("component", "MAIN").Msg("ListenAndServe failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Str("component", "MAIN").Msg("shutting down")

	cancelRoot()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Str("component", "MAIN").Msg("forced shutdown")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn().Str("component", "MAIN").Msg("background workers did not stop in time")
	}
	log.Info().Str("component", "MAIN").Msg("server stopped")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stderr
	if cfg.LogPretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// startLogRefreshJob keeps the in-memory log in line with the store, picking
// up entries written by other instances.
func startLogRefreshJob(ctx context.Context, es *service.EntryService, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := es.Refresh(refreshCtx); err != nil {
				log.Error().Err(err).Str("component", "ENTRY_LOG").Msg("periodic refresh failed")
			}
			cancel()
		}
	}
}
