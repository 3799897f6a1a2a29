// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/controller"
	"github.com/unclebandit/mailblast-backend/internal/csvsource"
	"github.com/unclebandit/mailblast-backend/internal/db"
	"github.com/unclebandit/mailblast-backend/internal/handler"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/notify"
	"github.com/unclebandit/mailblast-backend/internal/pdf"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/repository"
	"github.com/unclebandit/mailblast-backend/internal/service"
	"github.com/unclebandit/mailblast-backend/internal/storage"
	"github.com/unclebandit/mailblast-backend/internal/throttle"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg := config.Load()

	// Init DB
	db.Init()

	store := buildStorage(cfg)
	rows := csvsource.NewStorageRowSource(store)

	batchRepo := &repository.BatchRepository{DB: db.DB}
	messageRepo := &repository.MessageRepository{DB: db.DB}
	smtpRepo := &repository.SMTPConfigRepository{DB: db.DB}
	trackingRepo := &repository.TrackingEventRepository{DB: db.DB}

	templates := service.NewTemplateService()
	tracking := service.NewTrackingService(cfg.TrackingBaseURL, cfg.TrackingEnabled)
	pdfService := service.NewPDFService(templates, pdf.NewHTTPConverter(cfg.PDFConverterURL))
	notifier := &notify.LogNotifier{}

	var throttler *throttle.Throttler
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		throttler = throttle.NewThrottler(rdb, cfg.SendRatePerMinute)
	}

	generation := &service.GenerationService{
		BatchRepo:   batchRepo,
		MessageRepo: messageRepo,
		Rows:        rows,
		Templates:   templates,
		Tracking:    tracking,
		PDF:         pdfService,
		Store:       store,
		Notifier:    notifier,
	}

	dispatch := &service.DispatchService{
		BatchRepo:      batchRepo,
		MessageRepo:    messageRepo,
		SMTPRepo:       smtpRepo,
		Store:          store,
		Transport:      mailer.NewSMTPTransport(cfg.SendTimeout),
		Tracking:       tracking,
		Throttler:      throttler,
		Notifier:       notifier,
		Workers:        cfg.DispatchWorkers,
		MaxAttempts:    cfg.SendMaxAttempts,
		Backoff:        cfg.SendRetryBackoff,
		SendTimeout:    cfg.SendTimeout,
		MonitorTimeout: cfg.DispatchTimeout,
	}

	q := buildQueue(cfg, generation, dispatch)

	batchService := &service.BatchService{
		BatchRepo:    batchRepo,
		MessageRepo:  messageRepo,
		TrackingRepo: trackingRepo,
		Rows:         rows,
		Templates:    templates,
		Queue:        q,
	}

	batchController := &controller.BatchController{
		BatchService: batchService,
	}

	batchHandler := &handler.BatchHandler{
		Repo:    batchRepo,
		Service: batchService,
	}

	trackingHandler := &handler.TrackingHandler{
		Events:   trackingRepo,
		Tracking: tracking,
	}

	uploadHandler := &handler.UploadHandler{
		Store: store,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// Batch routes
	r.Post("/uploads/csv", uploadHandler.UploadCSV)
	r.Post("/batches", batchController.CreateBatch)
	r.Get("/batches", batchController.ListBatches)
	r.Get("/batches/{id}", batchHandler.GetBatchHandlerWithStats)
	r.Post("/batches/{id}/generate", batchController.GenerateBatch)
	r.Post("/batches/{id}/send", batchController.SendBatch)
	r.Post("/batches/{id}/personalized-preview", batchController.PersonalizedPreview)
	r.Post("/batches/{id}/attachment-specs", batchController.AddAttachmentSpec)

	// Tracking routes, hit by recipient mail clients
	r.Get("/tracking/open/{batchId}/{recipientToken}", trackingHandler.TrackOpen)
	r.Get("/tracking/click/{batchId}/{recipientToken}/{urlToken}", trackingHandler.TrackClick)

	log.Println("🚀 Server running on :" + cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}

func buildStorage(cfg *config.Config) storage.Storage {
	if cfg.StorageDriver == "s3" {
		s3Store, err := storage.NewS3Storage(context.Background(), cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
		if err != nil {
			log.Fatalf("failed to init S3 storage: %v", err)
		}
		return s3Store
	}
	fsStore, err := storage.NewFSStorage(cfg.StoragePath)
	if err != nil {
		log.Fatalf("failed to init filesystem storage: %v", err)
	}
	return fsStore
}

// buildQueue prefers RabbitMQ so jobs survive restarts and run in the worker
// binary. Without a broker, jobs run in-process off the in-memory queue.
func buildQueue(cfg *config.Config, generation *service.GenerationService, dispatch *service.DispatchService) queue.Queue {
	if amqpQueue, err := queue.NewAMQPQueue(cfg.AMQPURL); err == nil {
		log.Println("✅ Connected to RabbitMQ, jobs handled by worker binary")
		return amqpQueue
	} else {
		log.Println("⚠️ RabbitMQ unavailable, falling back to in-process jobs:", err)
	}

	q := queue.NewInMemoryQueue()
	queue.StartBatchSubscribers(q,
		func(batchID int) error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.GenerateTimeout)
			defer cancel()
			_, err := generation.Generate(ctx, batchID)
			return err
		},
		func(batchID int) error {
			return dispatch.Dispatch(context.Background(), batchID)
		},
	)
	return q
}
