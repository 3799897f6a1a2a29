// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/csvsource"
	"github.com/unclebandit/mailblast-backend/internal/db"
	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/notify"
	"github.com/unclebandit/mailblast-backend/internal/pdf"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/repository"
	"github.com/unclebandit/mailblast-backend/internal/service"
	"github.com/unclebandit/mailblast-backend/internal/storage"
	"github.com/unclebandit/mailblast-backend/internal/throttle"
)

const maxJobRetries = 3

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg := config.Load()

	// Connect to DB
	db.Init()

	store := buildStorage(cfg)
	rows := csvsource.NewStorageRowSource(store)

	// Repositories
	batchRepo := &repository.BatchRepository{DB: db.DB}
	messageRepo := &repository.MessageRepository{DB: db.DB}
	smtpRepo := &repository.SMTPConfigRepository{DB: db.DB}

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

	worker := service.NewWorker(nil,
		func(ctx context.Context, batchID int) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.GenerateTimeout)
			defer cancel()
			_, err := generation.Generate(ctx, batchID)
			return err
		},
		func(ctx context.Context, batchID int) error {
			return dispatch.Dispatch(ctx, batchID)
		},
	)

	// Connect to RabbitMQ
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("Failed to open a channel:", err)
	}
	defer ch.Close()

	// One job at a time per consumer, batches are heavy
	if err := ch.Qos(1, 0, false); err != nil {
		log.Fatal("Failed to set QoS:", err)
	}

	consume(ch, queue.TopicBatchGenerate, service.JobTypeGenerate, worker)
	consume(ch, queue.TopicBatchSend, service.JobTypeSend, worker)

	log.Println("Worker running, waiting for batch jobs...")
	forever := make(chan bool)
	<-forever
}

func consume(ch *amqp.Channel, topic, jobType string, worker *service.Worker) {
	q, err := ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		log.Fatal("Failed to declare queue:", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Fatal("Failed to register consumer:", err)
	}

	go func() {
		for d := range msgs {
			var job queue.Job
			if err := json.Unmarshal(d.Body, &job); err != nil {
				log.Println("Invalid job:", err)
				d.Ack(false)
				continue
			}

			err := worker.Run(context.Background(), service.BatchJob{Type: jobType, BatchID: job.BatchID})
			if err != nil {
				log.Printf("⚠️ %s job for batch %d failed: %v", jobType, job.BatchID, err)

				if shouldRequeue(err, d.Headers) {
					// Republish with a bumped retry header. A plain Nack
					// requeue keeps the original headers, so the count
					// would never move and the job would loop forever.
					requeueJob(ch, topic, d.Body, retryCount(d.Headers)+1)
				} else {
					log.Printf("💀 %s job for batch %d dropped after %d attempts", jobType, job.BatchID, retryCount(d.Headers)+1)
				}
			}

			d.Ack(false)
		}
	}()
}

// shouldRequeue decides whether a failed job goes back on the queue. A
// batch already generating or sending is not retryable, requeueing would
// just conflict again; anything else retries until the cap.
func shouldRequeue(err error, headers amqp.Table) bool {
	var conflict *appErrors.ErrBatchConflict
	if errors.As(err, &conflict) {
		return false
	}
	return retryCount(headers) < maxJobRetries
}

func requeueJob(ch *amqp.Channel, topic string, body []byte, attempt int) {
	err := ch.Publish(
		"",
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{"x-retry-count": int32(attempt)},
			Body:         body,
		},
	)
	if err != nil {
		log.Printf("⚠️ failed to requeue job on %s: %v", topic, err)
	}
}

// retryCount reads the x-retry-count header, whatever integer width the
// broker hands back.
func retryCount(headers amqp.Table) int {
	switch v := headers["x-retry-count"].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
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
