package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MaxDreger92/matgraph-backend/internal/queue"
	"github.com/MaxDreger92/matgraph-backend/internal/server"
	"github.com/MaxDreger92/matgraph-backend/internal/storage"
	"github.com/MaxDreger92/matgraph-backend/internal/tracker"
	"github.com/MaxDreger92/matgraph-backend/internal/util"
	"github.com/MaxDreger92/matgraph-backend/pkg/classify"
	"github.com/MaxDreger92/matgraph-backend/pkg/loader"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger"
	"github.com/MaxDreger92/matgraph-backend/pkg/logger/console"
	"github.com/MaxDreger92/matgraph-backend/pkg/pipeline"
	"github.com/MaxDreger92/matgraph-backend/pkg/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Init s3 client
	s3Client := storage.NewS3Client(ctx)

	aiClient := server.NewAiClient()

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()
	pgConn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pgStore := store.NewPGStore(pgConn)

	classifier, err := classify.NewClassifier(ctx, classify.ClassifierParams{
		Embedder: aiClient,
		Cache:    pgStore,
	})
	if err != nil {
		logger.Fatal("Failed to build classification indexes", "err", err)
	}

	s3Bucket := util.GetEnvString("AWS_BUCKET", "matgraph")
	pipe := pipeline.New(pipeline.Params{
		Client:     aiClient,
		Classifier: classifier,
		Loader:     loader.NewTableLoader(loader.NewS3FileLoader(s3Bucket, s3Client)),
		Graph:      pgStore,
		Log:        pgStore,
		Tracker:    tracker.NewClient(),
	})

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	queues := []string{queue.ImportQueue}
	queue.SetupQueues(ch, queues)

	logger.Info("Listening for messages")

	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	// prefetch=1 so one import finishes before the next is delivered
	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.ImportQueue,
		fmt.Sprintf("%s_consumer", queue.ImportQueue),
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.ImportQueue, "err", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed", "queue", queue.ImportQueue)
					return
				}

				startTime := time.Now()
				logger.Info("Received message", "queue", queue.ImportQueue)

				processingErr := queue.ProcessImportMessage(ctx, pipe, string(msg.Body))
				if processingErr != nil {
					logger.Error("Error processing message", "queue", queue.ImportQueue, "err", processingErr)
					queue.HandleProcessingError(consumerCh, msg, queue.ImportQueue)
				} else {
					if err := msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", queue.ImportQueue)
				}

				metrics := aiClient.GetMetrics()
				aiDuration := time.Duration(metrics.DurationMs) * time.Millisecond
				logger.Info(
					"AI Metrics",
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration", formatDuration(aiDuration),
				)
				logger.Info("Processing time", "duration", formatDuration(time.Since(startTime)))
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
