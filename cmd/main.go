package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"fotolio/internal/breaker"
	"fotolio/internal/imagecodec"
	"fotolio/internal/logging"
	"fotolio/internal/models"
	"fotolio/internal/secure"
	"fotolio/internal/server"
	"fotolio/internal/service"
	"fotolio/internal/storage"
	"fotolio/internal/watermark"
)

func main() {
	cfg, err := models.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(os.Getenv("FOTOLIO_DEBUG") != "")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	db, err := storage.NewStorage(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer db.Close()

	key, err := cfg.AlbumKey()
	if err != nil {
		log.Fatalf("failed to load album key: %v", err)
	}
	cipher, err := secure.NewIDCipher(key)
	if err != nil {
		log.Fatalf("failed to init id cipher: %v", err)
	}

	composer, err := watermark.NewComposer(imagecodec.New(), logger)
	if err != nil {
		log.Fatalf("failed to init watermark composer: %v", err)
	}

	breakers := breaker.NewRegistry(breaker.Config{
		Timeout:                  cfg.Breaker.Timeout(),
		ResetTimeout:             cfg.Breaker.ResetTimeout(),
		RollingWindow:            cfg.Breaker.RollingWindow(),
		ErrorThresholdPercentage: cfg.Breaker.ErrorThresholdPercentage,
		VolumeThreshold:          cfg.Breaker.VolumeThreshold,
	})
	for _, name := range []string{server.BreakerRetrieval, server.BreakerUpload} {
		breakers.Get(name).Subscribe(func(name string, ev breaker.Event) {
			logger.Warn("breaker event", zap.String("breaker", name), zap.String("event", string(ev)))
		})
	}

	photos := service.NewPhotoService(db, cipher, composer, logger)
	links := service.NewShareLinkService(db, db, cfg.PublicBaseURL, cfg.ShareLinkTTL(), logger)

	// Kafka producer
	producer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: []string{cfg.KafkaBroker},
		Topic:   cfg.KafkaTopic,
	})

	// Start Kafka consumer in background
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		consumer := kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{cfg.KafkaBroker},
			Topic:   cfg.KafkaTopic,
			GroupID: "photo-processor-group",
		})
		defer consumer.Close()

		for {
			msg, err := consumer.ReadMessage(ctx)
			if err != nil {
				if err == context.Canceled {
					return
				}
				logger.Error("error reading message", zap.Error(err))
				continue
			}
			id, err := uuid.Parse(string(msg.Value))
			if err != nil {
				logger.Error("bad photo id in message", zap.ByteString("value", msg.Value))
				continue
			}
			if err := photos.GenerateThumbnail(ctx, id); err != nil {
				logger.Error("error processing photo", zap.Error(err))
			}
		}
	}()

	srv := server.NewServer(cfg, photos, links, cipher, breakers, producer, logger)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	srv.Stop()
	producer.Close()
}
