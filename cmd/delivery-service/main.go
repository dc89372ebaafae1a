package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vasiliy-maslov/food-delivery/internal/basket"
	"github.com/vasiliy-maslov/food-delivery/internal/catalog"
	"github.com/vasiliy-maslov/food-delivery/internal/config"
	"github.com/vasiliy-maslov/food-delivery/internal/db"
	"github.com/vasiliy-maslov/food-delivery/internal/events"
	"github.com/vasiliy-maslov/food-delivery/internal/handler"
	"github.com/vasiliy-maslov/food-delivery/internal/order"
	"github.com/vasiliy-maslov/food-delivery/internal/rating"
	"github.com/vasiliy-maslov/food-delivery/internal/transport"
)

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "delivery-service").Logger()
}

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.App)

	log.Info().Msg("Delivery service starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if err := pg.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	sqlxDB := pg.SQLX()
	defer sqlxDB.Close()

	var dishCache catalog.Cache = catalog.NopCache{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable at start-up, dish cache reads will fall back to the database")
		}
		dishCache = catalog.NewRedisCache(rdb, cfg.Redis.DishTTL)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Kafka writer")
			}
		}()
		publisher = kafkaPublisher
	}

	dishRepo := catalog.NewRepository(sqlxDB)
	dishes := catalog.NewService(dishRepo, dishCache)
	basketRepo := basket.NewRepository(pg)
	basketSvc := basket.NewService(basketRepo, dishRepo, pg)
	orderSvc := order.NewService(order.NewRepository(pg), basketRepo, pg, publisher, cfg.Order.MinDeliveryLead)
	ratingSvc := rating.NewService(rating.NewRepository(pg), dishes, pg, publisher)

	router := transport.NewRouter(transport.Handlers{
		Auth:   handler.NewAuthenticator(cfg.Auth.JWTSecret),
		Dish:   handler.NewDishHandler(dishes, ratingSvc),
		Basket: handler.NewBasketHandler(basketSvc),
		Order:  handler.NewOrderHandler(orderSvc, order.LinkQRGenerator{BaseURL: cfg.App.PublicBaseURL}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server stopped")
}
