package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/trogers1052/portfolio-advisor/internal/advisor"
	"github.com/trogers1052/portfolio-advisor/internal/api"
	"github.com/trogers1052/portfolio-advisor/internal/config"
	"github.com/trogers1052/portfolio-advisor/internal/database"
	"github.com/trogers1052/portfolio-advisor/internal/kafka"
	"github.com/trogers1052/portfolio-advisor/internal/ledger"
	"github.com/trogers1052/portfolio-advisor/internal/pricing"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()

	if err := runMigrations(cfg.Database.ConnectionString()); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	cache := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer cache.Close()

	oracle := pricing.NewOracle(db, cache, pricing.DefaultTTL, log)

	method, err := ledger.ParseCostBasisMethod(cfg.Advisor.CostBasisMethod)
	if err != nil {
		log.WithError(err).Fatal("invalid cost basis method")
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PublishTopic)
	defer producer.Close()

	svc := advisor.NewService(db, oracle, producer, advisor.Config{
		StrategyID:        cfg.Advisor.StrategyID,
		RankThreshold:     cfg.Advisor.RankThreshold,
		MaxHoldings:       cfg.Advisor.MaxHoldings,
		MonthlySalesLimit: cfg.Advisor.MonthlySalesLimit,
		MaterialityFloor:  cfg.Advisor.MaterialityFloor,
		CostBasisMethod:   method,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.IngestTopic, cfg.Kafka.ConsumerGroup, db, log)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.WithError(err).Error("kafka consumer stopped")
		}
	}()

	router := api.SetupRoutes(api.NewHandler(db, svc))
	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown failed")
	}
}

func runMigrations(connStr string) error {
	path := os.Getenv("MIGRATIONS_PATH")
	if path == "" {
		path = "db/migrations"
	}
	m, err := migrate.New("file://"+path, connStr)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
