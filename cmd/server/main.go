package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"classreminder/internal/config"
	"classreminder/internal/database"
	"classreminder/internal/handlers"
	"classreminder/internal/logging"
	"classreminder/internal/runlog"
	"classreminder/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(reg)

	// Outbox and relay
	transports := map[services.Channel]services.Transport{
		services.ChannelLog: services.NewLogTransport(logging.New("mail")),
	}
	if cfg.SendGridAPIKey != "" {
		transports[services.ChannelEmail] = services.NewEmailService(cfg.SendGridAPIKey, cfg.FromEmail, cfg.FromName)
	}
	relay := services.NewMailRelay(db, transports, services.RelayConfig{
		Interval:    cfg.RelayPollInterval,
		BatchSize:   cfg.RelayBatchSize,
		MaxAttempts: cfg.RelayMaxAttempts,
	}, logging.New("relay"), metrics)
	relay.Start(ctx)

	// Dispatcher
	reminders := database.NewReminderStore(db)
	dispatcher := services.NewDispatcher(
		database.NewOccurrenceStore(db),
		reminders,
		services.NewOutboxQueue(db),
		services.DispatcherConfig{
			Location:    cfg.Location(),
			Lead:        cfg.ReminderLead,
			Concurrency: cfg.ReminderConcurrency,
			Channel:     services.Channel(cfg.MailChannel),
		},
		logging.New("dispatcher"),
	).WithMetrics(metrics)
	if cfg.ZoomEnabled() {
		zoom, err := services.NewZoomService(services.ZoomConfig{
			AccountID:    cfg.ZoomAccountID,
			ClientID:     cfg.ZoomClientID,
			ClientSecret: cfg.ZoomClientSecret,
		})
		if err != nil {
			log.Fatal("Failed to initialize Zoom client:", err)
		}
		dispatcher.WithJoinLinks(zoom)
	}

	// Run log: durable file plus in-memory history for the API
	fileSink, err := runlog.OpenFile(cfg.RunLogPath)
	if err != nil {
		log.Fatal("Failed to open run log:", err)
	}
	defer fileSink.Close()
	history := runlog.NewHistory(cfg.RunHistorySize)

	worker := services.NewReminderWorker(dispatcher, runlog.Tee{fileSink, history}, services.WorkerConfig{
		Schedule:      cfg.ReminderSchedule,
		PurgeSchedule: cfg.PurgeSchedule,
		Retention:     cfg.ReminderRetention,
		Location:      cfg.Location(),
	}, logging.New("worker")).WithPurger(reminders).WithMetrics(metrics)
	if err := worker.Start(ctx); err != nil {
		log.Fatal("Failed to start reminder worker:", err)
	}

	opsHandler := handlers.NewOpsHandler(history, reminders, worker, logging.New("http"))
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.NewRouter(opsHandler, reg, logging.New("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s...", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	worker.Stop()
	relay.Wait()
}
