package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"tdi-telegram-bot/config"
	"tdi-telegram-bot/internal/database"
	"tdi-telegram-bot/internal/metrics"
	"tdi-telegram-bot/internal/telegram"
	"tdi-telegram-bot/internal/webhook"
	"tdi-telegram-bot/lib/translation"
)

const (
	metricsSaveInterval = 5 * time.Minute
	shutdownTimeout     = 10 * time.Second
)

func main() {
	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(settings)
	translation.Configure("locales", settings.Lang)

	notifier, err := telegram.NewNotifier(telegram.BotConfig{
		Token:    settings.TelegramBotToken,
		ChatID:   settings.TelegramChatID,
		Endpoint: settings.TelegramEndpoint,
		Timeout:  settings.SendTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create notifier: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	botMetrics := metrics.NewBotMetrics(registry)

	var db *database.DB
	if settings.MetricsDB != "" {
		db, err = database.Open(settings.MetricsDB)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		// nothing after this point may exit without running the defers
		defer db.Close()
		loadMetricsFromDB(db, botMetrics)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if db != nil {
		go func() {
			ticker := time.NewTicker(metricsSaveInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					saveMetricsToDB(db, botMetrics)
				}
			}
		}()
	}

	servers := []*http.Server{{
		Addr:              fmt.Sprintf(":%d", settings.Port),
		Handler:           webhook.New(notifier, botMetrics, webhook.WithSendTimeout(settings.SendTimeout)),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if settings.MetricsPort > 0 {
		servers = append(servers, newMetricsAndHealthServer(settings.MetricsPort, registry))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			log.Infof("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-errCh:
		log.Errorf("Server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Failed to shut down %s: %v", srv.Addr, err)
		}
	}

	if db != nil {
		saveMetricsToDB(db, botMetrics)
		log.Info("Metrics saved")
	}
}

func setupLogging(s config.Settings) {
	log.SetLevel(log.InfoLevel)
	if s.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if s.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   s.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}
	log.Debug("Starting webhook bot...")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func newMetricsAndHealthServer(port int, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", healthCheckHandler)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func loadMetricsFromDB(db *database.DB, m *metrics.BotMetrics) {
	stored, err := db.LoadMetrics()
	if err != nil {
		log.Errorf("Failed to load metrics: %v", err)
		return
	}
	m.Restore(stored)
	log.Infof("Loaded %d metrics from database", len(stored))
}

func saveMetricsToDB(db *database.DB, m *metrics.BotMetrics) {
	if err := db.SaveMetrics(m.Snapshot()); err != nil {
		log.Errorf("Failed to save metrics: %v", err)
	}
}
