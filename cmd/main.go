package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart_heating/internal/gateway"
	"smart_heating/internal/handlers"
	"smart_heating/internal/logger"
	"smart_heating/internal/repository"
	"smart_heating/internal/server"
	"smart_heating/internal/service"

	"github.com/spf13/viper"
)

func main() {
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	gw, err := openGateway(log)
	if err != nil {
		log.Fatalw("failed to connect device gateway", "err", err)
	}

	// wire dependencies
	repos := repository.NewRepository(db)
	store := service.NewStore(repos.Areas, repos.Settings, log)
	if err := store.Load(context.Background()); err != nil {
		log.Fatalw("failed to load areas", "err", err)
	}

	predictor := service.NewPredictor(repos.Samples, predictorConfig(), log)

	// The detector needs the orchestrator's refresh and the orchestrator
	// needs the detector's ignore flag; the closure breaks the cycle.
	var orch *service.Orchestrator
	detector := service.NewOverrideDetector(store, repos.Events, debounceDelay(), func(areaID string) {
		orch.Refresh(areaID)
	}, log)
	orch = service.NewOrchestrator(store, gw, predictor, detector, repos, orchestratorConfig(), log)

	unsubscribe, err := gw.Subscribe(detector.HandleDeviceChange)
	if err != nil {
		log.Fatalw("failed to subscribe to device changes", "err", err)
	}
	defer unsubscribe()

	hub := handlers.NewSnapshotHub()
	orch.OnSnapshots(hub.Publish)

	services := service.NewService(repos, store, predictor, detector, orch.Refresh, viper.GetString("jwt.signing_key"), log)
	apiHandler := handlers.NewHandler(services, hub, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := service.NewScheduler(store, scheduleInterval(), orch.Refresh, log)
	go orch.Run(ctx)
	go scheduler.Run(ctx)

	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	waitForShutdown(cancel, srv, detector, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "smart_heating.db")
		dbPath = "smart_heating.db"
	}
	return repository.InitDB(dbPath)
}

// openGateway connects the MQTT gateway, or a loopback fake when MQTT is
// disabled (useful for local development without a broker).
func openGateway(log *logger.Logger) (gateway.Gateway, error) {
	if !viper.GetBool("mqtt.enabled") {
		log.Infow("mqtt disabled; using in-memory device gateway")
		return gateway.NewFake(), nil
	}
	return gateway.NewMQTTGateway(gateway.MQTTConfig{
		BrokerURL: viper.GetString("mqtt.broker"),
		BaseTopic: viper.GetString("mqtt.base_topic"),
		Username:  viper.GetString("mqtt.username"),
		Password:  viper.GetString("mqtt.password"),
	}, log)
}

func debounceDelay() time.Duration {
	if d := viper.GetDuration("engine.override_debounce"); d > 0 {
		return d
	}
	return 2 * time.Second
}

func scheduleInterval() time.Duration {
	if d := viper.GetDuration("engine.schedule_interval"); d > 0 {
		return d
	}
	return time.Minute
}

func orchestratorConfig() service.OrchestratorConfig {
	cfg := service.DefaultOrchestratorConfig()
	if d := viper.GetDuration("engine.orchestrate_interval"); d > 0 {
		cfg.Interval = d
	}
	if d := viper.GetDuration("engine.history_retention"); d > 0 {
		cfg.HistoryRetention = d
	}
	if d := viper.GetDuration("engine.sample_retention"); d > 0 {
		cfg.SampleRetention = d
	}
	return cfg
}

func predictorConfig() service.PredictorConfig {
	cfg := service.DefaultPredictorConfig()
	if v := viper.GetFloat64("engine.fallback_lead_minutes"); v > 0 {
		cfg.FallbackLeadMinutes = v
	}
	if v := viper.GetFloat64("engine.max_lead_minutes"); v > 0 {
		cfg.MaxLeadMinutes = v
	}
	return cfg
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, detector *service.OverrideDetector, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines and pending debounce timers
	cancel()
	detector.Stop()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
