// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"datedriven/internal/bootstrap"
	"datedriven/internal/common/camunda"
	"datedriven/internal/common/config"
	"datedriven/internal/common/logger"

	fkd "datedriven/internal/workers/keydates/find-key-dates"
	cpm "datedriven/internal/workers/pricing/compute-price-multiplier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewStructured("info", "console", "stdout").Error("config load failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	log := bootstrap.Logger(cfg)
	log.Info("starting worker manager", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := bootstrap.Observability(cfg)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("worker manager failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	log.Info("worker manager stopped gracefully", nil)
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RetryConfig: &camunda.RetryConfig{
			MaxRetries: 10,
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
		},
	})
	if err != nil {
		return err
	}
	defer zeebe.Close()
	log.Info("zeebe client connected", map[string]interface{}{"gateway": cfg.Camunda.BrokerAddress})

	store, closeStore, err := bootstrap.Store(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb, closeRedis := bootstrap.Redis(ctx, cfg, log)
	defer closeRedis()

	sinks, err := bootstrap.Sinks(cfg, store, log)
	if err != nil {
		return err
	}
	set, err := bootstrap.Sources(cfg, rdb, log)
	if err != nil {
		return err
	}
	engine, loc, err := bootstrap.Engine(cfg)
	if err != nil {
		return err
	}
	// The worker persists through its own sinks; the driver only processes.
	driver := bootstrap.Driver(cfg, store, set, nil, log, nil)

	var workers []*camunda.CamundaWorker
	start := func(taskType string, h camunda.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if !wcfg.Enabled {
			log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
			return
		}
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), camunda.WorkerOptions{
			TaskType:      taskType,
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, h, log))
	}

	findCfg := fkd.LoadConfig()
	findCfg.Timeout = config.GetDuration(config.GetWorkerConfig(cfg, fkd.TaskType).Timeout)
	start(fkd.TaskType, fkd.NewHandler(findCfg, driver, sinks, log))

	priceCfg := cpm.LoadConfig()
	priceCfg.Timeout = config.GetDuration(config.GetWorkerConfig(cfg, cpm.TaskType).Timeout)
	priceCfg.Location = loc
	start(cpm.TaskType, cpm.NewHandler(priceCfg, engine, store, log))

	log.Info("workers registered", map[string]interface{}{"count": len(workers)})

	srv := healthServer(cfg.Observability.MetricsAddress, zeebe)
	go func() {
		log.Info("health/metrics server listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health/metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, stopping workers", nil)

	for _, w := range workers {
		w.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthServer(addr string, zeebe *camunda.Client) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
