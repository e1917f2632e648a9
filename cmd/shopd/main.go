package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trolley/internal/platform/config"
	"trolley/internal/platform/httpserver"
	"trolley/internal/platform/logger"
	"trolley/internal/simulator"
)

// shopd serves the storefront backend boundary (REST cart API plus the
// WebSocket inventory feed) over in-memory state, for local development of
// engine consumers.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	sim := simulator.New(simulator.WithLogger(log))
	sim.Seed(
		simulator.Product{ID: "sku-espresso", Name: "Espresso Beans", Price: "14.50", Stock: 40},
		simulator.Product{ID: "sku-grinder", Name: "Hand Grinder", Price: "89.00", Stock: 12},
		simulator.Product{ID: "sku-kettle", Name: "Gooseneck Kettle", Price: "59.90", Stock: 7},
	)

	router := chi.NewRouter()
	router.Mount("/", sim.Handler())
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.ListenAddr, router)

	log.Info("starting shopd", "addr", cfg.ListenAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sim.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
