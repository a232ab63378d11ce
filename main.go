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

	"go-firestore-ratings/internal/config"
	"go-firestore-ratings/internal/database"
	scoreboardHandler "go-firestore-ratings/internal/handler/scoreboard"
	ratingRepository "go-firestore-ratings/internal/repository/rating"

	scoresEventPublisher "go-firestore-ratings/internal/eventpublisher/scores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {

	cnf := config.LoadConfigOrPanic()
	setupLogger(cnf.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	defer close(sigs)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	db, err := database.Open(ctx, cnf, database.NewMetrics(reg, cnf.Store.Backend))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ratingRepo := ratingRepository.New(db, cnf.Rating)
	scoresPublisher := scoresEventPublisher.New(ratingRepo, cnf.Server.WatchEntities)
	sb := scoreboardHandler.New(scoresPublisher, reg)

	server := &http.Server{
		Addr:              cnf.Server.Addr,
		Handler:           newRouter(reg, ratingRepo, sb),
		ReadHeaderTimeout: time.Second * 10,
	}

	// subscribe before the publisher starts emitting
	sb.Subscribe()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return sb.EventHandler(gctx)
	})
	group.Go(func() error {
		return scoresPublisher.Start(gctx)
	})
	group.Go(func() error {
		log.Info().Str("addr", cnf.Server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), time.Second*5)
		defer scancel()
		return server.Shutdown(sctx)
	})

	select {
	case <-sigs:
		// Received a termination signal, continue to shutdown
	case <-gctx.Done():
		// errgroup encountered an error, continue to shutdown
	}

	cancel() // cancel the root context to signal all the consumers

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("shutdown")
			os.Exit(1)
		}
	case <-time.After(time.Second * 5):
		// Give enough time to close all the pending resources
		os.Exit(1)
	case <-sigs:
		// Forcefully terminate the app with a signal
		os.Exit(1)
	}
}

func setupLogger(cnf config.Log) {
	level, err := zerolog.ParseLevel(cnf.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cnf.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func newRouter(reg *prometheus.Registry, ratingRepo ratingRepository.IRepository, sb *scoreboardHandler.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/categories", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, ratingRepo.Categories())
	})
	r.Get("/scores/{entityId}", func(w http.ResponseWriter, req *http.Request) {
		scores, ok := sb.Latest(chi.URLParam(req, "entityId"))
		if !ok {
			http.Error(w, "entity is not watched", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, scores)
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
