package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/Vasu1712/scenyx-stage/internal/api/scenes"
	"github.com/Vasu1712/scenyx-stage/internal/backend"
	"github.com/Vasu1712/scenyx-stage/internal/config"
	"github.com/Vasu1712/scenyx-stage/internal/dmx"
	"github.com/Vasu1712/scenyx-stage/internal/middleware"
	"github.com/Vasu1712/scenyx-stage/internal/stage"
	"github.com/Vasu1712/scenyx-stage/internal/storage"
	"github.com/Vasu1712/scenyx-stage/internal/storage/memory"
	"github.com/Vasu1712/scenyx-stage/internal/storage/valkeystore"
	"github.com/Vasu1712/scenyx-stage/internal/ws"
)

var logger = loggo.GetLogger("stage")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return errors.Annotate(err, "loading config")
	}
	if err := loggo.ConfigureLoggers(cfg.LogConfig); err != nil {
		return errors.Annotate(err, "configuring logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer store.Close()

	mapper, err := dmx.LoadMapper(cfg.ChannelMap)
	if err != nil {
		return errors.Annotate(err, "loading channel map")
	}
	logger.Infof("channel map has %d slots", len(mapper.Indexes()))

	link := backend.NewLink(backend.Config{URL: cfg.BackendURL, QueueSize: cfg.BackendQueue})
	defer func() {
		if err := link.Close(); err != nil {
			logger.Errorf("stopping backend link: %v", err)
		}
	}()
	hub := ws.NewHub(cfg.CORSOrigin)
	defer func() {
		if err := hub.Close(); err != nil {
			logger.Errorf("stopping websocket hub: %v", err)
		}
	}()

	svc, err := stage.NewService(stage.Config{
		Store:    store,
		Universe: dmx.NewUniverse(mapper),
		Notifier: link,
		LiveMode: cfg.LiveMode,
	})
	if err != nil {
		return errors.Trace(err)
	}
	if err := svc.Load(ctx); err != nil {
		return errors.Annotate(err, "loading stage state")
	}

	router := mux.NewRouter()
	router.Use(middleware.Timeout(cfg.RequestTimeout))
	scenes.RegisterSceneRoutes(router, scenes.NewSceneHandler(svc, hub))

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           middleware.CORS(cfg.CORSOrigin)(router),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("server started at %s", cfg.ListenAddr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return errors.Annotate(err, "serving")
	case <-ctx.Done():
	}
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	hub.Kill()
	return errors.Annotate(server.Shutdown(shutdownCtx), "shutting down")
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreValkey:
		store, err := valkeystore.NewStore(ctx, valkeystore.Options{
			Address:  cfg.ValkeyAddr,
			Password: cfg.ValkeyPassword,
			DB:       cfg.ValkeyDB,
			Prefix:   cfg.ValkeyPrefix,
		})
		if err != nil {
			return nil, errors.Annotatef(err, "connecting to valkey at %s", cfg.ValkeyAddr)
		}
		logger.Infof("using valkey store at %s", cfg.ValkeyAddr)
		return store, nil
	default:
		logger.Infof("using in-memory store, state is lost on exit")
		return memory.NewStore(), nil
	}
}
