package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/DockerDiscordControl/ddc/internal/config"
	"github.com/DockerDiscordControl/ddc/internal/control"
	"github.com/DockerDiscordControl/ddc/internal/db"
	"github.com/DockerDiscordControl/ddc/internal/docker"
	"github.com/DockerDiscordControl/ddc/internal/sched"
	"github.com/DockerDiscordControl/ddc/internal/status"
	"github.com/DockerDiscordControl/ddc/internal/surface"
	"github.com/DockerDiscordControl/ddc/internal/webpanel"
	"github.com/DockerDiscordControl/ddc/internal/ws"
)

func main() {
	cfg := config.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := config.NewStore(cfg.ConfigPath)
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()

	gw, err := newGateway(cfg, store)
	if err != nil {
		return err
	}
	defer gw.Close()

	cache := status.NewCache(status.DefaultTTL)
	pending := status.NewTracker()
	refresher := status.NewRefresher(gw, store, cache, pending, status.DefaultInterval)
	app := control.NewApp(store, gw, cache, pending, refresher)
	app.AttachDB(database)

	wsServer := ws.NewServer()
	panel := webpanel.NewPanel(wsServer)
	coord := surface.NewCoordinator(panel, store, app, database)
	app.SetCoordinator(coord)

	taskStore := sched.NewStore(database, store.Current().Location)
	runner := sched.NewRunner(taskStore, app)

	webpanel.RegisterHandlers(wsServer, app, panel, taskStore, coord)

	fleet := webpanel.NewFleetBroadcaster(wsServer)
	refresher.OnSweep(fleet.Publish)

	go refresher.Run(ctx)
	go coord.Run(ctx)
	go runner.Run(ctx)
	go app.RunHeartbeat(ctx, panel)
	go func() {
		if err := store.Watch(ctx, refresher.Kick); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("config watcher stopped", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr, "containers", len(store.Current().Containers))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newGateway picks the runtime backend: the real daemon, or the in-memory
// mock in dev mode so the panel can be exercised without Docker.
func newGateway(cfg *config.Config, store *config.Store) (docker.Gateway, error) {
	if cfg.Dev {
		mock := docker.NewMockGateway()
		for _, c := range store.Current().Containers {
			mock.AddContainer(c.DockerName, true)
		}
		slog.Info("dev mode, using mock runtime")
		return mock, nil
	}
	return docker.NewSDKGateway()
}
