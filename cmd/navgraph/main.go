// Command navgraph generates a random navigation graph and serves it to the
// visualiser, answering pick, hover and route requests with A* searches.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"astar-navgraph/internal/config"
	"astar-navgraph/internal/export"
	"astar-navgraph/internal/metrics"
	"astar-navgraph/internal/navgraph"
	"astar-navgraph/internal/server"
	"astar-navgraph/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides "+config.EnvPath+")")
	dump := flag.String("dump", "", "write one generated graph as GeoJSON to this file (- for stdout) and exit")
	flag.Parse()

	// Load configuration
	path := config.Path(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if *dump != "" {
		if err := dumpGraph(cfg, logger, *dump); err != nil {
			logger.Fatal("Failed to dump graph", zap.Error(err))
		}
		return
	}

	if err := run(cfg, path, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func dumpGraph(cfg *config.Config, logger *zap.Logger, target string) error {
	sess, err := session.New(cfg, session.WithLogger(logger))
	if err != nil {
		return err
	}

	var data []byte
	sess.View(func(g *navgraph.Graph, id uuid.UUID) {
		data, err = export.Marshal(g, export.WithGraphID(id.String()))
	})
	if err != nil {
		return err
	}

	if target == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return err
	}
	logger.Info("Graph written", zap.String("path", target), zap.Int("bytes", len(data)))
	return nil
}

func run(cfg *config.Config, path string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector("navgraph")
	sess, err := session.New(cfg,
		session.WithLogger(logger.Named("session")),
		session.WithRecorder(collector),
	)
	if err != nil {
		return err
	}

	if path != "" {
		stopWatcher, err := watchConfig(ctx, path, logger, sess)
		if err != nil {
			return err
		}
		defer stopWatcher()
	}

	api := server.New(sess, logger.Named("http"),
		server.WithMetrics(collector.Handler()),
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("address", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// watchConfig reconfigures sess whenever the file at path changes, until
// ctx is done or the returned stop function is called. stop returns once
// the watcher has released its file handles.
func watchConfig(ctx context.Context, path string, logger *zap.Logger, sess *session.Session) (stop func(), err error) {
	watcher, err := config.NewWatcher(path, logger.Named("config"), func(next *config.Config) {
		if _, err := sess.Reconfigure(next); err != nil {
			logger.Warn("Keeping previous configuration", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		watcher.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}, nil
}
