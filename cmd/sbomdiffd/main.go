// Command sbomdiffd runs the HTTP diff/match/enrichment daemon: a
// bbolt-backed cache, env-var flag overrides, and graceful shutdown
// around the diff/match/enrichment service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.etcd.io/bbolt"

	"github.com/sbomdiff/sbomdiff/internal/cache"
	"github.com/sbomdiff/sbomdiff/internal/enrichment"
	"github.com/sbomdiff/sbomdiff/internal/server"
	"github.com/sbomdiff/sbomdiff/internal/version"
)

const (
	// defaultPort is the default HTTP port.
	defaultPort = 8080
	// defaultCachePath is the default path for the bbolt cache database.
	defaultCachePath = "./data/cache.db"
	// dbFileMode is the file mode for the bbolt database file.
	dbFileMode = 0600
	// defaultParallelism is the default number of parallel workers.
	defaultParallelism = 20
	// readHeaderTimeout is the timeout for reading request headers.
	readHeaderTimeout = 10 * time.Second
	// readTimeout is the timeout for reading the entire request.
	readTimeout = 30 * time.Second
	// writeTimeout is the timeout for writing the response.
	writeTimeout = 60 * time.Second
	// shutdownTimeout is the timeout for graceful shutdown.
	shutdownTimeout = 10 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		port     = flag.Int("port", defaultPort, "HTTP port to listen on")
		cacheDB  = flag.String("cache-path", defaultCachePath, "Path to bbolt cache database file")
		parallel = flag.Int("parallel", defaultParallelism, "Default number of concurrent workers for diff/match/enrichment")
		cacheTTL = flag.Duration("cache-ttl", 24*time.Hour, "Cache TTL for enrichment results")
		verbose  = flag.Bool("v", false, "Verbose output (debug mode)")
	)

	flag.Parse()

	logger := setupLogger(*verbose)

	cacheFilePath := *cacheDB
	if cacheEnv := os.Getenv("CACHE_PATH"); cacheEnv != "" {
		cacheFilePath = cacheEnv
	}

	portNum := *port
	if portEnv := os.Getenv("PORT"); portEnv != "" {
		if portFromEnv, parseErr := strconv.Atoi(portEnv); parseErr == nil {
			portNum = portFromEnv
		}
	}

	db, err := bbolt.Open(cacheFilePath, dbFileMode, nil)
	if err != nil {
		logger.Error("failed to open cache database", "path", cacheFilePath, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("opened cache database", "path", cacheFilePath)

	cacheInstance, err := cache.NewBboltCache(db)
	if err != nil {
		logger.Error("failed to initialize cache", "error", err)
		return 1
	}

	osvClient := enrichment.NewOSVClient(enrichment.OSVClientOptions{})
	enrichAdapter := enrichment.NewOSVAdapter(osvClient)

	srv := server.NewServer(enrichAdapter, cacheInstance, *cacheTTL, logger, *parallel, version.Get())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", portNum),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "port", portNum)
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case serverErr := <-serverErrors:
		logger.Error("server error", "error", serverErr)
		return 1
	case sig := <-shutdown:
		logger.Info("received shutdown signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("graceful shutdown failed", "error", shutdownErr)
			if closeErr := httpServer.Close(); closeErr != nil {
				logger.Error("forced shutdown failed", "error", closeErr)
			}
			return 1
		}

		logger.Info("server stopped gracefully")
		return 0
	}
}

// setupLogger sets up the logger based on the verbose flag.
func setupLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}
