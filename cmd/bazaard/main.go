package main

import (
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bazaar/config"
	"bazaar/core/events"
	"bazaar/observability/logging"
	"bazaar/rpc"
	"bazaar/storage"
	"bazaar/state"
)

// pauseSet is the config-driven pause view consulted before every mutating
// instruction.
type pauseSet map[string]struct{}

func newPauseSet(modules []string) pauseSet {
	set := make(pauseSet, len(modules))
	for _, module := range modules {
		set[strings.ToLower(strings.TrimSpace(module))] = struct{}{}
	}
	return set
}

func (p pauseSet) IsPaused(module string) bool {
	_, ok := p[strings.ToLower(module)]
	return ok
}

func main() {
	configFile := flag.String("config", "./bazaar.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("BAZAAR_ENV"))
	logger := logging.Setup("bazaard", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if env != "" {
		cfg.Env = env
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "bazaar.db"))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	server := rpc.NewServer(manager, events.NoopEmitter{}, newPauseSet(cfg.PausedModules), logger)

	go func() {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		logger.Info("metrics listening", "addr", cfg.MetricsAddress)
		if err := metricsServer.ListenAndServe(); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	logger.Info("starting bazaard",
		"env", cfg.Env,
		"dataDir", cfg.DataDir,
		"pausedModules", strings.Join(cfg.PausedModules, ","),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "error", err)
		os.Exit(1)
	}
}
