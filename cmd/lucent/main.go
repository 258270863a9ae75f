// Command lucent is the terminal client: a chat UI over the Lucent
// backend with deep-research sessions, resumable streams, and a local
// transcript cache.
package main

import (
	"fmt"
	"net/http"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucentai/lucent-client/internal/chatcache"
	"github.com/lucentai/lucent-client/internal/config"
	"github.com/lucentai/lucent-client/internal/deepsearch"
	"github.com/lucentai/lucent-client/internal/logger"
	"github.com/lucentai/lucent-client/internal/message"
	"github.com/lucentai/lucent-client/internal/metrics"
	"github.com/lucentai/lucent-client/internal/transport"
)

// settingsCell is the mutable settings the transport reads at send time.
type settingsCell struct {
	mu       sync.Mutex
	settings transport.Settings
}

func (c *settingsCell) get() transport.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *settingsCell) set(s transport.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

func main() {
	cfg := config.Load()

	// The TUI owns stdout, so logs go to a file or nowhere.
	log := logger.Discard()
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logCfg := logger.FromConfig(cfg.LogLevel, cfg.LogFormat)
		logCfg.Output = f
		log = logger.New(logCfg)
	}

	cache, err := chatcache.Open(cfg.CachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open chat cache: %v\n", err)
		os.Exit(1)
	}
	defer cache.Close()

	settings := &settingsCell{settings: transport.Settings{Model: "lucent-default", Temperature: 0.7}}
	client := transport.NewClient(cfg.BackendBaseURL, settings.get, log)

	manager := deepsearch.NewManager(client, log)
	manager.SetSettleDelay(cfg.SettleDelay)

	// Optional metrics endpoint for development.
	if addr := os.Getenv("LUCENT_METRICS_ADDR"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	app := newApp(appDeps{
		cfg:      cfg,
		log:      log,
		store:    message.NewStore(),
		client:   client,
		manager:  manager,
		cache:    cache,
		settings: settings,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "lucent: %v\n", err)
		os.Exit(1)
	}
}
