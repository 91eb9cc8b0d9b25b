// Command agentruntime is the composition root: it loads configuration,
// wires the MessageRouter, AgentManager, Supervisor and ManagementAPI
// together, and runs until an interrupt or an unrecoverable failure.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kolosalai/agentruntime/internal/agents"
	"github.com/kolosalai/agentruntime/internal/api"
	"github.com/kolosalai/agentruntime/internal/bus"
	"github.com/kolosalai/agentruntime/internal/config"
	"github.com/kolosalai/agentruntime/internal/embedding"
	"github.com/kolosalai/agentruntime/internal/jobs"
	"github.com/kolosalai/agentruntime/internal/memory/hybrid"
	"github.com/kolosalai/agentruntime/internal/supervisor"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

// exit codes per §6: 0 normal, 1 startup failure, 2 unrecoverable runtime
// failure, 130 interrupted by signal.
const (
	exitOK        = 0
	exitStartup   = 1
	exitRuntime   = 2
	exitSignalled = 130
)

// App holds every long-lived component the composition root wires together.
type App struct {
	Config      *config.SystemConfig
	Logger      *slog.Logger
	Router      *bus.Router
	Manager     *agents.Manager
	Supervisor  *supervisor.Supervisor
	APIServer   *api.Server
	JobStore    *jobs.SQLiteStore
	HybridStore *hybrid.Store
	MQTTClient  mqtt.Client
	Watcher     *config.Watcher

	apiCtx    context.Context
	apiCancel context.CancelFunc
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "agentruntime.yaml", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("agentruntime v%s (built %s)\n", version, buildTime)
		return exitOK
	}

	path := *configPath
	if env := os.Getenv("KOLOSAL_CONFIG"); env != "" {
		path = env
	}

	app, err := setup(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		return exitStartup
	}

	if err := startServices(app); err != nil {
		app.Logger.Error("failed to start services", "error", err)
		return exitStartup
	}

	printBanner(app)

	code, err := waitForShutdown(app)
	if err != nil {
		app.Logger.Error("shutdown error", "error", err)
		if code == exitOK {
			code = exitRuntime
		}
	}
	return code
}

// setup loads configuration and builds every component, in dependency order,
// without starting anything that opens a socket or background goroutine.
func setup(configPath string) (*App, error) {
	app := &App{}

	app.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	app.Logger.Info("starting agentruntime", "version", version, "config", configPath)

	cfg, err := loadConfig(configPath, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app.Config = cfg

	level := parseLogLevel(envOrConfig("KOLOSAL_LOG_LEVEL", cfg.System.LogLevel))
	app.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if p := os.Getenv("KOLOSAL_PORT"); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			cfg.System.Port = port
		} else {
			app.Logger.Warn("ignoring invalid KOLOSAL_PORT", "value", p)
		}
	}

	app.Router = bus.NewRouter(app.Logger)

	var jobStore *jobs.SQLiteStore
	if cfg.System.JobStorePath != "" {
		store, err := jobs.OpenSQLiteStore(cfg.System.JobStorePath, cfg.System.JobRetention, app.Logger)
		if err != nil {
			return nil, fmt.Errorf("open job store: %w", err)
		}
		store.StartReaper(10 * time.Minute)
		jobStore = store
		app.Logger.Info("job retention store opened", "path", cfg.System.JobStorePath)
	}
	app.JobStore = jobStore

	embeddingProvider := embedding.NewHashEmbedder(cfg.System.EmbeddingDim)

	var hybridStore *hybrid.Store
	if cfg.System.MemoryStorePath != "" {
		hcfg := hybrid.DefaultConfig()
		hcfg.DBPath = cfg.System.MemoryStorePath
		hcfg.Embedder = hybridEmbedder{provider: embeddingProvider}
		store, err := hybrid.New(hcfg)
		if err != nil {
			return nil, fmt.Errorf("open hybrid memory store: %w", err)
		}
		hybridStore = store
		app.Logger.Info("hybrid memory store opened", "path", cfg.System.MemoryStorePath)
	}
	app.HybridStore = hybridStore
	var hybridBackend hybrid.MemoryBackend
	if hybridStore != nil {
		hybridBackend = hybridStore
	}

	if cfg.System.MQTT.Broker != "" {
		client, err := connectMQTT(cfg.System.MQTT)
		if err != nil {
			return nil, fmt.Errorf("connect mqtt broker: %w", err)
		}
		app.MQTTClient = client
		app.Router.SetEventSink(bus.NewMQTTEventBridge(client, app.Logger))
		app.Logger.Info("mqtt event bridge connected", "broker", cfg.System.MQTT.Broker)
	}

	app.Manager = agents.NewManager(agents.ManagerConfig{
		Router:            app.Router,
		EmbeddingProvider: embeddingProvider,
		LLMCall:           llmCallForEngines(cfg.InferenceEngines),
		JobDrainTimeout:   10 * time.Second,
		JobStore:          jobStore,
		HybridStore:       hybridBackend,
		Logger:            app.Logger,
	})

	if _, err := app.Manager.LoadConfiguration(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("load agent configuration: %w", err)
	}

	app.Supervisor = supervisor.New(supervisor.Config{
		AgentManager:        app.Manager,
		Engines:             cfg.InferenceEngines,
		Interval:            time.Duration(cfg.System.HealthCheckIntervalSec) * time.Second,
		AutoRecovery:        cfg.System.AutoRecovery,
		MaxRecoveryAttempts: 3,
		RecoveryWindow:      5 * time.Minute,
		ActionTimeout:       10 * time.Second,
		Logger:              app.Logger,
	})

	app.APIServer = api.NewServer(api.Config{
		Port:       cfg.System.Port,
		Manager:    app.Manager,
		Supervisor: app.Supervisor,
		ConfigPath: configPath,
		Logger:     app.Logger,
	})

	if cfg.System.ConfigWatchIntervalSec > 0 {
		interval := time.Duration(cfg.System.ConfigWatchIntervalSec) * time.Second
		app.Watcher = config.NewWatcher(configPath, interval, app.Logger, func() {
			reloadFromDisk(app, configPath)
		})
	}

	return app, nil
}

// reloadFromDisk re-reads configPath and applies it via the same
// stop-all-then-recreate reload POST /v1/system/reload uses (§4.6);
// it is the config watcher's onChange callback.
func reloadFromDisk(app *App, configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		app.Logger.Error("config watcher: failed to reload config", "error", err)
		return
	}
	if app.Supervisor != nil {
		app.Supervisor.SetConfig(cfg)
	}
	if _, err := app.Manager.ReloadConfiguration(context.Background(), cfg); err != nil {
		app.Logger.Error("config watcher: failed to apply reloaded config", "error", err)
	}
}

// loadConfig reads the config file, writing a default one the first time the
// path doesn't exist, mirroring the teacher's first-run ergonomics.
func loadConfig(path string, logger *slog.Logger) (*config.SystemConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = config.DefaultConfig()
			if err := cfg.Save(path); err != nil {
				return nil, fmt.Errorf("save default config: %w", err)
			}
			logger.Info("default config created", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	if unknown, uerr := config.UnknownKeys(path); uerr == nil {
		for _, k := range unknown {
			logger.Warn("unrecognized top-level config key", "key", k)
		}
	}

	return cfg, nil
}

// llmCallForEngines builds the llm_call built-in function's backend hook
// (§3, §6B) from the first configured inference engine, treating it per §1
// as an opaque subprocess reachable over plain HTTP — not a named SaaS
// provider SDK, so a minimal OpenAI-compatible POST is all the contract
// needs. Returns nil (disabling llm_call with a DependencyError) when no
// engine is configured.
func llmCallForEngines(engines []config.InferenceEngine) func(ctx context.Context, prompt string) (string, error) {
	if len(engines) == 0 {
		return nil
	}
	eng := engines[0]
	client := &http.Client{Timeout: 60 * time.Second}
	url := fmt.Sprintf("http://%s:%d/v1/chat/completions", eng.Host, eng.Port)

	return func(ctx context.Context, prompt string) (string, error) {
		body, err := json.Marshal(map[string]any{
			"messages": []map[string]string{{"role": "user", "content": prompt}},
		})
		if err != nil {
			return "", fmt.Errorf("marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("inference backend unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("inference backend returned HTTP %d", resp.StatusCode)
		}

		var out struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode inference response: %w", err)
		}
		if len(out.Choices) == 0 {
			return "", errors.New("inference backend returned no choices")
		}
		return out.Choices[0].Message.Content, nil
	}
}

// hybridEmbedder adapts the runtime's ctx-aware embedding.Provider to the
// hybrid memory store's synchronous EmbeddingProvider contract.
type hybridEmbedder struct {
	provider *embedding.HashEmbedder
}

func (h hybridEmbedder) Embed(text string) ([]float64, error) {
	return h.provider.Embed(context.Background(), text)
}

func (h hybridEmbedder) Dims() int { return h.provider.Dimension() }

// connectMQTT dials the configured broker and blocks until the connection
// completes or times out, per §4.2's event bridge contract.
func connectMQTT(cfg config.MQTTSection) (mqtt.Client, error) {
	port := cfg.Port
	if port <= 0 {
		port = 1883
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("agentruntime-%d", time.Now().Unix())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, port))
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, errors.New("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}

// envOrConfig prefers the named environment variable over a config-file
// value, falling back to the config value when the variable is unset.
func envOrConfig(envVar, configVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return configVal
}

// parseLogLevel converts the spec's TRACE..FATAL vocabulary to slog.Level;
// slog has no TRACE or FATAL, so they fold to the nearest level it does have.
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "TRACE", "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "FATAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startServices starts the Supervisor's health-check loop and the
// ManagementAPI's HTTP server; both run in the background.
func startServices(app *App) error {
	app.Router.Start()
	app.Supervisor.Start()
	if app.Watcher != nil {
		app.Watcher.Start()
	}

	app.apiCtx, app.apiCancel = context.WithCancel(context.Background())
	go func() {
		if err := app.APIServer.Start(app.apiCtx); err != nil {
			app.Logger.Error("management API server error", "error", err)
		}
	}()

	return nil
}

func printBanner(app *App) {
	fmt.Println()
	fmt.Println("  agentruntime v" + version)
	fmt.Println("  multi-agent orchestration runtime")
	fmt.Println()
	fmt.Printf("  management API : http://localhost:%d\n", app.Config.System.Port)
	fmt.Printf("  agents loaded  : %d\n", len(app.Manager.ListAgents()))
	fmt.Printf("  auto recovery  : %v\n", app.Config.System.AutoRecovery)
	fmt.Println()
}

// waitForShutdown blocks until SIGINT/SIGTERM, then drains every component
// in reverse start order within a bounded window (§5).
func waitForShutdown(app *App) (int, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	app.Logger.Info("shutdown signal received", "signal", sig)

	if app.apiCancel != nil {
		app.apiCancel()
	}
	if app.Watcher != nil {
		app.Watcher.Stop()
	}
	app.Supervisor.Stop(5 * time.Second)
	app.Router.Stop(5 * time.Second)

	if app.MQTTClient != nil {
		app.MQTTClient.Disconnect(250)
	}

	if app.HybridStore != nil {
		if err := app.HybridStore.Close(); err != nil {
			app.Logger.Error("failed to close hybrid memory store", "error", err)
		}
	}

	if app.JobStore != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.JobStore.Stop(stopCtx); err != nil {
			app.Logger.Error("failed to close job store", "error", err)
		}
	}

	app.Logger.Info("agentruntime stopped")
	return exitSignalled, nil
}
