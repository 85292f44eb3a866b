package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/ragdoc"
	"github.com/flarexio/ragdoc/llm/openai"
	"github.com/flarexio/ragdoc/persistence/chromem"

	mcpE "github.com/flarexio/ragdoc/mcp"
	httpT "github.com/flarexio/ragdoc/transport/http"
	natsT "github.com/flarexio/ragdoc/transport/nats"
)

func main() {
	// real environment variables take precedence over .env
	if err := loadDotEnv(); err != nil {
		log.Fatal(err.Error())
	}

	cmd := &cli.Command{
		Name:  "ragdoc",
		Usage: "Retrieval-augmented document Q&A service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the ragdoc working directory",
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "API key of the embedding and chat provider",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-base-url",
				Usage:   "Base URL of an OpenAI-compatible API",
				Sources: cli.EnvVars("OPENAI_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "embed-model",
				Usage:   "Embedding model",
				Sources: cli.EnvVars("EMBED_MODEL"),
			},
			&cli.StringFlag{
				Name:    "chat-model",
				Usage:   "Chat model",
				Sources: cli.EnvVars("CHAT_MODEL"),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Vector storage directory",
				Sources: cli.EnvVars("DATA_DIR"),
			},
			&cli.StringFlag{
				Name:    "action-key",
				Usage:   "Shared secret required in the x-api-key header",
				Sources: cli.EnvVars("ACTION_KEY"),
			},
			&cli.StringFlag{
				Name:    "http-addr",
				Usage:   "HTTP server address",
				Value:   ":8080",
				Sources: cli.EnvVars("HTTP_ADDR"),
			},
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL, enables the NATS transport",
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.StringFlag{
				Name:    "nats-creds",
				Usage:   "NATS user credentials file",
				Sources: cli.EnvVars("NATS_CREDS"),
			},
			&cli.StringFlag{
				Name:  "nats-topic",
				Usage: "NATS topic of the ragdoc service group",
				Value: "ragdoc",
			},
		},
		Action: run,
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

// loadDotEnv loads the given env files, .env by default. A missing file is
// skipped; a malformed one is an error.
func loadDotEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

func loadConfig(path string) (ragdoc.Config, error) {
	cfg := ragdoc.DefaultConfig()

	f, err := os.Open(filepath.Join(path, "config.yaml"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return cfg, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, err
	}

	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		path = filepath.Join(homeDir, ".flarex", "ragdoc")
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	if v := cmd.String("openai-api-key"); v != "" {
		cfg.Provider.APIKey = v
	}

	if v := cmd.String("openai-base-url"); v != "" {
		cfg.Provider.BaseURL = v
	}

	if v := cmd.String("embed-model"); v != "" {
		cfg.Provider.EmbedModel = v
	}

	if v := cmd.String("chat-model"); v != "" {
		cfg.Provider.ChatModel = v
	}

	if v := cmd.String("action-key"); v != "" {
		cfg.ActionKey = v
	}

	if v := cmd.String("data-dir"); v != "" {
		cfg.Vector.Path = v
	}

	if cfg.Vector.Path == "" {
		cfg.Vector.Path = filepath.Join(path, "chroma")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := openai.NewClient(cfg.Provider)
	if err != nil {
		return err
	}

	embed := ragdoc.QueryEmbeddingFunc(client, cfg.EmbedTimeout.Duration())

	vector, err := chromem.NewChromemVectorDB(cfg.Vector, embed)
	if err != nil {
		return err
	}

	svc, err := ragdoc.NewService(cfg, vector, client, client)
	if err != nil {
		return err
	}
	defer svc.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc = ragdoc.LoggingMiddleware(log)(svc)
	svc = ragdoc.InstrumentingMiddleware(ragdoc.NewMetrics(registry))(svc)

	endpoints := ragdoc.MakeEndpoints(svc)

	// Add NATS Transport
	if natsURL := cmd.String("nats"); natsURL != "" {
		opts := []nats.Option{
			nats.Name("ragdoc Server"),
		}

		if creds := cmd.String("nats-creds"); creds != "" {
			opts = append(opts, nats.UserCredentials(creds))
		}

		nc, err := nats.Connect(natsURL, opts...)
		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "ragdoc",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		root := srv.AddGroup(cmd.String("nats-topic"))
		natsT.AddEndpoints(root, endpoints, cfg.ActionKey)

		log.Info("nats transport enabled", zap.String("url", natsURL))
	}

	r := gin.Default()
	httpT.AddRouters(r, endpoints, cfg.ActionKey)
	httpT.AddMetricsRouter(r, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mcpEndpoints := make(map[mcp.MCPMethod]mcpE.MCPEndpoint)
	mcpEndpoints[mcp.MethodInitialize] = mcpE.InitializeEndpoint(svc)
	mcpEndpoints[mcp.MethodPing] = mcpE.PingEndpoint(svc)
	mcpEndpoints[mcp.MethodToolsList] = mcpE.ListToolsEndpoint(svc)
	mcpEndpoints[mcp.MethodToolsCall] = mcpE.CallToolEndpoint(svc)
	httpT.AddStreamableRouters(r, mcpEndpoints, cfg.ActionKey)

	httpAddr := cmd.String("http-addr")
	server := &http.Server{
		Addr:    httpAddr,
		Handler: r,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err.Error())
		}
	}()

	log.Info("http transport enabled", zap.String("addr", httpAddr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
