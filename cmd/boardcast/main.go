package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/boardcast/internal/api"
	"github.com/btouchard/boardcast/internal/auth"
	"github.com/btouchard/boardcast/internal/config"
	"github.com/btouchard/boardcast/internal/item"
	boardmcp "github.com/btouchard/boardcast/internal/mcp"
	authmw "github.com/btouchard/boardcast/internal/mcp/middleware"
	"github.com/btouchard/boardcast/internal/notify"
	"github.com/btouchard/boardcast/internal/source"
	"github.com/btouchard/boardcast/internal/store"
	"github.com/btouchard/boardcast/internal/tunnel"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "version":
		fmt.Printf("boardcast %s\n", version)
	case "check":
		cmdCheck(os.Args[2:])
	case "token":
		cmdToken(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: boardcast <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the boardcast server\n")
	fmt.Fprintf(os.Stderr, "  check     Validate configuration\n")
	fmt.Fprintf(os.Stderr, "  token     Print received webhook verification tokens\n")
	fmt.Fprintf(os.Stderr, "  version   Print version\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting boardcast",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Store.Token == "" {
		fmt.Fprintln(os.Stderr, "warning: store.token is empty; item queries will be rejected upstream")
	}
	if cfg.Store.DatabaseID == "" {
		fmt.Fprintln(os.Stderr, "warning: store.database_id is empty; /items will fail")
	}
	if cfg.Webhook.Secret == "" {
		fmt.Fprintln(os.Stderr, "warning: webhook.secret is empty; unsigned webhooks will be accepted")
	}

	fmt.Println("configuration is valid")
}

func cmdToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	all := fs.Bool("all", false, "list every recorded token, newest first")
	mcpToken := fs.Bool("mcp", false, "print the MCP bearer token instead")
	rotate := fs.Bool("rotate", false, "with -mcp, replace the generated MCP bearer token")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if *mcpToken {
		printMCPToken(cfg, *rotate)
		return
	}
	if cfg.Database.Path == "" {
		fmt.Fprintln(os.Stderr, "database.path is empty: tokens are only kept in memory and in the server log")
		os.Exit(1)
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if *all {
		list, err := db.ListChallenges(0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "listing tokens: %v\n", err)
			os.Exit(1)
		}
		for _, c := range list {
			fmt.Printf("%s\t%s\t%s\n", c.ReceivedAt.Local().Format(time.RFC3339), c.RemoteAddr, c.Token)
		}
		return
	}

	c, err := db.LatestChallenge()
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintln(os.Stderr, "no verification token received yet")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(c.Token)
}

func printMCPToken(cfg *config.Config, rotate bool) {
	if cfg.MCP.Token != "" && !rotate {
		fmt.Println(cfg.MCP.Token)
		return
	}
	if cfg.MCP.Token != "" {
		fmt.Fprintln(os.Stderr, "mcp.token is set in configuration; rotate it there")
		os.Exit(1)
	}

	load := auth.LoadOrCreateToken
	if rotate {
		load = auth.RotateToken
	}
	token, err := load(config.Dir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}

	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			slog.Warn("failed to open log file, using stdout only", "path", cfg.Server.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	logger := slog.New(slog.NewMultiHandler(handlers...))
	slog.SetDefault(logger)
}

func openChallengeStore(cfg *config.Config) (store.ChallengeStore, error) {
	if cfg.Database.Path == "" {
		slog.Info("no database path configured, keeping verification tokens in memory")
		return store.NewMemoryStore(), nil
	}
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	slog.Info("database opened", "path", cfg.Database.Path)
	return db, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	// --- Challenge Store ---
	challenges, err := openChallengeStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = challenges.Close() }()

	retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
	go store.StartCleanupLoop(challenges, retention, ctx.Done())

	// --- Record Fetcher ---
	fetcher := source.NewFetcher(
		source.NewNotionClient(cfg.Store, nil),
		item.NewNormalizer(cfg.Store.Properties),
	)

	// --- Notification Pipeline ---
	hub := notify.NewBroadcaster(cfg.Events.PingInterval, cfg.Events.WriteTimeout, clock.WallClock)
	go hub.Run(ctx)

	fanout := notify.NewFanout(hub)
	scheduler := notify.NewScheduler(fanout, cfg.Webhook.Debounce, clock.WallClock)
	defer scheduler.Stop()

	authenticator := auth.NewAuthenticator(cfg.Webhook.Secret, cfg.Webhook.SignatureHeader)
	if !authenticator.HasSecret() {
		slog.Warn("webhook.secret is not set: webhooks are accepted unsigned until a secret is configured")
	}

	// --- MCP Server ---
	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpServer := boardmcp.NewServer(&boardmcp.Deps{
			Items:     fetcher,
			Hub:       hub,
			Scheduler: scheduler,
			Version:   version,
		})
		fanout.Add(notify.NewMCPNotifier(mcpServer))

		token := cfg.MCP.Token
		if token == "" {
			if token, err = auth.LoadOrCreateToken(config.Dir()); err != nil {
				return fmt.Errorf("loading mcp token: %w", err)
			}
			slog.Info("using generated mcp bearer token", "path", auth.TokenPath(config.Dir()))
		}
		mcpHandler = authmw.BearerAuth(token)(server.NewStreamableHTTPServer(mcpServer))
		slog.Info("mcp endpoint enabled", "path", "/mcp")
	}

	// --- HTTP Router ---
	router := api.NewRouter(&api.Handlers{
		Items:        fetcher,
		Auth:         authenticator,
		Scheduler:    scheduler,
		Hub:          hub,
		Challenges:   challenges,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,

		EventWriteTimeout: cfg.Events.WriteTimeout,
	}, api.RouterOptions{
		AllowedOrigin:   cfg.Server.AllowedOrigin,
		SignatureHeader: cfg.Webhook.SignatureHeader,
		Limiter:         api.NewIPRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
		MCP:             mcpHandler,
	})

	// --- HTTP Server ---
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("boardcast is ready", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- Tunnel ---
	var tun tunnel.Tunnel
	if cfg.Tunnel.Enabled {
		tun = tunnel.NewNgrok(cfg.Tunnel)
		if _, err := tun.Start(ctx, addr); err != nil {
			_ = srv.Close()
			return fmt.Errorf("starting tunnel: %w", err)
		}
		go func() {
			if err := srv.Serve(tun.Listener()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("tunnel listener: %w", err)
			}
		}()
	} else if cfg.Server.PublicURL != "" {
		slog.Info("webhook endpoint", "url", tunnel.Endpoint(cfg.Server.PublicURL, "/webhook"))
	}

	var runErr error
	select {
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	scheduler.Stop()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutting down http server: %w", err)
	}
	if tun != nil {
		if err := tun.Close(); err != nil {
			slog.Warn("closing tunnel", "error", err)
		}
	}

	return runErr
}
