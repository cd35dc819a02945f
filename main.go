// Command chain-reaction starts the Chain Reaction game server.
//
// It supports two modes:
//  1. "server" (default) runs the HTTP server exposing the REST API, WebSocket
//     push and an /mcp HTTP endpoint
//  2. "stdio-mcp" runs an MCP stdio server and spins up an internal HTTP API if
//     none is available
//
// Flags control host/port, the config directory, the session store, debug
// logging and optional ngrok tunneling for external access during development.
// Every flag also reads an environment variable, and a .env file is loaded
// first when present.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/chain-reaction-game/api"
	"github.com/wricardo/chain-reaction-game/game/config"
	"github.com/wricardo/chain-reaction-game/game/lobby"
	"github.com/wricardo/chain-reaction-game/game/service"
	"github.com/wricardo/chain-reaction-game/game/session"
	"github.com/wricardo/chain-reaction-game/logging"
	"github.com/wricardo/chain-reaction-game/transport/mcp"
	"github.com/wricardo/chain-reaction-game/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Chain Reaction Game Server"
)

// Session store kinds accepted by --store.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

const (
	sessionMaxAge   = 24 * time.Hour
	roomMaxAge      = 2 * time.Hour
	cleanupInterval = time.Hour
	syncInterval    = 5 * time.Second
	externalAPIURL  = "http://localhost:8080"
)

// options holds the resolved command line configuration.
type options struct {
	Host        string
	Port        int
	ConfigDir   string
	Store       string
	SessionsDir string
	DBPath      string
	StaticDir   string
	Debug       bool
	Ngrok       bool
	NgrokAuth   string
	NgrokDomain string
}

func (o options) addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

func main() {
	// Missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
	}

	cmd := newRootCommand()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "chain-reaction",
		Usage:   "two-player chain reaction game server",
		Version: Version,
		Flags:   serverFlags(),
		Action:  runServerCommand,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "run the HTTP server with API, WebSocket and MCP endpoint",
				Action:  runServerCommand,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "run an MCP stdio server, starting an internal HTTP API if none is running",
				Action:  runStdioCommand,
			},
		},
	}
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
		&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
		&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "directory containing game configurations", Sources: cli.EnvVars("CONFIG_DIR")},
		&cli.StringFlag{Name: "store", Value: StoreFile, Usage: "session store: file, sqlite or memory", Sources: cli.EnvVars("SESSION_STORE")},
		&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "directory for the file session store", Sources: cli.EnvVars("SESSIONS_DIR")},
		&cli.StringFlag{Name: "db", Value: "sessions.db", Usage: "database path for the sqlite session store", Sources: cli.EnvVars("SESSION_DB")},
		&cli.StringFlag{Name: "static-dir", Value: "static", Usage: "directory served at /", Sources: cli.EnvVars("STATIC_DIR")},
		&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", Sources: cli.EnvVars("DEBUG")},
		&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
		&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
	}
}

func optionsFrom(cmd *cli.Command) options {
	return options{
		Host:        cmd.String("host"),
		Port:        cmd.Int("port"),
		ConfigDir:   cmd.String("config-dir"),
		Store:       cmd.String("store"),
		SessionsDir: cmd.String("sessions-dir"),
		DBPath:      cmd.String("db"),
		StaticDir:   cmd.String("static-dir"),
		Debug:       cmd.Bool("debug"),
		Ngrok:       cmd.Bool("ngrok"),
		NgrokAuth:   cmd.String("ngrok-auth"),
		NgrokDomain: cmd.String("ngrok-domain"),
	}
}

// services bundles everything a running server needs.
type services struct {
	logger      *zap.Logger
	configs     *config.Manager
	sessions    *session.Manager
	persistence session.SessionPersistence
	game        service.GameService
	hub         *websocket.Hub
	lobby       *lobby.Lobby
	staticDir   string
}

// initializeServices wires the config and session managers, the WebSocket hub,
// the game service and the lobby. The hub runs until close is called.
func initializeServices(opts options, logger *zap.Logger) (*services, error) {
	logger = logging.OrNop(logger)

	configManager, err := config.NewManager(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := newPersistence(opts, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence, session.WithLogger(logger))
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", zap.Error(err))
	}

	hub := websocket.NewHub(websocket.WithLogger(logger))
	go hub.Run()

	gameService := service.NewGameService(sessionManager, configManager,
		service.WithNotifier(hub),
		service.WithLogger(logger),
	)

	return &services{
		logger:      logger,
		configs:     configManager,
		sessions:    sessionManager,
		persistence: persistence,
		game:        gameService,
		hub:         hub,
		lobby:       lobby.New(gameService, lobby.WithLogger(logger)),
		staticDir:   opts.StaticDir,
	}, nil
}

// newPersistence opens the session store selected by opts.Store. The memory
// store has no persistence and returns nil.
func newPersistence(opts options, configs service.ConfigManager) (session.SessionPersistence, error) {
	switch opts.Store {
	case StoreFile, "":
		store, err := session.NewFilePersistence(opts.SessionsDir, configs)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoreSQLite:
		store, err := session.NewSQLitePersistence(opts.DBPath, configs)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoreMemory:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown session store %q (want %s, %s or %s)", opts.Store, StoreFile, StoreSQLite, StoreMemory)
	}
}

// apiServer builds the REST and WebSocket handler.
func (s *services) apiServer() *api.Server {
	return api.NewServer(s.game, s.hub,
		api.WithLobby(s.lobby),
		api.WithLogger(s.logger),
		api.WithStaticDir(s.staticDir),
	)
}

// startBackground launches the maintenance routines. They stop with ctx.
func (s *services) startBackground(ctx context.Context) {
	go s.cleanupRoutine(ctx, cleanupInterval)
	if s.persistence != nil {
		go s.storeSyncRoutine(ctx, syncInterval)
	}
}

// close stops AI timers, flushes sessions and disconnects WebSocket clients.
func (s *services) close() {
	if err := s.game.Close(); err != nil {
		s.logger.Warn("game service close failed", zap.Error(err))
	}
	if err := s.sessions.SaveAllSessions(); err != nil {
		s.logger.Warn("failed to save sessions on shutdown", zap.Error(err))
	}
	s.hub.Stop()
	if closer, ok := s.persistence.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn("failed to close session store", zap.Error(err))
		}
	}
}

// cleanupRoutine periodically drops sessions and rooms that have been idle
// longer than their retention window.
func (s *services) cleanupRoutine(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupOnce()
		}
	}
}

func (s *services) cleanupOnce() (sessions, rooms int) {
	sessions = s.sessions.CleanupExpiredSessions(sessionMaxAge)
	rooms = s.lobby.CleanupIdle(roomMaxAge)
	if rooms > 0 {
		s.logger.Info("closed idle rooms", zap.Int("count", rooms))
	}
	return sessions, rooms
}

// storeSyncRoutine periodically drops in-memory sessions whose stored copy was
// removed behind the server's back.
func (s *services) storeSyncRoutine(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce()
		}
	}
}

func (s *services) syncOnce() int {
	pruned := 0
	for _, sess := range s.sessions.List() {
		if s.persistence.Exists(sess.ID) {
			continue
		}
		if err := s.sessions.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			s.logger.Info("pruned session removed from store", zap.String("session", sess.ID))
		}
	}
	return pruned
}

// mcpHandler serves single JSON-RPC messages against the MCP tool set.
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}

		response := client.GetMCPServer().HandleMessage(r.Context(), body)
		if response == nil {
			// Notifications have no reply
			w.WriteHeader(http.StatusAccepted)
			return
		}

		data, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

// newRouter mounts the API at / and the MCP endpoint at /mcp. MCP tools call
// back into the API at baseURL.
func newRouter(apiServer http.Handler, baseURL string) *http.ServeMux {
	router := http.NewServeMux()
	router.Handle("/", apiServer)
	router.HandleFunc("/mcp", mcpHandler(mcp.NewClient(baseURL)))
	return router
}

func runServerCommand(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)

	logger, err := logging.New(opts.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting", zap.String("app", AppName), zap.String("version", Version), zap.String("mode", "server"), zap.String("store", opts.Store))

	svc, err := initializeServices(opts, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.close()

	return runHTTPServer(ctx, opts, svc)
}

// runHTTPServer serves the API, WebSocket hub and /mcp until SIGINT or SIGTERM.
// With ngrok enabled the same router is also served through a public tunnel.
func runHTTPServer(ctx context.Context, opts options, svc *services) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.startBackground(ctx)

	addr := opts.addr()
	router := newRouter(svc.apiServer(), "http://"+addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger := svc.logger
	serveErr := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening",
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if opts.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, opts, router, logger)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-serveErr:
		logger.Error("HTTP server failed", zap.Error(runErr))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
	return runErr
}

// runNgrok serves handler through an ngrok tunnel until ctx is done.
func runNgrok(ctx context.Context, opts options, handler http.Handler, logger *zap.Logger) {
	if opts.NgrokAuth == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	tunnel := ngrokConfig.HTTPEndpoint()
	if opts.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.NgrokDomain))
		logger.Info("using custom ngrok domain", zap.String("domain", opts.NgrokDomain))
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.NgrokAuth))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	url := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", url),
		zap.String("api", url+"/api"),
		zap.String("mcp", url+"/mcp"),
	)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Warn("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

func runStdioCommand(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)

	// stdout carries the MCP protocol, so logs always go to stderr
	logger, err := logging.New(opts.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	if externalAPIAvailable(externalAPIURL) {
		logger.Info("external API server found, using it for MCP", zap.String("url", externalAPIURL))
		return serveStdio(externalAPIURL)
	}

	logger.Info("no external API server found, starting internal HTTP server")
	svc, err := initializeServices(opts, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	svc.startBackground(ctx)

	baseURL, shutdown, err := startInternalServer(svc.apiServer(), logger)
	if err != nil {
		return err
	}
	defer shutdown()

	return serveStdio(baseURL)
}

// externalAPIAvailable reports whether an API server answers at baseURL.
func externalAPIAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// startInternalServer serves handler on a random loopback port and returns
// its base URL.
func startInternalServer(handler http.Handler, logger *zap.Logger) (string, func(), error) {
	logger = logging.OrNop(logger)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}

	baseURL := "http://" + listener.Addr().String()
	httpServer := &http.Server{Handler: handler}

	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("internal HTTP server error", zap.Error(err))
		}
	}()

	logger.Info("internal HTTP server started", zap.String("url", baseURL))
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	}
	return baseURL, shutdown, nil
}

func serveStdio(baseURL string) error {
	client := mcp.NewClient(baseURL)
	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
