// Bookboard is the sync backend for a book-review app: it keeps a local
// SQLite cache mirrored against a remote MongoDB collection and serves both
// over an HTTP API.
//
// Usage:
//
//	bookboard serve [--config <path>]       # start API server + outbox drain loop
//	bookboard sync-once [--config <path>]   # pull remote state, drain outbox, exit
//	bookboard status [--config <path>]      # show config and cache state
//	bookboard version                       # print version
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
	"path/filepath"
	"syscall"
	"time"

	"github.com/bookboard-app/bookboard/internal/auth"
	"github.com/bookboard-app/bookboard/internal/config"
	"github.com/bookboard-app/bookboard/internal/images"
	"github.com/bookboard-app/bookboard/internal/remote"
	"github.com/bookboard-app/bookboard/internal/server"
	"github.com/bookboard-app/bookboard/internal/store"
	syncp "github.com/bookboard-app/bookboard/internal/sync"
	"github.com/bookboard-app/bookboard/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the appropriate subcommand.
func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "serve":
		return runApp(os.Args[2:], true)
	case "sync-once":
		return runApp(os.Args[2:], false)
	case "status":
		return runStatus(os.Args[2:])
	case "version":
		fmt.Println("bookboard", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q — run 'bookboard' for usage", cmd)
	}
}

func printUsage() error {
	fmt.Fprintln(os.Stderr, "Bookboard — book-review sync backend")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  bookboard serve [--config ...]       Run the API server and drain loop")
	fmt.Fprintln(os.Stderr, "  bookboard sync-once [--config ...]   Single resync + outbox drain, then exit")
	fmt.Fprintln(os.Stderr, "  bookboard status [--config ...]      Show config and cache state")
	fmt.Fprintln(os.Stderr, "  bookboard version                    Print version")
	fmt.Fprintln(os.Stderr, "")

	os.Exit(1)
	return nil // unreachable
}

// --- Subcommands -------------------------------------------------------------

// runApp handles both "serve" and "sync-once".
func runApp(args []string, serve bool) error {
	fs := flag.NewFlagSet("bookboard", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return start(*cfgPath, *verbose, serve)
}

// runStatus prints the current configuration and cache state.
func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("Bookboard Status")
	fmt.Println("────────────────")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Printf("  Config:    %s (invalid: %v)\n", *cfgPath, err)
		return nil
	}
	fmt.Printf("  Config:    %s ✓\n", *cfgPath)
	fmt.Printf("  Mongo:     %s / %s\n", cfg.MongoURI, cfg.MongoDatabase)
	fmt.Printf("  Listen:    %s\n", cfg.ListenAddr)
	fmt.Printf("  Drain:     %s\n", cfg.DrainInterval)

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath, _ = store.DefaultPath()
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		fmt.Println("  Cache DB:  not found")
		return nil
	}
	fmt.Printf("  Cache DB:  %s (%s)\n", dbPath, humanSize(info.Size()))

	db, err := store.Open(dbPath)
	if err != nil {
		fmt.Printf("  Cache DB:  unreadable (%v)\n", err)
		return nil
	}
	defer db.Close()

	ctx := context.Background()
	if posts, err := db.Posts.GetAll(ctx); err == nil {
		fmt.Printf("  Posts:     %d cached\n", len(posts))
	}
	if depth, err := db.Outbox.Depth(ctx); err == nil {
		fmt.Printf("  Outbox:    %d pending\n", depth)
	}
	return nil
}

// --- App core (shared by serve and sync-once) --------------------------------

func start(cfgPath string, verbose, serve bool) error {
	// --- Logger --------------------------------------------------------------

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// --- Config --------------------------------------------------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Info("config loaded",
		"mongo_database", cfg.MongoDatabase,
		"listen_addr", cfg.ListenAddr,
		"drain_interval", cfg.DrainInterval,
	)

	// --- Telemetry (optional) ------------------------------------------------

	if cfg.Telemetry != nil {
		shutdownTel, err := telemetry.Setup(context.Background(), telemetry.Config{
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.Insecure,
			ServiceName:  cfg.Telemetry.ServiceName,
			Headers:      cfg.Telemetry.Headers,
		})
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	// --- Local cache ---------------------------------------------------------

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath, err = store.DefaultPath()
		if err != nil {
			return fmt.Errorf("resolving cache DB path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening cache DB at %q: %w", dbPath, err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("closing cache DB", "error", closeErr)
		}
	}()
	logger.Info("cache DB opened", "path", dbPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// --- Remote store --------------------------------------------------------

	client, err := remote.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return fmt.Errorf("connecting to remote store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if closeErr := client.Close(closeCtx); closeErr != nil {
			logger.Error("closing remote store", "error", closeErr)
		}
	}()
	logger.Info("remote store reachable")

	// --- Services ------------------------------------------------------------

	posts := syncp.NewPostService(db.Posts, client.Posts, db.Outbox, logger)
	profiles := syncp.NewProfileService(db.Profiles, client.Profiles, db.Outbox, logger)
	engine := syncp.NewEngine(db.Outbox, client.Posts, client.Profiles, cfg.DrainInterval, logger)

	// --- Dispatch mode -------------------------------------------------------

	if !serve {
		logger.Info("running single sync pass")
		if _, err := posts.LoadAll(ctx); err != nil {
			return fmt.Errorf("resyncing posts: %w", err)
		}
		if _, err := profiles.LoadAll(ctx); err != nil {
			return fmt.Errorf("resyncing profiles: %w", err)
		}
		stats, err := engine.DrainOnce(ctx)
		logger.Info("sync complete", "mirrored", stats.Mirrored, "failed", stats.Failed)
		return err
	}

	// --- Image store ---------------------------------------------------------

	imgStore, err := buildImageStore(ctx, cfg)
	if err != nil {
		return err
	}

	// --- Auth + HTTP server --------------------------------------------------

	authSvc := auth.NewService(client.Credentials, profiles, []byte(cfg.JWTSecret), cfg.TokenTTL, logger)
	srv := server.New(authSvc, posts, profiles, imgStore, logger)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sync engine stopped", "error", err)
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// buildImageStore picks the image backend from config. Defaults to a local
// directory next to the cache DB.
func buildImageStore(ctx context.Context, cfg *config.Config) (images.Store, error) {
	if cfg.Images != nil && cfg.Images.S3 != nil {
		s3Store, err := images.NewS3Store(ctx, *cfg.Images.S3)
		if err != nil {
			return nil, fmt.Errorf("initialising S3 image store: %w", err)
		}
		return s3Store, nil
	}

	dir := ""
	if cfg.Images != nil {
		dir = cfg.Images.Dir
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, ".local", "share", "bookboard", "images")
	}
	fsStore, err := images.NewFSStore(dir)
	if err != nil {
		return nil, fmt.Errorf("initialising image directory: %w", err)
	}
	return fsStore, nil
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
