// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/streambox/internal/api/rest"
	"github.com/osa030/streambox/internal/app/filter"
	"github.com/osa030/streambox/internal/app/radio"
	"github.com/osa030/streambox/internal/app/session"
	"github.com/osa030/streambox/internal/infra/api"
	"github.com/osa030/streambox/internal/infra/config"
	"github.com/osa030/streambox/internal/infra/logger"
	"github.com/osa030/streambox/internal/infra/media"
	"github.com/osa030/streambox/internal/infra/store"
)

var (
	app        = kingpin.New("streambox-server", "streambox music player daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: logger.OutputStdout,
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = logger.OutputFile
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Run server (defer ensures cleanup runs before exit)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		closer.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	catalog, err := api.New(api.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.APITimeout(),
		RatePerSec: cfg.API.RatePerSec,
		Burst:      cfg.API.Burst,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create catalog client")
	}

	backend, err := store.New(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return errors.Wrap(err, "failed to open storage")
	}
	defer backend.Close()

	element, err := media.New(media.Config{Driver: cfg.Media.Driver, Probe: cfg.Media.Probe})
	if err != nil {
		return errors.Wrap(err, "failed to create media element")
	}
	defer element.Close()

	var chain *radio.ProviderChain
	if cfg.Radio.Enabled {
		chain, err = radio.NewProviderChainFromConfig(ctx, cfg, radio.Clients{Catalog: catalog})
		if err != nil {
			return errors.Wrap(err, "failed to create radio providers")
		}
		if err := validateProviders(ctx, chain); err != nil {
			return errors.Wrap(err, "radio provider validation failed")
		}
	} else {
		zlog.Info().Msg("Radio disabled, playback stops when the queue ends")
	}

	sessionMgr, err := session.NewManager(cfg, session.Deps{
		API:   catalog,
		Store: backend,
		Media: element,
		Radio: chain,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}
	if err := sessionMgr.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start session")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(rest.NewServer(sessionMgr, cfg).Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s catalog=%s", cfg.Server.Addr, catalog.BaseURL())
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-sessionMgr.Done():
		zlog.Info().Msg("Session ended, shutting down...")
	case err := <-serverErrCh:
		sessionMgr.Close()
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the session first so event streams end and Shutdown does not wait on them
	sessionMgr.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.Names() {
		f := registry[name](filter.Deps{})
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// validateProviders checks the radio providers' upstreams with retry so a
// slow network at boot does not abort startup.
func validateProviders(ctx context.Context, chain *radio.ProviderChain) error {
	maxRetries := 5
	baseDelay := 1 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			delay := baseDelay * time.Duration(1<<uint(i-1))
			zlog.Info().Msgf("Retrying radio provider validation in %v...", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := radio.ValidateProviders(ctx, chain); err != nil {
			lastErr = err
			zlog.Warn().Msgf("Failed to validate radio providers (attempt %d/%d): %v", i+1, maxRetries, err)
			continue
		}

		zlog.Info().Msgf("Radio providers validated successfully (%d)", len(chain.Providers()))
		return nil
	}
	return errors.Wrapf(lastErr, "failed after %d attempts", maxRetries)
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
