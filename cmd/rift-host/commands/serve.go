package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/riftlabs/rift-host/internal/config"
	"github.com/riftlabs/rift-host/internal/editor"
	"github.com/riftlabs/rift-host/internal/event"
	"github.com/riftlabs/rift-host/internal/logging"
	"github.com/riftlabs/rift-host/internal/rpc"
	"github.com/riftlabs/rift-host/internal/server"
	"github.com/riftlabs/rift-host/internal/session"
	"github.com/riftlabs/rift-host/internal/storage"
	"github.com/riftlabs/rift-host/internal/workspace"
)

var (
	servePort    int
	serveBackend string
	serveDir     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rift host",
	Long: `Start the host: connect to the Rift agent backend, serve the
webview over HTTP, and keep the workspace file lists fresh.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (default from config)")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "", "Backend address, host:port (default from config)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Workspace directory (default cwd)")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir := serveDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveBackend != "" {
		cfg.BackendAddr = serveBackend
	}
	if logLevel == "" {
		logCfg := logging.DefaultConfig()
		logCfg.Level = logging.ParseLevel(cfg.LogLevel)
		logCfg.Pretty = prettyLogs
		logging.Init(logCfg)
	}

	log := logging.ForComponent("serve")
	log.Info().Str("version", Version).Str("workspace", workDir).Msg("starting rift host")

	bus := event.NewBus()
	defer bus.Close()

	var transcripts *storage.Transcripts
	if cfg.PersistTranscripts == nil || *cfg.PersistTranscripts {
		transcripts = storage.New(paths.StoragePath())
	}

	ed := editor.NewHeadless(workDir)

	// The service is wired into the transport's lifecycle hooks, so it is
	// declared before the client and assigned right after.
	var svc *session.Service
	client := rpc.NewClient(rpc.Config{
		Addr: cfg.BackendAddr,
		OnUp: func() {
			bus.Publish(event.Event{Type: event.BackendUp, Data: event.BackendData{Addr: cfg.BackendAddr}})
			go onBackendUp(svc, cfg, log)
		},
		OnDown: func() {
			bus.Publish(event.Event{Type: event.BackendDown, Data: event.BackendData{Addr: cfg.BackendAddr}})
		},
	})
	defer client.Close()

	svc = session.NewService(client, ed, bus, transcripts)

	// Workspace file lists for omnibar autocomplete.
	files := workspace.NewFiles(workDir, cfg.IgnoreGlobs)
	if err := files.Refresh(); err != nil {
		log.Warn().Err(err).Msg("initial workspace scan failed")
	}
	svc.SendWorkspaceFilesChange(files.Workspace())

	watcher, err := workspace.NewWatcher(files, func() {
		svc.SendWorkspaceFilesChange(files.Workspace())
	})
	if err != nil {
		log.Warn().Err(err).Msg("workspace watcher unavailable")
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go connectLoop(ctx, client, log)

	srvCfg := server.DefaultConfig()
	srvCfg.Port = cfg.Port
	srvCfg.DefaultAgent = cfg.DefaultAgent
	srv := server.New(srvCfg, svc, bus)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// connectLoop establishes the initial backend connection, retrying until
// the backend is up. Once connected, drops are handled by the client's own
// reconnect loop.
func connectLoop(ctx context.Context, client *rpc.Client, log zerolog.Logger) {
	for {
		err := client.Connect(ctx)
		if err == nil || errors.Is(err, rpc.ErrClosed) {
			return
		}
		log.Warn().Err(err).Msg("backend not reachable, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// onBackendUp runs each time the backend connection comes up: the agent
// catalog is refreshed, and on first connect the default chat session is
// started so the webview has something to show.
func onBackendUp(svc *session.Service, cfg *config.Config, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := svc.RefreshAvailableAgents(ctx); err != nil {
		log.Warn().Err(err).Msg("agent catalog refresh failed")
	}

	autoStart := cfg.AutoStartChat == nil || *cfg.AutoStartChat
	if autoStart && len(svc.List()) == 0 {
		if _, err := svc.Create(ctx, cfg.DefaultAgent); err != nil {
			log.Warn().Err(err).Str("agent_type", cfg.DefaultAgent).Msg("auto-start session failed")
		}
	}
}
