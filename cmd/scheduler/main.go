package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kash6/SchedulingAgent/gateway"
	"github.com/Kash6/SchedulingAgent/internal/profile"
	"github.com/Kash6/SchedulingAgent/plugin/agent"
	"github.com/Kash6/SchedulingAgent/plugin/lexicon"
	"github.com/Kash6/SchedulingAgent/plugin/memory"
	"github.com/Kash6/SchedulingAgent/plugin/oracle"
	"github.com/Kash6/SchedulingAgent/server"
	"github.com/Kash6/SchedulingAgent/store"
)

// version is set by the build.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Natural-language meeting scheduling agent",
	Long: `scheduler understands queries like "schedule a meeting with akash
tomorrow at 3pm" and executes them against Google Calendar, keeping a
short per-session conversation memory for follow-ups like "cancel the
meeting we just created".`,
	SilenceUsage: true,
}

var janitorInterval = 5 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			prof := &profile.Profile{Version: version}
			prof.FromEnv()
			if err := prof.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, prof)
		},
	}
}

func serve(ctx context.Context, prof *profile.Profile) error {
	loc, err := prof.Location()
	if err != nil {
		return err
	}
	lex := lexicon.New(lexicon.WithLocation(loc))

	var historyStore memory.Store
	if prof.HistoryDriver == "sqlite" {
		sqliteStore, err := store.NewSQLiteStore(prof.DSN)
		if err != nil {
			return err
		}
		defer sqliteStore.Close()
		historyStore = sqliteStore
		slog.Info("session history on sqlite", "dsn", prof.DSN)
	}
	mem := memory.New(historyStore)
	mem.StartJanitor(ctx, janitorInterval)

	gw, err := newGateway(ctx, prof)
	if err != nil {
		return err
	}

	opts := []agent.Option{agent.WithUsers(prof.Users)}
	if prof.IsOracleEnabled() {
		provider, err := oracle.NewProvider(&oracle.Config{
			BaseURL: prof.AIBaseURL,
			APIKey:  prof.AIAPIKey,
			Model:   prof.AIModel,
		})
		if err != nil {
			return err
		}
		opts = append(opts, agent.WithOracle(provider))
		slog.Info("disambiguation oracle enabled", "model", prof.AIModel)
	}
	engine := agent.New(lex, mem, gw, opts...)

	return server.New(engine, prof).Start(ctx)
}

// newGateway connects to Google Calendar; in dev and demo modes a missing
// credentials file falls back to the in-memory gateway so the server can
// run without calendar access.
func newGateway(ctx context.Context, prof *profile.Profile) (gateway.CalendarGateway, error) {
	if _, err := os.Stat(prof.CredentialsFile); err != nil {
		if prof.IsDev() {
			slog.Warn("credentials file not found, using in-memory calendar",
				"credentials_file", prof.CredentialsFile)
			return gateway.NewFakeGateway(), nil
		}
		return nil, fmt.Errorf("credentials file %s: %w", prof.CredentialsFile, err)
	}
	return gateway.NewGoogleGateway(ctx, prof.CredentialsFile, prof.TokenDir, prof.Users)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("scheduler version %s\n", version)
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Serve is the default when no subcommand is given.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
