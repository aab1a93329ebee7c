// Package main provides the CLI entrypoint for knolstudy.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/conorfennell/knolstudy/internal/config"
	"github.com/conorfennell/knolstudy/internal/lifecycle"
	"github.com/conorfennell/knolstudy/internal/logger"
	"github.com/conorfennell/knolstudy/internal/stats"
	"github.com/conorfennell/knolstudy/internal/storage"
	"github.com/conorfennell/knolstudy/internal/study"
	"github.com/conorfennell/knolstudy/internal/sync"
	"github.com/conorfennell/knolstudy/internal/web"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string
	userFlag   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "knolstudy",
		Short:        "Spaced-repetition study server for markdown flashcards",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to a YAML config file")
	pf.String("db", "", "path to the SQLite database file")
	pf.String("log-mode", "", "log mode: dev or prod")
	pf.String("timezone", "", "IANA time zone in which study days begin")
	pf.String("repos-dir", "", "directory holding checkouts of git sources")
	pf.StringVar(&userFlag, "user", "local", "user the command acts for")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newSourceCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

// app holds everything a command needs once config is loaded.
type app struct {
	cfg *config.Config
	log *logger.Logger
	db  *storage.DB
	loc *time.Location
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	log.Debug("database opened", "path", cfg.Database.Path)
	return &app{cfg: cfg, log: log, db: db, loc: loc}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("failed to close db", "error", err)
	}
	a.log.Sync()
}

func (a *app) syncer() *sync.Syncer {
	return sync.New(a.db, sync.Options{
		ReposDir: a.cfg.Sync.ReposDir,
		Location: a.loc,
		Logger:   a.log,
	})
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().String("addr", "", "listen address, e.g. :8080")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Log.Mode == "prod" || a.cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	svc := study.New(a.db, study.Options{
		Location:             a.loc,
		Lifecycle:            lifecycle.Machine{Threshold: a.cfg.Study.GraduationThreshold},
		DefaultNewCardsLimit: a.cfg.Study.DefaultNewCardsLimit,
		MaxNewCardsLimit:     a.cfg.Study.MaxNewCardsLimit,
		StartRetries:         a.cfg.Study.StartRetries,
		Logger:               a.log,
	})
	handler := web.NewServer(web.Deps{
		Study:  svc,
		Stats:  stats.New(a.db, nil, a.loc, a.log),
		Sync:   a.syncer(),
		DB:     a.db,
		Logger: a.log,

		CORSOrigins: a.cfg.Server.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", srv.Addr, "timezone", a.cfg.Study.Timezone)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import cards from every registered source",
		Args:  cobra.NoArgs,
		RunE:  runSyncCmd,
	}
}

func runSyncCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.syncer().Run(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "%s: %v\n", r.Source.Path, r.Err)
			continue
		}
		fmt.Fprintf(out, "%s: %d cards, %d new, %d removed\n", r.Source.Path, r.Parsed, r.Inserted, r.Deleted)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(results))
	}
	return nil
}

func newSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage card sources",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <path-or-git-url>",
		Short: "Register a local directory or git repository",
		Args:  cobra.ExactArgs(1),
		RunE:  runSourceAddCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		RunE:  runSourceListCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a source together with its deck and cards",
		Args:  cobra.ExactArgs(1),
		RunE:  runSourceRemoveCmd,
	})
	return cmd
}

func runSourceAddCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := a.syncer().AddSource(cmd.Context(), userFlag, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "source %d (%s) -> deck %s\n", src.ID, src.Type, src.DeckID)
	return nil
}

func runSourceListCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sources, err := a.syncer().Sources(cmd.Context(), userFlag)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, s := range sources {
		scanned := "never"
		if s.LastScanned != nil {
			scanned = s.LastScanned.In(a.loc).Format(time.RFC3339)
		}
		fmt.Fprintf(out, "%d\t%s\t%s\tdeck=%s\tscanned=%s\n", s.ID, s.Type, s.Path, s.DeckID, scanned)
	}
	return nil
}

func runSourceRemoveCmd(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid source id %q: %w", args[0], err)
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.syncer().RemoveSource(cmd.Context(), userFlag, id)
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's study statistics",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := stats.New(a.db, nil, a.loc, a.log).Daily(cmd.Context(), userFlag)
	if err != nil {
		return err
	}
	last := st.LastStudyDate
	if last == "" {
		last = "never"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "to learn:        %d\n", st.CardsToLearn)
	fmt.Fprintf(out, "in progress:     %d\n", st.CardsInProgress)
	fmt.Fprintf(out, "learned:         %d (%d today)\n", st.CardsLearnedTotal, st.CardsLearnedToday)
	fmt.Fprintf(out, "due today:       %d\n", st.CardsDueToday)
	fmt.Fprintf(out, "days this month: %d\n", st.StudyDaysLastMonth)
	fmt.Fprintf(out, "streak:          %d\n", st.CurrentStreak)
	fmt.Fprintf(out, "last studied:    %s\n", last)
	if st.ActiveSession != nil {
		fmt.Fprintf(out, "active session:  %s (%d studied)\n", st.ActiveSession.ID, st.ActiveSession.CardsStudied)
	}
	return nil
}
