package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cloud-shuttle/muster/internal/db"
	"github.com/cloud-shuttle/muster/internal/directory"
	"github.com/cloud-shuttle/muster/internal/gateway"
	"github.com/cloud-shuttle/muster/internal/notify"
	"github.com/cloud-shuttle/muster/internal/reconcile"
	"github.com/cloud-shuttle/muster/internal/scheduler"
	"github.com/cloud-shuttle/muster/internal/search"
	"github.com/cloud-shuttle/muster/internal/shame"
	"github.com/cloud-shuttle/muster/internal/sheets"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Muster in the current project",
		Long: `Initialize Muster in the current project.

Creates a .muster directory with a SQLite database that mirrors the
tracked sheets' tasks and holds the sync queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}

			musterDir := filepath.Join(dir, ".muster")
			if _, err := os.Stat(musterDir); err == nil {
				return fmt.Errorf("already initialized in %s", musterDir)
			}

			if err := os.MkdirAll(musterDir, 0755); err != nil {
				return fmt.Errorf("creating .muster directory: %w", err)
			}

			store, err := db.Open(filepath.Join(musterDir, "muster.db"))
			if err != nil {
				return fmt.Errorf("creating database: %w", err)
			}
			defer store.Close()

			if err := store.InitSchema(); err != nil {
				return fmt.Errorf("initializing schema: %w", err)
			}

			fmt.Printf("✅ Initialized muster in %s\n", musterDir)
			fmt.Println("\nNext steps:")
			fmt.Println("  1. muster sheet add <spreadsheet-id>   # register a sheet")
			fmt.Println("  2. muster sync                         # first reconciliation")
			fmt.Println("  3. muster serve                        # run on a schedule")
			return nil
		},
	}
}

func sheetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Manage the registered spreadsheets",
	}

	var title string
	addCmd := &cobra.Command{
		Use:   "add <spreadsheet-id>",
		Short: "Register a spreadsheet for reconciliation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := requireProject()
			if err != nil {
				return err
			}
			defer store.Close()

			sh, err := store.RegisterSheet(args[0], title)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Registered sheet %s\n", sh.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&title, "title", "", "display title for the sheet")

	removeCmd := &cobra.Command{
		Use:   "remove <spreadsheet-id>",
		Short: "Unregister a spreadsheet and drop its mirrored tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := requireProject()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.UnregisterSheet(args[0]); err != nil {
				return err
			}
			fmt.Printf("🗑  Unregistered sheet %s\n", args[0])
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered spreadsheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := requireProject()
			if err != nil {
				return err
			}
			defer store.Close()

			all, err := store.ListSheets()
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println("No sheets registered. Use 'muster sheet add <id>'.")
				return nil
			}
			for _, sh := range all {
				title := sh.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Printf("%-44s  %-24s  registered %s\n", sh.ID, title, sh.RegisteredAt.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.AddCommand(addCmd, removeCmd, listCmd)
	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [spreadsheet-id]",
		Short: "Reconcile one sheet, or all registered sheets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := requireProject()
			if err != nil {
				return err
			}
			defer store.Close()

			driver, err := buildDriver(cmd.Context(), store)
			if err != nil {
				return err
			}

			sheetID := ""
			if len(args) == 1 {
				sheetID = args[0]
			}

			summary := driver.RunSync(cmd.Context(), sheetID)
			printSummary(summary)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the overdue-task escalation sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := requireProject()
			if err != nil {
				return err
			}
			defer store.Close()

			driver, err := buildDriver(cmd.Context(), store)
			if err != nil {
				return err
			}

			summary := driver.RunSweep(cmd.Context())
			fmt.Printf("Escalated %d task(s), %d failure(s)\n", summary.Processed, summary.Failed)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := requireProject()
			if err != nil {
				return err
			}
			defer store.Close()

			driver, err := buildDriver(cmd.Context(), store)
			if err != nil {
				return err
			}

			driver.Start()
			defer driver.Stop()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-sheet task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := requireProject()
			if err != nil {
				return err
			}
			defer store.Close()

			all, err := store.ListSheets()
			if err != nil {
				return err
			}

			now := time.Now()
			for _, sh := range all {
				status, err := store.GetSheetStatus(sh.ID, now)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %d task(s) | Open: %d | Completed: %d | Blocked: %d | Overdue: %d\n",
					sh.ID, status.Total, status.Open, status.Completed, status.Blocked, status.Overdue)
			}

			pending, err := store.QueueLen()
			if err != nil {
				return err
			}
			fmt.Printf("Sync queue: %d sheet(s) pending\n", pending)
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over the mirrored tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := requireProject()
			if err != nil {
				return err
			}
			defer store.Close()

			searcher := search.New(store)
			if err := searcher.InitSchema(); err != nil {
				return err
			}
			if _, err := searcher.Reindex(); err != nil {
				return err
			}

			results, err := searcher.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No matching tasks.")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%-40s  %-10s  %-12s  %s\n", r.Key, r.Status, r.Owner, r.Snippet)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}

func actionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "action <callback-payload> <actor-id>",
		Short: "Process an inbound shame-button tap",
		Long: `Process an inbound shame-button tap.

The chat platform echoes the button's callback payload back to the bot;
this command resolves it against the task mirror and delivers the shame
message when the tap is still valid.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := shame.ParseActionCallback(args[0])
			if err != nil {
				return err
			}

			_, store, err := requireProject()
			if err != nil {
				return err
			}
			defer store.Close()

			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			gw := gateway.NewBotClient(cfg.BotBaseURL, cfg.BotToken, nil)
			svc := shame.New(store, gw, cfg.OverdueThreshold, cfg.ShameBatchSize, cfg.ShameBatchDelay, loc)

			outcome, err := svc.HandleAction(cmd.Context(), key, args[1])
			if err != nil {
				return err
			}
			fmt.Println(outcome)
			return nil
		},
	}
}

// buildDriver wires the collaborators the way serve and the manual
// triggers need them: Google adapters for source and identity, the bot
// gateway for delivery, and the scheduler on top.
func buildDriver(ctx context.Context, store *db.Store) (*scheduler.Driver, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	reader, err := sheets.NewGoogleReader(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("creating sheets reader: %w", err)
	}

	dir, err := directory.NewGoogleDirectory(ctx, cfg.CredentialsFile, cfg.TokenFile, cfg.DirectoryDomain)
	if err != nil {
		return nil, fmt.Errorf("creating directory client: %w", err)
	}
	cache := directory.NewCache(dir, cfg.DirectoryTTL)

	gw := gateway.NewBotClient(cfg.BotBaseURL, cfg.BotToken, nil)

	escalator := shame.New(store, gw, cfg.OverdueThreshold, cfg.ShameBatchSize, cfg.ShameBatchDelay, loc)
	dispatcher := notify.NewDispatcher(gw, escalator, cfg.ReminderInterval, cfg.ReportInterval, cfg.OverdueThreshold)
	reconciler := reconcile.New(reader, cache, store, dispatcher, cfg.StartSkew, loc)

	return scheduler.New(store, reconciler, escalator, loc, scheduler.Config{
		SyncSchedule:  cfg.SyncSchedule,
		SweepSchedule: cfg.SweepSchedule,
		WorkdayStart:  cfg.WorkdayStart,
		WorkdayEnd:    cfg.WorkdayEnd,
		SheetsPerTick: cfg.SheetsPerTick,
	})
}

func printSummary(s scheduler.Summary) {
	fmt.Printf("Processed %d sheet(s) | Sent: %d | Reported: %d | Failed: %d\n",
		s.Processed, s.Sent, s.Reported, s.Failed)
}
