package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanogt/hanogt-bot/internal/db"
	"github.com/hanogt/hanogt-bot/internal/output"
	"github.com/hanogt/hanogt-bot/internal/watch"
)

var (
	flagEventsEmail        string
	flagEventsType         string
	flagEventsSince        string
	flagEventsLimit        int
	flagEventsFollow       bool
	flagEventsPollInterval time.Duration
	flagPruneDays          int
)

func init() {
	eventsListCmd.Flags().StringVarP(&flagEventsEmail, "email", "e", "", "filter by identity")
	eventsListCmd.Flags().StringVarP(&flagEventsType, "type", "t", "", "filter by event type: warning, block, ban")
	eventsListCmd.Flags().StringVar(&flagEventsSince, "since", "", "only events at or after this RFC3339 time")
	eventsListCmd.Flags().IntVarP(&flagEventsLimit, "limit", "n", 50, "maximum number of events (0 = no limit)")
	eventsListCmd.Flags().BoolVarP(&flagEventsFollow, "follow", "f", false, "stream new events as NDJSON")
	eventsListCmd.Flags().DurationVar(&flagEventsPollInterval, "poll-interval", 2*time.Second, "polling interval when the file watcher cannot start")

	pruneCmd.Flags().IntVar(&flagPruneDays, "days", 0, "delete events older than this many days (default: audit.retention_days)")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsShowCmd)
	eventsCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(eventsCmd)
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the security event trail",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List security events",
	Long: `List security events, newest first.

Filters: --email, --type (warning, block, ban), --since (RFC3339), --limit.

With --follow the command keeps running and streams newly appended events
as newline-delimited JSON. Changes are detected by watching the database
file; when the watcher cannot start the command falls back to polling.`,
	RunE: runEventsList,
}

var eventsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one security event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		ev, err := database.GetEvent(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if GetOutput() == "text" {
			renderEvent(ev)
			return nil
		}
		return output.New(output.Format(GetOutput())).Write(ev)
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old security events",
	Long: `Delete security events older than the retention window.

The window comes from --days, falling back to audit.retention_days.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		days := flagPruneDays
		if days <= 0 {
			days = cfg.Audit.RetentionDays
		}
		if days <= 0 {
			return fmt.Errorf("retention window is required (--days or audit.retention_days)")
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		deleted, err := database.PruneEvents(cmd.Context(), cutoff)
		if err != nil {
			return fmt.Errorf("pruning events: %w", err)
		}

		out := output.New(output.Format(GetOutput()))
		if GetOutput() == "text" {
			out.Success(fmt.Sprintf("deleted %d events older than %d days", deleted, days))
			return nil
		}
		return out.Write(map[string]any{
			"status":  "pruned",
			"deleted": deleted,
			"days":    days,
		})
	},
}

func runEventsList(cmd *cobra.Command, args []string) error {
	filter, err := eventFilterFromFlags()
	if err != nil {
		return err
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	events, err := database.ListEvents(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	if !flagEventsFollow {
		if GetOutput() == "text" {
			renderEvents(events)
			return nil
		}
		out := output.New(output.Format(GetOutput()))
		return out.Write(events)
	}

	return followEvents(cmd, database, filter, events)
}

func eventFilterFromFlags() (db.EventFilter, error) {
	filter := db.EventFilter{
		Email:     flagEventsEmail,
		EventType: flagEventsType,
		Limit:     flagEventsLimit,
	}
	if flagEventsSince != "" {
		since, err := time.Parse(time.RFC3339, flagEventsSince)
		if err != nil {
			return db.EventFilter{}, fmt.Errorf("parsing --since: %w", err)
		}
		filter.Since = since
	}
	return filter, nil
}

// followEvents streams newly appended events as NDJSON until interrupted.
func followEvents(cmd *cobra.Command, database *db.DB, filter db.EventFilter, initial []*db.SecurityEvent) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	// The stream is NDJSON regardless of the configured format.
	out := output.New(output.FormatJSON, output.WithOutput(cmd.OutOrStdout()))
	seen := make(map[string]bool, len(initial))
	for _, ev := range initial {
		seen[ev.ID] = true
		if err := out.WriteNDJSON(ev); err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}
	}

	// Following streams everything new; the initial limit only bounds the
	// backlog shown at startup.
	filter.Limit = 0

	watcher, err := watch.NewWatcher(cfg.DatabasePath(),
		watch.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond))
	if err != nil {
		loggerFor("events").Warn("file watcher unavailable, falling back to polling", "error", err)
		return followByPolling(ctx, database, filter, out, seen)
	}
	defer watcher.Stop()

	if err := watcher.Start(ctx); err != nil {
		return followByPolling(ctx, database, filter, out, seen)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if err := emitNewEvents(ctx, database, filter, out, seen); err != nil {
				return err
			}
		case werr, ok := <-watcher.Errors():
			if !ok {
				return nil
			}
			loggerFor("events").Warn("watcher error", "error", werr)
		}
	}
}

func followByPolling(ctx context.Context, database *db.DB, filter db.EventFilter, out *output.Writer, seen map[string]bool) error {
	ticker := time.NewTicker(flagEventsPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := emitNewEvents(ctx, database, filter, out, seen); err != nil {
				return err
			}
		}
	}
}

func emitNewEvents(ctx context.Context, database *db.DB, filter db.EventFilter, out *output.Writer, seen map[string]bool) error {
	events, err := database.ListEvents(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}
	// ListEvents returns newest first; emit unseen ones oldest first.
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if seen[ev.ID] {
			continue
		}
		seen[ev.ID] = true
		if err := out.WriteNDJSON(ev); err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}
	}
	return nil
}

func renderEvent(ev *db.SecurityEvent) {
	lines := []string{
		fmt.Sprintf("id:        %s", ev.ID),
		fmt.Sprintf("time:      %s", ev.CreatedAt.Format(time.RFC3339)),
		fmt.Sprintf("type:      %s", ev.EventType),
		fmt.Sprintf("email:     %s", ev.Email),
		fmt.Sprintf("severity:  %s", ev.Severity),
		fmt.Sprintf("issued_by: %s", ev.IssuedBy),
	}
	if len(ev.Threats) > 0 {
		lines = append(lines, fmt.Sprintf("threats:   %v", ev.Threats))
	}
	if len(ev.MatchedSnippets) > 0 {
		lines = append(lines, fmt.Sprintf("matched:   %v", ev.MatchedSnippets))
	}
	if ev.CodeSnippet != "" {
		lines = append(lines, fmt.Sprintf("snippet:   %s", ev.CodeSnippet))
	}
	output.OutputList(lines)
}

func renderEvents(events []*db.SecurityEvent) {
	if len(events) == 0 {
		fmt.Fprintln(os.Stderr, "no events")
		return
	}
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		threats := ""
		if len(ev.Threats) > 0 {
			threats = fmt.Sprintf("%v", ev.Threats)
		}
		rows = append(rows, []string{
			ev.CreatedAt.Format(time.RFC3339),
			ev.EventType,
			ev.Email,
			ev.Severity,
			threats,
		})
	}
	output.OutputTable([]string{"time", "type", "email", "severity", "threats"}, rows)
}
