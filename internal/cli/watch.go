package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/twrkit/internal/daemon"
	"github.com/twrkit/internal/journal"
	"github.com/twrkit/internal/metrics"
	"github.com/twrkit/internal/tui"
)

var (
	watchInterval time.Duration
	watchJSON     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Collect replies to shared entries in the background",
	Long: `Refresh the comments of every shared journal entry periodically until
interrupted or stopped with 'twrkit watch stop'.

Examples:
  twrkit watch
  twrkit watch --interval 1m
  twrkit watch status
  twrkit watch refresh
  twrkit watch stop`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show watcher status",
	Args:  cobra.NoArgs,
	RunE:  runWatchStatus,
}

var watchRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Ask the watcher to refresh now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendWatchCommand("refresh")
	},
}

var watchStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the watcher",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendWatchCommand("stop")
	},
}

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 0, "Refresh interval (overrides config)")
	watchStatusCmd.Flags().BoolVar(&watchJSON, "json", false, "Output as JSON")

	watchCmd.AddCommand(watchStatusCmd, watchRefreshCmd, watchStopCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if daemon.IsRunning(daemon.GetRuntimeDir()) {
		fmt.Println(tui.WarningStyle.Render(tui.WarningSign + " twrkit watch is already running"))
		return nil
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireAccount(); err != nil {
		return err
	}

	db, err := a.openJournal()
	if err != nil {
		return err
	}

	watchCfg := a.cfg.Watch
	if watchInterval > 0 {
		watchCfg.Interval = watchInterval
	}

	refresher := journal.NewRefresher(a.client, db, journal.WithRefreshObserver(a.metrics))
	d, err := daemon.New(watchCfg, refresher, db.List)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	var server *metrics.Server
	if a.cfg.Metrics.Enabled {
		server = metrics.NewServer(a.cfg.Metrics, a.registry)
		server.SetReady(a.account.IsConfigured())
		go func() {
			if err := server.Start(); err != nil {
				log.Printf("[metrics] server error: %v", err)
			}
		}()
	}

	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	fmt.Printf("%s watching shared entries every %s\n", tui.MiniLogo(), watchCfg.Interval)
	if server != nil {
		fmt.Println(tui.DimStyle.Render("  metrics on " + a.cfg.Metrics.Address + a.cfg.Metrics.Path))
	}

	select {
	case <-ctx.Done():
		fmt.Println("\nShutting down...")
	case <-d.Done():
	}
	d.Stop()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Stop(shutdownCtx)
	}

	status := d.GetStatus()
	fmt.Println(tui.OK(fmt.Sprintf("stopped after %d refreshes, %d new comments", status.Refreshes, status.CommentsAdded)))
	return nil
}

func sendWatchCommand(name string) error {
	resp, err := daemon.SendCommand(daemon.GetRuntimeDir(), daemon.Command{Type: name})
	if err != nil {
		fmt.Println(tui.Fail("twrkit watch is not running"))
		return nil
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.Message)
	}
	fmt.Println(tui.OK(resp.Message))
	return nil
}

func runWatchStatus(cmd *cobra.Command, args []string) error {
	resp, err := daemon.SendCommand(daemon.GetRuntimeDir(), daemon.Command{Type: "status"})
	if err != nil || resp.Status == nil {
		fmt.Println()
		fmt.Println(tui.ErrorStyle.Render("  " + tui.CrossMark + " twrkit watch is not running"))
		fmt.Println()
		fmt.Println(tui.DimStyle.Render("  Start with: twrkit watch"))
		fmt.Println()
		return nil
	}

	if watchJSON {
		output, err := json.MarshalIndent(resp.Status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	printWatchStatus(*resp.Status)
	return nil
}

func printWatchStatus(status daemon.Status) {
	fmt.Println()

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		tui.MiniLogo(),
		"  ",
		tui.TitleStyle.Render(" WATCH "),
	)
	fmt.Println(header)
	fmt.Println()

	if status.Running {
		fmt.Printf("  %s %s\n", tui.SuccessStyle.Render(tui.BulletPoint), tui.SuccessStyle.Render("RUNNING"))
	} else {
		fmt.Printf("  %s %s\n", tui.ErrorStyle.Render(tui.CrossMark), tui.ErrorStyle.Render("STOPPED"))
	}
	fmt.Println()

	var content strings.Builder

	content.WriteString(tui.SubtitleStyle.Render("Refresh"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("  Interval:  %s\n", tui.ValueStyle.Render(status.Interval)))
	content.WriteString(fmt.Sprintf("  Entries:   %s\n", tui.ValueStyle.Render(fmt.Sprintf("%d", status.Entries))))
	content.WriteString(fmt.Sprintf("  Rounds:    %s\n", tui.ValueStyle.Render(fmt.Sprintf("%d", status.Refreshes))))
	if !status.LastRefresh.IsZero() {
		content.WriteString(fmt.Sprintf("  Last:      %s\n", tui.DimStyle.Render(status.LastRefresh.Format(time.RFC3339))))
	}
	content.WriteString("\n")

	content.WriteString(tui.SubtitleStyle.Render("Comments"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("  New:       %s\n", tui.ValueStyle.Render(fmt.Sprintf("%d", status.CommentsAdded))))
	content.WriteString(fmt.Sprintf("  Errors:    %s\n", tui.ErrorStyle.Render(fmt.Sprintf("%d", status.Errors))))
	if status.LastError != "" {
		content.WriteString(fmt.Sprintf("  %s\n", tui.DimStyle.Render(status.LastError)))
	}
	content.WriteString("\n")

	content.WriteString(tui.SubtitleStyle.Render("Uptime"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("  %s %s\n", tui.ValueStyle.Render(status.Uptime), tui.DimStyle.Render(fmt.Sprintf("(pid %d)", status.PID))))

	fmt.Println(tui.BorderStyle.Width(50).Render(content.String()))
}
