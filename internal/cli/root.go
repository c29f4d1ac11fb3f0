package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/twrkit/internal/tui"
)

var (
	version   = "dev"
	buildTime = "unknown"

	configPath string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "twrkit",
	Short: "Signed Twitter requests and journal sharing",
	Long: `twrkit talks to the Twitter REST API with OAuth 1.0a signed requests.
It authorizes an account with the PIN flow, posts and inspects statuses,
reads timelines and search results, and shares journal entries while
collecting the replies they receive as comments.

Get started:
  twrkit auth                Authorize an account
  twrkit status post TEXT    Post a status
  twrkit timeline mentions   Read mentions
  twrkit journal share UID   Share a journal entry
  twrkit watch               Collect replies in the background`,
	Version:           fmt.Sprintf("%s (built %s)", version, buildTime),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, tui.Fail(err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log transfers to stderr")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	log.SetFlags(log.LstdFlags)
	if verbose {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}
	return nil
}

// SetVersion sets the version info
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}
