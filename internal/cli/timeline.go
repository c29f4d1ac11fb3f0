package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/twrkit/pkg/twitter"
)

var (
	timelineCount          int
	timelineSinceID        string
	timelineMaxID          string
	timelineExcludeReplies bool
	timelineJSON           bool
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Read timelines",
}

var timelineMentionsCmd = &cobra.Command{
	Use:   "mentions",
	Short: "Statuses mentioning the account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimeline(cmd, (*twitter.Timeline).Mentions)
	},
}

var timelineHomeCmd = &cobra.Command{
	Use:   "home",
	Short: "The account's home timeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimeline(cmd, (*twitter.Timeline).Home)
	},
}

func init() {
	flags := timelineCmd.PersistentFlags()
	flags.IntVarP(&timelineCount, "count", "n", 0, "Number of statuses to fetch")
	flags.StringVar(&timelineSinceID, "since-id", "", "Only statuses newer than this id")
	flags.StringVar(&timelineMaxID, "max-id", "", "Only statuses older than or equal to this id")
	flags.BoolVar(&timelineJSON, "json", false, "Output as JSON")
	timelineHomeCmd.Flags().BoolVar(&timelineExcludeReplies, "exclude-replies", false, "Leave out replies")

	timelineCmd.AddCommand(timelineMentionsCmd, timelineHomeCmd)
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(cmd *cobra.Command, fetch func(*twitter.Timeline, context.Context, twitter.TimelineOptions, func([]twitter.Tweet, error)) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireAccount(); err != nil {
		return err
	}

	opts := twitter.TimelineOptions{
		Count:   timelineCount,
		SinceID: timelineSinceID,
		MaxID:   timelineMaxID,
	}
	if cmd.Flags().Changed("exclude-replies") {
		opts.ExcludeReplies = &timelineExcludeReplies
	}

	tweets, err := await(ctx, func(done func([]twitter.Tweet, error)) error {
		return fetch(a.client.Timeline(), ctx, opts, done)
	})
	if err != nil {
		return err
	}
	return printTweets(tweets, timelineJSON)
}
