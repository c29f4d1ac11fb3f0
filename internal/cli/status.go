package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twrkit/internal/tui"
	"github.com/twrkit/pkg/transfer"
	"github.com/twrkit/pkg/twitter"
)

var (
	statusJSON    bool
	statusMedia   string
	statusReplyTo string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Post and inspect statuses",
}

var statusPostCmd = &cobra.Command{
	Use:   "post TEXT",
	Short: "Post a new status",
	Long: `Post a new status, optionally with an image attached.

Examples:
  twrkit status post "hello"
  twrkit status post "look" --media photo.png
  twrkit status post "@you yes" --reply-to 1234`,
	Args: cobra.ExactArgs(1),
	RunE: runStatusPost,
}

var statusShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatusOp(cmd, args[0], (*twitter.Status).Show)
	},
}

var statusDestroyCmd = &cobra.Command{
	Use:   "destroy ID",
	Short: "Delete a status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatusOp(cmd, args[0], (*twitter.Status).Destroy)
	},
}

var statusRetweetCmd = &cobra.Command{
	Use:   "retweet ID",
	Short: "Retweet a status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatusOp(cmd, args[0], (*twitter.Status).Retweet)
	},
}

var statusRetweetsCmd = &cobra.Command{
	Use:   "retweets ID",
	Short: "List retweets of a status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatusRetweets,
}

func init() {
	statusCmd.PersistentFlags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	statusPostCmd.Flags().StringVarP(&statusMedia, "media", "m", "", "Image file to attach")
	statusPostCmd.Flags().StringVar(&statusReplyTo, "reply-to", "", "Status id this replies to")

	statusCmd.AddCommand(statusPostCmd, statusShowCmd, statusDestroyCmd, statusRetweetCmd, statusRetweetsCmd)
	rootCmd.AddCommand(statusCmd)
}

func runStatusPost(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireAccount(); err != nil {
		return err
	}

	opts := twitter.UpdateOptions{
		InReplyToStatusID: statusReplyTo,
		OnProgress: func(p transfer.Progress) {
			if p.Mode == transfer.ModeUpload && !statusJSON {
				fmt.Fprintf(os.Stderr, "\r%s", tui.Progress(p))
			}
		},
	}

	status := a.client.NewStatus()
	tweet, err := await(ctx, func(done func(*twitter.Tweet, error)) error {
		if statusMedia != "" {
			return status.UpdateWithMedia(ctx, args[0], statusMedia, opts, done)
		}
		return status.Update(ctx, args[0], opts, done)
	})
	if statusMedia != "" && !statusJSON {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}
	return printTweet(tweet)
}

func runStatusOp(cmd *cobra.Command, id string, op func(*twitter.Status, context.Context, func(*twitter.Tweet, error)) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireAccount(); err != nil {
		return err
	}

	status := a.client.Status(id)
	tweet, err := await(ctx, func(done func(*twitter.Tweet, error)) error {
		return op(status, ctx, done)
	})
	if err != nil {
		return err
	}
	return printTweet(tweet)
}

func runStatusRetweets(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireAccount(); err != nil {
		return err
	}

	tweets, err := await(ctx, func(done func([]twitter.Tweet, error)) error {
		return a.client.Status(args[0]).Retweets(ctx, done)
	})
	if err != nil {
		return err
	}
	return printTweets(tweets, statusJSON)
}

func printTweet(t *twitter.Tweet) error {
	if statusJSON {
		return printJSON(t)
	}
	fmt.Println(tui.Tweet(*t))
	return nil
}

func printTweets(ts []twitter.Tweet, asJSON bool) error {
	if asJSON {
		return printJSON(ts)
	}
	fmt.Println(tui.Tweets(ts))
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
