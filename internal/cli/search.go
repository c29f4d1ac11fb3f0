package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twrkit/internal/tui"
	"github.com/twrkit/pkg/twitter"
)

var (
	searchCount   int
	searchSinceID string
	searchMaxID   string
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Search recent statuses",
	Long: `Search recent statuses.

Examples:
  twrkit search golang
  twrkit search "#sugarlabs" -n 50`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchCount, "count", "n", 0, "Number of statuses to fetch")
	searchCmd.Flags().StringVar(&searchSinceID, "since-id", "", "Only statuses newer than this id")
	searchCmd.Flags().StringVar(&searchMaxID, "max-id", "", "Only statuses older than or equal to this id")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireAccount(); err != nil {
		return err
	}

	opts := twitter.SearchOptions{Count: searchCount, SinceID: searchSinceID, MaxID: searchMaxID}
	query := strings.Join(args, " ")

	result, err := await(ctx, func(done func(*twitter.SearchResult, error)) error {
		return a.client.Search().Tweets(ctx, query, opts, done)
	})
	if err != nil {
		return err
	}

	if searchJSON {
		return printJSON(result)
	}
	fmt.Println(tui.Tweets(result.Statuses))
	fmt.Println(tui.DimStyle.Render(fmt.Sprintf("%d results for %q", len(result.Statuses), query)))
	return nil
}
