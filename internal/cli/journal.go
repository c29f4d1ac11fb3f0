package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/twrkit/internal/journal"
	"github.com/twrkit/internal/tui"
	"github.com/twrkit/pkg/transfer"
)

var (
	journalTitle       string
	journalDescription string
	journalPreview     string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Share journal entries and collect replies",
}

var journalAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a journal entry",
	Long: `Create a journal entry and print its uid.

Example:
  twrkit journal add --title "Turtle art" --description "My spiral" --preview spiral.png`,
	Args: cobra.NoArgs,
	RunE: runJournalAdd,
}

var journalShowCmd = &cobra.Command{
	Use:   "show UID",
	Short: "Show an entry and its comments",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entry uids",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalShareCmd = &cobra.Command{
	Use:   "share UID",
	Short: "Post an entry as a status",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShare,
}

var journalRefreshCmd = &cobra.Command{
	Use:   "refresh UID",
	Short: "Collect replies to a shared entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRefresh,
}

func init() {
	journalAddCmd.Flags().StringVarP(&journalTitle, "title", "t", "", "Entry title")
	journalAddCmd.Flags().StringVarP(&journalDescription, "description", "d", "", "Entry description")
	journalAddCmd.Flags().StringVarP(&journalPreview, "preview", "p", "", "Preview image file")
	journalAddCmd.MarkFlagRequired("title")

	journalCmd.AddCommand(journalAddCmd, journalShowCmd, journalListCmd, journalShareCmd, journalRefreshCmd)
	rootCmd.AddCommand(journalCmd)
}

func runJournalAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := a.openJournal()
	if err != nil {
		return err
	}

	entry := journal.NewEntry(uuid.NewString())
	entry.Set(journal.KeyTitle, journalTitle)
	entry.Set(journal.KeyDescription, journalDescription)
	if journalPreview != "" {
		data, err := os.ReadFile(journalPreview)
		if err != nil {
			return fmt.Errorf("failed to read preview: %w", err)
		}
		entry.Set(journal.KeyPreview, string(data))
	}

	if err := db.Write(entry); err != nil {
		return err
	}
	fmt.Println(entry.UID)
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := a.openJournal()
	if err != nil {
		return err
	}
	entry, err := db.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Print(tui.Entry(entry))

	var comments []journal.Comment
	if raw := entry.Get(journal.KeyComments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &comments); err != nil {
			return fmt.Errorf("failed to decode comments: %w", err)
		}
	}
	if len(comments) > 0 {
		fmt.Println(tui.SubtitleStyle.Render("Comments"))
		for _, c := range comments {
			fmt.Printf("  %s %s\n", tui.ValueStyle.Render(c.From), c.Message)
		}
	}
	return nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := a.openJournal()
	if err != nil {
		return err
	}
	uids, err := db.List()
	if err != nil {
		return err
	}
	for _, uid := range uids {
		fmt.Println(uid)
	}
	return nil
}

// progressNotifier prints journal events on stderr.
func progressNotifier() journal.Notifier {
	return journal.NotifierFunc(func(event string, payload any) {
		switch event {
		case journal.EventTransferProgress:
			if p, ok := payload.(transfer.Progress); ok {
				fmt.Fprintf(os.Stderr, "\r%s", tui.Progress(p))
			}
		case journal.EventTransferState:
			fmt.Fprintf(os.Stderr, "\r%s\n", tui.DimStyle.Render(fmt.Sprint(payload)))
		}
	})
}

func runJournalShare(cmd *cobra.Command, args []string) error {
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

	sharer := journal.NewSharer(a.client, db,
		journal.WithNotifier(progressNotifier()),
		journal.WithShareObserver(a.metrics),
	)
	id, err := await(ctx, func(done func(string, error)) error {
		return sharer.Share(ctx, args[0], done)
	})
	if err != nil {
		return err
	}

	fmt.Println(tui.OK("shared as status " + id))
	return nil
}

func runJournalRefresh(cmd *cobra.Command, args []string) error {
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

	refresher := journal.NewRefresher(a.client, db,
		journal.WithRefreshNotifier(progressNotifier()),
		journal.WithRefreshObserver(a.metrics),
	)
	added, err := await(ctx, func(done func(int, error)) error {
		return refresher.Refresh(ctx, args[0], done)
	})
	if err != nil {
		return err
	}

	fmt.Println(tui.OK(fmt.Sprintf("%d new comments", added)))
	return nil
}
