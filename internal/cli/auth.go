package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/twrkit/internal/tui"
)

var (
	authConsumerKey    string
	authConsumerSecret string
	authPlain          bool
	authForce          bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize a Twitter account",
	Long: `Run the OAuth 1.0a PIN flow and store the resulting access token.

The consumer key and secret of the application are read from flags, from
the settings store, or asked for interactively.

Examples:
  twrkit auth
  twrkit auth --consumer-key KEY --consumer-secret SECRET
  twrkit auth --plain        Read the PIN from stdin without the TUI`,
	RunE: runAuth,
}

func init() {
	authCmd.Flags().StringVar(&authConsumerKey, "consumer-key", "", "Application consumer key")
	authCmd.Flags().StringVar(&authConsumerSecret, "consumer-secret", "", "Application consumer secret")
	authCmd.Flags().BoolVar(&authPlain, "plain", false, "Plain stdin prompts")
	authCmd.Flags().BoolVarP(&authForce, "force", "f", false, "Authorize again even if already configured")
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.account.IsConfigured() && !authForce {
		fmt.Println(tui.OK("account already authorized (use --force to authorize again)"))
		return nil
	}

	stdin := bufio.NewReader(os.Stdin)
	secrets := a.creds.Secrets()
	key := firstNonEmpty(authConsumerKey, secrets.ConsumerKey)
	secret := firstNonEmpty(authConsumerSecret, secrets.ConsumerSecret)

	if key == "" {
		if key, err = readLine(stdin, "Consumer key: "); err != nil {
			return err
		}
	}
	if secret == "" {
		if secret, err = readSecret(stdin, "Consumer secret: "); err != nil {
			return err
		}
	}
	if key == "" || secret == "" {
		return fmt.Errorf("consumer key and secret are required")
	}

	a.creds.SetConsumer(key, secret)
	if err := a.account.SaveConsumer(key, secret); err != nil {
		return err
	}

	prompt := func(ctx context.Context, authURL string) (string, error) {
		if !authPlain && term.IsTerminal(int(os.Stdin.Fd())) {
			return tui.RunPINPrompt(authURL)
		}
		fmt.Println("Open this page and authorize the application:")
		fmt.Println(authURL)
		return readLine(stdin, "PIN: ")
	}

	if err := a.account.Configure(ctx, a.handshake(), a.creds, prompt); err != nil {
		fmt.Println(tui.Fail("authorization failed"))
		return err
	}

	fmt.Println(tui.OK("account authorized"))
	return nil
}

func readLine(r *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo when stdin is a terminal.
func readSecret(r *bufio.Reader, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(r, label)
	}
	fmt.Print(label)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
