package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twrkit/internal/account"
	"github.com/twrkit/internal/config"
	"github.com/twrkit/internal/tui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(out))

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println(tui.Divider(40))
	secrets := a.account.Secrets()
	for _, row := range []struct{ key, value string }{
		{account.ConsumerTokenKey, secrets.ConsumerKey},
		{account.ConsumerSecretKey, secrets.ConsumerSecret},
		{account.AccessTokenKey, secrets.AccessKey},
		{account.AccessSecretKey, secrets.AccessSecret},
	} {
		state := tui.ErrorStyle.Render("missing")
		if row.value != "" {
			state = tui.SuccessStyle.Render("set")
		}
		fmt.Printf("%s %s\n", tui.LabelStyle.Render(row.key), state)
	}
	return nil
}
