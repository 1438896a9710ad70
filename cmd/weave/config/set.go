package configcmder

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .weave/ directory. Keys use dotted notation matching
the TOML section structure.

When the value of storage.postgres_dsn is omitted it is read from the
terminal without echo, so credentials stay out of shell history.

Examples:
  weave config set backend.target https://docs.example.com
  weave config set backend.restricted false
  weave config set storage.provider postgres
  weave config set storage.postgres_dsn`

const setShortDesc string = "Set a configuration value"

// secretKeys may be entered interactively.
var secretKeys = map[string]bool{
	"storage.postgres_dsn": true,
}

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && secretKeys[args[0]] {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			key := args[0]
			if len(args) == 1 {
				value, err := promptSecret(cmd.ErrOrStderr(), key)
				if err != nil {
					return err
				}
				args = append(args, value)
			}
			return runSet(cmd.OutOrStdout(), key, args[1], configDir)
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}

func promptSecret(w io.Writer, key string) (string, error) {
	if !cliui.IsTTY(os.Stdin) {
		return "", fmt.Errorf("a value for %s is required when stdin is not a terminal", key)
	}

	fmt.Fprintf(w, "  %s ", cliui.KeyStyle.Render(key+":"))
	value, err := cliui.ReadSecret(os.Stdin)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

func runSet(w io.Writer, key, value, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return unknownKey(key)
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	printTarget(w, cfger)

	err = cfger.SetConfigValue(key, value)
	if err != nil {
		return err
	}

	shown := value
	if secretKeys[key] {
		shown = "********"
	}
	fmt.Fprintf(w, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(shown),
	)
	return nil
}
