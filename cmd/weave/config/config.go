// Package configcmder provides the config command for managing persistent
// weave configuration stored in the .weave/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent weave configuration.

Configuration is stored as config.toml in the .weave/ directory and provides
default values for command flags. CLI flags and WEAVE_* environment variables
always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  backend.target, backend.restricted, backend.timeout,
  chat.index, ui.theme, ui.markdown,
  storage.provider, storage.sqlite_path, storage.postgres_dsn,
  api.listen,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  weave config set <key> <value>    Set a configuration value
  weave config get <key>            Get a configuration value
  weave config list                 List all configuration values

Examples:
  weave config set backend.target https://docs.example.com
  weave config set ui.theme dark
  weave config get chat.index
  weave config list`

const configShortDesc string = "Manage persistent weave configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
