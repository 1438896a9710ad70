// Package historycmder provides the history command over the store of
// finished sessions.
package historycmder

import (
	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/storage"
)

const historyLongDesc string = `List, show and remove past sessions.

Chat, research, comparison and voice sessions are stored when they finish,
in the store selected by storage.provider. Sessions can be named by a unique
prefix of their ID.

Examples:
  weave history list --kind research
  weave history show 3f2a
  weave history rm 3f2a 9c41`

const historyShortDesc string = "Browse past sessions"

// storeFunc is the body of a history subcommand.
type storeFunc func(cmd *cobra.Command, env *cmdenv.Env, store storage.Driver, args []string) error

func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   historyShortDesc,
		Long:    historyLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newRmCmd())

	return cmd
}

func withStore(cmd *cobra.Command, run storeFunc) *cobra.Command {
	var env *cmdenv.Env

	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		var err error
		env, err = cmdenv.Load(cmd)
		return err
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		store, err := env.Storage(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		return run(cmd, env, store, args)
	}

	cmdenv.AddFlags(cmd, cmdenv.StorageFlags, cmdenv.DisplayFlags)
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
