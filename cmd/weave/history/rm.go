package historycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/storage"
)

func newRmCmd() *cobra.Command {
	return withStore(&cobra.Command{
		Use:   "rm <id>...",
		Short: "Remove past sessions",
		Args:  cobra.MinimumNArgs(1),
	}, func(cmd *cobra.Command, _ *cmdenv.Env, store storage.Driver, args []string) error {
		w := cmd.OutOrStdout()
		for _, id := range args {
			rec, err := storage.Resolve(cmd.Context(), store, id)
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), rec.ID); err != nil {
				return err
			}
			fmt.Fprintf(w, "%s Removed %s %s\n", cliui.SuccessMark, cliui.NameStyle.Render(shortID(rec.ID)), cliui.DimStyle.Render(rec.Title))
		}
		return nil
	})
}
