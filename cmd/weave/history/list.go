package historycmder

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/session"
	"github.com/docweave/weave/pkg/storage"
	"github.com/docweave/weave/pkg/utils"
)

const defaultLimit = 20

func newListCmd() *cobra.Command {
	var (
		kind    string
		limit   int
		jsonOut bool
	)

	cmd := withStore(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List past sessions, newest first",
		Args:    cobra.NoArgs,
	}, func(cmd *cobra.Command, _ *cmdenv.Env, store storage.Driver, _ []string) error {
		switch session.Kind(kind) {
		case "", session.KindChat, session.KindResearch, session.KindCompare, session.KindVoice:
		default:
			return fmt.Errorf("unknown session kind %q", kind)
		}

		records, err := store.List(cmd.Context(), storage.ListOptions{
			Kind:  session.Kind(kind),
			Limit: limit,
		})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if jsonOut {
			summaries := make([]session.Summary, 0, len(records))
			for _, r := range records {
				summaries = append(summaries, r.Summary)
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(summaries)
		}

		if len(records) == 0 {
			fmt.Fprintln(w, "No sessions recorded yet.")
			return nil
		}

		t := table.New().
			Border(lipgloss.HiddenBorder()).
			Headers("ID", "KIND", "INDEX", "STATE", "STARTED", "DURATION", "TITLE").
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return cliui.DimStyle.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		for _, r := range records {
			t.Row(
				shortID(r.ID),
				string(r.Kind),
				r.Index,
				r.State,
				r.StartedAt.Local().Format("2006-01-02 15:04"),
				cliui.FormatDuration(time.Duration(r.DurationMs)*time.Millisecond),
				utils.Truncate(r.Title, 50),
			)
		}
		fmt.Fprintln(w, t.String())
		return nil
	})

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Only list sessions of this kind (chat, research, compare, voice)")
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultLimit, "Maximum number of sessions, 0 for all")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the summaries as JSON")
	return cmd
}
