// Package indexcmder provides the index command: index lifecycle, document
// uploads and indexing jobs.
package indexcmder

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/client"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/config"
)

const indexLongDesc string = `Manage the indexes of the document backend.

Documents are uploaded to an index and become searchable once an indexing
job over the index completed. Commands that work on one index use --index,
or chat.index from config.toml.

Examples:
  weave index list
  weave index create handbook
  weave index upload -i handbook ./policies --build --wait
  weave index watch -i handbook ./policies --build
  weave index status -i handbook`

const indexShortDesc string = "Manage indexes and documents"

func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: indexShortDesc,
		Long:  indexLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newFilesCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newPDFCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// runFunc is the body of an index subcommand.
type runFunc func(cmd *cobra.Command, env *cmdenv.Env, cl *client.Client, args []string) error

// subcommand wires the shared flags and environment of index subcommands.
// withIndex registers --index.
func subcommand(cmd *cobra.Command, withIndex bool, run runFunc) *cobra.Command {
	var env *cmdenv.Env

	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		var err error
		env, err = cmdenv.Load(cmd)
		return err
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cl, err := env.Client()
		if err != nil {
			return err
		}
		return run(cmd, env, cl, args)
	}

	if withIndex {
		cmdenv.AddFlags(cmd, []string{config.FlagIndex})
	}
	cmdenv.AddFlags(cmd, cmdenv.BackendFlags)
	return cmd
}

func newListCmd() *cobra.Command {
	return subcommand(&cobra.Command{
		Use:   "list",
		Short: "List indexes",
		Args:  cobra.NoArgs,
	}, false, func(cmd *cobra.Command, env *cmdenv.Env, cl *client.Client, _ []string) error {
		indexes, err := cl.Indexes(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(indexes) == 0 {
			fmt.Fprintf(w, "No indexes. Create one with %s\n", cliui.KeyStyle.Render("weave index create <name>"))
			return nil
		}

		current := env.Config.Chat.Index
		t := table.New().
			Border(lipgloss.HiddenBorder()).
			Headers("NAME", "RESTRICTED").
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return cliui.DimStyle.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		for _, idx := range indexes {
			name := idx.Name
			if name == current {
				name += " *"
			}
			t.Row(name, fmt.Sprintf("%t", idx.Restricted))
		}
		fmt.Fprintln(w, t.String())
		return nil
	})
}

func newCreateCmd() *cobra.Command {
	return subcommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an index",
		Long: `Create an index and select it as chat.index.

Names are 1 to 10 characters without uppercase letters.`,
		Args: cobra.ExactArgs(1),
	}, false, func(cmd *cobra.Command, env *cmdenv.Env, cl *client.Client, args []string) error {
		res, err := cl.CreateIndex(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		env.RememberIndex(args[0])

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s %s %s\n", cliui.SuccessMark, res.Message, cliui.NameStyle.Render(args[0]))
		for _, c := range res.Containers {
			fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render(c))
		}
		return nil
	})
}

func newDeleteCmd() *cobra.Command {
	var yes bool

	cmd := subcommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an index and all of its documents",
		Args:  cobra.ExactArgs(1),
	}, false, func(cmd *cobra.Command, _ *cmdenv.Env, cl *client.Client, args []string) error {
		w := cmd.OutOrStdout()
		if !yes && !confirm(cmd.InOrStdin(), w, fmt.Sprintf("Delete index %s and all of its documents?", args[0])) {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}

		res, err := cl.DeleteIndex(cmd.Context(), args[0])
		if err != nil && len(res.Errors) == 0 {
			return err
		}
		printOperation(w, res.Message, res.Errors)
		return err
	})

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func printOperation(w io.Writer, message string, errs []string) {
	fmt.Fprintf(w, "%s %s\n", cliui.SuccessMark, message)
	for _, e := range errs {
		fmt.Fprintf(w, "  %s %s\n", cliui.FailMark, e)
	}
}

// confirm asks a yes/no question on r and defaults to no.
func confirm(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N] ", question)
	line, _ := bufio.NewReader(r).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
