package indexcmder

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/client"
	"github.com/docweave/weave/pkg/cliui"
)

func newFilesCmd() *cobra.Command {
	return subcommand(&cobra.Command{
		Use:   "files",
		Short: "List the documents of an index",
		Args:  cobra.NoArgs,
	}, true, func(cmd *cobra.Command, env *cmdenv.Env, cl *client.Client, _ []string) error {
		index, err := env.Index()
		if err != nil {
			return err
		}

		list, err := cl.Files(cmd.Context(), index)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, f := range list.Files {
			fmt.Fprintln(w, f)
		}
		fmt.Fprintf(w, "%s\n", cliui.DimStyle.Render(fmt.Sprintf("%d file(s) in %s", len(list.Files), index)))
		return nil
	})
}

func newRmCmd() *cobra.Command {
	return subcommand(&cobra.Command{
		Use:   "rm <file>...",
		Short: "Remove documents from an index",
		Args:  cobra.MinimumNArgs(1),
	}, true, func(cmd *cobra.Command, env *cmdenv.Env, cl *client.Client, args []string) error {
		index, err := env.Index()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, name := range args {
			res, err := cl.DeleteFile(cmd.Context(), index, name)
			if err != nil {
				return fmt.Errorf("removing %s: %w", name, err)
			}
			printOperation(w, res.Message, res.Errors)
		}
		return nil
	})
}

func newPDFCmd() *cobra.Command {
	var out string

	cmd := subcommand(&cobra.Command{
		Use:   "pdf <document>",
		Short: "Download a source document",
		Long: `Download a source document of an index, such as a citation target.

The document is written to --out, or to its base name in the current
directory. Use --out - to write to stdout.`,
		Args: cobra.ExactArgs(1),
	}, true, func(cmd *cobra.Command, env *cmdenv.Env, cl *client.Client, args []string) error {
		index, err := env.Index()
		if err != nil {
			return err
		}

		body, err := cl.PDF(cmd.Context(), index, args[0])
		if err != nil {
			return err
		}
		defer body.Close()

		if out == "-" {
			_, err := io.Copy(cmd.OutOrStdout(), body)
			return err
		}

		target := out
		if target == "" {
			target = path.Base(args[0])
		}
		f, err := os.Create(target)
		if err != nil {
			return err
		}
		n, err := io.Copy(f, body)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s %s\n", cliui.SuccessMark, target, cliui.DimStyle.Render(fmt.Sprintf("(%d bytes)", n)))
		return nil
	})

	cmd.Flags().StringVarP(&out, "out", "o", "", "Where to write the document")
	return cmd
}
