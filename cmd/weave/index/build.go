package indexcmder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/client"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/rag"
)

const defaultPollInterval = 5 * time.Second

func newBuildCmd() *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)

	cmd := subcommand(&cobra.Command{
		Use:   "build",
		Short: "Start an indexing job over the uploaded documents",
		Args:  cobra.NoArgs,
	}, true, func(cmd *cobra.Command, env *cmdenv.Env, cl *client.Client, _ []string) error {
		index, err := env.Index()
		if err != nil {
			return err
		}

		ctx, cancel := cmdenv.SignalContext(cmd.Context())
		defer cancel()

		job, err := cl.StartIndexing(ctx, index)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s %s %s\n", cliui.SuccessMark, job.Message, cliui.DimStyle.Render(job.JobID))
		if !wait {
			return nil
		}
		return waitForIndex(ctx, cl, index, interval, cmd.ErrOrStderr(), w)
	})

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the job finished")
	cmd.Flags().DurationVar(&interval, "interval", defaultPollInterval, "How often to poll the job status")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return subcommand(&cobra.Command{
		Use:   "status",
		Short: "Show the state of the indexing job",
		Args:  cobra.NoArgs,
	}, true, func(cmd *cobra.Command, env *cmdenv.Env, cl *client.Client, _ []string) error {
		index, err := env.Index()
		if err != nil {
			return err
		}

		st, err := cl.IndexStatus(cmd.Context(), index)
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), index, st)
		return nil
	})
}

// waitForIndex polls the indexing job of index until it is done. A failed
// job is returned as an error.
func waitForIndex(ctx context.Context, cl *client.Client, index string, interval time.Duration, progress, w io.Writer) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	var st rag.IndexStatus
	err := cliui.Step(progress, "Indexing "+index, func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			var err error
			st, err = cl.IndexStatus(ctx, index)
			if err != nil {
				return err
			}
			if st.Done() {
				return statusErr(index, st)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
	if st.Status != "" {
		printStatus(w, index, st)
	}
	return err
}

func statusErr(index string, st rag.IndexStatus) error {
	switch st.Status {
	case rag.IndexFailed, rag.IndexError:
		if st.Message != "" {
			return fmt.Errorf("indexing %s %s: %s", index, st.Status, st.Message)
		}
		return fmt.Errorf("indexing %s %s", index, st.Status)
	default:
		return nil
	}
}

func printStatus(w io.Writer, index string, st rag.IndexStatus) {
	mark := cliui.DimStyle.Render("●")
	switch {
	case st.Status == rag.IndexCompleted:
		mark = cliui.SuccessMark
	case st.Done():
		mark = cliui.FailMark
	}

	fmt.Fprintf(w, "%s %s %s", mark, cliui.NameStyle.Render(index), st.Status)
	if st.Message != "" {
		fmt.Fprintf(w, " %s", cliui.DimStyle.Render(st.Message))
	}
	fmt.Fprintln(w)
}
