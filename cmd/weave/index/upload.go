package indexcmder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/client"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/uploader"
)

// uploadFlags are shared by upload and watch.
type uploadFlags struct {
	multimodal bool
	build      bool
	extensions []string
}

func (f *uploadFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.multimodal, "multimodal", false, "Describe images in the documents during ingestion")
	cmd.Flags().BoolVar(&f.build, "build", false, "Start an indexing job after uploading")
	cmd.Flags().StringSliceVar(&f.extensions, "ext", uploader.DefaultExtensions, "File extensions to upload")
}

func (f *uploadFlags) config(cmd *cobra.Command, env *cmdenv.Env, cl *client.Client, index, dir string) uploader.Config {
	w := cmd.OutOrStdout()
	return uploader.Config{
		Dir:        dir,
		Index:      index,
		Backend:    cl,
		DotDir:     env.ConfigDir,
		Multimodal: f.multimodal,
		Build:      f.build,
		Extensions: f.extensions,
		Logger:     env.Logger,
		OnUpload: func(path string, res rag.UploadResult, err error) {
			if err != nil {
				fmt.Fprintf(w, "%s %s %s\n", cliui.FailMark, path, cliui.DimStyle.Render(err.Error()))
				return
			}
			fmt.Fprintf(w, "%s %s %s\n", cliui.SuccessMark, path, cliui.DimStyle.Render(fmt.Sprintf("(%d pages)", res.NumPages)))
		},
	}
}

func newUploadCmd() *cobra.Command {
	var (
		flags uploadFlags
		wait  bool
	)

	cmd := subcommand(&cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload documents to an index",
		Long: `Upload documents to an index.

A folder argument uploads every matching document below it. Files that were
uploaded before and did not change since are skipped; the record of what was
sent is kept in .weave/uploads.json.`,
		Args: cobra.MinimumNArgs(1),
	}, true, func(cmd *cobra.Command, env *cmdenv.Env, cl *client.Client, args []string) error {
		index, err := env.Index()
		if err != nil {
			return err
		}

		ctx, cancel := cmdenv.SignalContext(cmd.Context())
		defer cancel()

		w := cmd.OutOrStdout()
		total := uploader.Result{Failed: make(map[string]error)}
		var files []string
		for _, arg := range args {
			info, err := os.Stat(arg)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				files = append(files, arg)
				continue
			}

			up, err := uploader.New(flags.config(cmd, env, cl, index, arg))
			if err != nil {
				return err
			}
			res, err := up.Sync(ctx)
			merge(&total, res)
			if err != nil {
				return err
			}
		}

		if len(files) > 0 {
			up, err := uploader.New(flags.config(cmd, env, cl, index, "."))
			if err != nil {
				return err
			}
			abs := make([]string, 0, len(files))
			for _, f := range files {
				p, err := filepath.Abs(f)
				if err != nil {
					return err
				}
				abs = append(abs, p)
			}
			res, err := up.UploadFiles(ctx, abs)
			merge(&total, res)
			if err != nil {
				return err
			}
		}

		printResult(w, total)
		env.RememberIndex(index)

		if len(total.Failed) > 0 {
			return fmt.Errorf("%d upload(s) failed", len(total.Failed))
		}
		if total.Job != nil && wait {
			return waitForIndex(ctx, cl, index, defaultPollInterval, cmd.ErrOrStderr(), w)
		}
		return nil
	})

	flags.register(cmd)
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "With --build, wait until the indexing job finished")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var (
		flags    uploadFlags
		debounce time.Duration
	)

	cmd := subcommand(&cobra.Command{
		Use:   "watch <folder>",
		Short: "Keep an index in sync with a folder",
		Long: `Upload a folder and keep uploading documents as they are added or
changed, until interrupted.`,
		Args: cobra.ExactArgs(1),
	}, true, func(cmd *cobra.Command, env *cmdenv.Env, cl *client.Client, args []string) error {
		index, err := env.Index()
		if err != nil {
			return err
		}

		ctx, cancel := cmdenv.SignalContext(cmd.Context())
		defer cancel()

		cfg := flags.config(cmd, env, cl, index, args[0])
		cfg.Debounce = debounce
		up, err := uploader.New(cfg)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s Watching %s for %s %s\n",
			cliui.DimStyle.Render("●"), args[0], cliui.NameStyle.Render(index),
			cliui.DimStyle.Render("(Ctrl+C to stop)"))

		batches := make(chan uploader.Result)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for res := range batches {
				printResult(w, res)
			}
		}()

		err = up.Watch(ctx, batches)
		close(batches)
		<-done
		return err
	})

	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "How long a file must stay unchanged before it is uploaded")
	return cmd
}

func merge(total *uploader.Result, res uploader.Result) {
	total.Uploaded = append(total.Uploaded, res.Uploaded...)
	total.Skipped = append(total.Skipped, res.Skipped...)
	for k, v := range res.Failed {
		total.Failed[k] = v
	}
	if res.Job != nil {
		total.Job = res.Job
	}
}

// printResult summarizes a batch. Single files were already reported by
// OnUpload.
func printResult(w io.Writer, res uploader.Result) {
	summary := fmt.Sprintf("%d uploaded, %d unchanged, %d failed", len(res.Uploaded), len(res.Skipped), len(res.Failed))
	fmt.Fprintln(w, cliui.DimStyle.Render(summary))

	if res.Job != nil {
		fmt.Fprintf(w, "%s Indexing started %s\n", cliui.SuccessMark, cliui.DimStyle.Render(res.Job.JobID))
	}
}
