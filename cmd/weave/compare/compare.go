// Package comparecmder provides the compare command and its phase
// subcommands. Each phase is one streamed /compare request; requirements are
// handed from one phase to the next through a JSON file.
package comparecmder

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/runner"
	"github.com/docweave/weave/pkg/session"
)

const compareLongDesc string = `Compare two indexes against a list of requirements.

A comparison runs in phases:
  weave compare generate    Derive requirements from both indexes
  weave compare refine      Rework the requirements from feedback
  weave compare execute     Answer every requirement from both indexes

Requirements are read from and written to JSON files so they can be
reviewed or edited between phases.

Examples:
  weave compare generate --indexes vendor-a,vendor-b --subject "storage arrays" --save reqs.json
  weave compare refine --indexes vendor-a,vendor-b --requirements reqs.json --feedback "add power draw" --save reqs.json
  weave compare execute --indexes vendor-a,vendor-b --requirements reqs.json`

const compareShortDesc string = "Compare two indexes"

// phaseCommander holds the flags shared by the phase subcommands.
type phaseCommander struct {
	phase        string
	indexes      []string
	requirements string
	save         string

	env *cmdenv.Env
}

func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: compareShortDesc,
		Long:  compareLongDesc,
	}

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newRefineCmd())
	cmd.AddCommand(newExecuteCmd())

	return cmd
}

func (p *phaseCommander) command(use, short, long string, build func() (rag.CompareRequest, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return err
			}
			p.env = env
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := build()
			if err != nil {
				return err
			}
			req.Phase = p.phase
			req.Indexes = p.indexes
			return p.run(cmd, req)
		},
	}

	cmd.Flags().StringSliceVar(&p.indexes, "indexes", nil, "The two indexes to compare")
	_ = cmd.MarkFlagRequired("indexes")
	if p.phase != rag.PhaseExecute {
		cmd.Flags().StringVar(&p.save, "save", "", "Write the resulting requirements to this JSON file")
	}
	cmdenv.AddFlags(cmd, cmdenv.BackendFlags, cmdenv.StorageFlags, cmdenv.EventFlags, cmdenv.DisplayFlags)

	return cmd
}

func (p *phaseCommander) run(cmd *cobra.Command, req rag.CompareRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, cancel := cmdenv.SignalContext(cmd.Context())
	defer cancel()

	theme, err := p.env.Theme()
	if err != nil {
		return err
	}

	cl, err := p.env.Client()
	if err != nil {
		return err
	}

	pool, closeRecorder, err := p.env.Recorder(ctx)
	if err != nil {
		return err
	}
	defer closeRecorder()
	r := runner.New(cl, pool, p.env.Logger)

	w := cmd.OutOrStdout()
	var cmp *session.Comparison
	err = cliui.Step(cmd.ErrOrStderr(), fmt.Sprintf("%s phase on %s and %s", req.Phase, req.Indexes[0], req.Indexes[1]), func() error {
		var runErr error
		cmp, runErr = r.Compare(ctx, req, nil)
		if runErr == nil {
			runErr = cmp.Err()
		}
		return runErr
	})

	if cmp == nil {
		return err
	}
	for _, e := range cmp.Errors() {
		fmt.Fprintf(w, "  %s %s\n", cliui.FailMark, theme.Error.Render(e))
	}

	// Partial output is still shown; execute keeps going past backend errors.
	switch req.Phase {
	case rag.PhaseExecute:
		printResults(w, theme, req.Indexes, cmp.Results())
	default:
		printRequirements(w, theme, cmp.Requirements())
		printSources(w, theme, cmp.Sources())
	}
	if err != nil {
		return err
	}

	if p.save != "" && req.Phase != rag.PhaseExecute {
		reqs := cmp.Requirements()
		if err := saveRequirements(p.save, reqs); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n  %s Saved %d requirements to %s\n", cliui.SuccessMark, len(reqs), p.save)
	}
	fmt.Fprintln(w)
	return nil
}

func loadRequirements(path string) ([]rag.Requirement, error) {
	if path == "" {
		return nil, fmt.Errorf("--requirements is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading requirements: %w", err)
	}

	var reqs []rag.Requirement
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("parsing requirements %s: %w", path, err)
	}
	return reqs, nil
}

func saveRequirements(path string, reqs []rag.Requirement) error {
	data, err := json.MarshalIndent(reqs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding requirements: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing requirements: %w", err)
	}
	return nil
}

func printRequirements(w io.Writer, theme *cliui.Theme, reqs []rag.Requirement) {
	fmt.Fprintf(w, "\n%s\n", theme.Title.Render("Requirements"))
	if len(reqs) == 0 {
		fmt.Fprintf(w, "  %s\n", theme.Muted.Render("none"))
		return
	}
	for i, r := range reqs {
		line := r.Description
		if r.MetricUnit != "" {
			line += theme.Muted.Render(" (" + r.MetricUnit + ")")
		}
		fmt.Fprintf(w, "  %s %s\n", theme.Muted.Render(fmt.Sprintf("%2d.", i+1)), line)
	}
}

func printSources(w io.Writer, theme *cliui.Theme, sources map[string]string) {
	for _, index := range slices.Sorted(maps.Keys(sources)) {
		fmt.Fprintf(w, "\n%s\n  %s\n", theme.Accent.Render(index), cliui.Excerpt(sources[index], 300))
	}
}
