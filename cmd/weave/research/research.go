// Package researchcmder provides the research command, which runs a
// multi-round research session over one or more indexes.
package researchcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/config"
	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/runner"
	"github.com/docweave/weave/pkg/session"
)

const researchLongDesc string = `Run a research session.

The backend searches the given indexes over several rounds and streams its
progress: searches, completed searches, citations and status updates. The
timeline is printed as it arrives, or shown in a live view with --tui.
When the run ends the conclusion, its citations and the most cited
documents are printed.

Examples:
  weave research "What changed in the travel policy this year?"
  weave research --sources handbook,policies --max-rounds 5 "Compare parental leave rules"
  weave research --tui "Summarize the onboarding process"`

const researchShortDesc string = "Run a research session across indexes"

const (
	defaultMaxRounds    = 3
	defaultTopDocuments = 5
)

type researchCommander struct {
	sources   []string
	maxRounds int
	top       int
	tui       bool

	env *cmdenv.Env
}

func NewResearchCmd() *cobra.Command {
	cmder := &researchCommander{}

	cmd := &cobra.Command{
		Use:   "research <question>",
		Short: researchShortDesc,
		Long:  researchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return err
			}
			cmder.env = env
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringSliceVar(&cmder.sources, "sources", nil, "Indexes to research (default: the configured index)")
	cmd.Flags().IntVar(&cmder.maxRounds, "max-rounds", defaultMaxRounds, "Maximum number of research rounds")
	cmd.Flags().IntVar(&cmder.top, "top", defaultTopDocuments, "Number of most cited documents to list")
	cmd.Flags().BoolVar(&cmder.tui, "tui", false, "Show a live view of the run")
	cmdenv.AddFlags(cmd, []string{config.FlagIndex}, cmdenv.BackendFlags, cmdenv.DisplayFlags, cmdenv.StorageFlags, cmdenv.EventFlags)

	return cmd
}

func (c *researchCommander) request(question string, restricted bool) (rag.ResearchRequest, error) {
	sources := c.sources
	if len(sources) == 0 {
		index, err := c.env.Index()
		if err != nil {
			return rag.ResearchRequest{}, err
		}
		sources = []string{index}
	}

	req := rag.ResearchRequest{
		Question:  question,
		MaxRounds: c.maxRounds,
	}
	for _, s := range sources {
		req.DataSources = append(req.DataSources, rag.DataSource{
			Index:        s,
			Name:         s,
			IsRestricted: restricted,
		})
	}
	return req, nil
}

func (c *researchCommander) run(cmd *cobra.Command, question string) error {
	ctx, cancel := cmdenv.SignalContext(cmd.Context())
	defer cancel()

	theme, err := c.env.Theme()
	if err != nil {
		return err
	}

	cl, err := c.env.Client()
	if err != nil {
		return err
	}

	req, err := c.request(question, cl.Restricted())
	if err != nil {
		return err
	}

	pool, closeRecorder, err := c.env.Recorder(ctx)
	if err != nil {
		return err
	}
	defer closeRecorder()
	r := runner.New(cl, pool, c.env.Logger)

	w := cmd.OutOrStdout()

	var res *session.Research
	if c.tui && cliui.IsTTY(os.Stdout) {
		res, err = runResearchTUI(ctx, r, req)
	} else {
		fmt.Fprintf(w, "\n  %s %s\n\n", cliui.KeyStyle.Render("Researching:"), question)
		res, err = r.Research(ctx, req, func(ev session.TimelineEvent) {
			printEvent(w, theme, ev)
		})
	}

	if res == nil {
		return err
	}
	c.report(w, theme, res)
	if err == nil {
		err = res.Err()
	}
	return err
}

func printEvent(w io.Writer, theme *cliui.Theme, ev session.TimelineEvent) {
	label := fmt.Sprintf("%-16s", ev.Type)
	if ev.Type == rag.EventError {
		label = theme.Error.Render(label)
	} else {
		label = theme.Accent.Render(label)
	}

	line := cliui.Excerpt(ev.Text, 100)
	if ev.Index != "" {
		line = theme.Muted.Render("["+ev.Index+"] ") + line
	}
	fmt.Fprintf(w, "  %s %s %s\n",
		theme.Muted.Render(fmt.Sprintf("%6s", cliui.FormatDuration(ev.Elapsed))),
		label,
		line,
	)
}

// report prints the outcome of a finished run.
func (c *researchCommander) report(w io.Writer, theme *cliui.Theme, res *session.Research) {
	counters := res.Counters()
	fmt.Fprintf(w, "\n  %s %s\n",
		cliui.Mark(res.Err()),
		theme.Muted.Render(fmt.Sprintf("%d searches, %d completed, %d citations in %s",
			counters.Searches, counters.Completed, counters.Citations, cliui.FormatDuration(res.Duration()))),
	)

	for _, e := range res.Errors() {
		fmt.Fprintf(w, "  %s %s\n", cliui.FailMark, theme.Error.Render(e))
	}

	conclusion, ok := res.Conclusion()
	if !ok {
		fmt.Fprintf(w, "\n  %s\n\n", theme.Muted.Render("No conclusion was reached."))
		return
	}

	fmt.Fprintf(w, "\n%s\n", theme.Title.Render("Conclusion"))
	if c.env.Config.UI.Markdown && cliui.IsTTY(os.Stdout) {
		rendered, err := theme.RenderMarkdown(conclusion, cliui.Width(os.Stdout))
		if err != nil {
			c.env.Logger.Debug("markdown rendering failed", "error", err)
		}
		fmt.Fprint(w, rendered)
	} else {
		fmt.Fprintf(w, "%s\n", conclusion)
	}

	if cites := res.FinalCitations(); len(cites) > 0 {
		fmt.Fprintf(w, "\n%s\n%s", theme.Title.Render("Sources"), theme.Citations(cites))
	}

	if docs := res.TopDocuments(c.top); len(docs) > 0 {
		fmt.Fprintf(w, "\n%s\n", theme.Title.Render("Most cited"))
		for _, d := range docs {
			fmt.Fprintf(w, "  %s %s\n", theme.Muted.Render(fmt.Sprintf("%3d×", d.Count)), theme.Citation.Render(d.Title))
		}
	}
	fmt.Fprintln(w)
}

// researchDone is sent to the TUI when the run returns.
type researchDone struct {
	res *session.Research
	err error
}

func runResearch(ctx context.Context, r *runner.Runner, req rag.ResearchRequest, onEvent func(session.TimelineEvent)) researchDone {
	res, err := r.Research(ctx, req, onEvent)
	return researchDone{res: res, err: err}
}
