package historycmder

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/session"
	"github.com/docweave/weave/pkg/storage"
)

func newShowCmd() *cobra.Command {
	var jsonOut bool

	cmd := withStore(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a past session",
		Args:  cobra.ExactArgs(1),
	}, func(cmd *cobra.Command, env *cmdenv.Env, store storage.Driver, args []string) error {
		rec, err := storage.Resolve(cmd.Context(), store, args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if jsonOut {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		theme, err := env.Theme()
		if err != nil {
			return err
		}
		p := &printer{w: w, theme: theme, markdown: env.Config.UI.Markdown && cliui.IsTTY(os.Stdout)}
		p.summary(rec.Summary)

		switch rec.Kind {
		case session.KindChat, session.KindVoice:
			var snap session.ConversationSnapshot
			if err := rec.Decode(&snap); err != nil {
				return err
			}
			p.conversation(snap)
		case session.KindResearch:
			var snap session.ResearchSnapshot
			if err := rec.Decode(&snap); err != nil {
				return err
			}
			p.research(snap)
		case session.KindCompare:
			var snap session.ComparisonSnapshot
			if err := rec.Decode(&snap); err != nil {
				return err
			}
			p.comparison(snap)
		}
		return nil
	})

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the stored record as JSON")
	return cmd
}

type printer struct {
	w        io.Writer
	theme    *cliui.Theme
	markdown bool
}

func (p *printer) field(key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(p.w, "  %s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-9s", key+":")), cliui.ValueStyle.Render(value))
}

func (p *printer) summary(s session.Summary) {
	fmt.Fprintln(p.w)
	p.field("ID", s.ID)
	p.field("Kind", string(s.Kind))
	p.field("Index", s.Index)
	p.field("Title", s.Title)
	p.field("State", s.State)
	p.field("Error", s.Error)
	p.field("Started", s.StartedAt.Local().Format(time.RFC3339))
	if s.DurationMs > 0 {
		p.field("Duration", cliui.FormatDuration(time.Duration(s.DurationMs)*time.Millisecond))
	}
	p.field("Records", fmt.Sprintf("%d (%d undecodable)", s.Records, s.DecodeErrors))
	fmt.Fprintln(p.w)
}

func (p *printer) text(content string) {
	if p.markdown {
		if rendered, err := p.theme.RenderMarkdown(content, cliui.Width(os.Stdout)); err == nil {
			fmt.Fprint(p.w, rendered)
			return
		}
	}
	fmt.Fprintln(p.w, content)
}

func (p *printer) conversation(snap session.ConversationSnapshot) {
	for _, m := range snap.Messages {
		switch {
		case m.Error:
			fmt.Fprintf(p.w, "%s %s\n", p.theme.Error.Render("assistant>"), m.Content)
		case m.Role == rag.RoleUser:
			fmt.Fprintf(p.w, "%s %s\n", p.theme.User.Render("you>"), m.Content)
		default:
			fmt.Fprintf(p.w, "%s\n", p.theme.Assistant.Render("assistant>"))
			p.text(m.Content)
			if len(m.Citations) > 0 {
				fmt.Fprint(p.w, p.theme.Citations(m.Citations))
			}
		}
		fmt.Fprintln(p.w)
	}
}

func (p *printer) research(snap session.ResearchSnapshot) {
	fmt.Fprintf(p.w, "%s %s\n", p.theme.User.Render("question>"), snap.Question)
	fmt.Fprintf(p.w, "  %s\n\n", p.theme.Muted.Render(fmt.Sprintf("%d searches, %d completed, %d citations",
		snap.Counters.Searches, snap.Counters.Completed, snap.Counters.Citations)))

	for _, e := range snap.Errors {
		fmt.Fprintf(p.w, "  %s %s\n", cliui.FailMark, p.theme.Error.Render(e))
	}

	if !snap.Completed {
		fmt.Fprintf(p.w, "  %s\n", p.theme.Muted.Render("No conclusion was reached."))
		return
	}
	fmt.Fprintf(p.w, "%s\n", p.theme.Title.Render("Conclusion"))
	p.text(snap.Conclusion)
	if len(snap.FinalCitations) > 0 {
		fmt.Fprint(p.w, p.theme.Citations(snap.FinalCitations))
	}
}

func (p *printer) comparison(snap session.ComparisonSnapshot) {
	p.field("Phase", snap.Request.Phase)
	fmt.Fprintln(p.w)

	for i, r := range snap.Requirements {
		fmt.Fprintf(p.w, "  %s %s\n", p.theme.Muted.Render(fmt.Sprintf("%2d.", i+1)), r.Description)
	}
	for _, r := range snap.Results {
		fmt.Fprintf(p.w, "\n%s\n", p.theme.Title.Render(r.Requirement.Description))
		for _, index := range snap.Request.Indexes {
			res := r.Sources[index]
			value := res.Value()
			if value == "" {
				value = cliui.Excerpt(res.Response, 120)
			}
			fmt.Fprintf(p.w, "  %s %s\n", p.theme.Accent.Render(index+":"), value)
		}
	}
	for _, e := range snap.Errors {
		fmt.Fprintf(p.w, "  %s %s\n", cliui.FailMark, p.theme.Error.Render(e))
	}
}
