package researchcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/runner"
	"github.com/docweave/weave/pkg/session"
)

// maxTimeline is the number of timeline rows kept on screen.
const maxTimeline = 12

var (
	tuiTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	tuiMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	tuiAccentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("215"))
	tuiErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	tuiMetricLabel  = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	tuiMetricValue  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	tuiDividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
)

type researchKeyMap struct {
	Quit key.Binding
}

func (k researchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

func (k researchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

func defaultKeyMap() researchKeyMap {
	return researchKeyMap{
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "stop")),
	}
}

type timelineMsg session.TimelineEvent

type researchModel struct {
	question string
	cancel   context.CancelFunc

	timeline []session.TimelineEvent
	counters session.Counters
	cited    []string
	errors   int

	done  *researchDone
	width int
	keys  researchKeyMap
	help  help.Model
	spin  spinner.Model
}

func newResearchModel(question string, cancel context.CancelFunc) researchModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	return researchModel{
		question: question,
		cancel:   cancel,
		keys:     defaultKeyMap(),
		help:     help.New(),
		spin:     spin,
	}
}

func runResearchTUI(ctx context.Context, r *runner.Runner, req rag.ResearchRequest) (*session.Research, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newResearchModel(req.Question, cancel)
	program := bubbletea.NewProgram(model, bubbletea.WithContext(ctx))

	result := make(chan researchDone, 1)
	go func() {
		done := runResearch(ctx, r, req, func(ev session.TimelineEvent) {
			program.Send(timelineMsg(ev))
		})
		result <- done
		program.Send(done)
	}()

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return nil, err
	}

	done := <-result
	return done.res, done.err
}

func (m researchModel) Init() bubbletea.Cmd {
	return m.spin.Tick
}

func (m researchModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case timelineMsg:
		m.observe(session.TimelineEvent(msg))
		return m, nil

	case researchDone:
		m.done = &msg
		return m, bubbletea.Quit

	case spinner.TickMsg:
		var cmd bubbletea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case bubbletea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
	}

	return m, nil
}

// observe folds one timeline event into the on-screen totals.
func (m *researchModel) observe(ev session.TimelineEvent) {
	m.timeline = append(m.timeline, ev)
	if len(m.timeline) > maxTimeline {
		m.timeline = m.timeline[len(m.timeline)-maxTimeline:]
	}

	switch ev.Type {
	case rag.EventSearch:
		m.counters.Searches++
	case rag.EventSearchComplete:
		m.counters.Completed++
	case rag.EventStatus:
		m.counters.Statuses++
	case rag.EventCitation:
		m.counters.Citations++
		m.cited = appendUnique(m.cited, ev.Text)
	case rag.EventError:
		m.errors++
	}
}

func (m researchModel) View() string {
	var b strings.Builder

	status := m.spin.View() + " researching"
	if m.done != nil {
		status = cliui.Mark(m.done.err) + " done"
	}
	fmt.Fprintf(&b, "\n  %s %s\n", tuiTitleStyle.Render("Research"), tuiMutedStyle.Render(cliui.Excerpt(m.question, 70)))
	fmt.Fprintf(&b, "  %s\n\n", status)

	fmt.Fprintf(&b, "  %s %s   %s %s   %s %s   %s %s\n",
		tuiMetricLabel.Render("searches"), tuiMetricValue.Render(fmt.Sprint(m.counters.Searches)),
		tuiMetricLabel.Render("completed"), tuiMetricValue.Render(fmt.Sprint(m.counters.Completed)),
		tuiMetricLabel.Render("citations"), tuiMetricValue.Render(fmt.Sprint(m.counters.Citations)),
		tuiMetricLabel.Render("documents"), tuiMetricValue.Render(fmt.Sprint(len(m.cited))),
	)
	if m.errors > 0 {
		fmt.Fprintf(&b, "  %s\n", tuiErrorStyle.Render(fmt.Sprintf("%d errors reported", m.errors)))
	}
	fmt.Fprintf(&b, "  %s\n", tuiDividerStyle.Render(strings.Repeat("─", m.divider())))

	for _, ev := range m.timeline {
		style := tuiAccentStyle
		if ev.Type == rag.EventError {
			style = tuiErrorStyle
		}
		fmt.Fprintf(&b, "  %s %s %s\n",
			tuiMutedStyle.Render(fmt.Sprintf("%6s", cliui.FormatDuration(ev.Elapsed))),
			style.Render(fmt.Sprintf("%-16s", ev.Type)),
			cliui.Excerpt(ev.Text, m.divider()-26),
		)
	}

	fmt.Fprintf(&b, "\n  %s\n", m.help.View(m.keys))
	return b.String()
}

func (m researchModel) divider() int {
	if m.width <= 4 {
		return 76
	}
	return m.width - 4
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
