// Package askcmder provides the ask command, the batch counterpart of chat.
package askcmder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/config"
	"github.com/docweave/weave/pkg/rag"
)

const askLongDesc string = `Answer a batch of questions against an index.

Each argument is one question. With "-" as the only argument, questions are
read from stdin, one per line. Unlike chat, no history is kept between the
questions.

Examples:
  weave ask -i handbook "How long is parental leave?" "Who approves expenses?"
  weave ask -i contracts --file msa.pdf "What is the notice period?"
  cat questions.txt | weave ask -i handbook --json -`

const askShortDesc string = "Answer questions without a conversation"

type askCommander struct {
	file     string
	graphRAG bool
	jsonOut  bool

	env *cmdenv.Env
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: askShortDesc,
		Long:  askLongDesc,
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
			return cmder.run(cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Only answer from this document of the index")
	cmd.Flags().BoolVar(&cmder.graphRAG, "graphrag", false, "Answer with the knowledge graph instead of vector search")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the answers as JSON")
	cmdenv.AddFlags(cmd, []string{config.FlagIndex}, cmdenv.BackendFlags, cmdenv.DisplayFlags)

	return cmd
}

func (c *askCommander) run(cmd *cobra.Command, args []string) error {
	questions := args
	if len(args) == 1 && args[0] == "-" {
		var err error
		questions, err = readQuestions(cmd.InOrStdin())
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return fmt.Errorf("no questions on stdin")
		}
	}

	index, err := c.env.Index()
	if err != nil {
		return err
	}

	cl, err := c.env.Client()
	if err != nil {
		return err
	}

	ctx, cancel := cmdenv.SignalContext(cmd.Context())
	defer cancel()

	req := rag.AskRequest{
		Questions:    questions,
		IndexName:    index,
		IsRestricted: cl.Restricted(),
		FileName:     c.file,
		UseGraphRAG:  c.graphRAG,
	}

	var answers []rag.Answer
	ask := func() error {
		var askErr error
		answers, askErr = cl.Ask(ctx, req)
		return askErr
	}

	w := cmd.OutOrStdout()
	if c.jsonOut {
		if err := ask(); err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answers)
	}

	label := fmt.Sprintf("Asking %d question(s) on %s", len(questions), index)
	if err := cliui.Step(cmd.ErrOrStderr(), label, ask); err != nil {
		return err
	}
	c.env.RememberIndex(index)

	theme, err := c.env.Theme()
	if err != nil {
		return err
	}
	markdown := c.env.Config.UI.Markdown && cliui.IsTTY(os.Stdout)
	for _, a := range answers {
		fmt.Fprintf(w, "\n%s %s\n", theme.User.Render("?"), a.Question)
		body := a.Answer
		if markdown {
			if rendered, err := theme.RenderMarkdown(a.Answer, cliui.Width(os.Stdout)); err == nil {
				body = strings.TrimRight(rendered, "\n")
			}
		}
		fmt.Fprintln(w, body)
	}
	return nil
}

func readQuestions(r io.Reader) ([]string, error) {
	var questions []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if q := strings.TrimSpace(scanner.Text()); q != "" {
			questions = append(questions, q)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading questions: %w", err)
	}
	return questions, nil
}
