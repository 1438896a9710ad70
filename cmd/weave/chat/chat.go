// Package chatcmder provides the chat command, an interactive conversation
// with one index of the document backend.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/client"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/config"
	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/runner"
	"github.com/docweave/weave/pkg/session"
	"github.com/docweave/weave/pkg/storage"
	"github.com/docweave/weave/pkg/utils"
)

const chatLongDesc string = `Start an interactive chat with an index.

Answers are streamed as they arrive. With markdown rendering enabled (the
default on a terminal) the finished answer is rendered instead. The chosen
index is remembered as chat.index for the next session.

Commands inside the chat:
  /refine <feedback>   Rework the last answer from the same sources
  /citations           List the sources of the last answer
  /new                 Start a new conversation on the same index
  /exit                Leave (Ctrl+D works too)

Finished conversations are stored in the session history unless
--no-history is given; --resume continues one of them.

Examples:
  weave chat --index handbook
  weave chat --record transcript.txt
  weave chat --resume 6f1c2c1e-...`

const chatShortDesc string = "Chat with an index"

const helpText = "/refine <feedback>, /citations, /new, /exit"

type chatCommander struct {
	record    string
	resume    string
	noHistory bool

	env    *cmdenv.Env
	theme  *cliui.Theme
	runner *runner.Runner
	conv   *session.Conversation

	out      io.Writer
	markdown bool
	width    int
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return err
			}
			cmder.env = env
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.record, "record", "", "Write the raw response streams to this file")
	cmd.Flags().StringVar(&cmder.resume, "resume", "", "Continue a stored conversation by session id")
	cmd.Flags().BoolVar(&cmder.noHistory, "no-history", false, "Do not store the conversation")
	cmdenv.AddFlags(cmd, []string{config.FlagIndex}, cmdenv.BackendFlags, cmdenv.DisplayFlags, cmdenv.StorageFlags, cmdenv.EventFlags)

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	c.out = cmd.OutOrStdout()

	var err error
	c.theme, err = c.env.Theme()
	if err != nil {
		return err
	}
	c.markdown = c.env.Config.UI.Markdown && cliui.IsTTY(os.Stdout)
	c.width = cliui.Width(os.Stdout)

	var opts []client.Option
	if c.record != "" {
		f, err := os.Create(c.record)
		if err != nil {
			return fmt.Errorf("creating record file: %w", err)
		}
		defer f.Close()
		opts = append(opts, client.WithTee(f))
	}

	cl, err := c.env.Client(opts...)
	if err != nil {
		return err
	}

	var recorder runner.Recorder
	if !c.noHistory {
		pool, closeRecorder, err := c.env.Recorder(ctx)
		if err != nil {
			return err
		}
		defer closeRecorder()
		recorder = pool
	}
	c.runner = runner.New(cl, recorder, c.env.Logger)

	if err := c.open(ctx); err != nil {
		return err
	}
	c.env.RememberIndex(c.conv.Index())

	return c.loop(ctx, cmd.InOrStdin())
}

// open starts a new conversation or restores the one named by --resume.
func (c *chatCommander) open(ctx context.Context) error {
	fmt.Fprintln(c.out)

	if c.resume == "" {
		index, err := c.env.Index()
		if err != nil {
			return err
		}
		c.conv = session.NewConversation(index)
		fmt.Fprintf(c.out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	} else {
		conv, err := c.restore(ctx)
		if err != nil {
			return err
		}
		c.conv = conv
		fmt.Fprintf(c.out, "  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(utils.Truncate(conv.ID(), 8)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(conv.Messages()))),
		)
	}

	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Index:"),
		cliui.NameStyle.Render(c.conv.Index()),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your question and press Enter. "+helpText))
	return nil
}

func (c *chatCommander) restore(ctx context.Context) (*session.Conversation, error) {
	store, err := c.env.Storage(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	rec, err := storage.Resolve(ctx, store, c.resume)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", c.resume, err)
	}
	if rec.Kind != session.KindChat {
		return nil, fmt.Errorf("session %s is a %s session, not a chat", c.resume, rec.Kind)
	}

	var snap session.ConversationSnapshot
	if err := rec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", c.resume, err)
	}
	return session.RestoreConversation(snap), nil
}

func (c *chatCommander) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	userPrompt := c.theme.User.Render("you> ")

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "/exit" || input == "/quit":
			fmt.Fprintln(c.out)
			return nil
		case input == "/help":
			fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(helpText))
		case input == "/citations":
			c.printCitations()
		case input == "/new":
			c.conv = session.NewConversation(c.conv.Index())
			fmt.Fprintf(c.out, "  %s New conversation\n\n", cliui.DimStyle.Render("●"))
		case strings.HasPrefix(input, "/refine"):
			feedback := strings.TrimSpace(strings.TrimPrefix(input, "/refine"))
			if feedback == "" {
				fmt.Fprintf(c.out, "  %s usage: /refine <feedback>\n\n", cliui.FailMark)
				continue
			}
			c.turn(ctx, func(ctx context.Context, onDelta func(string)) (*session.ChatStream, error) {
				return c.runner.Refine(ctx, c.conv, feedback, onDelta)
			})
		case strings.HasPrefix(input, "/"):
			fmt.Fprintf(c.out, "  %s unknown command %s (%s)\n\n", cliui.FailMark, input, helpText)
		default:
			c.turn(ctx, func(ctx context.Context, onDelta func(string)) (*session.ChatStream, error) {
				return c.runner.Chat(ctx, c.conv, input, onDelta)
			})
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

type askFunc func(ctx context.Context, onDelta func(string)) (*session.ChatStream, error)

// turn runs one reply. Ctrl+C cancels the reply, not the chat.
func (c *chatCommander) turn(parent context.Context, ask askFunc) {
	ctx, cancel := cmdenv.SignalContext(parent)
	defer cancel()

	var (
		s   *session.ChatStream
		err error
	)
	assistantPrompt := c.theme.Assistant.Render("assistant> ")

	if c.markdown {
		err = cliui.Step(c.out, "thinking", func() error {
			s, err = ask(ctx, nil)
			return err
		})
		if msg, ok := answer(s); ok {
			rendered, rerr := c.theme.RenderMarkdown(msg, c.width)
			if rerr != nil {
				c.env.Logger.Debug("markdown rendering failed", "error", rerr)
			}
			fmt.Fprint(c.out, rendered)
		}
	} else {
		fmt.Fprint(c.out, assistantPrompt)
		s, err = ask(ctx, func(fragment string) {
			fmt.Fprint(c.out, fragment)
		})
		fmt.Fprintln(c.out)
	}

	switch {
	case errors.Is(err, runner.ErrNothingToRefine):
		fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
		return
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("(cancelled)"))
		return
	case err != nil:
		c.env.Logger.Debug("chat turn failed", "error", err)
		fmt.Fprintf(c.out, "  %s %s %s\n\n",
			cliui.FailMark,
			c.theme.Error.Render(rag.GenericErrorMessage),
			cliui.DimStyle.Render("("+err.Error()+")"),
		)
		return
	}

	if msg, ok := s.Message(); ok && len(msg.Citations) > 0 {
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render(fmt.Sprintf("%d sources, /citations to list them", len(msg.Citations))))
	}
	fmt.Fprintln(c.out)
}

func (c *chatCommander) printCitations() {
	msg, ok := c.conv.LastAnswer()
	if !ok || len(msg.Citations) == 0 {
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("No sources yet."))
		return
	}
	fmt.Fprintln(c.out, c.theme.Citations(msg.Citations))
}

func answer(s *session.ChatStream) (string, bool) {
	if s == nil {
		return "", false
	}
	msg, ok := s.Message()
	if !ok || msg.Content == "" {
		return "", false
	}
	return msg.Content, true
}
