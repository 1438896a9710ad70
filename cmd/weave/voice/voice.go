// Package voicecmder provides the voice command: recorded questions are sent
// to the voice assistant and its spoken replies are written to disk.
package voicecmder

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/config"
	"github.com/docweave/weave/pkg/runner"
	"github.com/docweave/weave/pkg/session"
)

const voiceLongDesc string = `Ask the voice assistant with recorded audio.

Every recording is one turn of the same conversation, so later recordings
can refer to earlier answers. The transcription and the answer are printed;
the spoken answer is written to --out when given. With several recordings
the turn number is added to the file name.

With --intro, the assistant's greeting is fetched instead.

Examples:
  weave voice -i handbook question.wav
  weave voice -i handbook --out answer.mp3 first.wav followup.wav
  weave voice --intro --out hello.mp3`

const voiceShortDesc string = "Ask with recorded audio"

type voiceCommander struct {
	out       string
	intro     bool
	noHistory bool

	env *cmdenv.Env
}

func NewVoiceCmd() *cobra.Command {
	cmder := &voiceCommander{}

	cmd := &cobra.Command{
		Use:   "voice [recording...]",
		Short: voiceShortDesc,
		Long:  voiceLongDesc,
		Args: func(_ *cobra.Command, args []string) error {
			if !cmder.intro && len(args) == 0 {
				return fmt.Errorf("at least one recording is required")
			}
			return nil
		},
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return err
			}
			cmder.env = env
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmder.intro {
				return cmder.runIntro(cmd)
			}
			return cmder.run(cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.out, "out", "o", "", "Write the spoken answer to this file")
	cmd.Flags().BoolVar(&cmder.intro, "intro", false, "Fetch the assistant's greeting")
	cmd.Flags().BoolVar(&cmder.noHistory, "no-history", false, "Do not store the conversation")
	cmdenv.AddFlags(cmd, []string{config.FlagIndex}, cmdenv.BackendFlags, cmdenv.DisplayFlags, cmdenv.StorageFlags, cmdenv.EventFlags)

	return cmd
}

func (c *voiceCommander) runIntro(cmd *cobra.Command) error {
	cl, err := c.env.Client()
	if err != nil {
		return err
	}

	reply, err := cl.Intro(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cliui.KeyStyle.Render("assistant>"), reply.Response)
	if c.out == "" || reply.Audio == "" {
		return nil
	}

	audio, err := base64.StdEncoding.DecodeString(reply.Audio)
	if err != nil {
		return fmt.Errorf("decoding greeting audio: %w", err)
	}
	return writeAudio(cmd.OutOrStdout(), audio, c.out)
}

func (c *voiceCommander) run(cmd *cobra.Command, recordings []string) error {
	index, err := c.env.Index()
	if err != nil {
		return err
	}

	ctx, cancel := cmdenv.SignalContext(cmd.Context())
	defer cancel()

	cl, err := c.env.Client()
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
	r := runner.New(cl, recorder, c.env.Logger)

	theme, err := c.env.Theme()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	conv := session.NewConversation(index)
	for i, path := range recordings {
		if err := c.turn(ctx, cmd, r, conv, theme, path, c.outPath(i, len(recordings))); err != nil {
			return err
		}
	}
	c.env.RememberIndex(index)

	fmt.Fprintf(w, "\n  %s %s\n", cliui.DimStyle.Render("Conversation"), cliui.NameStyle.Render(conv.ID()))
	return nil
}

func (c *voiceCommander) turn(ctx context.Context, cmd *cobra.Command, r *runner.Runner, conv *session.Conversation, theme *cliui.Theme, path, out string) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading recording: %w", err)
	}

	var v *session.Voice
	err = cliui.Step(cmd.ErrOrStderr(), "Sending "+filepath.Base(path), func() error {
		var runErr error
		v, runErr = r.Voice(ctx, conv, audio, filepath.Base(path))
		if runErr == nil {
			runErr = v.Err()
		}
		return runErr
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	reply, _ := v.Reply()
	if reply.UserText != "" {
		fmt.Fprintf(w, "\n%s %s\n", theme.User.Render("you>"), reply.UserText)
	}
	fmt.Fprintf(w, "%s %s\n", theme.Accent.Render("assistant>"), reply.Response)

	if out == "" {
		return nil
	}
	audio, err = v.Audio()
	if err != nil {
		return err
	}
	return writeAudio(w, audio, out)
}

func writeAudio(w io.Writer, audio []byte, path string) error {
	if len(audio) == 0 {
		fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render("No spoken answer in the reply"))
		return nil
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return fmt.Errorf("writing spoken answer: %w", err)
	}
	fmt.Fprintf(w, "  %s Wrote %s\n", cliui.SuccessMark, path)
	return nil
}

// outPath numbers the output file when several recordings are sent.
func (c *voiceCommander) outPath(i, n int) string {
	if c.out == "" || n == 1 {
		return c.out
	}
	ext := filepath.Ext(c.out)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(c.out, ext), i+1, ext)
}
