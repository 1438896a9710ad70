// Package versioncmder
package versioncmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/utils"
)

type VersionCommander struct {
	check bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI, and with --check the settings of the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cmder.run(cmd.OutOrStdout()); err != nil {
				return err
			}
			if !cmder.check {
				return nil
			}
			return cmder.checkBackend(cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.check, "check", false, "Query the backend for its settings")
	cmdenv.AddFlags(cmd, cmdenv.BackendFlags)

	return cmd
}

func (c *VersionCommander) run(w io.Writer) error {
	fmt.Fprintf(w, "Version: %s\nSha: %s\nBuilt at: %s\n", utils.Version, utils.Sha, utils.Buildtime)
	return nil
}

func (c *VersionCommander) checkBackend(cmd *cobra.Command) error {
	env, err := cmdenv.Load(cmd)
	if err != nil {
		return err
	}
	cl, err := env.Client()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	bc, err := cl.Config(cmd.Context())
	if err != nil {
		fmt.Fprintf(w, "Backend: %s %s\n", cl.BaseURL(), cliui.FailMark)
		return err
	}

	fmt.Fprintf(w, "Backend: %s %s\n", cl.BaseURL(), cliui.SuccessMark)
	fmt.Fprintf(w, "  operations restricted: %t\n  easy auth enabled: %t\n", bc.OperationsRestricted, bc.EasyAuthEnabled)
	return nil
}
