// Package weavecmder
package weavecmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/docweave/weave/cmd/weave/ask"
	chatcmder "github.com/docweave/weave/cmd/weave/chat"
	comparecmder "github.com/docweave/weave/cmd/weave/compare"
	configcmder "github.com/docweave/weave/cmd/weave/config"
	historycmder "github.com/docweave/weave/cmd/weave/history"
	indexcmder "github.com/docweave/weave/cmd/weave/index"
	initcmder "github.com/docweave/weave/cmd/weave/init"
	researchcmder "github.com/docweave/weave/cmd/weave/research"
	servecmder "github.com/docweave/weave/cmd/weave/serve"
	versioncmder "github.com/docweave/weave/cmd/weave/version"
	voicecmder "github.com/docweave/weave/cmd/weave/voice"
)

const weaveLongDesc string = `Weave is a terminal client for a document question-answering backend.

Talk to your indexes using:
  weave chat          Chat with an index, streaming answers and citations
  weave research      Run a multi-round research session across indexes
  weave compare       Generate, refine and execute requirement comparisons
  weave index         Manage indexes and their documents

Finished sessions are kept in a local history:
  weave history       List, show and remove past sessions
  weave serve         Serve the history API and MCP tools`

const weaveShortDesc string = "Weave - document chat and research from the terminal"

func NewWeaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "weave",
		Short:         weaveShortDesc,
		Long:          weaveLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .weave/ directory")

	// Add subcommands
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(comparecmder.NewCompareCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(researchcmder.NewResearchCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())
	cmd.AddCommand(voicecmder.NewVoiceCmd())

	return cmd
}
