package mcp_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docweave/weave/api/mcp"
	"github.com/docweave/weave/pkg/client"
	weavelogger "github.com/docweave/weave/pkg/logger"
	"github.com/docweave/weave/pkg/runner"
)

var _ = Describe("MCP Server", func() {
	var run *runner.Runner

	BeforeEach(func() {
		c, err := client.New("http://localhost:5000")
		Expect(err).NotTo(HaveOccurred())
		run = runner.New(c, nil, nil)
	})

	Describe("NewServer", func() {
		It("returns an error when the runner is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Logger: weavelogger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("runner is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Runner: run})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("creates an empty server in noop mode", func() {
			server, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			server, err := mcp.NewServer(mcp.Config{Runner: run, Logger: weavelogger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})
})
