// Package servecmder provides the serve command, which runs the local history
// API together with the MCP endpoint.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/api"
	"github.com/docweave/weave/api/mcp"
	"github.com/docweave/weave/cmd/weave/cmdenv"
	"github.com/docweave/weave/pkg/config"
	"github.com/docweave/weave/pkg/logger"
	"github.com/docweave/weave/pkg/runner"
)

type serveCommander struct {
	noMCP   bool
	logFile string

	env *cmdenv.Env
}

const serveLongDesc string = `Run the local history API and the MCP endpoint.

The API serves the recorded sessions:
  GET    /v1/sessions         List sessions (?kind=, ?limit=)
  GET    /v1/sessions/:id     One session with its payload
  DELETE /v1/sessions/:id     Remove a session

Agents reach the backend through the MCP tools mounted at /mcp. Sessions run
by agents are recorded like sessions started from the terminal.

Examples:
  weave serve
  weave serve --listen :9000 --storage postgres --postgres-dsn "$DSN"
  weave serve --log-file weave-serve.log`

const serveShortDesc string = "Serve the history API and MCP tools"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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

	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP endpoint")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmdenv.AddFlags(cmd, []string{config.FlagAPIListen}, cmdenv.BackendFlags, cmdenv.StorageFlags, cmdenv.EventFlags)

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		c.env.Logger = logger.Multi(c.env.Logger, logger.New(
			logger.WithFormat(logger.FormatJSON),
			logger.WithWriter(f),
			logger.WithDebug(c.env.Debug),
			logger.WithAttrs("component", "serve"),
		))
	}
	log := c.env.Logger

	driver, err := c.env.Storage(cmd.Context())
	if err != nil {
		return err
	}
	defer driver.Close()

	pool, closePool, err := c.env.RecorderOn(driver)
	if err != nil {
		return err
	}
	defer closePool()

	apiConfig := api.Config{
		ListenAddr: c.env.Config.API.Listen,
	}

	if !c.noMCP {
		cl, err := c.env.Client()
		if err != nil {
			return err
		}

		mcpServer, err := mcp.NewServer(mcp.Config{
			Runner: runner.New(cl, pool, log),
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}
		apiConfig.MCPHandler = mcpServer.Handler()
		log.Info("mcp tools enabled", "backend", cl.BaseURL())
	}

	server := api.NewServer(apiConfig, driver, log)
	log.Info("serving weave API", "listen", apiConfig.ListenAddr, "mcp", !c.noMCP)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
	case <-cmd.Context().Done():
	}

	if err := server.Shutdown(); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
