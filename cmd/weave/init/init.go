// Package initcmder provides the init command for initializing a local .weave
// directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/pkg/config"
)

const (
	dirName = ".weave"

	remoteTimeout = 30 * time.Second
)

const initLongDesc string = `Initialize a new .weave/ directory in the current working directory.

Creates a local .weave/ directory that takes precedence over the default
~/.weave/ directory for configuration, session history, the upload
manifest and other weave state.

With --preset, a config.toml is written from a named preset or fetched
from a URL:
  local    SQLite history, no event publishing (default)
  team     PostgreSQL history and Kafka session events

Examples:
  weave init
  weave init --preset team
  weave init --preset https://intranet.example.com/weave/config.toml`

const initShortDesc string = "Initialize a local .weave/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Preset name ("+strings.Join(config.ValidPresetNames(), ", ")+") or URL of a config.toml")

	return cmd
}

func (c *initCommander) run(ctx context.Context, w io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	exists := err == nil && info.IsDir()

	if !exists {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .weave directory: %w", err)
		}
	}

	cfg, err := c.config(ctx)
	if err != nil {
		return err
	}

	configPath := filepath.Join(dir, "config.toml")
	_, statErr := os.Stat(configPath)
	if c.preset != "" || statErr != nil {
		cfger, err := config.NewConfiger(dir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
	}

	if exists {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	}

	fmt.Fprintf(w, "Initialized .weave directory: %s\n", dir)
	return nil
}

func (c *initCommander) config(ctx context.Context) (*config.Config, error) {
	switch {
	case c.preset == "":
		return config.NewDefaultConfig(), nil
	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		return fetchRemoteConfig(ctx, c.preset)
	default:
		return config.PresetConfig(c.preset)
	}
}

func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
