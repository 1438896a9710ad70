// Package sqlitepath finds the session history database.
package sqlitepath

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/docweave/weave/pkg/config"
	"github.com/docweave/weave/pkg/dotdir"
)

// ResolveSQLitePath returns, in order: override, $WEAVE_SQLITE, the
// database in configDir when one is given, the first existing candidate, and
// finally the database in the resolved .weave/ directory.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("WEAVE_SQLITE")); envPath != "" {
		return envPath, nil
	}

	ddm := dotdir.NewManager()
	if configDir != "" {
		return ddm.Path(configDir, config.SQLiteFile)
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return ddm.Path("", config.SQLiteFile)
}

func sqliteCandidates() []string {
	candidates := []string{
		filepath.Join(".weave", config.SQLiteFile),
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "weave", config.SQLiteFile))
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".weave", config.SQLiteFile))
	}

	return candidates
}
