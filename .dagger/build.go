package main

import (
	"fmt"
	"strings"
	"time"

	"context"

	"dagger/weave/internal/dagger"
)

// Build and return directory of go binaries
func (w *Weave) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// define build matrix
	gooses := []string{"linux", "darwin"}
	goarches := []string{"amd64", "arm64"}

	// create empty directory to put build artifacts
	outputs := dag.Directory()

	// go-sqlite3 needs CGO; zig cc cross-compiles it for every target.
	golang := dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "zig"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithDirectory("/src", w.Source).
		WithWorkdir("/src")

	for _, goos := range gooses {
		for _, goarch := range goarches {
			// create directory for each OS and architecture
			path := fmt.Sprintf("%s/%s/", goos, goarch)

			// build artifact
			build := golang.
				WithEnvVariable("GOOS", goos).
				WithEnvVariable("GOARCH", goarch).
				WithEnvVariable("CC", "zig cc -target "+zigTarget(goos, goarch)).
				WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/weave"})

			// add build to outputs
			outputs = outputs.WithDirectory(path, build.Directory(path))
		}
	}

	// return build directory
	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (w *Weave) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/docweave/weave/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/docweave/weave/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/docweave/weave/pkg/utils.Buildtime=%s'", buildtime),
	}

	return w.Build(ctx, strings.Join(ldflags, " "))
}

// zigTarget maps a Go platform to the zig cross-compilation target.
func zigTarget(goos, goarch string) string {
	arch := map[string]string{"amd64": "x86_64", "arm64": "aarch64"}[goarch]
	switch goos {
	case "darwin":
		return arch + "-macos"
	default:
		return arch + "-linux-musl"
	}
}
