package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/weave/internal/dagger"
)

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum,
// or when a downloaded module no longer matches its go.sum hash.
//
// +check
func (w *Weave) CheckGoModTidy(ctx context.Context) (string, error) {
	ctr := w.goContainer().
		WithExec([]string{"cp", "go.mod", "go.mod.HEAD"}).
		WithExec([]string{"cp", "go.sum", "go.sum.HEAD"}).
		WithExec([]string{"go", "mod", "tidy"})

	drift, err := ctr.
		WithExec([]string{
			"sh", "-c",
			"diff -u go.mod.HEAD go.mod; diff -u go.sum.HEAD go.sum; true",
		}).
		Stdout(ctx)
	if err != nil {
		return "", fmt.Errorf("could not run go mod tidy: %w", err)
	}
	if drift != "" {
		return "", fmt.Errorf("go.mod or go.sum are not tidy: run 'go mod tidy' and commit the changes\n\n%s", drift)
	}

	out, err := ctr.WithExec([]string{"go", "mod", "verify"}).Stdout(ctx)

	var e *dagger.ExecError
	if errors.As(err, &e) {
		return "", fmt.Errorf("module cache does not match go.sum\n\n%s%s", e.Stdout, e.Stderr)
	} else if err != nil {
		return "", fmt.Errorf("unexpected error: %w", err)
	}

	return fmt.Sprintf("go.mod and go.sum are tidy: %s", out), nil
}
