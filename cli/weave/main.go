package main

import (
	"os"

	weavecmder "github.com/docweave/weave/cmd/weave"
)

func main() {
	cmd := weavecmder.NewWeaveCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
