package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/goliatone/go-settings/internal/config"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := afero.NewOsFs()
	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	a := newApp(fs, cfg, os.Stdout, os.Stderr)
	return newRootCommand(a).Execute()
}
