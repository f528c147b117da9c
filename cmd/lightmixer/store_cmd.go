package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"lightmixer/internal/persist"
)

// runStoreCommand implements "lightmixer store show|erase".
//
// erase removes the persisted record so the next start uses defaults. The
// daemon must be stopped; the file store refuses to open while it runs.
func runStoreCommand(args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("lightmixer store", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: lightmixer store show|erase [flags]")
		fs.PrintDefaults()
	}
	configPath, overrides := registerConfigFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("store: expected exactly one of show, erase")
	}

	cfg, err := resolveConfig(*configPath, overrides())
	if err != nil {
		return err
	}

	backend, err := openStore(&cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.Close()

	ctx := context.Background()
	switch fs.Arg(0) {
	case "show":
		st, err := backend.Load(ctx)
		if errors.Is(err, persist.ErrNotFound) {
			fmt.Fprintf(stdout, "no stored state in %s (defaults apply)\n", cfg.Persistence.Path)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "namespace=%s %s\n", cfg.Persistence.Namespace, st)
		return nil
	case "erase":
		if err := backend.Erase(ctx); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "erased namespace %s in %s\n", cfg.Persistence.Namespace, cfg.Persistence.Path)
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("store: unknown command %q", fs.Arg(0))
	}
}
