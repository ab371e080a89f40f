package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"strmatch/internal/config"
	"strmatch/internal/core"
)

// app carries state shared by subcommands once configuration is loaded.
type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "strmatch",
		Short: "Search STR profiles against a reference cell-line catalog",
		Long: `strmatch scores a query STR profile against every reference cell line of a
species and reports the best matches. Searches run from the command line or
through the HTTP API started by 'strmatch serve'.`,
		Version:       core.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.AddCommand(
		newServeCmd(a),
		newSearchCmd(a),
		newBatchCmd(a),
		newImportCmd(a),
		newSpeciesCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.Logger(a.stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) openCatalog(ctx context.Context) (core.CatalogStore, error) {
	return core.OpenCatalog(ctx, a.cfg.Storage)
}

func (a *app) newService(catalog core.Catalog, opts ...core.Option) *core.Service {
	base := []core.Option{
		core.WithLogger(a.logger),
		core.WithParallelism(a.cfg.Search.Parallelism),
	}
	return core.NewService(core.OverrideRelease(catalog, a.cfg.Release), append(base, opts...)...)
}
