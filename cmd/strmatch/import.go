package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"strmatch/pkg/domain"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the configured catalog with a JSON catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			snapshot, err := domain.DecodeCatalog(in)
			_ = in.Close()
			if err != nil {
				return err
			}
			if snapshot.Release == "" {
				snapshot.Release = a.cfg.Release
			}
			store, err := a.openCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Import(cmd.Context(), snapshot); err != nil {
				return fmt.Errorf("import catalog: %w", err)
			}
			a.logger.Info("catalog imported", "records", len(snapshot.Records), "release", snapshot.Release, "driver", a.cfg.Storage.Driver)
			_, err = fmt.Fprintf(a.stdout, "imported %d records (release %q)\n", len(snapshot.Records), snapshot.Release)
			return err
		},
	}
}
