package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"strmatch/internal/adapters/search"
)

func newBatchCmd(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Run every search of a JSON array file",
		Long: `Run the searches described by FILE, a JSON array of objects holding the same
keys as the HTTP API. Samples without a description are named "Sample N".
JSON output is an array of searches; CSV output is a zip archive holding one
CSV file per search.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open batch: %w", err)
			}
			raws, err := search.DecodeBatch(in)
			_ = in.Close()
			if err != nil {
				return err
			}
			f, err := search.BatchOutputFormat(raws)
			if err != nil {
				return err
			}
			if format != "" {
				if f, err = search.OutputFormat(map[string]string{"outputFormat": format}); err != nil {
					return err
				}
			}

			store, err := a.openCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			results, err := a.newService(store).Batch(cmd.Context(), raws)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return search.RenderBatch(a.stdout, f, results)
			}
			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer func() {
				if cerr := out.Close(); cerr != nil && err == nil {
					err = fmt.Errorf("close output: %w", cerr)
				}
			}()
			return search.RenderBatch(out, f, results)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "override the output format: json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
