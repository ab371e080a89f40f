package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"strmatch/pkg/domain"
)

func newSpeciesCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "species",
		Short: "List supported species and their marker catalogs",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			all := domain.AllSpecies()
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			if _, err := fmt.Fprintln(tw, "NAME\tCODES\tMARKERS"); err != nil {
				return err
			}
			for _, sp := range all {
				if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", sp.Name, strings.Join(sp.Codes, ","), strings.Join(sp.Markers(), ",")); err != nil {
					return err
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
