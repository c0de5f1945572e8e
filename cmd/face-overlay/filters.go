package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ironsheep/face-overlay/internal/filters"
)

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "List the available face filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := filters.NewRegistry(cfg.AssetBase)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tGLYPH\tARTWORK\tDESCRIPTION")
		for _, f := range registry.List() {
			art := "-"
			if f.Visual.Asset != nil {
				art = f.Visual.Asset.Locator
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.DisplayName, f.Visual.Glyph, art, f.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(filtersCmd)
}
