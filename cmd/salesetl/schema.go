package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"salesetl/internal/warehouse"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the warehouse tables if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			wh := a.manager()
			defer a.release(wh, &err)

			h, err := wh.Acquire(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s store at %s\n", h.Dialect().Name(), a.cfg.Storage.Path)
			for _, t := range warehouse.Tables() {
				n, err := h.Count(cmd.Context(), t)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "  %-18s %d rows\n", t, n)
			}
			return nil
		},
	}
}
