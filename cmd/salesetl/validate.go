package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"salesetl/internal/config"
	"salesetl/internal/etl"
)

func newValidateCmd(a *app) *cobra.Command {
	var withSource bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the pipeline config",
		Long: `Lints the pipeline config and prints every issue. With --source the
configured source is also opened and its header and first rows parsed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			issues := config.ValidatePipeline(a.cfg)
			for _, iss := range issues {
				fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if n := len(config.Errors(issues)); n > 0 {
				return fmt.Errorf("config has %d error(s)", n)
			}
			if !withSource {
				fmt.Fprintln(w, "config ok")
				return nil
			}

			src, err := etl.NewSource(cmd.Context(), a.cfg.Source, a.logger)
			if err != nil {
				return err
			}
			info, err := etl.ValidateSource(cmd.Context(), src, etl.ParserOptions(a.cfg.Parser), a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "source ok: %s\n", info.Name)
			fmt.Fprintf(w, "  columns:     %d\n", len(info.Columns))
			fmt.Fprintf(w, "  sample rows: %d\n", info.SampleRows)
			if info.SizeMB >= 0 {
				fmt.Fprintf(w, "  size:        %.2f MB\n", info.SizeMB)
			}
			if info.SampleRows == 0 {
				return errors.New("source has a header but no rows")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withSource, "source", false, "also open and sample the configured source")
	return cmd
}
