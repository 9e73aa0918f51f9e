package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ligustah/photofetch/internal/config"
)

// newLedgerCmd prints the provenance records of a folder.
func newLedgerCmd(a *app) *cobra.Command {
	var flags config.Config
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print the provenance records of a folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg = cfg.Merge(flags)
			if cfg.Folder == "" {
				return exitWith(ExitInvalidArgs, "--folder is required")
			}

			folder, log, err := openFolder(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer folder.Close()
			defer log.Close()

			records, err := log.Records(cmd.Context())
			if err != nil {
				return exitWith(ExitStorageError, "read ledger: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "    ")
				if err := enc.Encode(records); err != nil {
					return exitWith(ExitGeneralError, "%w", err)
				}
				return nil
			}

			if len(records) == 0 {
				fmt.Fprintln(out, "No records.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SERIAL\tFILE\tCREATED\tURL")
			for _, rec := range records {
				created := "-"
				if !rec.CreatedAt.IsZero() {
					created = rec.CreatedAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", rec.Serial, rec.FileName, created, rec.URL)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&flags.Folder, "folder", "f", "", "Folder: local directory or bucket URL")
	cmd.Flags().StringVar(&flags.Ledger, "ledger", "", "Ledger backend: json, bolt or sqlite (default json)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}
