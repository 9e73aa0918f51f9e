package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ligustah/photofetch/internal/config"
	"github.com/ligustah/photofetch/pkg/ledger"
)

// newVerifyCmd checks that a folder and its ledger agree. It reports status
// without reading any image data.
func newVerifyCmd(a *app) *cobra.Command {
	var flags config.Config

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that every ledger record has its file and every file its record",
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

			result, err := ledger.Verify(cmd.Context(), folder.Bucket(), log, ledger.VerifyOptions{
				FilePrefix: filePrefix(cfg.FilePattern),
			})
			if err != nil {
				return exitWith(ExitStorageError, "%w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Folder: %s\n", folder.Location())
			fmt.Fprintf(out, "Records: %d\n", result.Records)
			if result.Records > 0 {
				fmt.Fprintf(out, "Serials: %d-%d\n", result.FirstSerial, result.LastSerial)
			}
			if len(result.SerialGaps) > 0 {
				gaps := make([]string, len(result.SerialGaps))
				for i, g := range result.SerialGaps {
					gaps[i] = g.String()
				}
				fmt.Fprintf(out, "Skipped serials: %s\n", strings.Join(gaps, ", "))
			}

			if result.Valid {
				fmt.Fprintln(out, "Status: VALID")
				return nil
			}

			fmt.Fprintln(out, "Status: INVALID")
			fmt.Fprintf(out, "Missing files: %d\n", len(result.MissingFiles))
			fmt.Fprintf(out, "Untracked files: %d\n", len(result.Untracked))

			if len(result.Errors) > 0 {
				fmt.Fprintln(out, "\nErrors:")
				for _, e := range result.Errors {
					fmt.Fprintf(out, "  - %s\n", e)
				}
			}
			return exitWith(ExitValidationFailed, "folder %s does not match its ledger", folder.Location())
		},
	}

	cmd.Flags().StringVarP(&flags.Folder, "folder", "f", "", "Folder: local directory or bucket URL")
	cmd.Flags().StringVar(&flags.Ledger, "ledger", "", "Ledger backend: json, bolt or sqlite (default json)")
	cmd.Flags().StringVar(&flags.FilePattern, "file-pattern", "", "Base file name pattern used when fetching (default image_%d)")
	return cmd
}

// filePrefix returns the literal part of a file pattern before the serial.
func filePrefix(pattern string) string {
	prefix, _, _ := strings.Cut(pattern, "%")
	return prefix
}
