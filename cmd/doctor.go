package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crawlkit/crawlkit/internal/doctor"
)

// newDoctorCmd creates the 'doctor' subcommand, which diagnoses the local
// environment and prints a Markdown report.
func newDoctorCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the environment and print a report",
		Long: `Runs configuration, filesystem, browser, DNS and network checks and
prints a Markdown report. Exits non-zero when any check fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			results := doctor.New(a.cfg, a.logger).Run(cmd.Context())

			var out io.Writer = os.Stdout
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("create report file: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}
			if err := doctor.WriteReport(out, results); err != nil {
				return err
			}
			if doctor.Failed(results) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the report to this file instead of stdout")
	return cmd
}
