package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcrae/wrangler/internal/config"
	"github.com/jmcrae/wrangler/internal/doctor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment before a run",
	Long: `Doctor verifies required binaries are on PATH and warns when free
disk or memory is below the configured advisory minimums.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	results := doctor.Run(cfg, cwd)
	for _, r := range results {
		switch r.Severity {
		case doctor.SeverityOK:
			fmt.Printf("%s %-14s %s\n", successStyle.Render("ok  "), r.Name, mutedStyle.Render(r.Detail))
		case doctor.SeverityWarn:
			fmt.Printf("%s %-14s %s\n", warningStyle.Render("warn"), r.Name, r.Detail)
		case doctor.SeverityFail:
			fmt.Printf("%s %-14s %s\n", errorStyle.Render("fail"), r.Name, r.Detail)
		}
	}
	return doctor.Fatal(results)
}
