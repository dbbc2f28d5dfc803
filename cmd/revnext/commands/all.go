package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"revnext-reports/internal/components/configutil"
	"revnext-reports/internal/reports"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// AllConfig is the job file read by the all command, ex.
//
//	{
//		out_dir: "exports",
//		targets: [{company: "03", division: "1", department: "130", label: "MCT_Parts_Accessories"}],
//	}
type AllConfig struct {
	OutDir              string           `json:"out_dir"`
	MaxPolls            int              `json:"max_polls"`
	PollIntervalSeconds int              `json:"poll_interval_seconds"`
	Targets             []reports.Target `json:"targets"`
}

var (
	allConfigPath string
	allOutDir     string
)

func init() {
	allCmd.Flags().StringVar(&allConfigPath, "config", "reports.json5", "job file, reports.local.json5 overrides it")
	allCmd.Flags().StringVar(&allOutDir, "out-dir", "", "directory to write reports to (default out_dir or .)")
	rootCmd.AddCommand(allCmd)
}

func readAllConfig(path string) (AllConfig, error) {
	cfg, err := configutil.ReadConfig[AllConfig](path)
	if os.IsNotExist(err) {
		return AllConfig{}, nil
	}
	return cfg, err
}

var allCmd = &cobra.Command{
	Use:   "all [--config reports.json5] [--out-dir <dir>]",
	Short: "Downloads the price list and bin location reports for every configured department.",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		cfg, err := readAllConfig(allConfigPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", allConfigPath, err)
		}
		targets := cfg.Targets
		if len(targets) == 0 {
			targets = reports.DefaultTargets
		}
		outDir := allOutDir
		if outDir == "" {
			outDir = cfg.OutDir
		}
		if outDir == "" {
			outDir = "."
		}

		start := e.clock.Now()
		written, err := e.downloader().DownloadAll(cmd.Context(), targets, outDir, reports.AllOptions{
			MaxPolls:     cfg.MaxPolls,
			PollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		})

		t := NewTable()
		t.AppendHeader(table.Row{"File"})
		for _, path := range written {
			t.AppendRow(table.Row{filepath.Base(path)})
		}
		t.AppendFooter(table.Row{fmt.Sprintf("%d file(s) in %s", len(written), e.clock.Now().Sub(start).Round(time.Second))})
		t.Render()

		return err
	}),
}
