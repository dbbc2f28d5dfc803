package reports

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Target is one company/division/department combination to download both
// reports for, Label names the output files.
type Target struct {
	Company    string `json:"company"`
	Division   string `json:"division"`
	Department string `json:"department"`
	Label      string `json:"label"`
}

var DefaultTargets = []Target{
	{Company: "03", Division: "1", Department: "130", Label: "MCT_Parts_Accessories"},
	{Company: "03", Division: "1", Department: "145", Label: "MCT_Tyres"},
	{Company: "03", Division: "1", Department: "330", Label: "Ingham_Toyota"},
	{Company: "04", Division: "2", Department: "430", Label: "Charters_Towers_Partnership"},
}

func (t Target) fileName(report string) string {
	return fmt.Sprintf("%s_%s_%s_%s_%s.csv", report, t.Label, t.Company, t.Division, t.Department)
}

type AllOptions struct {
	// MaxPolls defaults to 180 since full department reports are slow.
	MaxPolls     int
	PollInterval time.Duration
}

// DownloadAll downloads the price list and bin location reports for every
// target into outDir, one after the other. It stops at the first failure and
// returns the paths written so far.
func (d Downloader) DownloadAll(ctx context.Context, targets []Target, outDir string, opts AllOptions) ([]string, error) {
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 180
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}

	var written []string
	for _, target := range targets {
		priceList := DefaultPartsPriceListParams()
		priceList.Company = target.Company
		priceList.Division = target.Division
		priceList.Department = target.Department

		path := filepath.Join(outDir, target.fileName("Parts_Price_List"))
		d.Telemetry.ReportInfo(
			fmt.Sprintf("downloading Parts Price List: %s (%s/%s/%s)", target.Label, target.Company, target.Division, target.Department),
			filepath.Base(path),
		)
		result, err := d.PartsPriceList(ctx, priceList, DownloadOptions{
			OutputPath:   path,
			MaxPolls:     opts.MaxPolls,
			PollInterval: opts.PollInterval,
		})
		if err != nil {
			return written, err
		}
		written = append(written, result.Path)

		bin := DefaultPartsByBinLocationParams()
		bin.Company = target.Company
		bin.Division = target.Division
		bin.Department = target.Department
		bin.FromDepartment = target.Department
		bin.ToDepartment = target.Department

		path = filepath.Join(outDir, target.fileName("Parts_By_Bin_Location"))
		d.Telemetry.ReportInfo(
			fmt.Sprintf("downloading Parts By Bin Location: %s (%s/%s/%s)", target.Label, target.Company, target.Division, target.Department),
			filepath.Base(path),
		)
		result, err = d.PartsByBinLocation(ctx, bin, DownloadOptions{
			OutputPath:   path,
			MaxPolls:     opts.MaxPolls,
			PollInterval: opts.PollInterval,
		})
		if err != nil {
			return written, err
		}
		written = append(written, result.Path)
	}
	return written, nil
}
