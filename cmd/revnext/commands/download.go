package commands

import (
	"fmt"
	"os"
	"time"

	"revnext-reports/internal/reports"
	"revnext-reports/internal/revnext"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// downloadFlags are shared by every single report command.
type downloadFlags struct {
	out          string
	stdout       bool
	maxPolls     int
	pollInterval time.Duration
	maxRetries   int
	retryDelay   time.Duration
	label        string
}

func (f *downloadFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.out, "out", "o", "", "output file (default ./<report>.csv)")
	flags.BoolVar(&f.stdout, "stdout", false, "write the report to stdout instead of a file")
	flags.IntVar(&f.maxPolls, "max-polls", 60, "give up after this many status polls")
	flags.DurationVar(&f.pollInterval, "poll-interval", 2*time.Second, "time between status polls")
	flags.IntVar(&f.maxRetries, "max-retries", 3, "attempts per request")
	flags.DurationVar(&f.retryDelay, "retry-delay", 5*time.Second, "time between attempts of a request")
	flags.StringVar(&f.label, "label", "", "name used in logs and the run ledger")
}

func (f *downloadFlags) options() reports.DownloadOptions {
	return reports.DownloadOptions{
		OutputPath:   f.out,
		ReturnData:   f.stdout,
		MaxPolls:     f.maxPolls,
		PollInterval: f.pollInterval,
		MaxRetries:   f.maxRetries,
		RetryDelay:   f.retryDelay,
		Label:        f.label,
	}
}

func (f *downloadFlags) finish(cmd *cobra.Command, result revnext.Result) error {
	if f.stdout {
		_, err := os.Stdout.Write(result.Data)
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "saved", result.Path)
	return nil
}

// stringFlag returns the flag's value only when it was given explicitly.
func stringFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	value, _ := cmd.Flags().GetString(name)
	return &value
}

func boolFlag(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	value, _ := cmd.Flags().GetBool(name)
	return &value
}

var priceListDownload downloadFlags

func init() {
	flags := priceListCmd.Flags()
	flags.String("company", "", "company code (default 03)")
	flags.String("division", "", "division code (default 1)")
	flags.String("department", "", "department code (default 130)")
	flags.String("part-type", "", "stock or supplier (default stock)")
	flags.String("from-franchise", "", "")
	flags.String("to-franchise", "", "")
	flags.String("from-bin", "", "")
	flags.String("to-bin", "", "")
	flags.String("price1", "", "first price code, ex. L (default L)")
	flags.String("price2", "", "second price code, ex. S (default S)")
	flags.Bool("gst1", true, "first price includes GST")
	flags.Bool("gst2", true, "second price includes GST")
	priceListDownload.register(flags)
	rootCmd.AddCommand(priceListCmd)
}

var priceListCmd = &cobra.Command{
	Use:   "price-list",
	Short: "Downloads the Parts Price List report as CSV.",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		overrides := reports.PartsPriceListOverrides{
			Company:       stringFlag(cmd, "company"),
			Division:      stringFlag(cmd, "division"),
			Department:    stringFlag(cmd, "department"),
			FromFranchise: stringFlag(cmd, "from-franchise"),
			ToFranchise:   stringFlag(cmd, "to-franchise"),
			FromBin:       stringFlag(cmd, "from-bin"),
			ToBin:         stringFlag(cmd, "to-bin"),
			Price1:        stringFlag(cmd, "price1"),
			IncludeGst1:   boolFlag(cmd, "gst1"),
			Price2:        stringFlag(cmd, "price2"),
			IncludeGst2:   boolFlag(cmd, "gst2"),
		}
		partType := stringFlag(cmd, "part-type")
		if partType != nil {
			value := reports.PartType(*partType)
			if value != reports.PartTypeStock && value != reports.PartTypeSupplier {
				return fmt.Errorf("--part-type must be stock or supplier, got %q", *partType)
			}
			overrides.PartType = &value
		}

		result, err := e.downloader().PartsPriceList(
			cmd.Context(),
			overrides.Apply(reports.DefaultPartsPriceListParams()),
			priceListDownload.options(),
		)
		if err != nil {
			return err
		}
		return priceListDownload.finish(cmd, result)
	}),
}

var binDownload downloadFlags

func init() {
	flags := partsByBinCmd.Flags()
	flags.String("company", "", "company code")
	flags.String("division", "", "division code")
	flags.String("department", "", "department code")
	flags.String("from-department", "", "")
	flags.String("to-department", "", "")
	flags.String("from-franchise", "", "")
	flags.String("to-franchise", "", "")
	flags.String("from-bin", "", "")
	flags.String("to-bin", "", "")
	flags.String("from-movement-code", "", "")
	flags.String("to-movement-code", "", "")
	flags.String("stock", "", "available or physical (default available)")
	flags.Bool("print-not-zero", false, "print parts whose stock is not zero")
	flags.Bool("print-zero", false, "print parts whose stock is zero")
	flags.Bool("print-on-order-zero", false, "print parts whose stock and on order are zero")
	flags.Bool("no-primary-bin", false, "only parts without a primary bin")
	flags.Bool("no-alternate-bin", false, "only parts without an alternate bin")
	flags.Bool("alternate-only", false, "only parts with an alternate bin and no primary bin")
	flags.Bool("both-bins", false, "only parts with both a primary and an alternate bin")
	flags.Bool("average-cost", false, "print the average cost")
	flags.String("last-sale-before", "", "ISO date-time, ex. 2025-01-01T00:00:00.000+10:00")
	flags.String("last-receipt-before", "", "ISO date-time")
	binDownload.register(flags)
	rootCmd.AddCommand(partsByBinCmd)
}

var partsByBinCmd = &cobra.Command{
	Use:   "parts-by-bin",
	Short: "Downloads the Parts By Bin Location report as CSV.",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		overrides := reports.PartsByBinLocationOverrides{
			Company:                       stringFlag(cmd, "company"),
			Division:                      stringFlag(cmd, "division"),
			Department:                    stringFlag(cmd, "department"),
			FromDepartment:                stringFlag(cmd, "from-department"),
			ToDepartment:                  stringFlag(cmd, "to-department"),
			FromFranchise:                 stringFlag(cmd, "from-franchise"),
			ToFranchise:                   stringFlag(cmd, "to-franchise"),
			FromBin:                       stringFlag(cmd, "from-bin"),
			ToBin:                         stringFlag(cmd, "to-bin"),
			FromMovementCode:              stringFlag(cmd, "from-movement-code"),
			ToMovementCode:                stringFlag(cmd, "to-movement-code"),
			PrintWhenStockNotZero:         boolFlag(cmd, "print-not-zero"),
			PrintPartWhenStockZero:        boolFlag(cmd, "print-zero"),
			PrintPartWhenStockOnOrderZero: boolFlag(cmd, "print-on-order-zero"),
			NoPrimaryBinLocation:          boolFlag(cmd, "no-primary-bin"),
			NoAlternateBinLocation:        boolFlag(cmd, "no-alternate-bin"),
			NoPrimaryButHasAlternateBin:   boolFlag(cmd, "alternate-only"),
			HasBothPrimaryAndAlternateBin: boolFlag(cmd, "both-bins"),
			PrintAverageCost:              boolFlag(cmd, "average-cost"),
			LastSaleBefore:                stringFlag(cmd, "last-sale-before"),
			LastReceiptBefore:             stringFlag(cmd, "last-receipt-before"),
		}
		stock := stringFlag(cmd, "stock")
		if stock != nil {
			var value reports.StockType
			switch *stock {
			case "available":
				value = reports.AvailableStock
			case "physical":
				value = reports.PhysicalStock
			default:
				return fmt.Errorf("--stock must be available or physical, got %q", *stock)
			}
			overrides.ShowStockAs = &value
		}

		result, err := e.downloader().PartsByBinLocation(
			cmd.Context(),
			overrides.Apply(reports.DefaultPartsByBinLocationParams()),
			binDownload.options(),
		)
		if err != nil {
			return err
		}
		return binDownload.finish(cmd, result)
	}),
}
