package commands

import (
	"fmt"

	"revnext-reports/internal/enquiry"
	"revnext-reports/internal/revnext"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	enquirySupplier string
	enquiryCompany  string
	enquiryDivision string
	enquiryDept     string
)

func init() {
	flags := supplierPartCmd.Flags()
	flags.StringVar(&enquirySupplier, "supplier", "7001", "supplier id to load the part from, empty picks the first result")
	flags.StringVar(&enquiryCompany, "company", revnext.FallbackUserContext.CompanyId, "company code")
	flags.StringVar(&enquiryDivision, "division", revnext.FallbackUserContext.DivisionId, "division code")
	flags.StringVar(&enquiryDept, "department", revnext.FallbackUserContext.DepartmentId, "department code")
	rootCmd.AddCommand(supplierPartCmd)
}

var supplierPartCmd = &cobra.Command{
	Use:   "supplier-part <prtid>",
	Short: "Searches supplier parts by part number and prints the chosen part's details.",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		ctx := cmd.Context()
		s, err := e.provider.GetOrCreate(ctx, enquiry.SearchServiceObject)
		if err != nil {
			return err
		}

		opts := enquiry.Options{
			UserContext: &revnext.UserContext{
				CompanyId:    enquiryCompany,
				DivisionId:   enquiryDivision,
				DepartmentId: enquiryDept,
			},
			Retry: revnext.RetryOptions{
				Clock:     e.clock,
				Telemetry: e.tel,
			},
		}
		baseUrl := s.BaseUrl.String()

		rows, err := enquiry.Search(ctx, s, baseUrl, args[0], opts)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("no supplier parts found for %s", args[0])
		}

		results := NewTable()
		results.AppendHeader(table.Row{"Supplier", "Name", "Supplier Part", "Price", "Row Id"})
		for _, row := range rows {
			results.AppendRow(table.Row{
				row.SupplierId(), row.SupplierName(), row.SupplierPart(), row.SupplierPrice(), row.RowId(),
			})
		}
		results.Render()

		row, ok := enquiry.PickSupplier(rows, enquirySupplier)
		if !ok {
			return fmt.Errorf("supplier %s not found in results", enquirySupplier)
		}
		part, err := enquiry.Load(ctx, s, baseUrl, row.RowId(), opts)
		if err != nil {
			return err
		}

		details := NewTable()
		details.SetTitle("Part details")
		details.AppendRows([]table.Row{
			{"Part number", part.PartId()},
			{"Description", part.Description()},
			{"Supplier part", part.SupplierPart()},
			{"Supplier", fmt.Sprintf("%s (%s)", part.SupplierName(), part.SupplierId())},
		})
		for _, dimension := range part.Dimensions() {
			details.AppendRow(table.Row{dimension[0], dimension[1]})
		}
		details.Render()
		return nil
	}),
}
