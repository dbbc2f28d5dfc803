package reports

import (
	"time"

	"revnext-reports/internal/revnext"
)

const (
	BinServiceObject = "Revolution.Activity.IM.RPT.PartsByBinLocationPR"
	BinActivityTabId = "Nce9eac79_528b_4fc4_a294_b055a6dde16b"
	BinReport        = "parts_by_bin_location"
	BinFileName      = "Parts_By_Bin_Location.csv"
)

type StockType string

const (
	PhysicalStock  StockType = "Physical Stock"
	AvailableStock StockType = "Available Stock"
)

func (s StockType) code() string {
	if s == PhysicalStock {
		return "P"
	}
	return "A"
}

// PartsByBinLocationParams are all empty by default, meaning no filter.
type PartsByBinLocationParams struct {
	Company    string
	Division   string
	Department string

	FromDepartment   string
	ToDepartment     string
	FromFranchise    string
	ToFranchise      string
	FromBin          string
	ToBin            string
	FromMovementCode string
	ToMovementCode   string

	ShowStockAs StockType

	PrintWhenStockNotZero         bool
	PrintPartWhenStockZero        bool
	PrintPartWhenStockOnOrderZero bool
	NoPrimaryBinLocation          bool
	NoAlternateBinLocation        bool
	NoPrimaryButHasAlternateBin   bool
	HasBothPrimaryAndAlternateBin bool
	PrintAverageCost              bool

	// LastSaleBefore and LastReceiptBefore are ISO date-times, nil means unset.
	LastSaleBefore    *string
	LastReceiptBefore *string
}

func DefaultPartsByBinLocationParams() PartsByBinLocationParams {
	return PartsByBinLocationParams{ShowStockAs: AvailableStock}
}

type PartsByBinLocationOverrides struct {
	Company    *string
	Division   *string
	Department *string

	FromDepartment   *string
	ToDepartment     *string
	FromFranchise    *string
	ToFranchise      *string
	FromBin          *string
	ToBin            *string
	FromMovementCode *string
	ToMovementCode   *string

	ShowStockAs *StockType

	PrintWhenStockNotZero         *bool
	PrintPartWhenStockZero        *bool
	PrintPartWhenStockOnOrderZero *bool
	NoPrimaryBinLocation          *bool
	NoAlternateBinLocation        *bool
	NoPrimaryButHasAlternateBin   *bool
	HasBothPrimaryAndAlternateBin *bool
	PrintAverageCost              *bool

	LastSaleBefore    *string
	LastReceiptBefore *string
}

func (o PartsByBinLocationOverrides) Apply(p PartsByBinLocationParams) PartsByBinLocationParams {
	override(&p.Company, o.Company)
	override(&p.Division, o.Division)
	override(&p.Department, o.Department)
	override(&p.FromDepartment, o.FromDepartment)
	override(&p.ToDepartment, o.ToDepartment)
	override(&p.FromFranchise, o.FromFranchise)
	override(&p.ToFranchise, o.ToFranchise)
	override(&p.FromBin, o.FromBin)
	override(&p.ToBin, o.ToBin)
	override(&p.FromMovementCode, o.FromMovementCode)
	override(&p.ToMovementCode, o.ToMovementCode)
	override(&p.ShowStockAs, o.ShowStockAs)
	override(&p.PrintWhenStockNotZero, o.PrintWhenStockNotZero)
	override(&p.PrintPartWhenStockZero, o.PrintPartWhenStockZero)
	override(&p.PrintPartWhenStockOnOrderZero, o.PrintPartWhenStockOnOrderZero)
	override(&p.NoPrimaryBinLocation, o.NoPrimaryBinLocation)
	override(&p.NoAlternateBinLocation, o.NoAlternateBinLocation)
	override(&p.NoPrimaryButHasAlternateBin, o.NoPrimaryButHasAlternateBin)
	override(&p.HasBothPrimaryAndAlternateBin, o.HasBothPrimaryAndAlternateBin)
	override(&p.PrintAverageCost, o.PrintAverageCost)
	if o.LastSaleBefore != nil {
		p.LastSaleBefore = o.LastSaleBefore
	}
	if o.LastReceiptBefore != nil {
		p.LastReceiptBefore = o.LastReceiptBefore
	}
	return p
}

// Label is the default run label, ex. "Parts by Bin Location - 130".
func (p PartsByBinLocationParams) Label() string {
	if p.Department == "" {
		return "Parts by Bin Location"
	}
	return "Parts by Bin Location - " + p.Department
}

type binParamsRow struct {
	paramsRow
	FromDepartment       string  `json:"frmdptid"`
	ToDepartment         string  `json:"todptid"`
	FromFranchise        string  `json:"frmfrnid"`
	ToFranchise          string  `json:"tofrnid"`
	FromBin              string  `json:"frmbinid"`
	ToBin                string  `json:"tobinid"`
	FromMovementCode     string  `json:"frmmovecode"`
	ToMovementCode       string  `json:"tomovecode"`
	StockType            string  `json:"stktyp"`
	PrintNotZero         bool    `json:"prntnotzero"`
	PrintZero            bool    `json:"prntzero"`
	PrintStockZero       bool    `json:"prntstkzero"`
	NoPrimaryBin         bool    `json:"noprimarybin"`
	NoAlternateBin       bool    `json:"noalternatebin"`
	HasAlternateOnly     bool    `json:"hasalternateonly"`
	BothPrimaryAlternate bool    `json:"bothprimaryalternate"`
	LastSaleDate         *string `json:"lastsaledate"`
	LastReceiptDate      *string `json:"lastreceiptdate"`
	PrintAverageCost     bool    `json:"prntavgcost"`
	ReportFormat         string  `json:"rptformat"`
	TaskType             string  `json:"tasktype"`
}

func BuildPartsByBinLocationBody(p PartsByBinLocationParams, now time.Time) revnext.SubmitRequest {
	row := binParamsRow{
		paramsRow:            submittedParamsRow(p.Company, p.Division, "IM.RPT.PartsByBinLocationPR", "Parts By Bin Location"),
		FromDepartment:       p.FromDepartment,
		ToDepartment:         p.ToDepartment,
		FromFranchise:        p.FromFranchise,
		ToFranchise:          p.ToFranchise,
		FromBin:              p.FromBin,
		ToBin:                p.ToBin,
		FromMovementCode:     p.FromMovementCode,
		ToMovementCode:       p.ToMovementCode,
		StockType:            p.ShowStockAs.code(),
		PrintNotZero:         p.PrintWhenStockNotZero,
		PrintZero:            p.PrintPartWhenStockZero,
		PrintStockZero:       p.PrintPartWhenStockOnOrderZero,
		NoPrimaryBin:         p.NoPrimaryBinLocation,
		NoAlternateBin:       p.NoAlternateBinLocation,
		HasAlternateOnly:     p.NoPrimaryButHasAlternateBin,
		BothPrimaryAlternate: p.HasBothPrimaryAndAlternateBin,
		LastSaleDate:         p.LastSaleBefore,
		LastReceiptDate:      p.LastReceiptBefore,
		PrintAverageCost:     p.PrintAverageCost,
		ReportFormat:         "N",
	}
	before := binParamsRow{
		paramsRow:      originalParamsRow(p.Company, p.Division),
		FromDepartment: p.FromDepartment,
		ToDepartment:   p.ToDepartment,
		StockType:      p.ShowStockAs.code(),
	}

	dataSets := revnext.ActivityTaskDataSets("ttActivityTask1827072", "ttActivityTaskTrigger1972480", now)
	dataSets = append(dataSets, revnext.ChangedDataSet(
		"dsParams", "tt_params",
		[]binParamsRow{row},
		map[string]any{"tt_params": []binParamsRow{before}},
	))

	return revnext.SubmitRequest{
		UserContext: &revnext.UserContext{
			CompanyId:    p.Company,
			DivisionId:   p.Division,
			DepartmentId: p.Department,
		},
		ActivityTabId: BinActivityTabId,
		DataSets:      dataSets,
		StopOnWarning: true,
		UiType:        revnext.UiType,
	}
}
