package reports

import (
	"context"
	"errors"
	"strings"
	"time"

	"revnext-reports/internal/revnext"
	"revnext-reports/internal/session"
)

const (
	PriceListServiceObject = "Revolution.Activity.IM.RPT.PartsPriceListPR"
	PriceListActivityTabId = "N78b54de4_7cdc_43e0_9e42_71a49bec44f2"
	PriceListReport        = "parts_price_list"
	PriceListFileName      = "Parts_Price_List.csv"
)

var ErrNoPriceType = errors.New(
	"at least one price type must be selected to print a price listing, set price 1 and/or price 2 (ex. L and S)",
)

type PartType string

const (
	PartTypeStock    PartType = "stock"
	PartTypeSupplier PartType = "supplier"
)

func (t PartType) code() string {
	if t == PartTypeSupplier {
		return "p"
	}
	return "s"
}

type PartsPriceListParams struct {
	Company    string
	Division   string
	Department string
	PartType   PartType

	FromFranchise string
	ToFranchise   string
	FromBin       string
	ToBin         string

	// Price1 and Price2 are DMS price codes, ex. L (list), S (stock), TG.
	Price1      string
	IncludeGst1 bool
	Price2      string
	IncludeGst2 bool
}

func DefaultPartsPriceListParams() PartsPriceListParams {
	return PartsPriceListParams{
		Company:     "03",
		Division:    "1",
		Department:  "130",
		PartType:    PartTypeStock,
		Price1:      "L",
		IncludeGst1: true,
		Price2:      "S",
		IncludeGst2: true,
	}
}

func (p PartsPriceListParams) Validate() error {
	if strings.TrimSpace(p.Price1) == "" && strings.TrimSpace(p.Price2) == "" {
		return ErrNoPriceType
	}
	return nil
}

// PartsPriceListOverrides are individual values that win over a params
// object, nil fields leave the params value alone.
type PartsPriceListOverrides struct {
	Company    *string
	Division   *string
	Department *string
	PartType   *PartType

	FromFranchise *string
	ToFranchise   *string
	FromBin       *string
	ToBin         *string

	Price1      *string
	IncludeGst1 *bool
	Price2      *string
	IncludeGst2 *bool
}

func (o PartsPriceListOverrides) Apply(p PartsPriceListParams) PartsPriceListParams {
	override(&p.Company, o.Company)
	override(&p.Division, o.Division)
	override(&p.Department, o.Department)
	override(&p.PartType, o.PartType)
	override(&p.FromFranchise, o.FromFranchise)
	override(&p.ToFranchise, o.ToFranchise)
	override(&p.FromBin, o.FromBin)
	override(&p.ToBin, o.ToBin)
	override(&p.Price1, o.Price1)
	override(&p.IncludeGst1, o.IncludeGst1)
	override(&p.Price2, o.Price2)
	override(&p.IncludeGst2, o.IncludeGst2)
	return p
}

func override[T any](dst *T, value *T) {
	if value != nil {
		*dst = *value
	}
}

type priceListParamsRow struct {
	paramsRow
	PartType      string `json:"prttyp"`
	DepartmentId  string `json:"dptid"`
	FromFranchise string `json:"frnid"`
	ToFranchise   string `json:"frnidto"`
	FromBin       string `json:"binid"`
	ToBin         string `json:"binidto"`
	Price1        string `json:"prctyp1"`
	Price2        string `json:"prctyp2"`
	IncludeGst1   bool   `json:"incgst1"`
	IncludeGst2   bool   `json:"incgst2"`
	ExportExcel   bool   `json:"exportexcel"`
	TaskType      string `json:"tasktype"`
}

// BuildPartsPriceListBody builds the submission for p with its trigger at now.
func BuildPartsPriceListBody(p PartsPriceListParams, now time.Time) revnext.SubmitRequest {
	row := priceListParamsRow{
		paramsRow:     submittedParamsRow(p.Company, p.Division, "IM.RPT.PartsPriceListPR", "Parts Price List"),
		PartType:      p.PartType.code(),
		DepartmentId:  p.Department,
		FromFranchise: p.FromFranchise,
		ToFranchise:   p.ToFranchise,
		FromBin:       p.FromBin,
		ToBin:         p.ToBin,
		Price1:        p.Price1,
		Price2:        p.Price2,
		IncludeGst1:   p.IncludeGst1,
		IncludeGst2:   p.IncludeGst2,
	}
	before := priceListParamsRow{
		paramsRow:    originalParamsRow(p.Company, p.Division),
		PartType:     p.PartType.code(),
		DepartmentId: p.Department,
	}

	dataSets := revnext.ActivityTaskDataSets("ttActivityTask1945856", "ttActivityTaskTrigger1786112", now)
	dataSets = append(dataSets, revnext.ChangedDataSet(
		"dsParams", "tt_params",
		[]priceListParamsRow{row},
		map[string]any{"tt_params": []priceListParamsRow{before}},
	))

	return revnext.SubmitRequest{
		UserContext: &revnext.UserContext{
			CompanyId:    p.Company,
			DivisionId:   p.Division,
			DepartmentId: p.Department,
		},
		ActivityTabId: PriceListActivityTabId,
		DataSets:      dataSets,
		StopOnWarning: true,
		ValidateOnly:  false,
		UiType:        revnext.UiType,
	}
}

type closeSubmitRequest struct {
	revnext.UserContext
	ActivityTabId string             `json:"activityTabId"`
	CtrlProp      []revnext.CtrlProp `json:"ctrlProp"`
	UiType        string             `json:"uiType"`
}

// closeSubmitHook presses the screen's close/submit button, the price list
// task does not start generating without it.
func closeSubmitHook(p PartsPriceListParams, retry revnext.RetryOptions) func(ctx context.Context, s *session.Session) error {
	return func(ctx context.Context, s *session.Session) error {
		retry.Step = "onChoose_btn_closesubmit"
		return revnext.Post(
			ctx, s,
			revnext.Endpoint(s.BaseUrl.String(), "presenter/onChoose_btn_closesubmit"),
			closeSubmitRequest{
				UserContext: revnext.UserContext{
					CompanyId:    p.Company,
					DivisionId:   p.Division,
					DepartmentId: p.Department,
				},
				ActivityTabId: PriceListActivityTabId,
				CtrlProp: []revnext.CtrlProp{
					{Name: "tt_params.submitopt", Prop: "SCREENVALUE", Value: "p"},
				},
				UiType: revnext.UiType,
			},
			retry,
		)
	}
}
