package reports

import (
	"encoding/json"
	"testing"
	"time"

	"revnext-reports/internal/revnext"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 9, 41, 0, 0, time.FixedZone("AEST", 10*60*60))

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// decodeBody round trips a submission through json so assertions see
// exactly what goes on the wire.
func decodeBody(t *testing.T, body revnext.SubmitRequest) map[string]any {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func decodeParams(t *testing.T, body map[string]any) (row map[string]any, before map[string]any) {
	t.Helper()
	dataSets := body["dataSets"].([]any)
	require.Len(t, dataSets, 3)

	params := dataSets[2].(map[string]any)
	require.Equal(t, "dsParams", params["name"])
	inner := params["dataSet"].(map[string]any)["dsParams"].(map[string]any)
	require.Equal(t, true, inner["prods:hasChanges"])

	rows := inner["tt_params"].([]any)
	require.Len(t, rows, 1)
	beforeRows := inner["prods:before"].(map[string]any)["tt_params"].([]any)
	require.Len(t, beforeRows, 1)
	return rows[0].(map[string]any), beforeRows[0].(map[string]any)
}

func TestBuildPartsPriceListBody(t *testing.T) {
	params := DefaultPartsPriceListParams()
	params.Department = "145"
	params.PartType = PartTypeSupplier
	params.FromBin = "A01"

	body := decodeBody(t, BuildPartsPriceListBody(params, testNow))
	require.Equal(t, PriceListActivityTabId, body["activityTabId"])
	require.Equal(t, "03", body["_userContext_vg_coid"])
	require.Equal(t, "1", body["_userContext_vg_divid"])
	require.Equal(t, "145", body["_userContext_vg_dftdpt"])
	require.Equal(t, true, body["stopOnWarning"])
	require.Equal(t, false, body["validateOnly"])
	require.Equal(t, "ISC", body["uiType"])

	row, before := decodeParams(t, body)
	require.Equal(t, "p", row["prttyp"])
	require.Equal(t, "145", row["dptid"])
	require.Equal(t, "A01", row["binid"])
	require.Equal(t, "L", row["prctyp1"])
	require.Equal(t, "S", row["prctyp2"])
	require.Equal(t, true, row["incgst1"])
	require.Equal(t, true, row["csvout"])
	require.Equal(t, "p", row["submitopt"])
	require.Equal(t, "IM.RPT.PartsPriceListPR", row["activityid"])
	require.Equal(t, "Parts Price List", row["subject"])
	require.Nil(t, row["tasksts"])

	require.Equal(t, "p", before["prttyp"])
	require.Equal(t, false, before["csvout"])
	require.Equal(t, "", before["prctyp1"])

	trigger := body["dataSets"].([]any)[1].(map[string]any)
	require.Equal(t, "dsActivityTaskTriggers", trigger["name"])
	triggerRow := trigger["dataSet"].(map[string]any)["dsActivityTaskTriggers"].(map[string]any)["ttActivityTaskTrigger"].([]any)[0].(map[string]any)
	require.Equal(t, "2026-03-02T09:41:00.000+10:00", triggerRow["startDateTime"])
	require.Equal(t, float64(9), triggerRow["startHour"])
	require.Equal(t, float64(41), triggerRow["startMinute"])
}

func TestBuildPartsByBinLocationBody(t *testing.T) {
	params := DefaultPartsByBinLocationParams()
	params.Company = "04"
	params.Division = "2"
	params.Department = "430"
	params.FromDepartment = "430"
	params.ToDepartment = "430"
	params.PrintAverageCost = true
	params.LastSaleBefore = strPtr("2025-01-01T00:00:00.000+10:00")

	body := decodeBody(t, BuildPartsByBinLocationBody(params, testNow))
	require.Equal(t, BinActivityTabId, body["activityTabId"])
	require.Equal(t, "04", body["_userContext_vg_coid"])

	row, before := decodeParams(t, body)
	require.Equal(t, "A", row["stktyp"])
	require.Equal(t, "430", row["frmdptid"])
	require.Equal(t, "430", row["todptid"])
	require.Equal(t, true, row["prntavgcost"])
	require.Equal(t, "2025-01-01T00:00:00.000+10:00", row["lastsaledate"])
	require.Nil(t, row["lastreceiptdate"])
	require.Equal(t, "N", row["rptformat"])
	require.Equal(t, "Parts By Bin Location", row["subject"])

	require.Equal(t, "A", before["stktyp"])
	require.Equal(t, "430", before["frmdptid"])
	require.Equal(t, "", before["rptformat"])

	params.ShowStockAs = PhysicalStock
	row, _ = decodeParams(t, decodeBody(t, BuildPartsByBinLocationBody(params, testNow)))
	require.Equal(t, "P", row["stktyp"])
}

func TestPriceListValidate(t *testing.T) {
	params := DefaultPartsPriceListParams()
	require.NoError(t, params.Validate())

	params.Price1 = ""
	require.NoError(t, params.Validate())

	params.Price2 = "  "
	require.ErrorIs(t, params.Validate(), ErrNoPriceType)
}

func TestPriceListOverrides(t *testing.T) {
	supplier := PartTypeSupplier
	got := PartsPriceListOverrides{
		Department:  strPtr("330"),
		PartType:    &supplier,
		Price2:      strPtr("TG"),
		IncludeGst2: boolPtr(false),
	}.Apply(DefaultPartsPriceListParams())

	want := DefaultPartsPriceListParams()
	want.Department = "330"
	want.PartType = PartTypeSupplier
	want.Price2 = "TG"
	want.IncludeGst2 = false
	require.Empty(t, cmp.Diff(want, got))
}

func TestBinOverrides(t *testing.T) {
	physical := PhysicalStock
	base := DefaultPartsByBinLocationParams()
	base.LastSaleBefore = strPtr("2025-01-01")

	got := PartsByBinLocationOverrides{
		Department:       strPtr("130"),
		ShowStockAs:      &physical,
		PrintAverageCost: boolPtr(true),
	}.Apply(base)

	require.Equal(t, "130", got.Department)
	require.Equal(t, PhysicalStock, got.ShowStockAs)
	require.True(t, got.PrintAverageCost)
	require.Equal(t, "2025-01-01", *got.LastSaleBefore)
	require.Equal(t, "Parts by Bin Location - 130", got.Label())
	require.Equal(t, "Parts by Bin Location", DefaultPartsByBinLocationParams().Label())
}
