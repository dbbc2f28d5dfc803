package enquiry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"revnext-reports/internal/revnext"
	"revnext-reports/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/enquiry")

const (
	SearchServiceObject = "Revolution.Activity.IM.INQ.SupplierPartDashPR"
	LoadServiceObject   = "Revolution.Activity.IM.INQ.SupplierPartPR"
	ActivityTabId       = "Ne2c02942_66b0_42b3_bb47_a5d466a3f3b4"

	searchParentActivity = "IM.INQ.SupplierPartDash"
)

var ErrNotFound = errors.New("supplier part not found")

// Row is a single dataset row, the DMS returns dozens of columns so only
// the ones used here get accessors.
type Row map[string]any

// Text returns the column as text, numbers keep their shortest form and
// missing or null columns are empty.
func (r Row) Text(column string) string {
	switch v := r[column].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// RowId is the x_rowid to pass to Load.
func (r Row) RowId() string        { return r.Text("x_rowid") }
func (r Row) PartId() string       { return r.Text("prtid") }
func (r Row) Description() string  { return r.Text("prtdsc") }
func (r Row) SupplierId() string   { return r.Text("supid") }
func (r Row) SupplierName() string { return r.Text("spnam") }
func (r Row) SupplierPart() string { return r.Text("supprt") }
func (r Row) SupplierPrice() string {
	return r.Text("supprc")
}

// Measure returns a value with its unit, ex. "12.5 cm".
func (r Row) Measure(value, unit string) string {
	return strings.TrimSpace(r.Text(value) + " " + r.Text(unit))
}

// Dimensions lists the physical measurements of a loaded part in display
// order.
func (r Row) Dimensions() [][2]string {
	return [][2]string{
		{"Length", r.Measure("prtlen", "untlen")},
		{"Width", r.Measure("prtwdt", "untwdt")},
		{"Height", r.Measure("prthgt", "unthgt")},
		{"Volume", r.Measure("prtvol", "untvol")},
		{"Weight", r.Measure("prtwgt", "untwgt")},
	}
}

type Options struct {
	// UserContext defaults to the fallback codes when nil.
	UserContext *revnext.UserContext
	// BatchSize is the maximum number of search results, 0 means 50.
	BatchSize int
	Retry     revnext.RetryOptions
}

func (o Options) userContext() revnext.UserContext {
	if o.UserContext == nil {
		return revnext.FallbackUserContext
	}
	return *o.UserContext
}

type searchRequest struct {
	revnext.UserContext
	ActivityTabId string `json:"activityTabId"`
	BatchSize     int    `json:"batchSize"`
	PartId        string `json:"prtid"`
	UiType        string `json:"uiType"`
}

type loadRequest struct {
	CtrlProp       []revnext.CtrlProp `json:"ctrlProp"`
	ParentActivity string             `json:"parentActivity"`
	UiType         string             `json:"uiType"`
	revnext.UserContext
	ActivityTabId string `json:"activityTabId"`
	LoadMode      string `json:"loadMode"`
	LoadRowid     string `json:"loadRowid"`
}

// tableRows returns the rows of table inside the first dataset called name.
func tableRows(raw json.RawMessage, name, table string) ([]Row, error) {
	var res revnext.LoadDataResponse
	err := json.Unmarshal(raw, &res)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	for _, ds := range res.DataSets {
		if ds.Name != name {
			continue
		}
		// tables sit next to prods:* flags, so only the wanted one is decoded
		var inner map[string]map[string]json.RawMessage
		err = json.Unmarshal(ds.DataSet, &inner)
		if err != nil {
			return nil, fmt.Errorf("decode dataset %s: %w", name, err)
		}
		rawRows, ok := inner[name][table]
		if !ok {
			return nil, nil
		}
		var rows []Row
		err = json.Unmarshal(rawRows, &rows)
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", name, table, err)
		}
		return rows, nil
	}
	return nil, nil
}

// Search finds the supplier parts matching partId, every row carries the
// x_rowid Load needs.
func Search(ctx context.Context, s *session.Session, baseUrl, partId string, opts Options) ([]Row, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()
	span.SetAttributes(attribute.String("part_id", partId))

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	retry := opts.Retry
	retry.Step = "getResults"

	s.SetServiceObject(SearchServiceObject)
	raw, err := revnext.PostJSON(ctx, s, revnext.Endpoint(baseUrl, "static/getResults"), searchRequest{
		UserContext:   opts.userContext(),
		ActivityTabId: ActivityTabId,
		BatchSize:     batchSize,
		PartId:        partId,
		UiType:        revnext.UiType,
	}, retry)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rows, err := tableRows(raw, "dsResult", "tt_results")
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", len(rows)))
	return rows, nil
}

// Load fetches the full supplier part for a row id from Search, it returns
// ErrNotFound when the DMS sends no part row.
func Load(ctx context.Context, s *session.Session, baseUrl, rowId string, opts Options) (Row, error) {
	ctx, span := tracer.Start(ctx, "Load")
	defer span.End()

	retry := opts.Retry
	retry.Step = "loadData"

	s.SetServiceObject(LoadServiceObject)
	raw, err := revnext.PostJSON(ctx, s, revnext.Endpoint(baseUrl, "static/loadData"), loadRequest{
		CtrlProp:       []revnext.CtrlProp{{Name: "dummy", Prop: "LOADDATA", Value: rowId}},
		ParentActivity: searchParentActivity,
		UiType:         revnext.UiType,
		UserContext:    opts.userContext(),
		ActivityTabId:  ActivityTabId + "_Overview",
		LoadMode:       "VIEW",
		LoadRowid:      rowId,
	}, retry)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rows, err := tableRows(raw, "dsPart", "tt_part")
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rowId)
	}
	return rows[0], nil
}

// PickSupplier returns the row for supplierId, or the first row when no
// supplier is given.
func PickSupplier(rows []Row, supplierId string) (Row, bool) {
	if len(rows) == 0 {
		return nil, false
	}
	if supplierId == "" {
		return rows[0], true
	}
	for _, row := range rows {
		if row.SupplierId() == supplierId {
			return row, true
		}
	}
	return nil, false
}
