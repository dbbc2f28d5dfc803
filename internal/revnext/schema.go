package revnext

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	UiType = "ISC"

	dataSetActivityTask = "dsActivityTask"
	ctrlPropPollDone    = "button.autoPollResponse"
	pollDoneValue       = "-1"
)

// UserContext are the company/division/department codes the DMS expects on
// every request of one job.
type UserContext struct {
	CompanyId    string `json:"_userContext_vg_coid"`
	DivisionId   string `json:"_userContext_vg_divid"`
	DepartmentId string `json:"_userContext_vg_dftdpt"`
}

// FallbackUserContext is echoed into poll and load requests when the submit
// body carries no user context.
var FallbackUserContext = UserContext{
	CompanyId:    "03",
	DivisionId:   "1",
	DepartmentId: "570",
}

// CtrlProp is a UI field like name/value pair.
type CtrlProp struct {
	Name  string `json:"name"`
	Prop  string `json:"prop,omitempty"`
	Value any    `json:"value"`
}

// RequestDataSet is one dataset of a request body, DataSet is keyed by the
// dataset name.
type RequestDataSet struct {
	Name    string                    `json:"name"`
	Id      *string                   `json:"id"`
	DataSet map[string]map[string]any `json:"dataSet"`
}

// ChangedDataSet builds a dataset the way the DMS web client sends new or
// edited rows: rows go under table and before holds the previous row images.
func ChangedDataSet(name, table string, rows any, before map[string]any) RequestDataSet {
	if before == nil {
		before = map[string]any{}
	}
	return RequestDataSet{
		Name: name,
		DataSet: map[string]map[string]any{
			name: {
				"prods:hasChanges": true,
				table:              rows,
				"prods:before":     before,
			},
		},
	}
}

// SubmitRequest is the body of static/submitActivityTask. A nil UserContext
// leaves the codes out of the body entirely.
type SubmitRequest struct {
	*UserContext
	ActivityTabId string           `json:"activityTabId"`
	DataSets      []RequestDataSet `json:"dataSets"`
	StopOnWarning bool             `json:"stopOnWarning"`
	ValidateOnly  bool             `json:"validateOnly"`
	UiType        string           `json:"uiType"`
}

// EchoedUserContext returns the codes poll and load requests must carry.
func (r SubmitRequest) EchoedUserContext() UserContext {
	if r.UserContext == nil {
		return FallbackUserContext
	}
	return *r.UserContext
}

const (
	MessageError   = "ERROR"
	MessageWarning = "WARNING"
)

type SubmitMessage struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

type ResponseDataSet struct {
	Name    string          `json:"name"`
	DataSet json.RawMessage `json:"dataSet"`
}

type SubmitResponse struct {
	SubmittedSuccess bool              `json:"submittedSuccess"`
	ErrorTable       []SubmitMessage   `json:"errorTable"`
	DataSets         []ResponseDataSet `json:"dataSets"`
}

type PollRequest struct {
	UserContext
	ActivityTabId string     `json:"activityTabId"`
	CtrlProp      []CtrlProp `json:"ctrlProp"`
	UiType        string     `json:"uiType"`
}

type PollResponse struct {
	CtrlProp []CtrlProp `json:"ctrlProp"`
}

type LoadDataRequest struct {
	TaskId         string     `json:"taskID"`
	CtrlProp       []CtrlProp `json:"ctrlProp"`
	ParentActivity *string    `json:"parentActivity"`
	HistoryId      string     `json:"historyID"`
	TabId          string     `json:"tabID"`
	ActivityType   string     `json:"activityType"`
	FluidService   string     `json:"fluidService"`
	UiType         string     `json:"uiType"`
	UserContext
	ActivityTabId string `json:"activityTabId"`
	LoadMode      string `json:"loadMode"`
	LoadRowid     string `json:"loadRowid"`
}

type LoadDataResponse struct {
	DataSets []ResponseDataSet `json:"dataSets"`
}

type activityTaskDataSet struct {
	DsActivityTask struct {
		TtActivityTask []struct {
			TaskId any `json:"taskID"`
		} `json:"ttActivityTask"`
		TtActivityTaskResponse []struct {
			ResponseUrl any `json:"responseUrl"`
		} `json:"ttActivityTaskResponse"`
	} `json:"dsActivityTask"`
}

func activityTaskDataSets(dataSets []ResponseDataSet) []activityTaskDataSet {
	var out []activityTaskDataSet
	for _, ds := range dataSets {
		if ds.Name != dataSetActivityTask {
			continue
		}
		var parsed activityTaskDataSet
		err := json.Unmarshal(ds.DataSet, &parsed)
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}
	return out
}

// a non-empty string, or the textual form of a number
func nonEmptyText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), v != 0
	}
	return "", false
}

// ExtractTaskId finds the id of the created task in a submit response.
func ExtractTaskId(res SubmitResponse) (string, bool) {
	for _, ds := range activityTaskDataSets(res.DataSets) {
		for _, row := range ds.DsActivityTask.TtActivityTask {
			id, ok := nonEmptyText(row.TaskId)
			if ok {
				return id, true
			}
		}
	}
	return "", false
}

// IsPollDone is true when the autoPollResponse button carries the string "-1".
func IsPollDone(res PollResponse) bool {
	for _, prop := range res.CtrlProp {
		if prop.Name != ctrlPropPollDone {
			continue
		}
		value, ok := prop.Value.(string)
		if ok && value == pollDoneValue {
			return true
		}
	}
	return false
}

// ResponseUrl finds the report output url in a loadData response.
func ResponseUrl(res LoadDataResponse) (string, bool) {
	for _, ds := range activityTaskDataSets(res.DataSets) {
		for _, row := range ds.DsActivityTask.TtActivityTaskResponse {
			url, ok := row.ResponseUrl.(string)
			if ok && url != "" {
				return url, true
			}
		}
	}
	return "", false
}

// ActivityTaskDataSets are the task and trigger datasets every report
// submission starts with, the trigger runs once at now which must already be
// in the DMS timezone.
func ActivityTaskDataSets(taskRowId, triggerRowId string, now time.Time) []RequestDataSet {
	task := map[string]any{
		"prods:id":               taskRowId,
		"prods:rowState":         "created",
		"fldId":                  1,
		"taskID":                 "",
		"loadRowidPassThrough":   "dummy",
		"executeActivityTaskNow": false,
		"executedAt":             nil,
		"logMessages":            "",
		"startTime":              nil,
		"endTime":                nil,
	}

	startDate := now.Format("2006-01-02")
	trigger := map[string]any{
		"prods:id":            triggerRowId,
		"prods:rowState":      "created",
		"fldId":               1,
		"mode":                "O",
		"startDateTime":       now.Format("2006-01-02T15:04") + ":00.000+10:00",
		"startDate":           startDate + "T00:00:00.000+10:00",
		"startHour":           now.Hour(),
		"startMinute":         now.Minute(),
		"recurEvery":          1,
		"recurEveryUOM":       "days",
		"weeklySun":           false,
		"weeklyMon":           false,
		"weeklyTue":           false,
		"weeklyWed":           false,
		"weeklyThu":           false,
		"weeklyFri":           false,
		"weeklySat":           false,
		"monthsList":          "",
		"monthlyMode":         "",
		"monthlyDaysList":     "",
		"monthlyOnWeekNumber": "",
		"monthlyOnDayOfWeek":  "",
		"triggerDescription":  "",
		"triggerNextSchedule": nil,
		"windowTimeFrom":      "",
		"windowTimeTo":        "",
		"windowAllDay":        false,
	}

	return []RequestDataSet{
		ChangedDataSet("dsActivityTask", "ttActivityTask", []map[string]any{task}, nil),
		ChangedDataSet("dsActivityTaskTriggers", "ttActivityTaskTrigger", []map[string]any{trigger}, nil),
	}
}
