package revnext

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"revnext-reports/internal/components/chrono"
	"revnext-reports/internal/components/telemetry"
	"revnext-reports/internal/session"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var testNow = time.Date(2026, 3, 2, 9, 41, 0, 0, time.FixedZone("AEST", 10*60*60))

func newTestSession(t *testing.T, baseUrl string) *session.Session {
	s, err := session.New(baseUrl, session.Options{
		Telemetry: &telemetry.Recorder{},
		RateLimit: rate.Inf,
	})
	require.NoError(t, err)
	return s
}

const (
	submitAccepted = `{
		"submittedSuccess": true,
		"errorTable": [],
		"dataSets": [{
			"name": "dsActivityTask",
			"dataSet": {"dsActivityTask": {"ttActivityTask": [{"taskID": "TASK-42"}]}}
		}]
	}`
	pollPending = `{"ctrlProp": [{"name": "button.autoPollResponse", "value": "2000"}]}`
	pollDone    = `{"ctrlProp": [{"name": "button.autoPollResponse", "value": "-1"}]}`
	loadDone    = `{"dataSets": [{
		"name": "dsActivityTask",
		"dataSet": {"dsActivityTask": {"ttActivityTaskResponse": [{"responseUrl": "/report/output/TASK-42.csv"}]}}
	}]}`
)

func submitRejected(entries ...SubmitMessage) string {
	table, _ := json.Marshal(entries)
	return fmt.Sprintf(`{"submittedSuccess": false, "errorTable": %s, "dataSets": []}`, table)
}

// fakeReports serves the report job endpoints, responses are consumed in
// order and the last one repeats.
type fakeReports struct {
	server *httptest.Server

	mutex       sync.Mutex
	submitQueue []string
	pollQueue   []string
	loadBody    string
	csv         []byte
	csvPage     string

	submits []map[string]any
	polls   []map[string]any
	loads   []map[string]any
	gets    int
}

func next(queue *[]string) string {
	out := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	return out
}

func newFakeReports(t *testing.T) *fakeReports {
	f := &fakeReports{
		submitQueue: []string{submitAccepted},
		pollQueue:   []string{pollPending, pollPending, pollDone},
		loadBody:    loadDone,
	}

	decode := func(r *http.Request) map[string]any {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		return body
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/next/rest/si/static/submitActivityTask", func(w http.ResponseWriter, r *http.Request) {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		f.submits = append(f.submits, decode(r))
		fmt.Fprint(w, next(&f.submitQueue))
	})
	mux.HandleFunc("/next/rest/si/presenter/autoPollResponse", func(w http.ResponseWriter, r *http.Request) {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		f.polls = append(f.polls, decode(r))
		fmt.Fprint(w, next(&f.pollQueue))
	})
	mux.HandleFunc("/next/rest/si/static/loadData", func(w http.ResponseWriter, r *http.Request) {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		f.loads = append(f.loads, decode(r))
		fmt.Fprint(w, f.loadBody)
	})
	mux.HandleFunc("/next/report/output/TASK-42.csv", func(w http.ResponseWriter, r *http.Request) {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		f.gets++
		if f.csvPage != "" {
			fmt.Fprint(w, f.csvPage)
			return
		}
		w.Header().Set("content-type", "text/csv")
		w.Write(f.csv)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func testJob(userContext *UserContext) Job {
	return Job{
		ActivityTabId: "Ntest_tab",
		BuildSubmitBody: func() SubmitRequest {
			return SubmitRequest{
				UserContext:   userContext,
				ActivityTabId: "Ntest_tab",
				DataSets:      ActivityTaskDataSets("ttActivityTask1", "ttActivityTaskTrigger1", testNow),
				StopOnWarning: true,
				UiType:        UiType,
			}
		},
	}
}

func testRunOptions(clock chrono.API, rec *telemetry.Recorder) RunOptions {
	return RunOptions{
		MaxPolls:     60,
		PollInterval: 2 * time.Second,
		MaxRetries:   3,
		RetryDelay:   5 * time.Second,
		Label:        "Test Report",
		Clock:        clock,
		Telemetry:    rec,
	}
}
