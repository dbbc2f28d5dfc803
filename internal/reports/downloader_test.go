package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"revnext-reports/internal/components/chrono"
	"revnext-reports/internal/components/telemetry"
	"revnext-reports/internal/revnext"
	"revnext-reports/internal/runlog"
	"revnext-reports/internal/session"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const testCsv = "part,bin,price\nABC123,A01,12.50\nXYZ789,B02,4.00\n"

type fakeDms struct {
	server *httptest.Server

	mutex        sync.Mutex
	submits      []map[string]any
	closeSubmits []map[string]any
	failSubmit   bool
}

func newFakeDms(t *testing.T) *fakeDms {
	f := &fakeDms{}
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
		if f.failSubmit {
			fmt.Fprint(w, `{"submittedSuccess": false, "errorTable": [{"type": "ERROR", "msg": "Department not found"}]}`)
			return
		}
		fmt.Fprintf(w, `{
			"submittedSuccess": true,
			"dataSets": [{"name": "dsActivityTask", "dataSet": {"dsActivityTask": {"ttActivityTask": [{"taskID": "T%d"}]}}}]
		}`, len(f.submits))
	})
	mux.HandleFunc("/next/rest/si/presenter/onChoose_btn_closesubmit", func(w http.ResponseWriter, r *http.Request) {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		f.closeSubmits = append(f.closeSubmits, decode(r))
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/next/rest/si/presenter/autoPollResponse", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ctrlProp": [{"name": "button.autoPollResponse", "value": "-1"}]}`)
	})
	mux.HandleFunc("/next/rest/si/static/loadData", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dataSets": [{"name": "dsActivityTask", "dataSet": {"dsActivityTask": {"ttActivityTaskResponse": [{"responseUrl": "output/report.csv"}]}}}]}`)
	})
	mux.HandleFunc("/next/output/report.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/csv")
		fmt.Fprint(w, testCsv)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

type fakeProvider struct {
	baseUrl string
	calls   []string
}

func (p *fakeProvider) GetOrCreate(ctx context.Context, serviceObject string) (*session.Session, error) {
	p.calls = append(p.calls, serviceObject)
	s, err := session.New(p.baseUrl, session.Options{
		Telemetry: &telemetry.Recorder{},
		RateLimit: rate.Inf,
	})
	if err != nil {
		return nil, err
	}
	s.SetServiceObject(serviceObject)
	return s, nil
}

func newTestDownloader(t *testing.T, dms *fakeDms) (Downloader, *fakeProvider, *runlog.Ledger) {
	clock := chrono.NewFake(testNow)
	ledger, err := runlog.Open(":memory:", clock)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	provider := &fakeProvider{baseUrl: dms.server.URL}
	return Downloader{
		Provider:  provider,
		Clock:     clock,
		Telemetry: &telemetry.Recorder{},
		Ledger:    ledger,
	}, provider, ledger
}

func TestPartsPriceListDownload(t *testing.T) {
	dms := newFakeDms(t)
	downloader, provider, ledger := newTestDownloader(t, dms)

	out := filepath.Join(t.TempDir(), "prices.csv")
	result, err := downloader.PartsPriceList(context.Background(), DefaultPartsPriceListParams(), DownloadOptions{
		OutputPath: out,
	})
	require.NoError(t, err)
	require.Equal(t, out, result.Path)
	require.Equal(t, "T1", result.TaskId)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, testCsv, string(content))

	require.Equal(t, []string{PriceListServiceObject}, provider.calls)
	require.Len(t, dms.closeSubmits, 1)
	require.Equal(t, PriceListActivityTabId, dms.closeSubmits[0]["activityTabId"])
	require.Equal(t, "130", dms.closeSubmits[0]["_userContext_vg_dftdpt"])

	entries, err := ledger.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, runlog.StatusSucceeded, entries[0].Status)
	require.Equal(t, "Parts Price List - 130", entries[0].Label)
	require.Equal(t, PriceListReport, entries[0].Report)
	require.Equal(t, "T1", entries[0].TaskId)
	require.Equal(t, int64(len(testCsv)), entries[0].Bytes)
}

func TestPartsPriceListNoPriceType(t *testing.T) {
	dms := newFakeDms(t)
	downloader, provider, ledger := newTestDownloader(t, dms)

	params := DefaultPartsPriceListParams()
	params.Price1 = ""
	params.Price2 = ""
	_, err := downloader.PartsPriceList(context.Background(), params, DownloadOptions{ReturnData: true})
	require.ErrorIs(t, err, ErrNoPriceType)
	require.Empty(t, provider.calls)
	require.Empty(t, dms.submits)

	entries, err := ledger.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPartsByBinLocationReturnData(t *testing.T) {
	dms := newFakeDms(t)
	downloader, _, _ := newTestDownloader(t, dms)

	params := DefaultPartsByBinLocationParams()
	params.Department = "145"
	result, err := downloader.PartsByBinLocation(context.Background(), params, DownloadOptions{ReturnData: true})
	require.NoError(t, err)
	require.Empty(t, result.Path)
	require.Equal(t, testCsv, string(result.Data))
	require.Empty(t, dms.closeSubmits)

	require.Len(t, dms.submits, 1)
	require.Equal(t, BinActivityTabId, dms.submits[0]["activityTabId"])
}

func TestDownloadFailureIsRecorded(t *testing.T) {
	dms := newFakeDms(t)
	dms.failSubmit = true
	downloader, _, ledger := newTestDownloader(t, dms)

	_, err := downloader.PartsByBinLocation(context.Background(), DefaultPartsByBinLocationParams(), DownloadOptions{
		ReturnData: true,
		Label:      "nightly bins",
	})
	var submitErr *revnext.SubmitError
	require.ErrorAs(t, err, &submitErr)
	require.Equal(t, "Department not found", submitErr.Message())

	entries, err := ledger.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, runlog.StatusFailed, entries[0].Status)
	require.Equal(t, "nightly bins", entries[0].Label)
	require.Contains(t, entries[0].Error, "Department not found")
}

func TestDownloadAll(t *testing.T) {
	dms := newFakeDms(t)
	downloader, provider, ledger := newTestDownloader(t, dms)

	dir := t.TempDir()
	targets := []Target{
		{Company: "03", Division: "1", Department: "145", Label: "MCT_Tyres"},
		{Company: "04", Division: "2", Department: "430", Label: "Charters_Towers_Partnership"},
	}
	written, err := downloader.DownloadAll(context.Background(), targets, dir, AllOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "Parts_Price_List_MCT_Tyres_03_1_145.csv"),
		filepath.Join(dir, "Parts_By_Bin_Location_MCT_Tyres_03_1_145.csv"),
		filepath.Join(dir, "Parts_Price_List_Charters_Towers_Partnership_04_2_430.csv"),
		filepath.Join(dir, "Parts_By_Bin_Location_Charters_Towers_Partnership_04_2_430.csv"),
	}, written)
	for _, path := range written {
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, testCsv, string(content))
	}

	require.Equal(t, []string{
		PriceListServiceObject, BinServiceObject,
		PriceListServiceObject, BinServiceObject,
	}, provider.calls)
	require.Len(t, dms.closeSubmits, 2)

	// the bin report is narrowed to the target's own department
	binBody := dms.submits[3]
	params := binBody["dataSets"].([]any)[2].(map[string]any)["dataSet"].(map[string]any)["dsParams"].(map[string]any)["tt_params"].([]any)[0].(map[string]any)
	require.Equal(t, "430", params["frmdptid"])
	require.Equal(t, "430", params["todptid"])

	entries, err := ledger.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)
}

func TestDownloadAllStopsAtFirstFailure(t *testing.T) {
	dms := newFakeDms(t)
	dms.failSubmit = true
	downloader, _, _ := newTestDownloader(t, dms)

	written, err := downloader.DownloadAll(context.Background(), DefaultTargets, t.TempDir(), AllOptions{})
	require.Error(t, err)
	require.Empty(t, written)
	require.Len(t, dms.submits, 1)
}
