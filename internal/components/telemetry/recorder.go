package telemetry

import (
	"strings"
	"sync"
)

// Report is a single call captured by Recorder.
type Report struct {
	Kind   string
	Id     string
	Params []any
}

// Recorder is an API that keeps every report in memory so tests can assert on
// what was logged. It optionally forwards to another API.
type Recorder struct {
	Next API

	mutex   sync.Mutex
	reports []Report
}

func (r *Recorder) record(kind, id string, params []any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, Report{Kind: kind, Id: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.record("broken", id, params)
	if r.Next != nil {
		r.Next.ReportBroken(id, params...)
	}
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.record("warning", id, params)
	if r.Next != nil {
		r.Next.ReportWarning(id, params...)
	}
}

func (r *Recorder) ReportInfo(msg string, params ...any) {
	r.record("info", msg, params)
	if r.Next != nil {
		r.Next.ReportInfo(msg, params...)
	}
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.record("debug", msg, params)
	if r.Next != nil {
		r.Next.ReportDebug(msg, params...)
	}
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.record("count", id, []any{count})
	if r.Next != nil {
		r.Next.ReportCount(id, count)
	}
}

// Reports returns a copy of every report of the given kind, an empty kind
// returns all of them.
func (r *Recorder) Reports(kind string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, rep := range r.reports {
		if kind == "" || rep.Kind == kind {
			out = append(out, rep)
		}
	}
	return out
}

// Contains reports whether any report of the given kind has an id containing substr.
func (r *Recorder) Contains(kind, substr string) bool {
	for _, rep := range r.Reports(kind) {
		if strings.Contains(rep.Id, substr) {
			return true
		}
	}
	return false
}
