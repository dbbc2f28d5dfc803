package revnext

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"revnext-reports/internal/components/chrono"
	"revnext-reports/internal/components/telemetry"
	"revnext-reports/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("internal/revnext")

const (
	report_job_submit   = "job.submit"
	report_job_poll     = "job.poll"
	report_job_download = "job.download"
)

const (
	StepSubmit      = "submitActivityTask"
	StepSubmitRetry = "submitActivityTask (warnings retry)"
	StepPostSubmit  = "post-submit"
	StepPoll        = "poll"
	StepLoad        = "loadData"
	StepDownload    = "download"
	StepSave        = "save"
)

// Endpoint returns the url of a DMS rest endpoint, ex. Endpoint(base, "static/loadData").
func Endpoint(baseUrl, path string) string {
	return strings.TrimRight(baseUrl, "/") + "/next/rest/si/" + strings.TrimLeft(path, "/")
}

// Job describes one report type.
type Job struct {
	ActivityTabId string
	// BuildSubmitBody is called for every submission since the warnings
	// retry changes the body it gets.
	BuildSubmitBody func() SubmitRequest
	// PostSubmitHook is optional, it runs right after the task is created.
	PostSubmitHook func(ctx context.Context, s *session.Session) error
}

type RunOptions struct {
	// BaseUrl defaults to the session's base url.
	BaseUrl string
	// OutputPath is where the report is written, when empty the report is
	// returned in Result.Data instead.
	OutputPath string

	MaxPolls     int
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	Label        string

	Clock     chrono.API
	Telemetry telemetry.API
}

func (o RunOptions) withDefaults(s *session.Session) RunOptions {
	if o.BaseUrl == "" {
		o.BaseUrl = s.BaseUrl.String()
	}
	o.BaseUrl = strings.TrimRight(o.BaseUrl, "/")
	if o.MaxPolls <= 0 {
		o.MaxPolls = 60
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock, _ = chrono.NewStandardImpl()
	}
	if o.Telemetry == nil {
		o.Telemetry = telemetry.NewSlogAPI()
	}
	return o
}

// Result holds either Path or Data, never both.
type Result struct {
	TaskId string
	Path   string
	Data   []byte
}

type runner struct {
	s    *session.Session
	job  Job
	opts RunOptions
	tel  telemetry.API
}

// Run drives one report job: submit, poll until ready, load the output url
// and download it. Every failure is returned as a *FlowError.
func Run(ctx context.Context, s *session.Session, job Job, opts RunOptions) (Result, error) {
	opts = opts.withDefaults(s)
	tel := telemetry.API(telemetry.NewScopedAPI("revnext_job", opts.Telemetry))
	if opts.Label != "" {
		tel = telemetry.NewScopedAPI(opts.Label, tel)
	}
	r := runner{
		s:    s,
		job:  job,
		opts: opts,
		tel:  tel,
	}

	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("activity_tab_id", job.ActivityTabId),
		attribute.String("label", opts.Label),
	)

	result, err := r.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	return result, nil
}

func (r runner) fail(step string, err error) error {
	return &FlowError{Step: step, Label: r.opts.Label, Err: err}
}

func (r runner) retryOptions(step string) RetryOptions {
	return RetryOptions{
		MaxAttempts: r.opts.MaxRetries,
		RetryDelay:  r.opts.RetryDelay,
		Label:       r.opts.Label,
		Step:        step,
		Clock:       r.opts.Clock,
		Telemetry:   r.tel,
	}
}

func (r runner) run(ctx context.Context) (Result, error) {
	body, submitted, err := r.submit(ctx)
	if err != nil {
		return Result{}, err
	}

	taskId, ok := ExtractTaskId(submitted)
	if !ok {
		r.tel.ReportBroken(report_job_submit, ErrMissingTaskId)
		return Result{}, r.fail(StepSubmit, ErrMissingTaskId)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("task_id", taskId))
	r.tel.ReportInfo("task submitted", taskId)

	if r.job.PostSubmitHook != nil {
		err = r.job.PostSubmitHook(ctx, r.s)
		if err != nil {
			return Result{}, r.fail(StepPostSubmit, err)
		}
	}

	userContext := body.EchoedUserContext()

	err = r.poll(ctx, taskId, userContext)
	if err != nil {
		return Result{}, err
	}

	responseUrl, err := r.load(ctx, taskId, userContext)
	if err != nil {
		return Result{}, err
	}

	content, err := r.download(ctx, responseUrl)
	if err != nil {
		return Result{}, err
	}

	if r.opts.OutputPath == "" {
		return Result{TaskId: taskId, Data: content}, nil
	}
	err = writeOutput(r.opts.OutputPath, content)
	if err != nil {
		return Result{}, r.fail(StepSave, err)
	}
	r.tel.ReportInfo("saved", r.opts.OutputPath)
	return Result{TaskId: taskId, Path: r.opts.OutputPath}, nil
}

func (r runner) postSubmit(ctx context.Context, body SubmitRequest, step string) (SubmitResponse, error) {
	raw, err := PostJSON(ctx, r.s, Endpoint(r.opts.BaseUrl, "static/submitActivityTask"), body, r.retryOptions(step))
	if err != nil {
		return SubmitResponse{}, r.fail(step, err)
	}
	var res SubmitResponse
	err = json.Unmarshal(raw, &res)
	if err != nil {
		return SubmitResponse{}, r.fail(step, fmt.Errorf("decode submit response: %w", err))
	}
	return res, nil
}

func classifyMessages(entries []SubmitMessage) (hasError bool, warningOnly bool) {
	hasWarning := false
	for _, e := range entries {
		switch e.Type {
		case MessageError:
			hasError = true
		case MessageWarning:
			hasWarning = true
		}
	}
	return hasError, hasWarning && !hasError
}

// submit returns the body that was finally accepted along with the response.
func (r runner) submit(ctx context.Context) (SubmitRequest, SubmitResponse, error) {
	ctx, span := tracer.Start(ctx, "submit")
	defer span.End()

	body := r.job.BuildSubmitBody()
	res, err := r.postSubmit(ctx, body, StepSubmit)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return body, res, err
	}
	if res.SubmittedSuccess {
		return body, res, nil
	}

	hasError, warningOnly := classifyMessages(res.ErrorTable)
	switch {
	case hasError:
		err = &SubmitError{Reason: "submitActivityTask failed", Entries: res.ErrorTable}
		r.tel.ReportWarning(report_job_submit, err)
		span.SetStatus(codes.Error, err.Error())
		return body, res, r.fail(StepSubmit, err)
	case warningOnly:
		r.tel.ReportWarning(
			report_job_submit,
			"warnings only, resubmitting with stopOnWarning=false",
			(&SubmitError{Entries: res.ErrorTable}).Message(),
		)
	default:
		err = &SubmitError{Reason: "submitActivityTask did not report success", Entries: res.ErrorTable}
		r.tel.ReportWarning(report_job_submit, err)
		span.SetStatus(codes.Error, err.Error())
		return body, res, r.fail(StepSubmit, err)
	}

	body = r.job.BuildSubmitBody()
	body.StopOnWarning = false
	res, err = r.postSubmit(ctx, body, StepSubmitRetry)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return body, res, err
	}
	if !res.SubmittedSuccess {
		err = &SubmitError{Reason: "submitActivityTask failed after retry (warnings)", Entries: res.ErrorTable}
		r.tel.ReportWarning(report_job_submit, err)
		span.SetStatus(codes.Error, err.Error())
		return body, res, r.fail(StepSubmitRetry, err)
	}
	return body, res, nil
}

func (r runner) poll(ctx context.Context, taskId string, userContext UserContext) error {
	ctx, span := tracer.Start(ctx, "poll")
	defer span.End()

	req := PollRequest{
		UserContext:   userContext,
		ActivityTabId: r.job.ActivityTabId,
		CtrlProp: []CtrlProp{
			{Name: "ttActivityTask.taskID", Prop: "SCREENVALUE", Value: taskId},
		},
		UiType: UiType,
	}
	url := Endpoint(r.opts.BaseUrl, "presenter/autoPollResponse")

	for i := 1; i <= r.opts.MaxPolls; i++ {
		err := r.opts.Clock.Sleep(ctx, r.opts.PollInterval)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return r.fail(StepPoll, err)
		}

		raw, err := PostJSON(ctx, r.s, url, req, r.retryOptions(StepPoll))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return r.fail(StepPoll, err)
		}
		var res PollResponse
		err = json.Unmarshal(raw, &res)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return r.fail(StepPoll, fmt.Errorf("decode poll response: %w", err))
		}

		r.tel.ReportCount(report_job_poll, int64(i))
		if IsPollDone(res) {
			span.SetAttributes(attribute.Int("polls", i))
			r.tel.ReportInfo("report generation complete")
			return nil
		}
		r.tel.ReportInfo(fmt.Sprintf("poll %d: still generating", i))
	}

	err := fmt.Errorf("%w after %d polls", ErrPollTimeout, r.opts.MaxPolls)
	r.tel.ReportWarning(report_job_poll, err)
	span.SetStatus(codes.Error, err.Error())
	return r.fail(StepPoll, err)
}

func (r runner) load(ctx context.Context, taskId string, userContext UserContext) (string, error) {
	ctx, span := tracer.Start(ctx, "load")
	defer span.End()

	req := LoadDataRequest{
		TaskId:         taskId,
		CtrlProp:       []CtrlProp{{Name: "dummy", Prop: "LOADDATA", Value: "dummy"}},
		ParentActivity: nil,
		HistoryId:      "self,dummy,dummy",
		TabId:          "self",
		ActivityType:   "dummy",
		FluidService:   "dummy",
		UiType:         UiType,
		UserContext:    userContext,
		ActivityTabId:  r.job.ActivityTabId,
		LoadMode:       "EDIT",
		LoadRowid:      "dummy",
	}
	raw, err := PostJSON(ctx, r.s, Endpoint(r.opts.BaseUrl, "static/loadData"), req, r.retryOptions(StepLoad))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", r.fail(StepLoad, err)
	}
	var res LoadDataResponse
	err = json.Unmarshal(raw, &res)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", r.fail(StepLoad, fmt.Errorf("decode loadData response: %w", err))
	}

	responseUrl, ok := ResponseUrl(res)
	if !ok {
		r.tel.ReportBroken(report_job_download, ErrMissingResponseUrl)
		span.SetStatus(codes.Error, ErrMissingResponseUrl.Error())
		return "", r.fail(StepLoad, ErrMissingResponseUrl)
	}
	return ResolveResponseUrl(r.opts.BaseUrl, responseUrl), nil
}

// ResolveResponseUrl turns the responseUrl of a loadData response into an
// absolute url, relative urls live under {base}/next/.
func ResolveResponseUrl(baseUrl, responseUrl string) string {
	if strings.HasPrefix(responseUrl, "http") {
		return responseUrl
	}
	return strings.TrimRight(baseUrl, "/") + "/next/" + strings.TrimLeft(responseUrl, "/")
}

func (r runner) download(ctx context.Context, url string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "download")
	defer span.End()

	r.tel.ReportInfo("download url", url)
	content, err := GetContent(ctx, r.s, url, 1, r.retryOptions(StepDownload))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, r.fail(StepDownload, err)
	}
	span.SetAttributes(attribute.Int("bytes", len(content)))
	return content, nil
}

func writeOutput(path string, content []byte) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0644)
}
