package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"revnext-reports/internal/components/assert"
	"revnext-reports/internal/components/chrono"
	"revnext-reports/internal/components/telemetry"
	"revnext-reports/internal/revnext"
	"revnext-reports/internal/runlog"
	"revnext-reports/internal/session"
)

const report_downloader_ledger = "downloader.ledger"

// SessionProvider is implemented by session.Provider.
type SessionProvider interface {
	GetOrCreate(ctx context.Context, serviceObject string) (*session.Session, error)
}

type DownloadOptions struct {
	// OutputPath defaults to the report's file name in the working directory.
	OutputPath string
	// ReturnData skips writing a file and returns the report bytes instead.
	ReturnData bool

	MaxPolls     int
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	Label        string
}

// Downloader runs the report definitions against sessions from Provider.
// Ledger may be nil.
type Downloader struct {
	Provider  SessionProvider
	Clock     chrono.API
	Telemetry telemetry.API
	Ledger    *runlog.Ledger
}

func (d Downloader) outputPath(opts DownloadOptions, fileName string) (string, error) {
	if opts.ReturnData {
		return "", nil
	}
	if opts.OutputPath != "" {
		return opts.OutputPath, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, fileName), nil
}

type reportRun struct {
	serviceObject string
	report        string
	fileName      string
	label         string
	job           func(retry revnext.RetryOptions) revnext.Job
}

func (d Downloader) run(ctx context.Context, r reportRun, opts DownloadOptions) (revnext.Result, error) {
	assert.NotNil(d.Provider)
	assert.NotNil(d.Clock)
	assert.NotNil(d.Telemetry)

	label := opts.Label
	if label == "" {
		label = r.label
	}
	outputPath, err := d.outputPath(opts, r.fileName)
	if err != nil {
		return revnext.Result{}, err
	}

	s, err := d.Provider.GetOrCreate(ctx, r.serviceObject)
	if err != nil {
		return revnext.Result{}, err
	}

	entry, err := d.Ledger.Start(ctx, label, r.report)
	if err != nil {
		d.Telemetry.ReportWarning(report_downloader_ledger, err)
	}

	job := r.job(revnext.RetryOptions{
		MaxAttempts: opts.MaxRetries,
		RetryDelay:  opts.RetryDelay,
		Label:       label,
		Clock:       d.Clock,
		Telemetry:   d.Telemetry,
	})
	result, runErr := revnext.Run(ctx, s, job, revnext.RunOptions{
		BaseUrl:      s.BaseUrl.String(),
		OutputPath:   outputPath,
		MaxPolls:     opts.MaxPolls,
		PollInterval: opts.PollInterval,
		MaxRetries:   opts.MaxRetries,
		RetryDelay:   opts.RetryDelay,
		Label:        label,
		Clock:        d.Clock,
		Telemetry:    d.Telemetry,
	})

	outcome := runlog.Outcome{
		TaskId:     result.TaskId,
		OutputPath: result.Path,
		Bytes:      len(result.Data),
		Err:        runErr,
	}
	if result.Path != "" {
		info, err := os.Stat(result.Path)
		if err == nil {
			outcome.Bytes = int(info.Size())
		}
	}
	// the run's own ctx may be cancelled already
	err = d.Ledger.Finish(context.WithoutCancel(ctx), entry, outcome)
	if err != nil {
		d.Telemetry.ReportWarning(report_downloader_ledger, err)
	}

	return result, runErr
}

// PartsPriceList downloads the Parts Price List for params.
func (d Downloader) PartsPriceList(ctx context.Context, params PartsPriceListParams, opts DownloadOptions) (revnext.Result, error) {
	err := params.Validate()
	if err != nil {
		return revnext.Result{}, err
	}
	return d.run(ctx, reportRun{
		serviceObject: PriceListServiceObject,
		report:        PriceListReport,
		fileName:      PriceListFileName,
		label:         fmt.Sprintf("Parts Price List - %s", params.Department),
		job: func(retry revnext.RetryOptions) revnext.Job {
			return revnext.Job{
				ActivityTabId: PriceListActivityTabId,
				BuildSubmitBody: func() revnext.SubmitRequest {
					return BuildPartsPriceListBody(params, d.Clock.Now())
				},
				PostSubmitHook: closeSubmitHook(params, retry),
			}
		},
	}, opts)
}

// PartsByBinLocation downloads the Parts By Bin Location report for params.
func (d Downloader) PartsByBinLocation(ctx context.Context, params PartsByBinLocationParams, opts DownloadOptions) (revnext.Result, error) {
	return d.run(ctx, reportRun{
		serviceObject: BinServiceObject,
		report:        BinReport,
		fileName:      BinFileName,
		label:         params.Label(),
		job: func(revnext.RetryOptions) revnext.Job {
			return revnext.Job{
				ActivityTabId: BinActivityTabId,
				BuildSubmitBody: func() revnext.SubmitRequest {
					return BuildPartsByBinLocationBody(params, d.Clock.Now())
				},
			}
		},
	}, opts)
}
