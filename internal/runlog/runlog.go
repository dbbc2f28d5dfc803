package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"revnext-reports/internal/components/chrono"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const Schema = `
create table if not exists report_run (
	id text primary key,
	label text not null,
	report text not null,
	task_id text not null default '',
	status text not null,
	output_path text not null default '',
	bytes integer not null default 0,
	error text not null default '',
	started_at integer not null,
	finished_at integer
);

create index if not exists report_run_started_at on report_run(started_at);
`

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Ledger records report runs in a sqlite database. A nil *Ledger is valid
// and records nothing.
type Ledger struct {
	db    *sql.DB
	clock chrono.API
}

func wrapOpen(err error) error {
	return fmt.Errorf("open run ledger: %w", err)
}

// Open opens (or creates) the ledger at path, ":memory:" is accepted.
func Open(path string, clock chrono.API) (*Ledger, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return nil, wrapOpen(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpen(err)
	}
	// see https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, wrapOpen(err)
		}
	}
	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return nil, wrapOpen(err)
	}

	if clock == nil {
		clock, err = chrono.NewStandardImpl()
		if err != nil {
			db.Close()
			return nil, wrapOpen(err)
		}
	}
	return &Ledger{db: db, clock: clock}, nil
}

func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Run is a started entry, pass it back to Finish.
type Run struct {
	Id        string
	Label     string
	Report    string
	StartedAt time.Time
}

type Outcome struct {
	TaskId     string
	OutputPath string
	Bytes      int
	Err        error
}

type Entry struct {
	Id         string
	Label      string
	Report     string
	TaskId     string
	Status     string
	OutputPath string
	Bytes      int64
	Error      string
	StartedAt  time.Time
	// FinishedAt is zero while the run is still going (or was interrupted).
	FinishedAt time.Time
}

func (l *Ledger) Start(ctx context.Context, label, report string) (Run, error) {
	if l == nil {
		return Run{}, nil
	}
	run := Run{
		Id:        uuid.NewString(),
		Label:     label,
		Report:    report,
		StartedAt: l.clock.Now(),
	}
	_, err := l.db.ExecContext(
		ctx,
		`insert into report_run(id, label, report, status, started_at) values (?, ?, ?, ?, ?)`,
		run.Id, run.Label, run.Report, StatusRunning, run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run start: %w", err)
	}
	return run, nil
}

func (l *Ledger) Finish(ctx context.Context, run Run, outcome Outcome) error {
	if l == nil || run.Id == "" {
		return nil
	}
	status := StatusSucceeded
	errText := ""
	if outcome.Err != nil {
		status = StatusFailed
		errText = outcome.Err.Error()
	}
	res, err := l.db.ExecContext(
		ctx,
		`update report_run
		set task_id = ?, status = ?, output_path = ?, bytes = ?, error = ?, finished_at = ?
		where id = ?`,
		outcome.TaskId, status, outcome.OutputPath, outcome.Bytes, errText,
		l.clock.Now().UnixMilli(), run.Id,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("record run finish: unknown run %s", run.Id)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if l == nil {
		return nil, errors.New("run ledger is disabled")
	}
	rows, err := l.db.QueryContext(
		ctx,
		`select id, label, report, task_id, status, output_path, bytes, error, started_at, finished_at
		from report_run
		order by started_at desc, rowid desc
		limit ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	location := l.clock.Location()
	var out []Entry
	for rows.Next() {
		var e Entry
		var startedAt int64
		var finishedAt sql.NullInt64
		err := rows.Scan(
			&e.Id, &e.Label, &e.Report, &e.TaskId, &e.Status,
			&e.OutputPath, &e.Bytes, &e.Error, &startedAt, &finishedAt,
		)
		if err != nil {
			return nil, err
		}
		e.StartedAt = time.UnixMilli(startedAt).In(location)
		if finishedAt.Valid {
			e.FinishedAt = time.UnixMilli(finishedAt.Int64).In(location)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
