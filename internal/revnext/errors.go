package revnext

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyBody        = errors.New("response body empty or too small")
	ErrHTMLBody         = errors.New("response body looks like HTML (error page, login redirect or 502/503 page)")
	ErrInvalidJSON      = errors.New("response is not valid JSON")
	ErrUnexpectedStatus = errors.New("unexpected status")

	ErrMissingTaskId      = errors.New("could not get taskID from submit response")
	ErrPollTimeout        = errors.New("timed out waiting for report")
	ErrMissingResponseUrl = errors.New("could not get responseUrl from loadData")
)

// DownloadError means a single request kept returning an invalid response
// until its attempts ran out. Err is the cause from the last attempt.
type DownloadError struct {
	Step     string
	Label    string
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	label := ""
	if e.Label != "" {
		label = fmt.Sprintf(" [%s]", e.Label)
	}
	return fmt.Sprintf(
		"%s returned an invalid response after %d attempt(s)%s: %s",
		e.Step, e.Attempts, label, e.Err.Error(),
	)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// SubmitError is a submission the DMS refused, it is never retried beyond the
// single warnings resubmission.
type SubmitError struct {
	Reason  string
	Entries []SubmitMessage
}

// Message joins the error table the way the DMS web client displays it.
func (e *SubmitError) Message() string {
	var parts []string
	for _, entry := range e.Entries {
		msg := entry.Msg
		if msg == "" {
			msg = entry.Type
		}
		if msg != "" {
			parts = append(parts, msg)
		}
	}
	if len(parts) == 0 {
		return "Unknown error"
	}
	return strings.Join(parts, "; ")
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message())
}

// FlowError wraps every fatal failure of Run with the step it happened in.
type FlowError struct {
	Step  string
	Label string
	Err   error
}

func (e *FlowError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("report [%s] %s: %s", e.Label, e.Step, e.Err.Error())
	}
	return fmt.Sprintf("report %s: %s", e.Step, e.Err.Error())
}

func (e *FlowError) Unwrap() error {
	return e.Err
}
