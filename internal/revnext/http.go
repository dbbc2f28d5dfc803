package revnext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"revnext-reports/internal/components/chrono"
	"revnext-reports/internal/components/telemetry"
	"revnext-reports/internal/session"
)

const (
	report_http_retry = "http.retry"

	// MinJSONBodyLength is the size of the smallest useful JSON body, "{}".
	MinJSONBodyLength = 2

	jsonContentType = "application/json; charset=UTF-8"
)

// RetryOptions configure the bounded retry wrapped around a single request.
type RetryOptions struct {
	// MaxAttempts defaults to 3.
	MaxAttempts int
	// RetryDelay is slept between attempts, never after the last one.
	RetryDelay time.Duration
	// Label and Step only show up in diagnostics.
	Label string
	Step  string

	Clock     chrono.API
	Telemetry telemetry.API
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Step == "" {
		o.Step = "request"
	}
	if o.Clock == nil {
		o.Clock, _ = chrono.NewStandardImpl()
	}
	if o.Telemetry == nil {
		o.Telemetry = telemetry.NewSlogAPI()
	}
	return o
}

// retry calls attempt until it succeeds or MaxAttempts is reached, it returns
// the number of attempts made. A done context stops it immediately.
func retry[T any](ctx context.Context, opts RetryOptions, attempt func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T
	for i := 1; ; i++ {
		out, err := attempt(ctx)
		if err == nil {
			return out, i, nil
		}
		if ctx.Err() != nil {
			return zero, i, ctx.Err()
		}
		if i >= opts.MaxAttempts {
			return zero, i, err
		}

		opts.Telemetry.ReportWarning(
			report_http_retry,
			fmt.Sprintf("%s attempt %d of %d failed, retrying in %s", opts.Step, i, opts.MaxAttempts, opts.RetryDelay),
			opts.Label,
			err,
		)
		sleepErr := opts.Clock.Sleep(ctx, opts.RetryDelay)
		if sleepErr != nil {
			return zero, i, sleepErr
		}
	}
}

func exhausted(ctx context.Context, opts RetryOptions, attempts int, err error) error {
	if ctx.Err() != nil {
		return err
	}
	return &DownloadError{
		Step:     opts.Step,
		Label:    opts.Label,
		Attempts: attempts,
		Err:      err,
	}
}

// LooksLikeHTML reports whether body is an HTML page (error page, login
// redirect) instead of the data that was asked for.
func LooksLikeHTML(body []byte) bool {
	if len(body) < 2 {
		return false
	}
	start := bytes.TrimLeft(body, " \t\n\r\v\f")
	if len(start) > 200 {
		start = start[:200]
	}
	text := strings.ToLower(strings.TrimSpace(string(start)))
	if strings.HasPrefix(text, "<!") {
		return true
	}
	head := text
	if utf8.RuneCountInString(head) > 50 {
		head = string([]rune(head)[:50])
	}
	return strings.Contains(head, "<html")
}

// ValidateJSONBody returns nil when body is a usable JSON response.
func ValidateJSONBody(body []byte) error {
	if len(body) < MinJSONBodyLength {
		return fmt.Errorf(
			"%w (length %d, expected at least %d for valid JSON)",
			ErrEmptyBody, len(body), MinJSONBodyLength,
		)
	}
	if LooksLikeHTML(body) {
		return ErrHTMLBody
	}
	var parsed json.RawMessage
	err := json.Unmarshal(body, &parsed)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidJSON, err.Error())
	}
	return nil
}

func validateContent(body []byte, minLength int) error {
	if len(body) < minLength {
		return fmt.Errorf("%w (length %d)", ErrEmptyBody, len(body))
	}
	if LooksLikeHTML(body) {
		return ErrHTMLBody
	}
	return nil
}

func post(ctx context.Context, s *session.Session, url string, payload []byte) ([]byte, error) {
	res, err := s.Http.R().
		SetContext(ctx).
		SetHeader("content-type", jsonContentType).
		SetBody(payload).
		Post(url)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("%w %s", ErrUnexpectedStatus, res.Status())
	}
	return res.Body(), nil
}

// PostJSON posts body as JSON and returns the validated JSON response.
// Transport errors, non 2xx responses and invalid bodies are retried.
func PostJSON(ctx context.Context, s *session.Session, url string, body any, opts RetryOptions) (json.RawMessage, error) {
	opts = opts.withDefaults()
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal body: %w", opts.Step, err)
	}

	out, attempts, err := retry(ctx, opts, func(ctx context.Context) (json.RawMessage, error) {
		resBody, err := post(ctx, s, url, payload)
		if err != nil {
			return nil, err
		}
		err = ValidateJSONBody(resBody)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(resBody), nil
	})
	if err != nil {
		return nil, exhausted(ctx, opts, attempts, err)
	}
	return out, nil
}

// Post posts body as JSON and only requires a 2xx status, for UI state
// requests whose response is not used.
func Post(ctx context.Context, s *session.Session, url string, body any, opts RetryOptions) error {
	opts = opts.withDefaults()
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal body: %w", opts.Step, err)
	}

	_, attempts, err := retry(ctx, opts, func(ctx context.Context) ([]byte, error) {
		return post(ctx, s, url, payload)
	})
	if err != nil {
		return exhausted(ctx, opts, attempts, err)
	}
	return nil
}

// GetContent downloads raw bytes, retrying until the body is at least
// minLength bytes and is not an HTML page.
func GetContent(ctx context.Context, s *session.Session, url string, minLength int, opts RetryOptions) ([]byte, error) {
	opts = opts.withDefaults()
	if minLength < 1 {
		minLength = 1
	}

	out, attempts, err := retry(ctx, opts, func(ctx context.Context) ([]byte, error) {
		res, err := s.Http.R().
			SetContext(ctx).
			Get(url)
		if err != nil {
			return nil, err
		}
		if !res.IsSuccess() {
			return nil, fmt.Errorf("%w %s", ErrUnexpectedStatus, res.Status())
		}
		body := res.Body()
		err = validateContent(body, minLength)
		if err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return nil, exhausted(ctx, opts, attempts, err)
	}
	return out, nil
}
