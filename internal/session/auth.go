package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"revnext-reports/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_auth_login      = "auth.login"
	loginPagePath          = "next/Fluid.html"
	securityCheckPath      = "next/j_spring_security_check"
	loginBanner            = "sign in to REVOLUTIONnext"
	sessionValidateTimeout = 15 * time.Second
)

var (
	// ErrLoginPageChanged means the login page no longer has the shape we
	// scrape (missing CSRF token), usually the url is wrong.
	ErrLoginPageChanged = errors.New("CSRF token not found on login page, the page may have changed or the url may be wrong")
	// ErrInvalidCredentials means the DMS answered the credential POST with the
	// login form again.
	ErrInvalidCredentials = errors.New("still on login page after posting credentials, check username/password")
)

// AuthError is returned by Login, Step names the part of the login that failed.
type AuthError struct {
	Step string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("revnext login: %s: %s", e.Step, e.Err.Error())
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

var csrfPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)name=["']CSRFToken["'][^>]*value=["']([^"']+)["']`),
	regexp.MustCompile(`(?i)value=["']([^"']+)["'][^>]*name=["']CSRFToken["']`),
	regexp.MustCompile(`(?i)name=CSRFToken\s+value=([^\s>]+)`),
	regexp.MustCompile(`(?i)value=([^\s>]+)\s+name=CSRFToken`),
}

func extractCsrf(doc *goquery.Document, html string) string {
	if doc != nil {
		token := strings.TrimSpace(doc.Find("input[name=CSRFToken]").AttrOr("value", ""))
		if token != "" {
			return token
		}
	}
	for _, pattern := range csrfPatterns {
		groups := pattern.FindStringSubmatch(html)
		if len(groups) >= 2 {
			return strings.TrimSpace(groups[1])
		}
	}
	return ""
}

var formActionPattern = regexp.MustCompile(`(?is)<form[^>]+action=["']([^"']*)["']`)

// formAction resolves the login form's action against current, which must be
// the url of the page after redirects. It returns nil when there is no form
// action.
func formAction(doc *goquery.Document, html string, current *url.URL) *url.URL {
	action, ok := "", false
	if doc != nil {
		action, ok = doc.Find("form[action]").First().Attr("action")
	}
	if !ok {
		groups := formActionPattern.FindStringSubmatch(html)
		if len(groups) < 2 {
			return nil
		}
		action = groups[1]
	}
	ref, err := url.Parse(strings.TrimSpace(action))
	if err != nil {
		return nil
	}
	return current.ResolveReference(ref)
}

func isLoginPage(body []byte) bool {
	if bytes.Contains(body, []byte(loginBanner)) || bytes.Contains(body, []byte(`name="j_username"`)) {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find("input[name=j_username]").Length() > 0
}

// Login signs in with username/password and returns the authenticated session.
// Nothing is retried here, a failed login fails the run.
func Login(ctx context.Context, baseUrl, username, password string, opts Options) (*Session, error) {
	tel := telemetry.NewScopedAPI("revnext_session", opts.telemetry())

	s, err := New(baseUrl, opts)
	if err != nil {
		return nil, &AuthError{Step: "create session", Err: err}
	}

	fail := func(step string, err error) (*Session, error) {
		tel.ReportBroken(report_auth_login, step, err)
		return nil, &AuthError{Step: step, Err: err}
	}

	res, err := s.Http.R().
		SetContext(ctx).
		Get(s.Url(loginPagePath))
	if err != nil {
		return fail("get login page", err)
	}
	if !res.IsSuccess() {
		return fail("get login page", fmt.Errorf("unexpected status %s", res.Status()))
	}

	html := res.String()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		tel.ReportWarning(report_auth_login, fmt.Errorf("parse login page: %w", err))
		doc = nil
	}

	csrf := extractCsrf(doc, html)
	if csrf == "" {
		return fail("extract csrf token", ErrLoginPageChanged)
	}

	finalUrl := s.BaseUrl.JoinPath(loginPagePath)
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalUrl = res.RawResponse.Request.URL
	}
	checkUrl := formAction(doc, html, finalUrl)
	if checkUrl == nil {
		checkUrl = s.BaseUrl.JoinPath(securityCheckPath)
	}
	tel.ReportDebug("posting credentials", checkUrl.String())

	res, err = s.Http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"j_username": username,
			"j_password": password,
			"CSRFToken":  csrf,
		}).
		Post(checkUrl.String())
	if err != nil {
		return fail("post credentials", err)
	}
	if !res.IsSuccess() {
		return fail("post credentials", fmt.Errorf("unexpected status %s", res.Status()))
	}
	if isLoginPage(res.Body()) {
		tel.ReportWarning(report_auth_login, ErrInvalidCredentials)
		return nil, &AuthError{Step: "post credentials", Err: ErrInvalidCredentials}
	}

	tel.ReportInfo("logged in", s.BaseUrl.Host)
	return s, nil
}

// IsValid reports whether s is still signed in, any failure counts as not
// signed in.
func IsValid(ctx context.Context, s *Session) bool {
	ctx, cancel := context.WithTimeout(ctx, sessionValidateTimeout)
	defer cancel()

	res, err := s.Http.R().
		SetContext(ctx).
		Get(s.Url(loginPagePath))
	if err != nil || !res.IsSuccess() {
		return false
	}
	return !isLoginPage(res.Body())
}
