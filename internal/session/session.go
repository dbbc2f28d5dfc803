package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"revnext-reports/internal/components/restyutil"
	"revnext-reports/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	HeaderServiceObject = "x-service-object"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36"
)

// Options tune how a Session's http client is built, the zero value is usable.
type Options struct {
	Telemetry telemetry.API
	// RateLimit is the maximum requests per second, 0 means 4.
	RateLimit rate.Limit
	// Timeout applies to each request, 0 means 30 seconds.
	Timeout time.Duration
	// CloudflareBypass wraps the transport with a browser-like TLS fingerprint.
	CloudflareBypass bool
	// DumpOutput receives a copy of every http exchange when set.
	DumpOutput restyutil.InstrumentOutput
}

func (o Options) telemetry() telemetry.API {
	if o.Telemetry == nil {
		return telemetry.NewSlogAPI()
	}
	return o.Telemetry
}

// Session is a live, cookie carrying http client for one DMS instance.
//
// A Session is not safe for concurrent report runs since the
// service object header is mutated in place.
type Session struct {
	Http    *resty.Client
	BaseUrl *url.URL

	jar *recordingJar
}

func parseBaseUrl(baseUrl string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimRight(baseUrl, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: missing host", baseUrl)
	}
	return parsed, nil
}

// commonHeaders are sent by the DMS web client on every request.
func commonHeaders(base string) map[string]string {
	return map[string]string{
		"accept":             "*/*",
		"accept-language":    "en-AU,en-US;q=0.9,en-GB;q=0.8,en;q=0.7",
		"content-type":       "application/json; charset=UTF-8",
		"origin":             base,
		"referer":            base + "/next/Fluid.html?useTabs",
		"sec-ch-ua":          `"Not(A:Brand";v="8", "Chromium";v="144", "Google Chrome";v="144"`,
		"sec-ch-ua-mobile":   "?0",
		"sec-ch-ua-platform": `"Windows"`,
		"sec-fetch-dest":     "empty",
		"sec-fetch-mode":     "cors",
		"sec-fetch-site":     "same-origin",
		"user-agent":         userAgent,
	}
}

// New creates an unauthenticated Session for baseUrl carrying the common headers.
func New(baseUrl string, opts Options) (*Session, error) {
	parsed, err := parseBaseUrl(baseUrl)
	if err != nil {
		return nil, err
	}
	tel := telemetry.NewScopedAPI("revnext_session", opts.telemetry())

	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	jar := newRecordingJar(inner)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	limit := opts.RateLimit
	if limit == 0 {
		limit = 4
	}

	httpClient := resty.New()
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeaders(commonHeaders(parsed.String()))
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	httpClient.SetTimeout(timeout)

	// burst >= 1 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(limit, 4)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, "revnext/session")
	restyutil.DumpMessages(httpClient, opts.DumpOutput)

	return &Session{
		Http:    httpClient,
		BaseUrl: parsed,
		jar:     jar,
	}, nil
}

// Url joins path onto the base url, ex. Url("next/Fluid.html").
func (s *Session) Url(path string) string {
	return s.BaseUrl.String() + "/" + strings.TrimLeft(path, "/")
}

// SetServiceObject sets the header naming the server side handler for
// subsequent requests.
func (s *Session) SetServiceObject(id string) {
	s.Http.SetHeader(HeaderServiceObject, id)
}

func (s *Session) ServiceObject() string {
	return s.Http.Header.Get(HeaderServiceObject)
}

// Cookies returns every cookie the DMS has set on the session as name/value
// pairs, including ones scoped to deeper paths.
func (s *Session) Cookies() [][2]string {
	return s.jar.pairs()
}

// SetCookies adds host cookies for the base url.
func (s *Session) SetCookies(pairs [][2]string) {
	cookies := make([]*http.Cookie, 0, len(pairs))
	for _, p := range pairs {
		cookies = append(cookies, &http.Cookie{Name: p[0], Value: p[1], Path: "/"})
	}
	s.jar.SetCookies(s.BaseUrl.JoinPath("/"), cookies)
}
