package session

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"revnext-reports/internal/components/telemetry"

	"golang.org/x/time/rate"
)

const loginFormTemplate = `<!DOCTYPE html>
<html>
<head><title>sign in to REVOLUTIONnext</title></head>
<body>
<form id="login" method="post" action="j_spring_security_check">
%s
<input type="text" name="j_username">
<input type="password" name="j_password">
</form>
</body>
</html>`

// fakeDms mimics the login flow: /next/Fluid.html redirects anonymous
// visitors to a login page whose form posts to a relative action.
type fakeDms struct {
	server   *httptest.Server
	logins   atomic.Int32
	requests atomic.Int32

	tokenMarkup string
	password    string
}

func newFakeDms(t *testing.T) *fakeDms {
	d := &fakeDms{
		tokenMarkup: `<input type="hidden" name="CSRFToken" value="tok123">`,
		password:    "secret",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/next/Fluid.html", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("JSESSIONID")
		if err == nil && cookie.Value == "authed" {
			fmt.Fprint(w, `<html><body><div id="app">REVOLUTIONnext</div></body></html>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "anon", Path: "/"})
		http.Redirect(w, r, "/next/static/auth/login.html", http.StatusFound)
	})
	mux.HandleFunc("/next/static/auth/login.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, loginFormTemplate, d.tokenMarkup)
	})
	mux.HandleFunc("/next/static/auth/j_spring_security_check", func(w http.ResponseWriter, r *http.Request) {
		d.logins.Add(1)
		if r.Method != http.MethodPost || r.ParseForm() != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("CSRFToken") != "tok123" ||
			r.PostForm.Get("j_username") != "alice" ||
			r.PostForm.Get("j_password") != d.password {
			fmt.Fprintf(w, loginFormTemplate, d.tokenMarkup)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "authed", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "x1", Path: "/next"})
		// no Path, scoped to /next/static/auth
		http.SetCookie(w, &http.Cookie{Name: "SPRING_AUTH", Value: "abc"})
		http.SetCookie(w, &http.Cookie{Name: "API_TOKEN", Value: "zzz", Path: "/next/rest"})
		http.Redirect(w, r, "/next/Fluid.html", http.StatusFound)
	})

	d.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(d.server.Close)
	return d
}

func testOptions() Options {
	return Options{
		Telemetry: &telemetry.Recorder{},
		RateLimit: rate.Inf,
	}
}
