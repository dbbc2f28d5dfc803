package session

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type cookieKey struct {
	name   string
	domain string
	path   string
}

// recordingJar keeps every cookie the DMS sets, whatever its path, so a
// session can be saved without knowing which urls the cookies are scoped to.
type recordingJar struct {
	inner http.CookieJar

	mutex  sync.Mutex
	order  []cookieKey
	values map[cookieKey]string
}

func newRecordingJar(inner http.CookieJar) *recordingJar {
	return &recordingJar{
		inner:  inner,
		values: map[cookieKey]string{},
	}
}

// defaultCookiePath follows RFC 6265 section 5.1.4.
func defaultCookiePath(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" || path[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(path, "/")
	if i == 0 {
		return "/"
	}
	return path[:i]
}

func expired(c *http.Cookie, now time.Time) bool {
	if c.MaxAge < 0 {
		return true
	}
	return !c.Expires.IsZero() && c.Expires.Before(now)
}

func (j *recordingJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	j.mutex.Lock()
	defer j.mutex.Unlock()

	now := time.Now()
	for _, c := range cookies {
		domain := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		if domain == "" {
			domain = u.Hostname()
		} else if !domainMatches(domain, u.Hostname()) {
			// the inner jar rejects it too
			continue
		}
		path := c.Path
		if path == "" || path[0] != '/' {
			path = defaultCookiePath(u)
		}

		key := cookieKey{name: c.Name, domain: domain, path: path}
		if expired(c, now) {
			j.remove(key)
			continue
		}
		_, exists := j.values[key]
		if !exists {
			j.order = append(j.order, key)
		}
		j.values[key] = c.Value
	}
}

func (j *recordingJar) remove(key cookieKey) {
	if _, exists := j.values[key]; !exists {
		return
	}
	delete(j.values, key)
	for i, k := range j.order {
		if k == key {
			j.order = append(j.order[:i], j.order[i+1:]...)
			return
		}
	}
}

func (j *recordingJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// pairs returns every live cookie as a name/value pair in the order it was
// first set, same named cookies on different paths are all kept.
func (j *recordingJar) pairs() [][2]string {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	out := make([][2]string, 0, len(j.order))
	for _, key := range j.order {
		out = append(out, [2]string{key.name, j.values[key]})
	}
	return out
}
