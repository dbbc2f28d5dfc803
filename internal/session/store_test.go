package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	base := "https://dealer.revolutionnext.com.au"
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.json")

	s, err := New(base, testOptions())
	require.NoError(t, err)
	s.SetCookies([][2]string{{"JSESSIONID", "abc"}, {"AWSALB", "xyz"}})

	require.NoError(t, Save(s, base, path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must be renamed away")

	var file sessionFile
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(contents, &file))
	require.Equal(t, "dealer.revolutionnext.com.au", file.Domain)

	first, err := Load(base, path, testOptions())
	require.NoError(t, err)
	require.NotNil(t, first)
	require.ElementsMatch(t, s.Cookies(), first.Cookies())
	require.Empty(t, first.ServiceObject())
	require.Equal(t, base+"/next/Fluid.html?useTabs", first.Http.Header.Get("referer"))

	second, err := Load(base, path, testOptions())
	require.NoError(t, err)
	require.Equal(t, first.Cookies(), second.Cookies())
}

func TestLoadNoSession(t *testing.T) {
	dir := t.TempDir()
	base := "https://dealer.revolutionnext.com.au"

	write := func(name, contents string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
		return path
	}

	testCases := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.json")},
		{"malformed", write("malformed.json", `{"domain": "dealer`)},
		{"no domain", write("nodomain.json", `{"cookies": []}`)},
		{"no cookies", write("nocookies.json", `{"domain": "dealer.revolutionnext.com.au"}`)},
		{"cookies not a list", write("badcookies.json", `{"domain": "dealer.revolutionnext.com.au", "cookies": "a=b"}`)},
		{"other domain", write("other.json", `{"domain": "other.revolutionnext.com.au", "cookies": []}`)},
		{"child domain", write("child.json", `{"domain": "x.dealer.revolutionnext.com.au", "cookies": []}`)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Load(base, tc.path, testOptions())
			require.NoError(t, err)
			require.Nil(t, s)
		})
	}
}

func TestLoadParentDomain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"domain": ".revolutionnext.com.au",
		"cookies": [["JSESSIONID", "abc"], [1, 2], ["short"], ["AWSALB", "xyz"]]
	}`), 0600))

	s, err := Load("https://dealer.revolutionnext.com.au", path, testOptions())
	require.NoError(t, err)
	require.NotNil(t, s)
	require.ElementsMatch(t, [][2]string{{"JSESSIONID", "abc"}, {"AWSALB", "xyz"}}, s.Cookies())
}

func TestDomainMatches(t *testing.T) {
	require.True(t, domainMatches("a.example.com", "a.example.com"))
	require.True(t, domainMatches("example.com", "a.example.com"))
	require.True(t, domainMatches(".example.com", "a.example.com"))
	require.True(t, domainMatches("localhost:8080", "localhost:8080"))
	require.False(t, domainMatches("badexample.com", "a.example.com"))
	require.False(t, domainMatches("", "a.example.com"))
}

func TestSaveUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	s, err := New("https://dealer.revolutionnext.com.au", testOptions())
	require.NoError(t, err)
	err = Save(s, "https://dealer.revolutionnext.com.au", filepath.Join(blocker, "session.json"))
	require.Error(t, err)
}

func TestSaveInvalidBaseUrl(t *testing.T) {
	s, err := New("https://dealer.revolutionnext.com.au", testOptions())
	require.NoError(t, err)
	require.Error(t, Save(s, "not a url", filepath.Join(t.TempDir(), "session.json")))
}

func TestSaveKeepsCookiesOnEveryPath(t *testing.T) {
	dms := newFakeDms(t)
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := Login(context.Background(), dms.server.URL, "alice", "secret", testOptions())
	require.NoError(t, err)
	require.NoError(t, Save(s, dms.server.URL, path))

	var file sessionFile
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(contents, &file))
	require.ElementsMatch(t, [][2]string{
		{"JSESSIONID", "authed"},
		{"XSRF-TOKEN", "x1"},
		{"SPRING_AUTH", "abc"},
		{"API_TOKEN", "zzz"},
	}, file.Cookies)

	loaded, err := Load(dms.server.URL, path, testOptions())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.ElementsMatch(t, file.Cookies, loaded.Cookies())
}

func TestRecordingJar(t *testing.T) {
	s, err := New("https://dealer.revolutionnext.com.au", testOptions())
	require.NoError(t, err)
	jar := s.jar

	login, _ := url.Parse("https://dealer.revolutionnext.com.au/next/static/auth/j_spring_security_check")
	jar.SetCookies(login, []*http.Cookie{
		{Name: "JSESSIONID", Value: "root", Path: "/"},
		{Name: "JSESSIONID", Value: "deep", Path: "/next/rest"},
		{Name: "SPRING_AUTH", Value: "abc"},
		{Name: "FOREIGN", Value: "x", Domain: "other.example.com"},
	})
	require.Equal(t, [][2]string{
		{"JSESSIONID", "root"},
		{"JSESSIONID", "deep"},
		{"SPRING_AUTH", "abc"},
	}, jar.pairs())

	jar.SetCookies(login, []*http.Cookie{
		{Name: "JSESSIONID", Value: "root2", Path: "/"},
		{Name: "SPRING_AUTH", MaxAge: -1},
	})
	require.Equal(t, [][2]string{
		{"JSESSIONID", "root2"},
		{"JSESSIONID", "deep"},
	}, jar.pairs())

	require.Equal(t, "/next/static/auth", defaultCookiePath(login))
	root, _ := url.Parse("https://dealer.revolutionnext.com.au/login")
	require.Equal(t, "/", defaultCookiePath(root))
}
