package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sessionFile is the on-disk representation of a session.
//
// The file is never modified in place, it is rewritten wholesale through a
// temp file and rename. Concurrent writers from several processes may race,
// the last rename wins.
type sessionFile struct {
	Domain  string      `json:"domain"`
	Cookies [][2]string `json:"cookies"`
}

// Save persists the session's cookies for baseUrl's host to path, creating
// parent directories as needed.
func Save(s *Session, baseUrl, path string) error {
	parsed, err := parseBaseUrl(baseUrl)
	if err != nil {
		return err
	}
	cookies := s.Cookies()
	if cookies == nil {
		cookies = [][2]string{}
	}
	serialized, err := json.MarshalIndent(sessionFile{
		Domain:  parsed.Host,
		Cookies: cookies,
	}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".revnext-session-*.tmp")
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(serialized)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// domainMatches accepts the stored domain when it equals the wanted host or
// is a parent domain of it (ex. revolutionnext.com.au for
// dealer.revolutionnext.com.au).
func domainMatches(stored, wanted string) bool {
	if stored == "" || wanted == "" {
		return false
	}
	if stored == wanted {
		return true
	}
	return strings.HasSuffix(wanted, "."+strings.TrimLeft(stored, "."))
}

func cookiePair(raw json.RawMessage) ([2]string, bool) {
	var pair []any
	err := json.Unmarshal(raw, &pair)
	if err != nil || len(pair) != 2 {
		return [2]string{}, false
	}
	name, ok := pair[0].(string)
	if !ok {
		return [2]string{}, false
	}
	value, ok := pair[1].(string)
	if !ok {
		return [2]string{}, false
	}
	return [2]string{name, value}, true
}

// Load restores a session saved by Save. It returns nil without an error when
// there is no usable session at path: the file is absent, unreadable,
// malformed or saved for another domain.
func Load(baseUrl, path string, opts Options) (*Session, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var file struct {
		Domain  string            `json:"domain"`
		Cookies []json.RawMessage `json:"cookies"`
	}
	err = json.Unmarshal(contents, &file)
	if err != nil || file.Domain == "" || file.Cookies == nil {
		return nil, nil
	}

	parsed, err := parseBaseUrl(baseUrl)
	if err != nil {
		return nil, nil
	}
	if !domainMatches(file.Domain, parsed.Host) {
		return nil, nil
	}

	s, err := New(baseUrl, opts)
	if err != nil {
		return nil, err
	}
	pairs := make([][2]string, 0, len(file.Cookies))
	for _, raw := range file.Cookies {
		pair, ok := cookiePair(raw)
		if ok {
			pairs = append(pairs, pair)
		}
	}
	s.SetCookies(pairs)
	return s, nil
}
