package remote

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

const httpOnlyPrefix = "#HttpOnly_"

// LoadNetscapeCookies reads a Netscape/Mozilla cookies.txt file into jar.
// Expiry is ignored so that session cookies saved by a browser survive, and
// malformed lines are skipped. A missing file is not an error.
func LoadNetscapeCookies(jar http.CookieJar, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open cookie jar: %w", err)
	}
	defer f.Close()

	byOrigin := map[string][]*http.Cookie{}
	var origins []*url.URL
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 7 {
			continue
		}
		domain := strings.TrimSpace(cols[0])
		host := strings.TrimPrefix(domain, ".")
		if host == "" {
			continue
		}
		secure := strings.EqualFold(cols[3], "TRUE")
		scheme := "http"
		if secure {
			scheme = "https"
		}
		key := scheme + "://" + host
		if _, ok := byOrigin[key]; !ok {
			origins = append(origins, &url.URL{Scheme: scheme, Host: host, Path: "/"})
		}
		cookie := &http.Cookie{
			Name:     cols[5],
			Value:    cols[6],
			Path:     cols[2],
			Secure:   secure,
			HttpOnly: httpOnly,
		}
		if strings.EqualFold(cols[1], "TRUE") {
			cookie.Domain = domain
		}
		byOrigin[key] = append(byOrigin[key], cookie)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read cookie jar: %w", err)
	}
	for _, origin := range origins {
		jar.SetCookies(origin, byOrigin[origin.Scheme+"://"+origin.Host])
	}
	return nil
}
