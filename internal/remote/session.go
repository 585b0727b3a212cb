package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"plansync/internal/logging"
	"plansync/internal/services"
)

const defaultAccept = "application/json, text/javascript, */*; q=0.01"

// Request describes one call against the remote.
type Request struct {
	Method string
	// Path is either relative to the base URL (query allowed) or absolute.
	Path   string
	Params url.Values
	// Form is sent url-encoded for POST requests.
	Form url.Values
}

// Response is a fully read reply.
type Response struct {
	Status      int
	ContentType string
	Header      http.Header
	Body        string
}

// Session issues requests with one authenticated identity.
type Session interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// HTTPDoer is the subset of *http.Client used by HTTPSession.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchError is a failed remote call: a transport error (Status 0) or a
// non-200 reply.
type FetchError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	}
}

// Unwrap exposes both the transport marker and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrTransport}
	}
	return []error{services.ErrTransport, e.Err}
}

// SessionOptions configures NewHTTPSession.
type SessionOptions struct {
	BaseURL   string
	CookieJar string
	Timeout   time.Duration
	UserAgent string
	Logger    *slog.Logger
	// Client overrides the HTTP client; the cookie jar is then ignored.
	Client HTTPDoer
}

// HTTPSession is a Session backed by net/http with a cookie jar loaded from
// a Netscape cookies file.
type HTTPSession struct {
	baseURL *url.URL
	client  HTTPDoer
	headers http.Header
	logger  *slog.Logger
}

// NewHTTPSession builds a session. A missing cookie file yields an empty jar.
func NewHTTPSession(opts SessionOptions) (*HTTPSession, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "session", fmt.Sprintf("invalid base url %q", opts.BaseURL), err)
	}

	client := opts.Client
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		if opts.CookieJar != "" {
			if err := LoadNetscapeCookies(jar, opts.CookieJar); err != nil {
				return nil, err
			}
		}
		client = &http.Client{Jar: jar, Timeout: opts.Timeout}
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = "plansync/1.0"
	}
	headers := http.Header{}
	headers.Set("User-Agent", userAgent)
	headers.Set("Accept", defaultAccept)
	headers.Set("X-Requested-With", "XMLHttpRequest")

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HTTPSession{
		baseURL: base,
		client:  client,
		headers: headers,
		logger:  logger.With(logging.String(logging.FieldComponent, "remote")),
	}, nil
}

// Resolve joins path onto the base URL and merges params into its query.
func (s *HTTPSession) Resolve(path string, params url.Values) (*url.URL, error) {
	var target *url.URL
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, err
		}
		target = u
	} else {
		rel, err := url.Parse("/" + strings.TrimLeft(path, "/"))
		if err != nil {
			return nil, err
		}
		target = s.baseURL.JoinPath(rel.Path)
		target.RawQuery = rel.RawQuery
	}
	if len(params) > 0 {
		q := target.Query()
		for k, vs := range params {
			q[k] = vs
		}
		target.RawQuery = q.Encode()
	}
	return target, nil
}

// Do implements Session.
func (s *HTTPSession) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	op := method + " " + req.Path
	if m := req.Params.Get("m"); m != "" {
		op = m
	}

	target, err := s.Resolve(req.Path, req.Params)
	if err != nil {
		return nil, &FetchError{Op: op, Err: fmt.Errorf("resolve url: %w", err)}
	}

	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(req.Form.Encode())
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, &FetchError{Op: op, URL: target.String(), Err: fmt.Errorf("build request: %w", err)}
	}
	for k, vs := range s.headers {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &FetchError{Op: op, URL: target.String(), Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: op, URL: target.String(), Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	s.logger.Debug("remote request",
		logging.String("op", op),
		logging.Int("status", resp.StatusCode),
		logging.Int("bytes", len(data)),
		logging.Duration("elapsed", time.Since(start)),
	)

	out := &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Body:        string(data),
	}
	if resp.StatusCode != http.StatusOK {
		return out, &FetchError{Op: op, URL: target.String(), Status: resp.StatusCode}
	}
	return out, nil
}
