package transport

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// botTokenPath matches the secret part of Telegram bot URLs.
var botTokenPath = regexp.MustCompile(`/bot[^/]+/`)

// LoggingTransport wraps an http.RoundTripper and logs outgoing adapter
// requests: method, URL, latency and status. With LogBodies set, POST and PUT
// JSON bodies are logged as well; they may hold mail text, keep it off in
// production. Form bodies (token requests) are never logged.
type LoggingTransport struct {
	Base      http.RoundTripper
	Tag       string
	LogBodies bool
}

// Wrap returns a client whose transport logs under tag.
// A nil base client means http.DefaultClient's settings.
func Wrap(base *http.Client, tag string, logBodies bool) *http.Client {
	c := &http.Client{}
	if base != nil {
		*c = *base
	}
	c.Transport = &LoggingTransport{Base: c.Transport, Tag: tag, LogBodies: logBodies}
	return c
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	url := RedactURL(req.URL.String())
	log.Printf("[%s] -> %s %s", t.Tag, req.Method, url)

	if t.LogBodies && req.Body != nil && (req.Method == http.MethodPost || req.Method == http.MethodPut) &&
		strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
		bodyBytes, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err == nil {
			log.Printf("[%s] request body: %s", t.Tag, string(bodyBytes))
		}
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	rt := t.Base
	if rt == nil {
		rt = http.DefaultTransport
	}
	resp, err := rt.RoundTrip(req)
	if err != nil {
		log.Printf("[%s] <- error: %v (elapsed %v)", t.Tag, err, time.Since(start))
		return resp, err
	}
	log.Printf("[%s] <- status: %d (elapsed %v)", t.Tag, resp.StatusCode, time.Since(start))
	return resp, err
}

// RedactURL hides credentials embedded in request paths.
func RedactURL(u string) string {
	return botTokenPath.ReplaceAllString(u, "/bot***/")
}
