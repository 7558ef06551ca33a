// Package research supplements the anketa with market context: a web search
// plus a guarded fetch of the client's own site. Every outbound URL here is
// derived from user input, so fetching is SSRF-hardened.
package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	maxResponseBytes = 5 << 20 // 5 MB
	fetchTimeout     = 15 * time.Second
	userAgent        = "konsul-research/1.0"
)

// ErrDisallowedURL is returned for URLs that fail SSRF validation.
var ErrDisallowedURL = errors.New("url not allowed")

// ValidateURL enforces the outbound-URL policy: http/https scheme only, and
// the host must resolve to public addresses. Called again on every redirect
// hop.
func ValidateURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDisallowedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrDisallowedURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrDisallowedURL)
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", ErrDisallowedURL, host, err)
	}
	for _, addr := range addrs {
		if !publicAddr(addr) {
			return fmt.Errorf("%w: %s resolves to %s", ErrDisallowedURL, host, addr)
		}
	}
	return nil
}

// publicAddr rejects loopback, private, link-local (incl. 169.254/16),
// unspecified and multicast addresses.
func publicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return !(addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified() ||
		addr.IsMulticast())
}

// Fetcher is an SSRF-guarded HTTP text fetcher.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a Fetcher whose redirect policy re-validates every hop.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return ValidateURL(req.Context(), req.URL.String())
			},
		},
	}
}

// FetchText downloads a page and returns its visible text, capped at 5 MB.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	if err := ValidateURL(ctx, rawURL); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", err
	}
	return htmlToText(string(body)), nil
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
)

// htmlToText is a rough page-to-text reduction, good enough for feeding an
// LLM prompt.
func htmlToText(s string) string {
	s = scriptRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer(
		"&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&#39;", "'", "&laquo;", "«", "&raquo;", "»",
	).Replace(s)
	s = spaceRe.ReplaceAllString(s, " ")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
