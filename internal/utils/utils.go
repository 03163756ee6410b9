// Package utils normalizes the URLs and hosts flowing between discovery,
// scanning and reporting, and clips text bound for errors and alerts.
package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrEmptyURL    = errors.New("empty url")
	ErrMissingHost = errors.New("missing host")
)

// CanonicalizeOptions controls optional canonicalization policies.
type CanonicalizeOptions struct {
	DropTrackingParams bool     `mapstructure:"drop_tracking_params"` // remove utm_*, gclid, fbclid, ...
	StripTrailingSlash bool     `mapstructure:"strip_trailing_slash"` // /a and /a/ are the same (root stays "/")
	DefaultScheme      string   `mapstructure:"default_scheme"`       // assumed for schemeless input; empty means required
	ParamAllowlist     []string `mapstructure:"param_allowlist"`      // if non-empty, only these query params survive
}

// DefaultCanonicalizeOptions is what discovery uses for assets.
func DefaultCanonicalizeOptions() CanonicalizeOptions {
	return CanonicalizeOptions{
		DropTrackingParams: true,
		StripTrailingSlash: true,
		DefaultScheme:      "https",
	}
}

var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"gclid": {}, "fbclid": {}, "mc_cid": {}, "mc_eid": {},
}

// Canonicalize returns a deterministic canonical URL string. Scheme and host
// are lower-cased, IDN hosts become punycode, default ports, credentials and
// fragments are dropped, the path is cleaned and query params are sorted.
func Canonicalize(raw string, opts CanonicalizeOptions) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}
	if opts.DefaultScheme != "" && !strings.Contains(raw, "://") {
		raw = opts.DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%q: %w", raw, ErrMissingHost)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	port := u.Port()
	switch {
	case (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443"):
		u.Host = host
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	default:
		u.Host = host
	}
	u.User = nil
	u.Fragment = ""

	cleanPath := path.Clean(u.Path)
	if cleanPath == "." {
		cleanPath = "/"
	}
	if opts.StripTrailingSlash && len(cleanPath) > 1 {
		cleanPath = strings.TrimRight(cleanPath, "/")
	}
	if cleanPath == "/" && opts.StripTrailingSlash {
		cleanPath = ""
	}
	u.Path = cleanPath
	u.RawPath = ""

	u.RawQuery = canonicalQuery(u.Query(), opts)
	return u.String(), nil
}

func canonicalQuery(q url.Values, opts CanonicalizeOptions) string {
	if opts.DropTrackingParams {
		for k := range q {
			if _, ok := trackingParams[strings.ToLower(k)]; ok {
				q.Del(k)
			}
		}
	}
	if len(opts.ParamAllowlist) > 0 {
		allow := make(map[string]struct{}, len(opts.ParamAllowlist))
		for _, k := range opts.ParamAllowlist {
			allow[k] = struct{}{}
		}
		for k := range q {
			if _, ok := allow[k]; !ok {
				q.Del(k)
			}
		}
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := url.Values{}
	for _, k := range keys {
		values := q[k]
		sort.Strings(values)
		for _, v := range values {
			ordered.Add(k, v)
		}
	}
	return ordered.Encode()
}

// NormalizeScope turns a program scope entry into a URL the discovery feed can
// start from. Wildcards are dropped: "*.example.com" becomes
// "https://example.com".
func NormalizeScope(scope string) (string, error) {
	s := strings.TrimSpace(scope)
	s = strings.TrimPrefix(s, "*.")
	if i := strings.Index(s, "://*."); i >= 0 {
		s = s[:i+3] + s[i+5:]
	}
	return Canonicalize(s, CanonicalizeOptions{DefaultScheme: "https", StripTrailingSlash: true})
}

// Hostname returns the lower-cased host of raw, without port. Schemeless
// input is treated as a host.
func Hostname(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// SameHost reports whether a and b point at the same host.
func SameHost(a, b string) bool {
	ha, hb := Hostname(a), Hostname(b)
	return ha != "" && ha == hb
}

// Resolve resolves href against base, returning an absolute URL.
func Resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	return b.ResolveReference(ref).String(), nil
}
