package scanner

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/webclient"
)

// SurfaceAdapter fetches the asset and reports weaknesses visible in a
// single response: missing security headers, leaky banners, weak cookies and
// risky forms. Output lines are sorted so identical pages produce identical
// text.
type SurfaceAdapter struct {
	name string
	wc   webclient.WebClient
}

func NewSurfaceAdapter(name string, wc webclient.WebClient) *SurfaceAdapter {
	return &SurfaceAdapter{name: name, wc: wc}
}

func (s *SurfaceAdapter) Name() string { return s.name }

var (
	versionBanner = regexp.MustCompile(`\d+\.\d+`)
	csrfField     = regexp.MustCompile(`(?i)csrf|xsrf|token|nonce|authenticity`)
)

// Observation is one weakness found on a page.
type Observation struct {
	Severity string
	ID       string
	Detail   string
}

func (o Observation) String() string {
	return fmt.Sprintf("[%s] %s: %s", o.Severity, o.ID, o.Detail)
}

func (s *SurfaceAdapter) Scan(ctx context.Context, asset model.Asset) (string, error) {
	resp, err := s.wc.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: asset.String()})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", asset, err)
	}
	obs, err := Inspect(asset.String(), resp)
	if err != nil {
		return "", err
	}
	lines := make([]string, len(obs))
	for i, o := range obs {
		lines[i] = o.String()
	}
	return strings.Join(lines, "\n"), nil
}

// Inspect derives observations from a fetched response.
func Inspect(pageURL string, resp *webclient.Response) ([]Observation, error) {
	var obs []Observation
	h := resp.Headers
	if h == nil {
		h = http.Header{}
	}
	isHTTPS := strings.HasPrefix(strings.ToLower(pageURL), "https://")
	isHTML := strings.Contains(strings.ToLower(h.Get("Content-Type")), "html")

	obs = append(obs, inspectHeaders(h, isHTTPS, isHTML)...)
	obs = append(obs, inspectCookies(h, isHTTPS)...)

	if isHTML && len(resp.Body) > 0 {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			return nil, fmt.Errorf("parse html of %s: %w", pageURL, err)
		}
		obs = append(obs, inspectForms(doc, pageURL, isHTTPS)...)
		obs = append(obs, inspectScripts(doc, isHTTPS)...)
	}

	sort.Slice(obs, func(i, j int) bool { return obs[i].String() < obs[j].String() })
	return obs, nil
}

func inspectHeaders(h http.Header, isHTTPS, isHTML bool) []Observation {
	var obs []Observation
	csp := h.Get("Content-Security-Policy")
	if isHTML {
		if csp == "" {
			obs = append(obs, Observation{"low", "csp-missing", "Content-Security-Policy header not set"})
		}
		if h.Get("X-Frame-Options") == "" && !strings.Contains(csp, "frame-ancestors") {
			obs = append(obs, Observation{"medium", "clickjacking", "neither X-Frame-Options nor CSP frame-ancestors set"})
		}
	}
	if isHTTPS && h.Get("Strict-Transport-Security") == "" {
		obs = append(obs, Observation{"low", "hsts-missing", "Strict-Transport-Security header not set"})
	}
	if !strings.EqualFold(h.Get("X-Content-Type-Options"), "nosniff") {
		obs = append(obs, Observation{"info", "nosniff-missing", "X-Content-Type-Options: nosniff not set"})
	}
	for _, name := range []string{"Server", "X-Powered-By", "X-AspNet-Version"} {
		if v := h.Get(name); v != "" && versionBanner.MatchString(v) {
			obs = append(obs, Observation{"low", "version-disclosure", fmt.Sprintf("%s discloses %q", name, v)})
		}
	}
	if h.Get("Access-Control-Allow-Origin") == "*" && strings.EqualFold(h.Get("Access-Control-Allow-Credentials"), "true") {
		obs = append(obs, Observation{"high", "cors-wildcard-credentials", "wildcard CORS origin with credentials allowed"})
	}
	return obs
}

func inspectCookies(h http.Header, isHTTPS bool) []Observation {
	var obs []Observation
	for _, raw := range h.Values("Set-Cookie") {
		c, err := http.ParseSetCookie(raw)
		if err != nil {
			continue
		}
		var missing []string
		if isHTTPS && !c.Secure {
			missing = append(missing, "Secure")
		}
		if !c.HttpOnly {
			missing = append(missing, "HttpOnly")
		}
		if c.SameSite == 0 || c.SameSite == http.SameSiteDefaultMode {
			missing = append(missing, "SameSite")
		}
		if len(missing) > 0 {
			obs = append(obs, Observation{"low", "cookie-flags", fmt.Sprintf("cookie %s missing %s", c.Name, strings.Join(missing, ", "))})
		}
	}
	return obs
}

func inspectForms(doc *goquery.Document, pageURL string, isHTTPS bool) []Observation {
	var obs []Observation
	doc.Find("form").Each(func(i int, form *goquery.Selection) {
		method := strings.ToUpper(strings.TrimSpace(form.AttrOr("method", "GET")))
		action := strings.TrimSpace(form.AttrOr("action", ""))
		label := fmt.Sprintf("form #%d (%s %s)", i, method, action)

		hasPassword := form.Find(`input[type="password"]`).Length() > 0
		if hasPassword && (!isHTTPS || strings.HasPrefix(strings.ToLower(action), "http://")) {
			obs = append(obs, Observation{"high", "cleartext-password", label + " submits a password over http"})
		}
		if hasPassword && method == "GET" {
			obs = append(obs, Observation{"medium", "password-in-query", label + " sends a password in the query string"})
		}
		if method == "POST" {
			hasToken := false
			form.Find(`input[type="hidden"]`).Each(func(_ int, in *goquery.Selection) {
				if csrfField.MatchString(in.AttrOr("name", "")) {
					hasToken = true
				}
			})
			if !hasToken {
				obs = append(obs, Observation{"medium", "csrf-token-missing", label + " has no anti-CSRF token"})
			}
		}
		if action != "" {
			if u, err := url.Parse(action); err == nil && u.IsAbs() && !sameOrigin(pageURL, u) {
				obs = append(obs, Observation{"info", "offsite-form", label + " posts to another origin"})
			}
		}
	})
	return obs
}

func inspectScripts(doc *goquery.Document, isHTTPS bool) []Observation {
	var obs []Observation
	inline := 0
	doc.Find("script").Each(func(_ int, sc *goquery.Selection) {
		src, ok := sc.Attr("src")
		if !ok {
			inline++
			return
		}
		if isHTTPS && strings.HasPrefix(strings.ToLower(strings.TrimSpace(src)), "http://") {
			obs = append(obs, Observation{"medium", "mixed-content-script", fmt.Sprintf("script loaded over http: %s", src)})
		}
	})
	if inline > 0 {
		obs = append(obs, Observation{"info", "inline-scripts", fmt.Sprintf("%d inline script blocks", inline)})
	}
	return obs
}

func sameOrigin(pageURL string, u *url.URL) bool {
	p, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(p.Scheme, u.Scheme) && strings.EqualFold(p.Host, u.Host)
}
