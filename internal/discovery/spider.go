package discovery

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/utils"
	"github.com/raysh454/hunter/internal/webclient"
)

// Spider is a breadth-first, same-host crawler. Every page it reaches within
// MaxDepth becomes an asset.
type Spider struct {
	MaxDepth int
	MaxPages int
	wc       webclient.WebClient
	logger   logging.Logger
}

var inlineURL = regexp.MustCompile(`https?://[^\s"'<>]+`)

func NewSpider(maxDepth, maxPages int, wc webclient.WebClient, logger logging.Logger) *Spider {
	return &Spider{
		MaxDepth: maxDepth,
		MaxPages: maxPages,
		wc:       wc,
		logger:   logger.With(logging.Field{Key: "component", Value: "spider"}),
	}
}

func (s *Spider) Name() string { return "spider" }

type crawl struct {
	spider  *Spider
	root    string
	depth   map[string]int
	results []string
}

// Discover crawls from the normalized scope. Fetch errors on individual pages
// are logged and skipped; only an unusable scope fails the crawl.
func (s *Spider) Discover(ctx context.Context, scope string) ([]string, error) {
	root, err := utils.NormalizeScope(scope)
	if err != nil {
		return nil, fmt.Errorf("normalize scope: %w", err)
	}
	c := &crawl{
		spider:  s,
		root:    root,
		depth:   map[string]int{root: 0},
		results: []string{root},
	}
	for i := 0; i < len(c.results); i++ {
		if err := ctx.Err(); err != nil {
			return c.results, nil
		}
		page := c.results[i]
		d := c.depth[page]
		if d >= s.MaxDepth {
			continue
		}
		links, err := c.fetchLinks(ctx, page)
		if err != nil {
			s.logger.Warn("error while crawling page",
				logging.Field{Key: "url", Value: page},
				logging.Field{Key: "error", Value: err})
			continue
		}
		if c.add(links, d) {
			break
		}
	}
	return c.results, nil
}

// add records unseen same-host links; it reports whether MaxPages was hit.
func (c *crawl) add(links []string, parentDepth int) bool {
	for _, l := range links {
		if !utils.SameHost(c.root, l) {
			continue
		}
		canon, err := utils.Canonicalize(l, utils.DefaultCanonicalizeOptions())
		if err != nil {
			continue
		}
		if _, ok := c.depth[canon]; ok {
			continue
		}
		c.depth[canon] = parentDepth + 1
		c.results = append(c.results, canon)
		if c.spider.MaxPages > 0 && len(c.results) >= c.spider.MaxPages {
			return true
		}
	}
	return false
}

func (c *crawl) fetchLinks(ctx context.Context, page string) ([]string, error) {
	resp, err := c.spider.wc.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: page})
	if err != nil {
		return nil, fmt.Errorf("error making http request: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("received %d from target", resp.StatusCode)
	}

	body := string(resp.Body)
	if !strings.HasPrefix(resp.Headers.Get("Content-Type"), "text/html") {
		return inlineURL.FindAllString(body, -1), nil
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse %s: %w", page, err)
	}

	var raw []string
	extractLinks(doc, &raw)
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") || strings.HasPrefix(l, "javascript:") || strings.HasPrefix(l, "mailto:") {
			continue
		}
		abs, err := utils.Resolve(page, l)
		if err != nil {
			continue
		}
		out = append(out, abs)
	}
	return out, nil
}

func extractLinks(node *html.Node, links *[]string) {
	if node.Type == html.ElementNode {
		hasSrc := false
		for _, attr := range node.Attr {
			switch attr.Key {
			case "href", "src", "action":
				*links = append(*links, attr.Val)
				hasSrc = hasSrc || attr.Key == "src"
			}
		}
		if node.Data == "script" && !hasSrc && node.FirstChild != nil && node.FirstChild.Type == html.TextNode {
			*links = append(*links, inlineURL.FindAllString(node.FirstChild.Data, -1)...)
		}
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		extractLinks(c, links)
	}
}
