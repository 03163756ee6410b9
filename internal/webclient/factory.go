package webclient

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/raysh454/hunter/internal/logging"
)

// Backends lists the client backends NewWebClient understands.
func Backends() []Client {
	return []Client{ClientChromedp, ClientNetHTTP}
}

// NewWebClient builds the backend named by cfg.Client. Empty means nethttp.
func NewWebClient(cfg Config, logger logging.Logger) (WebClient, error) {
	switch Client(strings.ToLower(strings.TrimSpace(string(cfg.Client)))) {
	case "", ClientNetHTTP:
		return newDefaultNetHTTP(cfg, logger)
	case ClientChromedp:
		wc, err := NewChromedpClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("chromedp backend: %w", err)
		}
		return wc, nil
	default:
		return nil, fmt.Errorf("unknown webclient backend %q (want one of %v)", cfg.Client, Backends())
	}
}

// NewAPIClient builds a net/http client from cfg whatever backend cfg names.
// Adapters, sinks and JSON APIs need methods other than GET, which the
// rendering backend cannot issue.
func NewAPIClient(cfg Config, logger logging.Logger) (*NetHTTPClient, error) {
	return newDefaultNetHTTP(cfg, logger)
}

func newDefaultNetHTTP(cfg Config, logger logging.Logger) (*NetHTTPClient, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return NewNetHTTPClient(cfg, logger, &http.Client{Timeout: timeout})
}
