// Package discovery turns a program scope into the list of assets to scan.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/utils"
)

// Feed discovers assets for a scope.
type Feed interface {
	Name() string
	Discover(ctx context.Context, scope string) ([]string, error)
}

// StaticFeed returns a fixed list, with the normalized scope itself first.
type StaticFeed struct {
	Assets       []string
	IncludeScope bool
}

func (s *StaticFeed) Name() string { return "static" }

func (s *StaticFeed) Discover(_ context.Context, scope string) ([]string, error) {
	out := make([]string, 0, len(s.Assets)+1)
	if s.IncludeScope {
		root, err := utils.NormalizeScope(scope)
		if err != nil {
			return nil, fmt.Errorf("normalize scope: %w", err)
		}
		out = append(out, root)
	}
	return append(out, s.Assets...), nil
}

// MultiFeed runs every feed in turn and merges their output. It fails only
// when every feed failed.
type MultiFeed struct {
	feeds  []Feed
	opts   utils.CanonicalizeOptions
	logger logging.Logger
}

func NewMultiFeed(logger logging.Logger, opts utils.CanonicalizeOptions, feeds ...Feed) *MultiFeed {
	return &MultiFeed{
		feeds:  feeds,
		opts:   opts,
		logger: logger.With(logging.Field{Key: "component", Value: "discovery"}),
	}
}

func (m *MultiFeed) Name() string { return "multi" }

// Discover returns canonical, de-duplicated, sorted assets.
func (m *MultiFeed) Discover(ctx context.Context, scope string) ([]string, error) {
	seen := make(map[string]struct{})
	var errs []error
	for _, f := range m.feeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := f.Discover(ctx, scope)
		if err != nil {
			m.logger.Warn("feed failed",
				logging.Field{Key: "feed", Value: f.Name()},
				logging.Field{Key: "scope", Value: scope},
				logging.Field{Key: "error", Value: err})
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		for _, raw := range found {
			c, err := utils.Canonicalize(raw, m.opts)
			if err != nil {
				m.logger.Debug("dropping unparsable asset",
					logging.Field{Key: "feed", Value: f.Name()},
					logging.Field{Key: "asset", Value: raw})
				continue
			}
			seen[c] = struct{}{}
		}
		m.logger.Info("feed finished",
			logging.Field{Key: "feed", Value: f.Name()},
			logging.Field{Key: "found", Value: len(found)})
	}
	if len(m.feeds) > 0 && len(errs) == len(m.feeds) {
		return nil, fmt.Errorf("all discovery feeds failed: %w", errors.Join(errs...))
	}

	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}
