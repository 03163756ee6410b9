package discovery

import (
	"fmt"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/utils"
	"github.com/raysh454/hunter/internal/webclient"
)

type SpiderConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	MaxDepth int  `mapstructure:"max_depth"`
	MaxPages int  `mapstructure:"max_pages"`
}

type CommandConfig struct {
	Name      string   `mapstructure:"name"`
	Command   string   `mapstructure:"command"`
	Args      []string `mapstructure:"args"`
	ExitCodes []int    `mapstructure:"exit_codes"`
}

type Config struct {
	// IncludeScope adds the normalized scope root to every discovery.
	IncludeScope bool                      `mapstructure:"include_scope"`
	Static       []string                  `mapstructure:"static"`
	Spider       SpiderConfig              `mapstructure:"spider"`
	Commands     []CommandConfig           `mapstructure:"commands"`
	Canonicalize utils.CanonicalizeOptions `mapstructure:"canonicalize"`
}

func DefaultConfig() Config {
	return Config{
		IncludeScope: true,
		Spider:       SpiderConfig{Enabled: true, MaxDepth: 2, MaxPages: 50},
		Canonicalize: utils.DefaultCanonicalizeOptions(),
	}
}

// Build assembles the configured feeds behind a single MultiFeed.
func Build(cfg Config, wc webclient.WebClient, logger logging.Logger) (*MultiFeed, error) {
	var feeds []Feed
	if cfg.IncludeScope || len(cfg.Static) > 0 {
		feeds = append(feeds, &StaticFeed{Assets: cfg.Static, IncludeScope: cfg.IncludeScope})
	}
	if cfg.Spider.Enabled {
		if wc == nil {
			return nil, fmt.Errorf("spider feed needs a web client")
		}
		feeds = append(feeds, NewSpider(cfg.Spider.MaxDepth, cfg.Spider.MaxPages, wc, logger))
	}
	for _, c := range cfg.Commands {
		if c.Command == "" {
			return nil, fmt.Errorf("discovery command %q: command is required", c.Name)
		}
		feeds = append(feeds, &CommandFeed{FeedName: c.Name, Command: c.Command, Args: c.Args, ExitCodes: c.ExitCodes})
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("no discovery feeds configured")
	}
	return NewMultiFeed(logger, cfg.Canonicalize, feeds...), nil
}
