package scanner

import (
	"fmt"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/webclient"
)

const (
	TypeCommand = "command"
	TypeBurp    = "burp"
	TypeSurface = "surface"
)

// Build constructs the enabled adapters described by cfgs, in order.
func Build(cfgs []AdapterConfig, wc webclient.WebClient, logger logging.Logger) ([]Adapter, error) {
	seen := make(map[string]bool)
	var out []Adapter
	for _, c := range cfgs {
		if c.Disabled {
			continue
		}
		if c.Name == "" {
			return nil, fmt.Errorf("adapter of type %q has no name", c.Type)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate adapter name %q", c.Name)
		}
		seen[c.Name] = true

		switch c.Type {
		case TypeCommand:
			if c.Command == "" {
				return nil, fmt.Errorf("adapter %q: command is required", c.Name)
			}
			out = append(out, NewCommandAdapter(c.Name, c.Command, c.Args, c.ExitCodes))
		case TypeBurp:
			if c.Endpoint == "" {
				return nil, fmt.Errorf("adapter %q: endpoint is required", c.Name)
			}
			out = append(out, NewBurpAdapter(c.Name, c.Endpoint, c.APIKey, c.PollInterval, wc))
		case TypeSurface:
			out = append(out, NewSurfaceAdapter(c.Name, wc))
		default:
			return nil, fmt.Errorf("adapter %q: unknown type %q", c.Name, c.Type)
		}
		logger.Debug("adapter configured",
			logging.Field{Key: "adapter", Value: c.Name},
			logging.Field{Key: "type", Value: c.Type})
	}
	return out, nil
}
