package discovery

import (
	"bufio"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/raysh454/hunter/internal/execx"
	"github.com/raysh454/hunter/internal/utils"
)

// CommandFeed runs an external recon tool (subfinder, hakrawler, ...) and
// reads one asset per output line. {{scope}} and {{host}} in Args are
// replaced before the run.
type CommandFeed struct {
	FeedName  string
	Command   string
	Args      []string
	ExitCodes []int
}

func (c *CommandFeed) Name() string {
	if c.FeedName != "" {
		return c.FeedName
	}
	return c.Command
}

func (c *CommandFeed) Discover(ctx context.Context, scope string) ([]string, error) {
	args := execx.Expand(c.Args, map[string]string{
		"scope": scope,
		"host":  utils.Hostname(strings.TrimPrefix(strings.TrimSpace(scope), "*.")),
	})
	res, err := execx.Run(ctx, c.Command, args...)
	if err != nil {
		return nil, err
	}
	accepted := c.ExitCodes
	if len(accepted) == 0 {
		accepted = []int{0}
	}
	if !slices.Contains(accepted, res.ExitCode) {
		return nil, fmt.Errorf("%s exited with status %d: %s", c.Command, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	var out []string
	sc := bufio.NewScanner(strings.NewReader(res.Stdout))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
