package scanner

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/raysh454/hunter/internal/execx"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/utils"
)

// CommandAdapter wraps an external scanner binary. {{asset}} and {{host}} in
// Args are substituted per run. The tool runs in its own process group which
// is killed when the context is cancelled.
type CommandAdapter struct {
	name      string
	command   string
	args      []string
	exitCodes []int
}

func NewCommandAdapter(name, command string, args []string, exitCodes []int) *CommandAdapter {
	if len(exitCodes) == 0 {
		exitCodes = []int{0}
	}
	return &CommandAdapter{name: name, command: command, args: args, exitCodes: exitCodes}
}

func (c *CommandAdapter) Name() string { return c.name }

func (c *CommandAdapter) Scan(ctx context.Context, asset model.Asset) (string, error) {
	args := execx.Expand(c.args, map[string]string{
		"asset": asset.String(),
		"host":  utils.Hostname(asset.String()),
	})
	res, err := execx.Run(ctx, c.command, args...)
	if err != nil {
		return "", err
	}
	if !slices.Contains(c.exitCodes, res.ExitCode) {
		msg := utils.Truncate(strings.TrimSpace(res.Stderr), 200, "")
		return "", fmt.Errorf("%s exited with status %d: %s", c.command, res.ExitCode, msg)
	}
	return res.Stdout, nil
}
