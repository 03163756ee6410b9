// Package cli is the hunter command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raysh454/hunter/internal/app"
	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/webclient"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	debug      bool
	api        string
}

// NewRootCommand builds the hunter command tree.
func NewRootCommand() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "hunter",
		Short: "Automated bug bounty asset processing pipeline",
		Long: `hunter discovers assets for configured bug bounty programs, runs
independent scanners against each one, classifies and de-duplicates the
findings, files reports and alerts on the results.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "Config file (YAML)")
	root.PersistentFlags().BoolVar(&o.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&o.api, "api", "", "Base URL of a running hunter API; read commands query it instead of the local store")

	root.AddCommand(
		newServeCommand(o),
		newCycleCommand(o),
		newStatusCommand(o),
		newStatsCommand(o),
		newReportsCommand(o),
	)
	return root
}

// Execute runs the root command against os.Args.
func Execute() {
	cobra.CheckErr(NewRootCommand().Execute())
}

func (o *options) loadConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// logger writes JSON lines to stderr so stdout stays clean for output.
func (o *options) logger(cfg *app.Config, errOut io.Writer) logging.Logger {
	if errOut == nil {
		errOut = os.Stderr
	}
	return logging.NewLogger(errOut, "hunter", logging.ParseLevel(cfg.LogLevel))
}

// apiClient talks to a running hunter server.
type apiClient struct {
	base string
	wc   webclient.WebClient
}

func (o *options) apiClient() (*apiClient, error) {
	wc, err := webclient.NewAPIClient(webclient.DefaultConfig(), logging.NopLogger{})
	if err != nil {
		return nil, err
	}
	return &apiClient{base: strings.TrimRight(o.api, "/"), wc: wc}, nil
}

func (c *apiClient) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := webclient.DoJSON(ctx, c.wc, method, c.base+path, nil, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.OK() {
		var e struct {
			Error string `json:"error"`
		}
		if resp.DecodeJSON(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return resp.DecodeJSON(out)
}
