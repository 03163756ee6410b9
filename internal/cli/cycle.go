package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raysh454/hunter/internal/app"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/server"
)

type cycleFlags struct {
	platform string
	program  string
	scope    string
	priority int
}

func (f cycleFlags) target() *model.Target {
	if f.scope == "" {
		return nil
	}
	return &model.Target{Platform: f.platform, Program: f.program, Scope: f.scope, Priority: f.priority}
}

func newCycleCommand(o *options) *cobra.Command {
	var f cycleFlags
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run one cycle now",
		Long: `Runs one cycle in the foreground over the next configured target, or over
the target given with --scope. With --api the cycle is started on the running
server instead and the job is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (f.platform != "" || f.program != "") && f.scope == "" {
				return errors.New("--platform and --program need --scope")
			}
			if o.api != "" {
				return startRemoteCycle(cmd, o, f)
			}

			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			logger := o.logger(cfg, cmd.ErrOrStderr())
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.NewApplication(ctx, cfg, logger)
			if err != nil {
				return err
			}
			st, runErr := application.RunOnce(ctx, f.target())
			if err := application.Shutdown(context.Background()); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			renderStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.scope, "scope", "", "Scope to run against, e.g. *.example.com")
	cmd.Flags().StringVar(&f.platform, "platform", "", "Platform of the scope (hackerone, bugcrowd, ...)")
	cmd.Flags().StringVar(&f.program, "program", "", "Program name of the scope")
	cmd.Flags().IntVar(&f.priority, "priority", 5, "Priority of the scope")
	return cmd
}

func startRemoteCycle(cmd *cobra.Command, o *options, f cycleFlags) error {
	c, err := o.apiClient()
	if err != nil {
		return err
	}
	req := server.StartCycleRequest{Platform: f.platform, Program: f.program, Scope: f.scope, Priority: f.priority}
	var job app.Job
	if err := c.call(cmd.Context(), http.MethodPost, "/cycles", req, &job); err != nil {
		return err
	}
	renderJob(cmd.OutOrStdout(), job)
	return nil
}
