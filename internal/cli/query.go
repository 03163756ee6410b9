package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/raysh454/hunter/internal/app"
	"github.com/raysh454/hunter/internal/model"
	"github.com/raysh454/hunter/internal/server"
	"github.com/raysh454/hunter/internal/store"
)

// withStore opens the local store read side described by the config.
func withStore(ctx context.Context, o *options, fn func(*store.DB) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(app.DatabasePath(cfg), o.logger(cfg, nil))
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func newStatusCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current or last cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st model.CycleStatus
			if o.api != "" {
				c, err := o.apiClient()
				if err != nil {
					return err
				}
				if err := c.call(cmd.Context(), http.MethodGet, "/status", nil, &st); err != nil {
					return err
				}
			} else {
				err := withStore(cmd.Context(), o, func(db *store.DB) error {
					var err error
					st, err = db.LoadCycleStatus(cmd.Context())
					return err
				})
				if err != nil {
					return err
				}
			}
			renderStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func newStatsCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cumulative pipeline counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				counters model.Counters
				degraded bool
			)
			if o.api != "" {
				c, err := o.apiClient()
				if err != nil {
					return err
				}
				var resp server.StatsResponse
				if err := c.call(cmd.Context(), http.MethodGet, "/stats", nil, &resp); err != nil {
					return err
				}
				counters = resp.Counters
				degraded = resp.DedupDegraded
			} else {
				err := withStore(cmd.Context(), o, func(db *store.DB) error {
					var err error
					counters, err = db.LoadCounters(cmd.Context())
					return err
				})
				if err != nil {
					return err
				}
			}
			renderStats(cmd.OutOrStdout(), counters, degraded)
			return nil
		},
	}
}

func newReportsCommand(o *options) *cobra.Command {
	var (
		status string
		asset  string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := model.ReportFilter{Status: model.ReportStatus(status), Asset: model.Asset(asset), Limit: limit}
			if f.Status != "" && !f.Status.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}

			var reports []*model.Report
			if o.api != "" {
				c, err := o.apiClient()
				if err != nil {
					return err
				}
				q := url.Values{}
				if status != "" {
					q.Set("status", status)
				}
				if asset != "" {
					q.Set("asset", asset)
				}
				if limit > 0 {
					q.Set("limit", strconv.Itoa(limit))
				}
				path := "/reports"
				if len(q) > 0 {
					path += "?" + q.Encode()
				}
				if err := c.call(cmd.Context(), http.MethodGet, path, nil, &reports); err != nil {
					return err
				}
			} else {
				err := withStore(cmd.Context(), o, func(db *store.DB) error {
					var err error
					reports, err = db.ListReports(cmd.Context(), f)
					return err
				})
				if err != nil {
					return err
				}
			}
			renderReports(cmd.OutOrStdout(), reports)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only reports in this status (pending, critical, submitted, submission_failed)")
	cmd.Flags().StringVar(&asset, "asset", "", "Only reports for this asset")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of reports")
	return cmd
}
