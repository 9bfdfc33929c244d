package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dainotech/beespace-demo/internal/chat"
	"github.com/dainotech/beespace-demo/internal/dashboard"
	"github.com/dainotech/beespace-demo/pkg/version"
)

type checkResult struct {
	Backend  string `json:"backend"`
	Table    string `json:"table"`
	OK       bool   `json:"ok"`
	RowCount int64  `json:"row_count"`
	Error    string `json:"error,omitempty"`
}

func newCheckCmd(opts *rootOptions, factory AppFactory) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify warehouse credentials, connectivity and row count",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, factory, func(ctx context.Context, app *App) error {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				res := runCheck(ctx, app)
				out := cmd.OutOrStdout()
				if opts.json() {
					if err := writeJSON(out, res); err != nil {
						return err
					}
				} else if res.OK {
					printf(out, " %s %s %s\n", green("✓"), bold(res.Backend), res.Table)
					printf(out, "   rows: %d\n", res.RowCount)
				} else {
					printf(out, " %s %s %s\n", red("✗"), bold(res.Backend), res.Table)
					printf(out, "   %s\n", res.Error)
				}
				if !res.OK {
					return errors.New("warehouse check failed")
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall check timeout")
	return cmd
}

func runCheck(ctx context.Context, app *App) checkResult {
	res := checkResult{Backend: app.Dialect.Backend, Table: app.Dialect.Table}
	client, err := app.Warehouse.Client(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if err := client.Ping(ctx); err != nil {
		res.Error = "ping: " + err.Error()
		return res
	}
	rows, err := client.Execute(ctx, fmt.Sprintf("SELECT COUNT(*) AS row_count FROM %s", client.Dialect().TableRef()), nil)
	if err != nil {
		res.Error = "count: " + err.Error()
		return res
	}
	if len(rows) > 0 {
		res.RowCount = toInt64(rows[0]["row_count"])
	}
	res.OK = true
	return res
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case uint64:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

func newSitesCmd(opts *rootOptions, factory AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List site ids with telemetry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, factory, func(ctx context.Context, app *App) error {
				sites, err := app.Dashboard.Sites(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.json() {
					return writeJSON(out, map[string]any{"sites": sites})
				}
				if len(sites) == 0 {
					printf(out, "%s\n", dim("no sites found"))
					return nil
				}
				for _, s := range sites {
					printf(out, "%s\n", s)
				}
				return nil
			})
		},
	}
}

func newReadingsCmd(opts *rootOptions, factory AppFactory) *cobra.Command {
	var (
		site     int64
		fromFlag string
		toFlag   string
	)
	cmd := &cobra.Command{
		Use:   "readings",
		Short: "Show hourly readings for a site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, to := dashboard.DefaultWindow(time.Now())
			if toFlag != "" {
				t, err := time.Parse(time.RFC3339, toFlag)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				to = t
			}
			from := to.Add(-dashboard.DefaultRange)
			if fromFlag != "" {
				t, err := time.Parse(time.RFC3339, fromFlag)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				from = t
			}

			return withApp(cmd, opts, factory, func(ctx context.Context, app *App) error {
				readings, err := app.Dashboard.Readings(ctx, site, from, to)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.json() {
					return writeJSON(out, map[string]any{"readings": readings})
				}
				printf(out, "%s\n", bold(fmt.Sprintf("%-22s %-10s %8s %8s %8s %8s", "HOUR", "DEVICE", "TEMP", "HUMID", "MOTION", "LIGHT")))
				for _, r := range readings {
					printf(out, "%-22s %-10s %8.1f %8.1f %8.0f %8.1f\n", r.Timestamp, r.DevEUI, r.Temperature, r.Humidity, r.Motion, r.Light)
				}
				printf(out, "%s\n", dim(fmt.Sprintf("%d hourly readings", len(readings))))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&site, "site", 0, "site id")
	cmd.Flags().StringVar(&fromFlag, "from", "", "range start (RFC3339, default: 7 days before --to)")
	cmd.Flags().StringVar(&toFlag, "to", "", "range end (RFC3339, default: now)")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func newAskCmd(opts *rootOptions, factory AppFactory) *cobra.Command {
	var site string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask DAINO a question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return withApp(cmd, opts, factory, func(ctx context.Context, app *App) error {
				if app.ChatTimeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, app.ChatTimeout)
					defer cancel()
				}
				reply, err := app.Chat.RunTurn(ctx, nil, question, chat.ScopingContext{SiteID: site})
				out := cmd.OutOrStdout()
				if err != nil {
					env := chat.ToErrorEnvelope(err)
					if opts.json() {
						_ = writeJSON(out, env)
					} else {
						printf(out, "%s %s\n", red("✗"), env.Content)
					}
					return errors.New("chat turn failed")
				}
				if opts.json() {
					return writeJSON(out, reply)
				}
				printf(out, "%s\n", reply.Content)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "scope the question to a site id")
	return cmd
}

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if opts.json() {
				return writeJSON(out, version.GetInfo())
			}
			printf(out, "dainoctl %s\n", version.String())
			return nil
		},
	}
}
