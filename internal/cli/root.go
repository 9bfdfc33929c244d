package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	pkgconfig "github.com/dainotech/beespace-demo/pkg/config"
	"github.com/dainotech/beespace-demo/pkg/logging"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
	dim   = color.New(color.Faint).SprintFunc()
)

type rootOptions struct {
	output  string
	verbose bool
}

// NewRootCmd returns the dainoctl command tree. factory is called by the
// commands that need the warehouse or the model.
func NewRootCmd(factory AppFactory) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "dainoctl",
		Short:         "DAINO operator tool",
		Long:          "dainoctl checks the telemetry warehouse, lists sites and readings, and asks DAINO questions from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.output, "output", "text", "output format: json|text")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newCheckCmd(opts, factory))
	root.AddCommand(newSitesCmd(opts, factory))
	root.AddCommand(newReadingsCmd(opts, factory))
	root.AddCommand(newAskCmd(opts, factory))
	root.AddCommand(newVersionCmd(opts))
	return root
}

func (o *rootOptions) logger(w io.Writer) logging.Logger {
	logger := logging.NewLogger()
	logger.SetOutput(w)
	logger.SetLevel(logrus.WarnLevel)
	if o.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// withApp loads env files, builds the App and closes it after fn.
func withApp(cmd *cobra.Command, opts *rootOptions, factory AppFactory, fn func(ctx context.Context, app *App) error) error {
	logger := opts.logger(cmd.ErrOrStderr())
	pkgconfig.LoadEnv(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := factory(ctx, logger)
	if err != nil {
		return err
	}
	if app.Close != nil {
		defer func() { _ = app.Close() }()
	}
	return fn(ctx, app)
}

func (o *rootOptions) json() bool {
	return o.output == "json"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
