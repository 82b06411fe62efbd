package app

// pkg/app/commands.go holds the CLI sub-commands shared by every binary that
// embeds the application.

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/webstart/config"
	"github.com/shashiranjanraj/webstart/pkg/logger"
	"github.com/shashiranjanraj/webstart/pkg/storage"
)

// NewCommand returns the root command with serve, route:list and config.
// opts are applied to every application the commands assemble.
func NewCommand(name string, opts ...Option) *cobra.Command {
	root := &cobra.Command{
		Use:           name,
		Short:         "Web application bootstrap",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd(opts), routeListCmd(opts), configCmd())
	return root
}

func serveCmd(opts []Option) *cobra.Command {
	var (
		format string
		port   string
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start", "run"},
		Short:   "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg := config.Current()
			if !cmd.Flags().Changed("log-format") {
				format = cfg.LogFormat
			}
			if port != "" {
				cfg.Port = port
			}

			closer, err := logger.Setup(cfg)
			if err != nil {
				logger.Warn("mongo log sink disabled", "error", err.Error())
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			disk, err := storage.New(ctx, cfg)
			if err != nil {
				return err
			}

			all := append([]Option{WithConfig(cfg), WithDisk(disk)}, opts...)
			a := Create(format, all...)
			logger.Info("application assembled",
				"env", a.Env(),
				"stages", a.Stages(),
				"disk", disk.Name(),
			)
			return a.Listen(ctx, ":"+cfg.Port)
		},
	}

	cmd.Flags().StringVar(&format, "log-format", "", "access log format (combined, common, dev, short, tiny, slog or a token template)")
	cmd.Flags().StringVar(&port, "port", "", "listen port (defaults to APP_PORT)")
	return cmd
}

func routeListCmd(opts []Option) *cobra.Command {
	return &cobra.Command{
		Use:     "route:list",
		Aliases: []string{"routes"},
		Short:   "List registered routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := Create("", opts...)
			return printRoutes(cmd.OutOrStdout(), a)
		},
	}
}

func printRoutes(out io.Writer, a *Application) error {
	infos := a.Router().Routes()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No routes registered.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tNAME")
	fmt.Fprintln(w, "------\t----\t----")
	for _, ri := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
	}
	return w.Flush()
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return printConfig(cmd.OutOrStdout(), config.Current())
		},
	}
}

func printConfig(out io.Writer, cfg config.App) error {
	secret := ""
	if cfg.S3.Secret != "" {
		secret = "********"
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	rows := [][2]string{
		{"APP_ENV", cfg.Env},
		{"APP_PORT", cfg.Port},
		{"VIEWS_DIR", cfg.ViewsDir},
		{"VIEW_ENGINE", cfg.ViewEngine},
		{"PUBLIC_DIR", cfg.PublicDir},
		{"MAX_BODY_BYTES", fmt.Sprint(cfg.MaxBodyBytes)},
		{"LOG_FORMAT", cfg.LogFormat},
		{"METRICS_ENABLED", fmt.Sprint(cfg.MetricsEnabled)},
		{"STATIC_DISK", cfg.StaticDisk},
		{"S3_BUCKET", cfg.S3.Bucket},
		{"S3_PREFIX", cfg.S3.Prefix},
		{"S3_REGION", cfg.S3.Region},
		{"S3_ENDPOINT", cfg.S3.Endpoint},
		{"S3_SECRET", secret},
		{"LOG_MONGO_DB", cfg.Mongo.Database},
		{"LOG_MONGO_COLLECTION", cfg.Mongo.Collection},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	return w.Flush()
}

// Execute runs the CLI built by NewCommand against os.Args and exits on
// failure.
func Execute(name string, opts ...Option) {
	if err := NewCommand(name, opts...).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
