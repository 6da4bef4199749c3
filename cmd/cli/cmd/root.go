package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/statement-import/internal/app"
	"github.com/dvloznov/statement-import/internal/config"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// env carries what every subcommand needs once the root has loaded config.
type env struct {
	loader  *config.Loader
	cfgFile string
	cfg     *config.Config
	log     zerolog.Logger

	in  io.Reader
	out io.Writer

	open func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app.Services, error)
}

func (e *env) services(ctx context.Context) (*app.Services, error) {
	return e.open(ctx, e.cfg, e.log)
}

// Execute runs the root command against the process streams.
func Execute() error {
	return NewRootCommand(os.Stdin, os.Stdout).Execute()
}

// SetVersionInfo sets the version reported by --version.
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
}

// NewRootCommand creates the root command with all subcommands registered.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	return newRootCommand(&env{
		loader: config.NewLoader(),
		in:     in,
		out:    out,
		open:   app.Open,
	})
}

func newRootCommand(e *env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "statement-import",
		Short: "Import bank statements into the finance store",
		Long: `statement-import reads CSV exports, PDFs and statement images, turns them
into candidate transactions and commits the reviewed batch to an account.

Examples:
  statement-import import --file kbank.csv --preset kbank --account acc-1
  statement-import import --file statement.pdf --account acc-1 --dry-run
  statement-import upload --file statement.pdf
  statement-import transactions --account acc-1 --from 2026-01-01`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loader.Load(e.cfgFile)
			if err != nil {
				return err
			}
			e.cfg = cfg
			// Logs go to stderr so command output stays parseable.
			e.log = logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: os.Stderr})
			return nil
		},
	}

	rootCmd.SetIn(e.in)
	rootCmd.SetOut(e.out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&e.cfgFile, "config", os.Getenv(config.EnvPrefix+"_CONFIG"), "config file (optional)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (console, json)")
	flags.String("backend", "", "transaction store backend (memory, bigquery)")

	v := e.loader.Viper()
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = v.BindPFlag("store.backend", flags.Lookup("backend"))

	rootCmd.AddCommand(
		newImportCommand(e),
		newInspectCommand(e),
		newUploadCommand(e),
		newAccountsCommand(e),
		newCategoriesCommand(e),
		newTransactionsCommand(e),
	)

	return rootCmd
}
