package commands

import (
	"context"
	"path/filepath"

	"revnext-reports/internal/components/chrono"
	"revnext-reports/internal/components/restyutil"
	"revnext-reports/internal/components/telemetry"
	"revnext-reports/internal/config"
	"revnext-reports/internal/reports"
	"revnext-reports/internal/runlog"
	"revnext-reports/internal/session"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "revnext",
	Short:         "revnext downloads parts reports and enquiries from Revolution Next.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(globals.verbose)
	},
}

var globals struct {
	baseUrl     string
	username    string
	password    string
	sessionPath string
	noDotenv    bool
	ledgerPath  string
	dumpHttp    string
	verbose     bool
	cloudflare  bool
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globals.baseUrl, "url", "", "DMS base url (default $REVNEXT_URL or "+config.DefaultBaseUrl+")")
	flags.StringVar(&globals.username, "username", "", "DMS username (default $REVNEXT_USERNAME)")
	flags.StringVar(&globals.password, "password", "", "DMS password (default $REVNEXT_PASSWORD)")
	flags.StringVar(&globals.sessionPath, "session", "", "saved session file (default $REVNEXT_SESSION_PATH or ./"+config.DefaultSessionFile+")")
	flags.BoolVar(&globals.noDotenv, "no-dotenv", false, "do not load .env from the working directory")
	flags.StringVar(&globals.ledgerPath, "ledger", filepath.Join(".revnext", "runs.db"), "sqlite file that records report runs, empty disables it")
	flags.StringVar(&globals.dumpHttp, "dump-http", "", "write every http exchange to this directory")
	flags.BoolVarP(&globals.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&globals.cloudflare, "cloudflare", false, "use a browser-like TLS fingerprint")
}

// ExecuteContext runs the command line, the caller decides how to exit on
// error so telemetry can be flushed first.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// env is what every command needs to talk to the DMS, built from the
// persistent flags.
type env struct {
	config   config.Config
	tel      telemetry.API
	clock    chrono.API
	ledger   *runlog.Ledger
	provider session.Provider
}

func newEnv() (*env, error) {
	cfg := config.FromEnv(config.Overrides{
		BaseUrl:     globals.baseUrl,
		Username:    globals.username,
		Password:    globals.password,
		SessionPath: globals.sessionPath,
		NoDotenv:    globals.noDotenv,
	})

	clock, err := chrono.NewStandardImpl()
	if err != nil {
		return nil, err
	}
	tel := telemetry.NewSlogAPI()

	opts := session.Options{
		Telemetry:        tel,
		CloudflareBypass: globals.cloudflare,
	}
	if globals.dumpHttp != "" {
		output, err := restyutil.NewFilesystemOutput(globals.dumpHttp)
		if err != nil {
			return nil, err
		}
		opts.DumpOutput = output
	}

	var ledger *runlog.Ledger
	if globals.ledgerPath != "" {
		ledger, err = runlog.Open(globals.ledgerPath, clock)
		if err != nil {
			return nil, err
		}
	}

	return &env{
		config: cfg,
		tel:    tel,
		clock:  clock,
		ledger: ledger,
		provider: session.Provider{
			Config:    cfg,
			Telemetry: tel,
			Options:   opts,
		},
	}, nil
}

func (e *env) Close() error {
	return e.ledger.Close()
}

func (e *env) downloader() reports.Downloader {
	return reports.Downloader{
		Provider:  e.provider,
		Clock:     e.clock,
		Telemetry: e.tel,
		Ledger:    e.ledger,
	}
}

// withEnv wraps a command body, the env is closed once it returns.
func withEnv(run func(cmd *cobra.Command, args []string, e *env) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		return run(cmd, args, e)
	}
}
