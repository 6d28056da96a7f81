package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/eiostore"
	"github.com/sagarc03/eiostore/clientcli"
	"github.com/sagarc03/eiostore/config"
)

var (
	version = "dev"

	cfgFiles     []string
	profilesPath string
	profileName  string
	outputFormat string
	quiet        bool
)

var rootCmd = &cobra.Command{
	Use:     "eio",
	Version: version,
	Short:   "Client for the eio object storage service",
	Long: `eio - streaming client for the eio object storage service

Objects are addressed by id. Uploads and downloads are streamed and can be
compressed (--gzip) and encrypted (--encrypt-key) on the fly. Every request is
authorized with a JWT, either minted from --secret or passed with --token.

Failed requests are retried on connection errors and 5xx responses. Tune
retries with --retries, --retry-delay, --timeout or REQUEST_MAX_RETRY,
REQUEST_RETRY_DELAY and REQUEST_TIMEOUT (milliseconds).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFiles, cmd.Flags())
		if err != nil {
			return err
		}
		setupLogging(cfg.Log)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVarP(&cfgFiles, "config", "c", nil, "settings file(s), merged left to right")
	pf.StringVar(&profilesPath, "profiles", "", "profile file (default: ~/.eio/config.yaml, env: EIO_CONFIG)")
	pf.StringVarP(&profileName, "profile", "p", "", "profile name (env: EIO_PROFILE)")
	pf.StringVarP(&outputFormat, "format", "f", clientcli.FormatHuman, "output format: human, json, yaml")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	pf.String("uri", "", "service base URI (env: EIO_URI)")
	pf.String("secret", "", "JWT signing secret (env: EIO_SECRET)")
	pf.String("token", "", "pre-signed bearer token (env: EIO_TOKEN)")
	pf.Int("retries", eiostore.DefaultRetries, "attempts per request")
	pf.Duration("retry-delay", eiostore.DefaultRetryDelay, "pause between attempts")
	pf.Duration("timeout", eiostore.DefaultTimeout, "per-attempt timeout until response headers")
	pf.String("backoff", "fixed", "backoff between attempts: fixed, linear")
	pf.Float64("rate-limit", 0, "maximum attempts per second, 0 disables")
	pf.String("log-level", "", "log level: debug, info, warn, error (env: EIO_LOG_LEVEL)")
	pf.String("env", "", "log environment: dev, prod (env: EIO_ENV)")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(deleteManyCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if !errors.As(err, &exit) {
			reportError(err)
		}
		os.Exit(exitCode(err))
	}
}

// exitError is returned when we want to exit with a specific code
// but don't want an error message printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return ""
}

// exitCode maps failures to process exit codes: 2 for client errors, 3 for
// server errors, 4 for missing credentials and 1 otherwise.
func exitCode(err error) int {
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	var e *eiostore.Error
	if !errors.As(err, &e) {
		return 1
	}
	switch e.Kind {
	case eiostore.KindClient:
		return 2
	case eiostore.KindServer:
		return 3
	case eiostore.KindCredentials:
		return 4
	default:
		return 1
	}
}

func reportError(err error) {
	formatter, ferr := clientcli.NewFormatter(outputFormat, quiet)
	if ferr != nil {
		formatter = &clientcli.HumanFormatter{}
	}
	_ = formatter.FormatError(os.Stderr, err)
}
