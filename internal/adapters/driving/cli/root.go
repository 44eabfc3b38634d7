// Package cli provides the sercha-rag command line interface.
package cli

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Exit statuses returned by Execute.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitInput    = 2
	ExitUpstream = 3
)

// skipWiring marks commands that run without services.
const skipWiring = "skip-wiring"

var version = "dev"

// Driving ports used by the commands.
var (
	retrievalService driving.RetrievalService
	ingestService    driving.IngestService
	settingsService  driving.SettingsService
	contextBuilder   ContextBuilder
	sourceLister     SourceLister
	background       func(ctx context.Context) error
	closeServices    func() error
)

// ContextBuilder renders a retrieval into model context. The boolean is
// false when the retrieval is empty.
type ContextBuilder interface {
	BuildContext(r *domain.Retrieval) (string, bool)
}

// SourceLister lists the sources held by the durable index.
type SourceLister interface {
	Sources(ctx context.Context) ([]string, error)
}

// Options carries the global flags to the wiring function.
type Options struct {
	ConfigDir string
	DSN       string
	NoConfig  bool
	Verbose   bool

	// Command is the full path of the command being run, such as
	// "sercha-rag settings show".
	Command string
}

// Services are the driving ports and lifecycle hooks the commands use.
type Services struct {
	Retrieval driving.RetrievalService
	Ingest    driving.IngestService
	Settings  driving.SettingsService
	Context   ContextBuilder
	Sources   SourceLister

	// Background runs maintenance such as cache sweeping and file
	// watching until ctx is done. Only long-running commands start it.
	Background func(ctx context.Context) error

	// Close releases stores and connections.
	Close func() error
}

// WireFunc builds services once the global flags are parsed.
type WireFunc func(ctx context.Context, opts Options) (*Services, error)

var (
	wire    WireFunc
	options Options
)

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Retrieve cited passages from your documents",
	Long: `sercha-rag finds the passages that answer a question in an indexed
corpus and in documents attached to the question, and prints them with
numbered citations ready for a language model.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&options.Verbose, "verbose", "v", false, "print debug output to stderr")
	flags.StringVar(&options.ConfigDir, "config-dir", "", "configuration directory (default ~/.sercha-rag)")
	flags.StringVar(&options.DSN, "dsn", "", "durable index DSN, overrides durable.dsn")
	flags.BoolVar(&options.NoConfig, "no-config", false, "ignore config.toml and use defaults plus environment")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return domain.NewInputError("", err.Error(), nil)
	})
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetServices installs the driving ports used by the commands.
func SetServices(s *Services) {
	retrievalService = s.Retrieval
	ingestService = s.Ingest
	settingsService = s.Settings
	contextBuilder = s.Context
	sourceLister = s.Sources
	background = s.Background
	closeServices = s.Close
}

// Execute runs the command tree with wiring deferred until flags are
// parsed, and returns the process exit status.
func Execute(ctx context.Context, w WireFunc) int {
	wire = w
	defer closeAll()

	// cmd.Print* falls back to stderr; results belong on stdout.
	rootCmd.SetOut(os.Stdout)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	newRenderer(rootCmd.ErrOrStderr()).printError(err)
	return exitCode(err)
}

func setup(cmd *cobra.Command, _ []string) error {
	if options.Verbose || envBool(EnvVerbose) {
		logger.SetVerbose(true)
		logger.SetOutput(cmd.ErrOrStderr())
	}

	if wire == nil || !needsServices(cmd) {
		return nil
	}

	opts := options
	opts.Command = cmd.CommandPath()
	services, err := wire(cmd.Context(), opts)
	if err != nil {
		return err
	}
	SetServices(services)
	return nil
}

func needsServices(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipWiring] == "true" {
			return false
		}
		if c.Name() == "help" || c.Name() == cobra.ShellCompRequestCmd || c.Name() == "completion" {
			return false
		}
	}
	return true
}

func closeAll() {
	if closeServices == nil {
		return
	}
	if err := closeServices(); err != nil {
		logger.Warn("closing services: %v", err)
	}
	closeServices = nil
}

// EnvVerbose enables debug output like --verbose.
const EnvVerbose = "SERCHA_RAG_VERBOSE"

func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case domain.IsInputError(err), errors.Is(err, domain.ErrInvalidInput):
		return ExitInput
	case domain.IsUpstreamError(err),
		errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrIndexUnavailable):
		return ExitUpstream
	default:
		return ExitError
	}
}

// errServiceUnavailable reports a command run without its service wired.
func errServiceUnavailable(name string) error {
	return errors.New(name + " service not configured")
}
