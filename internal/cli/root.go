// Package cli implements the cobra-based commands for layerpack.
//
// The root command itself runs the build pipeline (the tool is
// fundamentally a one-shot build-and-upload utility, so its primary
// operation lives on the root rather than behind a subcommand).
// Auxiliary operations (versions, delete, batch) are subcommands,
// each defined in its own file within this package.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// Global flag variables bound to cobra persistent flags on the root
// command, which makes them available to every subcommand.
var (
	// jsonOutput switches command output to structured JSON for
	// machine consumption.
	jsonOutput bool

	// verbose lowers the log level to debug.
	verbose bool

	// configPath is an explicit defaults-file path (--config).
	configPath string
)

// log is the package logger. Operational/diagnostic output goes here
// (stderr); command results go to stdout via the print* helpers.
var log = newLogger(false)

// version, commit, and date are injected from the main package, which
// receives them from the build system via ldflags.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// newLogger builds the zerolog console logger used across the CLI.
// Default level is warn so normal runs stay quiet; --verbose drops it
// to debug for full pipeline tracing.
func newLogger(debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// NewRootCommand creates and configures the root cobra command.
// Running it with no subcommand executes the build pipeline:
// resolve dependencies → pip install into a temp directory → zip under
// the runtime's layer prefix → optionally publish the layer version.
func NewRootCommand() *cobra.Command {
	flags := &buildFlags{}

	rootCmd := &cobra.Command{
		Use:   "layerpack",
		Short: "Build and publish AWS Lambda layers from pip libraries",
		Long: `layerpack packages pip-installable libraries into a zip archive that
follows the AWS Lambda layer directory convention, and optionally uploads
the archive as a new Lambda layer version.

Dependencies come from --libraries, a --requirements-file, or an
interactive prompt when neither is given. The archive places packages
under the "python/" prefix the Lambda Python runtimes import from.

Credentials for the upload come from the standard AWS credential chain
(environment variables, shared config, instance metadata); layerpack
never manages them itself.`,
		Example: `  layerpack --layer-name http-deps --libraries requests,urllib3
  layerpack --layer-name data-deps --requirements-file requirements.txt --no-upload
  layerpack --layer-name native-deps --libraries numpy --runtime python3.12 --use-container
  layerpack versions http-deps --region eu-west-1`,

		// SilenceUsage prevents cobra from printing usage on every error;
		// SilenceErrors prevents automatic error printing. Errors are
		// formatted by Execute (text or JSON based on --json).
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// Reconfigure the logger once the persistent flags are parsed.
		// PersistentPreRun runs for subcommands too.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = newLogger(verbose)
		},

		Args: cobra.NoArgs,

		// RunE is used instead of Run so errors flow to the Execute
		// error handler with their exit codes intact.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, flags)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a layerpack.jsonc defaults file")

	bindBuildFlags(rootCmd, flags)

	rootCmd.AddCommand(NewVersionsCommand())
	rootCmd.AddCommand(NewDeleteCommand())
	rootCmd.AddCommand(NewBatchCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// CLIError values carry their own exit codes; other errors default to
// exit code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag. Errors always go to
// stderr; stdout is reserved for successful command output.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// IsJSONOutput returns whether the --json flag is set.
// Commands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
