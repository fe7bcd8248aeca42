package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flagstream-dev/flagstream/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┬  ┌─┐┌─┐┌─┐┌┬┐┬─┐┌─┐┌─┐┌┬┐
  ├┤ │  ├─┤│ ┬└─┐ │ ├┬┘├┤ ├─┤│││
  └  ┴─┘┴ ┴└─┘└─┘ ┴ ┴└─└─┘┴ ┴┴ ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "flagstream",
		Short: "Reactive feature flags for Go services",
		Long: `Flagstream is a reactive feature-flag layer for Go services.

A process-wide store holds a mutable flag mapping; accessors read
typed values with fallbacks and recompute when the mapping changes.
The flagstream CLI runs the flag service and manipulates flags over
its REST API:

  • Live flag updates pushed over WebSocket
  • Snapshot history archived to S3
  • Prometheus metrics and OpenTelemetry tracing`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		initCmd(),
		serveCmd(),
		getCmd(),
		setCmd(),
		deleteCmd(),
		listCmd(),
		exportCmd(),
		importCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		var fe *errors.FlagstreamError
		if stderrors.As(err, &fe) {
			errors.PrintError(fe)
		} else {
			// Plain errors (bad arguments, unknown commands) get the
			// compact form.
			errorMsg("%s", err)
		}
		os.Exit(1)
	}
}

// printBanner prints the flagstream ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
