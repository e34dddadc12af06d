package main

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mkvert/model"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code. Failures
// are reported on stderr as "<Kind>: <message>".
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", model.Kind(err), err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var level, format string
	root := &cobra.Command{
		Use:           "mkvert",
		Short:         "Hybrid pressure coordinate generator",
		Long:          `Builds the A and B coefficients of a hybrid sigma-pressure vertical coordinate from a domain layout.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(stderr, level, format)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&level, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&format, "log-format", "text", "log format (text, json)")

	root.AddCommand(
		newBuildCmd(),
		newBatchCmd(),
		newInspectCmd(),
		newServeCmd(),
	)
	return root
}

func setupLogging(w io.Writer, level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return model.NewConfigError("log-level", "%v", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(w)
	switch format {
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return model.NewConfigError("log-format", "unknown format %q", format)
	}
	return nil
}
