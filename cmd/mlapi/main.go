package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	documentPath string
	settingsPath string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "mlapi",
		Short:         "Synthesize the API surface and resources for hosted ML models",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.documentPath, "config", "c", "", "configuration document (.json, .yaml); defaults to synth.document")
	root.PersistentFlags().StringVar(&opts.settingsPath, "settings", "", "mlapi settings file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newValidateCmd(opts))
	root.AddCommand(newSynthCmd(opts))
	root.AddCommand(newRoutesCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
