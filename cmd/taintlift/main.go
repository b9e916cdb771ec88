package main

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand returns the taintlift command with its subcommands.
func NewRootCommand() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:          "taintlift",
		Short:        "Taintlift lifts x86-64 instructions to bit-vector formulas with taint.",
		SilenceUsage: true,
		PersistentPreRun: func(c *cobra.Command, args []string) {
			log.SetOutput(c.ErrOrStderr())
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose")

	root.AddCommand(NewTraceCommand().Command())
	root.AddCommand(NewSyscallCommand().Command())
	return root
}
