package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/taintlift/taintlift/syscalls"
)

// SyscallCommand represents a command for looking up Linux x86-64 syscalls.
type SyscallCommand struct {
	Stdout io.Writer
}

// NewSyscallCommand returns a new instance of SyscallCommand.
func NewSyscallCommand() *SyscallCommand {
	return &SyscallCommand{Stdout: os.Stdout}
}

// Command returns the cobra command for the "syscall" subcommand.
func (cmd *SyscallCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "syscall <number|name>",
		Short: "Print the name of a syscall number, or the number of a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cmd.Stdout = c.OutOrStdout()
			return cmd.Run(args[0])
		},
	}
}

// Run executes the "syscall" subcommand.
func (cmd *SyscallCommand) Run(arg string) error {
	if n, err := strconv.ParseUint(arg, 0, 64); err == nil {
		name, ok := syscalls.Name(n)
		if !ok {
			return errors.Errorf("syscall %d: not found", n)
		}
		fmt.Fprintln(cmd.Stdout, name)
		return nil
	}

	n, ok := syscalls.Lookup(arg)
	if !ok {
		return errors.Errorf("syscall %q: not found", arg)
	}
	fmt.Fprintln(cmd.Stdout, n)
	return nil
}
