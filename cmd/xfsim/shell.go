package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
)

// newShellCmd returns an interactive REPL that tokenizes each line with
// shellwords and dispatches it to the same subcommands registered on the
// root command, so "format 100MB" at the prompt behaves exactly like
// "xfsim format 100MB" on the command line.
func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive xfsim session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runShell(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "xfsim interactive shell. type 'help' for commands, 'exit' to quit.")
	for {
		fmt.Fprint(out, "xfsim> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		args, err := shellwords.Parse(line)
		if err != nil {
			fmt.Fprintf(out, "parse error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		root := newRootCmd()
		root.SetArgs(args)
		root.SetOut(out)
		root.SetErr(out)
		if err := root.Execute(); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}
