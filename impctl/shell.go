package main

import (
	"bufio"
	"context"
	"fmt"

	"github.com/google/shlex"
)

const prompt = "impctl> "

// cmdShell reads command lines until EOF, "exit" or "quit". A failing
// command is reported and the shell keeps running.
func (a *app) cmdShell(ctx context.Context, _ []string) error {
	scanner := bufio.NewScanner(a.in)
	for {
		fmt.Fprint(a.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(a.out, "error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "exit", "quit":
			return nil
		}
		if c, ok := findCommand(args[0]); ok && !c.shell {
			fmt.Fprintf(a.out, "error: %s is not available in the shell\n", c.name)
			continue
		}
		if err := a.run(ctx, args); err != nil {
			fmt.Fprintf(a.out, "error: %v\n", err)
		}
	}
}
