// Command rftsend sends one file to an rftrecv instance over UDP.
//
// Usage:
//
//	rftsend [flags] <host> <port> <file> <remote-name>
//
// Exit codes:
//   - 0: every unit was acknowledged
//   - 1: transfer failed
//   - 2: invalid arguments or configuration
package main

import (
	"os"

	"github.com/drunlade/go-rft/cli/cmd"
)

func main() {
	app := cmd.SendApp()
	app.ExitErrHandler = cmd.ExitErrHandler
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
