// Command rftrecv receives one file from rftsend over UDP.
//
// Usage:
//
//	rftrecv [flags] <port>
//
// The file is written to the output directory under the base name sent by
// the peer.
package main

import (
	"os"

	"github.com/drunlade/go-rft/cli/cmd"
)

func main() {
	app := cmd.ReceiveApp()
	app.ExitErrHandler = cmd.ExitErrHandler
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
