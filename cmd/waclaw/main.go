// Command waclaw is the CLI entry point: it starts the relay daemon,
// validates and scaffolds configuration, and offers a local REPL for
// exercising the reply engine without a live channel.
package main

import (
	"fmt"
	"os"

	"github.com/jholhewres/waclaw/cmd/waclaw/commands"
)

var version = "dev"

func main() {
	rootCmd := commands.NewRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "waclaw: %v\n", err)
		os.Exit(1)
	}
}
