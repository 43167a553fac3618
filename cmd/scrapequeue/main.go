// Command scrapequeue runs the Dispatcher/Reaper/GroupSweeper/
// Retention loops against a configured Postgres store, or drives
// one-shot maintenance and inspection subcommands.
//
// Grounded on ChuLiYu-raft-recovery's cmd/queue/main.go: a thin main
// that builds the cobra tree from internal/cli and recovers panics
// at the top level.
package main

import (
	"fmt"
	"os"

	"github.com/scrapeloop/queue/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
