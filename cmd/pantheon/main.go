// Command pantheon is the AI gods server and command line.
package main

import (
	"os"

	"github.com/bdobrica/pantheon/internal/pantheon/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
