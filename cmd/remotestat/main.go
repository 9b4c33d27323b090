package main

import (
	"fmt"
	"os"

	"github.com/idelchi/remotestat/internal/cli"
)

// version is set at build time.
var version = "dev"

func main() {
	if err := cli.New(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "remotestat: %v\n", err)
		os.Exit(1)
	}
}
