package main

import (
	"fmt"
	"os"

	"github.com/randalmurphal/agentrouter/cmd/agentrouter/cmd"
)

var version = "dev"

func main() {
	if err := cmd.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
