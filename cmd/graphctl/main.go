// Command graphctl runs the graph bridge and talks to a running one.
package main

import (
	"fmt"
	"os"

	"github.com/danmuck/graphctl/internal/logging"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	logging.ConfigureRuntime()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "graphctl: %v\n", err)
		os.Exit(1)
	}
}
