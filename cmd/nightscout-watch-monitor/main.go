package main

import (
	"os"

	"github.com/monorkin/nightscout-watch-monitor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
