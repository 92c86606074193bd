package main

import (
	"os"

	"github.com/GabrielNunesIT/s3-log-sync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
