package main

import (
	"os"

	"github.com/trucklink-io/trucklink/cmd/tlink-hosctl/app"
)

func main() {
	if err := app.NewHosctlCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
