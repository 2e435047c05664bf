package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/trucklink-io/trucklink/cmd/tlink-driver-agent/app"
)

func main() {
	app.NewApp().Run()
}
