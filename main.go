package main

import (
	"os"

	"github.com/zenwatch/zenwatch/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
