package main

import (
	"os"

	"github.com/anchorchain/anchord/app"
)

func main() {
	if err := app.StartApp(); err != nil {
		os.Exit(1)
	}
}
