package main

import (
	"os"

	"github.com/avaloki108/mush-audit-sub001/internal/app"
)

func main() {
	if err := app.BuildRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
