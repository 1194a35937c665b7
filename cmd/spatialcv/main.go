package main

import (
	"os"

	"spatialcv/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:]))
}
